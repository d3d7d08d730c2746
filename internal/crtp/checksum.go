// Copyright 2026 The go-espdrone Contributors.
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package crtp

// Checksum computes the trailing checksum byte for a packet.
// It is the sum of all bytes before the checksum position, modulo 256.
func Checksum(data []byte) byte {
	chk := byte(0)
	for _, b := range data {
		chk += b
	}
	return chk
}

// VerifyChecksum reports whether the last byte of frame equals the
// checksum of everything before it. Frames shorter than two bytes
// cannot carry a checksum and always fail.
func VerifyChecksum(frame []byte) bool {
	if len(frame) < 2 {
		return false
	}
	return frame[len(frame)-1] == Checksum(frame[:len(frame)-1])
}
