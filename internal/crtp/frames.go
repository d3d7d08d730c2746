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

import (
	"encoding/binary"
	"math"
)

// Fixed request frames. Except for HighLevelCommitFrame every trailing
// byte is the byte-sum checksum of the bytes before it. Callers must
// treat these as read-only.
var (
	// PingFrame is the heartbeat echo request.
	PingFrame = []byte{0xFD, 0x00, 0xFD}

	// VoltageLogConfigFrame creates the log block that carries the
	// battery voltage variable.
	VoltageLogConfigFrame = []byte{0x5D, 0x06, 0x01, 0x77, 0x02, 0x00, 0xDD}
	// VoltageLogStartFrame starts streaming of the voltage log block.
	VoltageLogStartFrame = []byte{0x5D, 0x03, 0x01, 0x0A, 0x6B}
	// VoltageLogStopFrame stops streaming of the voltage log block.
	VoltageLogStopFrame = []byte{0x5D, 0x04, 0x01, 0x62}

	// HeightSensorRequestFrame queries whether a height-sensor deck is
	// attached.
	HeightSensorRequestFrame = []byte{0x2D, 0x02, 0x00, 0x2F}

	// HighLevelEnableFrame and HighLevelCommitFrame together switch
	// the firmware to high-level commander mode. The commit frame has
	// no checksum byte.
	HighLevelEnableFrame = []byte{0x2E, 0x02, 0x00, 0x01, 0x31}
	HighLevelCommitFrame = []byte{0x2F, 0x02, 0x01}
)

const (
	// voltageFrameMinLen covers the marker bytes plus the float payload.
	voltageFrameMinLen = 9
	// voltageBlockID is the log block carrying the voltage variable.
	voltageBlockID = 0x01
	// voltageValueOffset is where the little-endian float32 starts.
	voltageValueOffset = 5

	// heightFrameMinLen covers the marker bytes plus the status byte.
	heightFrameMinLen = 5
	// heightQueryID matches the second byte of the request frame.
	heightQueryID = 0x02
	// heightStatusOffset is where the presence byte sits.
	heightStatusOffset = 4
	// heightStatusPresent is the presence byte value meaning attached.
	heightStatusPresent = 0x01
)

// DecodeVoltage extracts the battery voltage from a log data frame.
// The frame must start with the log data header, name block 1 and be
// long enough to carry the float; anything else returns ok=false.
func DecodeVoltage(frame []byte) (volts float32, ok bool) {
	if len(frame) < voltageFrameMinLen {
		return 0, false
	}
	if Header(frame[0]) != HeaderLogData || frame[1] != voltageBlockID {
		return 0, false
	}
	bits := binary.LittleEndian.Uint32(frame[voltageValueOffset : voltageValueOffset+4])
	return math.Float32frombits(bits), true
}

// DecodeHeightSensorStatus extracts the deck presence flag from a
// height-sensor query reply. present is only true when the status byte
// is exactly 1; any other value reports an absent deck. ok=false means
// the frame is not a height-sensor reply at all.
func DecodeHeightSensorStatus(frame []byte) (present, ok bool) {
	if len(frame) < heightFrameMinLen {
		return false, false
	}
	if Header(frame[0]) != HeaderParamQuery || frame[1] != heightQueryID {
		return false, false
	}
	return frame[heightStatusOffset] == heightStatusPresent, true
}
