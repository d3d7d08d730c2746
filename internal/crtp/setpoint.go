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

const (
	// CommanderFrameLen is the fixed size of an attitude setpoint packet.
	CommanderFrameLen = 16
	// HoverFrameLen is the fixed size of a hover setpoint packet.
	HoverFrameLen = 19

	// hoverSetpointType is the generic-setpoint discriminator for hover.
	hoverSetpointType = 0x05
)

// EncodeCommander builds a 16-byte attitude setpoint packet.
// Angles are degrees, thrust is the raw motor value. Pitch is negated
// on the wire; the firmware's pitch axis points the other way.
// All multi-byte fields are little-endian.
func EncodeCommander(roll, pitch, yaw float32, thrust uint16) []byte {
	buf := make([]byte, CommanderFrameLen)
	buf[0] = byte(HeaderCommander)
	binary.LittleEndian.PutUint32(buf[1:5], math.Float32bits(roll))
	binary.LittleEndian.PutUint32(buf[5:9], math.Float32bits(-pitch))
	binary.LittleEndian.PutUint32(buf[9:13], math.Float32bits(yaw))
	binary.LittleEndian.PutUint16(buf[13:15], thrust)
	buf[15] = Checksum(buf[:15])
	return buf
}

// DecodeCommander parses a 16-byte attitude setpoint packet, undoing
// the pitch negation. It returns ok=false for anything that is not a
// well-formed commander packet.
func DecodeCommander(frame []byte) (roll, pitch, yaw float32, thrust uint16, ok bool) {
	if len(frame) != CommanderFrameLen || Header(frame[0]) != HeaderCommander {
		return 0, 0, 0, 0, false
	}
	if !VerifyChecksum(frame) {
		return 0, 0, 0, 0, false
	}
	roll = math.Float32frombits(binary.LittleEndian.Uint32(frame[1:5]))
	pitch = -math.Float32frombits(binary.LittleEndian.Uint32(frame[5:9]))
	yaw = math.Float32frombits(binary.LittleEndian.Uint32(frame[9:13]))
	thrust = binary.LittleEndian.Uint16(frame[13:15])
	return roll, pitch, yaw, thrust, true
}

// EncodeHover builds a 19-byte hover setpoint packet. Velocities are
// m/s, yawRate is deg/s, height is the absolute target in meters.
// Hover setpoints only take effect once the high-level commander has
// been enabled.
func EncodeHover(vx, vy, yawRate, height float32) []byte {
	buf := make([]byte, HoverFrameLen)
	buf[0] = byte(HeaderHover)
	buf[1] = hoverSetpointType
	binary.LittleEndian.PutUint32(buf[2:6], math.Float32bits(vx))
	binary.LittleEndian.PutUint32(buf[6:10], math.Float32bits(vy))
	binary.LittleEndian.PutUint32(buf[10:14], math.Float32bits(yawRate))
	binary.LittleEndian.PutUint32(buf[14:18], math.Float32bits(height))
	buf[18] = Checksum(buf[:18])
	return buf
}

// DecodeHover parses a 19-byte hover setpoint packet. It returns
// ok=false for anything that is not a well-formed hover packet.
func DecodeHover(frame []byte) (vx, vy, yawRate, height float32, ok bool) {
	if len(frame) != HoverFrameLen || Header(frame[0]) != HeaderHover || frame[1] != hoverSetpointType {
		return 0, 0, 0, 0, false
	}
	if !VerifyChecksum(frame) {
		return 0, 0, 0, 0, false
	}
	vx = math.Float32frombits(binary.LittleEndian.Uint32(frame[2:6]))
	vy = math.Float32frombits(binary.LittleEndian.Uint32(frame[6:10]))
	yawRate = math.Float32frombits(binary.LittleEndian.Uint32(frame[10:14]))
	height = math.Float32frombits(binary.LittleEndian.Uint32(frame[14:18]))
	return vx, vy, yawRate, height, true
}
