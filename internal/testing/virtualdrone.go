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

// Package testing provides test utilities including a wire-level
// ESP-drone firmware simulator.
//
// The VirtualDrone type models the firmware's packet handling: it
// echoes link pings, manages the voltage log block, answers the
// height-sensor deck query and enforces the thrust-lock and
// high-level-commander gates on setpoints. Tests feed it outbound
// packets and deliver its replies back to the session, giving
// full-session coverage without a vehicle on the bench.
package testing

import (
	"bytes"
	"encoding/binary"
	"math"

	"github.com/espdrone-community/go-espdrone/internal/crtp"
	"github.com/espdrone-community/go-espdrone/internal/syncutil"
)

// defaultArmThreshold is how many consecutive zero-thrust setpoints
// the firmware wants before it unlocks the motors.
const defaultArmThreshold = 100

// AttitudeSetpoint is one decoded commander packet.
type AttitudeSetpoint struct {
	Roll   float32
	Pitch  float32
	Yaw    float32
	Thrust uint16
}

// HoverSetpoint is one decoded hover packet.
type HoverSetpoint struct {
	VX      float32
	VY      float32
	YawRate float32
	Height  float32
}

// VirtualDrone simulates the ESP-drone firmware at the packet level.
//
// The simulator enforces the same gates the firmware does:
//   - link pings are echoed unless the link is muted
//   - the voltage log block must be configured before start streams
//   - hover setpoints are ignored until the high-level commander has
//     been enabled and committed
//   - motors stay locked until a run of zero-thrust setpoints
//
// Malformed or ineffective packets are counted and otherwise ignored,
// which is the firmware's behavior for traffic it cannot use.
type VirtualDrone struct {
	attitudes     []AttitudeSetpoint
	hovers        []HoverSetpoint
	mu            syncutil.Mutex
	voltage       float32
	armThreshold  int
	zeroRun       int
	ignoredHovers int
	dropped       int
	pings         int
	tick          uint32
	heightSensor  bool
	linkMuted     bool
	logConfigured bool
	streaming     bool
	hlcPending    bool
	hlcEnabled    bool
	armed         bool
}

// NewVirtualDrone creates a firmware simulator with a nominal battery,
// no height sensor deck and locked motors.
func NewVirtualDrone() *VirtualDrone {
	return &VirtualDrone{
		voltage:      3.7,
		armThreshold: defaultArmThreshold,
	}
}

// Process handles one outbound packet and returns the reply frames the
// firmware would send, oldest first. A nil result means the packet
// produced no traffic.
func (v *VirtualDrone) Process(packet []byte) [][]byte {
	v.mu.Lock()
	defer v.mu.Unlock()

	if len(packet) == 0 {
		v.dropped++
		return nil
	}

	switch {
	case crtp.Header(packet[0]) == crtp.HeaderLinkEcho:
		return v.handlePing(packet)
	case crtp.Header(packet[0]) == crtp.HeaderLogControl:
		return v.handleLogControl(packet)
	case bytes.Equal(packet, crtp.HeightSensorRequestFrame):
		return [][]byte{v.heightStatusFrame()}
	case bytes.Equal(packet, crtp.HighLevelEnableFrame):
		v.hlcPending = true
		return nil
	case bytes.Equal(packet, crtp.HighLevelCommitFrame):
		if v.hlcPending {
			v.hlcPending = false
			v.hlcEnabled = true
		} else {
			v.dropped++
		}
		return nil
	case crtp.Header(packet[0]) == crtp.HeaderCommander:
		v.handleAttitude(packet)
		return nil
	case crtp.Header(packet[0]) == crtp.HeaderHover:
		v.handleHover(packet)
		return nil
	default:
		v.dropped++
		return nil
	}
}

// handlePing echoes a link ping. A muted link swallows the reply,
// which is how tests stage heartbeat loss.
func (v *VirtualDrone) handlePing(packet []byte) [][]byte {
	if !crtp.VerifyChecksum(packet) {
		v.dropped++
		return nil
	}
	v.pings++
	if v.linkMuted {
		return nil
	}
	echo := make([]byte, len(packet))
	copy(echo, packet)
	return [][]byte{echo}
}

// handleLogControl manages the voltage log block. Control requests are
// acknowledged on the log control channel; the session ignores those
// acks, the same way the app does.
func (v *VirtualDrone) handleLogControl(packet []byte) [][]byte {
	switch {
	case bytes.Equal(packet, crtp.VoltageLogConfigFrame):
		v.logConfigured = true
		return [][]byte{v.logControlAck(packet[1], 0x00)}
	case bytes.Equal(packet, crtp.VoltageLogStartFrame):
		if !v.logConfigured {
			return [][]byte{v.logControlAck(packet[1], 0x01)}
		}
		v.streaming = true
		return [][]byte{v.logControlAck(packet[1], 0x00), v.voltageFrame()}
	case bytes.Equal(packet, crtp.VoltageLogStopFrame):
		v.streaming = false
		return [][]byte{v.logControlAck(packet[1], 0x00)}
	default:
		v.dropped++
		return nil
	}
}

func (v *VirtualDrone) handleAttitude(packet []byte) {
	roll, pitch, yaw, thrust, ok := crtp.DecodeCommander(packet)
	if !ok {
		v.dropped++
		return
	}

	v.attitudes = append(v.attitudes, AttitudeSetpoint{
		Roll: roll, Pitch: pitch, Yaw: yaw, Thrust: thrust,
	})

	if roll == 0 && pitch == 0 && yaw == 0 && thrust == 0 {
		v.zeroRun++
		if v.zeroRun >= v.armThreshold {
			v.armed = true
		}
		return
	}
	v.zeroRun = 0
}

func (v *VirtualDrone) handleHover(packet []byte) {
	vx, vy, yawRate, height, ok := crtp.DecodeHover(packet)
	if !ok {
		v.dropped++
		return
	}
	if !v.hlcEnabled {
		v.ignoredHovers++
		return
	}
	v.hovers = append(v.hovers, HoverSetpoint{
		VX: vx, VY: vy, YawRate: yawRate, Height: height,
	})
}

// logControlAck builds the firmware's acknowledgment for a log control
// request. Status 0 is success.
func (v *VirtualDrone) logControlAck(op, status byte) []byte {
	ack := []byte{byte(crtp.HeaderLogControl), op, 0x01, status}
	return append(ack, crtp.Checksum(ack))
}

// voltageFrame builds one log data frame carrying the current battery
// voltage. Bytes 2..4 are the firmware's millisecond tick.
func (v *VirtualDrone) voltageFrame() []byte {
	v.tick += 10
	frame := make([]byte, 9)
	frame[0] = byte(crtp.HeaderLogData)
	frame[1] = 0x01
	frame[2] = byte(v.tick)
	frame[3] = byte(v.tick >> 8)
	frame[4] = byte(v.tick >> 16)
	binary.LittleEndian.PutUint32(frame[5:9], math.Float32bits(v.voltage))
	return frame
}

func (v *VirtualDrone) heightStatusFrame() []byte {
	status := byte(0x00)
	if v.heightSensor {
		status = 0x01
	}
	return []byte{byte(crtp.HeaderParamQuery), 0x02, 0x00, 0x00, status}
}

// VoltageFrame returns a log data frame for the current voltage, for
// tests that pump telemetry without a start request.
func (v *VirtualDrone) VoltageFrame() []byte {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.voltageFrame()
}

// SetVoltage sets the battery voltage reported in log data frames.
func (v *VirtualDrone) SetVoltage(volts float32) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.voltage = volts
}

// SetHeightSensor controls whether the deck query reports a height
// sensor as attached.
func (v *VirtualDrone) SetHeightSensor(present bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.heightSensor = present
}

// MuteLink stops ping echoes without affecting other traffic,
// simulating heartbeat loss on an otherwise working link.
func (v *VirtualDrone) MuteLink(muted bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.linkMuted = muted
}

// SetArmThreshold overrides how many zero-thrust setpoints unlock the
// motors. Tests use small values to keep arming fast.
func (v *VirtualDrone) SetArmThreshold(frames int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.armThreshold = frames
}

// Armed reports whether the zero-thrust run has unlocked the motors.
func (v *VirtualDrone) Armed() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.armed
}

// HighLevelEnabled reports whether the enable and commit pair has been
// seen.
func (v *VirtualDrone) HighLevelEnabled() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.hlcEnabled
}

// Streaming reports whether the voltage log block is started.
func (v *VirtualDrone) Streaming() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.streaming
}

// Attitudes returns a copy of every valid commander setpoint received.
func (v *VirtualDrone) Attitudes() []AttitudeSetpoint {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]AttitudeSetpoint, len(v.attitudes))
	copy(out, v.attitudes)
	return out
}

// Hovers returns a copy of every hover setpoint accepted after the
// high-level commander was enabled.
func (v *VirtualDrone) Hovers() []HoverSetpoint {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]HoverSetpoint, len(v.hovers))
	copy(out, v.hovers)
	return out
}

// IgnoredHovers counts hover setpoints received before the high-level
// commander was enabled.
func (v *VirtualDrone) IgnoredHovers() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.ignoredHovers
}

// Dropped counts packets that were malformed or had no effect.
func (v *VirtualDrone) Dropped() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.dropped
}

// Pings counts link pings received, echoed or not.
func (v *VirtualDrone) Pings() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.pings
}

// Reset restores the power-on state: locked motors, no log block, no
// high-level commander, empty setpoint history.
func (v *VirtualDrone) Reset() {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.attitudes = nil
	v.hovers = nil
	v.zeroRun = 0
	v.ignoredHovers = 0
	v.dropped = 0
	v.pings = 0
	v.tick = 0
	v.linkMuted = false
	v.logConfigured = false
	v.streaming = false
	v.hlcPending = false
	v.hlcEnabled = false
	v.armed = false
}
