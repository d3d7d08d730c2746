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

package espdrone

import (
	"fmt"

	"github.com/espdrone-community/go-espdrone/internal/crtp"
)

// SendCommander transmits one attitude setpoint. Angles are in
// degrees, thrust is the raw firmware scale (0 to 65535). Setpoints
// are not repeated automatically; the firmware cuts motors when they
// stop arriving, so callers stream them at their own cadence.
func (d *Drone) SendCommander(roll, pitch, yaw float32, thrust uint16) error {
	if d.closed.Load() {
		return ErrDroneClosed
	}
	if err := d.transport.Send(crtp.EncodeCommander(roll, pitch, yaw, thrust)); err != nil {
		return fmt.Errorf("commander setpoint send failed: %w", err)
	}
	return nil
}

// SendHover transmits one hover setpoint: body-frame velocities in
// m/s, yaw rate in deg/s, and an absolute height in meters. Requires
// a height sensor deck and the high-level commander.
func (d *Drone) SendHover(vx, vy, yawRate, height float32) error {
	if d.closed.Load() {
		return ErrDroneClosed
	}
	if err := d.transport.Send(crtp.EncodeHover(vx, vy, yawRate, height)); err != nil {
		return fmt.Errorf("hover setpoint send failed: %w", err)
	}
	return nil
}

// EnableHighLevelCommander switches the firmware's commander priority
// so hover setpoints are honored. The parameter write is followed by a
// commit packet; the firmware ignores the write without it.
func (d *Drone) EnableHighLevelCommander() error {
	if d.closed.Load() {
		return ErrDroneClosed
	}
	if err := d.transport.Send(crtp.HighLevelEnableFrame); err != nil {
		return fmt.Errorf("high level commander enable failed: %w", err)
	}
	if err := d.transport.Send(crtp.HighLevelCommitFrame); err != nil {
		return fmt.Errorf("high level commander commit failed: %w", err)
	}
	return nil
}

// SendPacket transmits a raw pre-framed packet. It exists for
// experiments with ports this client has no typed API for; the caller
// owns header and checksum correctness.
func (d *Drone) SendPacket(packet []byte) error {
	if d.closed.Load() {
		return ErrDroneClosed
	}
	if len(packet) == 0 {
		return ErrMalformedFrame
	}
	if err := d.transport.Send(packet); err != nil {
		return fmt.Errorf("raw packet send failed: %w", err)
	}
	return nil
}
