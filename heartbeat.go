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
	"time"

	"github.com/espdrone-community/go-espdrone/internal/crtp"
)

// heartbeatLoop pings the vehicle on every tick and expires the link
// when replies stop arriving. The first ping goes out immediately so a
// fresh session does not wait a full period before the vehicle can
// answer.
func (d *Drone) heartbeatLoop() {
	defer d.wg.Done()

	ticker := time.NewTicker(d.config.HeartbeatPeriod)
	defer ticker.Stop()

	d.sendPing()

	for {
		select {
		case <-d.done:
			return
		case <-ticker.C:
			d.sendPing()
			d.expireIfStale()
		}
	}
}

func (d *Drone) sendPing() {
	if err := d.transport.Send(crtp.PingFrame); err != nil {
		Debugf("heartbeat ping failed: %v", err)
	}
}

// expireIfStale flips the session to disconnected when the link has
// been silent for longer than the staleness window. The callback fires
// only on the edge, never on every stale tick.
func (d *Drone) expireIfStale() {
	d.stateMu.Lock()
	stale := d.connected && time.Since(d.lastHeartbeat) > d.config.StalenessWindow
	var callback func(bool)
	if stale {
		d.connected = false
		callback = d.onConnectionChange
	}
	d.stateMu.Unlock()

	if stale {
		Debugf("link stale after %v of silence", d.config.StalenessWindow)
		if callback != nil {
			callback(false)
		}
	}
}

// handleHeartbeatReply records link liveness. On the disconnected to
// connected edge it fires the connection callback and kicks off one
// voltage sample so callers see battery state right after connecting.
func (d *Drone) handleHeartbeatReply() {
	d.stateMu.Lock()
	d.lastHeartbeat = time.Now()
	hadLink := d.connected
	d.connected = true
	callback := d.onConnectionChange
	d.stateMu.Unlock()

	if hadLink {
		return
	}

	Debugln("link established")
	if callback != nil {
		callback(true)
	}
	d.requestVoltageSample()
}
