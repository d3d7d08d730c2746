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

import "github.com/espdrone-community/go-espdrone/internal/crtp"

// handleInbound classifies one inbound frame by its CRTP header and
// routes it to the owning monitor. It runs on the transport's receive
// goroutine, one frame at a time. Frames that are malformed, or that
// arrive on a port this client does not speak, are dropped without a
// log entry: on a chatty WiFi link they are routine, not errors.
func (d *Drone) handleInbound(packet []byte) {
	if len(packet) == 0 {
		return
	}

	header := crtp.Header(packet[0])
	switch header.Port() {
	case crtp.PortLink:
		if header.Channel() == crtp.ChannelLinkEcho {
			d.handleHeartbeatReply()
		}
	case crtp.PortLog:
		if header.Channel() == crtp.ChannelLogData {
			if volts, ok := crtp.DecodeVoltage(packet); ok {
				d.handleVoltageSample(volts)
			}
		}
	case crtp.PortParam:
		if header.Channel() == crtp.ChannelParamQuery {
			if present, ok := crtp.DecodeHeightSensorStatus(packet); ok {
				d.completeHeightDetection(present)
			}
		}
	default:
		// Traffic for ports this client never subscribes to.
	}
}
