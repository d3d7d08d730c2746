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

import "testing"

func TestHeaderNibbles(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		header  Header
		port    Port
		channel Channel
	}{
		{name: "commander", header: HeaderCommander, port: PortCommander, channel: 0x0},
		{name: "hover", header: HeaderHover, port: PortSetpoint, channel: 0xC},
		{name: "log control", header: HeaderLogControl, port: PortLog, channel: ChannelLogControl},
		{name: "log data", header: HeaderLogData, port: PortLog, channel: ChannelLogData},
		{name: "param query", header: HeaderParamQuery, port: PortParam, channel: ChannelParamQuery},
		{name: "link echo", header: HeaderLinkEcho, port: PortLink, channel: ChannelLinkEcho},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := tt.header.Port(); got != tt.port {
				t.Errorf("Port() = %#x, want %#x", got, tt.port)
			}
			if got := tt.header.Channel(); got != tt.channel {
				t.Errorf("Channel() = %#x, want %#x", got, tt.channel)
			}
			if got := MakeHeader(tt.port, tt.channel); got != tt.header {
				t.Errorf("MakeHeader(%#x, %#x) = %#x, want %#x", tt.port, tt.channel, got, tt.header)
			}
		})
	}
}

func TestMakeHeaderMasksNibbles(t *testing.T) {
	t.Parallel()
	// Out-of-range channel bits must not bleed into the port nibble.
	if got := MakeHeader(0x3, 0x1F); got != Header(0x3F) {
		t.Errorf("MakeHeader(0x3, 0x1F) = %#x, want 0x3f", got)
	}
}
