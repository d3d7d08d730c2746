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

// Package crtp implements the CRTP-derived wire format spoken by the
// ESP-drone firmware: packet headers, the byte-sum checksum, setpoint
// encoding and telemetry decoding. The package is pure; it performs no
// I/O and never panics on malformed input.
package crtp

// Port is the high nibble of a packet header and selects the firmware
// subsystem a packet is addressed to.
type Port byte

// Channel is the low nibble of a packet header and selects a function
// within a port.
type Channel byte

// Header is the first byte of every packet: port in the high nibble,
// channel in the low nibble.
type Header byte

// Ports used by this client. The firmware defines more; packets for
// ports not listed here are dropped by the dispatcher.
const (
	// PortParam carries parameter reads/writes and the height-sensor
	// deck query.
	PortParam Port = 0x2
	// PortCommander carries roll/pitch/yaw/thrust setpoints.
	PortCommander Port = 0x3
	// PortLog carries log block configuration and log data.
	PortLog Port = 0x5
	// PortSetpoint carries generic packed setpoints such as hover.
	PortSetpoint Port = 0x7
	// PortLink carries link-layer service traffic such as echo.
	PortLink Port = 0xF
)

// Channels used by this client.
const (
	// ChannelLogData is the log port channel on which the firmware
	// streams configured log variables.
	ChannelLogData Channel = 0x2
	// ChannelLogControl is the log port channel for block create,
	// start and stop requests.
	ChannelLogControl Channel = 0xD
	// ChannelParamQuery is the param port channel used for the
	// height-sensor deck query and its reply.
	ChannelParamQuery Channel = 0xD
	// ChannelLinkEcho is the link port channel used for heartbeat
	// pings and their replies.
	ChannelLinkEcho Channel = 0xD
)

// Packet headers this client sends or routes on.
const (
	// HeaderCommander starts a 16-byte attitude setpoint packet.
	HeaderCommander Header = 0x30
	// HeaderHover starts a 19-byte hover setpoint packet.
	HeaderHover Header = 0x7C
	// HeaderLogControl starts log block configuration packets.
	HeaderLogControl Header = 0x5D
	// HeaderLogData starts inbound log data packets.
	HeaderLogData Header = 0x52
	// HeaderParamQuery starts the height-sensor query and its reply.
	HeaderParamQuery Header = 0x2D
	// HeaderLinkEcho starts heartbeat pings and their replies.
	HeaderLinkEcho Header = 0xFD
)

// MakeHeader packs a port and channel into a header byte.
func MakeHeader(port Port, channel Channel) Header {
	return Header(byte(port)<<4 | byte(channel)&0x0F)
}

// Port returns the port nibble of the header.
func (h Header) Port() Port {
	return Port(h >> 4)
}

// Channel returns the channel nibble of the header.
func (h Header) Channel() Channel {
	return Channel(h & 0x0F)
}
