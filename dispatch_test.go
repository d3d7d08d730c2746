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
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHandleInbound_RoutesByHeader(t *testing.T) {
	t.Parallel()

	tests := []struct {
		verify func(*testing.T, *Drone)
		name   string
		frame  []byte
	}{
		{
			name:  "Link_Echo_Marks_Connected",
			frame: []byte{0xFD, 0x00, 0xFD},
			verify: func(t *testing.T, drone *Drone) {
				assert.True(t, drone.Connected())
			},
		},
		{
			name:  "Log_Data_Updates_Voltage",
			frame: voltageReply(3.85),
			verify: func(t *testing.T, drone *Drone) {
				volts, ok := drone.Voltage()
				assert.True(t, ok)
				assert.InDelta(t, 3.85, volts, 0.0001)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			drone, mock := newTestDrone(t)

			mock.InjectFrame(tt.frame)
			tt.verify(t, drone)
		})
	}
}

func TestHandleInbound_DropsJunkSilently(t *testing.T) {
	t.Parallel()
	drone, mock := newTestDrone(t)

	frames := [][]byte{
		nil,
		{},
		{0x99},
		{0x70, 0x01, 0x02},             // setpoint port, nothing listens
		{0xF0, 0x00},                   // link port, wrong channel
		{0x52, 0x02, 0x00, 0x00, 0x00}, // log data, wrong block id
		{0x52, 0x01, 0x00},             // log data, truncated
		{0x2D, 0x02},                   // param reply, truncated
		{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF},
	}
	for _, frame := range frames {
		mock.InjectFrame(frame)
	}

	assert.False(t, drone.Connected())
	_, ok := drone.Voltage()
	assert.False(t, ok)
}

func TestHandleInbound_InterleavedTraffic(t *testing.T) {
	t.Parallel()
	drone, mock := newTestDrone(t)

	// A realistic burst: echo, garbage, telemetry, more garbage.
	mock.InjectFrame([]byte{0xFD, 0x00, 0xFD})
	mock.InjectFrame([]byte{0xAB, 0xCD})
	mock.InjectFrame(voltageReply(3.6))
	mock.InjectFrame([]byte{0x00})

	assert.True(t, drone.Connected())
	volts, ok := drone.Voltage()
	assert.True(t, ok)
	assert.InDelta(t, 3.6, volts, 0.0001)
}
