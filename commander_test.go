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

	"github.com/espdrone-community/go-espdrone/internal/crtp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sentWithHeader returns the packets sent with the given header byte.
func sentWithHeader(mock *MockTransport, header byte) [][]byte {
	var frames [][]byte
	for _, packet := range mock.Sent() {
		if len(packet) > 0 && packet[0] == header {
			frames = append(frames, packet)
		}
	}
	return frames
}

func TestSendCommander_WireFormat(t *testing.T) {
	t.Parallel()
	drone, mock := newTestDrone(t)

	require.NoError(t, drone.SendCommander(0, 1.0, 0, 0x1234))

	frames := sentWithHeader(mock, 0x30)
	require.Len(t, frames, 1)
	// Pitch is negated on the wire and thrust is little-endian.
	assert.Equal(t, []byte{
		0x30,
		0x00, 0x00, 0x00, 0x00,
		0x00, 0x00, 0x80, 0xBF,
		0x00, 0x00, 0x00, 0x00,
		0x34, 0x12,
		0xB5,
	}, frames[0])
}

func TestSendHover_WireFormat(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		want   []byte
		vx     float32
		vy     float32
		yaw    float32
		height float32
	}{
		{
			name:   "Hover_At_Half_Meter",
			height: 0.5,
			want: []byte{
				0x7C, 0x05,
				0x00, 0x00, 0x00, 0x00,
				0x00, 0x00, 0x00, 0x00,
				0x00, 0x00, 0x00, 0x00,
				0x00, 0x00, 0x00, 0x3F,
				0xC0,
			},
		},
		{
			name:   "Forward_Drift",
			vx:     0.3,
			height: 0.8,
			want: []byte{
				0x7C, 0x05,
				0x9A, 0x99, 0x99, 0x3E,
				0x00, 0x00, 0x00, 0x00,
				0x00, 0x00, 0x00, 0x00,
				0xCD, 0xCC, 0x4C, 0x3F,
				0xAF,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			drone, mock := newTestDrone(t)

			require.NoError(t, drone.SendHover(tt.vx, tt.vy, tt.yaw, tt.height))

			frames := sentWithHeader(mock, 0x7C)
			require.Len(t, frames, 1)
			assert.Equal(t, tt.want, frames[0])
		})
	}
}

func TestEnableHighLevelCommander(t *testing.T) {
	t.Parallel()

	t.Run("SendsEnableThenCommit", func(t *testing.T) {
		t.Parallel()
		drone, mock := newTestDrone(t)

		require.NoError(t, drone.EnableHighLevelCommander())

		enables := sentWithHeader(mock, 0x2E)
		commits := sentWithHeader(mock, 0x2F)
		require.Len(t, enables, 1)
		require.Len(t, commits, 1)
		assert.Equal(t, crtp.HighLevelEnableFrame, enables[0])
		assert.Equal(t, crtp.HighLevelCommitFrame, commits[0])

		// The parameter write must precede its commit on the wire.
		var enableIdx, commitIdx int
		for i, packet := range mock.Sent() {
			switch packet[0] {
			case 0x2E:
				enableIdx = i
			case 0x2F:
				commitIdx = i
			}
		}
		assert.Less(t, enableIdx, commitIdx)
	})

	t.Run("AbortsWhenEnableFails", func(t *testing.T) {
		t.Parallel()
		drone, mock := newTestDrone(t)

		mock.SetError(0x2E, assert.AnError)

		err := drone.EnableHighLevelCommander()
		require.Error(t, err)
		assert.Equal(t, 0, mock.SentCount(0x2F), "commit must not follow a failed enable")
	})
}

func TestSendPacket(t *testing.T) {
	t.Parallel()

	t.Run("RawPassthrough", func(t *testing.T) {
		t.Parallel()
		drone, mock := newTestDrone(t)

		raw := []byte{0x6D, 0x01, 0x02, 0x70}
		require.NoError(t, drone.SendPacket(raw))

		frames := sentWithHeader(mock, 0x6D)
		require.Len(t, frames, 1)
		assert.Equal(t, raw, frames[0])
	})

	t.Run("EmptyPacket", func(t *testing.T) {
		t.Parallel()
		drone, _ := newTestDrone(t)

		assert.ErrorIs(t, drone.SendPacket(nil), ErrMalformedFrame)
		assert.ErrorIs(t, drone.SendPacket([]byte{}), ErrMalformedFrame)
	})
}

func TestSenders_AfterClose(t *testing.T) {
	t.Parallel()
	drone, _ := newTestDrone(t)
	require.NoError(t, drone.Close())

	tests := []struct {
		send func() error
		name string
	}{
		{name: "SendCommander", send: func() error { return drone.SendCommander(0, 0, 0, 0) }},
		{name: "SendHover", send: func() error { return drone.SendHover(0, 0, 0, 0.5) }},
		{name: "EnableHighLevelCommander", send: drone.EnableHighLevelCommander},
		{name: "SendPacket", send: func() error { return drone.SendPacket([]byte{0x30}) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.send(), ErrDroneClosed)
		})
	}
}

func TestSendCommander_TransportFailure(t *testing.T) {
	t.Parallel()
	drone, mock := newTestDrone(t)

	mock.SetError(0x30, assert.AnError)

	err := drone.SendCommander(1, 2, 3, 100)
	require.Error(t, err)
	assert.ErrorIs(t, err, assert.AnError)
	assert.Contains(t, err.Error(), "commander")
}
