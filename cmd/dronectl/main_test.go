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

package main

import (
	"context"
	"errors"
	"testing"
	"time"

	espdrone "github.com/espdrone-community/go-espdrone"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDrone(t *testing.T, opts ...espdrone.Option) (*espdrone.Drone, *espdrone.MockTransport) {
	t.Helper()

	mock := espdrone.NewMockTransport()
	drone, err := espdrone.New(mock, opts...)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = drone.Close()
	})
	return drone, mock
}

func TestRunDetectMode(t *testing.T) {
	t.Parallel()

	t.Run("No_Deck_Times_Out", func(t *testing.T) {
		t.Parallel()

		drone, mock := newTestDrone(t, espdrone.WithDetectTimeout(150*time.Millisecond))

		err := runDetectMode(context.Background(), drone, nil)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, mock.SentCount(0x2D), 1)
	})

	t.Run("Deck_Present", func(t *testing.T) {
		t.Parallel()

		drone, mock := newTestDrone(t)

		go func() {
			for mock.SentCount(0x2D) == 0 {
				time.Sleep(2 * time.Millisecond)
			}
			mock.InjectFrame([]byte{0x2D, 0x02, 0x00, 0x00, 0x01})
		}()

		err := runDetectMode(context.Background(), drone, nil)
		require.NoError(t, err)
	})

	t.Run("Cancelled_Context_Propagates", func(t *testing.T) {
		t.Parallel()

		drone, _ := newTestDrone(t)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		err := runDetectMode(ctx, drone, nil)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestRunMonitorMode_SamplesUntilCancelled(t *testing.T) {
	t.Parallel()

	cfg := espdrone.DefaultConfig()
	cfg.VoltagePeriod = 50 * time.Millisecond
	cfg.LogStartDelay = time.Millisecond
	cfg.LogStopDelay = time.Millisecond
	drone, mock := newTestDrone(t, espdrone.WithConfig(cfg))

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()

	err := runMonitorMode(ctx, drone)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.GreaterOrEqual(t, mock.SentCount(0x5D), 3)
}

func TestWaitForLink(t *testing.T) {
	t.Parallel()

	t.Run("Resolves_On_Heartbeat", func(t *testing.T) {
		t.Parallel()

		drone, mock := newTestDrone(t)

		go func() {
			time.Sleep(30 * time.Millisecond)
			mock.InjectFrame([]byte{0xFD, 0x00, 0xFD})
		}()

		err := waitForLink(context.Background(), drone, time.Second)
		assert.NoError(t, err)
	})

	t.Run("Times_Out_Without_Replies", func(t *testing.T) {
		t.Parallel()

		drone, _ := newTestDrone(t)

		err := waitForLink(context.Background(), drone, 100*time.Millisecond)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no heartbeat reply")
	})
}

func TestApplyKey(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("Velocity_Clamps", func(t *testing.T) {
		t.Parallel()

		drone, _ := newTestDrone(t)
		state := &flightState{height: defaultHeight}

		for i := 0; i < 5; i++ {
			assert.True(t, state.applyKey(ctx, drone, 'w'))
		}
		assert.InDelta(t, maxVelocity, state.vx, 0.001)

		for i := 0; i < 10; i++ {
			state.applyKey(ctx, drone, 's')
		}
		assert.InDelta(t, -maxVelocity, state.vx, 0.001)
	})

	t.Run("Height_Stays_In_Bounds", func(t *testing.T) {
		t.Parallel()

		drone, _ := newTestDrone(t)
		state := &flightState{height: defaultHeight}

		for i := 0; i < 10; i++ {
			state.applyKey(ctx, drone, 'f')
		}
		assert.InDelta(t, minHeight, state.height, 0.001)

		for i := 0; i < 20; i++ {
			state.applyKey(ctx, drone, 'r')
		}
		assert.InDelta(t, maxHeight, state.height, 0.001)
	})

	t.Run("Hold_Zeroes_Velocities", func(t *testing.T) {
		t.Parallel()

		drone, _ := newTestDrone(t)
		state := &flightState{vx: 0.4, vy: -0.2, yawRate: 60, height: defaultHeight}

		state.applyKey(ctx, drone, 'h')
		assert.Zero(t, state.vx)
		assert.Zero(t, state.vy)
		assert.Zero(t, state.yawRate)
	})

	t.Run("Space_Cuts_Motors", func(t *testing.T) {
		t.Parallel()

		drone, mock := newTestDrone(t)
		state := &flightState{height: defaultHeight, flying: true}

		state.applyKey(ctx, drone, ' ')
		assert.False(t, state.flying)
		assert.Equal(t, 1, mock.SentCount(0x30))
	})

	t.Run("Exit_Requests_Stop", func(t *testing.T) {
		t.Parallel()

		drone, _ := newTestDrone(t)
		state := &flightState{height: defaultHeight}

		assert.False(t, state.applyKey(ctx, drone, 'x'))
	})

	t.Run("Unknown_Key_Ignored", func(t *testing.T) {
		t.Parallel()

		drone, mock := newTestDrone(t)
		state := &flightState{height: defaultHeight}

		assert.True(t, state.applyKey(ctx, drone, '?'))
		assert.Zero(t, state.vx)
		assert.Equal(t, 0, mock.SentCount(0x30), "no setpoint may leave on an unknown key")
	})
}

func TestReadRunes(t *testing.T) {
	t.Parallel()

	t.Run("Forwards_Until_Terminal_Fails", func(t *testing.T) {
		t.Parallel()

		keys := []rune{'w', 'a', 'x'}
		i := 0
		read := func() (rune, error) {
			if i >= len(keys) {
				return 0, errors.New("terminal closed")
			}
			r := keys[i]
			i++
			return r, nil
		}

		ch := make(chan rune, len(keys))
		finished := make(chan struct{})
		go func() {
			readRunes(read, ch, make(chan struct{}))
			close(finished)
		}()

		for _, want := range keys {
			select {
			case got := <-ch:
				assert.Equal(t, want, got)
			case <-time.After(time.Second):
				t.Fatalf("keypress %q never forwarded", want)
			}
		}

		select {
		case <-finished:
		case <-time.After(time.Second):
			t.Fatal("reader did not return after the terminal failed")
		}
	})

	t.Run("Done_Releases_Blocked_Forward", func(t *testing.T) {
		t.Parallel()

		// The fly loop has returned: nobody receives, so the forward
		// blocks. Closing done must release the goroutine.
		read := func() (rune, error) { return 'w', nil }
		ch := make(chan rune)
		done := make(chan struct{})

		finished := make(chan struct{})
		go func() {
			readRunes(read, ch, done)
			close(finished)
		}()

		close(done)
		select {
		case <-finished:
		case <-time.After(time.Second):
			t.Fatal("reader stayed blocked after the session ended")
		}
	})
}

func TestClamp(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		value    float32
		expected float32
	}{
		{name: "Below_Range", value: -2, expected: -1},
		{name: "In_Range", value: 0.5, expected: 0.5},
		{name: "Above_Range", value: 3, expected: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.InDelta(t, tt.expected, clamp(tt.value, -1, 1), 0.001)
		})
	}
}

func TestRun_RejectsModeConflict(t *testing.T) {
	t.Parallel()

	cfg := &config{detect: true, hover: true}

	err := run(context.Background(), cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "choose at most one")
}
