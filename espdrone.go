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

// Package espdrone provides a client for ESP-drone quadcopters speaking
// the CRTP-derived protocol over WiFi UDP. A Drone owns one transport,
// keeps the link alive with periodic pings, samples battery telemetry,
// and exposes setpoint and deck-detection operations on top.
package espdrone

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/espdrone-community/go-espdrone/internal/syncutil"
)

// Drone is a session with a single vehicle. All methods are safe for
// concurrent use. Callbacks run without internal locks held; the
// connection and voltage callbacks are invoked from the transport's
// receive goroutine and from the heartbeat ticker, so they should not
// block for long.
type Drone struct {
	transport Transport
	config    *Config

	stateMu       syncutil.RWMutex
	connected     bool
	lastHeartbeat time.Time
	lastVoltage   float32
	haveVoltage   bool
	voltageStop   chan struct{}

	onConnectionChange func(connected bool)
	onVoltage          func(volts float32)

	detectMu      syncutil.Mutex
	pendingDetect *detectRequest
	detectGen     uint64

	sampleCh chan struct{}
	done     chan struct{}
	closed   atomic.Bool
	wg       sync.WaitGroup
}

// New creates a drone session on the given transport and starts the
// heartbeat monitor. The transport must already be open; the session
// takes ownership of it and closes it in Close.
func New(transport Transport, opts ...Option) (*Drone, error) {
	if transport == nil {
		return nil, ErrNoTransport
	}

	drone := &Drone{
		transport: transport,
		config:    DefaultConfig(),
		sampleCh:  make(chan struct{}, 1),
		done:      make(chan struct{}),
	}

	for _, opt := range opts {
		if err := opt(drone); err != nil {
			return nil, err
		}
	}

	transport.SetHandler(drone.handleInbound)

	drone.wg.Add(2)
	go drone.heartbeatLoop()
	go drone.sampleLoop()

	return drone, nil
}

// Connected reports whether a heartbeat reply arrived within the
// staleness window.
func (d *Drone) Connected() bool {
	d.stateMu.RLock()
	defer d.stateMu.RUnlock()
	return d.connected
}

// OnConnectionChange registers a callback fired on connect and
// disconnect edges. Repeated heartbeats in the same state do not fire
// it again. Passing nil removes the callback.
func (d *Drone) OnConnectionChange(callback func(connected bool)) {
	d.stateMu.Lock()
	d.onConnectionChange = callback
	d.stateMu.Unlock()
}

// OnVoltage registers a callback fired for every decoded battery
// voltage sample. Passing nil removes the callback.
func (d *Drone) OnVoltage(callback func(volts float32)) {
	d.stateMu.Lock()
	d.onVoltage = callback
	d.stateMu.Unlock()
}

// Transport returns the transport this session runs on.
func (d *Drone) Transport() Transport {
	return d.transport
}

// Close shuts the session down: the transport stops delivering inbound
// frames, the heartbeat and telemetry tickers are cancelled, and any
// caller blocked in DetectHeightSensor is released with a negative
// answer. Close is idempotent.
func (d *Drone) Close() error {
	if !d.closed.CompareAndSwap(false, true) {
		return nil
	}

	// Transport first, so no handler fires into a torn-down session.
	closeErr := d.transport.Close()

	close(d.done)
	d.StopVoltageMonitoring()
	d.wg.Wait()

	d.completeHeightDetection(false)

	if closeErr != nil {
		return fmt.Errorf("failed to close transport: %w", closeErr)
	}
	return nil
}
