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

// StartVoltageMonitoring begins periodic battery sampling. Each cycle
// reconfigures the firmware's log block, starts it long enough for one
// sample to flow back, and stops it again. Starting an already running
// monitor is a no-op.
func (d *Drone) StartVoltageMonitoring() error {
	d.stateMu.Lock()
	// Checked under stateMu: Close stops the monitor under the same
	// lock before it waits on the group, so the loop can never be
	// added after that wait has begun.
	if d.closed.Load() {
		d.stateMu.Unlock()
		return ErrDroneClosed
	}
	if d.voltageStop != nil {
		d.stateMu.Unlock()
		return nil
	}
	stop := make(chan struct{})
	d.voltageStop = stop
	d.wg.Add(1)
	d.stateMu.Unlock()

	go d.voltageLoop(stop)
	return nil
}

// StopVoltageMonitoring cancels periodic battery sampling. It is safe
// to call when monitoring never started.
func (d *Drone) StopVoltageMonitoring() {
	d.stateMu.Lock()
	stop := d.voltageStop
	d.voltageStop = nil
	d.stateMu.Unlock()

	if stop != nil {
		close(stop)
	}
}

// SampleVoltageOnce runs a single log config, start, stop sequence on
// the caller's goroutine. The decoded sample, if the vehicle answers,
// arrives through OnVoltage and Voltage.
func (d *Drone) SampleVoltageOnce() error {
	if d.closed.Load() {
		return ErrDroneClosed
	}
	d.runVoltageSequence()
	return nil
}

// Voltage returns the last decoded battery voltage. The second return
// is false until the first sample arrives.
func (d *Drone) Voltage() (float32, bool) {
	d.stateMu.RLock()
	defer d.stateMu.RUnlock()
	return d.lastVoltage, d.haveVoltage
}

// voltageLoop runs one sequence per period. stop only cancels the
// recurring trigger; a sequence already under way still finishes, so
// the firmware's log block is never left streaming.
func (d *Drone) voltageLoop(stop <-chan struct{}) {
	defer d.wg.Done()

	d.runVoltageSequence()

	ticker := time.NewTicker(d.config.VoltagePeriod)
	defer ticker.Stop()

	for {
		select {
		case <-d.done:
			return
		case <-stop:
			return
		case <-ticker.C:
			d.runVoltageSequence()
		}
	}
}

// sampleLoop serializes one-shot samples requested by the heartbeat
// monitor on connect edges, keeping them off the receive goroutine.
func (d *Drone) sampleLoop() {
	defer d.wg.Done()

	for {
		select {
		case <-d.done:
			return
		case <-d.sampleCh:
			d.runVoltageSequence()
		}
	}
}

// requestVoltageSample schedules a one-shot sample. A request that
// lands while one is already queued is coalesced into it.
func (d *Drone) requestVoltageSample() {
	select {
	case d.sampleCh <- struct{}{}:
	default:
	}
}

// runVoltageSequence pushes one config, start, stop cycle to the
// vehicle. A failed send is logged and the rest of the sequence still
// runs; the next cycle is the retry. Only session close interrupts a
// cycle once it has started.
func (d *Drone) runVoltageSequence() {
	d.sendLogged(crtp.VoltageLogConfigFrame, "voltage log config")
	if !d.sleep(d.config.LogStartDelay) {
		return
	}
	d.sendLogged(crtp.VoltageLogStartFrame, "voltage log start")
	if !d.sleep(d.config.LogStopDelay) {
		return
	}
	d.sendLogged(crtp.VoltageLogStopFrame, "voltage log stop")
}

func (d *Drone) sendLogged(frame []byte, what string) {
	if err := d.transport.Send(frame); err != nil {
		Debugf("%s send failed: %v", what, err)
	}
}

// sleep waits for the given duration unless the session closes first.
// It reports whether the full duration elapsed.
func (d *Drone) sleep(duration time.Duration) bool {
	timer := time.NewTimer(duration)
	defer timer.Stop()

	select {
	case <-timer.C:
		return true
	case <-d.done:
		return false
	}
}

// handleVoltageSample records a decoded sample and notifies the
// voltage callback.
func (d *Drone) handleVoltageSample(volts float32) {
	d.stateMu.Lock()
	d.lastVoltage = volts
	d.haveVoltage = true
	callback := d.onVoltage
	d.stateMu.Unlock()

	Debugf("battery voltage %.2fV", volts)
	if callback != nil {
		callback(volts)
	}
}
