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
	"context"
	"time"

	"github.com/espdrone-community/go-espdrone/internal/crtp"
)

// detectRequest is one in-flight height-sensor query. Each caller gets
// its own buffered result channel so an answer is never lost and never
// delivered twice.
type detectRequest struct {
	result chan bool
	gen    uint64
}

// DetectHeightSensor asks the vehicle whether a height sensor deck is
// fitted. The query is sent several times with short gaps because the
// firmware drops parameter reads while busy; the first reply wins. A
// timeout, a cancelled context, or a closed session all report false.
// UDP loss makes a false negative possible, so flight code should
// treat false as "do not rely on height hold", not as proof of absent
// hardware.
func (d *Drone) DetectHeightSensor(ctx context.Context) bool {
	if d.closed.Load() {
		return false
	}

	request := d.newDetectRequest()

	deadline := time.NewTimer(d.config.DetectTimeout)
	defer deadline.Stop()

	for attempt := 0; attempt < d.config.DetectAttempts; attempt++ {
		if attempt > 0 {
			present, resolved := d.waitBetweenSends(ctx, request, deadline.C)
			if resolved {
				return present
			}
		}
		d.sendLogged(crtp.HeightSensorRequestFrame, "height sensor query")
	}

	select {
	case present := <-request.result:
		return present
	case <-deadline.C:
		d.abandonDetect(request)
		Debugf("height sensor detection gave up: %v", ErrDetectionTimeout)
		return false
	case <-ctx.Done():
		d.abandonDetect(request)
		return false
	case <-d.done:
		d.abandonDetect(request)
		return false
	}
}

// waitBetweenSends pauses for the resend gap. If the query resolves
// during the gap, by reply, deadline, cancellation, or shutdown, it
// returns resolved=true and the loop stops resending.
func (d *Drone) waitBetweenSends(ctx context.Context, request *detectRequest, deadline <-chan time.Time) (present, resolved bool) {
	gap := time.NewTimer(d.config.DetectRetryInterval)
	defer gap.Stop()

	select {
	case present = <-request.result:
		return present, true
	case <-deadline:
		d.abandonDetect(request)
		Debugf("height sensor detection gave up: %v", ErrDetectionTimeout)
		return false, true
	case <-ctx.Done():
		d.abandonDetect(request)
		return false, true
	case <-d.done:
		d.abandonDetect(request)
		return false, true
	case <-gap.C:
		return false, false
	}
}

// newDetectRequest installs a fresh pending query. A caller still
// waiting on an earlier query is resolved with false; only the newest
// query can be completed by the dispatcher.
func (d *Drone) newDetectRequest() *detectRequest {
	d.detectMu.Lock()
	defer d.detectMu.Unlock()

	if d.pendingDetect != nil {
		select {
		case d.pendingDetect.result <- false:
		default:
		}
	}

	d.detectGen++
	request := &detectRequest{
		result: make(chan bool, 1),
		gen:    d.detectGen,
	}
	d.pendingDetect = request
	return request
}

// abandonDetect clears the pending slot if it still belongs to this
// request. A newer request that superseded it is left alone.
func (d *Drone) abandonDetect(request *detectRequest) {
	d.detectMu.Lock()
	if d.pendingDetect != nil && d.pendingDetect.gen == request.gen {
		d.pendingDetect = nil
	}
	d.detectMu.Unlock()
}

// completeHeightDetection resolves the pending query, if any. Called
// by the dispatcher on a status reply, and by Close with false to
// release a blocked caller. Replies nobody is waiting for are dropped.
func (d *Drone) completeHeightDetection(present bool) {
	d.detectMu.Lock()
	request := d.pendingDetect
	d.pendingDetect = nil
	d.detectMu.Unlock()

	if request == nil {
		return
	}
	select {
	case request.result <- present:
	default:
	}
}
