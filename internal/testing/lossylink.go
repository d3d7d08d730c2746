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

package testing

import (
	"math/rand/v2"
	"time"
)

// LinkProfile shapes the simulated downlink between the virtual drone
// and the session: per-frame latency, loss and duplication, the three
// things UDP over a congested 2.4GHz channel actually does. The zero
// value is a perfect link.
//
// This is useful for testing staleness handling, detection retries and
// callback behavior that only misbehaves with realistic timing.
type LinkProfile struct {
	// MaxLatency is the upper bound on the uniformly random delay
	// applied before each frame is handed to the session.
	MaxLatency time.Duration
	// DropRate is the probability in [0, 1] that a frame is lost.
	DropRate float64
	// DuplicateRate is the probability in [0, 1] that a frame arrives
	// twice.
	DuplicateRate float64
	// Seed makes the link deterministic across runs. Zero seeds from
	// entropy.
	Seed uint64
}

// DefaultLinkProfile returns a mildly unreliable link, about what a
// busy apartment-building channel does to the vehicle in practice.
func DefaultLinkProfile() LinkProfile {
	return LinkProfile{
		MaxLatency:    5 * time.Millisecond,
		DropRate:      0.05,
		DuplicateRate: 0.01,
	}
}

// lossyLink applies a LinkProfile to individual frames. Methods are
// not safe for concurrent use; the simulator transport calls them only
// from its delivery goroutine.
type lossyLink struct {
	rng     *rand.Rand
	profile LinkProfile
}

func newLossyLink(profile LinkProfile) *lossyLink {
	var rng *rand.Rand
	if profile.Seed != 0 {
		rng = rand.New(rand.NewPCG(profile.Seed, profile.Seed^0xDEADBEEF)) //nolint:gosec // Test code, not crypto
	} else {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())) //nolint:gosec // Test code, not crypto
	}
	return &lossyLink{profile: profile, rng: rng}
}

// drop reports whether the next frame should be lost.
func (l *lossyLink) drop() bool {
	return l.profile.DropRate > 0 && l.rng.Float64() < l.profile.DropRate
}

// duplicate reports whether the next frame should arrive twice.
func (l *lossyLink) duplicate() bool {
	return l.profile.DuplicateRate > 0 && l.rng.Float64() < l.profile.DuplicateRate
}

// delay returns the latency to apply before the next delivery.
func (l *lossyLink) delay() time.Duration {
	if l.profile.MaxLatency <= 0 {
		return 0
	}
	return time.Duration(l.rng.Int64N(int64(l.profile.MaxLatency) + 1))
}
