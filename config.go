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
	"errors"
	"fmt"
	"time"
)

// Config holds the timing behavior of a drone session. The defaults
// match the firmware's expectations; tests compress them to keep
// runtimes short.
type Config struct {
	// HeartbeatPeriod is the cadence at which pings are sent and
	// staleness is evaluated.
	HeartbeatPeriod time.Duration
	// StalenessWindow is how long the link may stay silent before the
	// session reports Disconnected.
	StalenessWindow time.Duration
	// VoltagePeriod is the cadence of battery voltage sampling.
	VoltagePeriod time.Duration
	// LogStartDelay is the pause between the log config and log start
	// packets of one voltage sequence.
	LogStartDelay time.Duration
	// LogStopDelay is the pause between the log start and log stop
	// packets of one voltage sequence.
	LogStopDelay time.Duration
	// DetectRetryInterval is the gap between height-sensor query
	// resends.
	DetectRetryInterval time.Duration
	// DetectTimeout bounds a whole height-sensor detection attempt.
	DetectTimeout time.Duration
	// DetectAttempts is how many times the height-sensor query is
	// sent before giving up on resends.
	DetectAttempts int
}

// DefaultConfig returns the default session configuration
func DefaultConfig() *Config {
	return &Config{
		HeartbeatPeriod:     1 * time.Second,
		StalenessWindow:     1 * time.Second,
		VoltagePeriod:       10 * time.Second,
		LogStartDelay:       100 * time.Millisecond,
		LogStopDelay:        300 * time.Millisecond,
		DetectRetryInterval: 500 * time.Millisecond,
		DetectTimeout:       5 * time.Second,
		DetectAttempts:      3,
	}
}

// validate rejects configurations the monitors cannot run on.
func (c *Config) validate() error {
	if c.HeartbeatPeriod <= 0 {
		return errors.New("heartbeat period must be positive")
	}
	if c.StalenessWindow <= 0 {
		return errors.New("staleness window must be positive")
	}
	if c.VoltagePeriod <= 0 {
		return errors.New("voltage period must be positive")
	}
	if c.DetectTimeout <= 0 {
		return errors.New("detect timeout must be positive")
	}
	if c.DetectAttempts < 1 {
		return errors.New("detect attempts must be at least 1")
	}
	return nil
}

// Option represents a functional option for New
type Option func(*Drone) error

// WithConfig replaces the whole session configuration
func WithConfig(cfg *Config) Option {
	return func(d *Drone) error {
		if cfg == nil {
			return errors.New("config cannot be nil")
		}
		if err := cfg.validate(); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}
		d.config = cfg
		return nil
	}
}

// WithHeartbeatPeriod overrides the ping cadence and, unless set
// separately, the staleness window that rides on it
func WithHeartbeatPeriod(period time.Duration) Option {
	return func(d *Drone) error {
		if period <= 0 {
			return errors.New("heartbeat period must be positive")
		}
		d.config.HeartbeatPeriod = period
		return nil
	}
}

// WithStalenessWindow overrides how long link silence is tolerated
func WithStalenessWindow(window time.Duration) Option {
	return func(d *Drone) error {
		if window <= 0 {
			return errors.New("staleness window must be positive")
		}
		d.config.StalenessWindow = window
		return nil
	}
}

// WithVoltagePeriod overrides the battery sampling cadence
func WithVoltagePeriod(period time.Duration) Option {
	return func(d *Drone) error {
		if period <= 0 {
			return errors.New("voltage period must be positive")
		}
		d.config.VoltagePeriod = period
		return nil
	}
}

// WithDetectTimeout overrides the height-sensor detection deadline
func WithDetectTimeout(timeout time.Duration) Option {
	return func(d *Drone) error {
		if timeout <= 0 {
			return errors.New("detect timeout must be positive")
		}
		d.config.DetectTimeout = timeout
		return nil
	}
}
