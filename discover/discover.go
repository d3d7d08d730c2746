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

// Package discover finds reachable ESP-drone vehicles. A UDP probe is
// a real protocol exchange: the endpoint counts as a drone only when
// it answers a ping on the link port. Serial enumeration just lists
// candidate bridge ports; callers still have to open one to know.
package discover

import (
	"context"
	"errors"
	"fmt"
	"time"

	espdrone "github.com/espdrone-community/go-espdrone"
	"github.com/espdrone-community/go-espdrone/internal/crtp"
	"github.com/espdrone-community/go-espdrone/transport/udp"
	goserial "go.bug.st/serial"
)

// ErrNoDevicesFound indicates no vehicle answered anywhere.
var ErrNoDevicesFound = errors.New("no drones found")

// DeviceInfo describes one discovered or candidate vehicle endpoint.
type DeviceInfo struct {
	// Transport is "udp" for probed vehicles, "serial" for candidate
	// bridge ports.
	Transport string
	// Address is the host:port or device path to connect to.
	Address string
	// Name is a human-readable label.
	Name string
}

// String returns a human-readable representation of the endpoint.
func (d DeviceInfo) String() string {
	return fmt.Sprintf("%s drone at %s (%s)", d.Transport, d.Address, d.Name)
}

// Options configures probing behavior.
type Options struct {
	// Timeout bounds one probe. Zero means the default.
	Timeout time.Duration
	// PingInterval is the resend cadence within a probe, covering the
	// usual UDP loss. Zero means the default.
	PingInterval time.Duration
}

// DefaultOptions returns sensible probing defaults.
func DefaultOptions() *Options {
	return &Options{
		Timeout:      2 * time.Second,
		PingInterval: 500 * time.Millisecond,
	}
}

func (o *Options) withDefaults() *Options {
	out := DefaultOptions()
	if o == nil {
		return out
	}
	if o.Timeout > 0 {
		out.Timeout = o.Timeout
	}
	if o.PingInterval > 0 {
		out.PingInterval = o.PingInterval
	}
	return out
}

// Probe checks whether a vehicle is alive at the given UDP address.
// It binds an ephemeral local port so it never collides with a running
// session. No reply within the timeout returns ErrProbeNoReply.
func Probe(ctx context.Context, address string, opts *Options) (DeviceInfo, error) {
	opts = opts.withDefaults()

	transport, err := udp.New(&udp.Config{DroneAddress: address, LocalPort: -1})
	if err != nil {
		return DeviceInfo{}, fmt.Errorf("probe transport failed: %w", err)
	}
	defer func() { _ = transport.Close() }()

	replies := make(chan struct{}, 1)
	transport.SetHandler(func(packet []byte) {
		if len(packet) == 0 {
			return
		}
		if crtp.Header(packet[0]).Port() != crtp.PortLink {
			return
		}
		select {
		case replies <- struct{}{}:
		default:
		}
	})

	deadline := time.NewTimer(opts.Timeout)
	defer deadline.Stop()
	resend := time.NewTicker(opts.PingInterval)
	defer resend.Stop()

	if err := transport.Send(crtp.PingFrame); err != nil {
		return DeviceInfo{}, fmt.Errorf("probe ping failed: %w", err)
	}

	for {
		select {
		case <-replies:
			return DeviceInfo{
				Transport: string(espdrone.TransportUDP),
				Address:   address,
				Name:      "ESP-drone",
			}, nil
		case <-resend.C:
			if err := transport.Send(crtp.PingFrame); err != nil {
				espdrone.Debugf("probe resend failed: %v", err)
			}
		case <-deadline.C:
			return DeviceInfo{}, fmt.Errorf("%w: %s", espdrone.ErrProbeNoReply, address)
		case <-ctx.Done():
			return DeviceInfo{}, fmt.Errorf("probe cancelled: %w", ctx.Err())
		}
	}
}

// SerialPorts lists candidate UART bridge ports on this host. The
// entries are candidates, not confirmed vehicles.
func SerialPorts() ([]DeviceInfo, error) {
	ports, err := goserial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("failed to list serial ports: %w", err)
	}

	devices := make([]DeviceInfo, 0, len(ports))
	for _, port := range ports {
		devices = append(devices, DeviceInfo{
			Transport: string(espdrone.TransportSerial),
			Address:   port,
			Name:      "serial bridge candidate",
		})
	}
	return devices, nil
}

// DetectAll probes the stock vehicle address and appends serial
// candidates. It returns ErrNoDevicesFound when nothing shows up at
// all.
func DetectAll(ctx context.Context, opts *Options) ([]DeviceInfo, error) {
	var devices []DeviceInfo

	if info, err := Probe(ctx, udp.DefaultDroneAddress, opts); err == nil {
		devices = append(devices, info)
	} else if ctx.Err() != nil {
		return nil, fmt.Errorf("detection cancelled: %w", ctx.Err())
	}

	serials, err := SerialPorts()
	if err != nil {
		espdrone.Debugf("serial enumeration failed: %v", err)
	} else {
		devices = append(devices, serials...)
	}

	if len(devices) == 0 {
		return nil, ErrNoDevicesFound
	}
	return devices, nil
}
