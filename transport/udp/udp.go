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

// Package udp implements the espdrone.Transport interface over the
// vehicle's WiFi UDP link. The ESP-drone firmware listens on a fixed
// port on its soft-AP address and replies to whichever host port the
// traffic came from, so the transport binds a known local port and
// runs a connected socket to the vehicle.
package udp

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	espdrone "github.com/espdrone-community/go-espdrone"
)

const (
	// DefaultDroneAddress is the firmware's UDP endpoint on its soft-AP
	// network.
	DefaultDroneAddress = "192.168.43.42:2390"
	// DefaultLocalPort is the host port the firmware expects commands
	// from.
	DefaultLocalPort = 2399

	// maxPacketSize bounds outbound frames. CRTP payloads are tiny;
	// anything bigger than this is a caller bug, not a frame.
	maxPacketSize = 64
	// readBufferSize is the inbound datagram buffer.
	readBufferSize = 256
	// traceEntries is how much wire history errors carry for debugging.
	traceEntries = 32
)

// Config holds the UDP endpoints for a transport.
type Config struct {
	// DroneAddress is the vehicle's host:port. Defaults to
	// DefaultDroneAddress when empty.
	DroneAddress string
	// LocalPort is the host-side port to bind. Defaults to
	// DefaultLocalPort; set to -1 to let the OS pick a free port,
	// which tests use to avoid collisions.
	LocalPort int
}

// DefaultConfig returns the endpoints a stock ESP-drone expects.
func DefaultConfig() *Config {
	return &Config{
		DroneAddress: DefaultDroneAddress,
		LocalPort:    DefaultLocalPort,
	}
}

// Transport sends and receives CRTP frames over a connected UDP
// socket. One datagram carries exactly one frame in each direction.
type Transport struct {
	conn     *net.UDPConn
	trace    *espdrone.TraceBuffer
	endpoint string

	mu      sync.RWMutex
	handler func(packet []byte)

	closed atomic.Bool
	wg     sync.WaitGroup
}

// New binds the local port, connects the socket to the vehicle, and
// starts the receive loop. A bind failure is fatal for the session;
// callers should surface it rather than retry.
func New(cfg *Config) (*Transport, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	address := cfg.DroneAddress
	if address == "" {
		address = DefaultDroneAddress
	}
	localPort := cfg.LocalPort
	if localPort == 0 {
		localPort = DefaultLocalPort
	}
	if localPort < 0 {
		localPort = 0
	}

	remote, err := net.ResolveUDPAddr("udp4", address)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve drone address %q: %w", address, err)
	}

	local := &net.UDPAddr{Port: localPort}
	conn, err := net.DialUDP("udp4", local, remote)
	if err != nil {
		return nil, espdrone.NewBindError("Dial", local.String(), err)
	}

	t := &Transport{
		conn:     conn,
		endpoint: remote.String(),
		trace:    espdrone.NewTraceBuffer(string(espdrone.TransportUDP), remote.String(), traceEntries),
	}

	t.wg.Add(1)
	go t.receiveLoop()

	espdrone.Debugf("udp transport up: %s -> %s", conn.LocalAddr(), remote)
	return t, nil
}

// Send transmits one frame as one datagram.
func (t *Transport) Send(packet []byte) error {
	if t.closed.Load() {
		return espdrone.NewTransportClosedError("Send", t.endpoint)
	}
	if len(packet) == 0 {
		return espdrone.ErrMalformedFrame
	}
	if len(packet) > maxPacketSize {
		return espdrone.NewFrameTooLargeError("Send", t.endpoint)
	}

	if _, err := t.conn.Write(packet); err != nil {
		if errors.Is(err, net.ErrClosed) {
			return espdrone.NewTransportClosedError("Send", t.endpoint)
		}
		// A connected UDP socket reports ICMP unreachable as a write
		// error. The vehicle may just be rebooting, so this stays
		// retryable.
		sendErr := espdrone.NewTransportError("Send", t.endpoint,
			fmt.Errorf("%w: %w", espdrone.ErrTransportWrite, err), espdrone.ErrorTypeTransient)
		return t.trace.WrapError(sendErr)
	}

	t.trace.RecordTX(packet, "")
	return nil
}

// SetHandler registers the inbound frame callback. Frames that arrive
// while no handler is set are dropped.
func (t *Transport) SetHandler(handler func(packet []byte)) {
	t.mu.Lock()
	t.handler = handler
	t.mu.Unlock()
}

// Close shuts the socket down and waits for the receive loop to exit.
// After Close returns, the handler will not be called again.
func (t *Transport) Close() error {
	if !t.closed.CompareAndSwap(false, true) {
		return nil
	}

	err := t.conn.Close()
	t.wg.Wait()

	if err != nil {
		return fmt.Errorf("failed to close udp socket: %w", err)
	}
	return nil
}

// IsConnected reports whether the socket is still open. UDP gives no
// liveness signal; link health is the session's heartbeat business.
func (t *Transport) IsConnected() bool {
	return !t.closed.Load()
}

// Type returns the transport type identifier.
func (*Transport) Type() espdrone.TransportType {
	return espdrone.TransportUDP
}

// LocalAddr returns the bound host address.
func (t *Transport) LocalAddr() string {
	return t.conn.LocalAddr().String()
}

// RemoteAddr returns the vehicle's address.
func (t *Transport) RemoteAddr() string {
	return t.endpoint
}

// receiveLoop owns the socket read side. Each datagram is copied and
// handed to the handler one at a time, so session callbacks never see
// concurrent frames.
func (t *Transport) receiveLoop() {
	defer t.wg.Done()

	buf := make([]byte, readBufferSize)
	for {
		n, err := t.conn.Read(buf)
		if err != nil {
			if t.closed.Load() || errors.Is(err, net.ErrClosed) {
				return
			}
			// ICMP unreachable lands here too. Back off briefly so a
			// dead vehicle does not spin this loop.
			espdrone.Debugf("udp receive error: %v", err)
			time.Sleep(10 * time.Millisecond)
			continue
		}
		if n == 0 {
			continue
		}

		packet := make([]byte, n)
		copy(packet, buf[:n])
		t.trace.RecordRX(packet, "")

		t.mu.RLock()
		handler := t.handler
		t.mu.RUnlock()
		if handler != nil {
			handler(packet)
		}
	}
}

// Ensure Transport implements espdrone.Transport
var _ espdrone.Transport = (*Transport)(nil)
