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
	"sync"
	"time"
)

// Transport moves raw packets between the client and the drone.
// This can be implemented by UDP or serial bridge backends.
//
// Implementations own the underlying socket or port and run their own
// receive loop. Inbound packets are handed to the handler registered
// via SetHandler, one at a time, from that loop's goroutine.
type Transport interface {
	// Send transmits a single packet. It is best-effort: errors are
	// returned to the caller, never retried internally.
	Send(packet []byte) error

	// SetHandler registers the sink for inbound packets. Until a
	// handler is set, inbound traffic is dropped.
	SetHandler(handler func(packet []byte))

	// Close shuts down the transport and its receive loop.
	// It is safe to call on an already-closed transport.
	Close() error

	// IsConnected returns true if the transport is usable
	IsConnected() bool

	// Type returns the transport type
	Type() TransportType
}

// TransportType represents the type of transport
type TransportType string

const (
	// TransportUDP represents the WiFi datagram transport.
	TransportUDP TransportType = "udp"
	// TransportSerial represents the UART bridge transport.
	TransportSerial TransportType = "serial"
	// TransportMock represents a mock transport for testing
	TransportMock TransportType = "mock"
)

// MockTransport provides a mock implementation of Transport for testing.
// Sent packets are recorded for inspection and inbound packets can be
// injected through the registered handler.
type MockTransport struct {
	errorMap  map[byte]error
	handler   func(packet []byte)
	sent      [][]byte
	delay     time.Duration
	mu        sync.RWMutex
	connected bool
}

// NewMockTransport creates a new mock transport
func NewMockTransport() *MockTransport {
	return &MockTransport{
		connected: true,
		errorMap:  make(map[byte]error),
	}
}

// Send implements Transport interface
func (m *MockTransport) Send(packet []byte) error {
	m.mu.RLock()
	connected := m.connected
	delay := m.delay
	m.mu.RUnlock()

	if !connected {
		return NewTransportClosedError("Send", string(TransportMock))
	}

	// Simulate link latency if configured
	if delay > 0 {
		time.Sleep(delay)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// Check for injected error keyed on the packet header
	if len(packet) > 0 {
		if err, exists := m.errorMap[packet[0]]; exists {
			return err
		}
	}

	packetCopy := make([]byte, len(packet))
	copy(packetCopy, packet)
	m.sent = append(m.sent, packetCopy)
	return nil
}

// SetHandler implements Transport interface
func (m *MockTransport) SetHandler(handler func(packet []byte)) {
	m.mu.Lock()
	m.handler = handler
	m.mu.Unlock()
}

// Close implements Transport interface
func (m *MockTransport) Close() error {
	m.mu.Lock()
	m.connected = false
	m.mu.Unlock()
	return nil
}

// IsConnected implements Transport interface
func (m *MockTransport) IsConnected() bool {
	m.mu.RLock()
	connected := m.connected
	m.mu.RUnlock()
	return connected
}

// Type implements Transport interface
func (*MockTransport) Type() TransportType {
	return TransportMock
}

// Test helper methods

// InjectFrame delivers an inbound packet to the registered handler.
// The handler runs synchronously on the caller's goroutine, so tests
// can assert on its effects immediately after Inject returns.
func (m *MockTransport) InjectFrame(frame []byte) {
	m.mu.RLock()
	handler := m.handler
	connected := m.connected
	m.mu.RUnlock()

	if handler == nil || !connected {
		return
	}

	frameCopy := make([]byte, len(frame))
	copy(frameCopy, frame)
	handler(frameCopy)
}

// SetError configures an error to be returned for packets starting
// with the given header byte
func (m *MockTransport) SetError(header byte, err error) {
	m.mu.Lock()
	m.errorMap[header] = err
	m.mu.Unlock()
}

// ClearError removes error injection for a header byte
func (m *MockTransport) ClearError(header byte) {
	m.mu.Lock()
	delete(m.errorMap, header)
	m.mu.Unlock()
}

// SetDelay configures a delay to simulate link latency
func (m *MockTransport) SetDelay(delay time.Duration) {
	m.mu.Lock()
	m.delay = delay
	m.mu.Unlock()
}

// Sent returns a copy of every packet sent so far, in order
func (m *MockTransport) Sent() [][]byte {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([][]byte, len(m.sent))
	for i, p := range m.sent {
		out[i] = append([]byte(nil), p...)
	}
	return out
}

// SentCount returns how many sent packets start with the given header byte
func (m *MockTransport) SentCount(header byte) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	count := 0
	for _, p := range m.sent {
		if len(p) > 0 && p[0] == header {
			count++
		}
	}
	return count
}

// Reset clears recorded packets and reconnects the transport
func (m *MockTransport) Reset() {
	m.mu.Lock()
	m.sent = nil
	m.errorMap = make(map[byte]error)
	m.connected = true
	m.mu.Unlock()
}

// Ensure MockTransport implements Transport
var _ Transport = (*MockTransport)(nil)
