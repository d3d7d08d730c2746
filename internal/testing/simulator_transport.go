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
	"time"

	espdrone "github.com/espdrone-community/go-espdrone"
	"github.com/espdrone-community/go-espdrone/internal/syncutil"
)

// SimulatorTransport connects VirtualDrone to a session as an
// espdrone.Transport. Packets the session sends are processed by the
// simulated firmware and its replies come back through the registered
// handler from a dedicated goroutine, the same shape the UDP transport
// has. An optional LinkProfile makes the downlink drop, delay or
// duplicate frames; the uplink always reaches the firmware, so loss
// assertions stay attributable to one direction.
//
// The root package's own tests cannot use this type without an import
// cycle; integration tests import it from an external test package.
type SimulatorTransport struct {
	sim        *VirtualDrone
	link       *lossyLink
	handler    func(packet []byte)
	deliveries chan []byte
	done       chan struct{}
	log        []PacketLogEntry
	mu         syncutil.Mutex
	lost       int
	connected  bool
}

// PacketLogEntry records one packet the session sent.
type PacketLogEntry struct {
	Timestamp time.Time
	Packet    []byte
	Header    byte
}

var _ espdrone.Transport = (*SimulatorTransport)(nil)

// NewSimulatorTransport creates a transport backed by sim with a
// perfect link.
func NewSimulatorTransport(sim *VirtualDrone) *SimulatorTransport {
	return newSimulatorTransport(sim, nil)
}

// NewLossySimulatorTransport creates a transport backed by sim whose
// downlink behaves per profile.
func NewLossySimulatorTransport(sim *VirtualDrone, profile LinkProfile) *SimulatorTransport {
	return newSimulatorTransport(sim, newLossyLink(profile))
}

func newSimulatorTransport(sim *VirtualDrone, link *lossyLink) *SimulatorTransport {
	t := &SimulatorTransport{
		sim:        sim,
		link:       link,
		deliveries: make(chan []byte, 64),
		done:       make(chan struct{}),
		log:        make([]PacketLogEntry, 0),
		connected:  true,
	}
	go t.deliverLoop()
	return t
}

// Send hands one packet to the simulated firmware and queues whatever
// it replies for delivery.
func (t *SimulatorTransport) Send(packet []byte) error {
	t.mu.Lock()
	if !t.connected {
		t.mu.Unlock()
		return espdrone.NewTransportClosedError("Send", string(espdrone.TransportMock))
	}

	// Copy to avoid mutation after return
	packetCopy := make([]byte, len(packet))
	copy(packetCopy, packet)

	var header byte
	if len(packetCopy) > 0 {
		header = packetCopy[0]
	}
	t.log = append(t.log, PacketLogEntry{
		Timestamp: time.Now(),
		Packet:    packetCopy,
		Header:    header,
	})
	t.mu.Unlock()

	for _, reply := range t.sim.Process(packetCopy) {
		select {
		case t.deliveries <- reply:
		case <-t.done:
			return nil
		}
	}
	return nil
}

// deliverLoop plays the role of the transport's receive goroutine: it
// applies the link profile and hands frames to the handler one at a
// time.
func (t *SimulatorTransport) deliverLoop() {
	for {
		select {
		case <-t.done:
			return
		case frame := <-t.deliveries:
			copies := 1
			if t.link != nil {
				if t.link.drop() {
					t.mu.Lock()
					t.lost++
					t.mu.Unlock()
					continue
				}
				if t.link.duplicate() {
					copies = 2
				}
				if delay := t.link.delay(); delay > 0 {
					timer := time.NewTimer(delay)
					select {
					case <-timer.C:
					case <-t.done:
						timer.Stop()
						return
					}
				}
			}

			t.mu.Lock()
			handler := t.handler
			t.mu.Unlock()
			if handler == nil {
				continue
			}
			for range copies {
				handler(frame)
			}
		}
	}
}

// SetHandler registers the sink for delivered frames.
func (t *SimulatorTransport) SetHandler(handler func(packet []byte)) {
	t.mu.Lock()
	t.handler = handler
	t.mu.Unlock()
}

// Close stops delivery. It is safe to call more than once.
func (t *SimulatorTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.connected {
		return nil
	}
	t.connected = false
	close(t.done)
	return nil
}

// IsConnected reports whether the transport is usable.
func (t *SimulatorTransport) IsConnected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.connected
}

// Type returns the transport type.
func (*SimulatorTransport) Type() espdrone.TransportType {
	return espdrone.TransportMock
}

// Simulator returns the underlying VirtualDrone for test setup.
func (t *SimulatorTransport) Simulator() *VirtualDrone {
	return t.sim
}

// Log returns a copy of the packets the session has sent so far.
func (t *SimulatorTransport) Log() []PacketLogEntry {
	t.mu.Lock()
	defer t.mu.Unlock()
	entries := make([]PacketLogEntry, len(t.log))
	copy(entries, t.log)
	return entries
}

// ClearLog discards the packet log.
func (t *SimulatorTransport) ClearLog() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.log = t.log[:0]
}

// HasSent reports whether any packet with the given header byte was
// sent.
func (t *SimulatorTransport) HasSent(header byte) bool {
	return t.SentCount(header) > 0
}

// SentCount returns how many packets with the given header byte were
// sent.
func (t *SimulatorTransport) SentCount(header byte) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	count := 0
	for _, entry := range t.log {
		if entry.Header == header {
			count++
		}
	}
	return count
}

// DownlinkLost returns how many frames the link profile dropped.
func (t *SimulatorTransport) DownlinkLost() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lost
}
