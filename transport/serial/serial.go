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

// Package serial implements the espdrone.Transport interface over a
// USB-UART bench bridge. The bridge wraps each CRTP frame in a thin
// envelope so frame boundaries survive the byte stream: a 0xBC start
// byte, a payload length, the payload, and a byte-sum checksum over
// everything before it. The reader resynchronizes on the start byte,
// so line noise between frames is tolerated.
package serial

import (
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	espdrone "github.com/espdrone-community/go-espdrone"
	"github.com/espdrone-community/go-espdrone/internal/crtp"
	goserial "go.bug.st/serial"
)

const (
	frameStart = 0xBC

	// maxPayload bounds a bridged CRTP frame. Larger lengths in the
	// stream are treated as corruption and skipped.
	maxPayload = 64

	// envelopeOverhead is start byte + length byte + checksum byte.
	envelopeOverhead = 3

	readBufferSize = 256
	traceEntries   = 32
)

// readTimeout returns the poll interval for the port. Windows serial
// drivers need a longer one to stay stable.
func readTimeout() time.Duration {
	if runtime.GOOS == "windows" {
		return 100 * time.Millisecond
	}
	return 50 * time.Millisecond
}

// Transport bridges CRTP frames over a serial port.
type Transport struct {
	port     goserial.Port
	portName string
	trace    *espdrone.TraceBuffer

	mu      sync.RWMutex
	handler func(packet []byte)

	closed atomic.Bool
	wg     sync.WaitGroup
}

// New opens the serial port at the bridge's fixed settings and starts
// the receive loop.
func New(portName string) (*Transport, error) {
	port, err := goserial.Open(portName, &goserial.Mode{
		BaudRate: 115200,
		DataBits: 8,
		Parity:   goserial.NoParity,
		StopBits: goserial.OneStopBit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", portName, err)
	}

	if err := port.SetReadTimeout(readTimeout()); err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("failed to set serial read timeout: %w", err)
	}

	return newWithPort(port, portName), nil
}

// newWithPort finishes construction on an already-open port. Tests use
// it to substitute a simulated port.
func newWithPort(port goserial.Port, portName string) *Transport {
	t := &Transport{
		port:     port,
		portName: portName,
		trace:    espdrone.NewTraceBuffer(string(espdrone.TransportSerial), portName, traceEntries),
	}

	t.wg.Add(1)
	go t.receiveLoop()

	espdrone.Debugf("serial transport up on %s", portName)
	return t
}

// Send wraps one CRTP frame in the bridge envelope and writes it out.
func (t *Transport) Send(packet []byte) error {
	if t.closed.Load() {
		return espdrone.NewTransportClosedError("Send", t.portName)
	}
	if len(packet) == 0 {
		return espdrone.ErrMalformedFrame
	}
	if len(packet) > maxPayload {
		return espdrone.NewFrameTooLargeError("Send", t.portName)
	}

	frame := encodeFrame(packet)
	if _, err := t.port.Write(frame); err != nil {
		sendErr := espdrone.NewTransportError("Send", t.portName,
			fmt.Errorf("%w: %w", espdrone.ErrTransportWrite, err), espdrone.ErrorTypeTransient)
		return t.trace.WrapError(sendErr)
	}

	t.trace.RecordTX(packet, "")
	return nil
}

// SetHandler registers the inbound frame callback.
func (t *Transport) SetHandler(handler func(packet []byte)) {
	t.mu.Lock()
	t.handler = handler
	t.mu.Unlock()
}

// Close shuts the port down and waits for the receive loop to exit.
func (t *Transport) Close() error {
	if !t.closed.CompareAndSwap(false, true) {
		return nil
	}

	err := t.port.Close()
	t.wg.Wait()

	if err != nil {
		return fmt.Errorf("failed to close serial port: %w", err)
	}
	return nil
}

// IsConnected reports whether the port is still open.
func (t *Transport) IsConnected() bool {
	return !t.closed.Load()
}

// Type returns the transport type identifier.
func (*Transport) Type() espdrone.TransportType {
	return espdrone.TransportSerial
}

// PortName returns the device path this transport runs on.
func (t *Transport) PortName() string {
	return t.portName
}

// receiveLoop reads the byte stream and hands each recovered frame to
// the handler. Read timeouts surface as zero-byte reads and just spin
// the loop.
func (t *Transport) receiveLoop() {
	defer t.wg.Done()

	var scan scanner
	buf := make([]byte, readBufferSize)
	for {
		n, err := t.port.Read(buf)
		if err != nil {
			if t.closed.Load() {
				return
			}
			if espdrone.IsFatal(err) {
				espdrone.Debugf("serial receive stopped: %v", err)
				return
			}
			espdrone.Debugf("serial receive error: %v", err)
			time.Sleep(10 * time.Millisecond)
			continue
		}
		if n == 0 {
			if t.closed.Load() {
				return
			}
			continue
		}

		for _, packet := range scan.push(buf[:n]) {
			t.trace.RecordRX(packet, "")
			t.mu.RLock()
			handler := t.handler
			t.mu.RUnlock()
			if handler != nil {
				handler(packet)
			}
		}
	}
}

// encodeFrame wraps a payload in the bridge envelope.
func encodeFrame(payload []byte) []byte {
	frame := make([]byte, 0, len(payload)+envelopeOverhead)
	frame = append(frame, frameStart, byte(len(payload)))
	frame = append(frame, payload...)
	frame = append(frame, crtp.Checksum(frame))
	return frame
}

// errTruncated marks an envelope that needs more bytes.
var errTruncated = errors.New("truncated frame")

// scanner accumulates stream bytes and extracts bridge envelopes,
// resynchronizing on the start byte after corruption.
type scanner struct {
	buf []byte
}

// push consumes a chunk of the stream and returns the payloads of any
// complete, valid frames it contained.
func (s *scanner) push(data []byte) [][]byte {
	s.buf = append(s.buf, data...)

	var frames [][]byte
	for {
		payload, err := s.next()
		if err != nil {
			return frames
		}
		frames = append(frames, payload)
	}
}

// next extracts one frame from the front of the buffer, discarding
// garbage ahead of it. errTruncated means wait for more bytes.
func (s *scanner) next() ([]byte, error) {
	for {
		start := 0
		for start < len(s.buf) && s.buf[start] != frameStart {
			start++
		}
		s.buf = s.buf[start:]

		if len(s.buf) < 2 {
			return nil, errTruncated
		}

		length := int(s.buf[1])
		if length == 0 || length > maxPayload {
			// Not a real envelope; skip this start byte and resync.
			s.buf = s.buf[1:]
			continue
		}

		total := length + envelopeOverhead
		if len(s.buf) < total {
			return nil, errTruncated
		}

		if s.buf[total-1] != crtp.Checksum(s.buf[:total-1]) {
			s.buf = s.buf[1:]
			continue
		}

		payload := make([]byte, length)
		copy(payload, s.buf[2:2+length])
		s.buf = s.buf[total:]
		return payload, nil
	}
}

// Ensure Transport implements espdrone.Transport
var _ espdrone.Transport = (*Transport)(nil)
