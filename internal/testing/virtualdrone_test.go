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
	"bytes"
	"testing"
	"time"

	"github.com/espdrone-community/go-espdrone/internal/crtp"
)

func TestVirtualDrone_PingEcho(t *testing.T) {
	t.Parallel()

	sim := NewVirtualDrone()
	replies := sim.Process(crtp.PingFrame)

	if len(replies) != 1 {
		t.Fatalf("Process(ping) returned %d replies, want 1", len(replies))
	}
	if !bytes.Equal(replies[0], crtp.PingFrame) {
		t.Errorf("ping echo = %X, want %X", replies[0], crtp.PingFrame)
	}
	if sim.Pings() != 1 {
		t.Errorf("Pings() = %d, want 1", sim.Pings())
	}
}

func TestVirtualDrone_MutedLinkSwallowsEcho(t *testing.T) {
	t.Parallel()

	sim := NewVirtualDrone()
	sim.MuteLink(true)

	if replies := sim.Process(crtp.PingFrame); len(replies) != 0 {
		t.Fatalf("muted link returned %d replies, want 0", len(replies))
	}
	// The firmware still receives the ping, it just cannot answer.
	if sim.Pings() != 1 {
		t.Errorf("Pings() = %d, want 1", sim.Pings())
	}

	sim.MuteLink(false)
	if replies := sim.Process(crtp.PingFrame); len(replies) != 1 {
		t.Fatalf("unmuted link returned %d replies, want 1", len(replies))
	}
}

func TestVirtualDrone_CorruptPingDropped(t *testing.T) {
	t.Parallel()

	sim := NewVirtualDrone()
	corrupt := []byte{0xFD, 0x00, 0x00} // bad trailing sum

	if replies := sim.Process(corrupt); len(replies) != 0 {
		t.Fatalf("corrupt ping returned %d replies, want 0", len(replies))
	}
	if sim.Dropped() != 1 {
		t.Errorf("Dropped() = %d, want 1", sim.Dropped())
	}
}

func TestVirtualDrone_LogBlockGates(t *testing.T) {
	t.Parallel()

	sim := NewVirtualDrone()

	// Start before config: the firmware refuses with a nonzero status
	// and does not stream.
	replies := sim.Process(crtp.VoltageLogStartFrame)
	if len(replies) != 1 {
		t.Fatalf("start-before-config returned %d replies, want 1 ack", len(replies))
	}
	if status := replies[0][3]; status == 0x00 {
		t.Error("start-before-config ack reports success, want failure")
	}
	if sim.Streaming() {
		t.Error("Streaming() = true before the block was configured")
	}

	// Config, then start: ack plus one voltage data frame.
	if replies := sim.Process(crtp.VoltageLogConfigFrame); len(replies) != 1 {
		t.Fatalf("config returned %d replies, want 1 ack", len(replies))
	}
	replies = sim.Process(crtp.VoltageLogStartFrame)
	if len(replies) != 2 {
		t.Fatalf("start returned %d replies, want ack plus data", len(replies))
	}
	volts, ok := crtp.DecodeVoltage(replies[1])
	if !ok {
		t.Fatalf("start reply %X is not a voltage frame", replies[1])
	}
	if volts != 3.7 {
		t.Errorf("voltage = %v, want 3.7", volts)
	}
	if !sim.Streaming() {
		t.Error("Streaming() = false after start")
	}

	// Stop ends the stream.
	if replies := sim.Process(crtp.VoltageLogStopFrame); len(replies) != 1 {
		t.Fatalf("stop returned %d replies, want 1 ack", len(replies))
	}
	if sim.Streaming() {
		t.Error("Streaming() = true after stop")
	}
}

func TestVirtualDrone_SetVoltageFlowsIntoFrames(t *testing.T) {
	t.Parallel()

	sim := NewVirtualDrone()
	sim.SetVoltage(3.2)

	volts, ok := crtp.DecodeVoltage(sim.VoltageFrame())
	if !ok {
		t.Fatal("VoltageFrame() is not decodable")
	}
	if volts != 3.2 {
		t.Errorf("voltage = %v, want 3.2", volts)
	}
}

func TestVirtualDrone_ArmThreshold(t *testing.T) {
	t.Parallel()

	sim := NewVirtualDrone()
	sim.SetArmThreshold(3)

	zero := crtp.EncodeCommander(0, 0, 0, 0)
	sim.Process(zero)
	sim.Process(zero)
	if sim.Armed() {
		t.Fatal("Armed() = true before the zero-thrust run completed")
	}
	sim.Process(zero)
	if !sim.Armed() {
		t.Fatal("Armed() = false after three zero-thrust setpoints")
	}
	if got := len(sim.Attitudes()); got != 3 {
		t.Errorf("len(Attitudes()) = %d, want 3", got)
	}
}

func TestVirtualDrone_NonzeroSetpointResetsRun(t *testing.T) {
	t.Parallel()

	sim := NewVirtualDrone()
	sim.SetArmThreshold(2)

	sim.Process(crtp.EncodeCommander(0, 0, 0, 0))
	sim.Process(crtp.EncodeCommander(0, 0, 0, 10000)) // breaks the run
	sim.Process(crtp.EncodeCommander(0, 0, 0, 0))
	if sim.Armed() {
		t.Fatal("Armed() = true although the zero run was broken")
	}
	sim.Process(crtp.EncodeCommander(0, 0, 0, 0))
	if !sim.Armed() {
		t.Fatal("Armed() = false after a fresh two-setpoint zero run")
	}
}

func TestVirtualDrone_HoverRequiresHighLevelCommander(t *testing.T) {
	t.Parallel()

	sim := NewVirtualDrone()
	hover := crtp.EncodeHover(0, 0, 0, 0.5)

	sim.Process(hover)
	if got := len(sim.Hovers()); got != 0 {
		t.Fatalf("len(Hovers()) = %d before enable, want 0", got)
	}
	if sim.IgnoredHovers() != 1 {
		t.Errorf("IgnoredHovers() = %d, want 1", sim.IgnoredHovers())
	}

	// Commit without a pending enable is dropped.
	sim.Process(crtp.HighLevelCommitFrame)
	if sim.HighLevelEnabled() {
		t.Fatal("HighLevelEnabled() = true after a bare commit")
	}

	sim.Process(crtp.HighLevelEnableFrame)
	sim.Process(crtp.HighLevelCommitFrame)
	if !sim.HighLevelEnabled() {
		t.Fatal("HighLevelEnabled() = false after enable and commit")
	}

	sim.Process(hover)
	hovers := sim.Hovers()
	if len(hovers) != 1 {
		t.Fatalf("len(Hovers()) = %d after enable, want 1", len(hovers))
	}
	if hovers[0].Height != 0.5 {
		t.Errorf("hover height = %v, want 0.5", hovers[0].Height)
	}
}

func TestVirtualDrone_HeightQuery(t *testing.T) {
	t.Parallel()

	sim := NewVirtualDrone()

	replies := sim.Process(crtp.HeightSensorRequestFrame)
	if len(replies) != 1 {
		t.Fatalf("height query returned %d replies, want 1", len(replies))
	}
	if present, ok := crtp.DecodeHeightSensorStatus(replies[0]); !ok || present {
		t.Errorf("no-deck reply decoded to present=%v ok=%v, want false true", present, ok)
	}

	sim.SetHeightSensor(true)
	replies = sim.Process(crtp.HeightSensorRequestFrame)
	if present, ok := crtp.DecodeHeightSensorStatus(replies[0]); !ok || !present {
		t.Errorf("deck reply decoded to present=%v ok=%v, want true true", present, ok)
	}
}

func TestVirtualDrone_Reset(t *testing.T) {
	t.Parallel()

	sim := NewVirtualDrone()
	sim.Process(crtp.PingFrame)
	sim.Process(crtp.EncodeCommander(1, 2, 3, 4))
	sim.Process([]byte{0x99})

	sim.Reset()
	if sim.Pings() != 0 || len(sim.Attitudes()) != 0 || sim.Dropped() != 0 {
		t.Error("Reset() left counters behind")
	}
}

func TestSimulatorTransport_Delivery(t *testing.T) {
	t.Parallel()

	tr := NewSimulatorTransport(NewVirtualDrone())
	defer tr.Close() //nolint:errcheck // test cleanup

	received := make(chan []byte, 4)
	tr.SetHandler(func(packet []byte) { received <- packet })

	if err := tr.Send(crtp.PingFrame); err != nil {
		t.Fatalf("Send() error: %v", err)
	}

	select {
	case frame := <-received:
		if !bytes.Equal(frame, crtp.PingFrame) {
			t.Errorf("delivered frame = %X, want ping echo", frame)
		}
	case <-time.After(time.Second):
		t.Fatal("echo was never delivered")
	}

	if !tr.HasSent(crtp.PingFrame[0]) {
		t.Error("HasSent(ping header) = false")
	}
	if tr.SentCount(crtp.PingFrame[0]) != 1 {
		t.Errorf("SentCount(ping header) = %d, want 1", tr.SentCount(crtp.PingFrame[0]))
	}
}

func TestSimulatorTransport_Close(t *testing.T) {
	t.Parallel()

	tr := NewSimulatorTransport(NewVirtualDrone())
	if !tr.IsConnected() {
		t.Fatal("IsConnected() = false on a fresh transport")
	}

	if err := tr.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}
	if err := tr.Close(); err != nil {
		t.Fatalf("second Close() error: %v", err)
	}
	if tr.IsConnected() {
		t.Error("IsConnected() = true after Close")
	}
	if err := tr.Send(crtp.PingFrame); err == nil {
		t.Error("Send() after Close succeeded, want error")
	}
}

func TestSimulatorTransport_LossyDropsEverything(t *testing.T) {
	t.Parallel()

	tr := NewLossySimulatorTransport(NewVirtualDrone(), LinkProfile{
		DropRate: 1.0,
		Seed:     7,
	})
	defer tr.Close() //nolint:errcheck // test cleanup

	received := make(chan []byte, 4)
	tr.SetHandler(func(packet []byte) { received <- packet })

	if err := tr.Send(crtp.PingFrame); err != nil {
		t.Fatalf("Send() error: %v", err)
	}

	select {
	case frame := <-received:
		t.Fatalf("got frame %X on a fully lossy link", frame)
	case <-time.After(50 * time.Millisecond):
	}

	deadline := time.Now().Add(time.Second)
	for tr.DownlinkLost() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("DownlinkLost() never counted the dropped echo")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestSimulatorTransport_DuplicatesEveryFrame(t *testing.T) {
	t.Parallel()

	tr := NewLossySimulatorTransport(NewVirtualDrone(), LinkProfile{
		DuplicateRate: 1.0,
		Seed:          11,
	})
	defer tr.Close() //nolint:errcheck // test cleanup

	received := make(chan []byte, 4)
	tr.SetHandler(func(packet []byte) { received <- packet })

	if err := tr.Send(crtp.PingFrame); err != nil {
		t.Fatalf("Send() error: %v", err)
	}

	for i := range 2 {
		select {
		case <-received:
		case <-time.After(time.Second):
			t.Fatalf("copy %d of the echo never arrived", i+1)
		}
	}
}

func TestLossyLink_DeterministicWithSeed(t *testing.T) {
	t.Parallel()

	profile := LinkProfile{
		MaxLatency:    5 * time.Millisecond,
		DropRate:      0.5,
		DuplicateRate: 0.5,
		Seed:          99,
	}
	first := newLossyLink(profile)
	second := newLossyLink(profile)

	for i := range 64 {
		if first.drop() != second.drop() {
			t.Fatalf("drop decision %d diverged between identically seeded links", i)
		}
		if first.duplicate() != second.duplicate() {
			t.Fatalf("duplicate decision %d diverged between identically seeded links", i)
		}
		if first.delay() != second.delay() {
			t.Fatalf("delay %d diverged between identically seeded links", i)
		}
	}
}
