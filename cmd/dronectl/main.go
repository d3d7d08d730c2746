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

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	tty "github.com/mattn/go-tty"

	espdrone "github.com/espdrone-community/go-espdrone"
	"github.com/espdrone-community/go-espdrone/discover"
	"github.com/espdrone-community/go-espdrone/mqtt"
	"github.com/espdrone-community/go-espdrone/transport/serial"
	"github.com/espdrone-community/go-espdrone/transport/udp"
)

const (
	// The firmware arms only after a run of zero-thrust setpoints.
	armFrames        = 100
	setpointInterval = 20 * time.Millisecond

	linkTimeout = 5 * time.Second

	velocityStep = 0.2
	maxVelocity  = 0.6
	yawStep      = 30.0
	maxYawRate   = 120.0
	heightStep   = 0.1
	minHeight    = 0.1
	maxHeight    = 1.2

	// Descend in small increments so the vehicle settles instead of
	// dropping.
	landStep      = 0.02
	landedHeight  = 0.12
	defaultHeight = 0.4
)

type config struct {
	address     string
	serialPort  string
	mqttURL     string
	hoverHeight float64
	hoverTime   time.Duration
	monitor     bool
	detect      bool
	hover       bool
	fly         bool
	listPorts   bool
	debug       bool
	logFile     bool
}

// Package-level flag variables
var (
	flagAddress     string
	flagSerialPort  string
	flagMqttURL     string
	flagHoverHeight float64
	flagHoverTime   time.Duration
	flagMonitor     bool
	flagDetect      bool
	flagHover       bool
	flagFly         bool
	flagListPorts   bool
	flagDebug       bool
	flagLogFile     bool
)

func init() {
	flag.StringVar(&flagAddress, "address", udp.DefaultDroneAddress, "Drone UDP address (host:port)")
	flag.StringVar(&flagSerialPort, "serial", "", "Use a serial bridge on this port instead of UDP")
	flag.StringVar(&flagMqttURL, "mqtt", "", "Publish telemetry to this MQTT broker URL")
	flag.Float64Var(&flagHoverHeight, "hover-height", defaultHeight, "Hover height in meters")
	flag.DurationVar(&flagHoverTime, "hover-time", 5*time.Second, "How long to hold the hover")
	flag.BoolVar(&flagMonitor, "monitor", false, "Log link state and battery voltage (default mode)")
	flag.BoolVar(&flagDetect, "detect", false, "Query for a height sensor deck and exit")
	flag.BoolVar(&flagHover, "hover", false, "Arm, hover at a fixed height, then land")
	flag.BoolVar(&flagFly, "fly", false, "Interactive keyboard flight")
	flag.BoolVar(&flagListPorts, "list-ports", false, "List serial bridge candidates and exit")
	flag.BoolVar(&flagDebug, "debug", false, "Enable debug output")
	flag.BoolVar(&flagLogFile, "log", false, "Write a session debug log file")
}

func parseConfig() *config {
	cfg := &config{
		address:     flagAddress,
		serialPort:  flagSerialPort,
		mqttURL:     flagMqttURL,
		hoverHeight: flagHoverHeight,
		hoverTime:   flagHoverTime,
		monitor:     flagMonitor,
		detect:      flagDetect,
		hover:       flagHover,
		fly:         flagFly,
		listPorts:   flagListPorts,
		debug:       flagDebug,
		logFile:     flagLogFile,
	}

	// Enable debug output if --debug flag is set
	if cfg.debug {
		espdrone.SetDebugEnabled(true)
	}

	if cfg.logFile {
		if path, err := espdrone.InitSessionLog(); err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "Failed to open session log: %v\n", err)
		} else {
			_, _ = fmt.Printf("Session log: %s\n", path)
		}
	}

	return cfg
}

// newTransport opens the configured link: a UDP socket toward the
// drone's soft-AP by default, or a serial bridge when -serial is set.
func newTransport(cfg *config) (espdrone.Transport, error) {
	if cfg.serialPort != "" {
		transport, err := serial.New(cfg.serialPort)
		if err != nil {
			return nil, fmt.Errorf("failed to open serial bridge %s: %w", cfg.serialPort, err)
		}
		return transport, nil
	}

	transport, err := udp.New(&udp.Config{DroneAddress: cfg.address})
	if err != nil {
		return nil, fmt.Errorf("failed to open UDP transport: %w", err)
	}
	return transport, nil
}

// wireTelemetry installs the session observers. Echoing to the console
// is only wanted in monitor mode; MQTT publishing applies to every
// mode when a publisher is attached.
func wireTelemetry(drone *espdrone.Drone, pub *mqtt.Publisher, echo bool) {
	drone.OnConnectionChange(func(connected bool) {
		if echo {
			if connected {
				_, _ = fmt.Println("Link established")
			} else {
				_, _ = fmt.Println("Link lost, waiting for heartbeat...")
			}
		}
		if pub != nil {
			if err := pub.PublishConnection(connected); err != nil {
				espdrone.Debugf("mqtt link publish failed: %v", err)
			}
		}
	})

	drone.OnVoltage(func(volts float32) {
		if echo {
			_, _ = fmt.Printf("Battery: %.2fV\n", volts)
		}
		if pub != nil {
			if err := pub.PublishVoltage(volts); err != nil {
				espdrone.Debugf("mqtt voltage publish failed: %v", err)
			}
		}
	})
}

// waitForLink blocks until the first heartbeat reply arrives.
func waitForLink(ctx context.Context, drone *espdrone.Drone, timeout time.Duration) error {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		if drone.Connected() {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline.C:
			return errors.New("no heartbeat reply from the drone")
		case <-ticker.C:
		}
	}
}

func runMonitorMode(ctx context.Context, drone *espdrone.Drone) error {
	if err := drone.StartVoltageMonitoring(); err != nil {
		return fmt.Errorf("failed to start voltage monitoring: %w", err)
	}

	_, _ = fmt.Println("Monitoring link and battery. Press Ctrl+C to stop...")

	<-ctx.Done()
	return ctx.Err()
}

func runDetectMode(ctx context.Context, drone *espdrone.Drone, pub *mqtt.Publisher) error {
	_, _ = fmt.Println("Querying for a height sensor deck...")

	present := drone.DetectHeightSensor(ctx)
	if ctx.Err() != nil {
		return ctx.Err()
	}

	if pub != nil {
		if err := pub.PublishHeightSensor(present); err != nil {
			espdrone.Debugf("mqtt height sensor publish failed: %v", err)
		}
	}

	if present {
		_, _ = fmt.Println("Height sensor deck detected.")
	} else {
		_, _ = fmt.Println("No height sensor deck found.")
	}
	return nil
}

// armMotors streams the zero-thrust setpoints the firmware requires
// before it will spin motors.
func armMotors(ctx context.Context, drone *espdrone.Drone) error {
	ticker := time.NewTicker(setpointInterval)
	defer ticker.Stop()

	for i := 0; i < armFrames; i++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := drone.SendCommander(0, 0, 0, 0); err != nil {
				espdrone.Debugf("arm setpoint %d failed: %v", i, err)
			}
		}
	}
	return nil
}

// land steps the hover height down and cuts the motors at the bottom.
func land(ctx context.Context, drone *espdrone.Drone, fromHeight float32) {
	ticker := time.NewTicker(setpointInterval)
	defer ticker.Stop()

	for h := fromHeight; h > landedHeight; h -= landStep {
		select {
		case <-ctx.Done():
			h = 0
		case <-ticker.C:
			if err := drone.SendHover(0, 0, 0, h); err != nil {
				espdrone.Debugf("landing setpoint failed: %v", err)
			}
		}
	}

	if err := drone.SendCommander(0, 0, 0, 0); err != nil {
		espdrone.Debugf("motor cut failed: %v", err)
	}
}

func runHoverMode(ctx context.Context, drone *espdrone.Drone, cfg *config) error {
	_, _ = fmt.Println("Waiting for the drone...")
	if err := waitForLink(ctx, drone, linkTimeout); err != nil {
		return err
	}

	_, _ = fmt.Println("Arming: streaming zero-thrust setpoints...")
	if err := armMotors(ctx, drone); err != nil {
		return err
	}
	if err := drone.EnableHighLevelCommander(); err != nil {
		return fmt.Errorf("failed to enable the high-level commander: %w", err)
	}

	height := float32(cfg.hoverHeight)
	_, _ = fmt.Printf("Hovering at %.2fm for %s...\n", height, cfg.hoverTime)

	ticker := time.NewTicker(setpointInterval)
	defer ticker.Stop()
	hold := time.NewTimer(cfg.hoverTime)
	defer hold.Stop()

	for holding := true; holding; {
		select {
		case <-ctx.Done():
			holding = false
		case <-hold.C:
			holding = false
		case <-ticker.C:
			if err := drone.SendHover(0, 0, 0, height); err != nil {
				espdrone.Debugf("hover setpoint failed: %v", err)
			}
		}
	}

	_, _ = fmt.Println("Landing...")
	land(ctx, drone, height)
	return ctx.Err()
}

func printFlyHelp() {
	_, _ = fmt.Println("Interactive flight controls:")
	_, _ = fmt.Println("  t      take off (arm, then hover)")
	_, _ = fmt.Println("  l      land")
	_, _ = fmt.Println("  w/s    forward / back")
	_, _ = fmt.Println("  a/d    left / right")
	_, _ = fmt.Println("  q/e    yaw left / right")
	_, _ = fmt.Println("  r/f    climb / descend")
	_, _ = fmt.Println("  h      hold position")
	_, _ = fmt.Println("  space  kill motors")
	_, _ = fmt.Println("  i      show status")
	_, _ = fmt.Println("  x      land and exit")
}

// flightState is the live setpoint the fly loop streams at 50 Hz.
type flightState struct {
	vx      float32
	vy      float32
	yawRate float32
	height  float32
	flying  bool
}

// applyKey maps one keypress onto the setpoint. Returns false when the
// session should end.
func (s *flightState) applyKey(ctx context.Context, drone *espdrone.Drone, key rune) bool {
	switch key {
	case 't':
		if s.flying {
			break
		}
		_, _ = fmt.Println("Arming...")
		if err := armMotors(ctx, drone); err != nil {
			return false
		}
		if err := drone.EnableHighLevelCommander(); err != nil {
			_, _ = fmt.Printf("Takeoff aborted: %v\n", err)
			break
		}
		s.vx, s.vy, s.yawRate = 0, 0, 0
		s.flying = true
		_, _ = fmt.Printf("Airborne, holding %.2fm\n", s.height)
	case 'l':
		if s.flying {
			_, _ = fmt.Println("Landing...")
			land(ctx, drone, s.height)
			s.flying = false
		}
	case 'w':
		s.vx = clamp(s.vx+velocityStep, -maxVelocity, maxVelocity)
	case 's':
		s.vx = clamp(s.vx-velocityStep, -maxVelocity, maxVelocity)
	case 'a':
		s.vy = clamp(s.vy+velocityStep, -maxVelocity, maxVelocity)
	case 'd':
		s.vy = clamp(s.vy-velocityStep, -maxVelocity, maxVelocity)
	case 'q':
		s.yawRate = clamp(s.yawRate-yawStep, -maxYawRate, maxYawRate)
	case 'e':
		s.yawRate = clamp(s.yawRate+yawStep, -maxYawRate, maxYawRate)
	case 'r':
		s.height = clamp(s.height+heightStep, minHeight, maxHeight)
	case 'f':
		s.height = clamp(s.height-heightStep, minHeight, maxHeight)
	case 'h':
		s.vx, s.vy, s.yawRate = 0, 0, 0
	case ' ':
		if err := drone.SendCommander(0, 0, 0, 0); err != nil {
			espdrone.Debugf("motor cut failed: %v", err)
		}
		s.flying = false
		_, _ = fmt.Println("Motors cut")
	case 'i':
		if volts, ok := drone.Voltage(); ok {
			_, _ = fmt.Printf("vx=%.1f vy=%.1f yaw=%.0f h=%.2f battery=%.2fV\n",
				s.vx, s.vy, s.yawRate, s.height, volts)
		} else {
			_, _ = fmt.Printf("vx=%.1f vy=%.1f yaw=%.0f h=%.2f\n",
				s.vx, s.vy, s.yawRate, s.height)
		}
	case 'x':
		if s.flying {
			_, _ = fmt.Println("Landing...")
			land(ctx, drone, s.height)
			s.flying = false
		}
		return false
	}
	return true
}

// readRunes forwards keypresses to ch until the terminal read fails or
// done closes. A keypress landing just as the fly session ends has no
// receiver, so the forward must also watch done or the goroutine
// leaks holding the terminal.
func readRunes(read func() (rune, error), ch chan<- rune, done <-chan struct{}) {
	for {
		r, err := read()
		if err != nil {
			return
		}
		select {
		case ch <- r:
		case <-done:
			return
		}
	}
}

func runFlyMode(ctx context.Context, drone *espdrone.Drone, cfg *config) error {
	_, _ = fmt.Println("Waiting for the drone...")
	if err := waitForLink(ctx, drone, linkTimeout); err != nil {
		return err
	}
	if err := drone.StartVoltageMonitoring(); err != nil {
		return fmt.Errorf("failed to start voltage monitoring: %w", err)
	}

	term, err := tty.Open()
	if err != nil {
		return fmt.Errorf("failed to open terminal: %w", err)
	}
	defer func() {
		_ = term.Close()
	}()

	evchan := make(chan rune)
	readerDone := make(chan struct{})
	defer close(readerDone)
	go readRunes(term.ReadRune, evchan, readerDone)

	printFlyHelp()

	state := &flightState{height: float32(cfg.hoverHeight)}
	ticker := time.NewTicker(setpointInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if state.flying {
				land(context.Background(), drone, state.height)
			}
			return ctx.Err()
		case r := <-evchan:
			if !state.applyKey(ctx, drone, r) {
				return nil
			}
		case <-ticker.C:
			if !state.flying {
				continue
			}
			if err := drone.SendHover(state.vx, state.vy, state.yawRate, state.height); err != nil {
				espdrone.Debugf("hover setpoint failed: %v", err)
			}
		}
	}
}

func runListPorts() error {
	candidates, err := discover.SerialPorts()
	if err != nil {
		return fmt.Errorf("failed to list serial ports: %w", err)
	}
	if len(candidates) == 0 {
		_, _ = fmt.Println("No serial bridge candidates found.")
		return nil
	}
	for _, candidate := range candidates {
		_, _ = fmt.Println(candidate.String())
	}
	return nil
}

func clamp(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func run(ctx context.Context, cfg *config) error {
	if cfg.listPorts {
		return runListPorts()
	}

	modes := 0
	for _, selected := range []bool{cfg.monitor, cfg.detect, cfg.hover, cfg.fly} {
		if selected {
			modes++
		}
	}
	if modes > 1 {
		return errors.New("choose at most one of -monitor, -detect, -hover, -fly")
	}

	transport, err := newTransport(cfg)
	if err != nil {
		return err
	}

	drone, err := espdrone.New(transport)
	if err != nil {
		_ = transport.Close()
		return fmt.Errorf("failed to start session: %w", err)
	}
	defer func() {
		if closeErr := drone.Close(); closeErr != nil {
			_, _ = fmt.Fprintf(os.Stderr, "Failed to close session: %v\n", closeErr)
		}
	}()

	var pub *mqtt.Publisher
	if cfg.mqttURL != "" {
		pub, err = mqtt.New(cfg.mqttURL)
		if err != nil {
			return err
		}
		defer pub.Close()
		_, _ = fmt.Printf("Publishing telemetry to %s\n", pub.Topic())
	}

	wireTelemetry(drone, pub, !cfg.detect && !cfg.hover && !cfg.fly)

	switch {
	case cfg.detect:
		return runDetectMode(ctx, drone, pub)
	case cfg.hover:
		return runHoverMode(ctx, drone, cfg)
	case cfg.fly:
		return runFlyMode(ctx, drone, cfg)
	default:
		return runMonitorMode(ctx, drone)
	}
}

func main() {
	flag.Parse()
	os.Exit(mainWithExitCode())
}

func mainWithExitCode() int {
	// Parse command-line flags
	cfg := parseConfig()
	defer func() {
		_ = espdrone.CloseSessionLog()
	}()

	// Setup signal handling for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		_, _ = fmt.Print("\nShutting down gracefully...\n")
		cancel()
	}()

	// Run the main application logic
	if err := run(ctx, cfg); err != nil {
		if errors.Is(err, context.Canceled) {
			// User requested shutdown, exit cleanly
			return 0
		}
		_, _ = fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}
