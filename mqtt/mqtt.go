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

// Package mqtt forwards session telemetry to an MQTT broker. Payloads
// are compact comma-joined key:value strings so ground-station
// dashboards can consume them without a schema.
package mqtt

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	espdrone "github.com/espdrone-community/go-espdrone"
)

const (
	defaultPort    = 1883
	defaultTopic   = "espdrone/telemetry"
	connectTimeout = 10 * time.Second
	disconnectMs   = 250
)

// brokerConfig is the broker URL pulled apart.
type brokerConfig struct {
	server   string
	topic    string
	username string
	password string
}

// parseBrokerURL accepts mqtt://, tcp://, ws://, wss:// and mqtts://
// URLs. The path names the topic; credentials ride in the userinfo
// part.
func parseBrokerURL(raw string) (*brokerConfig, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid broker url: %w", err)
	}
	if u.Hostname() == "" {
		return nil, fmt.Errorf("broker url %q has no host", raw)
	}

	scheme := ""
	path := ""
	switch u.Scheme {
	case "mqtt", "tcp", "":
		scheme = "tcp"
	case "ws":
		scheme = "ws"
		path = "/mqtt"
	case "wss":
		scheme = "wss"
		path = "/mqtt"
	case "mqtts", "ssl":
		scheme = "ssl"
	default:
		return nil, fmt.Errorf("unsupported broker scheme %q", u.Scheme)
	}

	port := defaultPort
	if u.Port() != "" {
		port, err = strconv.Atoi(u.Port())
		if err != nil {
			return nil, fmt.Errorf("invalid broker port: %w", err)
		}
	}

	topic := strings.TrimPrefix(u.Path, "/")
	if topic == "" {
		topic = defaultTopic
	}

	cfg := &brokerConfig{
		server: fmt.Sprintf("%s://%s:%d%s", scheme, u.Hostname(), port, path),
		topic:  topic,
	}
	if u.User != nil {
		cfg.username = u.User.Username()
		cfg.password, _ = u.User.Password()
	}
	return cfg, nil
}

// randomClientID avoids broker-side session collisions between hosts.
func randomClientID() string {
	buf := make([]byte, 8)
	_, _ = rand.Read(buf)
	return "espdrone-" + hex.EncodeToString(buf)
}

// Publisher publishes telemetry messages to one topic.
type Publisher struct {
	client paho.Client
	topic  string
}

// New connects to the broker named by the URL and returns a ready
// publisher.
func New(brokerURL string) (*Publisher, error) {
	cfg, err := parseBrokerURL(brokerURL)
	if err != nil {
		return nil, err
	}

	opts := paho.NewClientOptions()
	opts.AddBroker(cfg.server)
	opts.SetClientID(randomClientID())
	opts.SetUsername(cfg.username)
	opts.SetPassword(cfg.password)
	opts.SetConnectTimeout(connectTimeout)
	opts.OnConnect = func(paho.Client) {
		espdrone.Debugf("mqtt connected to %s", cfg.server)
	}
	opts.OnConnectionLost = func(_ paho.Client, err error) {
		espdrone.Debugf("mqtt connection lost: %v", err)
	}

	client := paho.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("mqtt connect failed: %w", token.Error())
	}

	return &Publisher{client: client, topic: cfg.topic}, nil
}

// PublishConnection publishes a link state change.
func (p *Publisher) PublishConnection(connected bool) error {
	return p.publish(makeLinkMessage(connected, time.Now()))
}

// PublishVoltage publishes a battery sample.
func (p *Publisher) PublishVoltage(volts float32) error {
	return p.publish(makeVoltageMessage(volts, time.Now()))
}

// PublishHeightSensor publishes a deck detection outcome.
func (p *Publisher) PublishHeightSensor(present bool) error {
	return p.publish(makeHeightSensorMessage(present, time.Now()))
}

// Topic returns the topic this publisher writes to.
func (p *Publisher) Topic() string {
	return p.topic
}

// Close flushes and disconnects from the broker.
func (p *Publisher) Close() {
	p.client.Disconnect(disconnectMs)
}

func (p *Publisher) publish(msg string) error {
	token := p.client.Publish(p.topic, 0, false, msg)
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("mqtt publish failed: %w", token.Error())
	}
	return nil
}

// makeLinkMessage encodes a connection edge. lnk is 1 while the link
// is alive.
func makeLinkMessage(connected bool, now time.Time) string {
	var sb strings.Builder
	sb.WriteString("lnk:")
	if connected {
		sb.WriteByte('1')
	} else {
		sb.WriteByte('0')
	}
	sb.WriteString(",ts:")
	sb.WriteString(strconv.FormatInt(now.Unix(), 10))
	return sb.String()
}

// makeVoltageMessage encodes a battery sample. bpv carries centivolts
// so consumers never parse floats.
func makeVoltageMessage(volts float32, now time.Time) string {
	var sb strings.Builder
	sb.WriteString("bpv:")
	sb.WriteString(strconv.Itoa(int(math.Round(float64(volts) * 100))))
	sb.WriteString(",ts:")
	sb.WriteString(strconv.FormatInt(now.Unix(), 10))
	return sb.String()
}

// makeHeightSensorMessage encodes a deck detection outcome.
func makeHeightSensorMessage(present bool, now time.Time) string {
	var sb strings.Builder
	sb.WriteString("hsd:")
	if present {
		sb.WriteByte('1')
	} else {
		sb.WriteByte('0')
	}
	sb.WriteString(",ts:")
	sb.WriteString(strconv.FormatInt(now.Unix(), 10))
	return sb.String()
}
