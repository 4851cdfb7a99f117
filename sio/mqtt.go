/* Copyright 2026 The Coxswain Authors
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 * http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package sio

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/coxswain-io/coxswain/script"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// MQTTConfig holds broker session parameters.
//
// The field names follow mosquitto_sub command-line args where they
// can.
type MQTTConfig struct {
	Broker    string `json:"broker" yaml:"broker"`
	Port      int    `json:"port,omitempty" yaml:"port,omitempty"`
	ClientID  string `json:"clientId,omitempty" yaml:"clientId,omitempty"`
	KeepAlive int    `json:"keepAlive,omitempty" yaml:"keepAlive,omitempty"`
	Username  string `json:"username,omitempty" yaml:"username,omitempty"`
	Password  string `json:"password,omitempty" yaml:"password,omitempty"`
	Reconnect bool   `json:"reconnect,omitempty" yaml:"reconnect,omitempty"`
	Clean     bool   `json:"clean,omitempty" yaml:"clean,omitempty"`

	WillTopic   string `json:"willTopic,omitempty" yaml:"willTopic,omitempty"`
	WillPayload string `json:"willPayload,omitempty" yaml:"willPayload,omitempty"`
	WillQoS     int    `json:"willQoS,omitempty" yaml:"willQoS,omitempty"`
	WillRetain  bool   `json:"willRetain,omitempty" yaml:"willRetain,omitempty"`

	CertFilename string `json:"cert,omitempty" yaml:"cert,omitempty"`
	KeyFilename  string `json:"key,omitempty" yaml:"key,omitempty"`
	CAFilename   string `json:"cafile,omitempty" yaml:"cafile,omitempty"`
	Insecure     bool   `json:"insecure,omitempty" yaml:"insecure,omitempty"`
}

// Options builds Paho client options from the config.
func (c *MQTTConfig) Options() (*mqtt.ClientOptions, error) {
	opts := mqtt.NewClientOptions()

	broker := c.Broker
	if c.Port != 0 {
		broker = fmt.Sprintf("%s:%d", broker, c.Port)
	}
	opts.AddBroker(broker)
	opts.SetClientID(c.ClientID)
	if 0 < c.KeepAlive {
		opts.SetKeepAlive(time.Second * time.Duration(c.KeepAlive))
	}
	opts.SetPingTimeout(10 * time.Second)

	opts.Username = c.Username
	opts.Password = c.Password
	opts.AutoReconnect = c.Reconnect
	opts.CleanSession = c.Clean

	if c.WillTopic != "" {
		if c.WillPayload == "" {
			return nil, fmt.Errorf("will topic without payload")
		}
		opts.WillEnabled = true
		opts.WillTopic = c.WillTopic
		opts.WillPayload = []byte(c.WillPayload)
		opts.WillRetained = c.WillRetain
		opts.WillQos = byte(c.WillQoS)
	}

	var rootCAs *x509.CertPool
	if rootCAs, _ = x509.SystemCertPool(); rootCAs == nil {
		rootCAs = x509.NewCertPool()
	}
	if c.CAFilename != "" {
		certs, err := os.ReadFile(c.CAFilename)
		if err != nil {
			return nil, err
		}
		if ok := rootCAs.AppendCertsFromPEM(certs); !ok {
			log.Println("No certs appended, using system certs only")
		}
	}

	var certs []tls.Certificate
	if c.KeyFilename != "" {
		cert, err := tls.LoadX509KeyPair(c.CertFilename, c.KeyFilename)
		if err != nil {
			return nil, err
		}
		certs = []tls.Certificate{cert}
	}

	tlsConf := &tls.Config{
		InsecureSkipVerify: c.Insecure,
		RootCAs:            rootCAs,
		Certificates:       certs,
	}
	opts.SetTLSConfig(tlsConf)

	opts.OnConnectionLost = func(client mqtt.Client, err error) {
		log.Printf("MQTT connection lost")
	}

	return opts, nil
}

// MQTT is a Couplings that talks to an MQTT broker: subscription
// topics feed actions in, and notes go out to an outbound topic.
type MQTT struct {
	Client mqtt.Client

	// Quiesce is the disconnection quiescence in milliseconds.
	Quiesce uint

	// SubTopics is a comma-separated list of subscription topics,
	// each optionally of the form TOPIC:QOS.
	SubTopics string

	// InjectTopic puts the topic in a map of incoming actions.
	InjectTopic bool

	// OutboundTopic receives out-bound notes.
	OutboundTopic string

	// InTimeout bounds in-bound queuing.
	InTimeout time.Duration

	// Verbose turns on logging.
	Verbose bool

	incoming chan script.Action
	outbound chan *Note
	done     chan bool
}

// NewMQTT creates an MQTT Couplings with a client built from the
// config.
func NewMQTT(conf *MQTTConfig, subTopics, outboundTopic string) (*MQTT, error) {
	m := &MQTT{
		Quiesce:       100,
		SubTopics:     subTopics,
		InjectTopic:   true,
		OutboundTopic: outboundTopic,
		InTimeout:     5 * time.Second,
		incoming:      make(chan script.Action),
		outbound:      make(chan *Note),
		done:          make(chan bool),
	}

	opts, err := conf.Options()
	if err != nil {
		return nil, err
	}
	opts.DefaultPublishHandler = func(client mqtt.Client, msg mqtt.Message) {
		m.consume(msg.Topic(), msg.Payload())
	}
	m.Client = mqtt.NewClient(opts)

	return m, nil
}

func (m *MQTT) logf(format string, args ...interface{}) {
	if m.Verbose {
		log.Printf(format, args...)
	}
}

// consume parses an in-bound payload and queues the action.
func (m *MQTT) consume(topic string, payload []byte) {
	var a script.Action
	if err := json.Unmarshal(payload, &a); err != nil {
		log.Printf("Couldn't JSON-parse payload: %s", payload)
		a = script.Action{"payload": string(payload)}
	}
	if m.InjectTopic {
		a["topic"] = topic
	}

	to := time.NewTimer(m.InTimeout)
	defer to.Stop()

	select {
	case m.incoming <- a:
		m.logf("MQTT forwarded incoming %s", payload)
	case <-m.done:
	case <-to.C:
		log.Printf("MQTT not forwarding due to stall ('%s','%s')", topic, payload)
	}
}

// Start connects to the broker and subscribes.
func (m *MQTT) Start(ctx context.Context) error {
	if token := m.Client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	m.logf("Connected to broker")

	for _, topic := range strings.Split(m.SubTopics, ",") {
		topic, qos := parseTopic(topic)
		if topic == "" {
			continue
		}
		if t := m.Client.Subscribe(topic, qos, nil); t.Wait() && t.Error() != nil {
			return t.Error()
		}
		m.logf("Subscribed to %s (%d)", topic, qos)
	}

	return nil
}

// IO starts a loop to publish out-bound notes and returns the
// coupling's channels.
func (m *MQTT) IO(ctx context.Context) (chan script.Action, chan *Note, chan bool, error) {
	go m.outLoop(ctx)
	return m.incoming, m.outbound, m.done, nil
}

// outLoop forwards out-bound notes to the broker.
func (m *MQTT) outLoop(ctx context.Context) {
	topic, qos := parseTopic(m.OutboundTopic)
	for {
		select {
		case <-ctx.Done():
			return
		case n := <-m.outbound:
			if n == nil {
				return
			}
			js, err := json.Marshal(n)
			if err != nil {
				log.Printf("Failed to marshal %#v", n)
				continue
			}
			token := m.Client.Publish(topic, qos, false, js)
			token.Wait()
			if token.Error() != nil {
				log.Printf("Publish error: %s", token.Error())
				continue
			}
			m.logf("Published to %s", topic)
		}
	}
}

// Stop terminates the MQTT session.
func (m *MQTT) Stop(ctx context.Context) error {
	m.logf("Disconnecting")
	m.Client.Disconnect(m.Quiesce)
	return nil
}

// parseTopic can extract QoS from a topic name of the form TOPIC:QOS.
func parseTopic(s string) (string, byte) {
	var topic string
	var qos byte
	parts := strings.SplitN(strings.TrimSpace(s), ":", 2)
	topic = parts[0]
	if 2 == len(parts) {
		n, err := strconv.Atoi(parts[1])
		if err != nil || n < 0 || 2 < n {
			log.Printf("bad QoS in topic '%s'", s)
		} else {
			qos = byte(n)
		}
	}
	return topic, qos
}
