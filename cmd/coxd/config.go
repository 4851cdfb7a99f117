package main

import (
	"os"

	"github.com/coxswain-io/coxswain/script"
	"github.com/coxswain-io/coxswain/sio"

	yaml "gopkg.in/yaml.v2"
)

// Config is a coxd configuration, an alternative to flags.
type Config struct {
	// Source locates the reducer definition.
	Source *script.Source `yaml:"source"`

	// DBFile, when not empty, is the transition journal filename.
	DBFile string `yaml:"db,omitempty"`

	// BootFile, when not empty, contains initial actions (one JSON
	// action per line).
	BootFile string `yaml:"boot,omitempty"`

	// HTTPAddr, when not empty, is the HTTP listen address.
	HTTPAddr string `yaml:"http,omitempty"`

	// WebSockets enables the websocket API (when HTTPAddr is set).
	WebSockets bool `yaml:"websockets,omitempty"`

	// HTTPDir, when not empty, is a directory to serve at /static/.
	HTTPDir string `yaml:"dir,omitempty"`

	// Stdin listens for actions on stdin.
	Stdin bool `yaml:"stdin,omitempty"`

	// Stdout emits notes to stdout.
	Stdout bool `yaml:"stdout,omitempty"`

	Verbose bool `yaml:"verbose,omitempty"`

	// MQTT, when not nil, couples the store to an MQTT broker
	// instead of the service APIs.
	MQTT *MQTTSection `yaml:"mqtt,omitempty"`
}

// MQTTSection extends broker session parameters with topics.
type MQTTSection struct {
	sio.MQTTConfig `yaml:",inline"`

	// SubTopics is a comma-separated list of subscription topics.
	SubTopics string `yaml:"subTopics"`

	// OutboundTopic receives out-bound notes.
	OutboundTopic string `yaml:"outboundTopic"`
}

// LoadConfig reads a YAML Config.
func LoadConfig(filename string) (*Config, error) {
	bs, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	var conf Config
	if err := yaml.Unmarshal(bs, &conf); err != nil {
		return nil, err
	}
	return &conf, nil
}
