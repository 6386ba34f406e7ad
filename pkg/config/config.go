package config

import (
	"fmt"
	"os"

	"github.com/grainstack/grain/pkg/eventstore"
	"github.com/grainstack/grain/pkg/snapshot"
	"gopkg.in/yaml.v3"
)

// HTTPConfig configures the API server.
type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// EventStoreConfig configures the event store backend.
type EventStoreConfig struct {
	Conn eventstore.ConnConfig `yaml:"conn"`
}

// PubSubConfig configures the bus.
type PubSubConfig struct {
	Buffer int `yaml:"buffer"`
}

// Config is the top-level runtime configuration.
type Config struct {
	HTTP       HTTPConfig       `yaml:"http"`
	Log        LogConfig        `yaml:"log"`
	EventStore EventStoreConfig `yaml:"event_store"`
	PubSub     PubSubConfig     `yaml:"pubsub"`
	Snapshots  snapshot.Config  `yaml:"snapshots"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		HTTP:       HTTPConfig{Addr: ":8080"},
		Log:        LogConfig{Level: "info", JSON: true},
		EventStore: EventStoreConfig{Conn: eventstore.ConnConfig{Type: eventstore.ConnInMemory}},
		PubSub:     PubSubConfig{Buffer: 1024},
		Snapshots:  snapshot.Config{StorageDir: "."},
	}
}

// Load reads a YAML config file, applying defaults for omitted fields.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if cfg.PubSub.Buffer <= 0 {
		cfg.PubSub.Buffer = 1024
	}
	return cfg, nil
}
