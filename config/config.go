package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// ChannelConfig holds connection settings for the session channel.
type ChannelConfig struct {
	Hosts     []string `toml:"hosts"`
	Compress  bool     `toml:"compress"`
	UserAgent string   `toml:"user_agent"`
}

// SessionConfig identifies the session to join and how to identify
// ourselves in it.
type SessionConfig struct {
	ID          string `toml:"id"`
	Identity    string `toml:"identity,omitempty"`
	IdentityDir string `toml:"identity_dir,omitempty"`
}

// ArchiveConfig configures the optional local archive.
type ArchiveConfig struct {
	Database         string `toml:"database,omitempty"`
	SnapshotInterval string `toml:"snapshot_interval,omitempty"`
}

// Config is the top-level configuration.
type Config struct {
	Channel ChannelConfig `toml:"channel"`
	Session SessionConfig `toml:"session"`
	Archive ArchiveConfig `toml:"archive"`
}

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	var config Config
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	return &config, nil
}
