package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Config represents the persistent grove configuration stored as config.toml
// in the .grove/ directory. The TOML layout uses sections for logical grouping.
type Config struct {
	Version     int               `toml:"version"`
	Storage     StorageConfig     `toml:"storage"`
	Sequence    SequenceConfig    `toml:"sequence"`
	JoinSet     JoinSetConfig     `toml:"joinset"`
	EventStream EventStreamConfig `toml:"eventstream"`
}

// StorageConfig selects and addresses the durable store.
type StorageConfig struct {
	// Driver is one of "memory", "sqlite" or "postgres".
	Driver string `toml:"driver,omitempty"`

	// SQLitePath defaults to grove.db inside the .grove/ directory.
	SQLitePath  string `toml:"sqlite_path,omitempty"`
	PostgresDSN string `toml:"postgres_dsn,omitempty"`
}

// SequenceConfig holds id allocation settings.
type SequenceConfig struct {
	InitialPrefetch uint `toml:"initial_prefetch,omitempty"`
}

// JoinSetConfig holds staged join set settings.
type JoinSetConfig struct {
	// MaxAge is a duration string; staged sets older than this are swept.
	MaxAge string `toml:"max_age,omitempty"`
}

// MaxAgeDuration parses MaxAge.
func (c JoinSetConfig) MaxAgeDuration() (time.Duration, error) {
	d, err := time.ParseDuration(c.MaxAge)
	if err != nil {
		return 0, fmt.Errorf("invalid value for joinset.max_age: %w", err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("invalid value for joinset.max_age: %q must be positive", c.MaxAge)
	}
	return d, nil
}

// EventStreamConfig holds change set event publishing settings.
type EventStreamConfig struct {
	// Provider is "nop" or "kafka".
	Provider string `toml:"provider,omitempty"`

	// KafkaBrokers is a comma separated list of host:port addresses.
	KafkaBrokers string `toml:"kafka_brokers,omitempty"`
	Topic        string `toml:"topic,omitempty"`
}

// Brokers splits KafkaBrokers, dropping blanks.
func (c EventStreamConfig) Brokers() []string {
	var out []string
	for b := range strings.SplitSeq(c.KafkaBrokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}

// configKeyInfo maps a user-facing dotted key name to a getter and setter on *Config.
type configKeyInfo struct {
	get func(c *Config) string
	set func(c *Config, v string) error
}

// configKeys is the authoritative map of all supported config keys.
// Keys use dotted notation matching the TOML section structure.
var configKeys = map[string]configKeyInfo{
	"storage.driver": {
		get: func(c *Config) string { return c.Storage.Driver },
		set: func(c *Config, v string) error {
			if !isValidDriver(v) {
				return fmt.Errorf("invalid value for storage.driver: %q (available: %s)", v, strings.Join(ValidDrivers(), ", "))
			}
			c.Storage.Driver = v
			return nil
		},
	},
	"storage.sqlite_path": {
		get: func(c *Config) string { return c.Storage.SQLitePath },
		set: func(c *Config, v string) error { c.Storage.SQLitePath = v; return nil },
	},
	"storage.postgres_dsn": {
		get: func(c *Config) string { return c.Storage.PostgresDSN },
		set: func(c *Config, v string) error { c.Storage.PostgresDSN = v; return nil },
	},
	"sequence.initial_prefetch": {
		get: func(c *Config) string {
			if c.Sequence.InitialPrefetch == 0 {
				return ""
			}
			return strconv.FormatUint(uint64(c.Sequence.InitialPrefetch), 10)
		},
		set: func(c *Config, v string) error {
			n, err := strconv.ParseUint(v, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid value for sequence.initial_prefetch: %w", err)
			}
			c.Sequence.InitialPrefetch = uint(n)
			return nil
		},
	},
	"joinset.max_age": {
		get: func(c *Config) string { return c.JoinSet.MaxAge },
		set: func(c *Config, v string) error {
			if _, err := (JoinSetConfig{MaxAge: v}).MaxAgeDuration(); err != nil {
				return err
			}
			c.JoinSet.MaxAge = v
			return nil
		},
	},
	"eventstream.provider": {
		get: func(c *Config) string { return c.EventStream.Provider },
		set: func(c *Config, v string) error {
			if v != PublisherNop && v != PublisherKafka {
				return fmt.Errorf("invalid value for eventstream.provider: %q (available: %s, %s)", v, PublisherNop, PublisherKafka)
			}
			c.EventStream.Provider = v
			return nil
		},
	},
	"eventstream.kafka_brokers": {
		get: func(c *Config) string { return c.EventStream.KafkaBrokers },
		set: func(c *Config, v string) error { c.EventStream.KafkaBrokers = v; return nil },
	},
	"eventstream.topic": {
		get: func(c *Config) string { return c.EventStream.Topic },
		set: func(c *Config, v string) error { c.EventStream.Topic = v; return nil },
	},
}
