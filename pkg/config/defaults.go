package config

import "slices"

// Storage driver names.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Event publisher names.
const (
	PublisherNop   = "nop"
	PublisherKafka = "kafka"
)

const (
	defaultDriver          = DriverSQLite
	defaultInitialPrefetch = 1
	defaultJoinMaxAge      = "1h"
	defaultPublisher       = PublisherNop
	defaultTopic           = "grove.changesets"
	defaultPostgresDSN     = "postgres://localhost:5432/grove?sslmode=disable"
	defaultKafkaBrokers    = "localhost:9092"
)

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values.
func NewDefaultConfig() *Config {
	return &Config{
		Version: CurrentV,
		Storage: StorageConfig{
			Driver: defaultDriver,
		},
		Sequence: SequenceConfig{
			InitialPrefetch: defaultInitialPrefetch,
		},
		JoinSet: JoinSetConfig{
			MaxAge: defaultJoinMaxAge,
		},
		EventStream: EventStreamConfig{
			Provider: defaultPublisher,
			Topic:    defaultTopic,
		},
	}
}

// ValidDrivers returns the supported storage driver names.
func ValidDrivers() []string {
	return []string{DriverMemory, DriverSQLite, DriverPostgres}
}

func isValidDriver(name string) bool {
	return slices.Contains(ValidDrivers(), name)
}
