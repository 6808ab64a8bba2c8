package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/papercomputeco/grove/pkg/config"
	"github.com/papercomputeco/grove/pkg/dotdir"
	"github.com/papercomputeco/grove/pkg/eventstream"
	"github.com/papercomputeco/grove/pkg/eventstream/kafka"
	"github.com/papercomputeco/grove/pkg/eventstream/nop"
	"github.com/papercomputeco/grove/pkg/storage/inmemory"
	"github.com/papercomputeco/grove/pkg/storage/postgres"
	"github.com/papercomputeco/grove/pkg/storage/sqlite"
)

// Open builds an Engine from resolved configuration. configDir overrides the
// .grove/ directory used for the default SQLite path.
func Open(ctx context.Context, cfg *config.Config, configDir string, logger *slog.Logger) (*Engine, error) {
	store, err := OpenStorage(ctx, cfg.Storage, configDir, logger)
	if err != nil {
		return nil, err
	}

	publisher, err := OpenPublisher(cfg.EventStream, logger)
	if err != nil {
		return nil, errors.Join(err, store.Close())
	}

	return New(Options{
		Storage:         store,
		Publisher:       publisher,
		InitialPrefetch: int64(cfg.Sequence.InitialPrefetch),
		Logger:          logger,
	}), nil
}

// OpenStorage opens the configured store and creates its schema.
func OpenStorage(ctx context.Context, cfg config.StorageConfig, configDir string, logger *slog.Logger) (Storage, error) {
	switch cfg.Driver {
	case config.DriverMemory:
		logger.Info("using in-memory storage")
		return inmemory.NewDriver(), nil

	case config.DriverSQLite, "":
		path := cfg.SQLitePath
		if path == "" {
			p, err := dotdir.NewManager().DatabasePath(configDir)
			if err != nil {
				return nil, fmt.Errorf("resolving sqlite path: %w", err)
			}
			path = p
		}

		driver, err := sqlite.NewSQLiteDriver(ctx, path)
		if err != nil {
			return nil, fmt.Errorf("failed to create SQLite store: %w", err)
		}
		logger.Info("using SQLite storage", "path", path)
		return driver, nil

	case config.DriverPostgres:
		if cfg.PostgresDSN == "" {
			return nil, errors.New("postgres storage requires storage.postgres_dsn")
		}

		driver, err := postgres.NewDriver(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("failed to create PostgreSQL store: %w", err)
		}
		logger.Info("using PostgreSQL storage")
		return driver, nil

	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

// OpenPublisher builds the configured change set publisher.
func OpenPublisher(cfg config.EventStreamConfig, logger *slog.Logger) (eventstream.Publisher, error) {
	switch cfg.Provider {
	case config.PublisherNop, "":
		return nop.NewPublisher(logger.With("component", "eventstream")), nil

	case config.PublisherKafka:
		p, err := kafka.NewPublisher(kafka.Config{
			Brokers: cfg.Brokers(),
			Topic:   cfg.Topic,
		}, logger.With("component", "eventstream"))
		if err != nil {
			return nil, fmt.Errorf("creating kafka publisher: %w", err)
		}
		logger.Info("publishing change sets to kafka", "topic", cfg.Topic)
		return p, nil

	default:
		return nil, fmt.Errorf("unknown event publisher %q", cfg.Provider)
	}
}
