// Package engine wires storage, id allocation, the caches and the transaction
// coordinator into one handle.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/papercomputeco/grove/pkg/artifact"
	"github.com/papercomputeco/grove/pkg/branch"
	"github.com/papercomputeco/grove/pkg/eventstream"
	"github.com/papercomputeco/grove/pkg/eventstream/nop"
	"github.com/papercomputeco/grove/pkg/joinset"
	"github.com/papercomputeco/grove/pkg/sequence"
	"github.com/papercomputeco/grove/pkg/storage/inmemory"
	"github.com/papercomputeco/grove/pkg/storage/postgres"
	"github.com/papercomputeco/grove/pkg/storage/sqlite"
	"github.com/papercomputeco/grove/pkg/txcache"
	"github.com/papercomputeco/grove/pkg/txn"
)

// RootBranchName names the system root created by Bootstrap.
const RootBranchName = "System Root Branch"

// Storage is everything the engine needs from a durable store.
type Storage interface {
	sequence.Store
	joinset.Store
	txcache.Loader
	branch.Loader
	branch.Store
	txn.Storage

	Close() error
}

var (
	_ Storage = (*inmemory.Driver)(nil)
	_ Storage = (*sqlite.SQLiteDriver)(nil)
	_ Storage = (*postgres.Driver)(nil)
)

// Options configures New. Storage is required.
type Options struct {
	Storage         Storage
	Publisher       eventstream.Publisher
	Registry        *artifact.Registry
	InitialPrefetch int64
	Metrics         *prometheus.Registry
	Logger          *slog.Logger
}

// Engine bundles the components that share one store.
type Engine struct {
	Storage      Storage
	IDs          *sequence.Allocator
	Transactions *txcache.Cache
	Branches     *branch.Cache
	Creator      *branch.Creator
	Registry     *artifact.Registry
	Arena        *artifact.Arena
	Coordinator  *txn.Coordinator
	Sweeper      *joinset.Sweeper
	Metrics      *prometheus.Registry

	publisher eventstream.Publisher
	logger    *slog.Logger
}

// New wires an Engine over an open store. Missing optional pieces fall back
// to a no-op publisher, the default type registry, a private metrics registry
// and a discarding logger.
func New(opts Options) *Engine {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	publisher := opts.Publisher
	if publisher == nil {
		publisher = nop.NewPublisher(logger.With("component", "eventstream"))
	}
	registry := opts.Registry
	if registry == nil {
		registry = DefaultRegistry()
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = prometheus.NewRegistry()
	}

	var seqOpts []sequence.Option
	seqOpts = append(seqOpts,
		sequence.WithLogger(logger.With("component", "sequence")),
		sequence.WithRegisterer(metrics),
	)
	if opts.InitialPrefetch > 0 {
		seqOpts = append(seqOpts, sequence.WithInitialPrefetch(opts.InitialPrefetch))
	}
	ids := sequence.NewAllocator(opts.Storage, seqOpts...)

	txCache := txcache.NewCache()
	branches := branch.NewCache(txCache)
	arena := artifact.NewArena()

	return &Engine{
		Storage:      opts.Storage,
		IDs:          ids,
		Transactions: txCache,
		Branches:     branches,
		Creator:      branch.NewCreator(branches, txCache, ids, opts.Storage, logger.With("component", "branch")),
		Registry:     registry,
		Arena:        arena,
		Coordinator: txn.NewCoordinator(txn.Config{
			Storage:      opts.Storage,
			IDs:          ids,
			Branches:     branches,
			Transactions: txCache,
			Arena:        arena,
			Registry:     registry,
			Publisher:    publisher,
			Logger:       logger.With("component", "txn"),
			Metrics:      metrics,
		}),
		Sweeper:   joinset.NewSweeper(opts.Storage, logger.With("component", "joinset")),
		Metrics:   metrics,
		publisher: publisher,
		logger:    logger,
	}
}

// Reload refreshes the transaction cache and then the branch cache from
// storage.
func (e *Engine) Reload(ctx context.Context) error {
	if err := e.Transactions.Load(ctx, e.Storage); err != nil {
		return err
	}
	return e.Branches.Load(ctx, e.Storage)
}

// Bootstrap creates the well-known sequences and the system root branch when
// they are missing, loads the caches and returns the root.
func (e *Engine) Bootstrap(ctx context.Context, author string) (*branch.Branch, error) {
	if err := e.IDs.InitializeDefaults(ctx); err != nil {
		return nil, fmt.Errorf("initializing sequences: %w", err)
	}
	if err := e.Reload(ctx); err != nil {
		return nil, fmt.Errorf("loading caches: %w", err)
	}

	if root := e.Root(); root != nil {
		return root, nil
	}

	root, err := e.Creator.CreateRoot(ctx, RootBranchName, author)
	if err != nil {
		return nil, fmt.Errorf("creating root branch: %w", err)
	}

	e.logger.Info("created root branch", "branch_id", root.ID(), "name", root.Name())
	return root, nil
}

// Root returns the system root branch, or nil before Bootstrap.
func (e *Engine) Root() *branch.Branch {
	for _, b := range e.Branches.All() {
		if b.Type() == branch.SystemRoot {
			return b
		}
	}
	return nil
}

// Close releases the publisher and the store.
func (e *Engine) Close() error {
	return errors.Join(e.publisher.Close(), e.Storage.Close())
}
