// Package sequence issues globally unique, strictly increasing identifiers
// per named sequence.
//
// Each sequence keeps a locally cached range of ids. When the range is
// exhausted the Allocator claims the next range from durable storage with a
// read followed by a compare-and-swap, retrying on contention. Every sequence
// except TransactionID doubles its prefetch size on each exhaustion so that
// sustained load costs fewer round-trips; TransactionID stays at one id per
// round-trip to keep transaction ordering tight across writers.
package sequence

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/papercomputeco/grove/pkg/storage"
)

// Well-known sequence names.
const (
	ArtifactID      = "ART_ID"
	AttributeID     = "ATTR_ID"
	RelationID      = "REL_LINK_ID"
	GammaID         = "GAMMA_ID"
	TransactionID   = "TRANSACTION_ID"
	BranchID        = "BRANCH_ID"
	ArtifactTypeID  = "ART_TYPE_ID"
	AttributeTypeID = "ATTR_TYPE_ID"
	RelationTypeID  = "REL_TYPE_ID"
)

// Names lists every well-known sequence created by InitializeDefaults.
var Names = []string{
	ArtifactID,
	AttributeID,
	RelationID,
	GammaID,
	TransactionID,
	BranchID,
	ArtifactTypeID,
	AttributeTypeID,
	RelationTypeID,
}

var (
	// ErrNotFound is matched by errors.Is when a sequence was never initialized.
	ErrNotFound = errors.New("sequence not found")

	// errContention marks a lost compare-and-swap; it never leaves this package.
	errContention = errors.New("sequence range contention")
)

const defaultInitialPrefetch int64 = 1

// Store is the durable counter backing the allocator.
type Store interface {
	// ReadSequence returns the last value claimed for the sequence or a
	// storage.NotFoundError when the sequence does not exist.
	ReadSequence(ctx context.Context, name string) (int64, error)

	// CompareAndSwapSequence sets the last value to next only when it still
	// equals prev. It reports whether the swap happened.
	CompareAndSwapSequence(ctx context.Context, name string, prev, next int64) (bool, error)

	// CreateSequence creates a sequence whose last claimed value is start.
	CreateSequence(ctx context.Context, name string, start int64) error
}

// Option configures an Allocator.
type Option func(*Allocator)

// WithInitialPrefetch sets the size of the first range claimed for every
// sequence without a per-name seed.
func WithInitialPrefetch(n int64) Option {
	return func(a *Allocator) {
		if n > 0 {
			a.initialPrefetch = n
		}
	}
}

// WithSequencePrefetch seeds the first range size for a single sequence.
func WithSequencePrefetch(name string, n int64) Option {
	return func(a *Allocator) {
		if n > 0 {
			a.seeds[name] = n
		}
	}
}

// WithLogger sets the logger used for range claims.
func WithLogger(l *slog.Logger) Option {
	return func(a *Allocator) {
		a.logger = l
	}
}

// WithRegisterer registers the allocator's metrics on reg. Without it the
// metrics are kept but never exported.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(a *Allocator) {
		a.registerer = reg
	}
}

// idRange is the cached [current, last) window of one sequence.
type idRange struct {
	mu       sync.Mutex
	current  int64
	last     int64
	prefetch int64
	fetched  bool
}

// Allocator hands out ids for any number of named sequences. It is safe for
// concurrent use; callers of the same sequence are serialized per name.
type Allocator struct {
	store           Store
	logger          *slog.Logger
	initialPrefetch int64
	seeds           map[string]int64
	registerer      prometheus.Registerer
	metrics         *metrics

	mu     sync.Mutex
	ranges map[string]*idRange
}

// NewAllocator creates an Allocator over the given store.
func NewAllocator(store Store, opts ...Option) *Allocator {
	a := &Allocator{
		store:           store,
		logger:          slog.New(slog.DiscardHandler),
		initialPrefetch: defaultInitialPrefetch,
		seeds:           make(map[string]int64),
		ranges:          make(map[string]*idRange),
	}

	for _, opt := range opts {
		opt(a)
	}
	a.metrics = newMetrics(a.registerer)

	return a
}

// Next returns the next id of the named sequence.
func (a *Allocator) Next(ctx context.Context, name string) (int64, error) {
	r := a.rangeFor(name)

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.current >= r.last {
		if err := a.claim(ctx, name, r); err != nil {
			return 0, err
		}
	}

	id := r.current
	r.current++
	return id, nil
}

// PrefetchSize reports the size of the most recently claimed range of the
// sequence, or the size the first claim will use.
func (a *Allocator) PrefetchSize(name string) int64 {
	r := a.rangeFor(name)

	r.mu.Lock()
	defer r.mu.Unlock()
	return r.prefetch
}

// Initialize creates a new sequence whose first id will be start+1.
func (a *Allocator) Initialize(ctx context.Context, name string, start int64) error {
	if err := a.store.CreateSequence(ctx, name, start); err != nil {
		return fmt.Errorf("initializing sequence %s: %w", name, err)
	}

	a.logger.Debug("initialized sequence", "sequence", name, "start", start)
	return nil
}

// InitializeDefaults creates every well-known sequence that does not exist yet.
func (a *Allocator) InitializeDefaults(ctx context.Context) error {
	for _, name := range Names {
		_, err := a.store.ReadSequence(ctx, name)
		if err == nil {
			continue
		}

		var notFound storage.NotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("reading sequence %s: %w", name, err)
		}

		if err := a.Initialize(ctx, name, 0); err != nil {
			return err
		}
	}

	return nil
}

func (a *Allocator) rangeFor(name string) *idRange {
	a.mu.Lock()
	defer a.mu.Unlock()

	r, ok := a.ranges[name]
	if !ok {
		prefetch := a.initialPrefetch
		if seed, ok := a.seeds[name]; ok {
			prefetch = seed
		}
		if name == TransactionID {
			prefetch = 1
		}

		r = &idRange{prefetch: prefetch}
		a.ranges[name] = r
	}

	return r
}

// claim fetches a new range into r. The caller holds r.mu.
func (a *Allocator) claim(ctx context.Context, name string, r *idRange) error {
	want := r.prefetch
	if r.fetched {
		want = nextPrefetch(name, want)
	}

	var start, end, claimed int64
	op := func() error {
		last, err := a.store.ReadSequence(ctx, name)
		if err != nil {
			var notFound storage.NotFoundError
			if errors.As(err, &notFound) {
				return backoff.Permanent(fmt.Errorf("%w: %w", ErrNotFound, err))
			}
			return backoff.Permanent(fmt.Errorf("reading sequence %s: %w", name, err))
		}

		// The exclusive range end last+size+1 must stay representable.
		size := min(want, math.MaxInt64-1-last)
		if size < 1 {
			return backoff.Permanent(fmt.Errorf("sequence %s exhausted at %d", name, last))
		}

		swapped, err := a.store.CompareAndSwapSequence(ctx, name, last, last+size)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("claiming sequence %s: %w", name, err))
		}

		a.metrics.roundTrips.WithLabelValues(name).Inc()
		if !swapped {
			a.metrics.casConflicts.WithLabelValues(name).Inc()
			return errContention
		}

		start, end, claimed = last+1, last+size+1, size
		return nil
	}

	if err := backoff.Retry(op, backoff.WithContext(newClaimBackOff(), ctx)); err != nil {
		return err
	}

	r.current, r.last = start, end
	r.prefetch = claimed
	r.fetched = true
	a.metrics.prefetch.WithLabelValues(name).Set(float64(claimed))

	a.logger.Debug("claimed sequence range",
		"sequence", name,
		"first", start,
		"last", end-1,
		"prefetch", claimed,
	)

	return nil
}

// nextPrefetch doubles the range size for every sequence but TransactionID.
func nextPrefetch(name string, size int64) int64 {
	if name == TransactionID {
		return 1
	}
	if size > math.MaxInt64/2 {
		return size
	}
	return size * 2
}

func newClaimBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = time.Millisecond
	b.MaxInterval = 50 * time.Millisecond
	b.MaxElapsedTime = 0
	return b
}
