// Package txcache holds the immutable transaction (commit) records of every
// branch. A transaction id is the as-of coordinate for historical reads, so
// the branch cache resolves base and source transactions through here.
package txcache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/papercomputeco/grove/pkg/storage"
)

// Type classifies a transaction.
type Type int

const (
	Baseline Type = iota + 1
	Working
	Merge
)

func (t Type) String() string {
	switch t {
	case Baseline:
		return "baseline"
	case Working:
		return "working"
	case Merge:
		return "merge"
	default:
		return fmt.Sprintf("type(%d)", int(t))
	}
}

// Record is one committed transaction. Records never change once created.
type Record struct {
	ID       int64
	BranchID int64
	Type     Type
	Author   string
	Comment  string
	Time     time.Time
}

// Loader reads every transaction record from storage.
type Loader interface {
	ListTransactions(ctx context.Context) ([]Record, error)
}

// ErrNotLoaded is returned by lookups on a cache that was never loaded.
var ErrNotLoaded = errors.New("transaction cache not loaded")

// Cache indexes transaction records by id and tracks each branch's head.
type Cache struct {
	mu     sync.RWMutex
	byID   map[int64]Record
	heads  map[int64]int64
	loaded bool
}

// NewCache creates an empty, unloaded cache.
func NewCache() *Cache {
	return &Cache{
		byID:  make(map[int64]Record),
		heads: make(map[int64]int64),
	}
}

// Load replaces the cache content with every record in storage.
func (c *Cache) Load(ctx context.Context, loader Loader) error {
	records, err := loader.ListTransactions(ctx)
	if err != nil {
		return fmt.Errorf("loading transactions: %w", err)
	}

	byID := make(map[int64]Record, len(records))
	heads := make(map[int64]int64)
	for _, r := range records {
		byID[r.ID] = r
		if r.ID > heads[r.BranchID] {
			heads[r.BranchID] = r.ID
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.byID = byID
	c.heads = heads
	c.loaded = true
	return nil
}

// IsLoaded reports whether Load has completed at least once.
func (c *Cache) IsLoaded() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loaded
}

// Get returns the record with the given id.
func (c *Cache) Get(id int64) (Record, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.loaded {
		return Record{}, ErrNotLoaded
	}

	r, ok := c.byID[id]
	if !ok {
		return Record{}, storage.NotFound("transaction", id)
	}
	return r, nil
}

// Put registers a newly committed record.
func (c *Cache) Put(r Record) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.byID[r.ID] = r
	if r.ID > c.heads[r.BranchID] {
		c.heads[r.BranchID] = r.ID
	}
}

// Head returns the latest record committed on a branch.
func (c *Cache) Head(branchID int64) (Record, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	id, ok := c.heads[branchID]
	if !ok {
		return Record{}, storage.NotFound("branch head", branchID)
	}
	return c.byID[id], nil
}

// Len returns the number of cached records.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.byID)
}
