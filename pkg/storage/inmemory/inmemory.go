// Package inmemory provides a map-backed storage driver for tests and
// ephemeral use.
package inmemory

import (
	"context"
	"sync"
	"time"

	"github.com/papercomputeco/grove/pkg/branch"
	"github.com/papercomputeco/grove/pkg/joinset"
	"github.com/papercomputeco/grove/pkg/storage"
	"github.com/papercomputeco/grove/pkg/txcache"
)

// itemKey addresses one versioned item on one branch.
type itemKey struct {
	branchID int64
	id       int64
}

type relKey struct {
	branchID int64
	typ      string
	a, b     int64
}

type joinKey struct {
	kind    joinset.Kind
	queryID int64
}

type join struct {
	issuedAt time.Time
	rows     [][]any
}

// Driver implements the storage boundary with in-memory maps. Every version
// ever written is kept; the last version of an item is its current one.
type Driver struct {
	// mu guards every map below
	mu sync.RWMutex

	sequences map[string]int64

	branches     map[int64]branch.Row
	merges       map[int64]branch.MergeRow
	aliases      map[int64][]string
	transactions map[int64]txcache.Record

	artifacts     map[itemKey][]artifactVersion
	attributes    map[itemKey][]attributeVersion
	artifactAttrs map[itemKey][]int64
	relations     map[relKey][]relationVersion
	artifactRels  map[itemKey]map[relKey]struct{}
	joins         map[joinKey]join
}

// NewDriver creates an empty in-memory driver.
func NewDriver() *Driver {
	return &Driver{
		sequences:     make(map[string]int64),
		branches:      make(map[int64]branch.Row),
		merges:        make(map[int64]branch.MergeRow),
		aliases:       make(map[int64][]string),
		transactions:  make(map[int64]txcache.Record),
		artifacts:     make(map[itemKey][]artifactVersion),
		attributes:    make(map[itemKey][]attributeVersion),
		artifactAttrs: make(map[itemKey][]int64),
		relations:     make(map[relKey][]relationVersion),
		artifactRels:  make(map[itemKey]map[relKey]struct{}),
		joins:         make(map[joinKey]join),
	}
}

// ReadSequence returns the last id handed out for a sequence.
func (d *Driver) ReadSequence(_ context.Context, name string) (int64, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	last, ok := d.sequences[name]
	if !ok {
		return 0, storage.NotFoundError{Kind: "sequence", Key: name}
	}
	return last, nil
}

// CompareAndSwapSequence moves a sequence from prev to next if it still
// holds prev.
func (d *Driver) CompareAndSwapSequence(_ context.Context, name string, prev, next int64) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	last, ok := d.sequences[name]
	if !ok {
		return false, storage.NotFoundError{Kind: "sequence", Key: name}
	}
	if last != prev {
		return false, nil
	}
	d.sequences[name] = next
	return true, nil
}

// CreateSequence creates a sequence whose last handed out id is start.
func (d *Driver) CreateSequence(_ context.Context, name string, start int64) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.sequences[name]; ok {
		return storage.AlreadyExistsError{Kind: "sequence", Key: name}
	}
	d.sequences[name] = start
	return nil
}

// Close is a no-op for the in-memory driver.
func (d *Driver) Close() error {
	return nil
}
