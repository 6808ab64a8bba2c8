// Package joinset stages ephemeral sets of identifiers under a query-scoped
// handle so storage-side queries can join against them instead of binding
// thousands of parameters.
//
// A set is created, filled with rows, stored exactly once and deleted when the
// consuming query is done. Each row shape has its own Set type; a set of
// artifact rows cannot accept attribute values.
package joinset

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"time"
)

// Kind tags the row shape of a staged set.
type Kind string

const (
	KindArtifact Kind = "artifact"
	KindChar     Kind = "char"
	KindTxGamma  Kind = "tx_gamma"
	KindTag      Kind = "tag"
	KindGamma    Kind = "gamma"
)

// Kinds lists every row shape.
var Kinds = []Kind{KindArtifact, KindChar, KindTxGamma, KindTag, KindGamma}

// ErrAlreadyStored is returned when Store is called twice on one set.
var ErrAlreadyStored = errors.New("join set already stored")

// Store persists and removes staged rows.
type Store interface {
	InsertJoin(ctx context.Context, kind Kind, queryID int64, issuedAt time.Time, rows [][]any) error
	DeleteJoin(ctx context.Context, kind Kind, queryID int64) error
	ExpiredJoins(ctx context.Context, before time.Time) ([]Handle, error)
}

// Handle addresses a stored set.
type Handle struct {
	Kind     Kind
	QueryID  int64
	IssuedAt time.Time
}

// Row is implemented by every stageable row shape.
type Row interface {
	kind() Kind
	values() []any
}

// ArtifactRow stages an artifact on a branch.
type ArtifactRow struct {
	ArtifactID int64
	BranchID   int64
}

func (ArtifactRow) kind() Kind       { return KindArtifact }
func (r ArtifactRow) values() []any { return []any{r.ArtifactID, r.BranchID} }

// CharRow stages an attribute string value.
type CharRow struct {
	Value string
}

func (CharRow) kind() Kind       { return KindChar }
func (r CharRow) values() []any { return []any{r.Value} }

// TxGammaRow stages a transaction/gamma pair.
type TxGammaRow struct {
	TransactionID int64
	GammaID       int64
}

func (TxGammaRow) kind() Kind       { return KindTxGamma }
func (r TxGammaRow) values() []any { return []any{r.TransactionID, r.GammaID} }

// TagRow stages a search tag.
type TagRow struct {
	Tag int64
}

func (TagRow) kind() Kind       { return KindTag }
func (r TagRow) values() []any { return []any{r.Tag} }

// GammaRow stages a gamma id on its own.
type GammaRow struct {
	GammaID int64
}

func (GammaRow) kind() Kind       { return KindGamma }
func (r GammaRow) values() []any { return []any{r.GammaID} }

// Set is a staged set of rows of one shape.
//
// The query id is random and wide, but not guaranteed unique across live sets;
// keep a set's lifetime scoped to the query that consumes it.
type Set[R Row] struct {
	store   Store
	queryID int64
	rows    []R
	stored  bool
	now     func() time.Time
}

func newSet[R Row](store Store) *Set[R] {
	return &Set[R]{
		store:   store,
		queryID: rand.Int64N(math.MaxInt64) + 1,
		now:     time.Now,
	}
}

// NewArtifactSet creates a set of artifact/branch pairs.
func NewArtifactSet(store Store) *Set[ArtifactRow] { return newSet[ArtifactRow](store) }

// NewCharSet creates a set of attribute string values.
func NewCharSet(store Store) *Set[CharRow] { return newSet[CharRow](store) }

// NewTxGammaSet creates a set of transaction/gamma pairs.
func NewTxGammaSet(store Store) *Set[TxGammaRow] { return newSet[TxGammaRow](store) }

// NewTagSet creates a set of search tags.
func NewTagSet(store Store) *Set[TagRow] { return newSet[TagRow](store) }

// NewGammaSet creates a set of gamma ids.
func NewGammaSet(store Store) *Set[GammaRow] { return newSet[GammaRow](store) }

// QueryID is the handle consumers join against.
func (s *Set[R]) QueryID() int64 {
	return s.queryID
}

// Kind returns the row shape of the set.
func (s *Set[R]) Kind() Kind {
	var zero R
	return zero.kind()
}

// Add appends rows to the set. Rows added after Store are rejected.
func (s *Set[R]) Add(rows ...R) error {
	if s.stored {
		return fmt.Errorf("adding to %s join %d: %w", s.Kind(), s.queryID, ErrAlreadyStored)
	}

	s.rows = append(s.rows, rows...)
	return nil
}

// Len returns the number of staged rows.
func (s *Set[R]) Len() int {
	return len(s.rows)
}

// IsStored reports whether Store has completed.
func (s *Set[R]) IsStored() bool {
	return s.stored
}

// Store materializes the rows durably. It may only be called once.
func (s *Set[R]) Store(ctx context.Context) error {
	if s.stored {
		return fmt.Errorf("storing %s join %d: %w", s.Kind(), s.queryID, ErrAlreadyStored)
	}

	values := make([][]any, 0, len(s.rows))
	for _, r := range s.rows {
		values = append(values, r.values())
	}

	if err := s.store.InsertJoin(ctx, s.Kind(), s.queryID, s.now(), values); err != nil {
		return fmt.Errorf("storing %s join %d: %w", s.Kind(), s.queryID, err)
	}

	s.stored = true
	return nil
}

// Delete removes any materialized rows. It is safe to call on a set that was
// never stored.
func (s *Set[R]) Delete(ctx context.Context) error {
	if !s.stored {
		s.rows = nil
		return nil
	}

	if err := s.store.DeleteJoin(ctx, s.Kind(), s.queryID); err != nil {
		return fmt.Errorf("deleting %s join %d: %w", s.Kind(), s.queryID, err)
	}

	return nil
}
