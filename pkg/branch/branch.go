// Package branch models the branch hierarchy: a forest of independently
// forkable lines of artifact history, their merge associations and aliases.
package branch

import (
	"fmt"
	"slices"
	"sync"

	"github.com/papercomputeco/grove/pkg/txcache"
)

// Type classifies a branch.
type Type int

const (
	Working Type = iota + 1
	Baseline
	Merge
	Port
	SystemRoot
)

func (t Type) String() string {
	switch t {
	case Working:
		return "working"
	case Baseline:
		return "baseline"
	case Merge:
		return "merge"
	case Port:
		return "port"
	case SystemRoot:
		return "system_root"
	default:
		return fmt.Sprintf("type(%d)", int(t))
	}
}

// ParseType parses the String form of a Type.
func ParseType(s string) (Type, error) {
	for t := Working; t <= SystemRoot; t++ {
		if t.String() == s {
			return t, nil
		}
	}
	return 0, fmt.Errorf("unknown branch type %q", s)
}

// State is the lifecycle state of a branch.
type State int

const (
	Created State = iota + 1
	Modified
	Committed
	Rebaselined
	Deleted
	RebaselineInProgress
	CommitInProgress
	Purged
)

func (s State) String() string {
	switch s {
	case Created:
		return "created"
	case Modified:
		return "modified"
	case Committed:
		return "committed"
	case Rebaselined:
		return "rebaselined"
	case Deleted:
		return "deleted"
	case RebaselineInProgress:
		return "rebaseline_in_progress"
	case CommitInProgress:
		return "commit_in_progress"
	case Purged:
		return "purged"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Row is the stored shape of a branch. Zero ids mean "none".
type Row struct {
	ID           int64
	GUID         string
	Name         string
	Type         Type
	State        State
	Archived     bool
	ParentID     int64
	BaselineTxID int64
	SourceTxID   int64
}

// MergeRow associates a merge branch with the branches it reconciles.
type MergeRow struct {
	MergeID       int64
	SourceID      int64
	DestinationID int64
}

// AliasRow is one alias of a branch.
type AliasRow struct {
	BranchID int64
	Alias    string
}

// Branch is the cached, in-memory view of one branch. The hierarchy fields
// are maintained by the Cache; the remaining mutators mark the branch dirty.
type Branch struct {
	mu sync.RWMutex

	id       int64
	guid     string
	name     string
	typ      Type
	state    State
	archived bool
	parentID int64
	children map[int64]struct{}

	baseTx   *txcache.Record
	sourceTx *txcache.Record

	aliases []string

	mergeSourceID int64
	mergeDestID   int64

	dirty bool
}

func newBranch(id int64) *Branch {
	return &Branch{
		id:       id,
		children: make(map[int64]struct{}),
	}
}

func (b *Branch) ID() int64 { return b.id }

func (b *Branch) GUID() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.guid
}

func (b *Branch) Name() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.name
}

// SetName renames the branch.
func (b *Branch) SetName(name string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.name != name {
		b.name = name
		b.dirty = true
	}
}

func (b *Branch) Type() Type {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.typ
}

func (b *Branch) State() State {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.state
}

// SetState moves the branch to a new lifecycle state.
func (b *Branch) SetState(s State) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state != s {
		b.state = s
		b.dirty = true
	}
}

func (b *Branch) IsArchived() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.archived
}

// SetArchived archives or restores the branch.
func (b *Branch) SetArchived(archived bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.archived != archived {
		b.archived = archived
		b.dirty = true
	}
}

// IsEditable reports whether new transactions may be committed on the branch.
func (b *Branch) IsEditable() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.archived {
		return false
	}
	return b.state == Created || b.state == Modified
}

// ParentID returns the parent branch id, zero for roots.
func (b *Branch) ParentID() int64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.parentID
}

// ChildIDs returns the ids of the direct children, sorted.
func (b *Branch) ChildIDs() []int64 {
	b.mu.RLock()
	defer b.mu.RUnlock()

	ids := make([]int64, 0, len(b.children))
	for id := range b.children {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// BaseTransaction is the baseline transaction that starts the branch.
func (b *Branch) BaseTransaction() (txcache.Record, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.baseTx == nil {
		return txcache.Record{}, false
	}
	return *b.baseTx, true
}

// SourceTransaction is the parent transaction the branch was forked from.
func (b *Branch) SourceTransaction() (txcache.Record, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.sourceTx == nil {
		return txcache.Record{}, false
	}
	return *b.sourceTx, true
}

// Aliases returns the lower-cased aliases of the branch.
func (b *Branch) Aliases() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return slices.Clone(b.aliases)
}

// MergeBranches returns the source and destination of a merge branch.
func (b *Branch) MergeBranches() (source, destination int64, ok bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.mergeSourceID == 0 && b.mergeDestID == 0 {
		return 0, 0, false
	}
	return b.mergeSourceID, b.mergeDestID, true
}

func (b *Branch) IsDirty() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.dirty
}

// ClearDirty marks the in-memory state as matching storage.
func (b *Branch) ClearDirty() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.dirty = false
}

// Row snapshots the branch in its stored shape.
func (b *Branch) Row() Row {
	b.mu.RLock()
	defer b.mu.RUnlock()

	r := Row{
		ID:       b.id,
		GUID:     b.guid,
		Name:     b.name,
		Type:     b.typ,
		State:    b.state,
		Archived: b.archived,
		ParentID: b.parentID,
	}
	if b.baseTx != nil {
		r.BaselineTxID = b.baseTx.ID
	}
	if b.sourceTx != nil {
		r.SourceTxID = b.sourceTx.ID
	}
	return r
}

func (b *Branch) String() string {
	return fmt.Sprintf("%s [%d]", b.Name(), b.id)
}

// apply overwrites the stored fields of the branch and resets the links the
// cache rebuilds on every load.
func (b *Branch) apply(r Row, base, source *txcache.Record) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.guid = r.GUID
	b.name = r.Name
	b.typ = r.Type
	b.state = r.State
	b.archived = r.Archived
	b.parentID = r.ParentID
	b.baseTx = base
	b.sourceTx = source
	b.children = make(map[int64]struct{})
	b.aliases = nil
	b.mergeSourceID = 0
	b.mergeDestID = 0
}
