package txn

import (
	"fmt"

	"github.com/papercomputeco/grove/pkg/artifact"
	"github.com/papercomputeco/grove/pkg/changeset"
	"github.com/papercomputeco/grove/pkg/txcache"
)

// WorkingSet is the pending overlay of one transaction on one branch. It is
// owned by a single caller and is not safe for concurrent use.
type WorkingSet struct {
	branchID int64
	txType   txcache.Type
	author   string
	comment  string

	state      State
	inProgress bool

	artifacts map[int64]*artifact.Artifact
	order     []int64
	relations map[artifact.RelationKey]*artifact.Relation
	relOrder  []artifact.RelationKey

	changes *changeset.ChangeSet
	record  *txcache.Record
}

func newWorkingSet(branchID int64, txType txcache.Type, author, comment string) *WorkingSet {
	return &WorkingSet{
		branchID:  branchID,
		txType:    txType,
		author:    author,
		comment:   comment,
		state:     New,
		artifacts: make(map[int64]*artifact.Artifact),
		relations: make(map[artifact.RelationKey]*artifact.Relation),
	}
}

func (ws *WorkingSet) BranchID() int64 { return ws.branchID }
func (ws *WorkingSet) Author() string  { return ws.author }

// TransactionType is the type its commit record will carry.
func (ws *WorkingSet) TransactionType() txcache.Type { return ws.txType }
func (ws *WorkingSet) State() State    { return ws.state }

// IsCommitInProgress reports whether Commit is currently running.
func (ws *WorkingSet) IsCommitInProgress() bool { return ws.inProgress }

// Artifact returns the tracked clone for id.
func (ws *WorkingSet) Artifact(id int64) (*artifact.Artifact, bool) {
	a, ok := ws.artifacts[id]
	return a, ok
}

// Artifacts returns the tracked clones in the order they were acquired.
func (ws *WorkingSet) Artifacts() []*artifact.Artifact {
	out := make([]*artifact.Artifact, 0, len(ws.order))
	for _, id := range ws.order {
		out = append(out, ws.artifacts[id])
	}
	return out
}

// Relation returns the tracked relation for key.
func (ws *WorkingSet) Relation(key artifact.RelationKey) (*artifact.Relation, bool) {
	r, ok := ws.relations[key]
	return r, ok
}

// Relations returns the live tracked relations touching id.
func (ws *WorkingSet) Relations(id int64) []*artifact.Relation {
	var out []*artifact.Relation
	for _, key := range ws.relOrder {
		r := ws.relations[key]
		if key.Involves(id) && !r.IsDeleted() {
			out = append(out, r)
		}
	}
	return out
}

// ChangeSet returns the derived change set, if derivation has happened.
func (ws *WorkingSet) ChangeSet() (*changeset.ChangeSet, bool) {
	return ws.changes, ws.changes != nil
}

// Record returns the commit record once the working set is committed.
func (ws *WorkingSet) Record() (txcache.Record, bool) {
	if ws.record == nil {
		return txcache.Record{}, false
	}
	return *ws.record, true
}

func (ws *WorkingSet) checkMutable() error {
	switch {
	case ws.inProgress:
		return illegal("working set on branch %d is committing", ws.branchID)
	case ws.state != New:
		return illegal("working set on branch %d is %s", ws.branchID, ws.state)
	case ws.changes != nil:
		return illegal("working set on branch %d already derived its change set", ws.branchID)
	}
	return nil
}

// track registers a clone. A second distinct instance for the same id is
// rejected.
func (ws *WorkingSet) track(a *artifact.Artifact) error {
	if existing, ok := ws.artifacts[a.ID]; ok {
		if existing != a {
			return fmt.Errorf("artifact %d already has a clone in this transaction: %w", a.ID, ErrInconsistent)
		}
		return nil
	}
	ws.artifacts[a.ID] = a
	ws.order = append(ws.order, a.ID)
	return nil
}

// trackRelation registers r unless a relation with the same key is already
// tracked, in which case the tracked one wins.
func (ws *WorkingSet) trackRelation(r *artifact.Relation) *artifact.Relation {
	key := r.Key()
	if existing, ok := ws.relations[key]; ok {
		return existing
	}
	ws.relations[key] = r
	ws.relOrder = append(ws.relOrder, key)
	return r
}

func (ws *WorkingSet) liveRelations(typ string, id int64, side artifact.Side) []*artifact.Relation {
	var out []*artifact.Relation
	for _, key := range ws.relOrder {
		if key.Type != typ {
			continue
		}
		if (side == artifact.SideA && key.A != id) || (side == artifact.SideB && key.B != id) {
			continue
		}
		if r := ws.relations[key]; !r.IsDeleted() {
			out = append(out, r)
		}
	}
	return out
}
