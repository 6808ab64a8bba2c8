package inmemory

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/papercomputeco/grove/pkg/joinset"
	"github.com/papercomputeco/grove/pkg/storage"
)

// InsertJoin stores the rows of a staged set.
func (d *Driver) InsertJoin(_ context.Context, kind joinset.Kind, queryID int64, issuedAt time.Time, rows [][]any) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	key := joinKey{kind: kind, queryID: queryID}
	if _, ok := d.joins[key]; ok {
		return storage.AlreadyExistsError{Kind: string(kind) + " join", Key: fmt.Sprint(queryID)}
	}
	d.joins[key] = join{issuedAt: issuedAt, rows: slices.Clone(rows)}
	return nil
}

// DeleteJoin drops a staged set. Unknown sets are ignored.
func (d *Driver) DeleteJoin(_ context.Context, kind joinset.Kind, queryID int64) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	delete(d.joins, joinKey{kind: kind, queryID: queryID})
	return nil
}

// ExpiredJoins lists the sets issued before the cutoff, oldest first.
func (d *Driver) ExpiredJoins(_ context.Context, before time.Time) ([]joinset.Handle, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var handles []joinset.Handle
	for key, j := range d.joins {
		if j.issuedAt.Before(before) {
			handles = append(handles, joinset.Handle{Kind: key.kind, QueryID: key.queryID, IssuedAt: j.issuedAt})
		}
	}
	slices.SortFunc(handles, func(a, b joinset.Handle) int {
		return a.IssuedAt.Compare(b.IssuedAt)
	})
	return handles, nil
}

// JoinCount returns the number of staged sets currently stored.
func (d *Driver) JoinCount() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.joins)
}

// joinedArtifacts returns the artifact ids of an artifact join on branchID.
// The caller holds d.mu.
func (d *Driver) joinedArtifacts(queryID, branchID int64) ([]int64, error) {
	j, ok := d.joins[joinKey{kind: joinset.KindArtifact, queryID: queryID}]
	if !ok {
		return nil, storage.NotFoundError{Kind: "artifact join", Key: fmt.Sprint(queryID)}
	}

	var ids []int64
	for _, row := range j.rows {
		artID, _ := row[0].(int64)
		rowBranch, _ := row[1].(int64)
		if rowBranch == branchID && !slices.Contains(ids, artID) {
			ids = append(ids, artID)
		}
	}
	return ids, nil
}
