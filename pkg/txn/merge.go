package txn

import (
	"context"
	"fmt"

	"github.com/papercomputeco/grove/pkg/artifact"
	"github.com/papercomputeco/grove/pkg/branch"
	"github.com/papercomputeco/grove/pkg/txcache"
)

// BeginMerge opens a working set on a merge branch. Its commit is recorded as
// a merge transaction.
func (c *Coordinator) BeginMerge(mergeID int64, author, comment string) (*WorkingSet, error) {
	b, err := c.branches.Get(mergeID)
	if err != nil {
		return nil, err
	}
	if b.Type() != branch.Merge {
		return nil, illegal("branch %s is not a merge branch", b)
	}
	if _, _, ok := b.MergeBranches(); !ok {
		return nil, illegal("merge branch %s has no source", b)
	}
	if !b.IsEditable() {
		return nil, illegal("branch %s is not editable", b)
	}
	return newWorkingSet(mergeID, txcache.Merge, author, comment), nil
}

// MergeArtifacts introduces the merge source's current version of each id
// into a merge working set. Ids the source does not have are reported as not
// found and nothing after them is introduced.
func (c *Coordinator) MergeArtifacts(ctx context.Context, ws *WorkingSet, ids ...int64) ([]*artifact.Artifact, error) {
	if ws.txType != txcache.Merge {
		return nil, illegal("merging into a %s working set", ws.txType)
	}
	b, err := c.branches.Get(ws.branchID)
	if err != nil {
		return nil, err
	}
	sourceID, _, _ := b.MergeBranches()

	out := make([]*artifact.Artifact, 0, len(ids))
	for _, id := range ids {
		view, err := c.View(ctx, sourceID, id)
		if err != nil {
			return out, fmt.Errorf("merging artifact %d: %w", id, err)
		}
		a, err := c.Introduce(ctx, ws, view)
		if err != nil {
			return out, fmt.Errorf("merging artifact %d: %w", id, err)
		}
		out = append(out, a)
	}
	return out, nil
}
