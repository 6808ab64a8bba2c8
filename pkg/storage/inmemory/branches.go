package inmemory

import (
	"cmp"
	"context"
	"fmt"
	"maps"
	"slices"

	"github.com/papercomputeco/grove/pkg/branch"
	"github.com/papercomputeco/grove/pkg/storage"
	"github.com/papercomputeco/grove/pkg/txcache"
)

// ListTransactions returns every transaction record ordered by id.
func (d *Driver) ListTransactions(_ context.Context) ([]txcache.Record, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	return sortedValues(d.transactions), nil
}

// ListBranches returns every branch row ordered by id.
func (d *Driver) ListBranches(_ context.Context) ([]branch.Row, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	return sortedValues(d.branches), nil
}

// ListMergeBranches returns every merge association ordered by merge id.
func (d *Driver) ListMergeBranches(_ context.Context) ([]branch.MergeRow, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	return sortedValues(d.merges), nil
}

// ListBranchAliases returns every alias ordered by branch id.
func (d *Driver) ListBranchAliases(_ context.Context) ([]branch.AliasRow, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var rows []branch.AliasRow
	for _, id := range slices.Sorted(maps.Keys(d.aliases)) {
		for _, alias := range d.aliases[id] {
			rows = append(rows, branch.AliasRow{BranchID: id, Alias: alias})
		}
	}
	return rows, nil
}

// UpdateBranch replaces an existing branch row.
func (d *Driver) UpdateBranch(_ context.Context, row branch.Row) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.branches[row.ID]; !ok {
		return storage.NotFound("branch", row.ID)
	}
	d.branches[row.ID] = row
	return nil
}

// PutMergeBranch stores or replaces a merge association.
func (d *Driver) PutMergeBranch(_ context.Context, row branch.MergeRow) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.merges[row.MergeID] = row
	return nil
}

// ReplaceBranchAliases sets the full alias list of a branch.
func (d *Driver) ReplaceBranchAliases(_ context.Context, branchID int64, aliases []string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.branches[branchID]; !ok {
		return storage.NotFound("branch", branchID)
	}
	if len(aliases) == 0 {
		delete(d.aliases, branchID)
		return nil
	}
	d.aliases[branchID] = slices.Clone(aliases)
	return nil
}

// CreateBranch stores a new branch with its baseline transaction and seeds it
// with the parent's live current versions.
func (d *Driver) CreateBranch(_ context.Context, row branch.Row, baseline txcache.Record) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.branches[row.ID]; ok {
		return storage.AlreadyExistsError{Kind: "branch", Key: fmt.Sprint(row.ID)}
	}
	if _, ok := d.transactions[baseline.ID]; ok {
		return storage.AlreadyExistsError{Kind: "transaction", Key: fmt.Sprint(baseline.ID)}
	}
	if row.ParentID != 0 {
		if _, ok := d.branches[row.ParentID]; !ok {
			return storage.NotFound("branch", row.ParentID)
		}
		d.copyCurrent(row.ParentID, row.ID, baseline.ID)
	}

	d.transactions[baseline.ID] = baseline
	d.branches[row.ID] = row
	return nil
}

func sortedValues[K cmp.Ordered, V any](m map[K]V) []V {
	out := make([]V, 0, len(m))
	for _, k := range slices.Sorted(maps.Keys(m)) {
		out = append(out, m[k])
	}
	return out
}
