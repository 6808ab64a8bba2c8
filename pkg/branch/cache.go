package branch

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/papercomputeco/grove/pkg/storage"
	"github.com/papercomputeco/grove/pkg/txcache"
)

// Loader reads the stored branch hierarchy.
type Loader interface {
	ListBranches(ctx context.Context) ([]Row, error)
	ListMergeBranches(ctx context.Context) ([]MergeRow, error)
	ListBranchAliases(ctx context.Context) ([]AliasRow, error)
}

// Writer persists in-memory branch edits.
type Writer interface {
	UpdateBranch(ctx context.Context, row Row) error
	PutMergeBranch(ctx context.Context, row MergeRow) error
	ReplaceBranchAliases(ctx context.Context, branchID int64, aliases []string) error
}

// Cache holds the whole branch forest in memory.
//
// Reads and single-branch edits are safe for concurrent use. Load is a
// stop-the-world refresh: callers must not rely on a stable hierarchy while it
// runs.
type Cache struct {
	txCache *txcache.Cache

	mu      sync.RWMutex
	byID    map[int64]*Branch
	byAlias map[string]int64
	loaded  bool
}

// NewCache creates an empty branch cache resolving transactions via txCache.
func NewCache(txCache *txcache.Cache) *Cache {
	return &Cache{
		txCache: txCache,
		byID:    make(map[int64]*Branch),
		byAlias: make(map[string]int64),
	}
}

type resolvedRow struct {
	row    Row
	base   *txcache.Record
	source *txcache.Record
}

// Load reads every branch with its base and source transactions, links
// parents to children, and attaches merge associations and aliases.
//
// The hierarchy is validated before anything is applied, so a failed load
// leaves the previous cache content untouched. Branch objects already cached
// are reused by id and every branch is clean afterwards.
func (c *Cache) Load(ctx context.Context, loader Loader) error {
	if !c.txCache.IsLoaded() {
		return ErrTxCacheNotLoaded
	}

	rows, err := loader.ListBranches(ctx)
	if err != nil {
		return fmt.Errorf("loading branches: %w", err)
	}
	merges, err := loader.ListMergeBranches(ctx)
	if err != nil {
		return fmt.Errorf("loading merge branches: %w", err)
	}
	aliases, err := loader.ListBranchAliases(ctx)
	if err != nil {
		return fmt.Errorf("loading branch aliases: %w", err)
	}

	resolved := make(map[int64]resolvedRow, len(rows))
	for _, r := range rows {
		rr := resolvedRow{row: r}
		if r.BaselineTxID != 0 {
			tx, err := c.txCache.Get(r.BaselineTxID)
			if err != nil {
				return fmt.Errorf("resolving base transaction of branch %d: %w", r.ID, err)
			}
			rr.base = &tx
		}
		if r.SourceTxID != 0 {
			tx, err := c.txCache.Get(r.SourceTxID)
			if err != nil {
				return fmt.Errorf("resolving source transaction of branch %d: %w", r.ID, err)
			}
			rr.source = &tx
		}
		resolved[r.ID] = rr
	}

	if err := validate(resolved, merges, aliases); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	next := make(map[int64]*Branch, len(resolved))
	for id, rr := range resolved {
		b, ok := c.byID[id]
		if !ok {
			b = newBranch(id)
		}
		b.apply(rr.row, rr.base, rr.source)
		next[id] = b
	}

	for id, b := range next {
		if parentID := b.ParentID(); parentID != 0 {
			next[parentID].children[id] = struct{}{}
		}
	}

	for _, m := range merges {
		b := next[m.MergeID]
		b.mergeSourceID = m.SourceID
		b.mergeDestID = m.DestinationID
	}

	byAlias := make(map[string]int64, len(aliases))
	for _, a := range aliases {
		alias := strings.ToLower(a.Alias)
		b := next[a.BranchID]
		if !slices.Contains(b.aliases, alias) {
			b.aliases = append(b.aliases, alias)
		}
		byAlias[alias] = a.BranchID
	}

	for _, b := range next {
		b.ClearDirty()
	}

	c.byID = next
	c.byAlias = byAlias
	c.loaded = true
	return nil
}

// validate checks the staged rows before they replace the cache content.
func validate(rows map[int64]resolvedRow, merges []MergeRow, aliases []AliasRow) error {
	for id, rr := range rows {
		parentID := rr.row.ParentID
		if parentID == 0 {
			continue
		}
		if _, ok := rows[parentID]; !ok {
			return BranchDoesNotExistError{ID: parentID, ReferencedBy: id}
		}
		if rr.source != nil && rr.source.BranchID != parentID {
			return fmt.Errorf("branch %d forked from transaction %d on branch %d, not its parent %d: %w",
				id, rr.source.ID, rr.source.BranchID, parentID, ErrInconsistentHierarchy)
		}
	}

	for id := range rows {
		seen := map[int64]bool{id: true}
		for cur := rows[id].row.ParentID; cur != 0; cur = rows[cur].row.ParentID {
			if seen[cur] {
				return fmt.Errorf("branch %d is its own ancestor: %w", id, ErrInconsistentHierarchy)
			}
			seen[cur] = true
		}
	}

	for _, m := range merges {
		for _, ref := range []int64{m.MergeID, m.SourceID, m.DestinationID} {
			if _, ok := rows[ref]; !ok {
				return BranchDoesNotExistError{ID: ref, ReferencedBy: m.MergeID}
			}
		}
	}

	for _, a := range aliases {
		if _, ok := rows[a.BranchID]; !ok {
			return BranchDoesNotExistError{ID: a.BranchID}
		}
	}

	return nil
}

// IsLoaded reports whether Load has completed at least once.
func (c *Cache) IsLoaded() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loaded
}

// Get returns the branch with the given id.
func (c *Cache) Get(id int64) (*Branch, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	b, ok := c.byID[id]
	if !ok {
		return nil, BranchDoesNotExistError{ID: id}
	}
	return b, nil
}

// ByAlias looks a branch up by one of its aliases, ignoring case.
func (c *Cache) ByAlias(alias string) (*Branch, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	id, ok := c.byAlias[strings.ToLower(alias)]
	if !ok {
		return nil, storage.NotFoundError{Kind: "branch alias", Key: alias}
	}
	return c.byID[id], nil
}

// All returns every cached branch ordered by id.
func (c *Cache) All() []*Branch {
	c.mu.RLock()
	defer c.mu.RUnlock()

	all := make([]*Branch, 0, len(c.byID))
	for _, b := range c.byID {
		all = append(all, b)
	}
	slices.SortFunc(all, func(a, b *Branch) int {
		return cmp.Compare(a.id, b.id)
	})
	return all
}

// Children returns the direct children of a branch.
func (c *Cache) Children(id int64) ([]*Branch, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	b, ok := c.byID[id]
	if !ok {
		return nil, BranchDoesNotExistError{ID: id}
	}

	children := make([]*Branch, 0, len(b.children))
	for _, childID := range b.ChildIDs() {
		children = append(children, c.byID[childID])
	}
	return children, nil
}

// Ancestors returns the parent chain of a branch, nearest first.
func (c *Cache) Ancestors(id int64) ([]*Branch, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	b, ok := c.byID[id]
	if !ok {
		return nil, BranchDoesNotExistError{ID: id}
	}

	var ancestors []*Branch
	for parentID := b.ParentID(); parentID != 0; {
		parent, ok := c.byID[parentID]
		if !ok {
			return nil, BranchDoesNotExistError{ID: parentID, ReferencedBy: b.id}
		}
		ancestors = append(ancestors, parent)
		b = parent
		parentID = parent.ParentID()
	}
	return ancestors, nil
}

// SetParent re-parents child under parent, rejecting edits that would turn
// the forest into a cycle.
func (c *Cache) SetParent(parentID, childID int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	child, ok := c.byID[childID]
	if !ok {
		return BranchDoesNotExistError{ID: childID}
	}
	parent, ok := c.byID[parentID]
	if !ok {
		return BranchDoesNotExistError{ID: parentID, ReferencedBy: childID}
	}

	for cur := parent; cur != nil; {
		if cur.id == childID {
			return fmt.Errorf("making %d the parent of %d: %w", parentID, childID, ErrInconsistentHierarchy)
		}
		cur = c.byID[cur.ParentID()]
	}

	c.linkLocked(parent, child)
	return nil
}

func (c *Cache) linkLocked(parent, child *Branch) {
	if old, ok := c.byID[child.ParentID()]; ok {
		old.mu.Lock()
		delete(old.children, child.id)
		old.mu.Unlock()
	}

	parent.mu.Lock()
	parent.children[child.id] = struct{}{}
	parent.mu.Unlock()

	child.mu.Lock()
	if child.parentID != parent.id {
		child.parentID = parent.id
		child.dirty = true
	}
	child.mu.Unlock()
}

// CacheMergeBranch records that mergeID reconciles sourceID into destID.
func (c *Cache) CacheMergeBranch(mergeID, sourceID, destID int64) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	merge, ok := c.byID[mergeID]
	if !ok {
		return BranchDoesNotExistError{ID: mergeID}
	}
	for _, ref := range []int64{sourceID, destID} {
		if _, ok := c.byID[ref]; !ok {
			return BranchDoesNotExistError{ID: ref, ReferencedBy: mergeID}
		}
	}

	merge.mu.Lock()
	defer merge.mu.Unlock()
	merge.mergeSourceID = sourceID
	merge.mergeDestID = destID
	merge.dirty = true
	return nil
}

// SetAliases replaces the aliases of a branch. Aliases are stored lower-cased.
func (c *Cache) SetAliases(branchID int64, names ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	b, ok := c.byID[branchID]
	if !ok {
		return BranchDoesNotExistError{ID: branchID}
	}

	folded := make([]string, 0, len(names))
	for _, n := range names {
		n = strings.ToLower(strings.TrimSpace(n))
		if n != "" && !slices.Contains(folded, n) {
			folded = append(folded, n)
		}
	}

	for _, old := range b.Aliases() {
		if c.byAlias[old] == branchID {
			delete(c.byAlias, old)
		}
	}
	for _, n := range folded {
		c.byAlias[n] = branchID
	}

	b.mu.Lock()
	b.aliases = folded
	b.dirty = true
	b.mu.Unlock()
	return nil
}

// Dirty returns the branches edited since the last load or persist.
func (c *Cache) Dirty() []*Branch {
	var dirty []*Branch
	for _, b := range c.All() {
		if b.IsDirty() {
			dirty = append(dirty, b)
		}
	}
	return dirty
}

// Persist writes every dirty branch and clears its dirty flag.
func (c *Cache) Persist(ctx context.Context, w Writer) error {
	for _, b := range c.Dirty() {
		if err := w.UpdateBranch(ctx, b.Row()); err != nil {
			return fmt.Errorf("persisting branch %d: %w", b.ID(), err)
		}
		if err := w.ReplaceBranchAliases(ctx, b.ID(), b.Aliases()); err != nil {
			return fmt.Errorf("persisting aliases of branch %d: %w", b.ID(), err)
		}
		if src, dst, ok := b.MergeBranches(); ok {
			if err := w.PutMergeBranch(ctx, MergeRow{MergeID: b.ID(), SourceID: src, DestinationID: dst}); err != nil {
				return fmt.Errorf("persisting merge branch %d: %w", b.ID(), err)
			}
		}
		b.ClearDirty()
	}
	return nil
}

// add registers a freshly created branch under its parent.
func (c *Cache) add(r Row, base, source *txcache.Record) *Branch {
	c.mu.Lock()
	defer c.mu.Unlock()

	b := newBranch(r.ID)
	b.apply(r, base, source)
	c.byID[r.ID] = b

	if parent, ok := c.byID[r.ParentID]; ok {
		parent.mu.Lock()
		parent.children[r.ID] = struct{}{}
		parent.mu.Unlock()
	}

	return b
}
