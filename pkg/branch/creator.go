package branch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/papercomputeco/grove/pkg/sequence"
	"github.com/papercomputeco/grove/pkg/txcache"
)

// IDAllocator issues sequence ids.
type IDAllocator interface {
	Next(ctx context.Context, name string) (int64, error)
}

// Store persists new branches.
type Store interface {
	Writer

	// CreateBranch stores the branch row and its baseline transaction. When
	// the branch has a parent, the parent's current artifact, attribute and
	// relation versions become the branch's initial content.
	CreateBranch(ctx context.Context, row Row, baseline txcache.Record) error
}

// CreateParams describes a branch to fork.
type CreateParams struct {
	ParentID int64
	Name     string
	Type     Type
	Author   string
	Comment  string
	Aliases  []string
}

// Creator forks new branches and registers them in the caches.
type Creator struct {
	cache   *Cache
	txCache *txcache.Cache
	ids     IDAllocator
	store   Store
	logger  *slog.Logger
	now     func() time.Time
}

// NewCreator wires a Creator.
func NewCreator(cache *Cache, txCache *txcache.Cache, ids IDAllocator, store Store, logger *slog.Logger) *Creator {
	return &Creator{
		cache:   cache,
		txCache: txCache,
		ids:     ids,
		store:   store,
		logger:  logger,
		now:     time.Now,
	}
}

// CreateRoot bootstraps a branch without a parent.
func (c *Creator) CreateRoot(ctx context.Context, name, author string) (*Branch, error) {
	return c.create(ctx, CreateParams{
		Name:    name,
		Type:    SystemRoot,
		Author:  author,
		Comment: "branch root created",
	}, nil)
}

// CreateChild forks a branch from its parent's head transaction.
func (c *Creator) CreateChild(ctx context.Context, p CreateParams) (*Branch, error) {
	parent, err := c.cache.Get(p.ParentID)
	if err != nil {
		return nil, err
	}
	if parent.IsArchived() || parent.State() == Deleted || parent.State() == Purged {
		return nil, fmt.Errorf("forking from %s: %w", parent, ErrNotEditable)
	}

	head, err := c.txCache.Head(parent.ID())
	if err != nil {
		return nil, fmt.Errorf("resolving head of %s: %w", parent, err)
	}

	if p.Type == 0 {
		p.Type = Working
	}
	if p.Comment == "" {
		p.Comment = fmt.Sprintf("new branch %s from %s", p.Name, parent.Name())
	}

	return c.create(ctx, p, &head)
}

// CreateMerge creates a merge branch under destination that reconciles
// source into it.
func (c *Creator) CreateMerge(ctx context.Context, sourceID, destID int64, author string) (*Branch, error) {
	source, err := c.cache.Get(sourceID)
	if err != nil {
		return nil, err
	}
	if _, err := c.cache.Get(destID); err != nil {
		return nil, err
	}

	b, err := c.CreateChild(ctx, CreateParams{
		ParentID: destID,
		Name:     "merge " + source.Name(),
		Type:     Merge,
		Author:   author,
	})
	if err != nil {
		return nil, err
	}

	if err := c.cache.CacheMergeBranch(b.ID(), sourceID, destID); err != nil {
		return nil, err
	}
	if err := c.store.PutMergeBranch(ctx, MergeRow{MergeID: b.ID(), SourceID: sourceID, DestinationID: destID}); err != nil {
		return nil, fmt.Errorf("storing merge association of %s: %w", b, err)
	}
	b.ClearDirty()
	return b, nil
}

func (c *Creator) create(ctx context.Context, p CreateParams, source *txcache.Record) (*Branch, error) {
	branchID, err := c.ids.Next(ctx, sequence.BranchID)
	if err != nil {
		return nil, fmt.Errorf("allocating branch id: %w", err)
	}
	txID, err := c.ids.Next(ctx, sequence.TransactionID)
	if err != nil {
		return nil, fmt.Errorf("allocating baseline transaction id: %w", err)
	}

	baseline := txcache.Record{
		ID:       txID,
		BranchID: branchID,
		Type:     txcache.Baseline,
		Author:   p.Author,
		Comment:  p.Comment,
		Time:     c.now().UTC(),
	}

	row := Row{
		ID:           branchID,
		GUID:         uuid.NewString(),
		Name:         p.Name,
		Type:         p.Type,
		State:        Created,
		ParentID:     p.ParentID,
		BaselineTxID: txID,
	}
	if source != nil {
		row.SourceTxID = source.ID
	}

	if err := c.store.CreateBranch(ctx, row, baseline); err != nil {
		return nil, fmt.Errorf("storing branch %s: %w", p.Name, err)
	}

	c.txCache.Put(baseline)
	b := c.cache.add(row, &baseline, source)

	if len(p.Aliases) > 0 {
		if err := c.cache.SetAliases(b.ID(), p.Aliases...); err != nil {
			return nil, err
		}
		if err := c.store.ReplaceBranchAliases(ctx, b.ID(), b.Aliases()); err != nil {
			return nil, fmt.Errorf("storing aliases of %s: %w", b, err)
		}
		b.ClearDirty()
	}

	c.logger.Info("created branch",
		"branch_id", b.ID(),
		"name", p.Name,
		"type", p.Type.String(),
		"parent_id", p.ParentID,
		"baseline_tx", txID,
	)

	return b, nil
}
