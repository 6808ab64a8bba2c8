// Package txn implements transactional editing of a branch: working sets of
// copy-on-write artifact clones, change set derivation and commit.
package txn

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/papercomputeco/grove/pkg/artifact"
	"github.com/papercomputeco/grove/pkg/branch"
	"github.com/papercomputeco/grove/pkg/bulkload"
	"github.com/papercomputeco/grove/pkg/changeset"
	"github.com/papercomputeco/grove/pkg/eventstream"
	"github.com/papercomputeco/grove/pkg/sequence"
	"github.com/papercomputeco/grove/pkg/storage"
	"github.com/papercomputeco/grove/pkg/txcache"
)

// Storage is the durable side of a commit.
type Storage interface {
	bulkload.Store

	UpdateBranch(ctx context.Context, row branch.Row) error

	// Commit stores the record and every version in the change set
	// atomically.
	Commit(ctx context.Context, rec txcache.Record, cs *changeset.ChangeSet) error
}

// IDAllocator issues sequence ids.
type IDAllocator interface {
	Next(ctx context.Context, name string) (int64, error)
}

// Config wires a Coordinator.
type Config struct {
	Storage      Storage
	IDs          IDAllocator
	Branches     *branch.Cache
	Transactions *txcache.Cache
	Arena        *artifact.Arena
	Registry     *artifact.Registry
	Publisher    eventstream.Publisher
	Logger       *slog.Logger

	// Metrics receives the commit collectors. Nil leaves them unexported.
	Metrics prometheus.Registerer
}

// Coordinator runs working sets against shared caches and storage. It is safe
// for concurrent use; each WorkingSet is not.
type Coordinator struct {
	storage   Storage
	ids       IDAllocator
	branches  *branch.Cache
	txCache   *txcache.Cache
	arena     *artifact.Arena
	registry  *artifact.Registry
	publisher eventstream.Publisher
	loader    *bulkload.Loader
	metrics   *metrics
	logger    *slog.Logger
	now       func() time.Time
}

// NewCoordinator creates a Coordinator.
func NewCoordinator(cfg Config) *Coordinator {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Coordinator{
		storage:   cfg.Storage,
		ids:       cfg.IDs,
		branches:  cfg.Branches,
		txCache:   cfg.Transactions,
		arena:     cfg.Arena,
		registry:  cfg.Registry,
		publisher: cfg.Publisher,
		loader:    bulkload.NewLoader(cfg.Storage, logger),
		metrics:   newMetrics(cfg.Metrics),
		logger:    logger,
		now:       time.Now,
	}
}

// Begin opens a working set on an editable branch.
func (c *Coordinator) Begin(branchID int64, author, comment string) (*WorkingSet, error) {
	b, err := c.branches.Get(branchID)
	if err != nil {
		return nil, err
	}
	if !b.IsEditable() {
		return nil, illegal("branch %s is not editable", b)
	}
	return newWorkingSet(branchID, txcache.Working, author, comment), nil
}

// View returns a read-only copy of the current version of an artifact on a
// branch. Deleted artifacts are returned with IsDeleted set.
func (c *Coordinator) View(ctx context.Context, branchID, id int64) (*artifact.Artifact, error) {
	g := c.arena.Graph(branchID)
	if a, ok := g.Get(id); ok {
		return a, nil
	}
	if err := c.load(ctx, branchID, id); err != nil {
		return nil, err
	}
	if a, ok := g.Get(id); ok {
		return a, nil
	}
	return nil, storage.NotFound("artifact", id)
}

// CreateArtifact adds a new artifact of a registered type to the working set.
func (c *Coordinator) CreateArtifact(ctx context.Context, ws *WorkingSet, typ, name string) (*artifact.Artifact, error) {
	if err := ws.checkMutable(); err != nil {
		return nil, err
	}
	if _, err := c.registry.ArtifactType(typ); err != nil {
		return nil, err
	}

	id, err := c.ids.Next(ctx, sequence.ArtifactID)
	if err != nil {
		return nil, fmt.Errorf("allocating artifact id: %w", err)
	}

	a := artifact.NewArtifact(id, uuid.NewString(), ws.branchID, typ, name)
	if err := ws.track(a); err != nil {
		return nil, err
	}
	return a, nil
}

// GetForWrite returns the working set's mutable clone of artifact id,
// cloning it from the branch graph or loading it from storage on first use.
// The artifact's relations are cloned along with it.
func (c *Coordinator) GetForWrite(ctx context.Context, ws *WorkingSet, id int64) (*artifact.Artifact, error) {
	if err := ws.checkMutable(); err != nil {
		return nil, err
	}
	return c.acquire(ctx, ws, id, false)
}

// GetForWriteFrom is GetForWrite for an already loaded view. A view from the
// working set's branch is cloned directly; a view from another branch only
// names the id to load from the working set's branch.
func (c *Coordinator) GetForWriteFrom(ctx context.Context, ws *WorkingSet, view *artifact.Artifact) (*artifact.Artifact, error) {
	if err := ws.checkMutable(); err != nil {
		return nil, err
	}
	if a, ok := ws.artifacts[view.ID]; ok {
		return a, nil
	}
	if view.BranchID != ws.branchID {
		return c.acquire(ctx, ws, view.ID, false)
	}
	if view.IsDeleted() {
		return nil, storage.NotFound("artifact", view.ID)
	}

	clone := view.Clone()
	if err := ws.track(clone); err != nil {
		return nil, err
	}
	c.carryRelations(ws, view.ID)
	return clone, nil
}

// acquire resolves id to a tracked clone: the existing clone, else a copy of
// the graph's version, else a bulk load into the graph followed by a copy.
func (c *Coordinator) acquire(ctx context.Context, ws *WorkingSet, id int64, allowDeleted bool) (*artifact.Artifact, error) {
	if a, ok := ws.artifacts[id]; ok {
		if a.IsDeleted() && !allowDeleted {
			return nil, storage.NotFound("artifact", id)
		}
		return a, nil
	}

	g := c.arena.Graph(ws.branchID)
	if !g.Has(id) {
		if err := c.load(ctx, ws.branchID, id); err != nil {
			return nil, err
		}
	}

	clone, ok := g.Get(id)
	if !ok || (clone.IsDeleted() && !allowDeleted) {
		return nil, storage.NotFound("artifact", id)
	}
	if err := ws.track(clone); err != nil {
		return nil, err
	}
	c.carryRelations(ws, id)
	return clone, nil
}

func (c *Coordinator) carryRelations(ws *WorkingSet, id int64) {
	for _, r := range c.arena.Graph(ws.branchID).Relations(id) {
		ws.trackRelation(r)
	}
}

func (c *Coordinator) load(ctx context.Context, branchID int64, ids ...int64) error {
	res, err := c.loader.Load(ctx, branchID, ids...)
	if err != nil {
		return err
	}
	c.arena.Graph(branchID).Fill(res.Artifacts, res.Relations)
	return nil
}

// Delete marks an artifact deleted along with every relation touching it.
// The other endpoints of those relations join the working set.
func (c *Coordinator) Delete(ctx context.Context, ws *WorkingSet, id int64) error {
	if err := ws.checkMutable(); err != nil {
		return err
	}
	a, err := c.acquire(ctx, ws, id, false)
	if err != nil {
		return err
	}

	for _, r := range ws.Relations(id) {
		if _, err := c.acquire(ctx, ws, r.Key().Other(id), true); err != nil {
			return err
		}
		r.Delete()
	}
	a.Delete()
	return nil
}

// Undelete restores a deleted artifact and its attributes. Relations removed
// with it stay removed.
func (c *Coordinator) Undelete(ctx context.Context, ws *WorkingSet, id int64) (*artifact.Artifact, error) {
	if err := ws.checkMutable(); err != nil {
		return nil, err
	}
	a, err := c.acquire(ctx, ws, id, true)
	if err != nil {
		return nil, err
	}
	if !a.IsDeleted() {
		return nil, illegal("artifact %d is not deleted", id)
	}
	a.Undelete()
	return a, nil
}

// Copy creates a new artifact on the working set's branch holding the
// source's attributes, limited to attrTypes when any are given. The source
// must live on another branch.
func (c *Coordinator) Copy(ctx context.Context, ws *WorkingSet, source *artifact.Artifact, attrTypes ...string) (*artifact.Artifact, error) {
	if err := ws.checkMutable(); err != nil {
		return nil, err
	}
	if source.BranchID == ws.branchID {
		return nil, illegal("copying artifact %d within branch %d", source.ID, ws.branchID)
	}

	id, err := c.ids.Next(ctx, sequence.ArtifactID)
	if err != nil {
		return nil, fmt.Errorf("allocating artifact id: %w", err)
	}

	dup := artifact.NewArtifact(id, uuid.NewString(), ws.branchID, source.Type, source.Name())
	for _, attr := range source.AllAttributes() {
		if attr.IsDeleted() || (len(attrTypes) > 0 && !slices.Contains(attrTypes, attr.Type)) {
			continue
		}
		added, err := dup.AddAttribute(c.registry, attr.Type, attr.Value())
		if err != nil {
			return nil, fmt.Errorf("copying artifact %d: %w", source.ID, err)
		}
		added.SetURI(attr.URI())
	}

	if err := ws.track(dup); err != nil {
		return nil, err
	}
	return dup, nil
}

// Introduce brings the source artifact's identity onto the working set's
// branch. The source must live on another branch. When the branch already
// has a version of the artifact, that version is replaced: attributes the
// source no longer holds are deleted and the branch's relations join the
// working set.
func (c *Coordinator) Introduce(ctx context.Context, ws *WorkingSet, source *artifact.Artifact) (*artifact.Artifact, error) {
	if err := ws.checkMutable(); err != nil {
		return nil, err
	}
	if source.BranchID == ws.branchID {
		return nil, illegal("introducing artifact %d within branch %d", source.ID, ws.branchID)
	}

	existing, err := c.acquire(ctx, ws, source.ID, true)
	switch {
	case err == nil:
		existing.IntroduceFrom(source)
		return existing, nil
	case !errors.As(err, new(storage.NotFoundError)):
		return nil, err
	}

	introduced := source.IntroduceTo(ws.branchID)
	if err := ws.track(introduced); err != nil {
		return nil, err
	}
	return introduced, nil
}

// DeriveChangeSet validates every touched artifact, mints ids and gammas for
// the new versions and freezes the result. It runs once; later calls return
// the same change set and the working set accepts no further mutation.
func (c *Coordinator) DeriveChangeSet(ctx context.Context, ws *WorkingSet) (*changeset.ChangeSet, error) {
	if ws.changes != nil {
		return ws.changes, nil
	}
	if ws.state != New {
		return nil, illegal("deriving change set of %s working set", ws.state)
	}

	var changed []*artifact.Artifact
	for _, a := range ws.Artifacts() {
		if !a.HasChanges() || a.IsPhantom() {
			continue
		}
		if err := a.Validate(c.registry); err != nil {
			return nil, err
		}
		changed = append(changed, a)
	}

	for _, a := range changed {
		if err := c.mintArtifact(ctx, a); err != nil {
			return nil, err
		}
	}

	var relations []*artifact.Relation
	for _, key := range ws.relOrder {
		r := ws.relations[key]
		if !r.IsDirty() || r.IsPhantom() {
			continue
		}
		if err := c.mintRelation(ctx, r); err != nil {
			return nil, err
		}
		relations = append(relations, r)
	}

	cs := &changeset.ChangeSet{BranchID: ws.branchID}
	for _, a := range changed {
		cs.Artifacts = append(cs.Artifacts, changeset.FromArtifact(a))
	}
	for _, r := range relations {
		cs.Relations = append(cs.Relations, changeset.FromRelation(r))
	}

	ws.changes = cs
	return cs, nil
}

func (c *Coordinator) mintArtifact(ctx context.Context, a *artifact.Artifact) error {
	if a.IsDirty() {
		gamma, err := c.ids.Next(ctx, sequence.GammaID)
		if err != nil {
			return fmt.Errorf("allocating gamma for artifact %d: %w", a.ID, err)
		}
		a.GammaID = gamma
	}

	for _, attr := range a.AllAttributes() {
		if !attr.IsDirty() || attr.IsPhantom() {
			continue
		}
		if attr.ID == 0 {
			id, err := c.ids.Next(ctx, sequence.AttributeID)
			if err != nil {
				return fmt.Errorf("allocating attribute id: %w", err)
			}
			attr.ID = id
		}
		gamma, err := c.ids.Next(ctx, sequence.GammaID)
		if err != nil {
			return fmt.Errorf("allocating gamma for attribute %d: %w", attr.ID, err)
		}
		attr.GammaID = gamma
	}
	return nil
}

func (c *Coordinator) mintRelation(ctx context.Context, r *artifact.Relation) error {
	if r.ID == 0 {
		id, err := c.ids.Next(ctx, sequence.RelationID)
		if err != nil {
			return fmt.Errorf("allocating relation id: %w", err)
		}
		r.ID = id
	}
	gamma, err := c.ids.Next(ctx, sequence.GammaID)
	if err != nil {
		return fmt.Errorf("allocating gamma for relation %s: %w", r.Key(), err)
	}
	r.GammaID = gamma
	return nil
}

// Commit persists the working set's change set as one transaction on its
// branch.
//
// A working set that is already committing, or has left New, is rejected
// with ErrIllegalState and left untouched. Validation failures and an empty
// change set are returned before the commit starts. Once started the working
// set ends Committed or CommitFailed; a failed working set must be
// discarded.
func (c *Coordinator) Commit(ctx context.Context, ws *WorkingSet) (txcache.Record, error) {
	if ws.inProgress {
		return txcache.Record{}, illegal("commit already in progress on branch %d", ws.branchID)
	}
	if ws.state != New {
		return txcache.Record{}, illegal("committing %s working set", ws.state)
	}

	ws.inProgress = true
	defer func() { ws.inProgress = false }()

	b, err := c.branches.Get(ws.branchID)
	if err != nil {
		return txcache.Record{}, err
	}
	if !b.IsEditable() {
		return txcache.Record{}, illegal("branch %s is not editable", b)
	}

	cs, err := c.DeriveChangeSet(ctx, ws)
	if err != nil {
		return txcache.Record{}, err
	}
	if cs.IsEmpty() {
		return txcache.Record{}, ErrEmptyChangeSet
	}

	started := c.now()
	ws.state = CommitStarted

	rec, err := c.persist(ctx, ws, cs)
	if err != nil {
		ws.state = CommitFailed
		c.metrics.commits.WithLabelValues(CommitFailed.String()).Inc()
		c.logger.Error("commit failed", "branch", ws.branchID, "error", err)
		return txcache.Record{}, err
	}

	c.apply(ws, rec.ID)
	c.txCache.Put(rec)
	c.touchBranch(ctx, b)

	ws.state = Committed
	ws.record = &rec
	c.metrics.commits.WithLabelValues(Committed.String()).Inc()
	c.metrics.commitDuration.Observe(time.Since(started).Seconds())

	counts := cs.Counts()
	c.logger.Info("committed transaction",
		"transaction", rec.ID,
		"branch", rec.BranchID,
		"author", rec.Author,
		"added", counts[changeset.Added],
		"changed", counts[changeset.Changed],
		"deleted", counts[changeset.Deleted],
	)

	c.publish(ctx, rec, cs)
	return rec, nil
}

func (c *Coordinator) persist(ctx context.Context, ws *WorkingSet, cs *changeset.ChangeSet) (txcache.Record, error) {
	txID, err := c.ids.Next(ctx, sequence.TransactionID)
	if err != nil {
		return txcache.Record{}, fmt.Errorf("allocating transaction id: %w", err)
	}

	rec := txcache.Record{
		ID:       txID,
		BranchID: ws.branchID,
		Type:     ws.txType,
		Author:   ws.author,
		Comment:  ws.comment,
		Time:     c.now().UTC(),
	}
	if err := c.storage.Commit(ctx, rec, cs); err != nil {
		return txcache.Record{}, fmt.Errorf("committing transaction %d: %w", txID, err)
	}
	return rec, nil
}

// apply publishes the committed clones to the branch graph and marks them
// clean.
func (c *Coordinator) apply(ws *WorkingSet, txID int64) {
	var (
		artifacts []*artifact.Artifact
		relations []*artifact.Relation
	)
	for _, a := range ws.Artifacts() {
		if a.HasChanges() && !a.IsPhantom() {
			if a.IsDirty() {
				a.TransactionID = txID
			}
			artifacts = append(artifacts, a)
		}
	}
	for _, key := range ws.relOrder {
		if r := ws.relations[key]; r.IsDirty() && !r.IsPhantom() {
			r.TransactionID = txID
			relations = append(relations, r)
		}
	}

	c.arena.Graph(ws.branchID).Put(artifacts, relations)

	for _, a := range artifacts {
		a.ClearDirty()
	}
	for _, r := range relations {
		r.ClearDirty()
	}
}

func (c *Coordinator) touchBranch(ctx context.Context, b *branch.Branch) {
	if b.State() != branch.Created {
		return
	}
	b.SetState(branch.Modified)
	if err := c.storage.UpdateBranch(ctx, b.Row()); err != nil {
		c.logger.Warn("updating branch state", "branch", b.ID(), "error", err)
		return
	}
	b.ClearDirty()
}

func (c *Coordinator) publish(ctx context.Context, rec txcache.Record, cs *changeset.ChangeSet) {
	if c.publisher == nil {
		return
	}
	event := eventstream.NewChangeSetCommittedEvent(rec, cs, c.now())
	if err := c.publisher.PublishChangeSet(ctx, event); err != nil {
		c.logger.Warn("publishing change set", "transaction", rec.ID, "error", err)
	}
}

// Rollback abandons a working set that has not started committing.
func (c *Coordinator) Rollback(ws *WorkingSet) error {
	if ws.inProgress {
		return illegal("rolling back while committing on branch %d", ws.branchID)
	}
	if ws.state != New {
		return illegal("rolling back %s working set", ws.state)
	}
	ws.state = RolledBack
	return nil
}
