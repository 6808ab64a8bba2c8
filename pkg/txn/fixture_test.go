package txn_test

import (
	"context"
	"log/slog"
	"sync"

	. "github.com/onsi/gomega"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/papercomputeco/grove/pkg/artifact"
	"github.com/papercomputeco/grove/pkg/branch"
	"github.com/papercomputeco/grove/pkg/changeset"
	"github.com/papercomputeco/grove/pkg/eventstream"
	"github.com/papercomputeco/grove/pkg/sequence"
	"github.com/papercomputeco/grove/pkg/storage/inmemory"
	"github.com/papercomputeco/grove/pkg/txcache"
	"github.com/papercomputeco/grove/pkg/txn"
)

const (
	typeNote        = "Note"
	typeRequirement = "Requirement"
	attrBody        = "Body"
	attrTitle       = "Title"
	relHierarchy    = "Hierarchy"
	relSupports     = "Supports"
)

// hookStore lets a test run code in the middle of a storage commit or make
// it fail.
type hookStore struct {
	*inmemory.Driver

	onCommit   func()
	failCommit error
}

func (s *hookStore) Commit(ctx context.Context, rec txcache.Record, cs *changeset.ChangeSet) error {
	if s.onCommit != nil {
		s.onCommit()
	}
	if s.failCommit != nil {
		return s.failCommit
	}
	return s.Driver.Commit(ctx, rec, cs)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []*eventstream.ChangeSetCommittedEvent
}

func (p *recordingPublisher) PublishChangeSet(_ context.Context, e *eventstream.ChangeSetCommittedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) Events() []*eventstream.ChangeSetCommittedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.events
}

func testRegistry() *artifact.Registry {
	reg := artifact.NewRegistry()
	reg.RegisterArtifactType(artifact.ArtifactType{Name: typeNote})
	reg.RegisterArtifactType(artifact.ArtifactType{Name: typeRequirement, Attributes: []string{attrTitle, attrBody}})
	Expect(reg.RegisterAttributeType(artifact.AttributeType{Name: attrBody, Max: 1})).To(Succeed())
	Expect(reg.RegisterAttributeType(artifact.AttributeType{Name: attrTitle, Min: 1, Max: 1})).To(Succeed())
	reg.RegisterRelationType(artifact.RelationType{
		Name:         relHierarchy,
		SideA:        "parent",
		SideB:        "child",
		Multiplicity: artifact.OneToMany,
		Ordered:      true,
	})
	reg.RegisterRelationType(artifact.RelationType{
		Name:         relSupports,
		SideA:        "supported",
		SideB:        "supporting",
		Multiplicity: artifact.ManyToMany,
	})
	return reg
}

type fixture struct {
	ctx       context.Context
	store     *hookStore
	ids       *sequence.Allocator
	txCache   *txcache.Cache
	branches  *branch.Cache
	creator   *branch.Creator
	registry  *artifact.Registry
	publisher *recordingPublisher
	metrics   *prometheus.Registry
	coord     *txn.Coordinator
	root      *branch.Branch
}

func newFixture() *fixture {
	f := &fixture{
		ctx:       context.Background(),
		store:     &hookStore{Driver: inmemory.NewDriver()},
		registry:  testRegistry(),
		publisher: &recordingPublisher{},
		metrics:   prometheus.NewRegistry(),
	}
	f.ids = sequence.NewAllocator(f.store)
	Expect(f.ids.InitializeDefaults(f.ctx)).To(Succeed())

	f.txCache = txcache.NewCache()
	Expect(f.txCache.Load(f.ctx, f.store)).To(Succeed())
	f.branches = branch.NewCache(f.txCache)
	Expect(f.branches.Load(f.ctx, f.store)).To(Succeed())
	f.creator = branch.NewCreator(f.branches, f.txCache, f.ids, f.store, slog.New(slog.DiscardHandler))

	var err error
	f.root, err = f.creator.CreateRoot(f.ctx, "root", "tester")
	Expect(err).NotTo(HaveOccurred())

	f.coord = f.newCoordinator()
	return f
}

// newCoordinator shares storage and caches but starts with an empty arena,
// so every read goes back to storage.
func (f *fixture) newCoordinator() *txn.Coordinator {
	return txn.NewCoordinator(txn.Config{
		Storage:      f.store,
		IDs:          f.ids,
		Branches:     f.branches,
		Transactions: f.txCache,
		Arena:        artifact.NewArena(),
		Registry:     f.registry,
		Publisher:    f.publisher,
		Metrics:      f.metrics,
	})
}

func (f *fixture) begin(branchID int64) *txn.WorkingSet {
	ws, err := f.coord.Begin(branchID, "tester", "test edit")
	Expect(err).NotTo(HaveOccurred())
	return ws
}

// commitNotes creates and commits one note per name on the root branch.
func (f *fixture) commitNotes(names ...string) []int64 {
	ws := f.begin(f.root.ID())
	ids := make([]int64, 0, len(names))
	for _, name := range names {
		a, err := f.coord.CreateArtifact(f.ctx, ws, typeNote, name)
		Expect(err).NotTo(HaveOccurred())
		Expect(a.SetSoleAttribute(f.registry, attrBody, name+" body")).To(Succeed())
		ids = append(ids, a.ID)
	}
	_, err := f.coord.Commit(f.ctx, ws)
	Expect(err).NotTo(HaveOccurred())
	return ids
}
