package txn_test

import (
	"errors"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/papercomputeco/grove/pkg/artifact"
	"github.com/papercomputeco/grove/pkg/branch"
	"github.com/papercomputeco/grove/pkg/changeset"
	"github.com/papercomputeco/grove/pkg/storage"
	"github.com/papercomputeco/grove/pkg/txn"
)

var _ = Describe("Coordinator", func() {
	var f *fixture

	BeforeEach(func() {
		f = newFixture()
	})

	Describe("Begin", func() {
		It("refuses branches that are not editable", func() {
			f.root.SetArchived(true)
			_, err := f.coord.Begin(f.root.ID(), "tester", "")
			Expect(errors.Is(err, txn.ErrIllegalState)).To(BeTrue())
		})

		It("refuses unknown branches", func() {
			_, err := f.coord.Begin(999, "tester", "")
			Expect(err).To(MatchError(branch.BranchDoesNotExistError{ID: 999}))
		})
	})

	Describe("committing", func() {
		It("round trips a new artifact through storage", func() {
			ws := f.begin(f.root.ID())
			a, err := f.coord.CreateArtifact(f.ctx, ws, typeNote, "first")
			Expect(err).NotTo(HaveOccurred())
			Expect(a.SetSoleAttribute(f.registry, attrBody, "hello")).To(Succeed())

			rec, err := f.coord.Commit(f.ctx, ws)
			Expect(err).NotTo(HaveOccurred())
			Expect(ws.State()).To(Equal(txn.Committed))
			stored, ok := ws.Record()
			Expect(ok).To(BeTrue())
			Expect(stored).To(Equal(rec))
			Expect(rec.BranchID).To(Equal(f.root.ID()))
			Expect(rec.Author).To(Equal("tester"))

			fresh := f.newCoordinator()
			view, err := fresh.View(f.ctx, f.root.ID(), a.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(view.Name()).To(Equal("first"))
			Expect(view.GUID).To(Equal(a.GUID))
			Expect(view.TransactionID).To(Equal(rec.ID))
			Expect(view.GammaID).NotTo(BeZero())
			Expect(view.SoleAttributeValue(attrBody)).To(Equal("hello"))
		})

		It("records the commit and marks a fresh branch modified", func() {
			Expect(f.root.State()).To(Equal(branch.Created))
			f.commitNotes("a")

			Expect(f.root.State()).To(Equal(branch.Modified))
			Expect(f.root.IsDirty()).To(BeFalse())
			rows, err := f.store.ListBranches(f.ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(rows[0].State).To(Equal(branch.Modified))

			head, err := f.txCache.Head(f.root.ID())
			Expect(err).NotTo(HaveOccurred())
			Expect(head.Author).To(Equal("tester"))
		})

		It("issues increasing transaction ids", func() {
			ids := f.commitNotes("a")
			first, _ := f.txCache.Head(f.root.ID())

			ws := f.begin(f.root.ID())
			a, err := f.coord.GetForWrite(f.ctx, ws, ids[0])
			Expect(err).NotTo(HaveOccurred())
			a.SetName("b")
			second, err := f.coord.Commit(f.ctx, ws)
			Expect(err).NotTo(HaveOccurred())

			Expect(second.ID).To(BeNumerically(">", first.ID))
		})

		It("publishes the committed change set", func() {
			f.commitNotes("a", "b")

			events := f.publisher.Events()
			Expect(events).To(HaveLen(1))
			Expect(events[0].Artifacts).To(HaveLen(2))
			Expect(events[0].Artifacts[0]).To(HaveField("Change", "added"))
		})

		It("rejects an empty change set before starting", func() {
			ws := f.begin(f.root.ID())
			_, err := f.coord.Commit(f.ctx, ws)
			Expect(err).To(MatchError(txn.ErrEmptyChangeSet))
			Expect(ws.State()).To(Equal(txn.New))
			Expect(f.publisher.Events()).To(BeEmpty())
		})

		It("leaves the working set open when validation fails", func() {
			ws := f.begin(f.root.ID())
			req, err := f.coord.CreateArtifact(f.ctx, ws, typeRequirement, "untitled")
			Expect(err).NotTo(HaveOccurred())

			_, err = f.coord.Commit(f.ctx, ws)
			Expect(errors.Is(err, artifact.ErrCardinality)).To(BeTrue())
			Expect(ws.State()).To(Equal(txn.New))
			Expect(req.GammaID).To(BeZero())

			Expect(req.SetSoleAttribute(f.registry, attrTitle, "Titled")).To(Succeed())
			_, err = f.coord.Commit(f.ctx, ws)
			Expect(err).NotTo(HaveOccurred())
		})

		It("rejects re-entrant operations while committing and leaves the state unchanged", func() {
			ws := f.begin(f.root.ID())
			_, err := f.coord.CreateArtifact(f.ctx, ws, typeNote, "a")
			Expect(err).NotTo(HaveOccurred())

			var (
				inProgress            bool
				stateDuring           txn.State
				commitErr, createErr  error
				rollbackErr, writeErr error
			)
			f.store.onCommit = func() {
				f.store.onCommit = nil
				inProgress = ws.IsCommitInProgress()
				stateDuring = ws.State()
				_, commitErr = f.coord.Commit(f.ctx, ws)
				_, createErr = f.coord.CreateArtifact(f.ctx, ws, typeNote, "b")
				rollbackErr = f.coord.Rollback(ws)
				_, writeErr = f.coord.GetForWrite(f.ctx, ws, 1)
			}

			_, err = f.coord.Commit(f.ctx, ws)
			Expect(err).NotTo(HaveOccurred())

			Expect(inProgress).To(BeTrue())
			Expect(stateDuring).To(Equal(txn.CommitStarted))
			for _, e := range []error{commitErr, createErr, rollbackErr, writeErr} {
				Expect(errors.Is(e, txn.ErrIllegalState)).To(BeTrue())
			}
			Expect(ws.State()).To(Equal(txn.Committed))
			Expect(ws.IsCommitInProgress()).To(BeFalse())
			Expect(ws.Artifacts()).To(HaveLen(1))
		})

		It("ends failed commits in CommitFailed without touching the graph", func() {
			ws := f.begin(f.root.ID())
			a, err := f.coord.CreateArtifact(f.ctx, ws, typeNote, "doomed")
			Expect(err).NotTo(HaveOccurred())

			f.store.failCommit = errors.New("disk full")
			_, err = f.coord.Commit(f.ctx, ws)
			Expect(err).To(MatchError(ContainSubstring("disk full")))
			Expect(ws.State()).To(Equal(txn.CommitFailed))

			_, err = f.coord.Commit(f.ctx, ws)
			Expect(errors.Is(err, txn.ErrIllegalState)).To(BeTrue())
			Expect(errors.Is(f.coord.Rollback(ws), txn.ErrIllegalState)).To(BeTrue())

			f.store.failCommit = nil
			_, err = f.coord.View(f.ctx, f.root.ID(), a.ID)
			var notFound storage.NotFoundError
			Expect(errors.As(err, &notFound)).To(BeTrue())
		})
	})

	It("counts commits by outcome on the metrics registerer", func() {
		f.commitNotes("a")

		ws := f.begin(f.root.ID())
		_, err := f.coord.CreateArtifact(f.ctx, ws, typeNote, "doomed")
		Expect(err).NotTo(HaveOccurred())
		f.store.failCommit = errors.New("disk full")
		_, err = f.coord.Commit(f.ctx, ws)
		Expect(err).To(HaveOccurred())

		f.store.failCommit = nil
		f.commitNotes("b")

		expected := `
# HELP grove_txn_commits_total Commits that reached a terminal state, by outcome.
# TYPE grove_txn_commits_total counter
grove_txn_commits_total{outcome="commit_failed"} 1
grove_txn_commits_total{outcome="committed"} 2
`
		Expect(testutil.GatherAndCompare(f.metrics, strings.NewReader(expected), "grove_txn_commits_total")).To(Succeed())
		Expect(testutil.GatherAndCount(f.metrics, "grove_txn_commit_duration_seconds")).To(Equal(1))
	})

	Describe("DeriveChangeSet", func() {
		It("builds the change set once and freezes the working set", func() {
			ids := f.commitNotes("a")
			ws := f.begin(f.root.ID())
			a, err := f.coord.GetForWrite(f.ctx, ws, ids[0])
			Expect(err).NotTo(HaveOccurred())
			Expect(a.SetSoleAttribute(f.registry, attrBody, "edited")).To(Succeed())

			cs, err := f.coord.DeriveChangeSet(f.ctx, ws)
			Expect(err).NotTo(HaveOccurred())
			again, err := f.coord.DeriveChangeSet(f.ctx, ws)
			Expect(err).NotTo(HaveOccurred())
			Expect(again).To(BeIdenticalTo(cs))

			got, ok := ws.ChangeSet()
			Expect(ok).To(BeTrue())
			Expect(got).To(BeIdenticalTo(cs))

			Expect(cs.Artifacts).To(HaveLen(1))
			Expect(cs.Artifacts[0].Versioned).To(BeFalse())
			Expect(cs.Artifacts[0].Attributes).To(ConsistOf(HaveField("ModType", artifact.Modified)))

			_, err = f.coord.CreateArtifact(f.ctx, ws, typeNote, "late")
			Expect(errors.Is(err, txn.ErrIllegalState)).To(BeTrue())

			rec, err := f.coord.Commit(f.ctx, ws)
			Expect(err).NotTo(HaveOccurred())

			view, err := f.newCoordinator().View(f.ctx, f.root.ID(), ids[0])
			Expect(err).NotTo(HaveOccurred())
			Expect(view.SoleAttributeValue(attrBody)).To(Equal("edited"))
			Expect(view.TransactionID).NotTo(Equal(rec.ID))
		})

		It("leaves phantoms out", func() {
			ws := f.begin(f.root.ID())
			a, err := f.coord.CreateArtifact(f.ctx, ws, typeNote, "scratch")
			Expect(err).NotTo(HaveOccurred())
			Expect(f.coord.Delete(f.ctx, ws, a.ID)).To(Succeed())
			Expect(a.IsPhantom()).To(BeTrue())

			cs, err := f.coord.DeriveChangeSet(f.ctx, ws)
			Expect(err).NotTo(HaveOccurred())
			Expect(cs.IsEmpty()).To(BeTrue())
		})
	})

	Describe("acquiring artifacts", func() {
		var ids []int64

		BeforeEach(func() {
			ids = f.commitNotes("a", "b")
		})

		It("hands out one clone per artifact per working set", func() {
			ws := f.begin(f.root.ID())
			first, err := f.coord.GetForWrite(f.ctx, ws, ids[0])
			Expect(err).NotTo(HaveOccurred())
			second, err := f.coord.GetForWrite(f.ctx, ws, ids[0])
			Expect(err).NotTo(HaveOccurred())
			Expect(second).To(BeIdenticalTo(first))

			view, err := f.coord.View(f.ctx, f.root.ID(), ids[0])
			Expect(err).NotTo(HaveOccurred())
			third, err := f.coord.GetForWriteFrom(f.ctx, ws, view)
			Expect(err).NotTo(HaveOccurred())
			Expect(third).To(BeIdenticalTo(first))
		})

		It("keeps uncommitted edits out of views and other working sets", func() {
			ws := f.begin(f.root.ID())
			a, err := f.coord.GetForWrite(f.ctx, ws, ids[0])
			Expect(err).NotTo(HaveOccurred())
			a.SetName("edited")

			view, err := f.coord.View(f.ctx, f.root.ID(), ids[0])
			Expect(err).NotTo(HaveOccurred())
			Expect(view.Name()).To(Equal("a"))

			other := f.begin(f.root.ID())
			b, err := f.coord.GetForWrite(f.ctx, other, ids[0])
			Expect(err).NotTo(HaveOccurred())
			Expect(b).NotTo(BeIdenticalTo(a))
			Expect(b.Name()).To(Equal("a"))
		})

		It("loads artifacts from storage on first use", func() {
			coord := f.newCoordinator()
			ws, err := coord.Begin(f.root.ID(), "tester", "")
			Expect(err).NotTo(HaveOccurred())

			a, err := coord.GetForWrite(f.ctx, ws, ids[1])
			Expect(err).NotTo(HaveOccurred())
			Expect(a.Name()).To(Equal("b"))
			Expect(a.HasChanges()).To(BeFalse())
		})

		It("reports unknown artifacts as not found", func() {
			ws := f.begin(f.root.ID())
			_, err := f.coord.GetForWrite(f.ctx, ws, 424242)
			var notFound storage.NotFoundError
			Expect(errors.As(err, &notFound)).To(BeTrue())
			Expect(ws.Artifacts()).To(BeEmpty())
		})
	})

	Describe("across branches", func() {
		var (
			ids   []int64
			child *branch.Branch
		)

		BeforeEach(func() {
			ids = f.commitNotes("a")

			var err error
			child, err = f.creator.CreateChild(f.ctx, branch.CreateParams{ParentID: f.root.ID(), Name: "child"})
			Expect(err).NotTo(HaveOccurred())
		})

		It("sees the parent's content on a forked branch", func() {
			view, err := f.coord.View(f.ctx, child.ID(), ids[0])
			Expect(err).NotTo(HaveOccurred())
			Expect(view.BranchID).To(Equal(child.ID()))
			Expect(view.SoleAttributeValue(attrBody)).To(Equal("a body"))
		})

		It("isolates commits on the child from the parent", func() {
			ws := f.begin(child.ID())
			a, err := f.coord.GetForWrite(f.ctx, ws, ids[0])
			Expect(err).NotTo(HaveOccurred())
			a.SetName("child edit")
			_, err = f.coord.Commit(f.ctx, ws)
			Expect(err).NotTo(HaveOccurred())

			fresh := f.newCoordinator()
			onRoot, err := fresh.View(f.ctx, f.root.ID(), ids[0])
			Expect(err).NotTo(HaveOccurred())
			Expect(onRoot.Name()).To(Equal("a"))
			onChild, err := fresh.View(f.ctx, child.ID(), ids[0])
			Expect(err).NotTo(HaveOccurred())
			Expect(onChild.Name()).To(Equal("child edit"))
		})

		It("loads a foreign view from the working set's branch", func() {
			view, err := f.coord.View(f.ctx, f.root.ID(), ids[0])
			Expect(err).NotTo(HaveOccurred())

			ws := f.begin(child.ID())
			a, err := f.coord.GetForWriteFrom(f.ctx, ws, view)
			Expect(err).NotTo(HaveOccurred())
			Expect(a.BranchID).To(Equal(child.ID()))
		})

		It("copies an artifact under a new identity", func() {
			view, err := f.coord.View(f.ctx, f.root.ID(), ids[0])
			Expect(err).NotTo(HaveOccurred())

			ws := f.begin(child.ID())
			dup, err := f.coord.Copy(f.ctx, ws, view)
			Expect(err).NotTo(HaveOccurred())
			Expect(dup.ID).NotTo(Equal(view.ID))
			Expect(dup.GUID).NotTo(Equal(view.GUID))
			Expect(dup.BranchID).To(Equal(child.ID()))
			Expect(dup.SoleAttributeValue(attrBody)).To(Equal("a body"))

			bare, err := f.coord.Copy(f.ctx, ws, view, attrTitle)
			Expect(err).NotTo(HaveOccurred())
			Expect(bare.AllAttributes()).To(BeEmpty())
		})

		It("introduces an artifact keeping its identity", func() {
			grandchild, err := f.creator.CreateChild(f.ctx, branch.CreateParams{ParentID: child.ID(), Name: "grandchild"})
			Expect(err).NotTo(HaveOccurred())

			ws := f.begin(f.root.ID())
			a, err := f.coord.CreateArtifact(f.ctx, ws, typeNote, "late")
			Expect(err).NotTo(HaveOccurred())
			_, err = f.coord.Commit(f.ctx, ws)
			Expect(err).NotTo(HaveOccurred())
			view, err := f.coord.View(f.ctx, f.root.ID(), a.ID)
			Expect(err).NotTo(HaveOccurred())

			target := f.begin(grandchild.ID())
			introduced, err := f.coord.Introduce(f.ctx, target, view)
			Expect(err).NotTo(HaveOccurred())
			Expect(introduced.ID).To(Equal(view.ID))
			Expect(introduced.GUID).To(Equal(view.GUID))
			Expect(introduced.ModType).To(Equal(artifact.Introduced))

			again, err := f.coord.Introduce(f.ctx, target, view)
			Expect(err).NotTo(HaveOccurred())
			Expect(again).To(BeIdenticalTo(introduced))

			_, err = f.coord.Commit(f.ctx, target)
			Expect(err).NotTo(HaveOccurred())
			got, err := f.newCoordinator().View(f.ctx, grandchild.ID(), a.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.ModType).To(Equal(artifact.Introduced))
		})

		It("retires attributes the source dropped when introducing over an existing version", func() {
			ws := f.begin(f.root.ID())
			a, err := f.coord.GetForWrite(f.ctx, ws, ids[0])
			Expect(err).NotTo(HaveOccurred())
			a.DeleteAttributes(attrBody)
			a.SetName("renamed")
			_, err = f.coord.Commit(f.ctx, ws)
			Expect(err).NotTo(HaveOccurred())

			onChild, err := f.coord.View(f.ctx, child.ID(), ids[0])
			Expect(err).NotTo(HaveOccurred())
			bodyID := onChild.Attributes(attrBody)[0].ID

			view, err := f.coord.View(f.ctx, f.root.ID(), ids[0])
			Expect(err).NotTo(HaveOccurred())
			target := f.begin(child.ID())
			introduced, err := f.coord.Introduce(f.ctx, target, view)
			Expect(err).NotTo(HaveOccurred())
			Expect(introduced.ModType).To(Equal(artifact.Introduced))
			Expect(introduced.AttributeValues(attrBody)).To(BeEmpty())
			_, err = f.coord.Commit(f.ctx, target)
			Expect(err).NotTo(HaveOccurred())

			inMemory, err := f.coord.View(f.ctx, child.ID(), ids[0])
			Expect(err).NotTo(HaveOccurred())
			Expect(inMemory.Name()).To(Equal("renamed"))
			Expect(inMemory.AttributeValues(attrBody)).To(BeEmpty())

			reloaded, err := f.newCoordinator().View(f.ctx, child.ID(), ids[0])
			Expect(err).NotTo(HaveOccurred())
			Expect(reloaded.Name()).To(Equal("renamed"))
			Expect(reloaded.AttributeValues(attrBody)).To(BeEmpty())
			Expect(reloaded.AllAttributes()).To(HaveLen(1))
			Expect(reloaded.AllAttributes()[0].ID).To(Equal(bodyID))
			Expect(reloaded.AllAttributes()[0].IsDeleted()).To(BeTrue())
		})

		It("keeps shared attribute ids when introducing over an existing version", func() {
			ws := f.begin(f.root.ID())
			a, err := f.coord.GetForWrite(f.ctx, ws, ids[0])
			Expect(err).NotTo(HaveOccurred())
			Expect(a.SetSoleAttribute(f.registry, attrBody, "root body")).To(Succeed())
			_, err = f.coord.Commit(f.ctx, ws)
			Expect(err).NotTo(HaveOccurred())

			view, err := f.coord.View(f.ctx, f.root.ID(), ids[0])
			Expect(err).NotTo(HaveOccurred())
			target := f.begin(child.ID())
			_, err = f.coord.Introduce(f.ctx, target, view)
			Expect(err).NotTo(HaveOccurred())
			_, err = f.coord.Commit(f.ctx, target)
			Expect(err).NotTo(HaveOccurred())

			reloaded, err := f.newCoordinator().View(f.ctx, child.ID(), ids[0])
			Expect(err).NotTo(HaveOccurred())
			Expect(reloaded.AttributeValues(attrBody)).To(Equal([]string{"root body"}))
			Expect(reloaded.AllAttributes()).To(HaveLen(1))
			Expect(reloaded.AllAttributes()[0].ID).To(Equal(view.Attributes(attrBody)[0].ID))
		})

		It("carries the destination's relations when introducing over an existing version", func() {
			other := f.begin(child.ID())
			b, err := f.coord.CreateArtifact(f.ctx, other, typeNote, "b")
			Expect(err).NotTo(HaveOccurred())
			_, err = f.coord.Relate(f.ctx, other, relSupports, ids[0], b.ID, "child only")
			Expect(err).NotTo(HaveOccurred())
			_, err = f.coord.Commit(f.ctx, other)
			Expect(err).NotTo(HaveOccurred())

			view, err := f.coord.View(f.ctx, f.root.ID(), ids[0])
			Expect(err).NotTo(HaveOccurred())

			fresh := f.newCoordinator()
			target, err := fresh.Begin(child.ID(), "tester", "")
			Expect(err).NotTo(HaveOccurred())
			_, err = fresh.Introduce(f.ctx, target, view)
			Expect(err).NotTo(HaveOccurred())
			key := artifact.RelationKey{Type: relSupports, A: ids[0], B: b.ID}
			_, ok := target.Relation(key)
			Expect(ok).To(BeTrue())

			Expect(fresh.Delete(f.ctx, target, ids[0])).To(Succeed())
			_, err = fresh.Commit(f.ctx, target)
			Expect(err).NotTo(HaveOccurred())

			reloaded := f.newCoordinator()
			next, err := reloaded.Begin(child.ID(), "tester", "")
			Expect(err).NotTo(HaveOccurred())
			_, err = reloaded.GetForWrite(f.ctx, next, b.ID)
			Expect(err).NotTo(HaveOccurred())
			rel, ok := next.Relation(key)
			Expect(ok).To(BeTrue())
			Expect(rel.IsDeleted()).To(BeTrue())
			Expect(next.Relations(b.ID)).To(BeEmpty())
		})

		It("refuses to copy or introduce within the same branch without changing anything", func() {
			view, err := f.coord.View(f.ctx, f.root.ID(), ids[0])
			Expect(err).NotTo(HaveOccurred())
			ws := f.begin(f.root.ID())
			before, _ := f.store.ReadSequence(f.ctx, "ART_ID")

			_, err = f.coord.Copy(f.ctx, ws, view)
			Expect(errors.Is(err, txn.ErrIllegalState)).To(BeTrue())
			_, err = f.coord.Introduce(f.ctx, ws, view)
			Expect(errors.Is(err, txn.ErrIllegalState)).To(BeTrue())

			Expect(ws.Artifacts()).To(BeEmpty())
			Expect(ws.State()).To(Equal(txn.New))
			Expect(f.store.ReadSequence(f.ctx, "ART_ID")).To(Equal(before))
		})
	})

	Describe("Rollback", func() {
		It("closes the working set for good", func() {
			ws := f.begin(f.root.ID())
			_, err := f.coord.CreateArtifact(f.ctx, ws, typeNote, "never")
			Expect(err).NotTo(HaveOccurred())

			Expect(f.coord.Rollback(ws)).To(Succeed())
			Expect(ws.State()).To(Equal(txn.RolledBack))

			_, err = f.coord.Commit(f.ctx, ws)
			Expect(errors.Is(err, txn.ErrIllegalState)).To(BeTrue())
			_, err = f.coord.CreateArtifact(f.ctx, ws, typeNote, "after")
			Expect(errors.Is(err, txn.ErrIllegalState)).To(BeTrue())
			Expect(errors.Is(f.coord.Rollback(ws), txn.ErrIllegalState)).To(BeTrue())
		})
	})

	Describe("Delete and Undelete", func() {
		var ids []int64

		BeforeEach(func() {
			ids = f.commitNotes("a", "b")
			ws := f.begin(f.root.ID())
			_, err := f.coord.Relate(f.ctx, ws, relSupports, ids[0], ids[1], "because")
			Expect(err).NotTo(HaveOccurred())
			_, err = f.coord.Commit(f.ctx, ws)
			Expect(err).NotTo(HaveOccurred())
		})

		It("deletes relations and pulls in their other endpoints", func() {
			ws := f.begin(f.root.ID())
			Expect(f.coord.Delete(f.ctx, ws, ids[0])).To(Succeed())

			_, ok := ws.Artifact(ids[1])
			Expect(ok).To(BeTrue())
			rel, ok := ws.Relation(artifact.RelationKey{Type: relSupports, A: ids[0], B: ids[1]})
			Expect(ok).To(BeTrue())
			Expect(rel.IsDeleted()).To(BeTrue())

			cs, err := f.coord.DeriveChangeSet(f.ctx, ws)
			Expect(err).NotTo(HaveOccurred())
			Expect(cs.Counts()[changeset.Deleted]).To(Equal(2))

			_, err = f.coord.Commit(f.ctx, ws)
			Expect(err).NotTo(HaveOccurred())

			view, err := f.newCoordinator().View(f.ctx, f.root.ID(), ids[0])
			Expect(err).NotTo(HaveOccurred())
			Expect(view.IsDeleted()).To(BeTrue())

			next := f.begin(f.root.ID())
			_, err = f.coord.GetForWrite(f.ctx, next, ids[0])
			var notFound storage.NotFoundError
			Expect(errors.As(err, &notFound)).To(BeTrue())
		})

		It("restores attributes but not relations on undelete", func() {
			ws := f.begin(f.root.ID())
			Expect(f.coord.Delete(f.ctx, ws, ids[0])).To(Succeed())
			_, err := f.coord.Commit(f.ctx, ws)
			Expect(err).NotTo(HaveOccurred())

			ws = f.begin(f.root.ID())
			_, err = f.coord.Undelete(f.ctx, ws, ids[1])
			Expect(errors.Is(err, txn.ErrIllegalState)).To(BeTrue())

			a, err := f.coord.Undelete(f.ctx, ws, ids[0])
			Expect(err).NotTo(HaveOccurred())
			Expect(a.ModType).To(Equal(artifact.Undeleted))
			_, err = f.coord.Commit(f.ctx, ws)
			Expect(err).NotTo(HaveOccurred())

			coord := f.newCoordinator()
			view, err := coord.View(f.ctx, f.root.ID(), ids[0])
			Expect(err).NotTo(HaveOccurred())
			Expect(view.IsDeleted()).To(BeFalse())
			Expect(view.SoleAttributeValue(attrBody)).To(Equal("a body"))

			check, err := coord.Begin(f.root.ID(), "tester", "")
			Expect(err).NotTo(HaveOccurred())
			_, err = coord.GetForWrite(f.ctx, check, ids[0])
			Expect(err).NotTo(HaveOccurred())
			Expect(check.Relations(ids[0])).To(BeEmpty())
		})

		It("revives a deleted relation when the pair is related again", func() {
			ws := f.begin(f.root.ID())
			Expect(f.coord.Unrelate(f.ctx, ws, relSupports, ids[0], ids[1])).To(Succeed())
			_, err := f.coord.Commit(f.ctx, ws)
			Expect(err).NotTo(HaveOccurred())

			ws = f.begin(f.root.ID())
			_, err = f.coord.GetForWrite(f.ctx, ws, ids[0])
			Expect(err).NotTo(HaveOccurred())
			before, ok := ws.Relation(artifact.RelationKey{Type: relSupports, A: ids[0], B: ids[1]})
			Expect(ok).To(BeTrue())
			Expect(before.IsDeleted()).To(BeTrue())

			r, err := f.coord.Relate(f.ctx, ws, relSupports, ids[0], ids[1], "again")
			Expect(err).NotTo(HaveOccurred())
			Expect(r).To(BeIdenticalTo(before))
			Expect(r.ModType).To(Equal(artifact.Undeleted))
			Expect(r.Rationale()).To(Equal("again"))
		})
	})
})
