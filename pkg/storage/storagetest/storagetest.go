// Package storagetest holds the behaviour every storage driver must share,
// written as ginkgo specs that driver test suites attach to.
//
// Specs allocate random ids and unique sequence names so they can run against
// a database shared with other test runs.
package storagetest

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/grove/pkg/artifact"
	"github.com/papercomputeco/grove/pkg/branch"
	"github.com/papercomputeco/grove/pkg/changeset"
	"github.com/papercomputeco/grove/pkg/engine"
	"github.com/papercomputeco/grove/pkg/joinset"
	"github.com/papercomputeco/grove/pkg/storage"
	"github.com/papercomputeco/grove/pkg/txcache"
)

// Opener returns a fresh, migrated store for one test.
type Opener func(ctx context.Context) engine.Storage

// DescribeStorage registers the shared driver specs under a container.
func DescribeStorage(name string, open Opener) bool {
	return Describe(name+" storage behaviour", func() {
		var (
			ctx   context.Context
			store engine.Storage
		)

		BeforeEach(func() {
			ctx = context.Background()
			store = nil
			store = open(ctx)
		})

		AfterEach(func() {
			if store != nil {
				Expect(store.Close()).To(Succeed())
			}
		})

		Describe("sequences", func() {
			var name string

			BeforeEach(func() {
				name = "TEST_SEQ_" + uuid.NewString()
			})

			It("creates and reads a sequence", func() {
				Expect(store.CreateSequence(ctx, name, 10)).To(Succeed())
				Expect(store.ReadSequence(ctx, name)).To(Equal(int64(10)))
			})

			It("rejects a duplicate sequence", func() {
				Expect(store.CreateSequence(ctx, name, 0)).To(Succeed())

				var exists storage.AlreadyExistsError
				Expect(errors.As(store.CreateSequence(ctx, name, 0), &exists)).To(BeTrue())
			})

			It("reports unknown sequences as not found", func() {
				_, err := store.ReadSequence(ctx, name)
				var notFound storage.NotFoundError
				Expect(errors.As(err, &notFound)).To(BeTrue())
			})

			It("swaps only when the expected value matches", func() {
				Expect(store.CreateSequence(ctx, name, 5)).To(Succeed())

				ok, err := store.CompareAndSwapSequence(ctx, name, 4, 9)
				Expect(err).NotTo(HaveOccurred())
				Expect(ok).To(BeFalse())
				Expect(store.ReadSequence(ctx, name)).To(Equal(int64(5)))

				ok, err = store.CompareAndSwapSequence(ctx, name, 5, 9)
				Expect(err).NotTo(HaveOccurred())
				Expect(ok).To(BeTrue())
				Expect(store.ReadSequence(ctx, name)).To(Equal(int64(9)))
			})
		})

		Describe("join sets", func() {
			It("stores, lists as expired and deletes a set", func() {
				set := joinset.NewArtifactSet(store)
				Expect(set.Add(joinset.ArtifactRow{ArtifactID: 1, BranchID: 2})).To(Succeed())
				Expect(set.Store(ctx)).To(Succeed())

				handles, err := store.ExpiredJoins(ctx, time.Now().Add(time.Minute))
				Expect(err).NotTo(HaveOccurred())
				Expect(handles).To(ContainElement(HaveField("QueryID", set.QueryID())))

				Expect(set.Delete(ctx)).To(Succeed())

				handles, err = store.ExpiredJoins(ctx, time.Now().Add(time.Minute))
				Expect(err).NotTo(HaveOccurred())
				Expect(handles).NotTo(ContainElement(HaveField("QueryID", set.QueryID())))
			})

			It("does not list sets issued after the cutoff", func() {
				set := joinset.NewGammaSet(store)
				Expect(set.Add(joinset.GammaRow{GammaID: 3})).To(Succeed())
				Expect(set.Store(ctx)).To(Succeed())
				DeferCleanup(set.Delete, ctx)

				handles, err := store.ExpiredJoins(ctx, time.Now().Add(-time.Hour))
				Expect(err).NotTo(HaveOccurred())
				Expect(handles).NotTo(ContainElement(HaveField("QueryID", set.QueryID())))
			})

			It("rejects a second set with the same kind and query id", func() {
				queryID := rand.Int64N(1<<40) + 1
				rows := [][]any{{"value"}}
				Expect(store.InsertJoin(ctx, joinset.KindChar, queryID, time.Now(), rows)).To(Succeed())
				DeferCleanup(store.DeleteJoin, ctx, joinset.KindChar, queryID)

				var exists storage.AlreadyExistsError
				err := store.InsertJoin(ctx, joinset.KindChar, queryID, time.Now(), rows)
				Expect(errors.As(err, &exists)).To(BeTrue())
			})

			It("stores every row shape", func() {
				sets := []interface {
					Store(context.Context) error
					Delete(context.Context) error
				}{}

				tx := joinset.NewTxGammaSet(store)
				Expect(tx.Add(joinset.TxGammaRow{TransactionID: 1, GammaID: 2})).To(Succeed())
				tag := joinset.NewTagSet(store)
				Expect(tag.Add(joinset.TagRow{Tag: 7})).To(Succeed())
				char := joinset.NewCharSet(store)
				Expect(char.Add(joinset.CharRow{Value: "a"}, joinset.CharRow{Value: "b"})).To(Succeed())
				sets = append(sets, tx, tag, char)

				for _, s := range sets {
					Expect(s.Store(ctx)).To(Succeed())
					Expect(s.Delete(ctx)).To(Succeed())
				}
			})
		})

		Describe("branches", func() {
			It("creates a root branch with its baseline transaction", func() {
				row, baseline := newRoot()
				Expect(store.CreateBranch(ctx, row, baseline)).To(Succeed())

				rows, err := store.ListBranches(ctx)
				Expect(err).NotTo(HaveOccurred())
				Expect(rows).To(ContainElement(row))

				records, err := store.ListTransactions(ctx)
				Expect(err).NotTo(HaveOccurred())
				Expect(records).To(ContainElement(SatisfyAll(
					HaveField("ID", baseline.ID),
					HaveField("BranchID", row.ID),
					HaveField("Type", txcache.Baseline),
					HaveField("Author", baseline.Author),
					HaveField("Time", BeTemporally("~", baseline.Time, time.Second)),
				)))
			})

			It("rejects a duplicate branch", func() {
				row, baseline := newRoot()
				Expect(store.CreateBranch(ctx, row, baseline)).To(Succeed())

				baseline.ID = randomID()
				var exists storage.AlreadyExistsError
				Expect(errors.As(store.CreateBranch(ctx, row, baseline), &exists)).To(BeTrue())
			})

			It("rejects a child of an unknown parent", func() {
				row, baseline := newRoot()
				row.ParentID = randomID()

				var notFound storage.NotFoundError
				Expect(errors.As(store.CreateBranch(ctx, row, baseline), &notFound)).To(BeTrue())
			})

			It("updates a branch row", func() {
				row, baseline := newRoot()
				Expect(store.CreateBranch(ctx, row, baseline)).To(Succeed())

				row.Name = "renamed"
				row.State = branch.Modified
				row.Archived = true
				Expect(store.UpdateBranch(ctx, row)).To(Succeed())

				rows, err := store.ListBranches(ctx)
				Expect(err).NotTo(HaveOccurred())
				Expect(rows).To(ContainElement(row))
			})

			It("reports updates of unknown branches as not found", func() {
				row, _ := newRoot()
				var notFound storage.NotFoundError
				Expect(errors.As(store.UpdateBranch(ctx, row), &notFound)).To(BeTrue())
			})

			It("stores merge associations", func() {
				dest, destTx := newRoot()
				Expect(store.CreateBranch(ctx, dest, destTx)).To(Succeed())
				source, sourceTx := newChild(dest.ID)
				Expect(store.CreateBranch(ctx, source, sourceTx)).To(Succeed())
				merge, mergeTx := newChild(dest.ID)
				merge.Type = branch.Merge
				Expect(store.CreateBranch(ctx, merge, mergeTx)).To(Succeed())

				m := branch.MergeRow{MergeID: merge.ID, SourceID: source.ID, DestinationID: dest.ID}
				Expect(store.PutMergeBranch(ctx, m)).To(Succeed())

				merges, err := store.ListMergeBranches(ctx)
				Expect(err).NotTo(HaveOccurred())
				Expect(merges).To(ContainElement(m))
			})

			It("replaces the alias set of a branch", func() {
				row, baseline := newRoot()
				Expect(store.CreateBranch(ctx, row, baseline)).To(Succeed())

				Expect(store.ReplaceBranchAliases(ctx, row.ID, []string{"a", "b"})).To(Succeed())
				Expect(store.ReplaceBranchAliases(ctx, row.ID, []string{"c"})).To(Succeed())

				aliases, err := store.ListBranchAliases(ctx)
				Expect(err).NotTo(HaveOccurred())
				Expect(aliasesOf(aliases, row.ID)).To(ConsistOf("c"))
			})
		})

		Describe("versions", func() {
			var (
				root     branch.Row
				artA     int64
				artB     int64
				attrID   int64
				relID    int64
				commitTx txcache.Record
			)

			BeforeEach(func() {
				var baseline txcache.Record
				root, baseline = newRoot()
				Expect(store.CreateBranch(ctx, root, baseline)).To(Succeed())

				artA, artB, attrID, relID = randomID(), randomID(), randomID(), randomID()
				commitTx = record(root.ID)

				cs := &changeset.ChangeSet{
					BranchID: root.ID,
					Artifacts: []changeset.ArtifactChange{
						{
							ID: artA, GUID: uuid.NewString(), Type: "Requirement", Name: "alpha",
							GammaID: randomID(), ModType: artifact.New, Versioned: true,
							Attributes: []changeset.AttributeChange{
								{ID: attrID, Type: "Priority", Value: "high", GammaID: randomID(), ModType: artifact.New},
							},
						},
						{
							ID: artB, GUID: uuid.NewString(), Type: "Folder", Name: "beta",
							GammaID: randomID(), ModType: artifact.New, Versioned: true,
						},
					},
					Relations: []changeset.RelationChange{
						{
							ID: relID, Type: "Default Hierarchical", AArtifactID: artB, BArtifactID: artA,
							Rationale: "contains", AOrder: 0, BOrder: 1, GammaID: randomID(), ModType: artifact.New,
						},
					},
				}
				Expect(store.Commit(ctx, commitTx, cs)).To(Succeed())
			})

			load := func(branchID int64, ids ...int64) ([]*artifact.Artifact, []*artifact.Relation) {
				set := joinset.NewArtifactSet(store)
				for _, id := range ids {
					Expect(set.Add(joinset.ArtifactRow{ArtifactID: id, BranchID: branchID})).To(Succeed())
				}
				Expect(set.Store(ctx)).To(Succeed())
				defer func() { Expect(set.Delete(ctx)).To(Succeed()) }()

				arts, err := store.LoadJoinedArtifacts(ctx, set.QueryID(), branchID)
				Expect(err).NotTo(HaveOccurred())
				rels, err := store.LoadJoinedRelations(ctx, set.QueryID(), branchID)
				Expect(err).NotTo(HaveOccurred())
				return arts, rels
			}

			It("records the commit transaction", func() {
				records, err := store.ListTransactions(ctx)
				Expect(err).NotTo(HaveOccurred())
				Expect(records).To(ContainElement(HaveField("ID", commitTx.ID)))
			})

			It("loads committed artifacts with their attributes", func() {
				arts, _ := load(root.ID, artA, artB)
				Expect(arts).To(HaveLen(2))

				byID := map[int64]*artifact.Artifact{}
				for _, a := range arts {
					byID[a.ID] = a
				}
				Expect(byID[artA].Name()).To(Equal("alpha"))
				Expect(byID[artA].TransactionID).To(Equal(commitTx.ID))
				Expect(byID[artA].AttributeValues("Priority")).To(ConsistOf("high"))
				Expect(byID[artA].IsDirty()).To(BeFalse())
				Expect(byID[artB].Name()).To(Equal("beta"))
			})

			It("loads relations touching any staged artifact", func() {
				_, rels := load(root.ID, artA)
				Expect(rels).To(HaveLen(1))
				Expect(rels[0].ID).To(Equal(relID))
				Expect(rels[0].AArtifactID).To(Equal(artB))
				Expect(rels[0].Rationale()).To(Equal("contains"))
				Expect(rels[0].Order(artifact.SideB)).To(Equal(1))
			})

			It("returns nothing for artifacts absent from the branch", func() {
				arts, rels := load(root.ID, randomID())
				Expect(arts).To(BeEmpty())
				Expect(rels).To(BeEmpty())
			})

			It("replaces the current version on a later commit", func() {
				next := record(root.ID)
				cs := &changeset.ChangeSet{
					BranchID: root.ID,
					Artifacts: []changeset.ArtifactChange{
						{
							ID: artA, GUID: uuid.NewString(), Type: "Requirement", Name: "alpha v2",
							GammaID: randomID(), ModType: artifact.Modified, Versioned: true,
							Attributes: []changeset.AttributeChange{
								{ID: attrID, Type: "Priority", Value: "low", GammaID: randomID(), ModType: artifact.Modified},
							},
						},
					},
				}
				Expect(store.Commit(ctx, next, cs)).To(Succeed())

				arts, _ := load(root.ID, artA)
				Expect(arts).To(HaveLen(1))
				Expect(arts[0].Name()).To(Equal("alpha v2"))
				Expect(arts[0].ModType).To(Equal(artifact.Modified))
				Expect(arts[0].TransactionID).To(Equal(next.ID))
				Expect(arts[0].AttributeValues("Priority")).To(ConsistOf("low"))
			})

			It("stores attribute-only changes without a new artifact version", func() {
				next := record(root.ID)
				cs := &changeset.ChangeSet{
					BranchID: root.ID,
					Artifacts: []changeset.ArtifactChange{
						{
							ID: artB, Type: "Folder", Name: "beta",
							Attributes: []changeset.AttributeChange{
								{ID: randomID(), Type: "Description", Value: "folder", GammaID: randomID(), ModType: artifact.New},
							},
						},
					},
				}
				Expect(store.Commit(ctx, next, cs)).To(Succeed())

				arts, _ := load(root.ID, artB)
				Expect(arts).To(HaveLen(1))
				Expect(arts[0].TransactionID).To(Equal(commitTx.ID))
				Expect(arts[0].AttributeValues("Description")).To(ConsistOf("folder"))
			})

			It("rejects a commit on an unknown branch", func() {
				cs := &changeset.ChangeSet{BranchID: randomID()}
				var notFound storage.NotFoundError
				Expect(errors.As(store.Commit(ctx, record(cs.BranchID), cs), &notFound)).To(BeTrue())
			})

			It("rejects a reused transaction id", func() {
				cs := &changeset.ChangeSet{BranchID: root.ID}
				var exists storage.AlreadyExistsError
				Expect(errors.As(store.Commit(ctx, commitTx, cs), &exists)).To(BeTrue())
			})

			It("seeds a forked branch with the parent's live versions", func() {
				gone := record(root.ID)
				Expect(store.Commit(ctx, gone, &changeset.ChangeSet{
					BranchID: root.ID,
					Artifacts: []changeset.ArtifactChange{
						{ID: artB, GUID: uuid.NewString(), Type: "Folder", Name: "beta", GammaID: randomID(), ModType: artifact.Deleted, Versioned: true},
					},
					Relations: []changeset.RelationChange{
						{ID: relID, Type: "Default Hierarchical", AArtifactID: artB, BArtifactID: artA, GammaID: randomID(), ModType: artifact.Deleted},
					},
				})).To(Succeed())

				child, baseline := newChild(root.ID)
				Expect(store.CreateBranch(ctx, child, baseline)).To(Succeed())

				arts, rels := load(child.ID, artA, artB)
				Expect(arts).To(HaveLen(1))
				Expect(arts[0].ID).To(Equal(artA))
				Expect(arts[0].BranchID).To(Equal(child.ID))
				Expect(arts[0].TransactionID).To(Equal(baseline.ID))
				Expect(arts[0].AttributeValues("Priority")).To(ConsistOf("high"))
				Expect(rels).To(BeEmpty())
			})

			It("keeps branches isolated after a fork", func() {
				child, baseline := newChild(root.ID)
				Expect(store.CreateBranch(ctx, child, baseline)).To(Succeed())

				Expect(store.Commit(ctx, record(child.ID), &changeset.ChangeSet{
					BranchID: child.ID,
					Artifacts: []changeset.ArtifactChange{
						{ID: artA, GUID: uuid.NewString(), Type: "Requirement", Name: "child edit", GammaID: randomID(), ModType: artifact.Modified, Versioned: true},
					},
				})).To(Succeed())

				parentArts, _ := load(root.ID, artA)
				Expect(parentArts[0].Name()).To(Equal("alpha"))
				childArts, _ := load(child.ID, artA)
				Expect(childArts[0].Name()).To(Equal("child edit"))
			})
		})
	})
}

func randomID() int64 {
	return rand.Int64N(1<<40) + 1
}

func record(branchID int64) txcache.Record {
	return txcache.Record{
		ID:       randomID(),
		BranchID: branchID,
		Type:     txcache.Working,
		Author:   "tester",
		Comment:  "storage test",
		Time:     time.Now().UTC().Truncate(time.Second),
	}
}

func newRoot() (branch.Row, txcache.Record) {
	id := randomID()
	baseline := record(id)
	baseline.Type = txcache.Baseline
	return branch.Row{
		ID:           id,
		GUID:         uuid.NewString(),
		Name:         "root " + uuid.NewString()[:8],
		Type:         branch.SystemRoot,
		State:        branch.Created,
		BaselineTxID: baseline.ID,
	}, baseline
}

func newChild(parentID int64) (branch.Row, txcache.Record) {
	row, baseline := newRoot()
	row.Type = branch.Working
	row.ParentID = parentID
	return row, baseline
}

func aliasesOf(rows []branch.AliasRow, branchID int64) []string {
	var out []string
	for _, r := range rows {
		if r.BranchID == branchID {
			out = append(out, r.Alias)
		}
	}
	return out
}
