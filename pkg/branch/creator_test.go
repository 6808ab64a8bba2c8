package branch_test

import (
	"context"
	"errors"
	"log/slog"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/grove/pkg/branch"
	"github.com/papercomputeco/grove/pkg/sequence"
	"github.com/papercomputeco/grove/pkg/storage/inmemory"
	"github.com/papercomputeco/grove/pkg/txcache"
)

var _ = Describe("Creator", func() {
	var (
		ctx     context.Context
		store   *inmemory.Driver
		txCache *txcache.Cache
		cache   *branch.Cache
		creator *branch.Creator
		root    *branch.Branch
	)

	BeforeEach(func() {
		ctx = context.Background()
		store = inmemory.NewDriver()

		ids := sequence.NewAllocator(store)
		Expect(ids.InitializeDefaults(ctx)).To(Succeed())

		txCache = txcache.NewCache()
		Expect(txCache.Load(ctx, store)).To(Succeed())
		cache = branch.NewCache(txCache)
		Expect(cache.Load(ctx, store)).To(Succeed())

		creator = branch.NewCreator(cache, txCache, ids, store, slog.New(slog.DiscardHandler))

		var err error
		root, err = creator.CreateRoot(ctx, "root", "alice")
		Expect(err).NotTo(HaveOccurred())
	})

	It("creates a root with a baseline transaction", func() {
		Expect(root.Type()).To(Equal(branch.SystemRoot))
		Expect(root.State()).To(Equal(branch.Created))
		Expect(root.GUID()).NotTo(BeEmpty())
		Expect(root.ParentID()).To(BeZero())

		base, ok := root.BaseTransaction()
		Expect(ok).To(BeTrue())
		Expect(base).To(HaveField("Type", txcache.Baseline))
		Expect(base).To(HaveField("Author", "alice"))
		Expect(txCache.Head(root.ID())).To(Equal(base))
	})

	It("forks a child from the parent head", func() {
		child, err := creator.CreateChild(ctx, branch.CreateParams{
			ParentID: root.ID(),
			Name:     "feature",
			Author:   "bob",
			Aliases:  []string{"Feat"},
		})
		Expect(err).NotTo(HaveOccurred())

		Expect(child.Type()).To(Equal(branch.Working))
		Expect(child.ParentID()).To(Equal(root.ID()))
		Expect(root.ChildIDs()).To(ContainElement(child.ID()))
		Expect(child.IsDirty()).To(BeFalse())

		head, _ := txCache.Head(root.ID())
		source, ok := child.SourceTransaction()
		Expect(ok).To(BeTrue())
		Expect(source).To(Equal(head))
		base, _ := child.BaseTransaction()
		Expect(base.Comment).To(Equal("new branch feature from root"))

		Expect(cache.ByAlias("feat")).To(BeIdenticalTo(child))
	})

	It("survives a reload from storage", func() {
		child, err := creator.CreateChild(ctx, branch.CreateParams{ParentID: root.ID(), Name: "feature", Aliases: []string{"f"}})
		Expect(err).NotTo(HaveOccurred())

		fresh := txcache.NewCache()
		Expect(fresh.Load(ctx, store)).To(Succeed())
		reloaded := branch.NewCache(fresh)
		Expect(reloaded.Load(ctx, store)).To(Succeed())

		got, err := reloaded.Get(child.ID())
		Expect(err).NotTo(HaveOccurred())
		Expect(got.Row()).To(Equal(child.Row()))
		Expect(got.Aliases()).To(Equal([]string{"f"}))
	})

	It("refuses to fork from an archived branch", func() {
		root.SetArchived(true)

		_, err := creator.CreateChild(ctx, branch.CreateParams{ParentID: root.ID(), Name: "late"})
		Expect(errors.Is(err, branch.ErrNotEditable)).To(BeTrue())
	})

	It("refuses to fork from an unknown branch", func() {
		_, err := creator.CreateChild(ctx, branch.CreateParams{ParentID: 404, Name: "lost"})
		Expect(err).To(MatchError(branch.BranchDoesNotExistError{ID: 404}))
	})

	It("creates a merge branch under the destination", func() {
		feature, err := creator.CreateChild(ctx, branch.CreateParams{ParentID: root.ID(), Name: "feature"})
		Expect(err).NotTo(HaveOccurred())

		merge, err := creator.CreateMerge(ctx, feature.ID(), root.ID(), "carol")
		Expect(err).NotTo(HaveOccurred())

		Expect(merge.Type()).To(Equal(branch.Merge))
		Expect(merge.Name()).To(Equal("merge feature"))
		Expect(merge.ParentID()).To(Equal(root.ID()))
		src, dst, ok := merge.MergeBranches()
		Expect(ok).To(BeTrue())
		Expect(src).To(Equal(feature.ID()))
		Expect(dst).To(Equal(root.ID()))
		Expect(merge.IsDirty()).To(BeFalse())

		rows, err := store.ListMergeBranches(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(rows).To(ConsistOf(branch.MergeRow{MergeID: merge.ID(), SourceID: feature.ID(), DestinationID: root.ID()}))
	})
})
