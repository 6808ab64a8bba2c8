package artifact_test

import (
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/grove/pkg/artifact"
	"github.com/papercomputeco/grove/pkg/storage"
)

func newRegistry() *artifact.Registry {
	reg := artifact.NewRegistry()
	reg.RegisterArtifactType(artifact.ArtifactType{Name: "Requirement", Attributes: []string{"Title", "Tag"}})
	reg.RegisterArtifactType(artifact.ArtifactType{Name: "Note"})
	Expect(reg.RegisterAttributeType(artifact.AttributeType{Name: "Title", Min: 1, Max: 1})).To(Succeed())
	Expect(reg.RegisterAttributeType(artifact.AttributeType{Name: "Tag"})).To(Succeed())
	Expect(reg.RegisterAttributeType(artifact.AttributeType{Name: "Owner", Max: 1})).To(Succeed())
	return reg
}

// committed returns a clean, previously stored requirement with a title.
func committed() *artifact.Artifact {
	return artifact.Restore(7, "guid-7", 1, "Requirement", "login", 70, 700, artifact.New, []*artifact.Attribute{
		artifact.RestoreAttribute(71, 7, "Title", "Login works", "", 710, artifact.New),
	})
}

var _ = Describe("Artifact", func() {
	var reg *artifact.Registry

	BeforeEach(func() {
		reg = newRegistry()
	})

	It("starts new artifacts dirty with the New mod type", func() {
		a := artifact.NewArtifact(1, "g", 2, "Note", "draft")
		Expect(a.IsDirty()).To(BeTrue())
		Expect(a.ModType).To(Equal(artifact.New))

		a.SetName("draft 2")
		Expect(a.ModType).To(Equal(artifact.New))
		Expect(a.Name()).To(Equal("draft 2"))
	})

	It("marks a clean artifact modified on its first edit", func() {
		a := committed()
		Expect(a.HasChanges()).To(BeFalse())

		a.SetName("login")
		Expect(a.HasChanges()).To(BeFalse())

		a.SetName("sign in")
		Expect(a.IsDirty()).To(BeTrue())
		Expect(a.ModType).To(Equal(artifact.Modified))
	})

	It("changes an attribute without dirtying the artifact row", func() {
		a := committed()
		Expect(a.SetSoleAttribute(reg, "Title", "Sign in works")).To(Succeed())

		Expect(a.IsDirty()).To(BeFalse())
		Expect(a.HasChanges()).To(BeTrue())
		Expect(a.SoleAttributeValue("Title")).To(Equal("Sign in works"))
		Expect(a.Attributes("Title")[0].ModType).To(Equal(artifact.Modified))
	})

	It("enforces the maximum occurrence of an attribute type", func() {
		a := committed()
		_, err := a.AddAttribute(reg, "Title", "second")
		Expect(errors.Is(err, artifact.ErrCardinality)).To(BeTrue())

		for range 3 {
			_, err := a.AddAttribute(reg, "Tag", "x")
			Expect(err).NotTo(HaveOccurred())
		}
		Expect(a.AttributeValues("Tag")).To(HaveLen(3))
	})

	It("rejects attribute types the artifact type does not declare", func() {
		a := committed()
		_, err := a.AddAttribute(reg, "Owner", "alice")
		Expect(errors.Is(err, artifact.ErrInvalidAttributeType)).To(BeTrue())

		_, err = a.AddAttribute(reg, "Unknown", "x")
		var notFound storage.NotFoundError
		Expect(errors.As(err, &notFound)).To(BeTrue())

		note := artifact.NewArtifact(2, "g2", 1, "Note", "n")
		_, err = note.AddAttribute(reg, "Owner", "alice")
		Expect(err).NotTo(HaveOccurred())
	})

	It("validates the minimum occurrence unless deleted", func() {
		a := artifact.NewArtifact(3, "g3", 1, "Requirement", "untitled")
		Expect(errors.Is(a.Validate(reg), artifact.ErrCardinality)).To(BeTrue())

		a.Delete()
		Expect(a.Validate(reg)).To(Succeed())
		Expect(committed().Validate(reg)).To(Succeed())
	})

	It("reports a missing sole attribute as not found", func() {
		a := artifact.NewArtifact(3, "g3", 1, "Requirement", "untitled")
		_, err := a.SoleAttributeValue("Title")
		var notFound storage.NotFoundError
		Expect(errors.As(err, &notFound)).To(BeTrue())
	})

	It("deletes and undeletes together with attributes", func() {
		a := committed()
		a.Delete()
		Expect(a.IsDeleted()).To(BeTrue())
		Expect(a.ModType).To(Equal(artifact.Deleted))
		Expect(a.Attributes("Title")).To(BeEmpty())
		Expect(a.AllAttributes()[0].IsDeleted()).To(BeTrue())

		a.Undelete()
		Expect(a.ModType).To(Equal(artifact.Undeleted))
		Expect(a.SoleAttributeValue("Title")).To(Equal("Login works"))
	})

	It("deletes attributes by value", func() {
		a := committed()
		Expect(a.DeleteAttribute("Title", "nope")).NotTo(Succeed())
		Expect(a.DeleteAttribute("Title", "Login works")).To(Succeed())
		Expect(a.Attributes("Title")).To(BeEmpty())
	})

	It("drops phantom attributes when cleared", func() {
		a := committed()
		_, err := a.AddAttribute(reg, "Tag", "temp")
		Expect(err).NotTo(HaveOccurred())
		a.DeleteAttributes("Tag")

		Expect(a.AllAttributes()).To(HaveLen(2))
		Expect(a.AllAttributes()[1].IsPhantom()).To(BeTrue())

		a.ClearDirty()
		Expect(a.AllAttributes()).To(HaveLen(1))
		Expect(a.HasChanges()).To(BeFalse())
	})

	It("treats an artifact deleted before its first commit as a phantom", func() {
		a := artifact.NewArtifact(4, "g4", 1, "Note", "scratch")
		a.Delete()
		Expect(a.IsPhantom()).To(BeTrue())

		c := committed()
		c.Delete()
		Expect(c.IsPhantom()).To(BeFalse())
	})

	It("introduces a copy onto another branch without deleted attributes", func() {
		a := committed()
		_, err := a.AddAttribute(reg, "Tag", "gone")
		Expect(err).NotTo(HaveOccurred())
		Expect(a.DeleteAttribute("Tag", "gone")).To(Succeed())

		c := a.IntroduceTo(9)
		Expect(c.ID).To(Equal(a.ID))
		Expect(c.GUID).To(Equal(a.GUID))
		Expect(c.BranchID).To(Equal(int64(9)))
		Expect(c.GammaID).To(BeZero())
		Expect(c.ModType).To(Equal(artifact.Introduced))
		Expect(c.AllAttributes()).To(HaveLen(1))
		Expect(c.AllAttributes()[0]).To(SatisfyAll(
			HaveField("ID", int64(71)),
			HaveField("GammaID", int64(0)),
			HaveField("ModType", artifact.Introduced),
		))
	})

	It("introduces over an existing version, retiring attributes the source lacks", func() {
		source := artifact.Restore(7, "guid-7", 1, "Requirement", "login v2", 80, 800, artifact.Modified, []*artifact.Attribute{
			artifact.RestoreAttribute(71, 7, "Title", "Login works twice", "", 810, artifact.Modified),
			artifact.RestoreAttribute(72, 7, "Tag", "dropped", "", 811, artifact.Deleted),
			artifact.RestoreAttribute(73, 7, "Tag", "fresh", "", 812, artifact.New),
		})
		dest := artifact.Restore(7, "guid-7", 9, "Requirement", "login", 90, 900, artifact.New, []*artifact.Attribute{
			artifact.RestoreAttribute(71, 7, "Title", "Login works", "", 910, artifact.New),
			artifact.RestoreAttribute(72, 7, "Tag", "dropped", "", 911, artifact.New),
			artifact.RestoreAttribute(74, 7, "Tag", "branch only", "", 912, artifact.New),
		})

		dest.IntroduceFrom(source)
		Expect(dest.BranchID).To(Equal(int64(9)))
		Expect(dest.Name()).To(Equal("login v2"))
		Expect(dest.ModType).To(Equal(artifact.Introduced))
		Expect(dest.IsDirty()).To(BeTrue())
		Expect(dest.AttributeValues("Title")).To(Equal([]string{"Login works twice"}))
		Expect(dest.AttributeValues("Tag")).To(Equal([]string{"fresh"}))

		byID := make(map[int64]*artifact.Attribute)
		for _, attr := range dest.AllAttributes() {
			byID[attr.ID] = attr
		}
		Expect(byID).To(HaveLen(4))
		Expect(byID[71].ModType).To(Equal(artifact.Introduced))
		Expect(byID[72].IsDeleted()).To(BeTrue())
		Expect(byID[74].IsDeleted()).To(BeTrue())
		Expect(byID[73]).To(SatisfyAll(
			HaveField("GammaID", int64(0)),
			HaveField("ModType", artifact.Introduced),
		))
		Expect(byID[72].IsDirty()).To(BeTrue())
	})

	It("clones without sharing attributes", func() {
		a := committed()
		c := a.Clone()
		Expect(c.SetSoleAttribute(reg, "Title", "changed")).To(Succeed())

		Expect(a.SoleAttributeValue("Title")).To(Equal("Login works"))
		Expect(a.HasChanges()).To(BeFalse())
	})
})

var _ = Describe("Relation", func() {
	It("tracks order per side and marks a clean relation modified", func() {
		r := artifact.RestoreRelation(5, "Hierarchy", 1, 2, "", 0, 0, 50, 500, artifact.New)
		r.SetOrder(artifact.SideB, 3)

		Expect(r.Order(artifact.SideB)).To(Equal(3))
		Expect(r.Order(artifact.SideA)).To(BeZero())
		Expect(r.ModType).To(Equal(artifact.Modified))
		Expect(r.IsDirty()).To(BeTrue())
	})

	It("revives a deleted relation with a new rationale", func() {
		r := artifact.RestoreRelation(5, "Supports", 1, 2, "old", 0, 0, 50, 500, artifact.Deleted)
		Expect(r.IsDeleted()).To(BeTrue())

		r.Undelete("new")
		Expect(r.IsDeleted()).To(BeFalse())
		Expect(r.Rationale()).To(Equal("new"))
		Expect(r.ModType).To(Equal(artifact.Undeleted))
	})

	It("names its endpoints through the key", func() {
		key := artifact.NewRelation("Supports", 1, 2, "").Key()
		Expect(key.Involves(2)).To(BeTrue())
		Expect(key.Involves(3)).To(BeFalse())
		Expect(key.Other(1)).To(Equal(int64(2)))
		Expect(key.Other(2)).To(Equal(int64(1)))
		Expect(key.String()).To(Equal("Supports(1 -> 2)"))
	})
})

var _ = Describe("Multiplicity", func() {
	DescribeTable("side limits",
		func(m artifact.Multiplicity, maxA, maxB int) {
			Expect(m.MaxA()).To(Equal(maxA))
			Expect(m.MaxB()).To(Equal(maxB))
		},
		Entry("many to many", artifact.ManyToMany, 0, 0),
		Entry("one to one", artifact.OneToOne, 1, 1),
		Entry("one to many", artifact.OneToMany, 1, 0),
		Entry("many to one", artifact.ManyToOne, 0, 1),
	)
})

var _ = Describe("Registry", func() {
	It("rejects an invalid occurrence range", func() {
		reg := artifact.NewRegistry()
		Expect(reg.RegisterAttributeType(artifact.AttributeType{Name: "x", Min: 2, Max: 1})).NotTo(Succeed())
		Expect(reg.RegisterAttributeType(artifact.AttributeType{Name: "x", Min: -1})).NotTo(Succeed())
		Expect(reg.AttributeTypes()).To(BeEmpty())
	})

	It("round trips mod type names", func() {
		for m := artifact.New; m <= artifact.Undeleted; m++ {
			Expect(artifact.ParseModType(m.String())).To(Equal(m))
		}
		_, err := artifact.ParseModType("renamed")
		Expect(err).To(HaveOccurred())
	})
})
