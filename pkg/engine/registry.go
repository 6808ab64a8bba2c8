package engine

import "github.com/papercomputeco/grove/pkg/artifact"

// Well-known type names registered by DefaultRegistry.
const (
	TypeFolder      = "Folder"
	TypeDocument    = "General Document"
	TypeRequirement = "Requirement"

	AttrDescription = "Description"
	AttrPriority    = "Priority"
	AttrStaticID    = "Static Id"
	AttrAnnotation  = "Annotation"

	RelHierarchy  = "Default Hierarchical"
	RelSupporting = "Supporting Info"
)

// DefaultRegistry returns the type definitions the CLI works with.
func DefaultRegistry() *artifact.Registry {
	r := artifact.NewRegistry()

	for _, t := range []artifact.AttributeType{
		{Name: AttrDescription, Max: 1},
		{Name: AttrPriority, Max: 1},
		{Name: AttrStaticID},
		{Name: AttrAnnotation},
	} {
		// The ranges above are fixed and valid.
		_ = r.RegisterAttributeType(t)
	}

	r.RegisterArtifactType(artifact.ArtifactType{Name: TypeFolder, Attributes: []string{AttrDescription, AttrStaticID}})
	r.RegisterArtifactType(artifact.ArtifactType{Name: TypeDocument})
	r.RegisterArtifactType(artifact.ArtifactType{
		Name:       TypeRequirement,
		Attributes: []string{AttrDescription, AttrPriority, AttrStaticID, AttrAnnotation},
	})

	r.RegisterRelationType(artifact.RelationType{
		Name:         RelHierarchy,
		SideA:        "parent",
		SideB:        "child",
		Multiplicity: artifact.OneToMany,
		Ordered:      true,
	})
	r.RegisterRelationType(artifact.RelationType{
		Name:         RelSupporting,
		SideA:        "is supported by",
		SideB:        "supporting info",
		Multiplicity: artifact.ManyToMany,
	})

	return r
}
