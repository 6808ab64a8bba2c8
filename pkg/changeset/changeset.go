// Package changeset describes the versions one transaction writes to a branch.
package changeset

import "github.com/papercomputeco/grove/pkg/artifact"

// Kind is the coarse classification of a change.
type Kind int

const (
	Added Kind = iota + 1
	Changed
	Deleted
)

func (k Kind) String() string {
	switch k {
	case Added:
		return "added"
	case Changed:
		return "changed"
	case Deleted:
		return "deleted"
	default:
		return "unknown"
	}
}

// KindOf classifies a mod type.
func KindOf(m artifact.ModType) Kind {
	switch m {
	case artifact.New, artifact.Introduced:
		return Added
	case artifact.Deleted:
		return Deleted
	default:
		return Changed
	}
}

// AttributeChange is a new version of one attribute.
type AttributeChange struct {
	ID      int64
	Type    string
	Value   string
	URI     string
	GammaID int64
	ModType artifact.ModType
}

// ArtifactChange groups an artifact's new version with its attribute
// versions. Versioned is false when only attributes changed and the artifact
// row itself keeps its current version.
type ArtifactChange struct {
	ID         int64
	GUID       string
	Type       string
	Name       string
	GammaID    int64
	ModType    artifact.ModType
	Versioned  bool
	Attributes []AttributeChange
}

func (c ArtifactChange) Kind() Kind { return KindOf(c.ModType) }

// RelationChange is a new version of one relation.
type RelationChange struct {
	ID          int64
	Type        string
	AArtifactID int64
	BArtifactID int64
	Rationale   string
	AOrder      int
	BOrder      int
	GammaID     int64
	ModType     artifact.ModType
}

func (c RelationChange) Kind() Kind { return KindOf(c.ModType) }

// ChangeSet is every version a single commit writes to one branch. It holds
// values only and is never modified after it is built.
type ChangeSet struct {
	BranchID  int64
	Artifacts []ArtifactChange
	Relations []RelationChange
}

func (cs *ChangeSet) IsEmpty() bool {
	return len(cs.Artifacts) == 0 && len(cs.Relations) == 0
}

// ArtifactIDs lists the changed artifacts in change order.
func (cs *ChangeSet) ArtifactIDs() []int64 {
	ids := make([]int64, 0, len(cs.Artifacts))
	for _, a := range cs.Artifacts {
		ids = append(ids, a.ID)
	}
	return ids
}

// Counts tallies changes by kind across artifacts and relations.
func (cs *ChangeSet) Counts() map[Kind]int {
	counts := make(map[Kind]int)
	for _, a := range cs.Artifacts {
		counts[a.Kind()]++
	}
	for _, r := range cs.Relations {
		counts[r.Kind()]++
	}
	return counts
}

// FromArtifact snapshots the dirty parts of a.
func FromArtifact(a *artifact.Artifact) ArtifactChange {
	c := ArtifactChange{
		ID:        a.ID,
		GUID:      a.GUID,
		Type:      a.Type,
		Name:      a.Name(),
		GammaID:   a.GammaID,
		ModType:   a.ModType,
		Versioned: a.IsDirty(),
	}
	for _, attr := range a.AllAttributes() {
		if !attr.IsDirty() || attr.IsPhantom() {
			continue
		}
		c.Attributes = append(c.Attributes, AttributeChange{
			ID:      attr.ID,
			Type:    attr.Type,
			Value:   attr.Value(),
			URI:     attr.URI(),
			GammaID: attr.GammaID,
			ModType: attr.ModType,
		})
	}
	return c
}

// FromRelation snapshots r.
func FromRelation(r *artifact.Relation) RelationChange {
	return RelationChange{
		ID:          r.ID,
		Type:        r.Type,
		AArtifactID: r.AArtifactID,
		BArtifactID: r.BArtifactID,
		Rationale:   r.Rationale(),
		AOrder:      r.Order(artifact.SideA),
		BOrder:      r.Order(artifact.SideB),
		GammaID:     r.GammaID,
		ModType:     r.ModType,
	}
}
