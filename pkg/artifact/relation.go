package artifact

import "fmt"

// RelationKey identifies a relation on a branch independent of its version.
type RelationKey struct {
	Type string
	A    int64
	B    int64
}

func (k RelationKey) String() string {
	return fmt.Sprintf("%s(%d -> %d)", k.Type, k.A, k.B)
}

// Involves reports whether id is either endpoint.
func (k RelationKey) Involves(id int64) bool {
	return k.A == id || k.B == id
}

// Other returns the endpoint opposite id.
func (k RelationKey) Other(id int64) int64 {
	if k.A == id {
		return k.B
	}
	return k.A
}

// Relation is one version of a typed edge between two artifacts. Endpoints
// are held by id only.
type Relation struct {
	ID            int64
	Type          string
	AArtifactID   int64
	BArtifactID   int64
	GammaID       int64
	TransactionID int64
	ModType       ModType

	rationale string
	aOrder    int
	bOrder    int
	deleted   bool
	dirty     bool
}

// NewRelation creates a pending relation.
func NewRelation(typ string, a, b int64, rationale string) *Relation {
	return &Relation{
		Type:        typ,
		AArtifactID: a,
		BArtifactID: b,
		ModType:     New,
		rationale:   rationale,
		dirty:       true,
	}
}

// RestoreRelation rebuilds a committed relation from storage.
func RestoreRelation(id int64, typ string, a, b int64, rationale string, aOrder, bOrder int, gammaID, txID int64, mod ModType) *Relation {
	return &Relation{
		ID:            id,
		Type:          typ,
		AArtifactID:   a,
		BArtifactID:   b,
		GammaID:       gammaID,
		TransactionID: txID,
		ModType:       mod,
		rationale:     rationale,
		aOrder:        aOrder,
		bOrder:        bOrder,
		deleted:       mod == Deleted,
	}
}

func (r *Relation) Key() RelationKey {
	return RelationKey{Type: r.Type, A: r.AArtifactID, B: r.BArtifactID}
}

func (r *Relation) Rationale() string { return r.rationale }
func (r *Relation) IsDeleted() bool   { return r.deleted }
func (r *Relation) IsDirty() bool     { return r.dirty }

func (r *Relation) SetRationale(s string) {
	if r.rationale == s {
		return
	}
	r.rationale = s
	r.touch()
}

// Order returns the position of this relation within the list held by the
// artifact on the given side.
func (r *Relation) Order(side Side) int {
	if side == SideA {
		return r.aOrder
	}
	return r.bOrder
}

func (r *Relation) SetOrder(side Side, n int) {
	if r.Order(side) == n {
		return
	}
	if side == SideA {
		r.aOrder = n
	} else {
		r.bOrder = n
	}
	r.touch()
}

func (r *Relation) Delete() {
	if r.deleted {
		return
	}
	r.deleted = true
	r.ModType = Deleted
	r.dirty = true
}

// Undelete revives a deleted relation with a new rationale.
func (r *Relation) Undelete(rationale string) {
	if !r.deleted {
		return
	}
	r.deleted = false
	r.rationale = rationale
	r.ModType = Undeleted
	r.dirty = true
}

func (r *Relation) ClearDirty() { r.dirty = false }

func (r *Relation) Clone() *Relation {
	c := *r
	return &c
}

func (r *Relation) touch() {
	if !r.dirty {
		r.ModType = Modified
	}
	r.dirty = true
}

// IsPhantom reports whether the relation was created and deleted without
// ever being persisted.
func (r *Relation) IsPhantom() bool {
	return r.deleted && r.ID == 0
}
