// Package artifact models versioned structured records, their attributes and
// the typed relations between them, plus the per-branch graph they live in.
package artifact

import (
	"errors"
	"fmt"
	"slices"

	"github.com/papercomputeco/grove/pkg/storage"
)

var (
	// ErrCardinality is returned when an attribute would occur more or fewer
	// times than its type allows.
	ErrCardinality = errors.New("attribute cardinality violated")

	// ErrInvalidAttributeType is returned when an artifact type does not
	// declare the attribute type being written.
	ErrInvalidAttributeType = errors.New("attribute type not valid for artifact type")
)

// Artifact is one version of a record on one branch. The id and guid are
// stable across branches and versions; the gamma id identifies this version.
type Artifact struct {
	ID            int64
	GUID          string
	BranchID      int64
	Type          string
	GammaID       int64
	TransactionID int64
	ModType       ModType

	name    string
	deleted bool
	attrs   []*Attribute
	dirty   bool
}

// NewArtifact creates a pending artifact.
func NewArtifact(id int64, guid string, branchID int64, typ, name string) *Artifact {
	return &Artifact{
		ID:       id,
		GUID:     guid,
		BranchID: branchID,
		Type:     typ,
		ModType:  New,
		name:     name,
		dirty:    true,
	}
}

// Restore rebuilds a committed artifact from storage. The result is clean.
func Restore(id int64, guid string, branchID int64, typ, name string, gammaID, txID int64, mod ModType, attrs []*Attribute) *Artifact {
	return &Artifact{
		ID:            id,
		GUID:          guid,
		BranchID:      branchID,
		Type:          typ,
		GammaID:       gammaID,
		TransactionID: txID,
		ModType:       mod,
		name:          name,
		deleted:       mod == Deleted,
		attrs:         attrs,
	}
}

func (a *Artifact) Name() string { return a.name }

// SetName renames the artifact.
func (a *Artifact) SetName(name string) {
	if a.name == name {
		return
	}
	a.name = name
	a.touch()
}

func (a *Artifact) IsDeleted() bool { return a.deleted }

// Delete marks the artifact and all of its attributes deleted.
func (a *Artifact) Delete() {
	if a.deleted {
		return
	}
	a.deleted = true
	a.ModType = Deleted
	a.dirty = true

	for _, attr := range a.attrs {
		attr.delete()
	}
}

// Undelete restores a deleted artifact together with its deleted attributes.
func (a *Artifact) Undelete() {
	if !a.deleted {
		return
	}
	a.deleted = false
	a.ModType = Undeleted
	a.dirty = true

	for _, attr := range a.attrs {
		if attr.deleted {
			attr.deleted = false
			attr.ModType = Undeleted
			attr.dirty = true
		}
	}
}

// Attributes returns the live attributes of the given type.
func (a *Artifact) Attributes(typ string) []*Attribute {
	var out []*Attribute
	for _, attr := range a.attrs {
		if attr.Type == typ && !attr.deleted {
			out = append(out, attr)
		}
	}
	return out
}

// AllAttributes returns every attribute, including deleted ones.
func (a *Artifact) AllAttributes() []*Attribute {
	return slices.Clone(a.attrs)
}

// AttributeValues returns the values of the live attributes of a type.
func (a *Artifact) AttributeValues(typ string) []string {
	attrs := a.Attributes(typ)
	values := make([]string, 0, len(attrs))
	for _, attr := range attrs {
		values = append(values, attr.Value())
	}
	return values
}

// SoleAttributeValue returns the single value of an attribute type.
func (a *Artifact) SoleAttributeValue(typ string) (string, error) {
	attrs := a.Attributes(typ)
	switch len(attrs) {
	case 0:
		return "", storage.NotFoundError{Kind: "attribute", Key: fmt.Sprintf("%s on artifact %d", typ, a.ID)}
	case 1:
		return attrs[0].Value(), nil
	default:
		return "", fmt.Errorf("artifact %d has %d %s attributes: %w", a.ID, len(attrs), typ, ErrCardinality)
	}
}

// AddAttribute appends a new attribute, enforcing the type's maximum
// occurrence on this artifact.
func (a *Artifact) AddAttribute(reg *Registry, typ, value string) (*Attribute, error) {
	at, err := a.attributeType(reg, typ)
	if err != nil {
		return nil, err
	}
	if at.Max > 0 && len(a.Attributes(typ)) >= at.Max {
		return nil, fmt.Errorf("adding %s to artifact %d (max %d): %w", typ, a.ID, at.Max, ErrCardinality)
	}

	attr := &Attribute{
		ArtifactID: a.ID,
		Type:       typ,
		ModType:    New,
		value:      value,
		dirty:      true,
	}
	a.attrs = append(a.attrs, attr)
	return attr, nil
}

// SetSoleAttribute sets the only value of a single-valued attribute,
// creating the attribute when absent.
func (a *Artifact) SetSoleAttribute(reg *Registry, typ, value string) error {
	attrs := a.Attributes(typ)
	switch len(attrs) {
	case 0:
		_, err := a.AddAttribute(reg, typ, value)
		return err
	case 1:
		attrs[0].SetValue(value)
		return nil
	default:
		return fmt.Errorf("setting sole %s on artifact %d: %w", typ, a.ID, ErrCardinality)
	}
}

// DeleteAttribute deletes the first live attribute of typ holding value.
func (a *Artifact) DeleteAttribute(typ, value string) error {
	for _, attr := range a.Attributes(typ) {
		if attr.Value() == value {
			attr.delete()
			return nil
		}
	}
	return storage.NotFoundError{Kind: "attribute", Key: fmt.Sprintf("%s=%q on artifact %d", typ, value, a.ID)}
}

// DeleteAttributes deletes every live attribute of typ.
func (a *Artifact) DeleteAttributes(typ string) {
	for _, attr := range a.Attributes(typ) {
		attr.delete()
	}
}

// Validate checks the minimum occurrence of every attribute type the
// artifact type declares. Deleted artifacts are not checked.
func (a *Artifact) Validate(reg *Registry) error {
	if a.deleted {
		return nil
	}

	at, err := reg.ArtifactType(a.Type)
	if err != nil {
		return err
	}

	for _, name := range at.Attributes {
		attrType, err := reg.AttributeType(name)
		if err != nil {
			return err
		}
		if n := len(a.Attributes(name)); n < attrType.Min {
			return fmt.Errorf("artifact %d has %d %s attributes, needs %d: %w", a.ID, n, name, attrType.Min, ErrCardinality)
		}
	}
	return nil
}

func (a *Artifact) attributeType(reg *Registry, typ string) (AttributeType, error) {
	at, err := reg.AttributeType(typ)
	if err != nil {
		return AttributeType{}, err
	}

	artType, err := reg.ArtifactType(a.Type)
	if err != nil {
		return AttributeType{}, err
	}
	if len(artType.Attributes) > 0 && !slices.Contains(artType.Attributes, typ) {
		return AttributeType{}, fmt.Errorf("%s on %s: %w", typ, a.Type, ErrInvalidAttributeType)
	}
	return at, nil
}

// IntroduceTo returns a copy of a carrying the same identity onto another
// branch. Deleted attributes are left behind; everything else becomes a
// pending introduced version.
func (a *Artifact) IntroduceTo(branchID int64) *Artifact {
	c := &Artifact{
		ID:       a.ID,
		GUID:     a.GUID,
		BranchID: branchID,
		Type:     a.Type,
		ModType:  Introduced,
		name:     a.name,
		dirty:    true,
	}
	for _, attr := range a.attrs {
		if attr.deleted {
			continue
		}
		ac := attr.Clone()
		ac.GammaID = 0
		ac.ModType = Introduced
		ac.dirty = true
		c.attrs = append(c.attrs, ac)
	}
	return c
}

// IntroduceFrom turns a, the destination branch's version of an artifact,
// into an introduced version of source. Attributes source does not hold live
// are deleted; attributes both hold keep their ids and take source's values.
func (a *Artifact) IntroduceFrom(source *Artifact) {
	live := make(map[int64]*Attribute)
	for _, attr := range source.attrs {
		if !attr.deleted && attr.ID != 0 {
			live[attr.ID] = attr
		}
	}

	a.Type = source.Type
	a.name = source.name
	a.deleted = false
	a.ModType = Introduced
	a.dirty = true

	shared := make(map[int64]bool)
	for _, attr := range a.attrs {
		src, ok := live[attr.ID]
		if !ok {
			attr.delete()
			continue
		}
		shared[attr.ID] = true
		attr.value = src.value
		attr.uri = src.uri
		attr.deleted = false
		attr.ModType = Introduced
		attr.dirty = true
	}

	for _, attr := range source.attrs {
		if attr.deleted || shared[attr.ID] {
			continue
		}
		ac := attr.Clone()
		ac.GammaID = 0
		ac.ModType = Introduced
		ac.dirty = true
		a.attrs = append(a.attrs, ac)
	}
}

// IsDirty reports whether the artifact row itself changed.
func (a *Artifact) IsDirty() bool { return a.dirty }

// HasChanges reports whether the artifact or any attribute changed.
func (a *Artifact) HasChanges() bool {
	if a.dirty {
		return true
	}
	for _, attr := range a.attrs {
		if attr.dirty {
			return true
		}
	}
	return false
}

// ClearDirty marks the artifact and its attributes as persisted. Attributes
// added and deleted before ever being persisted are dropped.
func (a *Artifact) ClearDirty() {
	a.dirty = false
	a.attrs = slices.DeleteFunc(a.attrs, (*Attribute).IsPhantom)
	for _, attr := range a.attrs {
		attr.dirty = false
	}
}

// IsPhantom reports whether the artifact was created and deleted without
// ever being persisted.
func (a *Artifact) IsPhantom() bool {
	return a.deleted && a.GammaID == 0
}

// Clone returns a deep copy sharing no mutable state with a.
func (a *Artifact) Clone() *Artifact {
	c := *a
	c.attrs = make([]*Attribute, 0, len(a.attrs))
	for _, attr := range a.attrs {
		c.attrs = append(c.attrs, attr.Clone())
	}
	return &c
}

func (a *Artifact) String() string {
	return fmt.Sprintf("%s %q [%d] on branch %d", a.Type, a.name, a.ID, a.BranchID)
}

// touch marks a clean artifact Modified. Pending versions keep their mod
// type.
func (a *Artifact) touch() {
	if !a.dirty {
		a.ModType = Modified
	}
	a.dirty = true
}
