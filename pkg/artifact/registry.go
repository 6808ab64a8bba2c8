package artifact

import (
	"fmt"
	"sync"

	"github.com/papercomputeco/grove/pkg/storage"
)

// AttributeType defines how often an attribute may occur on one artifact.
// Max zero means unbounded.
type AttributeType struct {
	Name string
	Min  int
	Max  int
}

// ArtifactType names a kind of artifact and the attribute types it may
// carry. An empty Attributes list accepts any registered attribute type.
type ArtifactType struct {
	Name       string
	Attributes []string
}

// Multiplicity bounds how many artifacts each side of a relation may hold.
type Multiplicity int

const (
	ManyToMany Multiplicity = iota
	OneToOne
	OneToMany
	ManyToOne
)

// MaxA is the most A-side artifacts a single B-side artifact may relate to.
// Zero means unbounded.
func (m Multiplicity) MaxA() int {
	if m == OneToOne || m == OneToMany {
		return 1
	}
	return 0
}

// MaxB is the most B-side artifacts a single A-side artifact may relate to.
// Zero means unbounded.
func (m Multiplicity) MaxB() int {
	if m == OneToOne || m == ManyToOne {
		return 1
	}
	return 0
}

// RelationType defines a typed, directed edge. The side names are fixed by the
// type, never by the order in which artifacts are related.
type RelationType struct {
	Name         string
	SideA        string
	SideB        string
	Multiplicity Multiplicity
	Ordered      bool
}

// Side selects one end of a relation.
type Side int

const (
	SideA Side = iota + 1
	SideB
)

// Registry holds the type definitions artifacts are validated against.
type Registry struct {
	mu        sync.RWMutex
	artifacts map[string]ArtifactType
	attrs     map[string]AttributeType
	relations map[string]RelationType
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		artifacts: make(map[string]ArtifactType),
		attrs:     make(map[string]AttributeType),
		relations: make(map[string]RelationType),
	}
}

func (r *Registry) RegisterArtifactType(t ArtifactType) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.artifacts[t.Name] = t
}

func (r *Registry) RegisterAttributeType(t AttributeType) error {
	if t.Min < 0 || t.Max < 0 || (t.Max > 0 && t.Min > t.Max) {
		return fmt.Errorf("attribute type %s: invalid occurrence range [%d, %d]", t.Name, t.Min, t.Max)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.attrs[t.Name] = t
	return nil
}

func (r *Registry) RegisterRelationType(t RelationType) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.relations[t.Name] = t
}

func (r *Registry) ArtifactType(name string) (ArtifactType, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.artifacts[name]
	if !ok {
		return ArtifactType{}, storage.NotFoundError{Kind: "artifact type", Key: name}
	}
	return t, nil
}

func (r *Registry) AttributeType(name string) (AttributeType, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.attrs[name]
	if !ok {
		return AttributeType{}, storage.NotFoundError{Kind: "attribute type", Key: name}
	}
	return t, nil
}

func (r *Registry) RelationType(name string) (RelationType, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.relations[name]
	if !ok {
		return RelationType{}, storage.NotFoundError{Kind: "relation type", Key: name}
	}
	return t, nil
}

// AttributeTypes returns every registered attribute type.
func (r *Registry) AttributeTypes() []AttributeType {
	r.mu.RLock()
	defer r.mu.RUnlock()
	types := make([]AttributeType, 0, len(r.attrs))
	for _, t := range r.attrs {
		types = append(types, t)
	}
	return types
}
