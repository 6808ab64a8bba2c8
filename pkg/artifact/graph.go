package artifact

import (
	"cmp"
	"slices"
	"strings"
	"sync"
)

// Graph holds the committed artifacts and relations of one branch. It hands
// out copies, so callers never observe or cause in-place changes.
type Graph struct {
	BranchID int64

	mu        sync.RWMutex
	artifacts map[int64]*Artifact
	relations map[RelationKey]*Relation
	adjacency map[int64]map[RelationKey]struct{}
}

// NewGraph creates an empty graph for a branch.
func NewGraph(branchID int64) *Graph {
	return &Graph{
		BranchID:  branchID,
		artifacts: make(map[int64]*Artifact),
		relations: make(map[RelationKey]*Relation),
		adjacency: make(map[int64]map[RelationKey]struct{}),
	}
}

// Get returns a copy of the committed artifact with id.
func (g *Graph) Get(id int64) (*Artifact, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	a, ok := g.artifacts[id]
	if !ok {
		return nil, false
	}
	return a.Clone(), true
}

func (g *Graph) Has(id int64) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, ok := g.artifacts[id]
	return ok
}

// Missing returns the ids not present in the graph, preserving order.
func (g *Graph) Missing(ids ...int64) []int64 {
	g.mu.RLock()
	defer g.mu.RUnlock()
	var out []int64
	for _, id := range ids {
		if _, ok := g.artifacts[id]; !ok {
			out = append(out, id)
		}
	}
	return out
}

// Relation returns a copy of the relation with key.
func (g *Graph) Relation(key RelationKey) (*Relation, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	r, ok := g.relations[key]
	if !ok {
		return nil, false
	}
	return r.Clone(), true
}

// Relations returns copies of every relation touching the artifact, deleted
// ones included, ordered by key.
func (g *Graph) Relations(artifactID int64) []*Relation {
	g.mu.RLock()
	defer g.mu.RUnlock()
	keys := g.adjacency[artifactID]
	out := make([]*Relation, 0, len(keys))
	for key := range keys {
		out = append(out, g.relations[key].Clone())
	}
	slices.SortFunc(out, func(a, b *Relation) int {
		return compareKeys(a.Key(), b.Key())
	})
	return out
}

// Put stores copies of committed artifacts and relations.
func (g *Graph) Put(artifacts []*Artifact, relations []*Relation) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, a := range artifacts {
		c := a.Clone()
		c.ClearDirty()
		g.artifacts[a.ID] = c
	}
	for _, r := range relations {
		c := r.Clone()
		c.ClearDirty()
		key := c.Key()
		g.relations[key] = c
		g.link(key.A, key)
		g.link(key.B, key)
	}
}

// Fill adds loaded artifacts and relations the graph does not hold yet.
// Entries already present are kept, since a commit may have replaced them
// after the load read storage.
func (g *Graph) Fill(artifacts []*Artifact, relations []*Relation) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, a := range artifacts {
		if _, ok := g.artifacts[a.ID]; ok {
			continue
		}
		c := a.Clone()
		c.ClearDirty()
		g.artifacts[a.ID] = c
	}
	for _, r := range relations {
		key := r.Key()
		if _, ok := g.relations[key]; ok {
			continue
		}
		c := r.Clone()
		c.ClearDirty()
		g.relations[key] = c
		g.link(key.A, key)
		g.link(key.B, key)
	}
}

// Len returns the number of artifacts held.
func (g *Graph) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.artifacts)
}

func (g *Graph) link(id int64, key RelationKey) {
	set, ok := g.adjacency[id]
	if !ok {
		set = make(map[RelationKey]struct{})
		g.adjacency[id] = set
	}
	set[key] = struct{}{}
}

func compareKeys(a, b RelationKey) int {
	return cmp.Or(
		strings.Compare(a.Type, b.Type),
		cmp.Compare(a.A, b.A),
		cmp.Compare(a.B, b.B),
	)
}

// Arena owns one Graph per branch.
type Arena struct {
	mu     sync.Mutex
	graphs map[int64]*Graph
}

func NewArena() *Arena {
	return &Arena{graphs: make(map[int64]*Graph)}
}

// Graph returns the branch's graph, creating it on first use.
func (a *Arena) Graph(branchID int64) *Graph {
	a.mu.Lock()
	defer a.mu.Unlock()
	g, ok := a.graphs[branchID]
	if !ok {
		g = NewGraph(branchID)
		a.graphs[branchID] = g
	}
	return g
}

// Drop discards a branch's graph.
func (a *Arena) Drop(branchID int64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.graphs, branchID)
}
