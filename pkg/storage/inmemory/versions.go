package inmemory

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/papercomputeco/grove/pkg/artifact"
	"github.com/papercomputeco/grove/pkg/changeset"
	"github.com/papercomputeco/grove/pkg/storage"
	"github.com/papercomputeco/grove/pkg/txcache"
)

type artifactVersion struct {
	guid    string
	typ     string
	name    string
	gammaID int64
	txID    int64
	modType artifact.ModType
}

type attributeVersion struct {
	artifactID int64
	typ        string
	value      string
	uri        string
	gammaID    int64
	txID       int64
	modType    artifact.ModType
}

type relationVersion struct {
	id        int64
	rationale string
	aOrder    int
	bOrder    int
	gammaID   int64
	txID      int64
	modType   artifact.ModType
}

// Commit stores the transaction record and appends every version in the
// change set as the new current version of its item.
func (d *Driver) Commit(_ context.Context, rec txcache.Record, cs *changeset.ChangeSet) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.transactions[rec.ID]; ok {
		return storage.AlreadyExistsError{Kind: "transaction", Key: fmt.Sprint(rec.ID)}
	}
	if _, ok := d.branches[cs.BranchID]; !ok {
		return storage.NotFound("branch", cs.BranchID)
	}

	for _, a := range cs.Artifacts {
		key := itemKey{branchID: cs.BranchID, id: a.ID}
		if a.Versioned {
			d.artifacts[key] = append(d.artifacts[key], artifactVersion{
				guid:    a.GUID,
				typ:     a.Type,
				name:    a.Name,
				gammaID: a.GammaID,
				txID:    rec.ID,
				modType: a.ModType,
			})
		}
		for _, attr := range a.Attributes {
			d.putAttribute(cs.BranchID, attributeVersion{
				artifactID: a.ID,
				typ:        attr.Type,
				value:      attr.Value,
				uri:        attr.URI,
				gammaID:    attr.GammaID,
				txID:       rec.ID,
				modType:    attr.ModType,
			}, attr.ID)
		}
	}

	for _, r := range cs.Relations {
		d.putRelation(relKey{branchID: cs.BranchID, typ: r.Type, a: r.AArtifactID, b: r.BArtifactID}, relationVersion{
			id:        r.ID,
			rationale: r.Rationale,
			aOrder:    r.AOrder,
			bOrder:    r.BOrder,
			gammaID:   r.GammaID,
			txID:      rec.ID,
			modType:   r.ModType,
		})
	}

	d.transactions[rec.ID] = rec
	return nil
}

func (d *Driver) putAttribute(branchID int64, v attributeVersion, attrID int64) {
	key := itemKey{branchID: branchID, id: attrID}
	if _, ok := d.attributes[key]; !ok {
		owner := itemKey{branchID: branchID, id: v.artifactID}
		d.artifactAttrs[owner] = append(d.artifactAttrs[owner], attrID)
	}
	d.attributes[key] = append(d.attributes[key], v)
}

func (d *Driver) putRelation(key relKey, v relationVersion) {
	d.relations[key] = append(d.relations[key], v)
	for _, id := range []int64{key.a, key.b} {
		owner := itemKey{branchID: key.branchID, id: id}
		if d.artifactRels[owner] == nil {
			d.artifactRels[owner] = make(map[relKey]struct{})
		}
		d.artifactRels[owner][key] = struct{}{}
	}
}

// LoadJoinedArtifacts returns the current versions of the artifacts staged
// in an artifact join, with their current attributes, in join order.
func (d *Driver) LoadJoinedArtifacts(_ context.Context, queryID, branchID int64) ([]*artifact.Artifact, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	ids, err := d.joinedArtifacts(queryID, branchID)
	if err != nil {
		return nil, err
	}

	var out []*artifact.Artifact
	for _, id := range ids {
		key := itemKey{branchID: branchID, id: id}
		versions := d.artifacts[key]
		if len(versions) == 0 {
			continue
		}
		cur := versions[len(versions)-1]

		var attrs []*artifact.Attribute
		for _, attrID := range d.artifactAttrs[key] {
			av := d.attributes[itemKey{branchID: branchID, id: attrID}]
			a := av[len(av)-1]
			attrs = append(attrs, artifact.RestoreAttribute(attrID, id, a.typ, a.value, a.uri, a.gammaID, a.modType))
		}

		out = append(out, artifact.Restore(id, cur.guid, branchID, cur.typ, cur.name, cur.gammaID, cur.txID, cur.modType, attrs))
	}
	return out, nil
}

// LoadJoinedRelations returns the current versions of every relation with an
// endpoint staged in an artifact join.
func (d *Driver) LoadJoinedRelations(_ context.Context, queryID, branchID int64) ([]*artifact.Relation, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	ids, err := d.joinedArtifacts(queryID, branchID)
	if err != nil {
		return nil, err
	}

	seen := make(map[relKey]struct{})
	var out []*artifact.Relation
	for _, id := range ids {
		for key := range d.artifactRels[itemKey{branchID: branchID, id: id}] {
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}

			versions := d.relations[key]
			v := versions[len(versions)-1]
			out = append(out, artifact.RestoreRelation(v.id, key.typ, key.a, key.b, v.rationale, v.aOrder, v.bOrder, v.gammaID, v.txID, v.modType))
		}
	}
	slices.SortFunc(out, func(a, b *artifact.Relation) int {
		return cmp.Or(
			strings.Compare(a.Type, b.Type),
			cmp.Compare(a.AArtifactID, b.AArtifactID),
			cmp.Compare(a.BArtifactID, b.BArtifactID),
		)
	})
	return out, nil
}

// copyCurrent seeds a new branch with the parent's live current versions.
// The caller holds d.mu for writing.
func (d *Driver) copyCurrent(parentID, childID, txID int64) {
	for key, versions := range d.artifacts {
		cur := versions[len(versions)-1]
		if key.branchID != parentID || cur.modType == artifact.Deleted {
			continue
		}
		cur.txID = txID
		d.artifacts[itemKey{branchID: childID, id: key.id}] = []artifactVersion{cur}

		for _, attrID := range d.artifactAttrs[key] {
			av := d.attributes[itemKey{branchID: parentID, id: attrID}]
			a := av[len(av)-1]
			if a.modType == artifact.Deleted {
				continue
			}
			a.txID = txID
			d.putAttribute(childID, a, attrID)
		}
	}

	for key, versions := range d.relations {
		cur := versions[len(versions)-1]
		if key.branchID != parentID || cur.modType == artifact.Deleted {
			continue
		}
		cur.txID = txID
		child := key
		child.branchID = childID
		d.putRelation(child, cur)
	}
}
