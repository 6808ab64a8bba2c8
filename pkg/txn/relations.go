package txn

import (
	"context"
	"fmt"

	"github.com/papercomputeco/grove/pkg/artifact"
	"github.com/papercomputeco/grove/pkg/storage"
)

// Relate links a (side A) to b (side B) with a relation of typ.
//
// Both endpoints are acquired for write before anything changes, so after a
// successful call both artifacts are tracked by the working set. Relating a
// pair whose relation was deleted earlier revives it.
func (c *Coordinator) Relate(ctx context.Context, ws *WorkingSet, typ string, a, b int64, rationale string) (*artifact.Relation, error) {
	if err := ws.checkMutable(); err != nil {
		return nil, err
	}
	rt, err := c.registry.RelationType(typ)
	if err != nil {
		return nil, err
	}
	if a == b {
		return nil, fmt.Errorf("relating artifact %d to itself", a)
	}
	if err := c.acquireEndpoints(ctx, ws, a, b); err != nil {
		return nil, err
	}

	key := artifact.RelationKey{Type: typ, A: a, B: b}
	existing, tracked := ws.relations[key]
	if tracked && !existing.IsDeleted() {
		return nil, storage.AlreadyExistsError{Kind: "relation", Key: key.String()}
	}

	if err := checkMultiplicity(ws, rt, a, b); err != nil {
		return nil, err
	}

	aOrder := len(ws.liveRelations(typ, a, artifact.SideA))
	bOrder := len(ws.liveRelations(typ, b, artifact.SideB))

	r := existing
	if tracked {
		r.Undelete(rationale)
	} else {
		r = ws.trackRelation(artifact.NewRelation(typ, a, b, rationale))
	}
	if rt.Ordered {
		r.SetOrder(artifact.SideA, aOrder)
		r.SetOrder(artifact.SideB, bOrder)
	}
	return r, nil
}

func checkMultiplicity(ws *WorkingSet, rt artifact.RelationType, a, b int64) error {
	if n := rt.Multiplicity.MaxB(); n > 0 && len(ws.liveRelations(rt.Name, a, artifact.SideA)) >= n {
		return fmt.Errorf("artifact %d already has a %s %s: %w", a, rt.Name, rt.SideB, artifact.ErrCardinality)
	}
	if n := rt.Multiplicity.MaxA(); n > 0 && len(ws.liveRelations(rt.Name, b, artifact.SideB)) >= n {
		return fmt.Errorf("artifact %d already has a %s %s: %w", b, rt.Name, rt.SideA, artifact.ErrCardinality)
	}
	return nil
}

// Unrelate deletes the relation of typ between a and b. Both endpoints are
// acquired for write.
func (c *Coordinator) Unrelate(ctx context.Context, ws *WorkingSet, typ string, a, b int64) error {
	r, err := c.liveRelation(ctx, ws, typ, a, b)
	if err != nil {
		return err
	}
	r.Delete()
	return nil
}

// UnrelateFromAll deletes every relation of typ where id sits on side, and
// returns how many were deleted. Every other endpoint is acquired for write.
func (c *Coordinator) UnrelateFromAll(ctx context.Context, ws *WorkingSet, typ string, side artifact.Side, id int64) (int, error) {
	if err := ws.checkMutable(); err != nil {
		return 0, err
	}
	if _, err := c.registry.RelationType(typ); err != nil {
		return 0, err
	}
	if _, err := c.acquire(ctx, ws, id, false); err != nil {
		return 0, err
	}

	related := ws.liveRelations(typ, id, side)
	for _, r := range related {
		if _, err := c.acquire(ctx, ws, r.Key().Other(id), true); err != nil {
			return 0, err
		}
	}
	for _, r := range related {
		r.Delete()
	}
	return len(related), nil
}

// SetRationale replaces the rationale of the relation of typ between a and b.
func (c *Coordinator) SetRationale(ctx context.Context, ws *WorkingSet, typ string, a, b int64, rationale string) error {
	r, err := c.liveRelation(ctx, ws, typ, a, b)
	if err != nil {
		return err
	}
	r.SetRationale(rationale)
	return nil
}

// Reorder sets the order of id's relations of typ as seen from side. others
// must list every artifact currently related to id through typ exactly once.
func (c *Coordinator) Reorder(ctx context.Context, ws *WorkingSet, typ string, side artifact.Side, id int64, others []int64) error {
	if err := ws.checkMutable(); err != nil {
		return err
	}
	rt, err := c.registry.RelationType(typ)
	if err != nil {
		return err
	}
	if !rt.Ordered {
		return fmt.Errorf("reordering %s: %w", typ, ErrUnordered)
	}
	if _, err := c.acquire(ctx, ws, id, false); err != nil {
		return err
	}

	byOther := make(map[int64]*artifact.Relation)
	for _, r := range ws.liveRelations(typ, id, side) {
		byOther[r.Key().Other(id)] = r
	}
	if len(others) != len(byOther) {
		return fmt.Errorf("reordering %s of artifact %d: got %d artifacts, %d are related", typ, id, len(others), len(byOther))
	}
	for _, other := range others {
		if _, ok := byOther[other]; !ok {
			return storage.NotFoundError{Kind: "relation", Key: fmt.Sprintf("%s between %d and %d", typ, id, other)}
		}
	}
	for _, other := range others {
		if _, err := c.acquire(ctx, ws, other, true); err != nil {
			return err
		}
	}

	for i, other := range others {
		byOther[other].SetOrder(side, i)
	}
	return nil
}

func (c *Coordinator) liveRelation(ctx context.Context, ws *WorkingSet, typ string, a, b int64) (*artifact.Relation, error) {
	if err := ws.checkMutable(); err != nil {
		return nil, err
	}
	if _, err := c.registry.RelationType(typ); err != nil {
		return nil, err
	}
	if err := c.acquireEndpoints(ctx, ws, a, b); err != nil {
		return nil, err
	}

	key := artifact.RelationKey{Type: typ, A: a, B: b}
	r, ok := ws.relations[key]
	if !ok || r.IsDeleted() {
		return nil, storage.NotFoundError{Kind: "relation", Key: key.String()}
	}
	return r, nil
}

func (c *Coordinator) acquireEndpoints(ctx context.Context, ws *WorkingSet, a, b int64) error {
	if _, err := c.acquire(ctx, ws, a, false); err != nil {
		return err
	}
	if _, err := c.acquire(ctx, ws, b, false); err != nil {
		return err
	}
	return nil
}
