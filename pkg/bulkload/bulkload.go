// Package bulkload reads many artifacts of a branch in one round trip by
// staging their ids in a join set.
package bulkload

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/papercomputeco/grove/pkg/artifact"
	"github.com/papercomputeco/grove/pkg/joinset"
)

// Store answers queries joined against a staged artifact set.
type Store interface {
	joinset.Store

	// LoadJoinedArtifacts returns the current version of every artifact, with
	// its current attributes, named by the join's rows.
	LoadJoinedArtifacts(ctx context.Context, queryID, branchID int64) ([]*artifact.Artifact, error)

	// LoadJoinedRelations returns the current version of every relation with
	// at least one endpoint named by the join's rows.
	LoadJoinedRelations(ctx context.Context, queryID, branchID int64) ([]*artifact.Relation, error)
}

// Result is what one Load returned.
type Result struct {
	Artifacts []*artifact.Artifact
	Relations []*artifact.Relation
}

// Loader performs join-staged bulk loads.
type Loader struct {
	store  Store
	logger *slog.Logger
}

func NewLoader(store Store, logger *slog.Logger) *Loader {
	return &Loader{store: store, logger: logger}
}

// Load reads the given artifacts of a branch and every relation touching
// them. Ids with no stored version are absent from the result. The staged
// set is removed on every path.
func (l *Loader) Load(ctx context.Context, branchID int64, ids ...int64) (res Result, err error) {
	if len(ids) == 0 {
		return Result{}, nil
	}

	set := joinset.NewArtifactSet(l.store)
	for _, id := range ids {
		if err := set.Add(joinset.ArtifactRow{ArtifactID: id, BranchID: branchID}); err != nil {
			return Result{}, err
		}
	}

	defer func() {
		if derr := set.Delete(context.WithoutCancel(ctx)); derr != nil {
			err = errors.Join(err, derr)
		}
	}()

	if err := set.Store(ctx); err != nil {
		return Result{}, fmt.Errorf("staging %d artifacts: %w", len(ids), err)
	}

	res.Artifacts, err = l.store.LoadJoinedArtifacts(ctx, set.QueryID(), branchID)
	if err != nil {
		return Result{}, fmt.Errorf("loading artifacts: %w", err)
	}
	res.Relations, err = l.store.LoadJoinedRelations(ctx, set.QueryID(), branchID)
	if err != nil {
		return Result{}, fmt.Errorf("loading relations: %w", err)
	}

	l.logger.Debug("bulk loaded artifacts",
		"branch", branchID,
		"requested", len(ids),
		"artifacts", len(res.Artifacts),
		"relations", len(res.Relations),
	)
	return res, nil
}
