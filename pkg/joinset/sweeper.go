package joinset

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Sweeper removes stored sets whose owners never deleted them.
type Sweeper struct {
	store  Store
	logger *slog.Logger
	now    func() time.Time
}

// NewSweeper creates a Sweeper over the given store.
func NewSweeper(store Store, logger *slog.Logger) *Sweeper {
	return &Sweeper{
		store:  store,
		logger: logger,
		now:    time.Now,
	}
}

// Sweep deletes every set issued more than maxAge ago and returns how many
// were removed.
func (s *Sweeper) Sweep(ctx context.Context, maxAge time.Duration) (int, error) {
	cutoff := s.now().Add(-maxAge)

	handles, err := s.store.ExpiredJoins(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("listing expired joins: %w", err)
	}

	removed := 0
	for _, h := range handles {
		if err := s.store.DeleteJoin(ctx, h.Kind, h.QueryID); err != nil {
			return removed, fmt.Errorf("deleting %s join %d: %w", h.Kind, h.QueryID, err)
		}
		removed++

		s.logger.Debug("swept expired join",
			"kind", string(h.Kind),
			"query_id", h.QueryID,
			"issued_at", h.IssuedAt,
		)
	}

	if removed > 0 {
		s.logger.Info("swept expired joins", "count", removed, "cutoff", cutoff)
	}

	return removed, nil
}
