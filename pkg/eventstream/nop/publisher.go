// Package nop is the publisher used when no event stream is configured.
package nop

import (
	"context"
	"log/slog"

	"github.com/papercomputeco/grove/pkg/eventstream"
)

// Publisher drops every event after logging it at debug level.
type Publisher struct {
	logger *slog.Logger
}

// NewPublisher creates a Publisher. A nil logger discards the debug lines.
func NewPublisher(logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Publisher{logger: logger}
}

func (p *Publisher) PublishChangeSet(ctx context.Context, event *eventstream.ChangeSetCommittedEvent) error {
	if event == nil {
		return eventstream.ErrNilChangeSetEvent
	}

	p.logger.DebugContext(ctx, "change set not published",
		"transaction", event.Transaction.ID,
		"branch", event.Transaction.BranchID,
		"artifacts", len(event.Artifacts),
	)
	return nil
}

func (p *Publisher) Close() error {
	return nil
}
