package eventstream

import (
	"context"
	"errors"
)

// ErrNilChangeSetEvent is returned by publishers handed a nil event.
var ErrNilChangeSetEvent = errors.New("nil change set event")

// Publisher announces committed change sets. Publishing happens after the
// commit is durable, so a failed publish never rolls a transaction back.
type Publisher interface {
	PublishChangeSet(ctx context.Context, event *ChangeSetCommittedEvent) error
	Close() error
}
