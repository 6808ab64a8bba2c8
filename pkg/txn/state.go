package txn

import (
	"errors"
	"fmt"
)

var (
	// ErrIllegalState is returned when an operation is attempted in the wrong
	// lifecycle state. Nothing has been changed when it is returned.
	ErrIllegalState = errors.New("illegal transaction state")

	// ErrInconsistent is returned when a working set would hold two distinct
	// instances of the same artifact.
	ErrInconsistent = errors.New("inconsistent working set")

	// ErrEmptyChangeSet is returned when committing a working set that
	// changed nothing.
	ErrEmptyChangeSet = errors.New("nothing to commit")

	// ErrUnordered is returned when reordering relations of an unordered type.
	ErrUnordered = errors.New("relation type is not ordered")
)

// State is the lifecycle position of a working set.
type State int

const (
	New State = iota + 1
	CommitStarted
	Committed
	CommitFailed
	RolledBack
)

func (s State) String() string {
	switch s {
	case New:
		return "new"
	case CommitStarted:
		return "commit_started"
	case Committed:
		return "committed"
	case CommitFailed:
		return "commit_failed"
	case RolledBack:
		return "rolled_back"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

func illegal(format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrIllegalState)
}
