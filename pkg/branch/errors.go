package branch

import (
	"errors"
	"fmt"
)

var (
	// ErrInconsistentHierarchy is matched by every referential integrity
	// problem in the branch graph.
	ErrInconsistentHierarchy = errors.New("inconsistent branch hierarchy")

	// ErrTxCacheNotLoaded is returned by Load when the transaction cache is cold.
	ErrTxCacheNotLoaded = errors.New("transaction cache must be loaded before branches")

	// ErrNotEditable is returned when forking from or writing to an archived,
	// deleted or otherwise closed branch.
	ErrNotEditable = errors.New("branch is not editable")
)

// BranchDoesNotExistError reports a reference to an unknown branch.
type BranchDoesNotExistError struct {
	ID int64

	// ReferencedBy is the branch holding the dangling reference, if any.
	ReferencedBy int64
}

func (e BranchDoesNotExistError) Error() string {
	if e.ReferencedBy != 0 {
		return fmt.Sprintf("branch %d referenced by branch %d does not exist", e.ID, e.ReferencedBy)
	}
	return fmt.Sprintf("branch %d does not exist", e.ID)
}

// Is makes every missing-branch error match ErrInconsistentHierarchy when it
// was found through a dangling reference.
func (e BranchDoesNotExistError) Is(target error) bool {
	return target == ErrInconsistentHierarchy && e.ReferencedBy != 0
}
