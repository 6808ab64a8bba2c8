package storage

import "fmt"

// NotFoundError is returned when a referenced row doesn't exist in the store.
type NotFoundError struct {
	Kind string
	Key  string
}

func (e NotFoundError) Error() string {
	if e.Key == "" {
		return e.Kind + " not found"
	}

	return e.Kind + " not found: " + e.Key
}

// AlreadyExistsError is returned when a create collides with an existing row.
type AlreadyExistsError struct {
	Kind string
	Key  string
}

func (e AlreadyExistsError) Error() string {
	return e.Kind + " already exists: " + e.Key
}

// NotFound builds a NotFoundError keyed by an integer id.
func NotFound(kind string, id int64) NotFoundError {
	return NotFoundError{Kind: kind, Key: fmt.Sprint(id)}
}
