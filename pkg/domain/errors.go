package domain

import "fmt"

// ErrNotFound reports a lookup miss for a stored entity.
type ErrNotFound struct {
	Entity string
	ID     string
}

func (e ErrNotFound) Error() string {
	return fmt.Sprintf("%s %q not found", e.Entity, e.ID)
}

// ErrMissingID reports a create attempt without an id.
type ErrMissingID struct {
	Entity string
}

func (e ErrMissingID) Error() string {
	return fmt.Sprintf("%s id must not be empty", e.Entity)
}

// ErrDuplicateID reports a create attempt reusing an existing id.
type ErrDuplicateID struct {
	Entity string
	ID     string
}

func (e ErrDuplicateID) Error() string {
	return fmt.Sprintf("%s %q already exists", e.Entity, e.ID)
}
