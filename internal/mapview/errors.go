package mapview

import "errors"

var (
	// ErrNotFound is returned for an unregistered layer id or a detach of an id
	// that is not attached.
	ErrNotFound = errors.New("not found")

	// ErrInvalidState is returned when a session operation is attempted
	// outside its lifecycle state.
	ErrInvalidState = errors.New("invalid session state")

	// ErrDuplicateLayer is returned when an overlay is attached twice without
	// an intervening detach.
	ErrDuplicateLayer = errors.New("layer already attached")
)
