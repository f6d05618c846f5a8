package core

import "errors"

// Error taxonomy shared by the core and the stores. Handlers map these
// to HTTP status codes; stores translate driver-level failures into
// them so callers never see backend-specific errors.
var (
	// ErrNotFound means the referenced board or user does not exist.
	ErrNotFound = errors.New("not found")

	// ErrForbidden means the actor's capability set lacks the
	// capability required by the requested operation.
	ErrForbidden = errors.New("forbidden")

	// ErrConflict means a uniqueness violation survived name
	// resolution (e.g. a concurrent create won the race) and the
	// bounded retry was exhausted.
	ErrConflict = errors.New("conflict")

	// ErrBadRequest means the input was malformed: an invalid
	// permission value, a missing required field.
	ErrBadRequest = errors.New("bad request")

	// ErrUnavailable means an external collaborator (store, blob
	// backend) failed. The core does not retry it.
	ErrUnavailable = errors.New("unavailable")

	// ErrNameTaken is returned by BoardStore.Save when the
	// (ownerID, name) uniqueness constraint fires. It is the signal
	// the naming retry loop watches for.
	ErrNameTaken = errors.New("board name already taken")

	// ErrEmailTaken is returned by UserStore.Create for a duplicate
	// email address.
	ErrEmailTaken = errors.New("email already registered")
)
