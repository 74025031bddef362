package types

import "errors"

var (
	// ErrMalformedPayload means JSON could not be parsed or had an unexpected root shape.
	ErrMalformedPayload = errors.New("malformed payload")
	// ErrNotFound is a legitimate empty result: no search hits, no row with that key.
	ErrNotFound = errors.New("not found")
	// ErrUpstream wraps failures of the external search API.
	ErrUpstream = errors.New("upstream error")
	// ErrStorage wraps repository failures.
	ErrStorage = errors.New("storage error")
	// ErrConflict is returned by repositories on a unique key violation.
	ErrConflict = errors.New("unique constraint conflict")
	// ErrValidation is raised by presentation layers for bad user input.
	ErrValidation = errors.New("validation error")
)
