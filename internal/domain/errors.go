package domain

import "errors"

var (
	// ErrNotFound covers unknown ids and unknown tracking/link tokens.
	// Public tracking endpoints must translate it into the generic
	// tracking artifact so token validity is never observable.
	ErrNotFound = errors.New("not found")

	// ErrInvalidState marks an action attempted against an entity whose
	// status disallows it (completed quiz, cancelled campaign, ...).
	ErrInvalidState = errors.New("invalid state")

	// ErrValidation marks malformed input rejected before any shared
	// state is mutated.
	ErrValidation = errors.New("validation failed")
)
