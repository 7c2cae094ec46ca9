package services

import "errors"

var (
	// ErrNotFound means a rule, report or user id did not resolve.
	ErrNotFound = errors.New("not found")
	// ErrConflict means a mutation collided with existing state, e.g.
	// creating a second active rule for a violation type.
	ErrConflict = errors.New("conflict")
	// ErrConcurrency means a conditional update lost a race and the
	// caller should re-read state before deciding again.
	ErrConcurrency = errors.New("concurrent modification")
	// ErrValidation means malformed input; nothing was mutated.
	ErrValidation = errors.New("validation failed")
)
