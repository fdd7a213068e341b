package errors

import "errors"

var (
	// ErrInvalidResultsInput rejects blank or malformed identifiers.
	ErrInvalidResultsInput = errors.New("invalid results input")

	// ErrPollNotFound maps to an unknown poll id.
	ErrPollNotFound = errors.New("poll not found")

	// ErrEventConflict is returned when a consumed event id reappears with a
	// different payload.
	ErrEventConflict = errors.New("event id replayed with different payload")
)
