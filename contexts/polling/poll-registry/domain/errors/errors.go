package errors

import "errors"

var (
	ErrPollNotFound           = errors.New("poll not found")
	ErrInvalidPollInput       = errors.New("invalid poll input")
	ErrPollAlreadyClosed      = errors.New("poll already closed")
	ErrIdempotencyKeyRequired = errors.New("idempotency key is required")
	ErrIdempotencyKeyConflict = errors.New("idempotency key conflict")
)
