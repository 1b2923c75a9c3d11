package errors

import "errors"

var (
	ErrInvalidDescription     = errors.New("poll description must be non-empty and at most 280 bytes")
	ErrInvalidCandidateName   = errors.New("candidate name must be non-empty and at most 32 bytes")
	ErrInvalidTimestamp       = errors.New("poll end is not a valid unix timestamp")
	ErrPollEndInPast          = errors.New("poll end timestamp must be in the future")
	ErrInvalidWindow          = errors.New("poll end must be after poll start")
	ErrPollAlreadyExists      = errors.New("poll already exists")
	ErrPollNotFound           = errors.New("poll not found")
	ErrCandidateAlreadyExists = errors.New("candidate already exists")
	ErrCandidateNotFound      = errors.New("candidate not found")
	ErrPollNotStarted         = errors.New("poll has not started")
	ErrPollEnded              = errors.New("poll has ended")
	ErrIdempotencyConflict    = errors.New("idempotency key conflict")
	ErrConflict               = errors.New("ledger conflict")
)
