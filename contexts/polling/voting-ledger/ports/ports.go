package ports

import (
	"context"
	"time"

	"pollledger/contexts/polling/voting-ledger/domain/entities"
	"pollledger/internal/shared/events"
	"pollledger/internal/shared/outbox"
)

// PollStore is the poll side of the keyed storage substrate. Records are
// addressed by entities.PollKey.
type PollStore interface {
	// CreatePoll writes the poll only if its key is free; otherwise it fails
	// with ErrPollAlreadyExists.
	CreatePoll(ctx context.Context, poll entities.Poll) error
	GetPoll(ctx context.Context, pollID uint64) (entities.Poll, error)
	// IncrementCandidateAmount atomically adds one and returns the new amount.
	IncrementCandidateAmount(ctx context.Context, pollID uint64) (uint64, error)
}

// CandidateStore is the candidate side of the substrate. Records are addressed
// by entities.CandidateKey.
type CandidateStore interface {
	CreateCandidate(ctx context.Context, candidate entities.Candidate) error
	GetCandidate(ctx context.Context, pollID uint64, candidateName string) (entities.Candidate, error)
	// IncrementCandidateVotes atomically adds one vote and returns the record
	// after the increment.
	IncrementCandidateVotes(ctx context.Context, pollID uint64, candidateName string) (entities.Candidate, error)
	ListCandidates(ctx context.Context, pollID uint64) ([]entities.Candidate, error)
}

// UnitOfWork groups several writes so that either all of them land or none.
// Stores that are already atomic per call may run fn directly.
type UnitOfWork interface {
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

type IdempotencyRecord struct {
	Key         string
	RequestHash string
	PollID      uint64
	Candidate   string
	VoteCount   uint64
	ExpiresAt   time.Time
}

type IdempotencyStore interface {
	Get(ctx context.Context, key string, now time.Time) (IdempotencyRecord, bool, error)
	Put(ctx context.Context, record IdempotencyRecord) error
}

type EventEnvelope = events.Envelope

type OutboxMessage = outbox.Message

type OutboxWriter interface {
	AppendOutbox(ctx context.Context, envelope EventEnvelope) error
}

type OutboxRepository interface {
	ListPendingOutbox(ctx context.Context, limit int) ([]OutboxMessage, error)
	MarkOutboxPublished(ctx context.Context, outboxID string, publishedAt time.Time) error
}

type EventPublisher interface {
	Publish(ctx context.Context, topic string, event EventEnvelope) error
}

type EventSubscriber interface {
	Subscribe(
		ctx context.Context,
		topic string,
		consumerGroup string,
		handler func(context.Context, EventEnvelope) error,
	) error
}

// EventDedupStore reports whether an event id was already processed.
type EventDedupStore interface {
	ReserveEvent(ctx context.Context, eventID string, payloadHash string, expiresAt time.Time) (bool, error)
}

type Clock interface {
	Now() time.Time
}

type IDGenerator interface {
	NewID(ctx context.Context) (string, error)
}
