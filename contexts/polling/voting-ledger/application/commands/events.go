package commands

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"pollledger/contexts/polling/voting-ledger/ports"
)

const (
	EventPollCreated         = "poll.created"
	EventCandidateRegistered = "candidate.registered"
	EventVoteCast            = "vote.cast"
)

func newLedgerEnvelope(
	eventID string,
	eventType string,
	pollID uint64,
	occurredAt time.Time,
	data map[string]any,
) (ports.EventEnvelope, error) {
	// Everything is partitioned by poll so consumers see one poll's events in
	// order.
	payload, err := json.Marshal(data)
	if err != nil {
		return ports.EventEnvelope{}, err
	}
	return ports.EventEnvelope{
		EventID:          eventID,
		EventType:        eventType,
		OccurredAt:       occurredAt.UTC(),
		SourceService:    "voting-ledger",
		TraceID:          eventID,
		SchemaVersion:    1,
		PartitionKeyPath: "poll_id",
		PartitionKey:     strconv.FormatUint(pollID, 10),
		Data:             payload,
	}, nil
}

func appendLedgerEvent(
	ctx context.Context,
	outbox ports.OutboxWriter,
	idGen ports.IDGenerator,
	eventType string,
	pollID uint64,
	occurredAt time.Time,
	data map[string]any,
) error {
	// Read-only wiring leaves the outbox unset.
	if outbox == nil || idGen == nil {
		return nil
	}
	eventID, err := idGen.NewID(ctx)
	if err != nil {
		return err
	}
	data["occurred_at"] = occurredAt.UTC().Format(time.RFC3339)
	envelope, err := newLedgerEnvelope(eventID, eventType, pollID, occurredAt, data)
	if err != nil {
		return err
	}
	return outbox.AppendOutbox(ctx, envelope)
}

func withinUnitOfWork(ctx context.Context, uow ports.UnitOfWork, fn func(ctx context.Context) error) error {
	if uow == nil {
		return fn(ctx)
	}
	return uow.WithinTransaction(ctx, fn)
}
