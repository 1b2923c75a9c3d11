package workers

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	application "pollledger/contexts/polling/voting-ledger/application"
	"pollledger/contexts/polling/voting-ledger/ports"
)

// AuditEntry is one ledger change as seen by the audit trail.
type AuditEntry struct {
	EventID    string
	EventType  string
	PollID     uint64
	Candidate  string
	Counter    uint64
	OccurredAt time.Time
}

// AuditSink receives deduplicated audit entries. A nil sink only logs.
type AuditSink interface {
	RecordAudit(ctx context.Context, entry AuditEntry) error
}

// LedgerAuditConsumer follows the ledger topics and emits one audit entry per
// event id. Redelivered events are dropped through the dedup store.
type LedgerAuditConsumer struct {
	Subscriber    ports.EventSubscriber
	Dedup         ports.EventDedupStore
	Sink          AuditSink
	Clock         ports.Clock
	ConsumerGroup string
	DedupTTL      time.Duration
	Logger        *slog.Logger
}

func (c LedgerAuditConsumer) Start(ctx context.Context) error {
	group := c.ConsumerGroup
	if group == "" {
		group = "voting-ledger-audit"
	}
	for _, topic := range []string{topicPollCreated, topicCandidateRegistered, topicVoteCast} {
		if err := c.Subscriber.Subscribe(ctx, topic, group, c.handle); err != nil {
			return err
		}
	}
	application.ResolveLogger(c.Logger).Info("ledger audit consumer started",
		"event", "ledger_audit_consumer_started",
		"module", application.ModuleName,
		"layer", "worker",
		"consumer_group", group,
	)
	return nil
}

type auditPayload struct {
	PollID          uint64 `json:"poll_id"`
	CandidateName   string `json:"candidate_name"`
	CandidateAmount uint64 `json:"candidate_amount"`
	CandidateVotes  uint64 `json:"candidate_votes"`
}

func (c LedgerAuditConsumer) handle(ctx context.Context, event ports.EventEnvelope) error {
	logger := application.ResolveLogger(c.Logger)
	now := application.ResolveNow(c.Clock)
	ttl := c.DedupTTL
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}

	duplicate, err := c.Dedup.ReserveEvent(ctx, event.EventID, hashPayload(event.Data), now.Add(ttl))
	if err != nil {
		return err
	}
	if duplicate {
		logger.Debug("ledger audit event already processed",
			"event", "ledger_audit_duplicate",
			"module", application.ModuleName,
			"layer", "worker",
			"event_id", event.EventID,
		)
		return nil
	}

	var payload auditPayload
	if err := json.Unmarshal(event.Data, &payload); err != nil {
		return err
	}
	entry := AuditEntry{
		EventID:    event.EventID,
		EventType:  event.EventType,
		PollID:     payload.PollID,
		Candidate:  payload.CandidateName,
		OccurredAt: event.OccurredAt,
	}
	switch event.EventType {
	case topicCandidateRegistered:
		entry.Counter = payload.CandidateAmount
	case topicVoteCast:
		entry.Counter = payload.CandidateVotes
	}

	logger.Info("ledger audit",
		"event", "ledger_audit_recorded",
		"module", application.ModuleName,
		"layer", "worker",
		"event_id", entry.EventID,
		"event_type", entry.EventType,
		"poll_id", entry.PollID,
		"candidate_name", entry.Candidate,
		"counter", entry.Counter,
	)
	if c.Sink == nil {
		return nil
	}
	return c.Sink.RecordAudit(ctx, entry)
}
