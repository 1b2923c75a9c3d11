package commands

import (
	"context"
	"log/slog"

	application "pollledger/contexts/polling/voting-ledger/application"
	"pollledger/contexts/polling/voting-ledger/domain/entities"
	"pollledger/contexts/polling/voting-ledger/ports"
)

// CreatePollCommand carries caller-supplied poll fields. Timestamps are Unix
// seconds.
type CreatePollCommand struct {
	PollID      uint64
	Description string
	PollStart   uint64
	PollEnd     uint64
}

// CreatePollResult returns the stored poll and the key it is addressed by.
type CreatePollResult struct {
	Poll entities.Poll
	Key  entities.RecordKey
}

// PollManager owns poll-level invariants: the time window, the description
// bound and the candidate count.
type PollManager struct {
	Polls  ports.PollStore
	Tx     ports.UnitOfWork
	Outbox ports.OutboxWriter
	Clock  ports.Clock
	IDGen  ports.IDGenerator
	Logger *slog.Logger
}

// CreatePoll validates the window against the injected clock and writes the
// poll with a zero candidate count. Nothing is written when validation fails.
func (m PollManager) CreatePoll(ctx context.Context, cmd CreatePollCommand) (CreatePollResult, error) {
	logger := application.ResolveLogger(m.Logger)
	logger.Info("poll create processing started",
		"event", "ledger_poll_create_started",
		"module", application.ModuleName,
		"layer", "application",
		"poll_id", cmd.PollID,
		"poll_start", cmd.PollStart,
		"poll_end", cmd.PollEnd,
	)

	occurredAt := application.ResolveNow(m.Clock)
	now := application.UnixSeconds(occurredAt)
	if err := entities.ValidateNewPoll(cmd.Description, cmd.PollStart, cmd.PollEnd, now); err != nil {
		logger.Warn("poll create validation failed",
			"event", "ledger_poll_create_validation_failed",
			"module", application.ModuleName,
			"layer", "application",
			"poll_id", cmd.PollID,
			"poll_start", cmd.PollStart,
			"poll_end", cmd.PollEnd,
			"now", now,
			"error", err.Error(),
		)
		return CreatePollResult{}, err
	}

	poll := entities.Poll{
		PollID:          cmd.PollID,
		Description:     cmd.Description,
		PollStart:       cmd.PollStart,
		PollEnd:         cmd.PollEnd,
		CandidateAmount: 0,
	}
	err := withinUnitOfWork(ctx, m.Tx, func(ctx context.Context) error {
		if err := m.Polls.CreatePoll(ctx, poll); err != nil {
			return err
		}
		return appendLedgerEvent(ctx, m.Outbox, m.IDGen, EventPollCreated, poll.PollID, occurredAt, map[string]any{
			"poll_id":     poll.PollID,
			"poll_key":    poll.Key().String(),
			"description": poll.Description,
			"poll_start":  poll.PollStart,
			"poll_end":    poll.PollEnd,
		})
	})
	if err != nil {
		logger.Warn("poll create rejected by store",
			"event", "ledger_poll_create_failed",
			"module", application.ModuleName,
			"layer", "application",
			"poll_id", cmd.PollID,
			"error", err.Error(),
		)
		return CreatePollResult{}, err
	}

	logger.Info("poll created",
		"event", "ledger_poll_created",
		"module", application.ModuleName,
		"layer", "application",
		"poll_id", poll.PollID,
		"poll_key", poll.Key().String(),
		"poll_start", poll.PollStart,
		"poll_end", poll.PollEnd,
	)
	return CreatePollResult{Poll: poll, Key: poll.Key()}, nil
}

// RegisterCandidateSlot bumps the poll's candidate count by one. It is called
// by the candidate ledger, inside its unit of work, after a candidate record
// has been created.
func (m PollManager) RegisterCandidateSlot(ctx context.Context, pollID uint64) (uint64, error) {
	amount, err := m.Polls.IncrementCandidateAmount(ctx, pollID)
	if err != nil {
		return 0, err
	}
	application.ResolveLogger(m.Logger).Debug("candidate slot registered",
		"event", "ledger_candidate_slot_registered",
		"module", application.ModuleName,
		"layer", "application",
		"poll_id", pollID,
		"candidate_amount", amount,
	)
	return amount, nil
}
