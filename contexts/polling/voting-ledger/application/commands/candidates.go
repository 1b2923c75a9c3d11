package commands

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"strconv"
	"strings"
	"time"

	application "pollledger/contexts/polling/voting-ledger/application"
	"pollledger/contexts/polling/voting-ledger/domain/entities"
	domainerrors "pollledger/contexts/polling/voting-ledger/domain/errors"
	"pollledger/contexts/polling/voting-ledger/ports"
)

// CandidateSlotRegistrar increments a poll's candidate count. PollManager is
// the production implementation.
type CandidateSlotRegistrar interface {
	RegisterCandidateSlot(ctx context.Context, pollID uint64) (uint64, error)
}

type CreateCandidateCommand struct {
	PollID        uint64
	CandidateName string
}

type CreateCandidateResult struct {
	Candidate       entities.Candidate
	Key             entities.RecordKey
	CandidateAmount uint64
}

// VoteCommand targets one candidate. IdempotencyKey is optional; when set, a
// retried request with the same key replays the first result instead of
// counting twice.
type VoteCommand struct {
	PollID         uint64
	CandidateName  string
	IdempotencyKey string
}

type VoteResult struct {
	Candidate entities.Candidate
	Replayed  bool
}

// CandidateLedger owns candidate-level invariants: name uniqueness within a
// poll and monotonic vote counters.
type CandidateLedger struct {
	Polls          ports.PollStore
	Candidates     ports.CandidateStore
	Slots          CandidateSlotRegistrar
	Tx             ports.UnitOfWork
	Idempotency    ports.IdempotencyStore
	Outbox         ports.OutboxWriter
	Clock          ports.Clock
	IDGen          ports.IDGenerator
	IdempotencyTTL time.Duration
	Logger         *slog.Logger
}

// CreateCandidate registers a zero-vote candidate under an existing poll and
// bumps the poll's candidate count in the same unit of work.
func (l CandidateLedger) CreateCandidate(ctx context.Context, cmd CreateCandidateCommand) (CreateCandidateResult, error) {
	logger := application.ResolveLogger(l.Logger)
	logger.Info("candidate create processing started",
		"event", "ledger_candidate_create_started",
		"module", application.ModuleName,
		"layer", "application",
		"poll_id", cmd.PollID,
		"candidate_name", cmd.CandidateName,
	)
	if !entities.ValidCandidateName(cmd.CandidateName) {
		logger.Warn("candidate create validation failed",
			"event", "ledger_candidate_create_validation_failed",
			"module", application.ModuleName,
			"layer", "application",
			"poll_id", cmd.PollID,
			"candidate_name_bytes", len(cmd.CandidateName),
		)
		return CreateCandidateResult{}, domainerrors.ErrInvalidCandidateName
	}
	if _, err := l.Polls.GetPoll(ctx, cmd.PollID); err != nil {
		logger.Warn("candidate create poll lookup failed",
			"event", "ledger_candidate_create_poll_lookup_failed",
			"module", application.ModuleName,
			"layer", "application",
			"poll_id", cmd.PollID,
			"error", err.Error(),
		)
		return CreateCandidateResult{}, err
	}

	occurredAt := application.ResolveNow(l.Clock)
	candidate := entities.Candidate{
		PollID:         cmd.PollID,
		CandidateName:  cmd.CandidateName,
		CandidateVotes: 0,
	}
	var amount uint64
	err := withinUnitOfWork(ctx, l.Tx, func(ctx context.Context) error {
		if err := l.Candidates.CreateCandidate(ctx, candidate); err != nil {
			return err
		}
		var err error
		amount, err = l.Slots.RegisterCandidateSlot(ctx, cmd.PollID)
		if err != nil {
			return err
		}
		return appendLedgerEvent(ctx, l.Outbox, l.IDGen, EventCandidateRegistered, cmd.PollID, occurredAt, map[string]any{
			"poll_id":          candidate.PollID,
			"candidate_name":   candidate.CandidateName,
			"candidate_key":    candidate.Key().String(),
			"candidate_amount": amount,
		})
	})
	if err != nil {
		logger.Warn("candidate create rejected by store",
			"event", "ledger_candidate_create_failed",
			"module", application.ModuleName,
			"layer", "application",
			"poll_id", cmd.PollID,
			"candidate_name", cmd.CandidateName,
			"error", err.Error(),
		)
		return CreateCandidateResult{}, err
	}

	logger.Info("candidate created",
		"event", "ledger_candidate_created",
		"module", application.ModuleName,
		"layer", "application",
		"poll_id", candidate.PollID,
		"candidate_name", candidate.CandidateName,
		"candidate_key", candidate.Key().String(),
		"candidate_amount", amount,
	)
	return CreateCandidateResult{
		Candidate:       candidate,
		Key:             candidate.Key(),
		CandidateAmount: amount,
	}, nil
}

// Vote admits one vote when the poll window contains the current time and the
// candidate exists. Checks run in order: poll exists, poll started, poll not
// ended, candidate exists. The counter increment happens inside the store.
func (l CandidateLedger) Vote(ctx context.Context, cmd VoteCommand) (VoteResult, error) {
	logger := application.ResolveLogger(l.Logger)
	idempotencyKey := strings.TrimSpace(cmd.IdempotencyKey)
	logger.Info("vote processing started",
		"event", "ledger_vote_started",
		"module", application.ModuleName,
		"layer", "application",
		"poll_id", cmd.PollID,
		"candidate_name", cmd.CandidateName,
	)

	occurredAt := application.ResolveNow(l.Clock)
	requestHash := hashVoteCommand(cmd)
	if idempotencyKey != "" && l.Idempotency != nil {
		record, found, err := l.Idempotency.Get(ctx, idempotencyKey, occurredAt)
		if err != nil {
			logger.Error("vote idempotency lookup failed",
				"event", "ledger_vote_idempotency_lookup_failed",
				"module", application.ModuleName,
				"layer", "application",
				"poll_id", cmd.PollID,
				"candidate_name", cmd.CandidateName,
				"error", err.Error(),
			)
			return VoteResult{}, err
		}
		if found {
			if record.RequestHash != requestHash {
				logger.Warn("vote idempotency conflict",
					"event", "ledger_vote_idempotency_conflict",
					"module", application.ModuleName,
					"layer", "application",
					"poll_id", cmd.PollID,
					"candidate_name", cmd.CandidateName,
				)
				return VoteResult{}, domainerrors.ErrIdempotencyConflict
			}
			logger.Info("vote replayed",
				"event", "ledger_vote_replayed",
				"module", application.ModuleName,
				"layer", "application",
				"poll_id", record.PollID,
				"candidate_name", record.Candidate,
				"candidate_votes", record.VoteCount,
			)
			return VoteResult{
				Candidate: entities.Candidate{
					PollID:         record.PollID,
					CandidateName:  record.Candidate,
					CandidateVotes: record.VoteCount,
				},
				Replayed: true,
			}, nil
		}
	}

	poll, err := l.Polls.GetPoll(ctx, cmd.PollID)
	if err != nil {
		return VoteResult{}, l.rejectVote(logger, cmd, err)
	}
	if err := entities.AdmitVote(poll, application.UnixSeconds(occurredAt)); err != nil {
		return VoteResult{}, l.rejectVote(logger, cmd, err)
	}
	if _, err := l.Candidates.GetCandidate(ctx, cmd.PollID, cmd.CandidateName); err != nil {
		return VoteResult{}, l.rejectVote(logger, cmd, err)
	}

	var updated entities.Candidate
	err = withinUnitOfWork(ctx, l.Tx, func(ctx context.Context) error {
		var err error
		updated, err = l.Candidates.IncrementCandidateVotes(ctx, cmd.PollID, cmd.CandidateName)
		if err != nil {
			return err
		}
		if err := appendLedgerEvent(ctx, l.Outbox, l.IDGen, EventVoteCast, cmd.PollID, occurredAt, map[string]any{
			"poll_id":         updated.PollID,
			"candidate_name":  updated.CandidateName,
			"candidate_votes": updated.CandidateVotes,
		}); err != nil {
			return err
		}
		if idempotencyKey == "" || l.Idempotency == nil {
			return nil
		}
		return l.Idempotency.Put(ctx, ports.IdempotencyRecord{
			Key:         idempotencyKey,
			RequestHash: requestHash,
			PollID:      updated.PollID,
			Candidate:   updated.CandidateName,
			VoteCount:   updated.CandidateVotes,
			ExpiresAt:   occurredAt.Add(l.resolveIdempotencyTTL()),
		})
	})
	if err != nil {
		return VoteResult{}, l.rejectVote(logger, cmd, err)
	}

	logger.Info("vote cast",
		"event", "ledger_vote_cast",
		"module", application.ModuleName,
		"layer", "application",
		"poll_id", updated.PollID,
		"candidate_name", updated.CandidateName,
		"candidate_votes", updated.CandidateVotes,
	)
	return VoteResult{Candidate: updated}, nil
}

func (l CandidateLedger) rejectVote(logger *slog.Logger, cmd VoteCommand, err error) error {
	logger.Warn("vote rejected",
		"event", "ledger_vote_rejected",
		"module", application.ModuleName,
		"layer", "application",
		"poll_id", cmd.PollID,
		"candidate_name", cmd.CandidateName,
		"error", err.Error(),
	)
	return err
}

func (l CandidateLedger) resolveIdempotencyTTL() time.Duration {
	if l.IdempotencyTTL <= 0 {
		return 24 * time.Hour
	}
	return l.IdempotencyTTL
}

func hashVoteCommand(cmd VoteCommand) string {
	payload := map[string]string{
		"poll_id":        strconv.FormatUint(cmd.PollID, 10),
		"candidate_name": cmd.CandidateName,
		"op":             "vote",
	}
	raw, _ := json.Marshal(payload)
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}
