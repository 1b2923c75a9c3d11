package queries

import (
	"context"
	"log/slog"

	application "pollledger/contexts/polling/voting-ledger/application"
	"pollledger/contexts/polling/voting-ledger/domain/entities"
	"pollledger/contexts/polling/voting-ledger/ports"
)

// PollView is a stored poll plus its state derived at read time.
type PollView struct {
	Poll  entities.Poll
	Key   entities.RecordKey
	State entities.PollState
	AsOf  uint64
}

// LedgerQueries exposes raw ledger records. It never tallies or ranks.
type LedgerQueries struct {
	Polls      ports.PollStore
	Candidates ports.CandidateStore
	Clock      ports.Clock
	Logger     *slog.Logger
}

func (q LedgerQueries) GetPoll(ctx context.Context, pollID uint64) (PollView, error) {
	poll, err := q.Polls.GetPoll(ctx, pollID)
	if err != nil {
		application.ResolveLogger(q.Logger).Debug("poll lookup failed",
			"event", "ledger_poll_lookup_failed",
			"module", application.ModuleName,
			"layer", "application",
			"poll_id", pollID,
			"error", err.Error(),
		)
		return PollView{}, err
	}
	now := application.UnixSeconds(application.ResolveNow(q.Clock))
	return PollView{
		Poll:  poll,
		Key:   poll.Key(),
		State: poll.StateAt(now),
		AsOf:  now,
	}, nil
}

func (q LedgerQueries) GetCandidate(ctx context.Context, pollID uint64, candidateName string) (entities.Candidate, error) {
	return q.Candidates.GetCandidate(ctx, pollID, candidateName)
}

// ListCandidates fails with ErrPollNotFound for an unknown poll rather than
// returning an empty list.
func (q LedgerQueries) ListCandidates(ctx context.Context, pollID uint64) ([]entities.Candidate, error) {
	if _, err := q.Polls.GetPoll(ctx, pollID); err != nil {
		return nil, err
	}
	return q.Candidates.ListCandidates(ctx, pollID)
}
