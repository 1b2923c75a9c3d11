package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"pollledger/contexts/polling/voting-ledger/domain/entities"
	domainerrors "pollledger/contexts/polling/voting-ledger/domain/errors"
	"pollledger/contexts/polling/voting-ledger/ports"
)

var errAbort = errors.New("abort")

func seedPoll(t *testing.T, store *Store, names ...string) {
	t.Helper()
	ctx := context.Background()
	if err := store.CreatePoll(ctx, entities.Poll{PollID: 1, Description: "color", PollStart: 10, PollEnd: 20}); err != nil {
		t.Fatalf("create poll failed: %v", err)
	}
	for _, name := range names {
		if err := store.CreateCandidate(ctx, entities.Candidate{PollID: 1, CandidateName: name}); err != nil {
			t.Fatalf("create candidate failed: %v", err)
		}
	}
}

func TestRolledBackIncrementsInterleaveWithCommits(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	seedPoll(t, store, "Pink")

	const workers = 64
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(commit bool) {
			defer wg.Done()
			err := store.WithinTransaction(ctx, func(ctx context.Context) error {
				if _, err := store.IncrementCandidateVotes(ctx, 1, "Pink"); err != nil {
					return err
				}
				if _, err := store.IncrementCandidateAmount(ctx, 1); err != nil {
					return err
				}
				if !commit {
					return errAbort
				}
				return nil
			})
			if commit && err != nil {
				t.Errorf("committed unit failed: %v", err)
			}
		}(i%2 == 0)
	}
	wg.Wait()

	pink, err := store.GetCandidate(ctx, 1, "Pink")
	if err != nil || pink.CandidateVotes != workers/2 {
		t.Fatalf("expected %d votes, got %+v (%v)", workers/2, pink, err)
	}
	poll, _ := store.GetPoll(ctx, 1)
	if poll.CandidateAmount != workers/2 {
		t.Fatalf("expected candidate amount %d, got %d", workers/2, poll.CandidateAmount)
	}
}

func TestRollbackRemovesCandidateIdempotencyAndOutbox(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	seedPoll(t, store)
	now := time.Unix(15, 0).UTC()

	err := store.WithinTransaction(ctx, func(ctx context.Context) error {
		if err := store.CreateCandidate(ctx, entities.Candidate{PollID: 1, CandidateName: "Pink"}); err != nil {
			return err
		}
		if err := store.AppendOutbox(ctx, ports.EventEnvelope{EventID: "evt-1", EventType: "candidate.registered", OccurredAt: now}); err != nil {
			return err
		}
		if err := store.Put(ctx, ports.IdempotencyRecord{Key: "k", RequestHash: "a", ExpiresAt: now.Add(time.Hour)}); err != nil {
			return err
		}
		return errAbort
	})
	if !errors.Is(err, errAbort) {
		t.Fatalf("expected abort error, got %v", err)
	}

	if _, err := store.GetCandidate(ctx, 1, "Pink"); !errors.Is(err, domainerrors.ErrCandidateNotFound) {
		t.Fatalf("expected candidate to be removed, got %v", err)
	}
	items, _ := store.ListCandidates(ctx, 1)
	if len(items) != 0 {
		t.Fatalf("expected no candidates, got %+v", items)
	}
	if _, found, _ := store.Get(ctx, "k", now); found {
		t.Fatal("expected idempotency record to be removed")
	}
	pending, _ := store.ListPendingOutbox(ctx, 10)
	if len(pending) != 0 {
		t.Fatalf("expected no outbox rows, got %+v", pending)
	}
}

func TestNestedUnitOfWorkJoinsOuterJournal(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	seedPoll(t, store, "Pink")

	err := store.WithinTransaction(ctx, func(ctx context.Context) error {
		if err := store.WithinTransaction(ctx, func(ctx context.Context) error {
			_, err := store.IncrementCandidateVotes(ctx, 1, "Pink")
			return err
		}); err != nil {
			return err
		}
		return errAbort
	})
	if !errors.Is(err, errAbort) {
		t.Fatalf("expected abort error, got %v", err)
	}
	pink, _ := store.GetCandidate(ctx, 1, "Pink")
	if pink.CandidateVotes != 0 {
		t.Fatalf("expected inner increment to be reverted, got %d", pink.CandidateVotes)
	}
}
