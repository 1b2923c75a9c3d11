package memory

import (
	"bytes"
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"

	"pollledger/contexts/polling/voting-ledger/domain/entities"
	domainerrors "pollledger/contexts/polling/voting-ledger/domain/errors"
	"pollledger/contexts/polling/voting-ledger/ports"

	"github.com/google/uuid"
)

type outboxRecord struct {
	message   ports.OutboxMessage
	published bool
}

type dedupRecord struct {
	payloadHash string
	expiresAt   time.Time
}

// Store is an in-process keyed substrate. Polls and candidates are addressed
// by their derived record keys, the same way the persistent adapters are.
type Store struct {
	mu sync.RWMutex

	polls       map[entities.RecordKey]entities.Poll
	candidates  map[entities.RecordKey]entities.Candidate
	byPoll      map[uint64][]entities.RecordKey
	idempotency map[string]ports.IdempotencyRecord
	outbox      map[string]outboxRecord
	eventDedup  map[string]dedupRecord
	outboxSeq   int64
	clock       ports.Clock
}

func NewStore() *Store {
	return &Store{
		polls:       make(map[entities.RecordKey]entities.Poll),
		candidates:  make(map[entities.RecordKey]entities.Candidate),
		byPoll:      make(map[uint64][]entities.RecordKey),
		idempotency: make(map[string]ports.IdempotencyRecord),
		outbox:      make(map[string]outboxRecord),
		eventDedup:  make(map[string]dedupRecord),
	}
}

type journalKey struct{}

// journal collects compensations for writes made inside WithinTransaction.
type journal struct {
	mu    sync.Mutex
	undos []func()
}

func (j *journal) record(undo func()) {
	j.mu.Lock()
	j.undos = append(j.undos, undo)
	j.mu.Unlock()
}

func (j *journal) rollback() {
	j.mu.Lock()
	defer j.mu.Unlock()
	for i := len(j.undos) - 1; i >= 0; i-- {
		j.undos[i]()
	}
	j.undos = nil
}

func journalFrom(ctx context.Context) *journal {
	j, _ := ctx.Value(journalKey{}).(*journal)
	return j
}

// WithinTransaction runs fn and reverts every write fn made through this store
// when fn fails. Increments are reverted by decrementing, so concurrent units
// of work on the same counter stay consistent.
func (s *Store) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if journalFrom(ctx) != nil {
		return fn(ctx)
	}
	j := &journal{}
	if err := fn(context.WithValue(ctx, journalKey{}, j)); err != nil {
		j.rollback()
		return err
	}
	return nil
}

func (s *Store) onRollback(ctx context.Context, undo func()) {
	if j := journalFrom(ctx); j != nil {
		j.record(undo)
	}
}

func (s *Store) CreatePoll(ctx context.Context, poll entities.Poll) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := poll.Key()
	if _, exists := s.polls[key]; exists {
		return domainerrors.ErrPollAlreadyExists
	}
	s.polls[key] = poll
	s.onRollback(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.polls, key)
	})
	return nil
}

func (s *Store) GetPoll(_ context.Context, pollID uint64) (entities.Poll, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	poll, ok := s.polls[entities.PollKey(pollID)]
	if !ok {
		return entities.Poll{}, domainerrors.ErrPollNotFound
	}
	return poll, nil
}

func (s *Store) IncrementCandidateAmount(ctx context.Context, pollID uint64) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := entities.PollKey(pollID)
	poll, ok := s.polls[key]
	if !ok {
		return 0, domainerrors.ErrPollNotFound
	}
	poll.CandidateAmount++
	s.polls[key] = poll
	s.onRollback(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if current, ok := s.polls[key]; ok && current.CandidateAmount > 0 {
			current.CandidateAmount--
			s.polls[key] = current
		}
	})
	return poll.CandidateAmount, nil
}

func (s *Store) CreateCandidate(ctx context.Context, candidate entities.Candidate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := candidate.Key()
	if _, exists := s.candidates[key]; exists {
		return domainerrors.ErrCandidateAlreadyExists
	}
	s.candidates[key] = candidate
	s.byPoll[candidate.PollID] = append(s.byPoll[candidate.PollID], key)
	s.onRollback(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.candidates, key)
		keys := s.byPoll[candidate.PollID]
		for i := range keys {
			if keys[i] == key {
				s.byPoll[candidate.PollID] = append(keys[:i:i], keys[i+1:]...)
				break
			}
		}
	})
	return nil
}

func (s *Store) GetCandidate(_ context.Context, pollID uint64, candidateName string) (entities.Candidate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	candidate, ok := s.candidates[entities.CandidateKey(pollID, candidateName)]
	if !ok {
		return entities.Candidate{}, domainerrors.ErrCandidateNotFound
	}
	return candidate, nil
}

func (s *Store) IncrementCandidateVotes(ctx context.Context, pollID uint64, candidateName string) (entities.Candidate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := entities.CandidateKey(pollID, candidateName)
	candidate, ok := s.candidates[key]
	if !ok {
		return entities.Candidate{}, domainerrors.ErrCandidateNotFound
	}
	candidate.CandidateVotes++
	s.candidates[key] = candidate
	s.onRollback(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if current, ok := s.candidates[key]; ok && current.CandidateVotes > 0 {
			current.CandidateVotes--
			s.candidates[key] = current
		}
	})
	return candidate, nil
}

// ListCandidates returns a poll's candidates in registration order.
func (s *Store) ListCandidates(_ context.Context, pollID uint64) ([]entities.Candidate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := s.byPoll[pollID]
	items := make([]entities.Candidate, 0, len(keys))
	for _, key := range keys {
		if candidate, ok := s.candidates[key]; ok {
			items = append(items, candidate)
		}
	}
	return items, nil
}

func (s *Store) Get(_ context.Context, key string, now time.Time) (ports.IdempotencyRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.idempotency[strings.TrimSpace(key)]
	if !ok {
		return ports.IdempotencyRecord{}, false, nil
	}
	if !record.ExpiresAt.IsZero() && now.UTC().After(record.ExpiresAt.UTC()) {
		return ports.IdempotencyRecord{}, false, nil
	}
	return record, true, nil
}

func (s *Store) Put(ctx context.Context, record ports.IdempotencyRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := strings.TrimSpace(record.Key)
	existing, exists := s.idempotency[key]
	if exists && s.nowLocked().Before(existing.ExpiresAt.UTC()) {
		// A live record here means a concurrent request with the same key won
		// the race; the caller's unit of work must not count a second vote.
		if existing.RequestHash != record.RequestHash {
			return domainerrors.ErrIdempotencyConflict
		}
		return domainerrors.ErrConflict
	}
	s.idempotency[key] = ports.IdempotencyRecord{
		Key:         key,
		RequestHash: strings.TrimSpace(record.RequestHash),
		PollID:      record.PollID,
		Candidate:   record.Candidate,
		VoteCount:   record.VoteCount,
		ExpiresAt:   record.ExpiresAt.UTC(),
	}
	s.onRollback(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if exists {
			s.idempotency[key] = existing
			return
		}
		delete(s.idempotency, key)
	})
	return nil
}

func (s *Store) AppendOutbox(ctx context.Context, envelope ports.EventEnvelope) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	payload, err := json.Marshal(envelope)
	if err != nil {
		return err
	}
	outboxID := strings.TrimSpace(envelope.EventID)
	if outboxID == "" {
		outboxID = uuid.NewString()
	}
	if existing, ok := s.outbox[outboxID]; ok {
		if !bytes.Equal(existing.message.Payload, payload) {
			return domainerrors.ErrConflict
		}
		return nil
	}
	createdAt := envelope.OccurredAt.UTC()
	if createdAt.IsZero() {
		createdAt = s.nowLocked()
	}
	s.outboxSeq++
	s.outbox[outboxID] = outboxRecord{
		message: ports.OutboxMessage{
			OutboxID:     outboxID,
			EventType:    strings.TrimSpace(envelope.EventType),
			PartitionKey: strings.TrimSpace(envelope.PartitionKey),
			Payload:      payload,
			CreatedAt:    createdAt,
			Sequence:     s.outboxSeq,
		},
	}
	s.onRollback(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.outbox, outboxID)
	})
	return nil
}

func (s *Store) ListPendingOutbox(_ context.Context, limit int) ([]ports.OutboxMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 100
	}
	items := make([]ports.OutboxMessage, 0, len(s.outbox))
	for _, row := range s.outbox {
		if row.published {
			continue
		}
		items = append(items, row.message)
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].Sequence < items[j].Sequence
	})
	if len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func (s *Store) MarkOutboxPublished(_ context.Context, outboxID string, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.outbox[strings.TrimSpace(outboxID)]
	if !ok {
		return domainerrors.ErrConflict
	}
	row.published = true
	s.outbox[strings.TrimSpace(outboxID)] = row
	return nil
}

func (s *Store) ReserveEvent(
	_ context.Context,
	eventID string,
	payloadHash string,
	expiresAt time.Time,
) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := strings.TrimSpace(eventID)
	existing, ok := s.eventDedup[key]
	if ok {
		if !existing.expiresAt.IsZero() && s.nowLocked().After(existing.expiresAt.UTC()) {
			delete(s.eventDedup, key)
		} else {
			if existing.payloadHash != strings.TrimSpace(payloadHash) {
				return false, domainerrors.ErrConflict
			}
			return true, nil
		}
	}

	s.eventDedup[key] = dedupRecord{
		payloadHash: strings.TrimSpace(payloadHash),
		expiresAt:   expiresAt.UTC(),
	}
	return false, nil
}

// UseClock replaces the wall clock used for expiry checks and Now.
func (s *Store) UseClock(clock ports.Clock) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clock = clock
}

func (s *Store) Now() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nowLocked()
}

func (s *Store) nowLocked() time.Time {
	if s.clock == nil {
		return time.Now().UTC()
	}
	return s.clock.Now().UTC()
}

func (s *Store) NewID(_ context.Context) (string, error) {
	return uuid.NewString(), nil
}
