package redisadapter

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	application "pollledger/contexts/polling/voting-ledger/application"
	"pollledger/contexts/polling/voting-ledger/domain/entities"
	domainerrors "pollledger/contexts/polling/voting-ledger/domain/errors"
	"pollledger/contexts/polling/voting-ledger/ports"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

// Store keeps the ledger in Redis hashes addressed by record key. Every
// mutation is a single Lua script, so each call is atomic on the server.
// Units of work are all-or-nothing through compensation: each write made
// inside WithinTransaction records its inverse, and a failed unit replays the
// inverses in reverse order.
type Store struct {
	rdb    goredis.UniversalClient
	prefix string
	logger *slog.Logger
}

func NewStore(rdb goredis.UniversalClient, prefix string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = "ledger"
	}
	return &Store{
		rdb:    rdb,
		prefix: prefix,
		logger: logger,
	}
}

var (
	createIfAbsentScript = goredis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 1 then
  return 0
end
redis.call("HSET", KEYS[1], unpack(ARGV))
return 1
`)

	createCandidateScript = goredis.NewScript(`
if redis.call("EXISTS", KEYS[3]) == 0 then
  return -1
end
if redis.call("EXISTS", KEYS[1]) == 1 then
  return 0
end
redis.call("HSET", KEYS[1], "poll_id", ARGV[1], "candidate_name", ARGV[2], "candidate_votes", 0)
redis.call("RPUSH", KEYS[2], ARGV[3])
return 1
`)

	incrementIfPresentScript = goredis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 0 then
  return -1
end
return redis.call("HINCRBY", KEYS[1], ARGV[1], 1)
`)

	decrementIfPositiveScript = goredis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 0 then
  return -1
end
local current = tonumber(redis.call("HGET", KEYS[1], ARGV[1]) or "0")
if current <= 0 then
  return 0
end
return redis.call("HINCRBY", KEYS[1], ARGV[1], -1)
`)

	deleteCandidateScript = goredis.NewScript(`
redis.call("DEL", KEYS[1])
redis.call("LREM", KEYS[2], 1, ARGV[1])
return 1
`)

	deleteIfEqualScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`)

	dropOutboxScript = goredis.NewScript(`
redis.call("ZREM", KEYS[2], ARGV[1])
return redis.call("DEL", KEYS[1])
`)

	putIdempotencyScript = goredis.NewScript(`
local current = redis.call("GET", KEYS[1])
if current then
  return current
end
redis.call("SET", KEYS[1], ARGV[1], "PX", ARGV[2])
return ""
`)

	appendOutboxScript = goredis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 1 then
  return redis.call("HGET", KEYS[1], "payload")
end
local seq = redis.call("INCR", KEYS[3])
redis.call("HSET", KEYS[1], "outbox_id", ARGV[1], "event_type", ARGV[2], "partition_key", ARGV[3], "payload", ARGV[4], "created_at", ARGV[5], "sequence", seq)
redis.call("ZADD", KEYS[2], seq, ARGV[1])
return ""
`)

	reserveEventScript = goredis.NewScript(`
local current = redis.call("GET", KEYS[1])
if current then
  return current
end
redis.call("SET", KEYS[1], ARGV[1], "PX", ARGV[2])
return ""
`)
)

func (s *Store) pollKey(pollID uint64) string {
	return s.prefix + ":poll:" + entities.PollKey(pollID).String()
}

func (s *Store) candidateKey(pollID uint64, name string) string {
	return s.prefix + ":candidate:" + entities.CandidateKey(pollID, name).String()
}

func (s *Store) candidateIndexKey(pollID uint64) string {
	return s.pollKey(pollID) + ":candidates"
}

func (s *Store) idempotencyKey(key string) string {
	return s.prefix + ":idempotency:" + strings.TrimSpace(key)
}

func (s *Store) outboxRowKey(outboxID string) string {
	return s.prefix + ":outbox:" + outboxID
}

func (s *Store) outboxPendingKey() string {
	return s.prefix + ":outbox:pending"
}

func (s *Store) outboxSeqKey() string {
	return s.prefix + ":outbox:seq"
}

func (s *Store) dedupKey(eventID string) string {
	return s.prefix + ":dedup:" + strings.TrimSpace(eventID)
}

type journalKey struct{}

type journal struct {
	mu    sync.Mutex
	undos []func(ctx context.Context) error
}

func (j *journal) record(undo func(ctx context.Context) error) {
	j.mu.Lock()
	j.undos = append(j.undos, undo)
	j.mu.Unlock()
}

// WithinTransaction runs fn and, when fn fails, reverts every write fn made
// through this store. Counter inverses are decrements, so concurrent units of
// work on the same counter still end at the exact total.
func (s *Store) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(journalKey{}).(*journal); ok {
		return fn(ctx)
	}
	j := &journal{}
	if err := fn(context.WithValue(ctx, journalKey{}, j)); err != nil {
		s.rollback(context.WithoutCancel(ctx), j)
		return err
	}
	return nil
}

func (s *Store) onRollback(ctx context.Context, undo func(ctx context.Context) error) {
	if j, ok := ctx.Value(journalKey{}).(*journal); ok {
		j.record(undo)
	}
}

func (s *Store) rollback(ctx context.Context, j *journal) {
	j.mu.Lock()
	defer j.mu.Unlock()
	for i := len(j.undos) - 1; i >= 0; i-- {
		if err := j.undos[i](ctx); err != nil {
			_ = s.logError("ledger_redis_rollback_failed", err, "step", i)
		}
	}
	j.undos = nil
}

func (s *Store) decrement(ctx context.Context, key string, field string) error {
	return decrementIfPositiveScript.Run(ctx, s.rdb, []string{key}, field).Err()
}

func (s *Store) CreatePoll(ctx context.Context, poll entities.Poll) error {
	created, err := createIfAbsentScript.Run(ctx, s.rdb, []string{s.pollKey(poll.PollID)},
		"poll_id", strconv.FormatUint(poll.PollID, 10),
		"description", poll.Description,
		"poll_start", strconv.FormatUint(poll.PollStart, 10),
		"poll_end", strconv.FormatUint(poll.PollEnd, 10),
		"candidate_amount", strconv.FormatUint(poll.CandidateAmount, 10),
	).Int64()
	if err != nil {
		return s.logError("ledger_redis_create_poll_failed", err, "poll_id", poll.PollID)
	}
	if created == 0 {
		return domainerrors.ErrPollAlreadyExists
	}
	key := s.pollKey(poll.PollID)
	s.onRollback(ctx, func(ctx context.Context) error {
		return s.rdb.Del(ctx, key).Err()
	})
	return nil
}

func (s *Store) GetPoll(ctx context.Context, pollID uint64) (entities.Poll, error) {
	fields, err := s.rdb.HGetAll(ctx, s.pollKey(pollID)).Result()
	if err != nil {
		return entities.Poll{}, s.logError("ledger_redis_get_poll_failed", err, "poll_id", pollID)
	}
	if len(fields) == 0 {
		return entities.Poll{}, domainerrors.ErrPollNotFound
	}
	return decodePoll(fields)
}

func (s *Store) IncrementCandidateAmount(ctx context.Context, pollID uint64) (uint64, error) {
	amount, err := incrementIfPresentScript.Run(ctx, s.rdb, []string{s.pollKey(pollID)}, "candidate_amount").Int64()
	if err != nil {
		return 0, s.logError("ledger_redis_increment_candidate_amount_failed", err, "poll_id", pollID)
	}
	if amount < 0 {
		return 0, domainerrors.ErrPollNotFound
	}
	key := s.pollKey(pollID)
	s.onRollback(ctx, func(ctx context.Context) error {
		return s.decrement(ctx, key, "candidate_amount")
	})
	return uint64(amount), nil
}

// CreateCandidate writes the candidate only while its poll exists and the
// candidate key is free, in one script.
func (s *Store) CreateCandidate(ctx context.Context, candidate entities.Candidate) error {
	key := s.candidateKey(candidate.PollID, candidate.CandidateName)
	indexKey := s.candidateIndexKey(candidate.PollID)
	address := entities.CandidateKey(candidate.PollID, candidate.CandidateName).String()
	created, err := createCandidateScript.Run(ctx, s.rdb,
		[]string{key, indexKey, s.pollKey(candidate.PollID)},
		strconv.FormatUint(candidate.PollID, 10),
		candidate.CandidateName,
		address,
	).Int64()
	if err != nil {
		return s.logError("ledger_redis_create_candidate_failed", err,
			"poll_id", candidate.PollID,
			"candidate_name", candidate.CandidateName,
		)
	}
	if created < 0 {
		return domainerrors.ErrPollNotFound
	}
	if created == 0 {
		return domainerrors.ErrCandidateAlreadyExists
	}
	s.onRollback(ctx, func(ctx context.Context) error {
		return deleteCandidateScript.Run(ctx, s.rdb, []string{key, indexKey}, address).Err()
	})
	return nil
}

func (s *Store) GetCandidate(ctx context.Context, pollID uint64, candidateName string) (entities.Candidate, error) {
	fields, err := s.rdb.HGetAll(ctx, s.candidateKey(pollID, candidateName)).Result()
	if err != nil {
		return entities.Candidate{}, s.logError("ledger_redis_get_candidate_failed", err,
			"poll_id", pollID,
			"candidate_name", candidateName,
		)
	}
	if len(fields) == 0 {
		return entities.Candidate{}, domainerrors.ErrCandidateNotFound
	}
	return decodeCandidate(fields)
}

func (s *Store) IncrementCandidateVotes(ctx context.Context, pollID uint64, candidateName string) (entities.Candidate, error) {
	votes, err := incrementIfPresentScript.Run(ctx, s.rdb, []string{s.candidateKey(pollID, candidateName)}, "candidate_votes").Int64()
	if err != nil {
		return entities.Candidate{}, s.logError("ledger_redis_increment_candidate_votes_failed", err,
			"poll_id", pollID,
			"candidate_name", candidateName,
		)
	}
	if votes < 0 {
		return entities.Candidate{}, domainerrors.ErrCandidateNotFound
	}
	key := s.candidateKey(pollID, candidateName)
	s.onRollback(ctx, func(ctx context.Context) error {
		return s.decrement(ctx, key, "candidate_votes")
	})
	return entities.Candidate{
		PollID:         pollID,
		CandidateName:  candidateName,
		CandidateVotes: uint64(votes),
	}, nil
}

func (s *Store) ListCandidates(ctx context.Context, pollID uint64) ([]entities.Candidate, error) {
	addresses, err := s.rdb.LRange(ctx, s.candidateIndexKey(pollID), 0, -1).Result()
	if err != nil {
		return nil, s.logError("ledger_redis_list_candidates_failed", err, "poll_id", pollID)
	}
	pipe := s.rdb.Pipeline()
	cmds := make([]*goredis.MapStringStringCmd, 0, len(addresses))
	for _, address := range addresses {
		cmds = append(cmds, pipe.HGetAll(ctx, s.prefix+":candidate:"+address))
	}
	if len(cmds) > 0 {
		if _, err := pipe.Exec(ctx); err != nil {
			return nil, s.logError("ledger_redis_list_candidates_failed", err, "poll_id", pollID)
		}
	}
	items := make([]entities.Candidate, 0, len(cmds))
	for _, cmd := range cmds {
		fields := cmd.Val()
		if len(fields) == 0 {
			continue
		}
		item, err := decodeCandidate(fields)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

type idempotencyValue struct {
	RequestHash string `json:"request_hash"`
	PollID      uint64 `json:"poll_id"`
	Candidate   string `json:"candidate_name"`
	VoteCount   uint64 `json:"vote_count"`
	ExpiresAt   int64  `json:"expires_at"`
}

func (s *Store) Get(ctx context.Context, key string, now time.Time) (ports.IdempotencyRecord, bool, error) {
	raw, err := s.rdb.Get(ctx, s.idempotencyKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return ports.IdempotencyRecord{}, false, nil
		}
		return ports.IdempotencyRecord{}, false, s.logError("ledger_redis_get_idempotency_failed", err,
			"idempotency_key", strings.TrimSpace(key),
		)
	}
	var value idempotencyValue
	if err := json.Unmarshal(raw, &value); err != nil {
		return ports.IdempotencyRecord{}, false, err
	}
	expiresAt := time.UnixMilli(value.ExpiresAt).UTC()
	if now.UTC().After(expiresAt) {
		return ports.IdempotencyRecord{}, false, nil
	}
	return ports.IdempotencyRecord{
		Key:         strings.TrimSpace(key),
		RequestHash: value.RequestHash,
		PollID:      value.PollID,
		Candidate:   value.Candidate,
		VoteCount:   value.VoteCount,
		ExpiresAt:   expiresAt,
	}, true, nil
}

func (s *Store) Put(ctx context.Context, record ports.IdempotencyRecord) error {
	raw, err := json.Marshal(idempotencyValue{
		RequestHash: strings.TrimSpace(record.RequestHash),
		PollID:      record.PollID,
		Candidate:   record.Candidate,
		VoteCount:   record.VoteCount,
		ExpiresAt:   record.ExpiresAt.UTC().UnixMilli(),
	})
	if err != nil {
		return err
	}
	ttl := time.Until(record.ExpiresAt)
	if ttl < time.Second {
		ttl = time.Second
	}
	key := s.idempotencyKey(record.Key)
	current, err := putIdempotencyScript.Run(ctx, s.rdb, []string{key},
		string(raw), ttl.Milliseconds(),
	).Text()
	if err != nil {
		return s.logError("ledger_redis_put_idempotency_failed", err,
			"idempotency_key", strings.TrimSpace(record.Key),
		)
	}
	if current == "" {
		s.onRollback(ctx, func(ctx context.Context) error {
			return deleteIfEqualScript.Run(ctx, s.rdb, []string{key}, string(raw)).Err()
		})
		return nil
	}
	var existing idempotencyValue
	if err := json.Unmarshal([]byte(current), &existing); err != nil {
		return err
	}
	if existing.RequestHash != strings.TrimSpace(record.RequestHash) {
		return domainerrors.ErrIdempotencyConflict
	}
	return domainerrors.ErrConflict
}

func (s *Store) AppendOutbox(ctx context.Context, envelope ports.EventEnvelope) error {
	payload, err := json.Marshal(envelope)
	if err != nil {
		return err
	}
	outboxID := strings.TrimSpace(envelope.EventID)
	if outboxID == "" {
		outboxID = uuid.NewString()
	}
	createdAt := envelope.OccurredAt.UTC()
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	rowKey := s.outboxRowKey(outboxID)
	existing, err := appendOutboxScript.Run(ctx, s.rdb,
		[]string{rowKey, s.outboxPendingKey(), s.outboxSeqKey()},
		outboxID,
		strings.TrimSpace(envelope.EventType),
		strings.TrimSpace(envelope.PartitionKey),
		string(payload),
		createdAt.Format(time.RFC3339Nano),
	).Text()
	if err != nil {
		return s.logError("ledger_redis_append_outbox_failed", err, "outbox_id", outboxID)
	}
	if existing != "" {
		if existing != string(payload) {
			return domainerrors.ErrConflict
		}
		return nil
	}
	s.onRollback(ctx, func(ctx context.Context) error {
		return dropOutboxScript.Run(ctx, s.rdb, []string{rowKey, s.outboxPendingKey()}, outboxID).Err()
	})
	return nil
}

func (s *Store) ListPendingOutbox(ctx context.Context, limit int) ([]ports.OutboxMessage, error) {
	if limit <= 0 {
		limit = 100
	}
	ids, err := s.rdb.ZRange(ctx, s.outboxPendingKey(), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, s.logError("ledger_redis_list_pending_outbox_failed", err, "limit", limit)
	}
	pipe := s.rdb.Pipeline()
	cmds := make([]*goredis.MapStringStringCmd, 0, len(ids))
	for _, id := range ids {
		cmds = append(cmds, pipe.HGetAll(ctx, s.outboxRowKey(id)))
	}
	if len(cmds) > 0 {
		if _, err := pipe.Exec(ctx); err != nil {
			return nil, s.logError("ledger_redis_list_pending_outbox_failed", err, "limit", limit)
		}
	}
	items := make([]ports.OutboxMessage, 0, len(cmds))
	for _, cmd := range cmds {
		fields := cmd.Val()
		if len(fields) == 0 {
			continue
		}
		createdAt, _ := time.Parse(time.RFC3339Nano, fields["created_at"])
		sequence, _ := strconv.ParseInt(fields["sequence"], 10, 64)
		items = append(items, ports.OutboxMessage{
			OutboxID:     fields["outbox_id"],
			EventType:    fields["event_type"],
			PartitionKey: fields["partition_key"],
			Payload:      []byte(fields["payload"]),
			CreatedAt:    createdAt.UTC(),
			Sequence:     sequence,
		})
	}
	return items, nil
}

func (s *Store) MarkOutboxPublished(ctx context.Context, outboxID string, publishedAt time.Time) error {
	outboxID = strings.TrimSpace(outboxID)
	removed, err := s.rdb.ZRem(ctx, s.outboxPendingKey(), outboxID).Result()
	if err != nil {
		return s.logError("ledger_redis_mark_outbox_published_failed", err, "outbox_id", outboxID)
	}
	if removed == 0 {
		return domainerrors.ErrConflict
	}
	if err := s.rdb.HSet(ctx, s.outboxRowKey(outboxID), "published_at", publishedAt.UTC().Format(time.RFC3339Nano)).Err(); err != nil {
		return s.logError("ledger_redis_mark_outbox_published_failed", err, "outbox_id", outboxID)
	}
	return nil
}

func (s *Store) ReserveEvent(ctx context.Context, eventID string, payloadHash string, expiresAt time.Time) (bool, error) {
	ttl := time.Until(expiresAt)
	if ttl < time.Second {
		ttl = time.Second
	}
	current, err := reserveEventScript.Run(ctx, s.rdb, []string{s.dedupKey(eventID)},
		strings.TrimSpace(payloadHash), ttl.Milliseconds(),
	).Text()
	if err != nil {
		return false, s.logError("ledger_redis_reserve_event_failed", err, "event_id", strings.TrimSpace(eventID))
	}
	if current == "" {
		return false, nil
	}
	if current != strings.TrimSpace(payloadHash) {
		return false, domainerrors.ErrConflict
	}
	return true, nil
}

func (s *Store) logError(event string, err error, attrs ...any) error {
	fields := make([]any, 0, len(attrs)+8)
	fields = append(fields,
		"event", event,
		"module", application.ModuleName,
		"layer", "adapter",
		"error", err.Error(),
	)
	fields = append(fields, attrs...)
	s.logger.Error("ledger redis operation failed", fields...)
	return err
}

func decodePoll(fields map[string]string) (entities.Poll, error) {
	var (
		poll entities.Poll
		err  error
	)
	if poll.PollID, err = strconv.ParseUint(fields["poll_id"], 10, 64); err != nil {
		return entities.Poll{}, err
	}
	if poll.PollStart, err = strconv.ParseUint(fields["poll_start"], 10, 64); err != nil {
		return entities.Poll{}, err
	}
	if poll.PollEnd, err = strconv.ParseUint(fields["poll_end"], 10, 64); err != nil {
		return entities.Poll{}, err
	}
	if poll.CandidateAmount, err = strconv.ParseUint(fields["candidate_amount"], 10, 64); err != nil {
		return entities.Poll{}, err
	}
	poll.Description = fields["description"]
	return poll, nil
}

func decodeCandidate(fields map[string]string) (entities.Candidate, error) {
	pollID, err := strconv.ParseUint(fields["poll_id"], 10, 64)
	if err != nil {
		return entities.Candidate{}, err
	}
	votes, err := strconv.ParseUint(fields["candidate_votes"], 10, 64)
	if err != nil {
		return entities.Candidate{}, err
	}
	return entities.Candidate{
		PollID:         pollID,
		CandidateName:  fields["candidate_name"],
		CandidateVotes: votes,
	}, nil
}

func (s *Store) Now() time.Time {
	return time.Now().UTC()
}

func (s *Store) NewID(_ context.Context) (string, error) {
	return uuid.NewString(), nil
}

var _ ports.PollStore = (*Store)(nil)
var _ ports.CandidateStore = (*Store)(nil)
var _ ports.UnitOfWork = (*Store)(nil)
var _ ports.IdempotencyStore = (*Store)(nil)
var _ ports.OutboxWriter = (*Store)(nil)
var _ ports.OutboxRepository = (*Store)(nil)
var _ ports.EventDedupStore = (*Store)(nil)
