package postgresadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"time"

	application "pollledger/contexts/polling/voting-ledger/application"
	"pollledger/contexts/polling/voting-ledger/domain/entities"
	domainerrors "pollledger/contexts/polling/voting-ledger/domain/errors"
	"pollledger/contexts/polling/voting-ledger/ports"
	"pollledger/internal/shared/outbox"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository is the relational ledger substrate. Rows are keyed by the same
// derived record keys as every other adapter.
type Repository struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewRepository(db *gorm.DB, logger *slog.Logger) *Repository {
	if logger == nil {
		logger = slog.Default()
	}
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// Migrate creates or updates the ledger tables.
func (r *Repository) Migrate(ctx context.Context) error {
	if err := r.db.WithContext(ctx).AutoMigrate(
		&pollModel{},
		&candidateModel{},
		&idempotencyModel{},
		&outboxModel{},
		&eventDedupModel{},
	); err != nil {
		return r.logError("ledger_repo_migrate_failed", err)
	}
	return nil
}

type txKey struct{}

// WithinTransaction runs fn inside a database transaction. Repository calls
// made with the ctx passed to fn join that transaction.
func (r *Repository) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(*gorm.DB); ok {
		return fn(ctx)
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(context.WithValue(ctx, txKey{}, tx))
	})
}

func (r *Repository) conn(ctx context.Context) *gorm.DB {
	if tx, ok := ctx.Value(txKey{}).(*gorm.DB); ok {
		return tx.WithContext(ctx)
	}
	return r.db.WithContext(ctx)
}

func (r *Repository) CreatePoll(ctx context.Context, poll entities.Poll) error {
	row := pollModelFromEntity(poll)
	create := r.conn(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&row)
	if create.Error != nil {
		if isUniqueViolation(create.Error) {
			return domainerrors.ErrPollAlreadyExists
		}
		return r.logError("ledger_repo_create_poll_failed", create.Error,
			"poll_id", poll.PollID,
			"poll_key", row.Address,
		)
	}
	if create.RowsAffected == 0 {
		return domainerrors.ErrPollAlreadyExists
	}
	return nil
}

func (r *Repository) GetPoll(ctx context.Context, pollID uint64) (entities.Poll, error) {
	var row pollModel
	err := r.conn(ctx).
		Where("address = ?", entities.PollKey(pollID).String()).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Poll{}, domainerrors.ErrPollNotFound
		}
		return entities.Poll{}, r.logError("ledger_repo_get_poll_failed", err, "poll_id", pollID)
	}
	return row.toEntity()
}

func (r *Repository) IncrementCandidateAmount(ctx context.Context, pollID uint64) (uint64, error) {
	address := entities.PollKey(pollID).String()
	var amount uint64
	err := r.WithinTransaction(ctx, func(ctx context.Context) error {
		update := r.conn(ctx).
			Model(&pollModel{}).
			Where("address = ?", address).
			Update("candidate_amount", gorm.Expr("candidate_amount + ?", 1))
		if update.Error != nil {
			return update.Error
		}
		if update.RowsAffected == 0 {
			return domainerrors.ErrPollNotFound
		}
		var row pollModel
		if err := r.conn(ctx).Select("candidate_amount").Where("address = ?", address).First(&row).Error; err != nil {
			return err
		}
		amount = uint64(row.CandidateAmount)
		return nil
	})
	if err != nil {
		if errors.Is(err, domainerrors.ErrPollNotFound) {
			return 0, err
		}
		return 0, r.logError("ledger_repo_increment_candidate_amount_failed", err, "poll_id", pollID)
	}
	return amount, nil
}

func (r *Repository) CreateCandidate(ctx context.Context, candidate entities.Candidate) error {
	row := candidateModelFromEntity(candidate)
	create := r.conn(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&row)
	if create.Error != nil {
		if isUniqueViolation(create.Error) {
			return domainerrors.ErrCandidateAlreadyExists
		}
		return r.logError("ledger_repo_create_candidate_failed", create.Error,
			"poll_id", candidate.PollID,
			"candidate_key", row.Address,
		)
	}
	if create.RowsAffected == 0 {
		return domainerrors.ErrCandidateAlreadyExists
	}
	return nil
}

func (r *Repository) GetCandidate(ctx context.Context, pollID uint64, candidateName string) (entities.Candidate, error) {
	var row candidateModel
	err := r.conn(ctx).
		Where("address = ?", entities.CandidateKey(pollID, candidateName).String()).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Candidate{}, domainerrors.ErrCandidateNotFound
		}
		return entities.Candidate{}, r.logError("ledger_repo_get_candidate_failed", err,
			"poll_id", pollID,
			"candidate_name", candidateName,
		)
	}
	return row.toEntity()
}

// IncrementCandidateVotes adds one vote with a single UPDATE so concurrent
// callers never lose an increment.
func (r *Repository) IncrementCandidateVotes(ctx context.Context, pollID uint64, candidateName string) (entities.Candidate, error) {
	address := entities.CandidateKey(pollID, candidateName).String()
	var out entities.Candidate
	err := r.WithinTransaction(ctx, func(ctx context.Context) error {
		update := r.conn(ctx).
			Model(&candidateModel{}).
			Where("address = ?", address).
			Update("candidate_votes", gorm.Expr("candidate_votes + ?", 1))
		if update.Error != nil {
			return update.Error
		}
		if update.RowsAffected == 0 {
			return domainerrors.ErrCandidateNotFound
		}
		var row candidateModel
		if err := r.conn(ctx).Where("address = ?", address).First(&row).Error; err != nil {
			return err
		}
		var err error
		out, err = row.toEntity()
		return err
	})
	if err != nil {
		if errors.Is(err, domainerrors.ErrCandidateNotFound) {
			return entities.Candidate{}, err
		}
		return entities.Candidate{}, r.logError("ledger_repo_increment_candidate_votes_failed", err,
			"poll_id", pollID,
			"candidate_name", candidateName,
		)
	}
	return out, nil
}

func (r *Repository) ListCandidates(ctx context.Context, pollID uint64) ([]entities.Candidate, error) {
	var rows []candidateModel
	if err := r.conn(ctx).
		Where("poll_id = ?", formatPollID(pollID)).
		Order("created_at ASC").
		Order("address ASC").
		Find(&rows).Error; err != nil {
		return nil, r.logError("ledger_repo_list_candidates_failed", err, "poll_id", pollID)
	}
	items := make([]entities.Candidate, 0, len(rows))
	for _, row := range rows {
		item, err := row.toEntity()
		if err != nil {
			return nil, r.logError("ledger_repo_decode_candidate_failed", err, "candidate_key", row.Address)
		}
		items = append(items, item)
	}
	return items, nil
}

func (r *Repository) Get(ctx context.Context, key string, now time.Time) (ports.IdempotencyRecord, bool, error) {
	var row idempotencyModel
	err := r.conn(ctx).
		Where("idempotency_key = ?", strings.TrimSpace(key)).
		Where("expires_at > ?", now.UTC()).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.IdempotencyRecord{}, false, nil
		}
		return ports.IdempotencyRecord{}, false, r.logError("ledger_repo_get_idempotency_failed", err,
			"idempotency_key", strings.TrimSpace(key),
		)
	}
	pollID, err := parsePollID(row.PollID)
	if err != nil {
		return ports.IdempotencyRecord{}, false, err
	}
	return ports.IdempotencyRecord{
		Key:         row.Key,
		RequestHash: row.RequestHash,
		PollID:      pollID,
		Candidate:   row.CandidateName,
		VoteCount:   uint64(row.VoteCount),
		ExpiresAt:   row.ExpiresAt.UTC(),
	}, true, nil
}

func (r *Repository) Put(ctx context.Context, record ports.IdempotencyRecord) error {
	row := idempotencyModel{
		Key:           strings.TrimSpace(record.Key),
		RequestHash:   strings.TrimSpace(record.RequestHash),
		PollID:        formatPollID(record.PollID),
		CandidateName: record.Candidate,
		VoteCount:     int64(record.VoteCount),
		ExpiresAt:     record.ExpiresAt.UTC(),
	}
	now := time.Now().UTC()
	// Expired rows are replaced; live rows are left for the conflict check.
	create := r.conn(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "idempotency_key"}},
		DoUpdates: clause.Assignments(map[string]any{
			"request_hash":   row.RequestHash,
			"poll_id":        row.PollID,
			"candidate_name": row.CandidateName,
			"vote_count":     row.VoteCount,
			"expires_at":     row.ExpiresAt,
		}),
		Where: clause.Where{Exprs: []clause.Expression{
			clause.Lt{Column: clause.Column{Table: "voting_ledger_idempotency", Name: "expires_at"}, Value: now},
		}},
	}).Create(&row)
	if create.Error != nil {
		return r.logError("ledger_repo_put_idempotency_failed", create.Error,
			"idempotency_key", row.Key,
		)
	}
	if create.RowsAffected > 0 {
		return nil
	}

	var existing idempotencyModel
	if err := r.conn(ctx).Where("idempotency_key = ?", row.Key).First(&existing).Error; err != nil {
		return r.logError("ledger_repo_put_idempotency_load_existing_failed", err,
			"idempotency_key", row.Key,
		)
	}
	if existing.RequestHash != row.RequestHash {
		return domainerrors.ErrIdempotencyConflict
	}
	return domainerrors.ErrConflict
}

func (r *Repository) AppendOutbox(ctx context.Context, envelope ports.EventEnvelope) error {
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
	row := outboxModel{
		OutboxID:     outboxID,
		EventType:    strings.TrimSpace(envelope.EventType),
		PartitionKey: strings.TrimSpace(envelope.PartitionKey),
		Payload:      datatypes.JSON(payload),
		Status:       outbox.StatusPending,
		CreatedAt:    createdAt,
	}
	create := r.conn(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "outbox_id"}},
		DoNothing: true,
	}).Create(&row)
	if create.Error != nil {
		return r.logError("ledger_repo_append_outbox_failed", create.Error,
			"outbox_id", outboxID,
			"event_type", row.EventType,
		)
	}
	if create.RowsAffected > 0 {
		return nil
	}

	var existing outboxModel
	if err := r.conn(ctx).Where("outbox_id = ?", outboxID).First(&existing).Error; err != nil {
		return r.logError("ledger_repo_append_outbox_load_existing_failed", err, "outbox_id", outboxID)
	}
	if !bytes.Equal(existing.Payload, row.Payload) {
		return domainerrors.ErrConflict
	}
	return nil
}

func (r *Repository) ListPendingOutbox(ctx context.Context, limit int) ([]ports.OutboxMessage, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []outboxModel
	if err := r.conn(ctx).
		Where("status = ?", outbox.StatusPending).
		Order("sequence ASC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, r.logError("ledger_repo_list_pending_outbox_failed", err, "limit", limit)
	}
	items := make([]ports.OutboxMessage, 0, len(rows))
	for _, row := range rows {
		items = append(items, ports.OutboxMessage{
			OutboxID:     row.OutboxID,
			EventType:    row.EventType,
			PartitionKey: row.PartitionKey,
			Payload:      append([]byte(nil), row.Payload...),
			CreatedAt:    row.CreatedAt.UTC(),
			Sequence:     row.Sequence,
		})
	}
	return items, nil
}

func (r *Repository) MarkOutboxPublished(ctx context.Context, outboxID string, publishedAt time.Time) error {
	result := r.conn(ctx).
		Model(&outboxModel{}).
		Where("outbox_id = ?", strings.TrimSpace(outboxID)).
		Updates(map[string]any{
			"status":       outbox.StatusPublished,
			"published_at": publishedAt.UTC(),
		})
	if result.Error != nil {
		return r.logError("ledger_repo_mark_outbox_published_failed", result.Error,
			"outbox_id", strings.TrimSpace(outboxID),
		)
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrConflict
	}
	return nil
}

func (r *Repository) ReserveEvent(
	ctx context.Context,
	eventID string,
	payloadHash string,
	expiresAt time.Time,
) (bool, error) {
	row := eventDedupModel{
		EventID:     strings.TrimSpace(eventID),
		PayloadHash: strings.TrimSpace(payloadHash),
		ExpiresAt:   expiresAt.UTC(),
		ProcessedAt: time.Now().UTC(),
	}
	create := r.conn(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "event_id"}},
		DoNothing: true,
	}).Create(&row)
	if create.Error != nil {
		return false, r.logError("ledger_repo_reserve_event_failed", create.Error,
			"event_id", row.EventID,
		)
	}
	if create.RowsAffected > 0 {
		return false, nil
	}

	var existing eventDedupModel
	if err := r.conn(ctx).
		Select("payload_hash").
		Where("event_id = ?", row.EventID).
		First(&existing).Error; err != nil {
		return false, r.logError("ledger_repo_reserve_event_load_existing_failed", err,
			"event_id", row.EventID,
		)
	}
	if existing.PayloadHash != row.PayloadHash {
		return false, domainerrors.ErrConflict
	}
	return true, nil
}

func (r *Repository) logError(event string, err error, attrs ...any) error {
	fields := make([]any, 0, len(attrs)+8)
	fields = append(fields,
		"event", event,
		"module", application.ModuleName,
		"layer", "adapter",
		"error", err.Error(),
	)
	fields = append(fields, attrs...)
	r.logger.Error("ledger repository operation failed", fields...)
	return err
}

// Ids and timestamps are full-range unsigned integers, which neither BIGINT
// nor SQLite INTEGER can hold, so they are stored as decimal text.
func formatPollID(pollID uint64) string {
	return strconv.FormatUint(pollID, 10)
}

func parsePollID(value string) (uint64, error) {
	return strconv.ParseUint(strings.TrimSpace(value), 10, 64)
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

var _ ports.PollStore = (*Repository)(nil)
var _ ports.CandidateStore = (*Repository)(nil)
var _ ports.UnitOfWork = (*Repository)(nil)
var _ ports.IdempotencyStore = (*Repository)(nil)
var _ ports.OutboxWriter = (*Repository)(nil)
var _ ports.OutboxRepository = (*Repository)(nil)
var _ ports.EventDedupStore = (*Repository)(nil)
