package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	votingledger "pollledger/contexts/polling/voting-ledger"
	"pollledger/contexts/polling/voting-ledger/adapters/memory"
	postgresadapter "pollledger/contexts/polling/voting-ledger/adapters/postgres"
	redisadapter "pollledger/contexts/polling/voting-ledger/adapters/redis"
	"pollledger/contexts/polling/voting-ledger/ports"
	"pollledger/internal/platform/config"
	"pollledger/internal/platform/db"
	"pollledger/internal/platform/kv"
)

// ledgerStorage is one opened substrate plus the ports the workers need from
// it. Every adapter implements all ledger ports on a single type.
type ledgerStorage struct {
	deps   votingledger.Dependencies
	outbox ports.OutboxRepository
	dedup  ports.EventDedupStore
	memory *memory.Store
	close  func() error
}

type ledgerSubstrate interface {
	ports.PollStore
	ports.CandidateStore
	ports.UnitOfWork
	ports.IdempotencyStore
	ports.OutboxWriter
	ports.OutboxRepository
	ports.EventDedupStore
}

func openStorage(ctx context.Context, cfg config.Config, logger *slog.Logger) (*ledgerStorage, error) {
	switch cfg.StorageDriver {
	case config.StorageMemory:
		store := memory.NewStore()
		s := newLedgerStorage(store, store, store, cfg, logger, func() error { return nil })
		s.memory = store
		return s, nil

	case config.StoragePostgres, config.StorageSQLite:
		var (
			database *db.Database
			err      error
		)
		if cfg.StorageDriver == config.StoragePostgres {
			database, err = db.Connect(cfg.PostgresDSN)
		} else {
			database, err = db.ConnectSQLite(cfg.SQLitePath)
		}
		if err != nil {
			return nil, err
		}
		repo := postgresadapter.NewRepository(database.DB, logger)
		migrateCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		if err := repo.Migrate(migrateCtx); err != nil {
			_ = database.Close()
			return nil, err
		}
		return newLedgerStorage(repo, postgresadapter.SystemClock{}, postgresadapter.UUIDGenerator{}, cfg, logger, database.Close), nil

	case config.StorageRedis:
		rdb, err := kv.ConnectRedis(cfg.RedisAddr)
		if err != nil {
			return nil, err
		}
		store := redisadapter.NewStore(rdb, cfg.RedisKeyPrefix, logger)
		return newLedgerStorage(store, store, store, cfg, logger, rdb.Close), nil

	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.StorageDriver)
	}
}

func newLedgerStorage(
	substrate ledgerSubstrate,
	clock ports.Clock,
	idGen ports.IDGenerator,
	cfg config.Config,
	logger *slog.Logger,
	closeFn func() error,
) *ledgerStorage {
	logger.Info("ledger storage opened",
		"event", "bootstrap_storage_opened",
		"module", "internal/app/bootstrap",
		"layer", "platform",
		"storage_driver", cfg.StorageDriver,
	)
	return &ledgerStorage{
		deps: votingledger.Dependencies{
			Polls:          substrate,
			Candidates:     substrate,
			Tx:             substrate,
			Idempotency:    substrate,
			Outbox:         substrate,
			Clock:          clock,
			IDGen:          idGen,
			IdempotencyTTL: cfg.IdempotencyTTL,
			Logger:         logger,
		},
		outbox: substrate,
		dedup:  substrate,
		close:  closeFn,
	}
}
