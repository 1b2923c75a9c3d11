package bootstrap

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	votingledger "pollledger/contexts/polling/voting-ledger"
	"pollledger/contexts/polling/voting-ledger/application/workers"
	"pollledger/internal/platform/config"
	"pollledger/internal/platform/httpserver"
	"pollledger/internal/platform/logging"
	"pollledger/internal/platform/messaging"

	"golang.org/x/sync/errgroup"
)

// Package bootstrap is the composition root.
// Keep construction/wiring here so module code stays framework-agnostic.

type APIApp struct {
	server  *httpserver.Server
	storage *ledgerStorage
	relay   *workers.OutboxRelay
	audit   *workers.LedgerAuditConsumer
	logger  *slog.Logger
}

type WorkerApp struct {
	storage *ledgerStorage
	relay   workers.OutboxRelay
	audit   workers.LedgerAuditConsumer
	logger  *slog.Logger
}

func BuildAPI(ctx context.Context) (*APIApp, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger := processLogger(cfg, "api")
	storage, err := openStorage(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	module := votingledger.NewModule(storage.deps)
	module.Store = storage.memory

	app := &APIApp{
		server:  httpserver.New(module, logger, normalizeAddr(cfg.HTTPPort)),
		storage: storage,
		logger:  logger,
	}
	if cfg.EnableEmbeddedRelay {
		bus, err := newBus(cfg, logger)
		if err != nil {
			_ = storage.close()
			return nil, err
		}
		relay := newOutboxRelay(cfg, storage, bus, logger)
		audit := newAuditConsumer(cfg, storage, bus, logger)
		app.relay = &relay
		app.audit = &audit
	}
	return app, nil
}

func BuildWorker(ctx context.Context) (*WorkerApp, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger := processLogger(cfg, "worker")
	if !cfg.Durable() {
		return nil, errors.New("worker requires a durable STORAGE_DRIVER (postgres, sqlite or redis)")
	}
	storage, err := openStorage(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	bus, err := newBus(cfg, logger)
	if err != nil {
		_ = storage.close()
		return nil, err
	}
	return &WorkerApp{
		storage: storage,
		relay:   newOutboxRelay(cfg, storage, bus, logger),
		audit:   newAuditConsumer(cfg, storage, bus, logger),
		logger:  logger,
	}, nil
}

func processLogger(cfg config.Config, process string) *slog.Logger {
	base := logging.New(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(base)
	return base.With("service", cfg.ServiceName, "process", process)
}

func newBus(cfg config.Config, logger *slog.Logger) (*messaging.Bus, error) {
	bus, err := messaging.NewBus(cfg.KafkaBrokers, logger)
	if err != nil {
		return nil, err
	}
	logger.Info("event bus configured",
		"event", "bootstrap_bus_configured",
		"module", "internal/app/bootstrap",
		"layer", "platform",
		"brokers", strings.Join(bus.Brokers(), ","),
		"consumer_group", cfg.ServiceName+"-ledger-audit",
	)
	return bus, nil
}

func newOutboxRelay(cfg config.Config, storage *ledgerStorage, bus *messaging.Bus, logger *slog.Logger) workers.OutboxRelay {
	return workers.OutboxRelay{
		Outbox:       storage.outbox,
		Publisher:    bus,
		Clock:        storage.deps.Clock,
		BatchSize:    cfg.OutboxBatchSize,
		PollInterval: cfg.OutboxPollInterval,
		Logger:       logger,
	}
}

func newAuditConsumer(cfg config.Config, storage *ledgerStorage, bus *messaging.Bus, logger *slog.Logger) workers.LedgerAuditConsumer {
	return workers.LedgerAuditConsumer{
		Subscriber:    bus,
		Dedup:         storage.dedup,
		Clock:         storage.deps.Clock,
		ConsumerGroup: cfg.ServiceName + "-ledger-audit",
		DedupTTL:      7 * 24 * time.Hour,
		Logger:        logger,
	}
}

// Run serves HTTP until ctx is cancelled or the server fails. The embedded
// relay, when enabled, runs in the same group and stops with it.
func (a *APIApp) Run(ctx context.Context) error {
	group, ctx := errgroup.WithContext(ctx)
	if a.audit != nil {
		if err := a.audit.Start(ctx); err != nil {
			return err
		}
	}
	if a.relay != nil {
		group.Go(func() error {
			return a.relay.Run(ctx)
		})
	}
	group.Go(a.server.Start)
	group.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return a.server.Shutdown(shutdownCtx)
	})

	a.logger.Info("api app started",
		"event", "bootstrap_api_started",
		"module", "internal/app/bootstrap",
		"layer", "platform",
		"embedded_relay", a.relay != nil,
	)
	return group.Wait()
}

func (a *APIApp) Close() error {
	if a.storage != nil {
		return a.storage.close()
	}
	return nil
}

func (w *WorkerApp) Run(ctx context.Context) error {
	if err := w.audit.Start(ctx); err != nil {
		return err
	}

	w.logger.Info("worker app started",
		"event", "bootstrap_worker_started",
		"module", "internal/app/bootstrap",
		"layer", "platform",
		"poll_interval", w.relay.PollInterval.String(),
	)
	return w.relay.Run(ctx)
}

func (w *WorkerApp) Close() error {
	if w.storage != nil {
		return w.storage.close()
	}
	return nil
}

func normalizeAddr(port string) string {
	value := strings.TrimSpace(port)
	if value == "" {
		return ":8080"
	}
	if strings.Contains(value, ":") {
		return value
	}
	return ":" + value
}
