package bootstrap

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"pollledger/contexts/polling/voting-ledger/application/commands"
	"pollledger/internal/platform/config"
)

func TestNormalizeAddr(t *testing.T) {
	cases := map[string]string{
		"":               ":8080",
		"9090":           ":9090",
		":7070":          ":7070",
		"127.0.0.1:8081": "127.0.0.1:8081",
	}
	for raw, want := range cases {
		if got := normalizeAddr(raw); got != want {
			t.Fatalf("normalizeAddr(%q) = %q, want %q", raw, got, want)
		}
	}
}

func testConfig(driver string) config.Config {
	return config.Config{
		ServiceName:        "pollledger-test",
		StorageDriver:      driver,
		OutboxBatchSize:    10,
		OutboxPollInterval: time.Second,
		IdempotencyTTL:     time.Hour,
	}
}

func TestOpenStorageMemoryWiresEveryPort(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	storage, err := openStorage(context.Background(), testConfig(config.StorageMemory), logger)
	if err != nil {
		t.Fatalf("open memory storage: %v", err)
	}
	defer func() { _ = storage.close() }()

	if storage.memory == nil || storage.outbox == nil || storage.dedup == nil {
		t.Fatalf("expected memory storage to expose store, outbox and dedup")
	}
	if storage.deps.IdempotencyTTL != time.Hour {
		t.Fatalf("expected configured idempotency ttl, got %s", storage.deps.IdempotencyTTL)
	}
}

func TestOpenStorageSQLiteMigratesAndServesLedger(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := testConfig(config.StorageSQLite)
	cfg.SQLitePath = filepath.Join(t.TempDir(), "ledger.db")

	storage, err := openStorage(context.Background(), cfg, logger)
	if err != nil {
		t.Fatalf("open sqlite storage: %v", err)
	}
	defer func() { _ = storage.close() }()

	manager := commands.PollManager{
		Polls:  storage.deps.Polls,
		Tx:     storage.deps.Tx,
		Outbox: storage.deps.Outbox,
		Clock:  storage.deps.Clock,
		IDGen:  storage.deps.IDGen,
		Logger: logger,
	}
	now := uint64(time.Now().Unix())
	if _, err := manager.CreatePoll(context.Background(), commands.CreatePollCommand{
		PollID:      1,
		Description: "Favorite color",
		PollStart:   now,
		PollEnd:     now + 3600,
	}); err != nil {
		t.Fatalf("create poll: %v", err)
	}

	pending, err := storage.outbox.ListPendingOutbox(context.Background(), 10)
	if err != nil {
		t.Fatalf("list outbox: %v", err)
	}
	if len(pending) != 1 || pending[0].EventType != commands.EventPollCreated {
		t.Fatalf("expected one poll.created outbox row, got %+v", pending)
	}
}

func TestNewBusLogsConfiguredBrokers(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	cfg := testConfig("memory")
	cfg.KafkaBrokers = []string{"kafka-1:9092", "kafka-2:9092"}

	bus, err := newBus(cfg, logger)
	if err != nil {
		t.Fatalf("new bus: %v", err)
	}
	if got := strings.Join(bus.Brokers(), ","); got != "kafka-1:9092,kafka-2:9092" {
		t.Fatalf("unexpected brokers %q", got)
	}
	out := buf.String()
	if !strings.Contains(out, `"event":"bootstrap_bus_configured"`) || !strings.Contains(out, `"brokers":"kafka-1:9092,kafka-2:9092"`) {
		t.Fatalf("expected broker wiring log, got %s", out)
	}
}
