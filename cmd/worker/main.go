package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"pollledger/internal/app/bootstrap"
)

// Worker process entrypoint.
// Relays ledger outbox rows to the event bus and runs the audit consumer
// against the configured durable store.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.BuildWorker(ctx)
	if err != nil {
		slog.Error("worker bootstrap failed", "event", "worker_bootstrap_failed", "error", err.Error())
		os.Exit(1)
	}
	defer func() { _ = app.Close() }()

	if err := app.Run(ctx); err != nil {
		slog.Error("worker stopped with error", "event", "worker_run_failed", "error", err.Error())
		_ = app.Close()
		os.Exit(1)
	}
}
