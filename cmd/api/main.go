package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"pollledger/internal/app/bootstrap"
)

// API process entrypoint.
// Data flow:
// 1) Load config.
// 2) Build app wiring (storage adapter + ledger module + HTTP server).
// 3) Serve until SIGINT/SIGTERM.
//
// @title pollledger API
// @version 1.0
// @description Poll voting ledger: polls, candidates and vote counters.
// @BasePath /
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.BuildAPI(ctx)
	if err != nil {
		slog.Error("api bootstrap failed", "event", "api_bootstrap_failed", "error", err.Error())
		os.Exit(1)
	}
	defer func() { _ = app.Close() }()

	if err := app.Run(ctx); err != nil {
		slog.Error("api stopped with error", "event", "api_run_failed", "error", err.Error())
		_ = app.Close()
		os.Exit(1)
	}
}
