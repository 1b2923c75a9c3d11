package application

import "log/slog"

// ModuleName is attached to every log line emitted by the ledger.
const ModuleName = "polling/voting-ledger"

// ResolveLogger guarantees a non-nil logger for application/worker code paths.
func ResolveLogger(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return slog.Default()
	}
	return logger
}
