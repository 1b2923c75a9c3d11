package application

import (
	"time"

	"pollledger/contexts/polling/voting-ledger/ports"
)

// ResolveNow reads the injected clock, falling back to wall time when none
// is wired.
func ResolveNow(clock ports.Clock) time.Time {
	if clock == nil {
		return time.Now().UTC()
	}
	return clock.Now().UTC()
}

// UnixSeconds converts to the ledger's unsigned timestamp representation.
// Instants before the epoch clamp to zero.
func UnixSeconds(t time.Time) uint64 {
	seconds := t.Unix()
	if seconds < 0 {
		return 0
	}
	return uint64(seconds)
}
