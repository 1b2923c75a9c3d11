package votingledger

import (
	"log/slog"
	"time"

	httpadapter "pollledger/contexts/polling/voting-ledger/adapters/http"
	"pollledger/contexts/polling/voting-ledger/adapters/memory"
	"pollledger/contexts/polling/voting-ledger/application/commands"
	"pollledger/contexts/polling/voting-ledger/application/queries"
	"pollledger/contexts/polling/voting-ledger/ports"
)

type Module struct {
	Handler    httpadapter.Handler
	Polls      commands.PollManager
	Candidates commands.CandidateLedger
	Queries    queries.LedgerQueries
	Store      *memory.Store
}

// Dependencies lists the ports one storage substrate has to satisfy. Every
// adapter in this module implements all of them on a single type.
type Dependencies struct {
	Polls          ports.PollStore
	Candidates     ports.CandidateStore
	Tx             ports.UnitOfWork
	Idempotency    ports.IdempotencyStore
	Outbox         ports.OutboxWriter
	Clock          ports.Clock
	IDGen          ports.IDGenerator
	IdempotencyTTL time.Duration
	Logger         *slog.Logger
}

func NewModule(deps Dependencies) Module {
	pollManager := commands.PollManager{
		Polls:  deps.Polls,
		Tx:     deps.Tx,
		Outbox: deps.Outbox,
		Clock:  deps.Clock,
		IDGen:  deps.IDGen,
		Logger: deps.Logger,
	}
	candidateLedger := commands.CandidateLedger{
		Polls:          deps.Polls,
		Candidates:     deps.Candidates,
		Slots:          pollManager,
		Tx:             deps.Tx,
		Idempotency:    deps.Idempotency,
		Outbox:         deps.Outbox,
		Clock:          deps.Clock,
		IDGen:          deps.IDGen,
		IdempotencyTTL: deps.IdempotencyTTL,
		Logger:         deps.Logger,
	}
	ledgerQueries := queries.LedgerQueries{
		Polls:      deps.Polls,
		Candidates: deps.Candidates,
		Clock:      deps.Clock,
		Logger:     deps.Logger,
	}
	return Module{
		Handler: httpadapter.Handler{
			Polls:      pollManager,
			Candidates: candidateLedger,
			Queries:    ledgerQueries,
			Logger:     deps.Logger,
		},
		Polls:      pollManager,
		Candidates: candidateLedger,
		Queries:    ledgerQueries,
	}
}

func NewInMemoryModule(logger *slog.Logger) Module {
	store := memory.NewStore()
	module := NewModule(Dependencies{
		Polls:          store,
		Candidates:     store,
		Tx:             store,
		Idempotency:    store,
		Outbox:         store,
		Clock:          store,
		IDGen:          store,
		IdempotencyTTL: 24 * time.Hour,
		Logger:         logger,
	})
	module.Store = store
	return module
}
