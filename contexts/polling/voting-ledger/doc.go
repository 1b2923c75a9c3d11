// Package votingledger implements the poll voting ledger inside the polling
// context.
//
// The module owns two components over one keyed storage substrate: the poll
// manager (poll creation, the voting window and the candidate count) and the
// candidate ledger (candidate registration and vote counting). Poll state is
// derived from the injected clock at read time and never stored. Counter
// updates happen inside the substrate so concurrent votes are never lost.
// Ledger changes are written to an outbox in the same unit of work and relayed
// to the event bus by workers.
package votingledger
