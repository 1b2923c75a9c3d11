package workers_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"pollledger/contexts/polling/voting-ledger/adapters/memory"
	"pollledger/contexts/polling/voting-ledger/application/commands"
	"pollledger/contexts/polling/voting-ledger/application/workers"
	"pollledger/contexts/polling/voting-ledger/ports"
)

type fixedClock struct {
	now time.Time
}

func (c fixedClock) Now() time.Time {
	return c.now
}

type recordingPublisher struct {
	mu     sync.Mutex
	topics []string
	events []ports.EventEnvelope
	failAt int
}

func (p *recordingPublisher) Publish(_ context.Context, topic string, event ports.EventEnvelope) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failAt > 0 && len(p.events)+1 == p.failAt {
		return errors.New("broker unavailable")
	}
	p.topics = append(p.topics, topic)
	p.events = append(p.events, event)
	return nil
}

type stubSubscriber struct {
	handlers map[string]func(context.Context, ports.EventEnvelope) error
}

func (s *stubSubscriber) Subscribe(
	_ context.Context,
	topic string,
	_ string,
	handler func(context.Context, ports.EventEnvelope) error,
) error {
	if s.handlers == nil {
		s.handlers = map[string]func(context.Context, ports.EventEnvelope) error{}
	}
	s.handlers[topic] = handler
	return nil
}

type recordingSink struct {
	entries []workers.AuditEntry
}

func (s *recordingSink) RecordAudit(_ context.Context, entry workers.AuditEntry) error {
	s.entries = append(s.entries, entry)
	return nil
}

func seedLedger(t *testing.T, store *memory.Store, clock ports.Clock) {
	t.Helper()
	ctx := context.Background()
	polls := commands.PollManager{Polls: store, Tx: store, Outbox: store, Clock: clock, IDGen: store}
	ledger := commands.CandidateLedger{
		Polls:      store,
		Candidates: store,
		Slots:      polls,
		Tx:         store,
		Outbox:     store,
		Clock:      clock,
		IDGen:      store,
	}
	if _, err := polls.CreatePoll(ctx, commands.CreatePollCommand{PollID: 1, Description: "Colors", PollStart: 1_739_370_000, PollEnd: 1_739_373_600}); err != nil {
		t.Fatalf("create poll failed: %v", err)
	}
	if _, err := ledger.CreateCandidate(ctx, commands.CreateCandidateCommand{PollID: 1, CandidateName: "Pink"}); err != nil {
		t.Fatalf("create candidate failed: %v", err)
	}
	if _, err := ledger.Vote(ctx, commands.VoteCommand{PollID: 1, CandidateName: "Pink"}); err != nil {
		t.Fatalf("vote failed: %v", err)
	}
}

func TestOutboxRelayPublishesInOrderAndMarksRows(t *testing.T) {
	store := memory.NewStore()
	clock := fixedClock{now: time.Unix(1_739_370_100, 0).UTC()}
	seedLedger(t, store, clock)

	publisher := &recordingPublisher{}
	relay := workers.OutboxRelay{Outbox: store, Publisher: publisher, Clock: clock, BatchSize: 10}
	if err := relay.RunOnce(context.Background()); err != nil {
		t.Fatalf("relay failed: %v", err)
	}
	want := []string{commands.EventPollCreated, commands.EventCandidateRegistered, commands.EventVoteCast}
	if len(publisher.topics) != len(want) {
		t.Fatalf("expected %d published events, got %d", len(want), len(publisher.topics))
	}
	for i := range want {
		if publisher.topics[i] != want[i] {
			t.Fatalf("event %d: expected %s, got %s", i, want[i], publisher.topics[i])
		}
	}
	pending, _ := store.ListPendingOutbox(context.Background(), 10)
	if len(pending) != 0 {
		t.Fatalf("expected outbox drained, got %d rows", len(pending))
	}
}

func TestOutboxRelayStopsOnPublishFailure(t *testing.T) {
	store := memory.NewStore()
	clock := fixedClock{now: time.Unix(1_739_370_100, 0).UTC()}
	seedLedger(t, store, clock)

	publisher := &recordingPublisher{failAt: 2}
	relay := workers.OutboxRelay{Outbox: store, Publisher: publisher, Clock: clock}
	if err := relay.RunOnce(context.Background()); err == nil {
		t.Fatalf("expected publish failure")
	}
	pending, _ := store.ListPendingOutbox(context.Background(), 10)
	if len(pending) != 2 {
		t.Fatalf("expected two rows left pending, got %d", len(pending))
	}
	if pending[0].EventType != commands.EventCandidateRegistered {
		t.Fatalf("expected retry to resume at candidate.registered, got %s", pending[0].EventType)
	}
}

func TestOutboxRelayRunStopsOnCancel(t *testing.T) {
	store := memory.NewStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	relay := workers.OutboxRelay{Outbox: store, Publisher: &recordingPublisher{}, PollInterval: time.Millisecond}
	if err := relay.Run(ctx); err != nil {
		t.Fatalf("expected clean stop, got %v", err)
	}
}

func TestLedgerAuditConsumerDropsRedeliveries(t *testing.T) {
	store := memory.NewStore()
	clock := fixedClock{now: time.Unix(1_739_370_100, 0).UTC()}
	store.UseClock(clock)
	seedLedger(t, store, clock)

	publisher := &recordingPublisher{}
	if err := (workers.OutboxRelay{Outbox: store, Publisher: publisher, Clock: clock}).RunOnce(context.Background()); err != nil {
		t.Fatalf("relay failed: %v", err)
	}

	sub := &stubSubscriber{}
	sink := &recordingSink{}
	consumer := workers.LedgerAuditConsumer{Subscriber: sub, Dedup: store, Sink: sink, Clock: clock}
	if err := consumer.Start(context.Background()); err != nil {
		t.Fatalf("start audit consumer failed: %v", err)
	}
	for _, topic := range []string{commands.EventPollCreated, commands.EventCandidateRegistered, commands.EventVoteCast} {
		if sub.handlers[topic] == nil {
			t.Fatalf("expected %s handler registration", topic)
		}
	}

	for _, event := range publisher.events {
		if err := sub.handlers[event.EventType](context.Background(), event); err != nil {
			t.Fatalf("handle %s failed: %v", event.EventType, err)
		}
	}
	vote := publisher.events[2]
	if err := sub.handlers[vote.EventType](context.Background(), vote); err != nil {
		t.Fatalf("redelivery failed: %v", err)
	}

	if len(sink.entries) != 3 {
		t.Fatalf("expected 3 audit entries, got %d", len(sink.entries))
	}
	last := sink.entries[2]
	if last.PollID != 1 || last.Candidate != "Pink" || last.Counter != 1 {
		t.Fatalf("unexpected vote audit entry %+v", last)
	}
	if sink.entries[1].Counter != 1 {
		t.Fatalf("expected candidate amount 1 in registration entry, got %d", sink.entries[1].Counter)
	}
}
