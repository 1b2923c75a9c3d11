package messaging

import (
	"context"
	"errors"
	"testing"
	"time"

	"pollledger/internal/shared/events"
)

func TestBusDeliversToEveryConsumerGroup(t *testing.T) {
	bus, err := NewBus([]string{"localhost:9092"}, nil)
	if err != nil {
		t.Fatalf("new bus: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	audit := make(chan events.Envelope, 1)
	metrics := make(chan events.Envelope, 1)
	if err := bus.Subscribe(ctx, "vote.cast", "audit", func(_ context.Context, event events.Envelope) error {
		audit <- event
		return nil
	}); err != nil {
		t.Fatalf("subscribe audit: %v", err)
	}
	if err := bus.Subscribe(ctx, "vote.cast", "metrics", func(_ context.Context, event events.Envelope) error {
		metrics <- event
		return nil
	}); err != nil {
		t.Fatalf("subscribe metrics: %v", err)
	}

	if err := bus.Publish(ctx, "vote.cast", events.Envelope{EventID: "evt-1", EventType: "vote.cast"}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	for name, ch := range map[string]chan events.Envelope{"audit": audit, "metrics": metrics} {
		select {
		case event := <-ch:
			if event.EventID != "evt-1" {
				t.Fatalf("%s: unexpected event %+v", name, event)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("%s: expected delivery", name)
		}
	}
}

func TestBusIgnoresOtherTopics(t *testing.T) {
	bus, _ := NewBus(nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	received := make(chan events.Envelope, 1)
	_ = bus.Subscribe(ctx, "poll.created", "audit", func(_ context.Context, event events.Envelope) error {
		received <- event
		return nil
	})
	if err := bus.Publish(ctx, "vote.cast", events.Envelope{EventID: "evt-2"}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	select {
	case event := <-received:
		t.Fatalf("unexpected delivery %+v", event)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestBusReportsFullConsumerBuffer(t *testing.T) {
	bus, _ := NewBus(nil, nil)
	bus.bufferSize = 1
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	release := make(chan struct{})
	defer close(release)
	_ = bus.Subscribe(ctx, "vote.cast", "audit", func(ctx context.Context, _ events.Envelope) error {
		select {
		case <-release:
		case <-ctx.Done():
		}
		return nil
	})

	var err error
	for i := 0; i < 10 && err == nil; i++ {
		err = bus.Publish(ctx, "vote.cast", events.Envelope{EventID: "evt"})
	}
	if !errors.Is(err, ErrConsumerBufferFull) {
		t.Fatalf("expected ErrConsumerBufferFull, got %v", err)
	}
}
