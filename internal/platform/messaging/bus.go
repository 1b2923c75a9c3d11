package messaging

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"pollledger/internal/shared/events"
)

// ErrConsumerBufferFull reports that at least one consumer group could not
// accept the event. The publisher should retry; consumers dedupe by event ID.
var ErrConsumerBufferFull = errors.New("consumer buffer full")

// Bus is the event bus used by the outbox relay and ledger consumers.
// Delivery is in-process; each consumer group on a topic receives every
// event once, in publish order.
type Bus struct {
	mu          sync.RWMutex
	brokers     []string
	subscribers map[string]map[string]chan events.Envelope
	bufferSize  int
	logger      *slog.Logger
}

func NewBus(brokers []string, logger *slog.Logger) (*Bus, error) {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{
		brokers:     append([]string(nil), brokers...),
		subscribers: make(map[string]map[string]chan events.Envelope),
		bufferSize:  256,
		logger:      logger,
	}, nil
}

// Brokers returns the configured broker addresses.
func (b *Bus) Brokers() []string {
	return append([]string(nil), b.brokers...)
}

func (b *Bus) Publish(ctx context.Context, topic string, event events.Envelope) error {
	b.mu.RLock()
	groups := make(map[string]chan events.Envelope, len(b.subscribers[topic]))
	for group, ch := range b.subscribers[topic] {
		groups[group] = ch
	}
	b.mu.RUnlock()

	var full []string
	for group, ch := range groups {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ch <- event:
		default:
			full = append(full, group)
			b.logger.Warn("consumer group buffer full",
				"event", "bus_publish_buffer_full",
				"module", "internal/platform/messaging",
				"layer", "platform",
				"topic", topic,
				"consumer_group", group,
				"event_id", event.EventID,
			)
		}
	}
	if len(full) > 0 {
		return fmt.Errorf("publish %s to %v: %w", topic, full, ErrConsumerBufferFull)
	}

	b.logger.Debug("event published",
		"event", "bus_publish",
		"module", "internal/platform/messaging",
		"layer", "platform",
		"topic", topic,
		"event_id", event.EventID,
		"event_type", event.EventType,
		"consumer_groups", len(groups),
	)
	return nil
}

// Subscribe registers handler for topic under consumerGroup until ctx is
// cancelled. A second subscription for the same group replaces the first.
func (b *Bus) Subscribe(
	ctx context.Context,
	topic string,
	consumerGroup string,
	handler func(context.Context, events.Envelope) error,
) error {
	ch := make(chan events.Envelope, b.bufferSize)

	b.mu.Lock()
	if b.subscribers[topic] == nil {
		b.subscribers[topic] = make(map[string]chan events.Envelope)
	}
	b.subscribers[topic][consumerGroup] = ch
	b.mu.Unlock()

	go func() {
		for {
			select {
			case <-ctx.Done():
				b.removeSubscriber(topic, consumerGroup, ch)
				return
			case event := <-ch:
				if err := handler(ctx, event); err != nil {
					b.logger.Error("consumer handler failed",
						"event", "bus_consume_failed",
						"module", "internal/platform/messaging",
						"layer", "platform",
						"topic", topic,
						"consumer_group", consumerGroup,
						"event_id", event.EventID,
						"event_type", event.EventType,
						"error", err.Error(),
					)
				}
			}
		}
	}()
	return nil
}

func (b *Bus) removeSubscriber(topic string, consumerGroup string, target chan events.Envelope) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if current, ok := b.subscribers[topic][consumerGroup]; ok && current == target {
		delete(b.subscribers[topic], consumerGroup)
	}
}
