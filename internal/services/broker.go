package services

import (
	"context"
	"encoding/json"
	"log"
	"sync"

	"github.com/redis/go-redis/v9"
)

// Broker is the change feed behind every live subscription: presence,
// pending-request inboxes and in-session streams. Subscribers are read-only
// watchers; tearing one down never mutates coordinator state.
type Broker interface {
	Publish(ctx context.Context, topic string, payload []byte) error
	// Subscribe returns a channel of payloads for the topic and a cancel
	// function. Resubscribing to the same topic is always safe.
	Subscribe(ctx context.Context, topic string) (<-chan []byte, func())
	Close() error
}

// Event is the envelope published on every topic.
type Event struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

const (
	EventRequestCreated  = "request.created"
	EventRequestAccepted = "request.accepted"
	EventSessionClosed   = "session.closed"
	EventMessageAppended = "message.appended"
	EventPresenceChanged = "presence.changed"
)

func SessionTopic(roomID string) string    { return "session." + roomID }
func AdvisorTopic(advisorID string) string { return "advisor." + advisorID }

func publishEvent(ctx context.Context, b Broker, topic, eventType string, payload interface{}) {
	data, err := json.Marshal(Event{Type: eventType, Payload: payload})
	if err != nil {
		log.Printf("[BROKER] Failed to marshal %s event: %v", eventType, err)
		return
	}
	if err := b.Publish(ctx, topic, data); err != nil {
		log.Printf("[BROKER] Failed to publish %s to %s: %v", eventType, topic, err)
	}
}

// redisBroker fans events out through redis pub/sub so every service
// instance sees every event regardless of which instance committed it.
type redisBroker struct {
	client *redis.Client
}

func NewRedisBroker(client *redis.Client) Broker {
	return &redisBroker{client: client}
}

func (b *redisBroker) Publish(ctx context.Context, topic string, payload []byte) error {
	return b.client.Publish(ctx, topic, payload).Err()
}

func (b *redisBroker) Subscribe(ctx context.Context, topic string) (<-chan []byte, func()) {
	sub := b.client.Subscribe(ctx, topic)
	out := make(chan []byte, 64)

	go func() {
		defer close(out)
		for msg := range sub.Channel() {
			select {
			case out <- []byte(msg.Payload):
			case <-ctx.Done():
				return
			}
		}
	}()

	cancel := func() {
		if err := sub.Close(); err != nil {
			log.Printf("[BROKER] Failed to close subscription on %s: %v", topic, err)
		}
	}
	return out, cancel
}

func (b *redisBroker) Close() error {
	return nil // the shared redis client is closed by the shutdown manager
}

// memoryBroker is an in-process broker for single-node runs and tests.
type memoryBroker struct {
	mu     sync.RWMutex
	subs   map[string]map[int]chan []byte
	nextID int
	closed bool
}

func NewMemoryBroker() Broker {
	return &memoryBroker{subs: make(map[string]map[int]chan []byte)}
}

func (b *memoryBroker) Publish(_ context.Context, topic string, payload []byte) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subs[topic] {
		select {
		case ch <- payload:
		default:
			// Slow subscriber; drop rather than block publishers.
		}
	}
	return nil
}

func (b *memoryBroker) Subscribe(_ context.Context, topic string) (<-chan []byte, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.subs[topic] == nil {
		b.subs[topic] = make(map[int]chan []byte)
	}
	id := b.nextID
	b.nextID++
	ch := make(chan []byte, 64)
	b.subs[topic][id] = ch

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if sub, ok := b.subs[topic][id]; ok {
			delete(b.subs[topic], id)
			close(sub)
		}
	}
	return ch, cancel
}

func (b *memoryBroker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	for topic, subs := range b.subs {
		for id, ch := range subs {
			delete(subs, id)
			close(ch)
		}
		delete(b.subs, topic)
	}
	return nil
}
