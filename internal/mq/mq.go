package mq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Event is the envelope every domain event travels in. Payload holds the
// event specific JSON body.
type Event struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	OccurredAt time.Time       `json:"occurred_at"`
	Payload    json.RawMessage `json:"payload"`
}

// Decode unmarshals the payload into v.
func (e Event) Decode(v any) error {
	if err := json.Unmarshal(e.Payload, v); err != nil {
		return fmt.Errorf("decode %s payload: %w", e.Name, err)
	}
	return nil
}

// Delivery is a raw message handed over by a backend.
type Delivery struct {
	ID         string
	Topic      string
	Body       []byte
	Attributes map[string]string
}

// Handler processes a delivery. Returning an error requeues it.
type Handler func(ctx context.Context, d Delivery) error

// EventHandler processes a decoded event. Returning an error requeues it.
type EventHandler func(ctx context.Context, e Event) error

// Backend is a broker that routes messages by topic. Subscribers sharing a
// group split the deliveries between them.
type Backend interface {
	Publish(ctx context.Context, topic string, body []byte, attrs map[string]string) (string, error)
	Subscribe(ctx context.Context, group string, topics []string, handler Handler) error
	Close() error
}

// Bus publishes and consumes domain events over a Backend.
type Bus struct {
	backend Backend
	now     func() time.Time
}

// NewBus wraps backend.
func NewBus(backend Backend) *Bus {
	return &Bus{backend: backend, now: time.Now}
}

// PublishJSON wraps v in an Event envelope and publishes it on the topic
// named after the event.
func (b *Bus) PublishJSON(ctx context.Context, event string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", event, err)
	}
	body, err := json.Marshal(Event{
		ID:         uuid.NewString(),
		Name:       event,
		OccurredAt: b.now().UTC(),
		Payload:    payload,
	})
	if err != nil {
		return fmt.Errorf("marshal %s: %w", event, err)
	}

	_, err = b.backend.Publish(ctx, event, body, map[string]string{
		AttrContentType: "application/json",
		AttrEvent:       event,
	})
	if err != nil {
		return fmt.Errorf("publish %s: %w", event, err)
	}
	return nil
}

// Consume delivers the named events to handler until ctx is done.
// Deliveries that are not an Event envelope are acknowledged and dropped.
func (b *Bus) Consume(ctx context.Context, group string, events []string, handler EventHandler, onMalformed func(Delivery, error)) error {
	return b.backend.Subscribe(ctx, group, events, func(ctx context.Context, d Delivery) error {
		var event Event
		if err := json.Unmarshal(d.Body, &event); err != nil || event.Name == "" {
			if err == nil {
				err = errors.New("missing event name")
			}
			if onMalformed != nil {
				onMalformed(d, err)
			}
			return nil
		}
		return handler(ctx, event)
	})
}

// Close releases the backend.
func (b *Bus) Close() error {
	return b.backend.Close()
}
