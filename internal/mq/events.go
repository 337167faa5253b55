package mq

import (
	"context"
	"fmt"
	"strings"

	"github.com/bluecarbon-mrv/portal/config"
)

// Event names published after domain writes.
const (
	EventSiteSubmitted       = "site.submitted"
	EventNGORegistered       = "ngo.registered"
	EventPasswordResetIssued = "auth.password_reset"
)

// Events lists every event the portal publishes.
var Events = []string{EventSiteSubmitted, EventNGORegistered, EventPasswordResetIssued}

// Attribute keys set on every message.
const (
	AttrContentType = "content_type"
	AttrEvent       = "event"
)

// Open builds the backend selected by cfg.MQ.Backend. An empty or "none"
// backend yields a Bus that drops every event.
func Open(ctx context.Context, cfg config.Config) (*Bus, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.MQ.Backend)) {
	case "", "none":
		return NewBus(Discard{}), nil
	case "rabbitmq":
		client, err := NewRabbitMQClient(cfg.RabbitMQ)
		if err != nil {
			return nil, err
		}
		return NewBus(client), nil
	case "pubsub":
		client, err := NewPubSubClient(ctx, cfg.PubSub)
		if err != nil {
			return nil, err
		}
		return NewBus(client), nil
	default:
		return nil, fmt.Errorf("unknown mq backend %q", cfg.MQ.Backend)
	}
}

// Discard is a Backend that accepts and drops every message.
type Discard struct{}

func (Discard) Publish(context.Context, string, []byte, map[string]string) (string, error) {
	return "", nil
}

func (Discard) Subscribe(ctx context.Context, _ string, _ []string, _ Handler) error {
	<-ctx.Done()
	return ctx.Err()
}

func (Discard) Close() error { return nil }
