package mq

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"cloud.google.com/go/pubsub"
	"github.com/bluecarbon-mrv/portal/config"
	"golang.org/x/sync/errgroup"
	"google.golang.org/api/option"
)

// PubSubClient maps each event topic to a Pub/Sub topic and each subscriber
// group to one subscription per topic.
type PubSubClient struct {
	client      *pubsub.Client
	topicPrefix string

	mu     sync.Mutex
	topics map[string]*pubsub.Topic
}

// NewPubSubClient constructs a Pub/Sub client from config.
func NewPubSubClient(ctx context.Context, cfg config.PubSubConfig) (*PubSubClient, error) {
	if strings.TrimSpace(cfg.ProjectID) == "" {
		return nil, errors.New("pubsub project id is required")
	}

	var opts []option.ClientOption
	if strings.TrimSpace(cfg.CredentialsFile) != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	client, err := pubsub.NewClient(ctx, cfg.ProjectID, opts...)
	if err != nil {
		return nil, err
	}

	return &PubSubClient{
		client:      client,
		topicPrefix: strings.TrimSpace(cfg.TopicPrefix),
		topics:      map[string]*pubsub.Topic{},
	}, nil
}

// Publish sends body to the topic and waits for the server message id.
func (p *PubSubClient) Publish(ctx context.Context, topic string, body []byte, attrs map[string]string) (string, error) {
	if strings.TrimSpace(topic) == "" {
		return "", errors.New("pubsub topic is required")
	}

	t, err := p.topic(ctx, topic)
	if err != nil {
		return "", err
	}
	return t.Publish(ctx, &pubsub.Message{Data: body, Attributes: attrs}).Get(ctx)
}

// Subscribe receives from one subscription per topic until ctx is done or a
// subscription fails. Handler errors nack the message.
func (p *PubSubClient) Subscribe(ctx context.Context, group string, topics []string, handler Handler) error {
	if strings.TrimSpace(group) == "" {
		return errors.New("pubsub subscriber group is required")
	}
	if len(topics) == 0 {
		return errors.New("pubsub subscription needs at least one topic")
	}

	g, ctx := errgroup.WithContext(ctx)
	for _, topic := range topics {
		t, err := p.topic(ctx, topic)
		if err != nil {
			return err
		}
		sub, err := p.subscription(ctx, group+"."+t.ID(), t)
		if err != nil {
			return err
		}

		g.Go(func() error {
			return sub.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
				d := Delivery{ID: msg.ID, Topic: topic, Body: msg.Data, Attributes: msg.Attributes}
				if err := handler(ctx, d); err != nil {
					msg.Nack()
					return
				}
				msg.Ack()
			})
		})
	}
	return g.Wait()
}

// Close flushes pending publishes and closes the client.
func (p *PubSubClient) Close() error {
	p.mu.Lock()
	for _, t := range p.topics {
		t.Stop()
	}
	p.topics = map[string]*pubsub.Topic{}
	p.mu.Unlock()
	return p.client.Close()
}

// topic returns the cached handle for name, creating the topic on first use.
func (p *PubSubClient) topic(ctx context.Context, name string) (*pubsub.Topic, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if t, ok := p.topics[name]; ok {
		return t, nil
	}

	id := p.topicPrefix + name
	t := p.client.Topic(id)
	exists, err := t.Exists(ctx)
	if err != nil {
		return nil, fmt.Errorf("check topic %s: %w", id, err)
	}
	if !exists {
		if t, err = p.client.CreateTopic(ctx, id); err != nil {
			return nil, fmt.Errorf("create topic %s: %w", id, err)
		}
	}
	p.topics[name] = t
	return t, nil
}

func (p *PubSubClient) subscription(ctx context.Context, name string, topic *pubsub.Topic) (*pubsub.Subscription, error) {
	sub := p.client.Subscription(name)
	exists, err := sub.Exists(ctx)
	if err != nil {
		return nil, fmt.Errorf("check subscription %s: %w", name, err)
	}
	if !exists {
		sub, err = p.client.CreateSubscription(ctx, name, pubsub.SubscriptionConfig{Topic: topic})
		if err != nil {
			return nil, fmt.Errorf("create subscription %s: %w", name, err)
		}
	}
	return sub, nil
}
