package mq

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bluecarbon-mrv/portal/config"
	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

const defaultExchange = "bluecarbon.events"

// RabbitMQClient publishes to a topic exchange, using the event name as the
// routing key. Each subscriber group owns one queue bound to its topics.
type RabbitMQClient struct {
	conn            *amqp.Connection
	channel         *amqp.Channel
	exchange        string
	queueDurable    bool
	queueAutoDelete bool
}

// NewRabbitMQClient dials RabbitMQ and declares the events exchange.
func NewRabbitMQClient(cfg config.RabbitMQConfig) (*RabbitMQClient, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, errors.New("rabbitmq url is required")
	}
	exchange := strings.TrimSpace(cfg.Exchange)
	if exchange == "" {
		exchange = defaultExchange
	}

	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	if cfg.PrefetchCount > 0 {
		if err := ch.Qos(cfg.PrefetchCount, 0, false); err != nil {
			_ = ch.Close()
			_ = conn.Close()
			return nil, fmt.Errorf("set qos: %w", err)
		}
	}

	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}

	return &RabbitMQClient{
		conn:            conn,
		channel:         ch,
		exchange:        exchange,
		queueDurable:    cfg.QueueDurable,
		queueAutoDelete: cfg.QueueAutoDelete,
	}, nil
}

// Publish routes body to every queue bound to topic.
func (r *RabbitMQClient) Publish(ctx context.Context, topic string, body []byte, attrs map[string]string) (string, error) {
	if strings.TrimSpace(topic) == "" {
		return "", errors.New("rabbitmq topic is required")
	}

	publishing := amqpPublishing(body, attrs)
	if err := r.channel.PublishWithContext(ctx, r.exchange, topic, false, false, publishing); err != nil {
		return "", err
	}
	return publishing.MessageId, nil
}

// Subscribe binds the group's queue to topics and consumes it until ctx is
// done. Handler errors requeue the delivery.
func (r *RabbitMQClient) Subscribe(ctx context.Context, group string, topics []string, handler Handler) error {
	if strings.TrimSpace(group) == "" {
		return errors.New("rabbitmq subscriber group is required")
	}
	if len(topics) == 0 {
		return errors.New("rabbitmq subscription needs at least one topic")
	}

	queue, err := r.channel.QueueDeclare(group, r.queueDurable, r.queueAutoDelete, false, false, nil)
	if err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}
	for _, topic := range topics {
		if err := r.channel.QueueBind(queue.Name, topic, r.exchange, false, nil); err != nil {
			return fmt.Errorf("bind %s: %w", topic, err)
		}
	}

	consumerTag := group + "-" + uuid.NewString()
	deliveries, err := r.channel.ConsumeWithContext(ctx, queue.Name, consumerTag, false, false, false, false, nil)
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case delivery, ok := <-deliveries:
			if !ok {
				return errors.New("rabbitmq delivery channel closed")
			}
			if err := handler(ctx, fromAMQP(delivery)); err != nil {
				_ = delivery.Nack(false, true)
				continue
			}
			_ = delivery.Ack(false)
		}
	}
}

// Close closes the underlying channel and connection.
func (r *RabbitMQClient) Close() error {
	if r.channel != nil {
		_ = r.channel.Close()
	}
	if r.conn != nil {
		return r.conn.Close()
	}
	return nil
}

func amqpPublishing(body []byte, attrs map[string]string) amqp.Publishing {
	publishing := amqp.Publishing{
		ContentType:  "application/octet-stream",
		DeliveryMode: amqp.Persistent,
		MessageId:    uuid.NewString(),
		Headers:      amqp.Table{},
		Body:         body,
	}
	for key, value := range attrs {
		if key == AttrContentType {
			publishing.ContentType = value
			continue
		}
		publishing.Headers[key] = value
	}
	return publishing
}

func fromAMQP(delivery amqp.Delivery) Delivery {
	attrs := headersToAttributes(delivery.Headers)
	if delivery.ContentType != "" {
		if attrs == nil {
			attrs = map[string]string{}
		}
		attrs[AttrContentType] = delivery.ContentType
	}
	return Delivery{
		ID:         delivery.MessageId,
		Topic:      delivery.RoutingKey,
		Body:       delivery.Body,
		Attributes: attrs,
	}
}

func headersToAttributes(headers amqp.Table) map[string]string {
	if len(headers) == 0 {
		return nil
	}
	attrs := make(map[string]string, len(headers))
	for key, value := range headers {
		switch typed := value.(type) {
		case string:
			attrs[key] = typed
		case []byte:
			attrs[key] = string(typed)
		default:
			attrs[key] = fmt.Sprint(value)
		}
	}
	return attrs
}
