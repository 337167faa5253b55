package mq

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/bluecarbon-mrv/portal/config"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingBackend stores the last publish and replays deliveries to
// subscribers.
type recordingBackend struct {
	topic      string
	body       []byte
	attrs      map[string]string
	err        error
	deliveries []Delivery
	acked      []string
	group      string
	subscribed []string
}

func (r *recordingBackend) Publish(_ context.Context, topic string, body []byte, attrs map[string]string) (string, error) {
	r.topic = topic
	r.body = body
	r.attrs = attrs
	return "msg-1", r.err
}

func (r *recordingBackend) Subscribe(ctx context.Context, group string, topics []string, handler Handler) error {
	r.group = group
	r.subscribed = topics
	for _, d := range r.deliveries {
		if err := handler(ctx, d); err == nil {
			r.acked = append(r.acked, d.ID)
		}
	}
	return nil
}

func (r *recordingBackend) Close() error { return nil }

func TestPublishJSON_WrapsPayloadInEnvelope(t *testing.T) {
	backend := &recordingBackend{}
	bus := NewBus(backend)
	bus.now = func() time.Time { return time.Date(2025, 3, 1, 9, 30, 0, 0, time.UTC) }

	err := bus.PublishJSON(context.Background(), EventSiteSubmitted, map[string]any{"site_id": "s-1"})
	require.NoError(t, err)

	assert.Equal(t, EventSiteSubmitted, backend.topic)
	assert.Equal(t, "application/json", backend.attrs[AttrContentType])
	assert.Equal(t, EventSiteSubmitted, backend.attrs[AttrEvent])

	var event Event
	require.NoError(t, json.Unmarshal(backend.body, &event))
	assert.NotEmpty(t, event.ID)
	assert.Equal(t, EventSiteSubmitted, event.Name)
	assert.True(t, event.OccurredAt.Equal(time.Date(2025, 3, 1, 9, 30, 0, 0, time.UTC)))

	var payload map[string]string
	require.NoError(t, event.Decode(&payload))
	assert.Equal(t, "s-1", payload["site_id"])
}

func TestPublishJSON_WrapsBackendError(t *testing.T) {
	backend := &recordingBackend{err: errors.New("connection reset")}
	bus := NewBus(backend)

	err := bus.PublishJSON(context.Background(), EventNGORegistered, struct{}{})
	assert.ErrorContains(t, err, "publish ngo.registered")
	assert.ErrorIs(t, err, backend.err)
}

func TestPublishJSON_MarshalError(t *testing.T) {
	bus := NewBus(&recordingBackend{})
	err := bus.PublishJSON(context.Background(), EventSiteSubmitted, make(chan int))
	assert.ErrorContains(t, err, "marshal site.submitted")
}

func TestConsume_DecodesEventsAndDropsMalformed(t *testing.T) {
	good, err := json.Marshal(Event{ID: "e-1", Name: EventNGORegistered, Payload: json.RawMessage(`{"ngo_id":"n-1"}`)})
	require.NoError(t, err)

	backend := &recordingBackend{deliveries: []Delivery{
		{ID: "d-1", Body: good},
		{ID: "d-2", Body: []byte("not json")},
		{ID: "d-3", Body: []byte(`{"id":"x"}`)},
	}}
	bus := NewBus(backend)

	var handled []Event
	var malformed []string
	err = bus.Consume(context.Background(), "notifier", Events, func(_ context.Context, e Event) error {
		handled = append(handled, e)
		return nil
	}, func(d Delivery, _ error) {
		malformed = append(malformed, d.ID)
	})
	require.NoError(t, err)

	assert.Equal(t, "notifier", backend.group)
	assert.Equal(t, Events, backend.subscribed)
	require.Len(t, handled, 1)
	assert.Equal(t, EventNGORegistered, handled[0].Name)
	assert.Equal(t, []string{"d-2", "d-3"}, malformed)
	assert.Equal(t, []string{"d-1", "d-2", "d-3"}, backend.acked)
}

func TestConsume_HandlerErrorIsNotAcked(t *testing.T) {
	body, err := json.Marshal(Event{ID: "e-1", Name: EventSiteSubmitted, Payload: json.RawMessage(`{}`)})
	require.NoError(t, err)

	backend := &recordingBackend{deliveries: []Delivery{{ID: "d-1", Body: body}}}
	err = NewBus(backend).Consume(context.Background(), "g", []string{EventSiteSubmitted}, func(context.Context, Event) error {
		return errors.New("mailer down")
	}, nil)
	require.NoError(t, err)
	assert.Empty(t, backend.acked)
}

func TestOpen_DefaultsToDiscard(t *testing.T) {
	bus, err := Open(context.Background(), config.Config{})
	require.NoError(t, err)
	assert.NoError(t, bus.PublishJSON(context.Background(), EventPasswordResetIssued, map[string]string{}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, bus.Consume(ctx, "g", Events, nil, nil), context.Canceled)
	assert.NoError(t, bus.Close())

	_, err = Open(context.Background(), config.Config{MQ: config.MQConfig{Backend: "kafka"}})
	assert.ErrorContains(t, err, "unknown mq backend")
}

func TestAMQPPublishing(t *testing.T) {
	p := amqpPublishing([]byte("{}"), map[string]string{AttrContentType: "application/json", AttrEvent: EventSiteSubmitted})

	assert.Equal(t, "application/json", p.ContentType)
	assert.Equal(t, amqp.Persistent, p.DeliveryMode)
	assert.NotEmpty(t, p.MessageId)
	assert.Equal(t, amqp.Table{AttrEvent: EventSiteSubmitted}, p.Headers)
}

func TestFromAMQP(t *testing.T) {
	d := fromAMQP(amqp.Delivery{
		MessageId:   "m-1",
		RoutingKey:  EventNGORegistered,
		ContentType: "application/json",
		Headers:     amqp.Table{AttrEvent: EventNGORegistered},
		Body:        []byte("{}"),
	})

	assert.Equal(t, "m-1", d.ID)
	assert.Equal(t, EventNGORegistered, d.Topic)
	assert.Equal(t, map[string]string{AttrEvent: EventNGORegistered, AttrContentType: "application/json"}, d.Attributes)
}

func TestHeadersToAttributes(t *testing.T) {
	attrs := headersToAttributes(amqp.Table{"a": "x", "b": []byte("y"), "c": 3})
	assert.Equal(t, map[string]string{"a": "x", "b": "y", "c": "3"}, attrs)
	assert.Nil(t, headersToAttributes(nil))
}
