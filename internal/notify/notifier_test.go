package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/bluecarbon-mrv/portal/internal/auth"
	"github.com/bluecarbon-mrv/portal/internal/mq"
	"github.com/bluecarbon-mrv/portal/internal/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type outbox struct {
	sent []Message
	err  error
}

func (o *outbox) Send(_ context.Context, msg Message) error {
	if o.err != nil {
		return o.err
	}
	o.sent = append(o.sent, msg)
	return nil
}

func event(t *testing.T, name string, payload any) mq.Event {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	return mq.Event{ID: "e-1", Name: name, Payload: raw}
}

func TestHandle_PasswordReset(t *testing.T) {
	box := &outbox{}
	n := New(box, zap.NewNop())

	err := n.Handle(context.Background(), event(t, mq.EventPasswordResetIssued, auth.PasswordResetEvent{
		UserID:     "u-1",
		Email:      "buyer@example.org",
		Token:      "tok",
		RedirectTo: "https://portal.example.org/buyer",
		ExpiresAt:  time.Date(2025, 1, 2, 3, 4, 0, 0, time.UTC),
	}))
	require.NoError(t, err)

	require.Len(t, box.sent, 1)
	assert.Equal(t, "buyer@example.org", box.sent[0].To)
	assert.Equal(t, "Reset your password", box.sent[0].Subject)
	assert.Contains(t, box.sent[0].Body, "https://portal.example.org/buyer?token=tok&type=recovery")
	assert.Contains(t, box.sent[0].Body, "2025-01-02 03:04 UTC")
}

func TestHandle_NGORegistered(t *testing.T) {
	box := &outbox{}
	n := New(box, zap.NewNop())

	err := n.Handle(context.Background(), event(t, mq.EventNGORegistered, services.NGORegisteredEvent{
		NGOID:         "n-1",
		NGOName:       "Mangrove Trust",
		ContactEmail:  "office@mangrove.example.org",
		FailedUploads: 1,
	}))
	require.NoError(t, err)

	require.Len(t, box.sent, 1)
	assert.Equal(t, "office@mangrove.example.org", box.sent[0].To)
	assert.Contains(t, box.sent[0].Body, "Mangrove Trust")
	assert.Contains(t, box.sent[0].Body, "1 document(s) could not be uploaded")
}

func TestHandle_SiteSubmittedSendsNoMail(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	box := &outbox{}
	n := New(box, zap.New(core))

	err := n.Handle(context.Background(), event(t, mq.EventSiteSubmitted, services.SiteSubmittedEvent{SiteID: "s-1", Area: 2.5}))
	require.NoError(t, err)

	assert.Empty(t, box.sent)
	require.Equal(t, 1, logs.FilterMessage("site submitted").Len())
}

func TestHandle_DropsBadPayload(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	box := &outbox{}
	n := New(box, zap.New(core))

	err := n.Handle(context.Background(), mq.Event{ID: "e-9", Name: mq.EventPasswordResetIssued, Payload: json.RawMessage(`"nope"`)})
	require.NoError(t, err)

	err = n.Handle(context.Background(), event(t, mq.EventPasswordResetIssued, auth.PasswordResetEvent{Email: "a@b.c", Token: "t", RedirectTo: "/buyer"}))
	require.NoError(t, err)

	assert.Empty(t, box.sent)
	assert.Equal(t, 2, logs.FilterMessage("dropping event").Len())
}

func TestHandle_MailerErrorIsReturned(t *testing.T) {
	box := &outbox{err: errors.New("smtp down")}
	n := New(box, zap.NewNop())

	err := n.Handle(context.Background(), event(t, mq.EventPasswordResetIssued, auth.PasswordResetEvent{
		Email: "a@b.c", Token: "t", RedirectTo: "https://portal.example.org/",
	}))
	assert.ErrorIs(t, err, box.err)
}

func TestLogMailer(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	require.NoError(t, NewLogMailer(zap.New(core)).Send(context.Background(), Message{To: "x@y.z", Subject: "hi"}))

	entries := logs.FilterMessage("mail").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "x@y.z", entries[0].ContextMap()["to"])
}

func TestLogMailer_RedactsResetToken(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	msg := Message{
		To:      "x@y.z",
		Subject: "Reset your password",
		Body:    "Open https://portal.test/buyer?token=eyJhbGciOi.secret.sig&type=recovery to continue.",
	}
	require.NoError(t, NewLogMailer(zap.New(core)).Send(context.Background(), msg))

	for _, entry := range logs.All() {
		for _, value := range entry.ContextMap() {
			assert.NotContains(t, fmt.Sprint(value), "eyJhbGciOi")
		}
	}
	body := logs.FilterMessage("mail").All()[0].ContextMap()["body"]
	assert.Equal(t, "Open https://portal.test/buyer?token=[redacted]&type=recovery to continue.", body)
}
