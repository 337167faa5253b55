// Package notify turns portal events into outgoing mail.
package notify

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/bluecarbon-mrv/portal/internal/auth"
	"github.com/bluecarbon-mrv/portal/internal/mq"
	"github.com/bluecarbon-mrv/portal/internal/services"
	"go.uber.org/zap"
)

// Group is the subscriber group the notifier consumes as.
const Group = "notifier"

// Message is a composed mail.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Mailer delivers composed mail.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// LogMailer writes mail to the log instead of delivering it.
type LogMailer struct {
	logger *zap.Logger
}

func NewLogMailer(logger *zap.Logger) *LogMailer {
	return &LogMailer{logger: logger}
}

// Send logs msg with credentials in links masked.
func (m *LogMailer) Send(_ context.Context, msg Message) error {
	m.logger.Info("mail",
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject),
		zap.String("body", redactTokens(msg.Body)),
	)
	return nil
}

var tokenParam = regexp.MustCompile(`(token=)[^&\s]+`)

func redactTokens(body string) string {
	return tokenParam.ReplaceAllString(body, "${1}[redacted]")
}

// Notifier handles events consumed from the bus.
type Notifier struct {
	mailer Mailer
	logger *zap.Logger
}

func New(mailer Mailer, logger *zap.Logger) *Notifier {
	return &Notifier{mailer: mailer, logger: logger}
}

// Handle composes and sends the mail for e. Undecodable payloads are logged
// and dropped; mailer errors are returned so the event is redelivered.
func (n *Notifier) Handle(ctx context.Context, e mq.Event) error {
	msg, ok, err := n.compose(e)
	if err != nil {
		n.logger.Warn("dropping event", zap.String("event", e.Name), zap.String("event_id", e.ID), zap.Error(err))
		return nil
	}
	if !ok {
		return nil
	}
	if err := n.mailer.Send(ctx, msg); err != nil {
		return fmt.Errorf("send %s mail: %w", e.Name, err)
	}
	return nil
}

// Malformed logs deliveries that are not events.
func (n *Notifier) Malformed(d mq.Delivery, err error) {
	n.logger.Warn("malformed delivery", zap.String("id", d.ID), zap.String("topic", d.Topic), zap.Error(err))
}

func (n *Notifier) compose(e mq.Event) (Message, bool, error) {
	switch e.Name {
	case mq.EventPasswordResetIssued:
		var payload auth.PasswordResetEvent
		if err := e.Decode(&payload); err != nil {
			return Message{}, false, err
		}
		link, err := resetLink(payload.RedirectTo, payload.Token)
		if err != nil {
			return Message{}, false, err
		}
		return Message{
			To:      payload.Email,
			Subject: "Reset your password",
			Body: fmt.Sprintf("Follow this link to choose a new password:\n\n%s\n\nThe link expires at %s.",
				link, payload.ExpiresAt.UTC().Format("2006-01-02 15:04 MST")),
		}, true, nil

	case mq.EventNGORegistered:
		var payload services.NGORegisteredEvent
		if err := e.Decode(&payload); err != nil {
			return Message{}, false, err
		}
		if strings.TrimSpace(payload.ContactEmail) == "" {
			return Message{}, false, nil
		}
		body := fmt.Sprintf("We have received the registration details of %s.", payload.NGOName)
		if payload.FailedUploads > 0 {
			body += fmt.Sprintf(" %d document(s) could not be uploaded; please send them again from the portal.", payload.FailedUploads)
		}
		return Message{To: payload.ContactEmail, Subject: "NGO registration received", Body: body}, true, nil

	case mq.EventSiteSubmitted:
		var payload services.SiteSubmittedEvent
		if err := e.Decode(&payload); err != nil {
			return Message{}, false, err
		}
		n.logger.Info("site submitted",
			zap.String("site_id", payload.SiteID),
			zap.String("field_worker_id", payload.FieldWorkerID),
			zap.Float64("area", payload.Area),
		)
		return Message{}, false, nil

	default:
		n.logger.Debug("ignoring event", zap.String("event", e.Name))
		return Message{}, false, nil
	}
}

// resetLink appends the recovery token to the portal page the user returns to.
func resetLink(redirectTo, token string) (string, error) {
	if token == "" {
		return "", errors.New("missing reset token")
	}
	u, err := url.Parse(redirectTo)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("invalid redirect %q", redirectTo)
	}
	q := u.Query()
	q.Set("type", "recovery")
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
