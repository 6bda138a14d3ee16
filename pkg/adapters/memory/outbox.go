package memory

import (
	"context"
	"log/slog"
	"sync"

	"github.com/aretw0/insurai/internal/logging"
	"github.com/aretw0/insurai/pkg/ports"
)

// SMS is a text message captured by the Outbox.
type SMS struct {
	To   string
	Body string
}

// Outbox implements ports.SMSSender and ports.Mailer by recording
// (and logging) every message instead of delivering it.
type Outbox struct {
	mu     sync.Mutex
	sms    []SMS
	emails []ports.Email
	logger *slog.Logger
}

// NewOutbox creates an outbox. A nil logger discards log lines.
func NewOutbox(logger *slog.Logger) *Outbox {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Outbox{logger: logger}
}

// SendSMS records the message.
func (o *Outbox) SendSMS(ctx context.Context, to, body string) error {
	o.mu.Lock()
	o.sms = append(o.sms, SMS{To: to, Body: body})
	o.mu.Unlock()
	o.logger.Info("sms captured", "to", to, "body", body)
	return nil
}

// SendEmail records the message.
func (o *Outbox) SendEmail(ctx context.Context, email ports.Email) error {
	o.mu.Lock()
	o.emails = append(o.emails, email)
	o.mu.Unlock()
	o.logger.Info("email captured", "to", email.To, "subject", email.Subject, "attachments", len(email.Attachments))
	return nil
}

// SMS returns the captured text messages.
func (o *Outbox) SMS() []SMS {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]SMS(nil), o.sms...)
}

// Emails returns the captured emails.
func (o *Outbox) Emails() []ports.Email {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]ports.Email(nil), o.emails...)
}
