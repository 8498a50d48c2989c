// Package smtpmail delivers notification emails over SMTP.
package smtpmail

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/latrastienda/tienda/internal/application/notification"
	"github.com/latrastienda/tienda/internal/observability"
	"github.com/latrastienda/tienda/internal/observability/logctx"
	"gopkg.in/mail.v2"
)

const dialTimeout = 10 * time.Second

var ErrNoRecipients = errors.New("smtpmail: message has no recipients")

type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	// From is the envelope and header sender, e.g. "Tienda <pedidos@example.com>".
	From string
	// ReplyTo is used when a message does not set its own.
	ReplyTo string
}

type Mailer struct {
	dialer  *mail.Dialer
	from    string
	replyTo string
}

func New(cfg Config) *Mailer {
	d := mail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
	d.Timeout = dialTimeout
	return &Mailer{dialer: d, from: cfg.From, replyTo: cfg.ReplyTo}
}

// Send opens one SMTP session per message. The context is only checked before
// dialing; the SMTP client has no cancellation hook.
func (m *Mailer) Send(ctx context.Context, msg notification.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	mm, err := m.build(msg)
	if err != nil {
		return err
	}
	if err := m.dialer.DialAndSend(mm); err != nil {
		return fmt.Errorf("smtpmail: send: %w", err)
	}
	return nil
}

func (m *Mailer) build(msg notification.Message) (*mail.Message, error) {
	if len(msg.To) == 0 {
		return nil, ErrNoRecipients
	}
	mm := mail.NewMessage()
	mm.SetHeader("From", m.from)
	mm.SetHeader("To", msg.To...)
	replyTo := msg.ReplyTo
	if replyTo == "" {
		replyTo = m.replyTo
	}
	if replyTo != "" {
		mm.SetHeader("Reply-To", replyTo)
	}
	mm.SetHeader("Subject", msg.Subject)
	mm.SetBody("text/html", msg.HTML)

	for _, a := range msg.Attachments {
		content := a.Content
		mm.Attach(a.Filename,
			mail.SetCopyFunc(func(w io.Writer) error {
				_, err := w.Write(content)
				return err
			}),
			mail.SetHeader(map[string][]string{"Content-Type": {a.ContentType}}),
		)
	}
	return mm, nil
}

// LogMailer stands in when SMTP is not configured: messages are logged and dropped.
type LogMailer struct {
	log observability.Logger
}

func NewLogMailer(tel observability.Observability) *LogMailer {
	return &LogMailer{log: observability.OrNop(tel).Logger().With(observability.F("component", "mailer"))}
}

func (m *LogMailer) Send(ctx context.Context, msg notification.Message) error {
	if len(msg.To) == 0 {
		return ErrNoRecipients
	}
	names := make([]string, 0, len(msg.Attachments))
	for _, a := range msg.Attachments {
		names = append(names, a.Filename)
	}
	logctx.FromOr(ctx, m.log).Info("mail_not_sent_smtp_disabled",
		observability.F("to", msg.To),
		observability.F("subject", msg.Subject),
		observability.F("attachments", names),
	)
	return nil
}
