// AngelaMos | 2026
// smtp.go

package mail

import (
	"context"
	"log/slog"

	"github.com/samber/oops"
	"gopkg.in/gomail.v2"

	"github.com/carterperez-dev/templates/account-service/internal/config"
)

type dialer interface {
	DialAndSend(m ...*gomail.Message) error
}

type SMTPMailer struct {
	dialer   dialer
	from     string
	renderer *Renderer
}

func NewSMTPMailer(cfg config.MailConfig, renderer *Renderer) *SMTPMailer {
	return &SMTPMailer{
		dialer: gomail.NewDialer(
			cfg.SMTPHost,
			cfg.SMTPPort,
			cfg.SMTPUser,
			cfg.SMTPPassword,
		),
		from:     cfg.FromAddress,
		renderer: renderer,
	}
}

// Send renders and delivers msg. gomail does not take a context, so a
// cancelled request is checked before dialing.
func (m *SMTPMailer) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return oops.Code("MAIL_SEND_CANCELLED").With("to", msg.To).Wrap(err)
	}

	body, err := m.renderer.Render(msg)
	if err != nil {
		return err
	}

	gm := gomail.NewMessage()
	gm.SetHeader("From", m.from)
	gm.SetHeader("To", msg.To)
	gm.SetHeader("Subject", msg.Subject)
	gm.SetBody("text/html", body)

	if err := m.dialer.DialAndSend(gm); err != nil {
		return oops.Code("MAIL_SEND_FAILED").
			With("to", msg.To).
			With("template", string(msg.Template)).
			Wrap(err)
	}

	return nil
}

// LogMailer writes messages to the log instead of sending them. Used when no
// SMTP host is configured.
type LogMailer struct {
	logger   *slog.Logger
	renderer *Renderer
}

func NewLogMailer(logger *slog.Logger, renderer *Renderer) *LogMailer {
	return &LogMailer{logger: logger, renderer: renderer}
}

func (m *LogMailer) Send(ctx context.Context, msg Message) error {
	if _, err := m.renderer.Render(msg); err != nil {
		return err
	}

	m.logger.InfoContext(ctx, "mail not sent, smtp disabled",
		"to", msg.To,
		"subject", msg.Subject,
		"template", string(msg.Template),
		"link", msg.Data.Link,
	)
	return nil
}

// New picks the SMTP mailer when a host is configured.
func New(cfg config.MailConfig, renderer *Renderer, logger *slog.Logger) Mailer {
	if cfg.SMTPHost == "" {
		return NewLogMailer(logger, renderer)
	}
	return NewSMTPMailer(cfg, renderer)
}
