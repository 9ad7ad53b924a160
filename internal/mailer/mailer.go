// Package mailer sends templated notification email over SMTP.
package mailer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wneessen/go-mail"
	"go.uber.org/zap"
)

// ErrNotConfigured is returned when any required SMTP setting is missing.
// Validation happens before any network call.
var ErrNotConfigured = errors.New("mailer: SMTP host/port/credentials/from-address not configured")

// plainFallback accompanies every HTML body for clients without HTML support.
const plainFallback = "Your mail client does not support HTML messages."

type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

type Mailer struct {
	cfg    Config
	logger *zap.Logger
}

func New(cfg Config, logger *zap.Logger) *Mailer {
	return &Mailer{cfg: cfg, logger: logger}
}

// Send delivers one message. Port 465 uses implicit TLS, any other port
// requires STARTTLS. An HTML body is always paired with a plain-text
// fallback part.
func (m *Mailer) Send(ctx context.Context, toAddr, subject, body string, isHTML bool) error {
	if m.cfg.Host == "" || m.cfg.Port == 0 || m.cfg.Username == "" || m.cfg.Password == "" || m.cfg.From == "" {
		return ErrNotConfigured
	}

	msg := mail.NewMsg()
	if err := msg.From(m.cfg.From); err != nil {
		return fmt.Errorf("invalid from address %q: %w", m.cfg.From, err)
	}
	if err := msg.To(toAddr); err != nil {
		return fmt.Errorf("invalid recipient %q: %w", toAddr, err)
	}
	msg.Subject(subject)

	if isHTML {
		msg.SetBodyString(mail.TypeTextPlain, plainFallback)
		msg.AddAlternativeString(mail.TypeTextHTML, body)
	} else {
		msg.SetBodyString(mail.TypeTextPlain, body)
	}

	opts := []mail.Option{
		mail.WithPort(m.cfg.Port),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(m.cfg.Username),
		mail.WithPassword(m.cfg.Password),
		mail.WithTimeout(60 * time.Second),
	}
	if m.cfg.Port == 465 {
		opts = append(opts, mail.WithSSLPort(false))
	} else {
		opts = append(opts, mail.WithTLSPortPolicy(mail.TLSMandatory))
	}

	client, err := mail.NewClient(m.cfg.Host, opts...)
	if err != nil {
		return fmt.Errorf("create smtp client: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("send email to %s: %w", toAddr, err)
	}

	m.logger.Info("email sent",
		zap.String("to", toAddr),
		zap.String("subject", subject),
		zap.Bool("html", isHTML),
	)
	return nil
}
