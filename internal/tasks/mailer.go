package tasks

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"waos/internal/config"
	"waos/internal/utils/logger"
)

// Mailer delivers plain text e-mail.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

// NewMailer returns an SMTP mailer when mail is configured, a logging one otherwise.
func NewMailer(cfg config.MailConfig) Mailer {
	if !cfg.Enabled() {
		return &LogMailer{logger: logger.New("MAIL")}
	}
	return &SMTPMailer{cfg: cfg, send: smtp.SendMail}
}

type SMTPMailer struct {
	cfg  config.MailConfig
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func (m *SMTPMailer) Send(ctx context.Context, to, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var auth smtp.Auth
	if m.cfg.Username != "" {
		auth = smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	}

	addr := fmt.Sprintf("%s:%d", m.cfg.Host, m.cfg.Port)
	if err := m.send(addr, auth, m.cfg.From, []string{to}, message(m.cfg.From, to, subject, body)); err != nil {
		return fmt.Errorf("send mail to %s: %w", to, err)
	}
	return nil
}

func message(from, to, subject, body string) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n\r\n")
	b.WriteString(strings.ReplaceAll(body, "\n", "\r\n"))
	return []byte(b.String())
}

// LogMailer prints mail instead of sending it. Used in development.
type LogMailer struct {
	logger *logger.Logger
}

func (m *LogMailer) Send(_ context.Context, to, subject, body string) error {
	m.logger.Info("Mail to %s: %s\n%s", to, subject, body)
	return nil
}
