// Package mail sends transactional email notifications.
package mail

import (
	"fmt"
	"log/slog"

	"github.com/replate/replate-backend/internal/config"

	"gopkg.in/gomail.v2"
)

// Mailer delivers notification mail. Delivery is always best-effort for
// callers; moderation decisions must not fail on a broken SMTP relay.
type Mailer interface {
	Send(toEmail, subject, body string) error
}

// SMTPMailer sends mail through a configured SMTP relay.
type SMTPMailer struct {
	host     string
	port     int
	sender   string
	email    string
	password string
}

// NewSMTPMailer builds a mailer from application config. It returns nil when
// SMTP is not configured, and callers treat a nil mailer as "notifications off".
func NewSMTPMailer(cfg *config.Config) *SMTPMailer {
	if cfg.SMTPHost == "" || cfg.SMTPEmail == "" {
		slog.Info("SMTP not configured, mail notifications disabled")
		return nil
	}
	return &SMTPMailer{
		host:     cfg.SMTPHost,
		port:     cfg.SMTPPort,
		sender:   cfg.SMTPSenderName,
		email:    cfg.SMTPEmail,
		password: cfg.SMTPPassword,
	}
}

func (m *SMTPMailer) Send(toEmail, subject, body string) error {
	msg := gomail.NewMessage()
	msg.SetAddressHeader("From", m.email, m.sender)
	msg.SetHeader("To", toEmail)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/html", body)

	dialer := gomail.NewDialer(m.host, m.port, m.email, m.password)
	if err := dialer.DialAndSend(msg); err != nil {
		return fmt.Errorf("send mail to %s: %w", toEmail, err)
	}
	return nil
}
