// Package mailer dispatches password-reset mail. The transport is an
// external collaborator; handlers only see the Mailer interface.
package mailer

import (
	"context"
	"errors"
	"fmt"
	"net/smtp"

	"example.com/pixsoul/internal/logger"
)

var logg = logger.New()

type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

// SMTPMailer sends mail through a plain SMTP relay with optional AUTH.
type SMTPMailer struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

func NewSMTP(host string, port int, username, password, from string) *SMTPMailer {
	return &SMTPMailer{
		Host:     host,
		Port:     port,
		Username: username,
		Password: password,
		From:     from,
	}
}

func (m *SMTPMailer) Send(ctx context.Context, to, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s\r\n", m.From, to, subject, body)
	addr := fmt.Sprintf("%s:%d", m.Host, m.Port)

	var auth smtp.Auth
	if m.Username != "" {
		auth = smtp.PlainAuth("", m.Username, m.Password, m.Host)
	}

	if err := smtp.SendMail(addr, auth, m.From, []string{to}, []byte(msg)); err != nil {
		logg.Error("mailer", "Failed to send mail", err)
		return err
	}

	logg.Info("mailer", "Mail sent (recipient anonymized)")
	return nil
}

// ---------------------------------------------

type SentMail struct {
	To      string
	Subject string
	Body    string
}

// MockMailer records outgoing mail for tests.
type MockMailer struct {
	Sent       []SentMail
	ShouldFail bool
}

func (m *MockMailer) Send(_ context.Context, to, subject, body string) error {
	if m.ShouldFail {
		return errors.New("mock mailer send failed")
	}
	m.Sent = append(m.Sent, SentMail{To: to, Subject: subject, Body: body})
	return nil
}
