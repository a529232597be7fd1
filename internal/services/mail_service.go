package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gopkg.in/gomail.v2"
)

// ErrMailerNotConfigured is returned when no SMTP credentials are set.
var ErrMailerNotConfigured = errors.New("smtp is not configured")

// Mail is one outgoing message. HTML is optional when Text is set and vice versa.
type Mail struct {
	To      string
	Subject string
	Text    string
	HTML    string
}

// Mailer delivers email and returns the message id.
type Mailer interface {
	Send(ctx context.Context, mail Mail) (string, error)
}

// SMTPMailer sends mail through an SMTP relay. Port 465 uses implicit TLS.
type SMTPMailer struct {
	dialer *gomail.Dialer
	from   string
}

// NewSMTPMailer constructs an SMTPMailer.
func NewSMTPMailer(host string, port int, username, password, from string) *SMTPMailer {
	if from == "" {
		from = username
	}
	return &SMTPMailer{
		dialer: gomail.NewDialer(host, port, username, password),
		from:   from,
	}
}

// Send delivers mail in a single SMTP session.
func (m *SMTPMailer) Send(ctx context.Context, mail Mail) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if m.dialer.Host == "" || m.from == "" {
		return "", ErrMailerNotConfigured
	}

	messageID := fmt.Sprintf("<%s@%s>", uuid.NewString(), senderDomain(m.from))

	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", mail.To)
	msg.SetHeader("Subject", mail.Subject)
	msg.SetHeader("Message-ID", messageID)

	switch {
	case mail.Text != "" && mail.HTML != "":
		msg.SetBody("text/plain", mail.Text)
		msg.AddAlternative("text/html", mail.HTML)
	case mail.Text != "":
		msg.SetBody("text/plain", mail.Text)
	default:
		msg.SetBody("text/html", mail.HTML)
	}

	if err := m.dialer.DialAndSend(msg); err != nil {
		return "", fmt.Errorf("smtp send: %w", err)
	}
	return messageID, nil
}

func senderDomain(from string) string {
	if at := strings.LastIndex(from, "@"); at >= 0 && at < len(from)-1 {
		return strings.Trim(from[at+1:], "> ")
	}
	return "localhost"
}
