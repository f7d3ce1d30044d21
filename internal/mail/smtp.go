package mail

import (
	"context"
	"fmt"

	"gopkg.in/gomail.v2"
)

// Dialer is the part of gomail.Dialer the sender needs.
type Dialer interface {
	DialAndSend(m ...*gomail.Message) error
}

// SMTPSender renders OTP messages and delivers them synchronously.
type SMTPSender struct {
	dialer Dialer
	from   string
}

func NewSMTPSender(host string, port int, username, password, from string) *SMTPSender {
	return &SMTPSender{
		dialer: gomail.NewDialer(host, port, username, password),
		from:   from,
	}
}

// NewSMTPSenderWithDialer is used by tests to capture outgoing mail.
func NewSMTPSenderWithDialer(d Dialer, from string) *SMTPSender {
	return &SMTPSender{dialer: d, from: from}
}

func (s *SMTPSender) SendOTP(ctx context.Context, msg Message) error {
	const op = "mail.SMTPSender.SendOTP"

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	subject, body, err := Render(msg)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", msg.To)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", body)

	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}
