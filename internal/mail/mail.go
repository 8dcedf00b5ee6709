// Package mail sends SMTP messages and renders the embedded HTML templates.
package mail

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"strings"

	gomail "github.com/go-mail/mail"

	"myapp.dev/internal/obs"
)

// Message is an outbound email. At least one of Text and HTML must be set.
type Message struct {
	To      string
	Subject string
	Text    string
	HTML    string
}

func (m Message) validate() error {
	if strings.TrimSpace(m.To) == "" {
		return errors.New("mail: recipient required")
	}
	if strings.TrimSpace(m.Subject) == "" {
		return errors.New("mail: subject required")
	}
	if m.Text == "" && m.HTML == "" {
		return errors.New("mail: body required")
	}
	return nil
}

// Sender delivers messages.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// Config describes the SMTP relay.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	// SSL dials implicit TLS; otherwise STARTTLS is negotiated when offered.
	SSL                bool
	InsecureSkipVerify bool
}

// SMTPSender sends through an SMTP relay with go-mail.
type SMTPSender struct {
	cfg  Config
	send func(*gomail.Message) error
}

// NewSMTPSender builds a sender. Each Send dials a fresh connection.
func NewSMTPSender(cfg Config) *SMTPSender {
	d := gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
	d.SSL = cfg.SSL
	d.TLSConfig = &tls.Config{
		ServerName:         cfg.Host,
		InsecureSkipVerify: cfg.InsecureSkipVerify,
	}
	return &SMTPSender{cfg: cfg, send: func(m *gomail.Message) error { return d.DialAndSend(m) }}
}

func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	if err := msg.validate(); err != nil {
		return err
	}
	m := gomail.NewMessage()
	m.SetHeader("From", s.cfg.From)
	m.SetHeader("To", msg.To)
	m.SetHeader("Subject", msg.Subject)
	switch {
	case msg.Text != "" && msg.HTML != "":
		m.SetBody("text/plain", msg.Text)
		m.AddAlternative("text/html", msg.HTML)
	case msg.HTML != "":
		m.SetBody("text/html", msg.HTML)
	default:
		m.SetBody("text/plain", msg.Text)
	}

	log := obs.From(ctx)
	if err := s.send(m); err != nil {
		log.Error("mail send failed", obs.Component("mail"), obs.Email(msg.To), obs.Err(err))
		return fmt.Errorf("smtp send: %w", err)
	}
	log.Info("mail sent", obs.Component("mail"), obs.Email(msg.To))
	return nil
}
