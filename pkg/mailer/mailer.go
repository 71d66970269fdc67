package mailer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/gomail.v2"
)

// Attachment is a file sent along with a message
type Attachment struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Message is a plain-text email
type Message struct {
	To          string
	Subject     string
	Body        string
	Attachments []Attachment
}

// Validate checks the minimum fields for delivery
func (m *Message) Validate() error {
	if strings.TrimSpace(m.To) == "" {
		return errors.New("recipient is required")
	}
	if strings.TrimSpace(m.Subject) == "" {
		return errors.New("subject is required")
	}
	return nil
}

// Mailer delivers messages
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// Config holds SMTP settings
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	FromName string
}

// sender is satisfied by *gomail.Dialer
type sender interface {
	DialAndSend(m ...*gomail.Message) error
}

// SMTPMailer sends through an SMTP relay
type SMTPMailer struct {
	from     string
	fromName string
	dialer   sender
	logger   *logrus.Logger
}

// NewSMTPMailer creates an SMTP mailer
func NewSMTPMailer(cfg Config, logger *logrus.Logger) *SMTPMailer {
	return &SMTPMailer{
		from:     cfg.From,
		fromName: cfg.FromName,
		dialer:   gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		logger:   logger,
	}
}

func (s *SMTPMailer) build(msg Message) *gomail.Message {
	m := gomail.NewMessage()
	m.SetAddressHeader("From", s.from, s.fromName)
	m.SetHeader("To", msg.To)
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/plain", msg.Body)

	for _, att := range msg.Attachments {
		data := att.Data
		settings := []gomail.FileSetting{
			gomail.SetCopyFunc(func(w io.Writer) error {
				_, err := w.Write(data)
				return err
			}),
		}
		if att.ContentType != "" {
			settings = append(settings, gomail.SetHeader(map[string][]string{
				"Content-Type": {att.ContentType},
			}))
		}
		m.Attach(att.Filename, settings...)
	}
	return m
}

// Send implements Mailer
func (s *SMTPMailer) Send(ctx context.Context, msg Message) error {
	if err := msg.Validate(); err != nil {
		return fmt.Errorf("invalid message: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := s.dialer.DialAndSend(s.build(msg)); err != nil {
		return fmt.Errorf("failed to send email to %s: %w", msg.To, err)
	}

	s.logger.WithFields(logrus.Fields{
		"to":          msg.To,
		"subject":     msg.Subject,
		"attachments": len(msg.Attachments),
	}).Info("Email sent")
	return nil
}

// LogMailer only logs messages. Used when outgoing mail is disabled.
type LogMailer struct {
	logger *logrus.Logger
}

// NewLogMailer creates a mailer that never sends
func NewLogMailer(logger *logrus.Logger) *LogMailer {
	return &LogMailer{logger: logger}
}

// Send implements Mailer
func (l *LogMailer) Send(_ context.Context, msg Message) error {
	if err := msg.Validate(); err != nil {
		return fmt.Errorf("invalid message: %w", err)
	}
	l.logger.WithFields(logrus.Fields{
		"to":          msg.To,
		"subject":     msg.Subject,
		"attachments": len(msg.Attachments),
	}).Info("Mail disabled, message not sent")
	return nil
}
