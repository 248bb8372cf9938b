package notifications

import (
	"context"
	"errors"
	"fmt"

	config "github.com/Mustafaygtbs/CertificateManagement/configs"
	"github.com/wneessen/go-mail"
)

type SMTPTransport struct {
	client      *mail.Client
	senderEmail string
	senderName  string
}

func NewSMTPTransport(cfg config.EmailConfig) (*SMTPTransport, error) {
	if cfg.SMTPHost == "" {
		return nil, errors.New("notifications: smtp requires SMTP_HOST")
	}

	opts := []mail.Option{
		mail.WithPort(cfg.SMTPPort),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
	}
	if cfg.SMTPUsername != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.SMTPUsername),
			mail.WithPassword(cfg.SMTPPassword),
		)
	}
	if cfg.Timeout > 0 {
		opts = append(opts, mail.WithTimeout(cfg.Timeout))
	}

	client, err := mail.NewClient(cfg.SMTPHost, opts...)
	if err != nil {
		return nil, fmt.Errorf("notifications: smtp client: %w", err)
	}
	return &SMTPTransport{client: client, senderEmail: cfg.SenderEmail, senderName: cfg.SenderName}, nil
}

func (s *SMTPTransport) Send(ctx context.Context, msg Message) error {
	m, err := buildMessage(s.senderName, s.senderEmail, msg)
	if err != nil {
		return err
	}
	return s.client.DialAndSendWithContext(ctx, m)
}

func buildMessage(senderName, senderEmail string, msg Message) (*mail.Msg, error) {
	m := mail.NewMsg()
	if err := m.FromFormat(senderName, senderEmail); err != nil {
		return nil, fmt.Errorf("set sender: %w", err)
	}
	if err := m.To(msg.To); err != nil {
		return nil, fmt.Errorf("set recipient: %w", err)
	}
	m.Subject(msg.Subject)
	if msg.HTML {
		m.SetBodyString(mail.TypeTextHTML, msg.Body)
	} else {
		m.SetBodyString(mail.TypeTextPlain, msg.Body)
	}
	return m, nil
}
