// Package notifications delivers email through a pluggable transport.
package notifications

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/mail"
	"time"

	config "github.com/Mustafaygtbs/CertificateManagement/configs"
	"github.com/Mustafaygtbs/CertificateManagement/logging"
)

const certificateSubject = "Your course certificate is ready"

var ErrInvalidRecipient = errors.New("invalid recipient email")

type Message struct {
	To      string
	ToName  string
	Subject string
	Body    string
	HTML    bool
}

type Transport interface {
	Send(ctx context.Context, msg Message) error
}

var certificateTmpl = template.Must(template.New("certificate_email").Parse(`<html>
<body>
	<h2>Congratulations, {{.Name}}!</h2>
	<p>You have successfully completed the course and your certificate is ready.</p>
	<p>Use the link below to view and download your certificate:</p>
	<p><a href="{{.Link}}">View your certificate</a></p>
	<p>Thank you.</p>
</body>
</html>`))

type Mailer struct {
	transport Transport
	timeout   time.Duration
	log       *slog.Logger
}

func NewMailer(transport Transport, timeout time.Duration, log *slog.Logger) *Mailer {
	return &Mailer{transport: transport, timeout: timeout, log: log}
}

// New builds a Mailer over the transport named by cfg.Driver.
func New(cfg config.EmailConfig, log *slog.Logger) (*Mailer, error) {
	var transport Transport
	switch cfg.Driver {
	case "smtp":
		t, err := NewSMTPTransport(cfg)
		if err != nil {
			return nil, err
		}
		transport = t
	case "brevo":
		t, err := NewBrevoTransport(cfg)
		if err != nil {
			return nil, err
		}
		transport = t
	case "log":
		transport = NewLogTransport(log)
	default:
		return nil, fmt.Errorf("notifications: unknown driver %q", cfg.Driver)
	}
	return NewMailer(transport, cfg.Timeout, log), nil
}

func (m *Mailer) SendEmail(ctx context.Context, to, subject, body string, isHTML bool) error {
	return m.send(ctx, Message{To: to, Subject: subject, Body: body, HTML: isHTML})
}

// SendCertificateEmail sends the fixed congratulation email carrying the
// public certificate link.
func (m *Mailer) SendCertificateEmail(ctx context.Context, to, displayName, link string) error {
	var body bytes.Buffer
	err := certificateTmpl.Execute(&body, struct {
		Name string
		Link string
	}{Name: displayName, Link: link})
	if err != nil {
		return fmt.Errorf("render certificate email: %w", err)
	}
	return m.send(ctx, Message{To: to, ToName: displayName, Subject: certificateSubject, Body: body.String(), HTML: true})
}

func (m *Mailer) send(ctx context.Context, msg Message) error {
	addr, err := mail.ParseAddress(msg.To)
	if err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidRecipient, msg.To)
	}
	msg.To = addr.Address

	if m.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.timeout)
		defer cancel()
	}

	if err := m.transport.Send(ctx, msg); err != nil {
		m.log.Error("email_send_failed", slog.String("to", msg.To), logging.Err(err))
		return fmt.Errorf("send email to %s: %w", msg.To, err)
	}
	m.log.Info("email_sent", slog.String("to", msg.To))
	return nil
}
