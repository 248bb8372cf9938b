package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	config "github.com/Mustafaygtbs/CertificateManagement/configs"
)

const brevoEndpoint = "https://api.brevo.com/v3/smtp/email"

type BrevoTransport struct {
	apiKey      string
	senderEmail string
	senderName  string
	endpoint    string
	client      *http.Client
}

type brevoPayload struct {
	Sender      map[string]string   `json:"sender"`
	To          []map[string]string `json:"to"`
	Subject     string              `json:"subject"`
	HTMLContent string              `json:"htmlContent,omitempty"`
	TextContent string              `json:"textContent,omitempty"`
}

func NewBrevoTransport(cfg config.EmailConfig) (*BrevoTransport, error) {
	if cfg.BrevoAPIKey == "" || cfg.SenderEmail == "" {
		return nil, errors.New("notifications: brevo requires BREVO_API_KEY and EMAIL_SENDER")
	}
	return &BrevoTransport{
		apiKey:      cfg.BrevoAPIKey,
		senderEmail: cfg.SenderEmail,
		senderName:  cfg.SenderName,
		endpoint:    brevoEndpoint,
		client:      &http.Client{Timeout: 10 * time.Second},
	}, nil
}

func (b *BrevoTransport) Send(ctx context.Context, msg Message) error {
	recipientName := msg.ToName
	if recipientName == "" {
		recipientName = msg.To
		if i := strings.Index(msg.To, "@"); i > 0 {
			recipientName = msg.To[:i]
		}
	}

	payload := brevoPayload{
		Sender:  map[string]string{"name": b.senderName, "email": b.senderEmail},
		To:      []map[string]string{{"email": msg.To, "name": recipientName}},
		Subject: msg.Subject,
	}
	if msg.HTML {
		payload.HTMLContent = msg.Body
	} else {
		payload.TextContent = msg.Body
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal brevo payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create brevo request: %w", err)
	}
	req.Header.Set("accept", "application/json")
	req.Header.Set("api-key", b.apiKey)
	req.Header.Set("content-type", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		return fmt.Errorf("send brevo request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("brevo: status %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}
	return nil
}
