package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/skillswap/backend/internal/logging"
)

// LogSender writes messages to the request logger instead of delivering them.
type LogSender struct{}

// Send logs the message payload.
func (LogSender) Send(ctx context.Context, msg Message) error {
	logging.FromContext(ctx).Info("email notification",
		slog.String("to", msg.To),
		slog.String("subject", msg.Subject),
		slog.String("type", string(msg.Type)),
		slog.Int("html_bytes", len(msg.HTML)),
	)
	return nil
}

const sendGridEndpoint = "https://api.sendgrid.com/v3/mail/send"

// SendGridSender delivers messages through the SendGrid v3 mail send API.
type SendGridSender struct {
	APIKey     string
	FromEmail  string
	FromName   string
	Endpoint   string
	HTTPClient *http.Client
}

// NewSendGridSender constructs a sender using apiKey and the from address.
func NewSendGridSender(apiKey, fromEmail string) *SendGridSender {
	return &SendGridSender{
		APIKey:    strings.TrimSpace(apiKey),
		FromEmail: strings.TrimSpace(fromEmail),
		FromName:  "SkillSwap",
		Endpoint:  sendGridEndpoint,
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type sendGridEmailAddress struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type sendGridContent struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

type sendGridPersonalization struct {
	To         []sendGridEmailAddress `json:"to"`
	Subject    string                 `json:"subject"`
	CustomArgs map[string]string      `json:"custom_args,omitempty"`
}

type sendGridMailSendRequest struct {
	Personalizations []sendGridPersonalization `json:"personalizations"`
	From             sendGridEmailAddress      `json:"from"`
	Content          []sendGridContent         `json:"content"`
}

// Send posts msg to SendGrid. SendGrid answers 202 Accepted on success.
func (s *SendGridSender) Send(ctx context.Context, msg Message) error {
	if s.APIKey == "" {
		return errors.New("sendgrid: missing api key")
	}
	if s.FromEmail == "" {
		return errors.New("sendgrid: missing from address")
	}

	body, err := json.Marshal(sendGridMailSendRequest{
		Personalizations: []sendGridPersonalization{{
			To:         []sendGridEmailAddress{{Email: msg.To}},
			Subject:    msg.Subject,
			CustomArgs: map[string]string{"type": string(msg.Type)},
		}},
		From:    sendGridEmailAddress{Email: s.FromEmail, Name: s.FromName},
		Content: []sendGridContent{{Type: "text/html", Value: msg.HTML}},
	})
	if err != nil {
		return fmt.Errorf("sendgrid: encode request: %w", err)
	}

	endpoint := s.Endpoint
	if endpoint == "" {
		endpoint = sendGridEndpoint
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("sendgrid: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.APIKey)
	req.Header.Set("Content-Type", "application/json")

	client := s.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("sendgrid: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted {
		return fmt.Errorf("sendgrid mail send http %d", resp.StatusCode)
	}
	return nil
}
