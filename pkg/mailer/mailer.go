package mailer

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/resend/resend-go/v2"
	"golang.org/x/exp/slog"
)

// ResendSender sends email through the Resend API and returns the provider message id
type ResendSender struct {
	client *resend.Client
	from   string
}

// NewResendSender creates a sender authenticated with apiKey
func NewResendSender(apiKey, from string, timeout time.Duration) *ResendSender {
	httpClient := &http.Client{Timeout: timeout}
	return &ResendSender{
		client: resend.NewCustomClient(httpClient, apiKey),
		from:   from,
	}
}

// WithBaseURL points the sender at a different API root
func (s *ResendSender) WithBaseURL(raw string) (*ResendSender, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	s.client.BaseURL = u
	return s, nil
}

// Send sends one email
func (s *ResendSender) Send(ctx context.Context, to, subject, html string) (string, error) {
	if to == "" || subject == "" || html == "" {
		return "", errors.New("missing recipient, subject or body")
	}
	sent, err := s.client.Emails.SendWithContext(ctx, &resend.SendEmailRequest{
		From:    s.from,
		To:      []string{to},
		Subject: subject,
		Html:    html,
	})
	if err != nil {
		return "", fmt.Errorf("resend: %w", err)
	}
	return sent.Id, nil
}

// SentMessage is an email captured by MockSender
type SentMessage struct {
	ID      string
	To      string
	Subject string
	HTML    string
}

// MockSender records emails instead of sending them
type MockSender struct {
	mu   sync.Mutex
	sent []SentMessage
}

// NewMockSender creates a MockSender
func NewMockSender() *MockSender {
	return &MockSender{}
}

// Send records the email
func (m *MockSender) Send(ctx context.Context, to, subject, html string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	id := fmt.Sprintf("MOCK-MSG-%d", time.Now().UnixNano())
	m.sent = append(m.sent, SentMessage{ID: id, To: to, Subject: subject, HTML: html})
	slog.Info("Mock email sent", "to", to, "subject", subject, "id", id)
	return id, nil
}

// Sent returns the recorded emails
func (m *MockSender) Sent() []SentMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]SentMessage(nil), m.sent...)
}
