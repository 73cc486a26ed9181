// Package notify delivers WhatsApp messages through an external webhook
// bridge. Delivery is best-effort: callers log failures and move on, a
// booking never fails because the bridge is down.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"
)

type Kind string

const (
	KindBooked    Kind = "booking-created"
	KindReminder  Kind = "reminder"
	KindCancelled Kind = "cancellation"
)

// Message is the payload handed to the bridge. Date and Time are already
// formatted in the tenant's local conventions.
type Message struct {
	TenantID     string   `json:"tenantId"`
	Phone        string   `json:"phone"`
	ClientName   string   `json:"clientName"`
	Professional string   `json:"professional"`
	Date         string   `json:"date"`
	Time         string   `json:"time"`
	Services     []string `json:"services,omitempty"`
	Amount       float64  `json:"amount"`
}

type Sender interface {
	Send(ctx context.Context, kind Kind, msg Message) error
	ProviderID() string
}

type WebhookSender struct {
	baseURL string
	token   string
	http    *http.Client
}

func NewWebhookSender(baseURL string, token string) *WebhookSender {
	return &WebhookSender{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		token:   strings.TrimSpace(token),
		http: &http.Client{
			Timeout: 5 * time.Second,
		},
	}
}

func (s *WebhookSender) ProviderID() string {
	return "whatsapp-webhook"
}

func (s *WebhookSender) Send(ctx context.Context, kind Kind, msg Message) error {
	if s.baseURL == "" {
		return errors.New("whatsapp webhook url not configured")
	}
	raw, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+pathFor(kind), bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}
	resp, err := s.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return errors.New("whatsapp webhook returned non-2xx")
	}
	return nil
}

func pathFor(kind Kind) string {
	switch kind {
	case KindReminder:
		return "/lembrete"
	case KindCancelled:
		return "/cancelamento"
	default:
		return "/agendamento"
	}
}

type NoopSender struct{}

func NewNoopSender() *NoopSender {
	return &NoopSender{}
}

func (s *NoopSender) ProviderID() string {
	return "whatsapp-noop"
}

func (s *NoopSender) Send(_ context.Context, _ Kind, _ Message) error {
	return nil
}
