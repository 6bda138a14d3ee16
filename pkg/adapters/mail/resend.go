// Package mail delivers email through the Resend HTTP API.
package mail

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/aretw0/insurai/pkg/ports"
)

// DefaultBaseURL is the public Resend API.
const DefaultBaseURL = "https://api.resend.com"

// Resend implements ports.Mailer.
type Resend struct {
	apiKey  string
	sender  string
	baseURL string
	client  *http.Client
}

var _ ports.Mailer = (*Resend)(nil)

// Option configures the Resend mailer.
type Option func(*Resend)

// WithBaseURL points the mailer at another API host.
func WithBaseURL(u string) Option {
	return func(r *Resend) {
		r.baseURL = strings.TrimRight(u, "/")
	}
}

// NewResend creates a mailer sending as sender ("Name <addr>" is accepted).
func NewResend(apiKey, sender string, opts ...Option) *Resend {
	r := &Resend{
		apiKey:  apiKey,
		sender:  sender,
		baseURL: DefaultBaseURL,
		client:  &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

type attachment struct {
	Filename string `json:"filename"`
	Content  string `json:"content"`
}

type sendRequest struct {
	From        string       `json:"from"`
	To          []string     `json:"to"`
	Subject     string       `json:"subject"`
	Text        string       `json:"text"`
	Attachments []attachment `json:"attachments,omitempty"`
}

// SendEmail posts the message to /emails.
func (r *Resend) SendEmail(ctx context.Context, email ports.Email) error {
	body := sendRequest{
		From:    r.sender,
		To:      []string{email.To},
		Subject: email.Subject,
		Text:    email.Text,
	}
	for _, a := range email.Attachments {
		body.Attachments = append(body.Attachments, attachment{
			Filename: a.Filename,
			Content:  base64.StdEncoding.EncodeToString(a.Content),
		})
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal email: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/emails", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build email request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+r.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("email request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("email request failed with status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	return nil
}
