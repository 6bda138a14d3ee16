// Package sms delivers text messages through the Twilio REST API.
package sms

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/aretw0/insurai/pkg/ports"
)

// DefaultBaseURL is the public Twilio API.
const DefaultBaseURL = "https://api.twilio.com"

// Twilio implements ports.SMSSender.
type Twilio struct {
	accountSID string
	authToken  string
	from       string
	baseURL    string
	client     *http.Client
}

var _ ports.SMSSender = (*Twilio)(nil)

// Option configures the Twilio sender.
type Option func(*Twilio)

// WithBaseURL points the sender at another API host (tests, proxies).
func WithBaseURL(u string) Option {
	return func(t *Twilio) {
		t.baseURL = strings.TrimRight(u, "/")
	}
}

// WithHTTPClient replaces the default client.
func WithHTTPClient(c *http.Client) Option {
	return func(t *Twilio) {
		t.client = c
	}
}

// NewTwilio creates a sender for the given account.
func NewTwilio(accountSID, authToken, from string, opts ...Option) *Twilio {
	t := &Twilio{
		accountSID: accountSID,
		authToken:  authToken,
		from:       from,
		baseURL:    DefaultBaseURL,
		client:     &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// SendSMS posts a message to the Messages resource.
func (t *Twilio) SendSMS(ctx context.Context, to, body string) error {
	form := url.Values{}
	form.Set("To", to)
	form.Set("From", t.from)
	form.Set("Body", body)

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", t.baseURL, url.PathEscape(t.accountSID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("failed to build sms request: %w", err)
	}
	req.SetBasicAuth(t.accountSID, t.authToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("sms request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("sms request failed with status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	return nil
}
