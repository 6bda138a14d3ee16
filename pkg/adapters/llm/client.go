// Package llm talks to OpenAI-compatible chat completion endpoints,
// including Azure OpenAI deployments.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/aretw0/insurai/pkg/ports"
)

// Providers understood by Config.Provider.
const (
	ProviderOpenAI = "openai"
	ProviderAzure  = "azure"
)

const (
	defaultPath       = "/v1/chat/completions"
	defaultAPIVersion = "2024-06-01"
	defaultTimeout    = 60 * time.Second
)

// ErrEmptyCompletion is returned when the service answers without any choice.
var ErrEmptyCompletion = errors.New("completion has no choices")

// Config selects the endpoint and credentials.
type Config struct {
	Provider   string
	APIKey     string
	BaseURL    string
	Model      string
	Path       string
	APIVersion string
	// Temperature defaults to 0 so classification answers are stable.
	Temperature float64
	Timeout     time.Duration
}

// Client implements ports.Reasoner.
type Client struct {
	cfg    Config
	client *http.Client
}

var _ ports.Reasoner = (*Client)(nil)

// New creates a client. Azure deployments are addressed by model name.
func New(cfg Config) *Client {
	cfg.Provider = strings.ToLower(strings.TrimSpace(cfg.Provider))
	if cfg.Provider == "" {
		cfg.Provider = ProviderOpenAI
	}
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if strings.TrimSpace(cfg.Path) == "" {
		cfg.Path = defaultPath
	}
	if cfg.APIVersion == "" {
		cfg.APIVersion = defaultAPIVersion
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	return &Client{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

// StatusError is a non-2xx answer from the service.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("completion request failed with status %d: %s", e.Code, e.Body)
}

type chatRequest struct {
	Model       string          `json:"model,omitempty"`
	Messages    []ports.Message `json:"messages"`
	Temperature float64         `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message ports.Message `json:"message"`
	} `json:"choices"`
}

func (c *Client) endpoint() string {
	if c.cfg.Provider == ProviderAzure {
		return fmt.Sprintf("%s/openai/deployments/%s/chat/completions?api-version=%s",
			c.cfg.BaseURL, url.PathEscape(c.cfg.Model), url.QueryEscape(c.cfg.APIVersion))
	}
	return c.cfg.BaseURL + c.cfg.Path
}

// Complete sends the conversation and returns the first choice's content.
func (c *Client) Complete(ctx context.Context, messages []ports.Message) (string, error) {
	body := chatRequest{Messages: messages, Temperature: c.cfg.Temperature}
	if c.cfg.Provider != ProviderAzure {
		body.Model = c.cfg.Model
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("failed to marshal completion request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(), bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to build completion request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.Provider == ProviderAzure {
		req.Header.Set("api-key", c.cfg.APIKey)
	} else {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("completion request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("failed to read completion response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}

	var out chatResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("failed to decode completion response: %w", err)
	}
	if len(out.Choices) == 0 {
		return "", ErrEmptyCompletion
	}
	return strings.TrimSpace(out.Choices[0].Message.Content), nil
}
