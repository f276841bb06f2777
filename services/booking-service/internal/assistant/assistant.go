// Package assistant talks to the hosted generative text service behind the site's helper widgets.
package assistant

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

	"github.com/cenkalti/backoff/v5"
)

var (
	ErrMissingCredential = errors.New("assistant: API key not configured")
	ErrGeneration        = errors.New("assistant: generation failed")
)

// Fallback is shown in place of generated text when generation is unavailable.
const Fallback = "Our assistant is resting right now. Please call us and a pandit will guide you personally."

type Generator interface {
	GenerateText(ctx context.Context, prompt string) (string, error)
}

type Config struct {
	URL        string
	APIKey     string
	Timeout    time.Duration
	MaxTries   uint
	RetryDelay time.Duration
	HTTPClient *http.Client
}

// Client posts {"prompt": ...} and expects {"text": ...} back.
type Client struct {
	url        string
	apiKey     string
	maxTries   uint
	retryDelay time.Duration
	http       *http.Client
}

func NewClient(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}
	if cfg.MaxTries == 0 {
		cfg.MaxTries = 3
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 500 * time.Millisecond
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: cfg.Timeout}
	}
	return &Client{
		url:        strings.TrimSpace(cfg.URL),
		apiKey:     strings.TrimSpace(cfg.APIKey),
		maxTries:   cfg.MaxTries,
		retryDelay: cfg.RetryDelay,
		http:       hc,
	}
}

type generateRequest struct {
	Prompt string `json:"prompt"`
}

type generateResponse struct {
	Text  string `json:"text"`
	Error string `json:"error,omitempty"`
}

// GenerateText retries throttled and server-side failures with exponential backoff.
func (c *Client) GenerateText(ctx context.Context, prompt string) (string, error) {
	if c.apiKey == "" || c.url == "" {
		return "", ErrMissingCredential
	}
	body, err := json.Marshal(generateRequest{Prompt: prompt})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrGeneration, err)
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = c.retryDelay
	text, err := backoff.Retry(ctx, func() (string, error) {
		return c.once(ctx, body)
	}, backoff.WithBackOff(policy), backoff.WithMaxTries(c.maxTries))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrGeneration, err)
	}
	return text, nil
}

func (c *Client) once(ctx context.Context, body []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return "", backoff.Permanent(err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", err
	}
	switch {
	case resp.StatusCode == http.StatusTooManyRequests, resp.StatusCode >= 500:
		return "", fmt.Errorf("status %d", resp.StatusCode)
	case resp.StatusCode >= 300:
		return "", backoff.Permanent(fmt.Errorf("status %d", resp.StatusCode))
	}

	var out generateResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", backoff.Permanent(fmt.Errorf("decode response: %w", err))
	}
	text := strings.TrimSpace(out.Text)
	if text == "" {
		if out.Error != "" {
			return "", backoff.Permanent(errors.New(out.Error))
		}
		return "", backoff.Permanent(errors.New("empty response"))
	}
	return text, nil
}
