// Package openai is a minimal OpenAI chat-completions client. Any
// transport, authentication, or provider failure surfaces as a single
// *ProviderError; callers are not expected to branch on subtypes.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	DefaultBaseURL = "https://api.openai.com/v1"
	keyPrefix      = "sk-"
)

// Message is one role/content pair sent to the completions endpoint.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ProviderError is the uniform failure for any provider call.
type ProviderError struct {
	Op     string
	Status int
	Detail string
	Err    error
}

func (e *ProviderError) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("openai %s: %v", e.Op, e.Err)
	case e.Status != 0:
		return fmt.Sprintf("openai %s: status %d: %s", e.Op, e.Status, e.Detail)
	default:
		return fmt.Sprintf("openai %s: %s", e.Op, e.Detail)
	}
}

func (e *ProviderError) Unwrap() error { return e.Err }

// ValidateKey rejects credentials that cannot possibly be valid so the
// process fails fast at startup instead of at the first call.
func ValidateKey(key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return fmt.Errorf("openai api key is not set")
	}
	if !strings.HasPrefix(key, keyPrefix) {
		return fmt.Errorf("openai api key must start with %q", keyPrefix)
	}
	return nil
}

// Completer is the one operation the assistant layer consumes.
type Completer interface {
	Complete(ctx context.Context, system string, messages []Message) (string, error)
}

// Config controls client construction. Decoding parameters are fixed
// per client; every call uses the same model and sampling settings.
type Config struct {
	APIKey           string
	BaseURL          string
	Model            string
	Temperature      float64
	MaxOutputTokens  int
	PresencePenalty  float64
	FrequencyPenalty float64
	Timeout          time.Duration
}

// Client talks to the OpenAI chat completions HTTP API.
type Client struct {
	cfg        Config
	httpClient *http.Client
}

func NewClient(cfg Config) (*Client, error) {
	if err := ValidateKey(cfg.APIKey); err != nil {
		return nil, err
	}
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	return &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}, nil
}

type chatRequest struct {
	Model            string    `json:"model"`
	Messages         []Message `json:"messages"`
	Temperature      float64   `json:"temperature"`
	MaxTokens        int       `json:"max_tokens,omitempty"`
	PresencePenalty  float64   `json:"presence_penalty,omitempty"`
	FrequencyPenalty float64   `json:"frequency_penalty,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Complete sends the system instruction followed by the ordered
// messages and returns the generated text.
func (c *Client) Complete(ctx context.Context, system string, messages []Message) (string, error) {
	outbound := make([]Message, 0, len(messages)+1)
	outbound = append(outbound, Message{Role: "system", Content: system})
	outbound = append(outbound, messages...)

	payload, err := json.Marshal(chatRequest{
		Model:            c.cfg.Model,
		Messages:         outbound,
		Temperature:      c.cfg.Temperature,
		MaxTokens:        c.cfg.MaxOutputTokens,
		PresencePenalty:  c.cfg.PresencePenalty,
		FrequencyPenalty: c.cfg.FrequencyPenalty,
	})
	if err != nil {
		return "", &ProviderError{Op: "complete", Err: fmt.Errorf("marshal request: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", &ProviderError{Op: "complete", Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	res, err := c.httpClient.Do(req)
	if err != nil {
		return "", &ProviderError{Op: "complete", Err: err}
	}
	defer res.Body.Close()

	body, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return "", &ProviderError{Op: "complete", Err: fmt.Errorf("read response: %w", err)}
	}

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return "", &ProviderError{Op: "complete", Status: res.StatusCode, Detail: truncate(string(body), 400)}
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", &ProviderError{Op: "complete", Detail: "unparseable response: " + truncate(string(body), 400)}
	}
	if len(parsed.Choices) == 0 {
		return "", &ProviderError{Op: "complete", Detail: "empty completion"}
	}

	text := strings.TrimSpace(parsed.Choices[0].Message.Content)
	if text == "" {
		return "", &ProviderError{Op: "complete", Detail: "empty completion"}
	}
	return text, nil
}

func truncate(s string, maxChars int) string {
	runes := []rune(s)
	if len(runes) <= maxChars {
		return s
	}
	return string(runes[:maxChars])
}
