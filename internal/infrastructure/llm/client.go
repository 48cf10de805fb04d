package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"FeedbackLoop/internal/config"
	"FeedbackLoop/internal/ports"
)

// Client implements ports.Completer backed by OpenAI-compatible chat
// completion APIs (OpenRouter, OpenAI, or any gateway speaking the same
// wire format).
type Client struct {
	endpoint   string
	model      string
	apiKey     string
	siteURL    string
	siteName   string
	httpClient *http.Client
}

var _ ports.Completer = (*Client)(nil)

// NewClient builds a client from configuration. Call deadlines come from the
// caller's context, so the underlying http.Client carries no timeout of its
// own.
func NewClient(cfg config.LLMConfig) *Client {
	return &Client{
		endpoint:   cfg.Endpoint,
		model:      cfg.Model,
		apiKey:     cfg.APIKey,
		siteURL:    cfg.SiteURL,
		siteName:   cfg.SiteName,
		httpClient: &http.Client{},
	}
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int64 `json:"prompt_tokens"`
		CompletionTokens int64 `json:"completion_tokens"`
	} `json:"usage"`
}

// Complete posts the prompt as a single user-role message and returns the
// first choice's content. Non-success statuses surface as *ports.StatusError
// so callers can record the code.
func (c *Client) Complete(ctx context.Context, prompt string) (ports.Completion, error) {
	if c == nil {
		return ports.Completion{}, fmt.Errorf("completion client is nil")
	}
	if c.apiKey == "" || c.endpoint == "" || c.model == "" {
		return ports.Completion{}, fmt.Errorf("completion client misconfigured")
	}

	body, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "user", Content: prompt},
		},
	})
	if err != nil {
		return ports.Completion{}, fmt.Errorf("marshal completion payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return ports.Completion{}, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	// Attribution headers used by OpenRouter-style gateways for accounting.
	if c.siteURL != "" {
		req.Header.Set("HTTP-Referer", c.siteURL)
	}
	if c.siteName != "" {
		req.Header.Set("X-Title", c.siteName)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return ports.Completion{}, fmt.Errorf("post completion: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return ports.Completion{}, &ports.StatusError{Code: resp.StatusCode}
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return ports.Completion{}, fmt.Errorf("decode completion response: %w", err)
	}

	if len(parsed.Choices) == 0 {
		return ports.Completion{}, fmt.Errorf("completion response has no choices")
	}

	return ports.Completion{
		Text:             parsed.Choices[0].Message.Content,
		PromptTokens:     parsed.Usage.PromptTokens,
		CompletionTokens: parsed.Usage.CompletionTokens,
	}, nil
}
