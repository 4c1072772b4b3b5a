package ai

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
)

var ErrEmptyCompletion = errors.New("llm returned no payload")

type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ChatConfig struct {
	BaseURL string
	APIKey  string
	Model   string
}

// CompletionRequest is one chat-completions call. Params are merged over
// the defaults {model, max_tokens}; messages always come last.
type CompletionRequest struct {
	Messages  []ChatMessage
	MaxTokens int
	Params    map[string]any
}

// Completion is the first choice of a chat-completions response together
// with the raw response body.
type Completion struct {
	ID      string
	Role    string
	Content string
	Raw     json.RawMessage
}

type OpenAICompatibleClient struct {
	httpClient *http.Client
}

func NewOpenAICompatibleClient(timeout time.Duration) *OpenAICompatibleClient {
	if timeout <= 0 {
		timeout = 90 * time.Second
	}
	return &OpenAICompatibleClient{
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (c *OpenAICompatibleClient) Complete(ctx context.Context, cfg ChatConfig, in CompletionRequest) (*Completion, error) {
	reqBody := map[string]any{
		"model":      cfg.Model,
		"max_tokens": in.MaxTokens,
	}
	for k, v := range in.Params {
		reqBody[k] = v
	}
	reqBody["messages"] = in.Messages
	reqBody["stream"] = false
	delete(reqBody, "n")

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal llm request failed: %w", err)
	}

	url := strings.TrimRight(cfg.BaseURL, "/") + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("build llm request failed: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+cfg.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("llm request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read llm response failed: %w", err)
	}
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("llm response status %d: %s", resp.StatusCode, string(raw))
	}

	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, ErrEmptyCompletion
	}

	var parsed struct {
		ID      string `json:"id"`
		Choices []struct {
			Message ChatMessage `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(trimmed, &parsed); err != nil {
		return nil, fmt.Errorf("parse llm json failed: %w", err)
	}

	out := &Completion{ID: parsed.ID, Raw: json.RawMessage(trimmed)}
	if len(parsed.Choices) > 0 {
		out.Role = parsed.Choices[0].Message.Role
		out.Content = parsed.Choices[0].Message.Content
	}
	return out, nil
}
