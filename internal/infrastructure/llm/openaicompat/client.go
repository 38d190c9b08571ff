package openaicompat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/medication-finder/internal/core/domain"
	"github.com/kirillkom/medication-finder/internal/infrastructure/resilience"
)

// Client talks to any /chat/completions endpoint with the OpenAI wire format.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	executor   *resilience.Executor
}

func New(baseURL, apiKey string, timeout time.Duration, executor *resilience.Executor) *Client {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
		executor:   executor,
	}
}

func (c *Client) Complete(ctx context.Context, req domain.CompletionRequest) (*domain.CompletionResult, error) {
	payload := toWireRequest(req)

	resp, err := resilience.Call(ctx, c.executor, "completion.chat", func(callCtx context.Context) (*chatCompletionResponse, error) {
		var out chatCompletionResponse
		if err := c.postJSON(callCtx, "/chat/completions", payload, &out); err != nil {
			return nil, err
		}
		return &out, nil
	}, resilience.ClassifyHTTPError)
	if err != nil {
		wrapped := resilience.WrapTemporary("chat completion", err, resilience.ClassifyHTTPError)
		if domain.IsKind(wrapped, domain.ErrTemporary) {
			return nil, wrapped
		}
		return nil, domain.WrapError(domain.ErrUpstream, "chat completion", err)
	}
	if len(resp.Choices) == 0 {
		return nil, domain.WrapError(domain.ErrUpstream, "chat completion", fmt.Errorf("no choices returned"))
	}

	choice := resp.Choices[0]
	result := &domain.CompletionResult{
		Message:      fromWireMessage(choice.Message),
		Refusal:      choice.Message.Refusal,
		FinishReason: choice.FinishReason,
		Model:        resp.Model,
	}
	if resp.Usage != nil {
		result.Usage = domain.CompletionUsage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
		}
	}
	return result, nil
}

func (c *Client) postJSON(ctx context.Context, path string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal completion request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create completion request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("completion request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return resilience.NewStatusError("completion", "chat", resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode completion response: %w", err)
	}
	return nil
}
