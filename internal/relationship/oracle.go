// Package relationship discovers logical constraints between markets by
// sending batches to a text-completion oracle and parsing its structured
// output (§4.3).
package relationship

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Oracle answers a single completion request: given a system prompt and
// a user prompt, return the model's raw text response. The concrete
// implementation is swappable; the mapper only depends on this
// interface so it can be exercised in tests without a live endpoint.
type Oracle interface {
	Complete(ctx context.Context, model, systemPrompt, userPrompt string) (string, error)
}

// HTTPOracle calls a JSON completion endpoint over HTTP. It is written
// against a generic request/response envelope rather than any single
// vendor's wire format; wire it to whatever completion service the
// deployment points it at.
type HTTPOracle struct {
	endpoint   string
	apiKey     string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewHTTPOracle constructs an Oracle backed by an HTTP completion endpoint.
func NewHTTPOracle(endpoint, apiKey string, logger *zap.Logger) *HTTPOracle {
	return &HTTPOracle{
		endpoint: endpoint,
		apiKey:   apiKey,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		logger: logger,
	}
}

type completionRequest struct {
	Model    string `json:"model"`
	System   string `json:"system"`
	Prompt   string `json:"prompt"`
	MaxTokens int   `json:"max_tokens"`
}

type completionResponse struct {
	Text string `json:"text"`
}

// Complete sends one completion request and returns the response text.
func (o *HTTPOracle) Complete(ctx context.Context, model, systemPrompt, userPrompt string) (string, error) {
	body, err := json.Marshal(completionRequest{
		Model:     model,
		System:    systemPrompt,
		Prompt:    userPrompt,
		MaxTokens: 4096,
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+o.apiKey)

	o.logger.Debug("oracle-request", zap.String("model", model), zap.Int("prompt-bytes", len(userPrompt)))

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("oracle returned status %d", resp.StatusCode)
	}

	var out completionResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	return out.Text, nil
}
