// Package openai implements domain.AIClient against an
// OpenAI-compatible completions/embeddings API.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	backoff "github.com/cenkalti/backoff/v4"

	"github.com/lydiaket/cs338-rubric/internal/adapter/observability"
	"github.com/lydiaket/cs338-rubric/internal/config"
	"github.com/lydiaket/cs338-rubric/internal/domain"
)

// Client calls the chat completions and embeddings endpoints with
// retry. 429 and 5xx are retried under exponential backoff; other 4xx
// fail immediately.
type Client struct {
	cfg     config.Config
	chatHC  *http.Client
	embedHC *http.Client
}

// New constructs a Client with per-endpoint timeouts.
func New(cfg config.Config) *Client {
	return &Client{
		cfg:     cfg,
		chatHC:  &http.Client{Timeout: 60 * time.Second},
		embedHC: &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *Client) backoffConfig() *backoff.ExponentialBackOff {
	expo := backoff.NewExponentialBackOff()
	maxElapsedTime, initialInterval, maxInterval, multiplier := c.cfg.GetAIBackoffConfig()
	expo.MaxElapsedTime = maxElapsedTime
	expo.InitialInterval = initialInterval
	expo.MaxInterval = maxInterval
	expo.Multiplier = multiplier
	return expo
}

// ChatJSON requests a deterministic (temperature 0) completion and
// returns the raw message content. Callers run the result through the
// repair cascade; no JSON validation happens here.
func (c *Client) ChatJSON(ctx context.Context, systemPrompt, userPrompt string, maxTokens int) (string, error) {
	if c.cfg.AIAPIKey == "" {
		return "", fmt.Errorf("%w: AI_API_KEY missing", domain.ErrInvalidArgument)
	}
	body := map[string]any{
		"model":       c.cfg.ChatModel,
		"temperature": 0,
		"max_tokens":  maxTokens,
		"messages": []map[string]string{
			{"role": "system", "content": systemPrompt},
			{"role": "user", "content": userPrompt},
		},
	}
	b, _ := json.Marshal(body)
	var out struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	op := func() error {
		start := time.Now()
		// Recreate the request each attempt to avoid reusing consumed bodies.
		r, _ := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.AIBaseURL+"/chat/completions", bytes.NewReader(b))
		r.Header.Set("Authorization", "Bearer "+c.cfg.AIAPIKey)
		r.Header.Set("Content-Type", "application/json")
		resp, err := c.chatHC.Do(r)
		observability.AIRequestsTotal.WithLabelValues("openai", "chat").Inc()
		observability.AIRequestDuration.WithLabelValues("openai", "chat").Observe(time.Since(start).Seconds())
		if err != nil {
			return err
		}
		defer func() { _ = resp.Body.Close() }()
		if err := checkStatus(resp, "chat"); err != nil {
			return err
		}
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return fmt.Errorf("decode chat response: %w", err)
		}
		return nil
	}
	if err := backoff.Retry(op, backoff.WithContext(c.backoffConfig(), ctx)); err != nil {
		slog.Error("chat completion failed after retries", slog.String("model", c.cfg.ChatModel), slog.Any("error", err))
		return "", classify(err, "chat")
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("%w: empty choices from completion api", domain.ErrMalformedOutput)
	}
	return out.Choices[0].Message.Content, nil
}

// Embed returns one vector per input text, in input order.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if c.cfg.AIAPIKey == "" || c.cfg.EmbeddingsModel == "" {
		return nil, fmt.Errorf("%w: AI_API_KEY or EMBEDDINGS_MODEL missing", domain.ErrInvalidArgument)
	}
	body := map[string]any{
		"model": c.cfg.EmbeddingsModel,
		"input": texts,
	}
	b, _ := json.Marshal(body)
	var out struct {
		Data []struct {
			Embedding []float64 `json:"embedding"`
		} `json:"data"`
	}
	op := func() error {
		start := time.Now()
		r, _ := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.AIBaseURL+"/embeddings", bytes.NewReader(b))
		r.Header.Set("Authorization", "Bearer "+c.cfg.AIAPIKey)
		r.Header.Set("Content-Type", "application/json")
		resp, err := c.embedHC.Do(r)
		observability.AIRequestsTotal.WithLabelValues("openai", "embed").Inc()
		observability.AIRequestDuration.WithLabelValues("openai", "embed").Observe(time.Since(start).Seconds())
		if err != nil {
			return err
		}
		defer func() { _ = resp.Body.Close() }()
		if err := checkStatus(resp, "embed"); err != nil {
			return err
		}
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return fmt.Errorf("decode embeddings response: %w", err)
		}
		return nil
	}
	if err := backoff.Retry(op, backoff.WithContext(c.backoffConfig(), ctx)); err != nil {
		slog.Error("embeddings failed after retries", slog.String("model", c.cfg.EmbeddingsModel), slog.Any("error", err))
		return nil, classify(err, "embed")
	}
	if len(out.Data) != len(texts) {
		return nil, fmt.Errorf("%w: embeddings count %d for %d inputs", domain.ErrMalformedOutput, len(out.Data), len(texts))
	}
	res := make([][]float32, len(out.Data))
	for i := range out.Data {
		v := make([]float32, len(out.Data[i].Embedding))
		for j := range out.Data[i].Embedding {
			v[j] = float32(out.Data[i].Embedding[j])
		}
		res[i] = v
	}
	return res, nil
}

// checkStatus maps response codes onto retry semantics: 429 retryable,
// other 4xx permanent, 5xx retryable.
func checkStatus(resp *http.Response, op string) error {
	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		slog.Warn("ai provider rate limited", slog.String("op", op), slog.String("x_request_id", resp.Header.Get("X-Request-Id")))
		return fmt.Errorf("%w: %s status 429", domain.ErrRateLimited, op)
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		snippet := readSnippet(resp.Body, 512)
		slog.Warn("ai provider 4xx", slog.String("op", op), slog.Int("status", resp.StatusCode), slog.String("body", snippet))
		return backoff.Permanent(fmt.Errorf("%w: %s status %d", domain.ErrUpstreamUnavailable, op, resp.StatusCode))
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		snippet := readSnippet(resp.Body, 512)
		slog.Error("ai provider non-2xx", slog.String("op", op), slog.Int("status", resp.StatusCode), slog.String("body", snippet))
		return fmt.Errorf("%w: %s status %d", domain.ErrUpstreamUnavailable, op, resp.StatusCode)
	}
	return nil
}

// classify wraps transport-level failures that carry no sentinel yet.
func classify(err error, op string) error {
	switch {
	case isSentinel(err):
		return err
	default:
		return fmt.Errorf("%w: %s: %v", domain.ErrUpstreamUnavailable, op, err)
	}
}

func isSentinel(err error) bool {
	for _, s := range []error{
		domain.ErrRateLimited,
		domain.ErrUpstreamUnavailable,
		domain.ErrInvalidArgument,
		domain.ErrMalformedOutput,
	} {
		if errors.Is(err, s) {
			return true
		}
	}
	return false
}

func readSnippet(r io.Reader, n int) string {
	if r == nil || n <= 0 {
		return ""
	}
	b, _ := io.ReadAll(io.LimitReader(r, int64(n)))
	return string(b)
}
