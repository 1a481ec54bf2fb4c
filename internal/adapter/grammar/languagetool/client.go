// Package languagetool implements domain.GrammarChecker against a
// LanguageTool server's /v2/check endpoint.
package languagetool

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/lydiaket/cs338-rubric/internal/adapter/observability"
	"github.com/lydiaket/cs338-rubric/internal/domain"
)

// Client checks essay text for grammar issues. The match count feeds
// the errors-per-100-words heuristic; individual matches are not
// surfaced.
type Client struct {
	baseURL    string
	language   string
	httpClient *http.Client
}

// New constructs a Client with a default timeout.
func New(baseURL string) *Client {
	return &Client{
		baseURL:    baseURL,
		language:   "en-US",
		httpClient: &http.Client{Timeout: 20 * time.Second},
	}
}

// CheckGrammar returns the number of grammar matches in text.
func (c *Client) CheckGrammar(ctx context.Context, text string) (int, error) {
	form := url.Values{}
	form.Set("text", text)
	form.Set("language", c.language)

	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v2/check", strings.NewReader(form.Encode()))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := c.httpClient.Do(req)
	observability.AIRequestsTotal.WithLabelValues("languagetool", "check").Inc()
	observability.AIRequestDuration.WithLabelValues("languagetool", "check").Observe(time.Since(start).Seconds())
	if err != nil {
		return 0, fmt.Errorf("%w: languagetool: %v", domain.ErrUpstreamUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return 0, fmt.Errorf("%w: languagetool status %d", domain.ErrUpstreamUnavailable, resp.StatusCode)
	}
	var out struct {
		Matches []json.RawMessage `json:"matches"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, fmt.Errorf("%w: languagetool: %v", domain.ErrUpstreamUnavailable, err)
	}
	return len(out.Matches), nil
}
