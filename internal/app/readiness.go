package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/lydiaket/cs338-rubric/internal/config"
)

// BuildReadinessChecks returns readiness probes for the completion
// oracle, the grammar checker and the text extractor. With the stub
// oracle active the AI probe always passes.
func BuildReadinessChecks(cfg config.Config) (
	func(ctx context.Context) error,
	func(ctx context.Context) error,
	func(ctx context.Context) error,
) {
	aiCheck := func(ctx context.Context) error {
		if cfg.UseStubAI {
			return nil
		}
		if cfg.AIAPIKey == "" {
			return fmt.Errorf("ai api key not configured")
		}
		return probeHTTP(ctx, cfg.AIBaseURL+"/models", "Bearer "+cfg.AIAPIKey)
	}
	grammarCheck := func(ctx context.Context) error {
		if cfg.LanguageToolURL == "" {
			return fmt.Errorf("languagetool url not configured")
		}
		return probeHTTP(ctx, cfg.LanguageToolURL+"/v2/languages", "")
	}
	tikaCheck := func(ctx context.Context) error {
		if cfg.TikaURL == "" {
			return fmt.Errorf("tika url not configured")
		}
		return probeHTTP(ctx, cfg.TikaURL+"/version", "")
	}
	return aiCheck, grammarCheck, tikaCheck
}

func probeHTTP(ctx context.Context, url, auth string) error {
	client := &http.Client{Timeout: 2 * time.Second}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	return fmt.Errorf("probe %s status %d", url, resp.StatusCode)
}
