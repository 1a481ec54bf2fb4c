// Command server starts the essay grading HTTP server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	ai "github.com/lydiaket/cs338-rubric/internal/adapter/ai"
	"github.com/lydiaket/cs338-rubric/internal/adapter/ai/openai"
	"github.com/lydiaket/cs338-rubric/internal/adapter/ai/stub"
	"github.com/lydiaket/cs338-rubric/internal/adapter/cache"
	"github.com/lydiaket/cs338-rubric/internal/adapter/grammar/languagetool"
	httpserver "github.com/lydiaket/cs338-rubric/internal/adapter/httpserver"
	"github.com/lydiaket/cs338-rubric/internal/adapter/observability"
	tikaext "github.com/lydiaket/cs338-rubric/internal/adapter/textextractor/tika"
	"github.com/lydiaket/cs338-rubric/internal/app"
	"github.com/lydiaket/cs338-rubric/internal/config"
	"github.com/lydiaket/cs338-rubric/internal/domain"
	"github.com/lydiaket/cs338-rubric/internal/matcher"
	"github.com/lydiaket/cs338-rubric/internal/usecase"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := observability.SetupLogger(cfg)
	slog.SetDefault(logger)

	// Register all Prometheus metrics once per process so that /metrics
	// exposes HTTP and oracle instrumentation.
	observability.InitMetrics()

	shutdownTracer, err := observability.SetupTracing(cfg)
	if err != nil {
		slog.Error("failed to setup tracing", slog.Any("error", err))
	}
	defer func() {
		if shutdownTracer != nil {
			_ = shutdownTracer(context.Background())
		}
	}()

	// Completion/embedding oracle; the stub keeps dev and CI offline.
	var oracle domain.AIClient
	if cfg.UseStubAI {
		oracle = stub.New()
		slog.Info("using stub AI client")
	} else {
		oracle = openai.New(cfg)
	}
	// Embedding cache wrapper (caches embeddings only, chat passes through).
	aicl := cache.NewEmbedCache(oracle, cfg.EmbedCacheSize)

	grammar := languagetool.New(cfg.LanguageToolURL)

	// Criterion scorer: LLM oracle by default, embedding similarity otherwise.
	var scorer domain.CriterionScorer
	if cfg.ScorerMode == config.ScorerEmbedding {
		scorer = matcher.NewEmbeddingScorer(matcher.New(aicl, grammar))
	} else {
		scorer = ai.NewOracleScorer(aicl, cfg)
	}
	slog.Info("scorer initialized", slog.String("mode", cfg.ScorerMode), slog.String("strategy", cfg.GradeStrategy))

	// Usecases
	schemaCache := cache.NewSchemaCache(cfg.SchemaCacheSize, cfg.SchemaCacheTTL)
	rubricSvc := usecase.NewRubricService(ai.NewSchemaBuilder(aicl, cfg), schemaCache)
	gradeSvc := usecase.NewGradeService(rubricSvc, scorer)
	analyzeSvc := usecase.NewAnalyzeService(matcher.New(aicl, grammar))
	essaySvc := usecase.NewEssayService()

	// Readiness checks
	aiCheck, grammarCheck, tikaCheck := app.BuildReadinessChecks(cfg)

	// External text extractor (Apache Tika)
	ext := tikaext.New(cfg.TikaURL)

	// HTTP server
	srv := httpserver.NewServer(cfg, rubricSvc, gradeSvc, analyzeSvc, essaySvc, ext, aiCheck, grammarCheck, tikaCheck)
	handler := app.BuildRouter(cfg, srv)

	srvHTTP := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           handler,
		ReadTimeout:       cfg.HTTPReadTimeout,
		WriteTimeout:      cfg.HTTPWriteTimeout,
		IdleTimeout:       cfg.HTTPIdleTimeout,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown
	errCh := make(chan error, 1)
	go func() {
		slog.Info("http server starting", slog.Int("port", cfg.Port))
		errCh <- srvHTTP.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		slog.Info("shutdown signal received", slog.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", slog.Any("error", err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ServerShutdownTimeout)
	defer cancel()
	_ = srvHTTP.Shutdown(shutdownCtx)
}
