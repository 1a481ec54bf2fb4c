// Package config defines configuration parsing and helpers.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
)

// Scorer modes and grading strategies selectable at construction time.
const (
	ScorerOracle    = "oracle"
	ScorerEmbedding = "embedding"

	StrategyPerCriterion = "per_criterion"
	StrategyBatched      = "batched"
)

// Config holds all application configuration parsed from environment variables.
type Config struct {
	AppEnv string `env:"APP_ENV" envDefault:"dev"`
	Port   int    `env:"PORT" envDefault:"8080"`

	// Completion/embedding oracle (OpenAI-compatible API)
	AIAPIKey        string `env:"AI_API_KEY"`
	AIBaseURL       string `env:"AI_BASE_URL" envDefault:"https://api.openai.com/v1"`
	ChatModel       string `env:"CHAT_MODEL" envDefault:"gpt-4o-mini"`
	EmbeddingsModel string `env:"EMBEDDINGS_MODEL" envDefault:"text-embedding-3-small"`
	// UseStubAI switches to the deterministic in-process oracle (dev/test only).
	UseStubAI bool `env:"USE_STUB_AI" envDefault:"false"`

	// External collaborators
	LanguageToolURL string `env:"LANGUAGETOOL_URL" envDefault:"http://languagetool:8010"`
	TikaURL         string `env:"TIKA_URL" envDefault:"http://tika:9998"`

	// Scorer selection
	ScorerMode    string `env:"SCORER_MODE" envDefault:"oracle"`
	GradeStrategy string `env:"GRADE_STRATEGY" envDefault:"per_criterion"`
	// GradeConcurrency caps concurrent per-criterion oracle calls.
	GradeConcurrency int `env:"GRADE_CONCURRENCY" envDefault:"4"`

	// Prompt/response budgets
	MaxPromptTokens     int `env:"MAX_PROMPT_TOKENS" envDefault:"6000"`
	MaxCompletionTokens int `env:"MAX_COMPLETION_TOKENS" envDefault:"1024"`

	// Rubric schema cache bounds
	SchemaCacheSize int           `env:"SCHEMA_CACHE_SIZE" envDefault:"512"`
	SchemaCacheTTL  time.Duration `env:"SCHEMA_CACHE_TTL" envDefault:"24h"`

	// Embedding cache (vectors keyed by text hash)
	EmbedCacheSize int `env:"EMBED_CACHE_SIZE" envDefault:"2048"`

	// HTTP server
	MaxUploadMB           int64         `env:"MAX_UPLOAD_MB" envDefault:"10"`
	CORSAllowOrigins      string        `env:"CORS_ALLOW_ORIGINS" envDefault:"*"`
	RateLimitPerMin       int           `env:"RATE_LIMIT_PER_MIN" envDefault:"30"`
	ServerShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" envDefault:"30s"`
	HTTPReadTimeout       time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"15s"`
	HTTPWriteTimeout      time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"60s"`
	HTTPIdleTimeout       time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"60s"`
	RequestTimeout        time.Duration `env:"REQUEST_TIMEOUT" envDefault:"90s"`

	// Tracing
	OTLPEndpoint    string `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:""`
	OTELServiceName string `env:"OTEL_SERVICE_NAME" envDefault:"essay-grader"`

	// Upstream retry backoff
	AIBackoffMaxElapsedTime  time.Duration `env:"AI_BACKOFF_MAX_ELAPSED_TIME" envDefault:"90s"`
	AIBackoffInitialInterval time.Duration `env:"AI_BACKOFF_INITIAL_INTERVAL" envDefault:"2s"`
	AIBackoffMaxInterval     time.Duration `env:"AI_BACKOFF_MAX_INTERVAL" envDefault:"20s"`
	AIBackoffMultiplier      float64       `env:"AI_BACKOFF_MULTIPLIER" envDefault:"1.5"`
}

// Load parses environment variables into a Config.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("op=config.Load: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects unknown enum values early.
func (c Config) Validate() error {
	switch c.ScorerMode {
	case ScorerOracle, ScorerEmbedding:
	default:
		return fmt.Errorf("op=config.Validate: unknown SCORER_MODE %q", c.ScorerMode)
	}
	switch c.GradeStrategy {
	case StrategyPerCriterion, StrategyBatched:
	default:
		return fmt.Errorf("op=config.Validate: unknown GRADE_STRATEGY %q", c.GradeStrategy)
	}
	return nil
}

// IsDev reports whether the app is running in development mode.
func (c Config) IsDev() bool { return strings.ToLower(c.AppEnv) == "dev" }

// IsProd reports whether the app is running in production mode.
func (c Config) IsProd() bool { return strings.ToLower(c.AppEnv) == "prod" }

// IsTest reports whether the app is running in test mode.
func (c Config) IsTest() bool { return strings.ToLower(c.AppEnv) == "test" }

// GetAIBackoffConfig returns backoff configuration appropriate for the
// current environment; tests get short intervals.
func (c Config) GetAIBackoffConfig() (maxElapsedTime, initialInterval, maxInterval time.Duration, multiplier float64) {
	if c.IsTest() {
		return 5 * time.Second, 100 * time.Millisecond, 1 * time.Second, 2.0
	}
	return c.AIBackoffMaxElapsedTime, c.AIBackoffInitialInterval, c.AIBackoffMaxInterval, c.AIBackoffMultiplier
}
