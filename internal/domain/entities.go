package domain

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
)

// Error taxonomy (sentinels)
var (
	ErrInvalidArgument     = errors.New("invalid argument")
	ErrNotFound            = errors.New("not found")
	ErrRateLimited         = errors.New("rate limited")
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	ErrMalformedOutput     = errors.New("malformed oracle output")
	ErrInternal            = errors.New("internal error")
)

// Section is one logical chunk of an essay, named after a detected
// heading or one of the fallback labels (Introduction/Body/Conclusion).
type Section struct {
	Name string `json:"name"`
	Text string `json:"text"`
}

// RubricCriterion is a single graded aspect. Levels maps every integer
// score in [0, MaxScore] to a description; gaps are filled with
// placeholder text during schema normalization so the mapping is total.
type RubricCriterion struct {
	Key      string         `json:"key"`
	MaxScore int            `json:"max_score"`
	Levels   map[int]string `json:"levels"`
}

// RubricSchema is an ordered set of criteria, unique by key. ID is the
// truncated content hash of the source rubric text.
type RubricSchema struct {
	ID       string            `json:"rubric_id"`
	Criteria []RubricCriterion `json:"criteria"`
}

// CriterionResult is the grading outcome for one criterion.
// Invariant: 0 <= Score <= MaxScore; reconciliation guarantees exactly
// one result per schema criterion.
type CriterionResult struct {
	Criterion  string `json:"criterion"`
	Score      int    `json:"score"`
	MaxScore   int    `json:"max_score"`
	Snippet    string `json:"snippet,omitempty"`
	Suggestion string `json:"suggestion,omitempty"`
}

// Snippet is a supporting sentence with its similarity score.
type Snippet struct {
	Sentence string  `json:"sentence"`
	Score    float64 `json:"score"`
}

// MatchResult pairs a rubric criterion with its best-matching location
// in the essay (embedding mode).
type MatchResult struct {
	Criterion string    `json:"criterion"`
	Score     float64   `json:"score"`
	Section   string    `json:"section"`
	Snippets  []Snippet `json:"snippets"`
}

// RubricID derives the cache key for a rubric from its text content.
// Identical rubric text always maps to the same id.
func RubricID(rubricText string) string {
	h := sha256.Sum256([]byte(strings.TrimSpace(rubricText)))
	return hex.EncodeToString(h[:])[:16]
}

// Ports

// AIClient is the completion/embedding oracle. ChatJSON returns a
// best-effort completion for a JSON-only instruction; callers must
// treat the output as untrusted and run it through the repair cascade.
type AIClient interface {
	ChatJSON(ctx context.Context, systemPrompt, userPrompt string, maxTokens int) (string, error)
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// GrammarChecker counts grammar issues in a text.
type GrammarChecker interface {
	CheckGrammar(ctx context.Context, text string) (int, error)
}

// TextExtractor extracts plain text from an uploaded document at path.
type TextExtractor interface {
	ExtractPath(ctx context.Context, fileName, path string) (string, error)
}

// SchemaCache stores validated rubric schemas keyed by rubric id.
// Entries are written exactly once, after full validation.
type SchemaCache interface {
	Get(id string) (RubricSchema, bool)
	Put(schema RubricSchema)
}

// CriterionScorer grades an essay against a schema. Implementations:
// the oracle scorer (LLM-delegated) and the embedding scorer wrapper.
type CriterionScorer interface {
	Grade(ctx context.Context, schema RubricSchema, essayText string) ([]CriterionResult, error)
}
