package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/lydiaket/cs338-rubric/internal/adapter/observability"
	"github.com/lydiaket/cs338-rubric/internal/config"
	"github.com/lydiaket/cs338-rubric/internal/domain"
)

// SchemaBuilder converts free-form rubric text into a normalized
// RubricSchema via the completion oracle.
type SchemaBuilder struct {
	AI  domain.AIClient
	Cfg config.Config
}

// NewSchemaBuilder constructs a SchemaBuilder.
func NewSchemaBuilder(ai domain.AIClient, cfg config.Config) *SchemaBuilder {
	return &SchemaBuilder{AI: ai, Cfg: cfg}
}

// schemaItem is the oracle's wire shape for one criterion. Levels
// values arrive as arbitrary JSON; they are stringified during
// normalization.
type schemaItem struct {
	Key      *string        `json:"key"`
	MaxScore *int           `json:"max_score"`
	Levels   map[string]any `json:"levels"`
}

// BuildSchema asks the oracle to parse rubricText, repairs and
// validates the response, and returns a normalized schema. A
// structurally invalid response is a hard failure: no partial schema is
// ever returned or cached.
func (b *SchemaBuilder) BuildSchema(ctx context.Context, rubricText string) (domain.RubricSchema, error) {
	if strings.TrimSpace(rubricText) == "" {
		return domain.RubricSchema{}, fmt.Errorf("%w: rubric text empty", domain.ErrInvalidArgument)
	}

	prompt := buildSchemaPrompt(rubricText, b.Cfg.ChatModel, b.Cfg.MaxPromptTokens)
	raw, err := b.AI.ChatJSON(ctx, schemaSystemPrompt, prompt, b.Cfg.MaxCompletionTokens)
	if err != nil {
		observability.SchemaBuildsTotal.WithLabelValues("upstream_error").Inc()
		return domain.RubricSchema{}, fmt.Errorf("schema build: %w", err)
	}

	schema, err := parseSchema(raw)
	if err != nil {
		observability.SchemaBuildsTotal.WithLabelValues("malformed").Inc()
		return domain.RubricSchema{}, err
	}
	schema.ID = domain.RubricID(rubricText)
	observability.SchemaBuildsTotal.WithLabelValues("ok").Inc()
	return schema, nil
}

// parseSchema repairs the raw completion and validates it into a
// schema. Missing levels are synthesized; missing required fields are
// fatal.
func parseSchema(raw string) (domain.RubricSchema, error) {
	fixed, err := RepairToJSON(raw)
	if err != nil {
		return domain.RubricSchema{}, err
	}

	var items []schemaItem
	if err := json.Unmarshal(fixed, &items); err != nil {
		return domain.RubricSchema{}, fmt.Errorf("%w: top-level response is not an array of criteria", domain.ErrMalformedOutput)
	}
	if len(items) == 0 {
		return domain.RubricSchema{}, fmt.Errorf("%w: empty criteria array", domain.ErrMalformedOutput)
	}

	var schema domain.RubricSchema
	seen := make(map[string]bool)
	for i, item := range items {
		crit, err := normalizeItem(i, item)
		if err != nil {
			return domain.RubricSchema{}, err
		}
		k := canonicalKey(crit.Key)
		if seen[k] {
			continue
		}
		seen[k] = true
		schema.Criteria = append(schema.Criteria, crit)
	}
	return schema, nil
}

func normalizeItem(idx int, item schemaItem) (domain.RubricCriterion, error) {
	if item.Key == nil || strings.TrimSpace(*item.Key) == "" {
		return domain.RubricCriterion{}, fmt.Errorf("%w: item %d missing key", domain.ErrMalformedOutput, idx)
	}
	if item.MaxScore == nil {
		return domain.RubricCriterion{}, fmt.Errorf("%w: item %d missing max_score", domain.ErrMalformedOutput, idx)
	}
	if item.Levels == nil {
		return domain.RubricCriterion{}, fmt.Errorf("%w: item %d missing levels", domain.ErrMalformedOutput, idx)
	}
	if *item.MaxScore < 1 {
		return domain.RubricCriterion{}, fmt.Errorf("%w: item %d max_score %d below 1", domain.ErrMalformedOutput, idx, *item.MaxScore)
	}

	crit := domain.RubricCriterion{
		Key:      strings.TrimSpace(*item.Key),
		MaxScore: *item.MaxScore,
		Levels:   make(map[int]string, *item.MaxScore+1),
	}
	for rawLvl, desc := range item.Levels {
		lvl, err := strconv.Atoi(strings.TrimSpace(rawLvl))
		if err != nil {
			return domain.RubricCriterion{}, fmt.Errorf("%w: item %d level key %q is not an integer", domain.ErrMalformedOutput, idx, rawLvl)
		}
		if lvl < 0 || lvl > crit.MaxScore {
			continue
		}
		crit.Levels[lvl] = stringify(desc)
	}
	// Levels must be total over [0, max_score]; synthesize what the
	// oracle dropped.
	for lvl := 0; lvl <= crit.MaxScore; lvl++ {
		if _, ok := crit.Levels[lvl]; !ok {
			crit.Levels[lvl] = fmt.Sprintf("Level %d (description not provided)", lvl)
		}
	}
	return crit, nil
}

func stringify(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

func canonicalKey(k string) string {
	return strings.ToLower(strings.TrimSpace(k))
}
