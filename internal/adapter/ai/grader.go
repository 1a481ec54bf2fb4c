package ai

import (
	"context"
	"encoding/json"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/lydiaket/cs338-rubric/internal/adapter/observability"
	"github.com/lydiaket/cs338-rubric/internal/config"
	"github.com/lydiaket/cs338-rubric/internal/domain"
)

// OracleScorer grades essays by delegating judgment to the completion
// oracle. It implements domain.CriterionScorer with two strategies:
// one bounded prompt per criterion (fanned out concurrently), or a
// single batched prompt covering the whole rubric.
type OracleScorer struct {
	AI  domain.AIClient
	Cfg config.Config
}

// NewOracleScorer constructs an OracleScorer.
func NewOracleScorer(ai domain.AIClient, cfg config.Config) *OracleScorer {
	return &OracleScorer{AI: ai, Cfg: cfg}
}

// Grade dispatches to the configured strategy. Both strategies return
// exactly one result per schema criterion, in schema order.
func (s *OracleScorer) Grade(ctx context.Context, schema domain.RubricSchema, essayText string) ([]domain.CriterionResult, error) {
	if len(schema.Criteria) == 0 {
		return nil, fmt.Errorf("%w: schema has no criteria", domain.ErrInvalidArgument)
	}
	var (
		results []domain.CriterionResult
		err     error
	)
	if s.Cfg.GradeStrategy == config.StrategyBatched {
		results, err = s.gradeBatched(ctx, schema, essayText)
	} else {
		results, err = s.gradePerCriterion(ctx, schema, essayText)
	}
	if err != nil {
		return nil, err
	}
	for _, r := range results {
		if r.MaxScore > 0 {
			observability.CriterionScoreRatio.Observe(float64(r.Score) / float64(r.MaxScore))
		}
	}
	return results, nil
}

// gradePerCriterion issues one oracle call per criterion. Calls have no
// ordering dependency and run concurrently under a cap. An
// unrepairable response or missing score field fails the whole request:
// the call graded exactly one criterion and has nothing to fall back on.
func (s *OracleScorer) gradePerCriterion(ctx context.Context, schema domain.RubricSchema, essayText string) ([]domain.CriterionResult, error) {
	results := make([]domain.CriterionResult, len(schema.Criteria))
	g, gctx := errgroup.WithContext(ctx)
	limit := s.Cfg.GradeConcurrency
	if limit < 1 {
		limit = 1
	}
	g.SetLimit(limit)

	for i, crit := range schema.Criteria {
		i, crit := i, crit
		g.Go(func() error {
			prompt := buildCriterionPrompt(crit, essayText, s.Cfg.ChatModel, s.Cfg.MaxPromptTokens)
			raw, err := s.AI.ChatJSON(gctx, gradeSystemPrompt, prompt, s.Cfg.MaxCompletionTokens)
			if err != nil {
				return fmt.Errorf("grade %q: %w", crit.Key, err)
			}
			fixed, err := RepairToJSON(raw)
			if err != nil {
				return fmt.Errorf("grade %q: %w", crit.Key, err)
			}
			var item gradedItem
			if err := json.Unmarshal(fixed, &item); err != nil {
				return fmt.Errorf("grade %q: %w: not a JSON object", crit.Key, domain.ErrMalformedOutput)
			}
			if item.Score == nil {
				return fmt.Errorf("grade %q: %w: score field missing", crit.Key, domain.ErrMalformedOutput)
			}
			results[i] = item.toResult(crit)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// gradeBatched issues a single oracle call for the whole rubric and
// reconciles whatever comes back against the schema. Individual
// missing, duplicated, or renamed entries are not fatal here; only a
// completely unrepairable response is.
func (s *OracleScorer) gradeBatched(ctx context.Context, schema domain.RubricSchema, essayText string) ([]domain.CriterionResult, error) {
	prompt := buildBatchPrompt(schema, essayText, s.Cfg.ChatModel, s.Cfg.MaxPromptTokens)
	// Budget scales with rubric size so a long schema does not get
	// truncated mid-array.
	maxTokens := s.Cfg.MaxCompletionTokens * len(schema.Criteria)
	raw, err := s.AI.ChatJSON(ctx, batchSystemPrompt, prompt, maxTokens)
	if err != nil {
		return nil, fmt.Errorf("grade batch: %w", err)
	}
	items, err := parseBatch(raw)
	if err != nil {
		return nil, err
	}
	return reconcile(schema, items), nil
}

// parseBatch repairs the raw completion into a slice of graded items.
// Items that fail to decode individually are dropped (reconciliation
// fills the gaps); a top-level shape that is neither an array nor a
// single object is fatal.
func parseBatch(raw string) ([]gradedItem, error) {
	fixed, err := RepairToJSON(raw)
	if err != nil {
		return nil, fmt.Errorf("grade batch: %w", err)
	}
	var elems []json.RawMessage
	if err := json.Unmarshal(fixed, &elems); err != nil {
		// Some models answer a lone object when the rubric has one
		// criterion.
		var single gradedItem
		if err := json.Unmarshal(fixed, &single); err != nil {
			return nil, fmt.Errorf("grade batch: %w: response is neither array nor object", domain.ErrMalformedOutput)
		}
		return []gradedItem{single}, nil
	}
	items := make([]gradedItem, 0, len(elems))
	for _, e := range elems {
		var item gradedItem
		if err := json.Unmarshal(e, &item); err != nil {
			continue
		}
		items = append(items, item)
	}
	return items, nil
}
