package matcher

import (
	"context"
	"math"
	"strings"

	"github.com/lydiaket/cs338-rubric/internal/domain"
)

// EmbeddingScorer adapts the matcher to the CriterionScorer contract so
// grading can run without the completion oracle. Similarity in [0, 1]
// scales linearly onto each criterion's score range.
type EmbeddingScorer struct {
	Matcher *Matcher
}

// NewEmbeddingScorer constructs an EmbeddingScorer.
func NewEmbeddingScorer(m *Matcher) *EmbeddingScorer {
	return &EmbeddingScorer{Matcher: m}
}

// Grade returns exactly one result per schema criterion, in schema
// order. Criteria the matcher dropped (below threshold) score zero.
func (s *EmbeddingScorer) Grade(ctx context.Context, schema domain.RubricSchema, essayText string) ([]domain.CriterionResult, error) {
	keys := make([]string, 0, len(schema.Criteria))
	for _, c := range schema.Criteria {
		keys = append(keys, c.Key)
	}
	matches, err := s.Matcher.Match(ctx, essayText, keys)
	if err != nil {
		return nil, err
	}

	byKey := make(map[string]domain.MatchResult, len(matches))
	for _, mr := range matches {
		k := strings.ToLower(strings.TrimSpace(mr.Criterion))
		if _, seen := byKey[k]; !seen {
			byKey[k] = mr
		}
	}

	results := make([]domain.CriterionResult, 0, len(schema.Criteria))
	for _, c := range schema.Criteria {
		res := domain.CriterionResult{Criterion: c.Key, MaxScore: c.MaxScore}
		if mr, ok := byKey[strings.ToLower(strings.TrimSpace(c.Key))]; ok {
			sim := math.Max(0, math.Min(1, mr.Score))
			res.Score = int(math.Round(sim * float64(c.MaxScore)))
			if len(mr.Snippets) > 0 {
				res.Snippet = mr.Snippets[0].Sentence
			}
		}
		results = append(results, res)
	}
	return results, nil
}
