package ai

import (
	"math"

	"github.com/lydiaket/cs338-rubric/internal/adapter/observability"
	"github.com/lydiaket/cs338-rubric/internal/domain"
)

// placeholderSuggestion fills results the oracle failed to return.
const placeholderSuggestion = "No evidence found for this criterion."

// gradedItem is the oracle's wire shape for one grading result. Score
// is a pointer so a missing field is distinguishable from zero; it is a
// float because models sometimes emit fractional scores.
type gradedItem struct {
	Criterion  string   `json:"criterion"`
	Score      *float64 `json:"score"`
	Snippet    *string  `json:"snippet"`
	Suggestion *string  `json:"suggestion"`
}

// toResult rounds, clamps, and attaches the criterion's bounds.
func (g gradedItem) toResult(c domain.RubricCriterion) domain.CriterionResult {
	res := domain.CriterionResult{Criterion: c.Key, MaxScore: c.MaxScore}
	if g.Score != nil {
		res.Score = clampScore(int(math.Round(*g.Score)), c.MaxScore)
	}
	if g.Snippet != nil {
		res.Snippet = *g.Snippet
	}
	if g.Suggestion != nil {
		res.Suggestion = *g.Suggestion
	}
	return res
}

func clampScore(score, maxScore int) int {
	if score < 0 {
		return 0
	}
	if score > maxScore {
		return maxScore
	}
	return score
}

// reconcile maps whatever the oracle returned onto the full schema:
// exactly one result per criterion, in schema order. Items are matched
// by criterion name (case-insensitive), never by position. Duplicates
// after the first are ignored; missing or scoreless entries become
// zero-score placeholders.
func reconcile(schema domain.RubricSchema, parsed []gradedItem) []domain.CriterionResult {
	byKey := make(map[string]gradedItem, len(parsed))
	for _, item := range parsed {
		k := canonicalKey(item.Criterion)
		if _, dup := byKey[k]; dup {
			continue
		}
		byKey[k] = item
	}

	results := make([]domain.CriterionResult, 0, len(schema.Criteria))
	for _, c := range schema.Criteria {
		item, ok := byKey[canonicalKey(c.Key)]
		if !ok || item.Score == nil {
			observability.ReconciledPlaceholdersTotal.Inc()
			results = append(results, domain.CriterionResult{
				Criterion:  c.Key,
				Score:      0,
				MaxScore:   c.MaxScore,
				Suggestion: placeholderSuggestion,
			})
			continue
		}
		results = append(results, item.toResult(c))
	}
	return results
}
