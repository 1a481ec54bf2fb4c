package ai

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lydiaket/cs338-rubric/internal/domain"
)

func testSchema() domain.RubricSchema {
	return domain.RubricSchema{
		ID: "abc123",
		Criteria: []domain.RubricCriterion{
			{Key: "Thesis", MaxScore: 1, Levels: map[int]string{0: "No", 1: "Yes"}},
			{Key: "Evidence", MaxScore: 4, Levels: map[int]string{0: "None", 1: "Weak", 2: "Some", 3: "Good", 4: "Strong"}},
			{Key: "Conclusion", MaxScore: 2, Levels: map[int]string{0: "No", 1: "Weak", 2: "Clear"}},
		},
	}
}

func fptr(f float64) *float64 { return &f }
func sptr(s string) *string   { return &s }

func TestReconcile_Totality(t *testing.T) {
	t.Parallel()

	schema := testSchema()

	tests := []struct {
		name   string
		parsed []gradedItem
	}{
		{name: "empty_response", parsed: nil},
		{name: "subset", parsed: []gradedItem{{Criterion: "Evidence", Score: fptr(3)}}},
		{
			name: "superset_with_invented_criterion",
			parsed: []gradedItem{
				{Criterion: "Thesis", Score: fptr(1)},
				{Criterion: "Creativity", Score: fptr(5)},
			},
		},
		{
			name: "permutation",
			parsed: []gradedItem{
				{Criterion: "Conclusion", Score: fptr(2)},
				{Criterion: "Thesis", Score: fptr(0)},
				{Criterion: "Evidence", Score: fptr(4)},
			},
		},
		{
			name: "duplicates",
			parsed: []gradedItem{
				{Criterion: "Thesis", Score: fptr(1)},
				{Criterion: "Thesis", Score: fptr(0)},
			},
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := reconcile(schema, tt.parsed)
			require.Len(t, got, len(schema.Criteria))
			for i, c := range schema.Criteria {
				assert.Equal(t, c.Key, got[i].Criterion)
				assert.Equal(t, c.MaxScore, got[i].MaxScore)
				assert.GreaterOrEqual(t, got[i].Score, 0)
				assert.LessOrEqual(t, got[i].Score, c.MaxScore)
			}
		})
	}
}

func TestReconcile_MissingEntriesGetPlaceholder(t *testing.T) {
	t.Parallel()

	got := reconcile(testSchema(), []gradedItem{{Criterion: "Thesis", Score: fptr(1)}})
	require.Len(t, got, 3)
	assert.Equal(t, 1, got[0].Score)
	assert.Empty(t, got[0].Suggestion)

	assert.Equal(t, 0, got[1].Score)
	assert.Equal(t, placeholderSuggestion, got[1].Suggestion)
	assert.Equal(t, 0, got[2].Score)
	assert.Equal(t, placeholderSuggestion, got[2].Suggestion)
}

func TestReconcile_ScorelessEntryTreatedAsMissing(t *testing.T) {
	t.Parallel()

	got := reconcile(testSchema(), []gradedItem{
		{Criterion: "Thesis", Suggestion: sptr("state your claim early")},
	})
	assert.Equal(t, placeholderSuggestion, got[0].Suggestion)
	assert.Equal(t, 0, got[0].Score)
}

func TestReconcile_KeyMatchIsCaseInsensitive(t *testing.T) {
	t.Parallel()

	got := reconcile(testSchema(), []gradedItem{{Criterion: "  evidence ", Score: fptr(2)}})
	assert.Equal(t, 2, got[1].Score)
}

func TestReconcile_DuplicateFirstWins(t *testing.T) {
	t.Parallel()

	got := reconcile(testSchema(), []gradedItem{
		{Criterion: "Thesis", Score: fptr(1)},
		{Criterion: "THESIS", Score: fptr(0)},
	})
	assert.Equal(t, 1, got[0].Score)
}

func TestGradedItem_Clamping(t *testing.T) {
	t.Parallel()

	crit := domain.RubricCriterion{Key: "Evidence", MaxScore: 4}

	low := gradedItem{Criterion: "Evidence", Score: fptr(-3)}
	assert.Equal(t, 0, low.toResult(crit).Score)

	high := gradedItem{Criterion: "Evidence", Score: fptr(999)}
	assert.Equal(t, 4, high.toResult(crit).Score)

	frac := gradedItem{Criterion: "Evidence", Score: fptr(2.6)}
	assert.Equal(t, 3, frac.toResult(crit).Score)
}

func TestGradedItem_ToResultFields(t *testing.T) {
	t.Parallel()

	item := gradedItem{
		Criterion:  "Evidence",
		Score:      fptr(3),
		Snippet:    sptr("According to the 2019 study..."),
		Suggestion: sptr("Cite a second source."),
	}
	res := item.toResult(domain.RubricCriterion{Key: "Evidence", MaxScore: 4})
	assert.Equal(t, domain.CriterionResult{
		Criterion:  "Evidence",
		Score:      3,
		MaxScore:   4,
		Snippet:    "According to the 2019 study...",
		Suggestion: "Cite a second source.",
	}, res)
}
