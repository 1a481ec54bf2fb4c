package usecase

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lydiaket/cs338-rubric/internal/domain"
)

type fakeMatcher struct {
	got     []string
	results []domain.MatchResult
	err     error
}

func (f *fakeMatcher) Match(_ context.Context, _ string, criteria []string) ([]domain.MatchResult, error) {
	f.got = criteria
	return f.results, f.err
}

func TestAnalyze(t *testing.T) {
	t.Parallel()
	m := &fakeMatcher{results: []domain.MatchResult{{Criterion: "Thesis", Score: 0.8}}}
	svc := NewAnalyzeService(m)

	results, err := svc.Analyze(context.Background(), "Some essay.", []string{" Thesis ", "", "Evidence"})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, []string{"Thesis", "Evidence"}, m.got, "criteria must be sanitized and blanks dropped")
}

func TestAnalyzeEmptyInputs(t *testing.T) {
	t.Parallel()
	svc := NewAnalyzeService(&fakeMatcher{})

	_, err := svc.Analyze(context.Background(), "  ", []string{"Thesis"})
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)

	_, err = svc.Analyze(context.Background(), "essay", []string{"  ", ""})
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
}

func TestAnalyzeRubricText(t *testing.T) {
	t.Parallel()
	m := &fakeMatcher{results: []domain.MatchResult{{Criterion: "Thesis", Score: 0.9}}}
	svc := NewAnalyzeService(m)

	rubric := "Row A Thesis (0-1 points)\nStates a defensible claim.\n\nEvidence and Commentary (0-4 points)\nProvides specific evidence."
	_, err := svc.AnalyzeRubricText(context.Background(), "Some essay.", rubric)
	require.NoError(t, err)
	assert.Equal(t, []string{"Thesis", "Evidence and Commentary"}, m.got)
}

func TestAnalyzeRubricTextNoCriteria(t *testing.T) {
	t.Parallel()
	svc := NewAnalyzeService(&fakeMatcher{})

	_, err := svc.AnalyzeRubricText(context.Background(), "Some essay.", "Just prose with no point values.")
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
}

func TestStructure(t *testing.T) {
	t.Parallel()
	svc := NewEssayService()

	sections, err := svc.Structure("Introduction\nThe opening.\n\nConclusion\nThe close.")
	require.NoError(t, err)
	require.Len(t, sections, 2)
	assert.Equal(t, "Introduction", sections[0].Name)
	assert.Equal(t, "Conclusion", sections[1].Name)

	_, err = svc.Structure("   ")
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
}

func TestStructureParagraphFallback(t *testing.T) {
	t.Parallel()
	svc := NewEssayService()

	sections, err := svc.Structure("First paragraph.\n\nSecond paragraph.")
	require.NoError(t, err)
	require.Len(t, sections, 2)
	assert.Equal(t, "Introduction", sections[0].Name)
	assert.Equal(t, "Conclusion", sections[1].Name)
}
