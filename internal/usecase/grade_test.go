package usecase

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lydiaket/cs338-rubric/internal/domain"
)

type fakeScorer struct {
	results []domain.CriterionResult
	err     error
	schema  domain.RubricSchema
	essay   string
}

func (f *fakeScorer) Grade(_ context.Context, schema domain.RubricSchema, essayText string) ([]domain.CriterionResult, error) {
	f.schema = schema
	f.essay = essayText
	return f.results, f.err
}

func newGradeFixture(t *testing.T, sc *fakeScorer) (GradeService, domain.RubricSchema) {
	t.Helper()
	cache := newMapCache()
	schema := testRubricSchema()
	schema.ID = "cafebabe00000000"
	cache.Put(schema)
	rubrics := NewRubricService(&fakeBuilder{}, cache)
	return NewGradeService(rubrics, sc), schema
}

func TestGrade(t *testing.T) {
	t.Parallel()
	sc := &fakeScorer{results: []domain.CriterionResult{
		{Criterion: "Thesis", Score: 3, MaxScore: 4},
	}}
	svc, schema := newGradeFixture(t, sc)

	gotSchema, results, err := svc.Grade(context.Background(), schema.ID, "  An essay about birds.  ")
	require.NoError(t, err)
	assert.Equal(t, schema, gotSchema)
	require.Len(t, results, 1)
	assert.Equal(t, 3, results[0].Score)
	assert.Equal(t, schema, sc.schema)
	assert.Equal(t, "An essay about birds.", sc.essay, "essay must be sanitized before scoring")
}

func TestGradeUnknownRubric(t *testing.T) {
	t.Parallel()
	svc, _ := newGradeFixture(t, &fakeScorer{})

	_, _, err := svc.Grade(context.Background(), "ffffffffffffffff", "essay")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestGradeEmptyEssay(t *testing.T) {
	t.Parallel()
	svc, schema := newGradeFixture(t, &fakeScorer{})

	_, _, err := svc.Grade(context.Background(), schema.ID, "   ")
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
}

func TestGradeScorerFailure(t *testing.T) {
	t.Parallel()
	sc := &fakeScorer{err: domain.ErrUpstreamUnavailable}
	svc, schema := newGradeFixture(t, sc)

	_, _, err := svc.Grade(context.Background(), schema.ID, "essay")
	assert.ErrorIs(t, err, domain.ErrUpstreamUnavailable)
}
