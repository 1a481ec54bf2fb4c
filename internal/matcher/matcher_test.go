package matcher

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lydiaket/cs338-rubric/internal/domain"
)

// embedRule maps any input containing substr to a fixed vector. Rules
// are checked in order, first match wins.
type embedRule struct {
	substr string
	vec    []float32
}

type fakeEmbedder struct {
	rules []embedRule
	def   []float32
	err   error
	calls int
}

func (f *fakeEmbedder) ChatJSON(_ context.Context, _, _ string, _ int) (string, error) {
	return "", errors.New("chat not supported")
}

func (f *fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = f.vecFor(t)
	}
	return out, nil
}

func (f *fakeEmbedder) vecFor(text string) []float32 {
	for _, r := range f.rules {
		if strings.Contains(text, r.substr) {
			return r.vec
		}
	}
	return f.def
}

type fakeGrammar struct {
	count int
	err   error
}

func (f *fakeGrammar) CheckGrammar(_ context.Context, _ string) (int, error) {
	return f.count, f.err
}

const essayText = "Alpha shaped the outcome of the war. Trade collapsed by 45%.\n\n" +
	"Farmers suffered under the blockade. Many left their farms.\n\n" +
	"In conclusion, commerce drove the conflict."

// newFixtureEmbedder wires deterministic vectors: the opening sentence
// is thesis-like and strongly related to the "Alpha influence"
// criterion, the percentage sentence is evidence-like, and everything
// else is orthogonal to both criteria and probes.
func newFixtureEmbedder() *fakeEmbedder {
	return &fakeEmbedder{
		rules: []embedRule{
			{substr: "main argument", vec: []float32{0, 1, 0, 0, 0}},
			{substr: "supporting evidence", vec: []float32{0, 0, 1, 0, 0}},
			{substr: "Alpha shaped the outcome", vec: []float32{0.8, 0.6, 0, 0, 0}},
			{substr: "Alpha", vec: []float32{1, 0, 0, 0, 0}},
			{substr: "45%", vec: []float32{0, 0, 0.9, 0.1, 0}},
			{substr: "Quantum", vec: []float32{0, 0, 0, 0, 1}},
		},
		def: []float32{0, 0, 0, 1, 0},
	}
}

func findResult(t *testing.T, results []domain.MatchResult, criterion string) domain.MatchResult {
	t.Helper()
	for _, r := range results {
		if r.Criterion == criterion {
			return r
		}
	}
	t.Fatalf("criterion %q not in results", criterion)
	return domain.MatchResult{}
}

func TestMatchCriterionLocation(t *testing.T) {
	t.Parallel()
	emb := newFixtureEmbedder()
	m := New(emb, &fakeGrammar{})

	results, err := m.Match(context.Background(), essayText, []string{"Alpha influence", "Quantum dynamics"})
	require.NoError(t, err)
	assert.Equal(t, 1, emb.calls, "all embeddings should come from one batched call")

	alpha := findResult(t, results, "Alpha influence")
	assert.InDelta(t, 0.8, alpha.Score, 0.01)
	assert.Equal(t, "Introduction", alpha.Section)
	require.NotEmpty(t, alpha.Snippets)
	assert.Equal(t, "Alpha shaped the outcome of the war.", alpha.Snippets[0].Sentence)
	assert.LessOrEqual(t, len(alpha.Snippets), 2)

	for _, r := range results {
		assert.NotEqual(t, "Quantum dynamics", r.Criterion, "below-threshold criterion must be dropped")
	}
}

func TestMatchHeuristics(t *testing.T) {
	t.Parallel()
	m := New(newFixtureEmbedder(), &fakeGrammar{count: 0})

	results, err := m.Match(context.Background(), essayText, []string{"Alpha influence"})
	require.NoError(t, err)

	thesis := findResult(t, results, CriterionThesis)
	assert.Equal(t, 1.0, thesis.Score)
	assert.Equal(t, "Introduction", thesis.Section)
	require.Len(t, thesis.Snippets, 1)
	assert.Equal(t, "Alpha shaped the outcome of the war.", thesis.Snippets[0].Sentence)
	assert.InDelta(t, 0.6, thesis.Snippets[0].Score, 0.01)

	evidence := findResult(t, results, CriterionEvidence)
	assert.Equal(t, 1.0, evidence.Score)
	assert.Equal(t, "Full essay", evidence.Section)
	require.Len(t, evidence.Snippets, 1)
	assert.Equal(t, "Trade collapsed by 45%.", evidence.Snippets[0].Sentence)

	grammar := findResult(t, results, CriterionGrammar)
	assert.InDelta(t, 1.0, grammar.Score, 0.001)

	conclusion := findResult(t, results, CriterionConclusion)
	assert.Equal(t, 1.0, conclusion.Score)
	assert.Equal(t, "Conclusion", conclusion.Section)
	require.Len(t, conclusion.Snippets, 1)
	assert.Equal(t, "In conclusion, commerce drove the conflict.", conclusion.Snippets[0].Sentence)
}

func TestMatchGrammarScoreClamped(t *testing.T) {
	t.Parallel()
	m := New(newFixtureEmbedder(), &fakeGrammar{count: 50})

	results, err := m.Match(context.Background(), essayText, []string{"Alpha influence"})
	require.NoError(t, err)

	grammar := findResult(t, results, CriterionGrammar)
	assert.Equal(t, 0.0, grammar.Score)
}

func TestMatchEvidenceRegexFallback(t *testing.T) {
	t.Parallel()
	// Probes and sentences are mutually orthogonal, so only the surface
	// pattern can trigger the evidence heuristic.
	emb := &fakeEmbedder{
		rules: []embedRule{
			{substr: "main argument", vec: []float32{0, 1, 0, 0, 0}},
			{substr: "supporting evidence", vec: []float32{0, 0, 1, 0, 0}},
		},
		def: []float32{1, 0, 0, 0, 0},
	}
	m := New(emb, &fakeGrammar{})

	text := "Cats are great pets. Studies prove this [3].\n\nIn conclusion, cats rule."
	results, err := m.Match(context.Background(), text, []string{"pets"})
	require.NoError(t, err)

	evidence := findResult(t, results, CriterionEvidence)
	assert.Equal(t, 1.0, evidence.Score)
	require.Len(t, evidence.Snippets, 1)
	assert.Equal(t, "Studies prove this [3].", evidence.Snippets[0].Sentence)

	for _, r := range results {
		assert.NotEqual(t, CriterionThesis, r.Criterion)
	}
}

func TestMatchThesisScopedToOpening(t *testing.T) {
	t.Parallel()
	emb := &fakeEmbedder{
		rules: []embedRule{
			{substr: "main argument", vec: []float32{0, 1, 0, 0, 0}},
			{substr: "supporting evidence", vec: []float32{0, 0, 1, 0, 0}},
			{substr: "argues that trade", vec: []float32{0, 1, 0, 0, 0}},
		},
		def: []float32{1, 0, 0, 0, 0},
	}
	m := New(emb, &fakeGrammar{})

	// A thesis-like sentence outside the first paragraph must not count.
	buried := "The weather was mild that spring.\n\nThis essay argues that trade caused the war."
	results, err := m.Match(context.Background(), buried, []string{"trade"})
	require.NoError(t, err)
	for _, r := range results {
		assert.NotEqual(t, CriterionThesis, r.Criterion)
	}

	// The same sentence opening the essay is detected.
	leading := "This essay argues that trade caused the war.\n\nThe weather was mild that spring."
	results, err = m.Match(context.Background(), leading, []string{"trade"})
	require.NoError(t, err)
	thesis := findResult(t, results, CriterionThesis)
	assert.Equal(t, "Introduction", thesis.Section)
	require.Len(t, thesis.Snippets, 1)
	assert.Equal(t, "This essay argues that trade caused the war.", thesis.Snippets[0].Sentence)
}

func TestMatchProbeThresholdsAreStrict(t *testing.T) {
	t.Parallel()
	// Against the sentence vector (-1, 2, 4, 2, 0) the thesis probe
	// (3, 4, 0, 0, 0) has cosine exactly 0.2 and the evidence probe
	// (1, 1, 1, -1, 0) exactly 0.3. Similarity equal to the threshold
	// must not fire either heuristic.
	emb := &fakeEmbedder{
		rules: []embedRule{
			{substr: "main argument", vec: []float32{3, 4, 0, 0, 0}},
			{substr: "supporting evidence", vec: []float32{1, 1, 1, -1, 0}},
		},
		def: []float32{-1, 2, 4, 2, 0},
	}
	m := New(emb, &fakeGrammar{})

	text := "Rivers changed course over decades. Silt built up along the banks."
	results, err := m.Match(context.Background(), text, []string{"geography"})
	require.NoError(t, err)

	for _, r := range results {
		assert.NotEqual(t, CriterionThesis, r.Criterion)
		assert.NotEqual(t, CriterionEvidence, r.Criterion)
	}
}

func TestMatchEmbedFailure(t *testing.T) {
	t.Parallel()
	m := New(&fakeEmbedder{err: errors.New("boom")}, &fakeGrammar{})

	_, err := m.Match(context.Background(), essayText, []string{"anything"})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrUpstreamUnavailable)
}

func TestMatchGrammarFailure(t *testing.T) {
	t.Parallel()
	m := New(newFixtureEmbedder(), &fakeGrammar{err: errors.New("languagetool down")})

	_, err := m.Match(context.Background(), essayText, []string{"Alpha influence"})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrUpstreamUnavailable)
}

func TestMatchEmptyCriteria(t *testing.T) {
	t.Parallel()
	m := New(newFixtureEmbedder(), &fakeGrammar{})

	_, err := m.Match(context.Background(), essayText, nil)
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
}

func TestCosineSimilarity(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{name: "identical", a: []float32{1, 2, 3}, b: []float32{1, 2, 3}, want: 1},
		{name: "orthogonal", a: []float32{1, 0}, b: []float32{0, 1}, want: 0},
		{name: "opposite", a: []float32{1, 0}, b: []float32{-1, 0}, want: -1},
		{name: "zero vector", a: []float32{0, 0}, b: []float32{1, 1}, want: 0},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.InDelta(t, tt.want, CosineSimilarity(tt.a, tt.b), 1e-9)
		})
	}
}

func TestEmbeddingScorerGrade(t *testing.T) {
	t.Parallel()
	scorer := NewEmbeddingScorer(New(newFixtureEmbedder(), &fakeGrammar{}))
	schema := domain.RubricSchema{
		ID: "abc123",
		Criteria: []domain.RubricCriterion{
			{Key: "Alpha influence", MaxScore: 4, Levels: map[int]string{0: "none", 4: "full"}},
			{Key: "Quantum dynamics", MaxScore: 3, Levels: map[int]string{0: "none", 3: "full"}},
		},
	}

	results, err := scorer.Grade(context.Background(), schema, essayText)
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, "Alpha influence", results[0].Criterion)
	assert.Equal(t, 3, results[0].Score)
	assert.Equal(t, 4, results[0].MaxScore)
	assert.Equal(t, "Alpha shaped the outcome of the war.", results[0].Snippet)

	assert.Equal(t, "Quantum dynamics", results[1].Criterion)
	assert.Equal(t, 0, results[1].Score)
	assert.Equal(t, 3, results[1].MaxScore)
}

func TestEmbeddingScorerPropagatesFailure(t *testing.T) {
	t.Parallel()
	scorer := NewEmbeddingScorer(New(&fakeEmbedder{err: errors.New("down")}, &fakeGrammar{}))
	schema := domain.RubricSchema{Criteria: []domain.RubricCriterion{{Key: "x", MaxScore: 1}}}

	_, err := scorer.Grade(context.Background(), schema, essayText)
	assert.ErrorIs(t, err, domain.ErrUpstreamUnavailable)
}
