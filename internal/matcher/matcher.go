// Package matcher implements the embedding-mode criterion matcher:
// cosine-similarity matching of rubric criteria against essay sections
// plus fixed presence heuristics (thesis, evidence, grammar,
// conclusion).
package matcher

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/lydiaket/cs338-rubric/internal/domain"
	"github.com/lydiaket/cs338-rubric/internal/essay"
	"github.com/lydiaket/cs338-rubric/pkg/textx"
)

// Similarity thresholds, matching the tuned values of the heuristic
// pipeline.
const (
	matchThreshold    = 0.30
	thesisThreshold   = 0.20
	evidenceThreshold = 0.30
	maxSnippets       = 2
)

const fullEssayLocation = "Full essay"

// Matcher scores rubric criteria against essay text using the
// embedding oracle, without any LLM involvement.
type Matcher struct {
	AI      domain.AIClient
	Grammar domain.GrammarChecker
}

// New constructs a Matcher.
func New(ai domain.AIClient, grammar domain.GrammarChecker) *Matcher {
	return &Matcher{AI: ai, Grammar: grammar}
}

// Match computes per-criterion relevance and the four presence
// heuristics. Any oracle failure fails the whole request; no partial
// results are returned.
func (m *Matcher) Match(ctx context.Context, text string, criteria []string) ([]domain.MatchResult, error) {
	if len(criteria) == 0 {
		return nil, fmt.Errorf("%w: empty criteria list", domain.ErrInvalidArgument)
	}

	sections := essay.Segment(text)
	sentences := textx.SplitSentences(text)
	leadSentences := openingSentences(text)

	// One batched embedding call: essay, sections, criteria, sentences,
	// the opening sentences, then the two heuristic probes.
	inputs := make([]string, 0, 3+len(sections)+len(criteria)+len(sentences)+len(leadSentences))
	inputs = append(inputs, text)
	for _, sec := range sections {
		inputs = append(inputs, sec.Text)
	}
	inputs = append(inputs, criteria...)
	inputs = append(inputs, sentences...)
	inputs = append(inputs, leadSentences...)
	inputs = append(inputs, thesisProbe, evidenceProbe)

	vecs, err := m.AI.Embed(ctx, inputs)
	if err != nil {
		return nil, fmt.Errorf("%w: embed: %v", domain.ErrUpstreamUnavailable, err)
	}
	if len(vecs) != len(inputs) {
		return nil, fmt.Errorf("%w: embedding count mismatch", domain.ErrInternal)
	}

	essayVec := vecs[0]
	secVecs := vecs[1 : 1+len(sections)]
	critVecs := vecs[1+len(sections) : 1+len(sections)+len(criteria)]
	sentVecs := vecs[1+len(sections)+len(criteria) : 1+len(sections)+len(criteria)+len(sentences)]
	leadVecs := vecs[1+len(sections)+len(criteria)+len(sentences) : len(vecs)-2]
	thesisVec := vecs[len(vecs)-2]
	evidenceVec := vecs[len(vecs)-1]

	results := make([]domain.MatchResult, 0, len(criteria)+4)
	for i, crit := range criteria {
		res, ok := m.matchCriterion(crit, critVecs[i], sections, secVecs, essayVec, sentences, sentVecs)
		if ok {
			results = append(results, res)
		}
	}

	heur, err := m.heuristics(ctx, text, sentences, sentVecs, leadSentences, leadVecs, thesisVec, evidenceVec)
	if err != nil {
		return nil, err
	}
	return append(results, heur...), nil
}

// matchCriterion finds the best section (or whole essay) for one
// criterion and attaches the top sentence snippets. Criteria below the
// inclusion threshold are dropped.
func (m *Matcher) matchCriterion(crit string, critVec []float32, sections []domain.Section, secVecs [][]float32, essayVec []float32, sentences []string, sentVecs [][]float32) (domain.MatchResult, bool) {
	secBest, secIdx := -1.0, -1
	for i, sv := range secVecs {
		if sim := CosineSimilarity(critVec, sv); sim > secBest {
			secBest, secIdx = sim, i
		}
	}
	essaySim := CosineSimilarity(critVec, essayVec)

	best := math.Max(secBest, essaySim)
	if best < matchThreshold {
		return domain.MatchResult{}, false
	}
	where := fullEssayLocation
	if secIdx >= 0 && secBest >= essaySim {
		where = sections[secIdx].Name
	}
	return domain.MatchResult{
		Criterion: crit,
		Score:     best,
		Section:   where,
		Snippets:  topSnippets(critVec, sentences, sentVecs),
	}, true
}

// topSnippets re-ranks all sentences against the criterion and keeps
// the best two.
func topSnippets(critVec []float32, sentences []string, sentVecs [][]float32) []domain.Snippet {
	snippets := make([]domain.Snippet, 0, len(sentences))
	for i, sv := range sentVecs {
		snippets = append(snippets, domain.Snippet{Sentence: sentences[i], Score: CosineSimilarity(critVec, sv)})
	}
	sort.SliceStable(snippets, func(a, b int) bool { return snippets[a].Score > snippets[b].Score })
	if len(snippets) > maxSnippets {
		snippets = snippets[:maxSnippets]
	}
	return snippets
}

// CosineSimilarity returns the cosine of the angle between two vectors,
// in [-1, 1]. Zero vectors yield 0.
func CosineSimilarity(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
