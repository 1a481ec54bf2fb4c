package matcher

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/lydiaket/cs338-rubric/internal/domain"
	"github.com/lydiaket/cs338-rubric/pkg/textx"
)

// Heuristic criterion names. These are synthesized for every match
// request regardless of the rubric contents.
const (
	CriterionThesis     = "Thesis Statement"
	CriterionEvidence   = "Supporting Evidence"
	CriterionGrammar    = "Grammar and Syntax"
	CriterionConclusion = "Conclusion Clarity"
)

// Probe sentences embedded alongside the essay to detect thesis and
// evidence sentences by similarity.
const (
	thesisProbe   = "This sentence states the main argument of the essay."
	evidenceProbe = "This sentence provides supporting evidence or examples."
)

var (
	evidenceRe   = regexp.MustCompile(`\d+%|\be\.g\.\b|\[\d+\]|\([A-Z][a-z]+ et al\., \d{4}\)`)
	conclusionRe = regexp.MustCompile(`(?i)\b(in conclusion|to conclude|in summary)\b`)
)

// heuristics evaluates the four fixed criteria. Grammar checking is the
// only extra oracle call; its failure fails the whole request.
// Thesis, evidence and conclusion are presence checks that report a
// score of 1.0; only grammar produces a graded score.
func (m *Matcher) heuristics(ctx context.Context, text string, sentences []string, sentVecs [][]float32, leadSentences []string, leadVecs [][]float32, thesisVec, evidenceVec []float32) ([]domain.MatchResult, error) {
	out := make([]domain.MatchResult, 0, 4)

	if res, ok := thesisMatch(thesisVec, leadSentences, leadVecs); ok {
		out = append(out, res)
	}
	if res, ok := evidenceMatch(evidenceVec, sentences, sentVecs); ok {
		out = append(out, res)
	}

	grammar, err := m.grammarMatch(ctx, text)
	if err != nil {
		return nil, err
	}
	out = append(out, grammar)

	if res, ok := conclusionMatch(text); ok {
		out = append(out, res)
	}
	return out, nil
}

// openingSentences returns the first two sentences of the first
// paragraph, the only candidates for thesis detection.
func openingSentences(text string) []string {
	sents := textx.SplitSentences(textx.FirstParagraph(text))
	if len(sents) > 2 {
		sents = sents[:2]
	}
	return sents
}

// bestProbeHit finds the sentence most similar to the probe. A hit
// requires the similarity to strictly exceed the threshold.
func bestProbeHit(probeVec []float32, sentVecs [][]float32, threshold float64) (int, float64, bool) {
	best, idx := -1.0, -1
	for i, sv := range sentVecs {
		if sim := CosineSimilarity(probeVec, sv); sim > best {
			best, idx = sim, i
		}
	}
	if idx < 0 || best <= threshold {
		return 0, 0, false
	}
	return idx, best, true
}

// thesisMatch checks the essay opening for a thesis-like sentence and
// locates the hit in the introduction.
func thesisMatch(thesisVec []float32, leadSentences []string, leadVecs [][]float32) (domain.MatchResult, bool) {
	idx, sim, ok := bestProbeHit(thesisVec, leadVecs, thesisThreshold)
	if !ok {
		return domain.MatchResult{}, false
	}
	return domain.MatchResult{
		Criterion: CriterionThesis,
		Score:     1.0,
		Section:   "Introduction",
		Snippets:  []domain.Snippet{{Sentence: leadSentences[idx], Score: sim}},
	}, true
}

// evidenceMatch accepts either a similarity hit against the evidence
// probe or a surface pattern (percentages, citations, "e.g.").
func evidenceMatch(evidenceVec []float32, sentences []string, sentVecs [][]float32) (domain.MatchResult, bool) {
	if idx, sim, ok := bestProbeHit(evidenceVec, sentVecs, evidenceThreshold); ok {
		return domain.MatchResult{
			Criterion: CriterionEvidence,
			Score:     1.0,
			Section:   fullEssayLocation,
			Snippets:  []domain.Snippet{{Sentence: sentences[idx], Score: sim}},
		}, true
	}
	for _, s := range sentences {
		if evidenceRe.MatchString(s) {
			return domain.MatchResult{
				Criterion: CriterionEvidence,
				Score:     1.0,
				Section:   fullEssayLocation,
				Snippets:  []domain.Snippet{{Sentence: s, Score: 1.0}},
			}, true
		}
	}
	return domain.MatchResult{}, false
}

// grammarMatch scores writing mechanics as 1 - errors per 100 words,
// clamped to [0, 1].
func (m *Matcher) grammarMatch(ctx context.Context, text string) (domain.MatchResult, error) {
	errCount, err := m.Grammar.CheckGrammar(ctx, text)
	if err != nil {
		return domain.MatchResult{}, fmt.Errorf("%w: grammar check: %v", domain.ErrUpstreamUnavailable, err)
	}
	words := textx.WordCount(text)
	score := 1.0
	if words > 0 {
		score = 1.0 - float64(errCount)/(float64(words)/100.0)
	}
	score = math.Max(0, math.Min(1, score))
	return domain.MatchResult{
		Criterion: CriterionGrammar,
		Score:     score,
		Section:   fullEssayLocation,
	}, nil
}

// conclusionMatch looks for an explicit wrap-up marker in the final
// paragraph.
func conclusionMatch(text string) (domain.MatchResult, bool) {
	paras := textx.SplitParagraphs(text)
	if len(paras) == 0 {
		return domain.MatchResult{}, false
	}
	last := paras[len(paras)-1]
	loc := conclusionRe.FindString(last)
	if loc == "" {
		return domain.MatchResult{}, false
	}
	sentence := last
	for _, s := range textx.SplitSentences(last) {
		if conclusionRe.MatchString(s) {
			sentence = s
			break
		}
	}
	return domain.MatchResult{
		Criterion: CriterionConclusion,
		Score:     1.0,
		Section:   "Conclusion",
		Snippets:  []domain.Snippet{{Sentence: strings.TrimSpace(sentence), Score: 1.0}},
	}, true
}
