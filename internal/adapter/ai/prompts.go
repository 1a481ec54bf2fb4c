package ai

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/lydiaket/cs338-rubric/internal/adapter/ai/tokencount"
	"github.com/lydiaket/cs338-rubric/internal/domain"
)

const schemaSystemPrompt = `You are a rubric parser. Convert the rubric text into a JSON array of criteria.
Each element must be an object with exactly these fields:
  "key": the criterion name (string),
  "max_score": the maximum integer score (>= 1),
  "levels": an object mapping every integer score from 0 to max_score to a short description.
Respond with ONLY the JSON array. No markdown, no explanations.`

const gradeSystemPrompt = `You are a strict but fair essay grader. Score the essay against the given rubric criterion.
Respond with ONLY valid JSON. No markdown, no explanations.`

const batchSystemPrompt = `You are a strict but fair essay grader. Score the essay against every rubric criterion given.
Respond with ONLY a JSON array, one object per criterion, each with fields "criterion", "score", "snippet", "suggestion". No markdown, no explanations.`

// buildSchemaPrompt returns the user prompt for rubric parsing.
func buildSchemaPrompt(rubricText, model string, budget int) string {
	return "Rubric text:\n" + tokencount.Truncate(rubricText, model, budget)
}

// buildCriterionPrompt returns the user prompt for grading a single
// criterion: name, max score, the level ladder highest score first, and
// the (token-bounded) essay.
func buildCriterionPrompt(c domain.RubricCriterion, essay, model string, budget int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Criterion: %s\nMaximum score: %d\nScoring levels:\n", c.Key, c.MaxScore)
	for _, lvl := range levelsHighFirst(c) {
		fmt.Fprintf(&b, "  %d: %s\n", lvl, c.Levels[lvl])
	}
	b.WriteString(`Return a JSON object {"score": <integer>, "snippet": <supporting quote from the essay or null>, "suggestion": <one concrete improvement or null>}.`)
	b.WriteString("\n\nEssay:\n")
	b.WriteString(tokencount.Truncate(essay, model, budget))
	return b.String()
}

// buildBatchPrompt returns the user prompt carrying the whole rubric
// schema as JSON plus the essay.
func buildBatchPrompt(schema domain.RubricSchema, essay, model string, budget int) string {
	items := make([]map[string]any, 0, len(schema.Criteria))
	for _, c := range schema.Criteria {
		levels := make(map[string]string, len(c.Levels))
		for lvl, desc := range c.Levels {
			levels[fmt.Sprintf("%d", lvl)] = desc
		}
		items = append(items, map[string]any{
			"key":       c.Key,
			"max_score": c.MaxScore,
			"levels":    levels,
		})
	}
	rubricJSON, _ := json.Marshal(items)

	var b strings.Builder
	b.WriteString("Rubric:\n")
	b.Write(rubricJSON)
	b.WriteString("\n\nEssay:\n")
	b.WriteString(tokencount.Truncate(essay, model, budget))
	return b.String()
}

func levelsHighFirst(c domain.RubricCriterion) []int {
	levels := make([]int, 0, len(c.Levels))
	for lvl := range c.Levels {
		levels = append(levels, lvl)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(levels)))
	return levels
}
