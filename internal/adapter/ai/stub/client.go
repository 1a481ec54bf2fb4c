// Package stub provides a fast, deterministic in-process oracle for
// development and tests. It never talks to the network.
package stub

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"regexp"
	"strconv"
	"strings"
)

// Client answers completion and embedding requests from the prompt
// text alone, so the same input always yields the same output.
type Client struct{}

// New constructs a stub Client.
func New() *Client { return &Client{} }

var (
	criterionRe = regexp.MustCompile(`(?m)^Criterion: (.+)$`)
	maxScoreRe  = regexp.MustCompile(`(?m)^Maximum score: (\d+)$`)
	rubricRe    = regexp.MustCompile(`(?s)Rubric:\n(\[.*?\])\n`)
)

// ChatJSON recognizes the three prompt shapes (schema build, single
// criterion, batch) and fabricates a plausible response for each.
func (c *Client) ChatJSON(_ context.Context, systemPrompt, userPrompt string, _ int) (string, error) {
	switch {
	case strings.Contains(systemPrompt, "rubric parser"):
		return c.schemaResponse()
	case strings.Contains(userPrompt, "Rubric:\n["):
		return c.batchResponse(userPrompt)
	default:
		return c.criterionResponse(userPrompt)
	}
}

func (c *Client) schemaResponse() (string, error) {
	keys := []string{"Thesis Statement", "Supporting Evidence", "Organization"}
	items := make([]map[string]any, 0, len(keys))
	for _, key := range keys {
		items = append(items, map[string]any{
			"key":       key,
			"max_score": 4,
			"levels": map[string]string{
				"0": "Not present",
				"1": "Minimal",
				"2": "Developing",
				"3": "Proficient",
				"4": "Exemplary",
			},
		})
	}
	b, _ := json.Marshal(items)
	return string(b), nil
}

func (c *Client) criterionResponse(userPrompt string) (string, error) {
	criterion := "Unknown"
	if m := criterionRe.FindStringSubmatch(userPrompt); m != nil {
		criterion = m[1]
	}
	maxScore := 4
	if m := maxScoreRe.FindStringSubmatch(userPrompt); m != nil {
		maxScore, _ = strconv.Atoi(m[1])
	}
	score := deterministicScore(userPrompt, maxScore)
	return fmt.Sprintf(`{"criterion": %q, "score": %d, "snippet": null, "suggestion": "Expand on %s."}`,
		criterion, score, strings.ToLower(criterion)), nil
}

func (c *Client) batchResponse(userPrompt string) (string, error) {
	m := rubricRe.FindStringSubmatch(userPrompt)
	if m == nil {
		return "[]", nil
	}
	var items []struct {
		Key      string `json:"key"`
		MaxScore int    `json:"max_score"`
	}
	if err := json.Unmarshal([]byte(m[1]), &items); err != nil {
		return "[]", nil
	}
	out := make([]map[string]any, 0, len(items))
	for _, it := range items {
		out = append(out, map[string]any{
			"criterion":  it.Key,
			"score":      deterministicScore(userPrompt+it.Key, it.MaxScore),
			"snippet":    nil,
			"suggestion": "Expand on " + strings.ToLower(it.Key) + ".",
		})
	}
	b, _ := json.Marshal(out)
	return string(b), nil
}

// Embed hashes each text into a small unit-independent vector.
func (c *Client) Embed(_ context.Context, texts []string) ([][]float32, error) {
	res := make([][]float32, len(texts))
	for i, t := range texts {
		res[i] = hashVector(t)
	}
	return res, nil
}

func deterministicScore(seed string, maxScore int) int {
	if maxScore < 1 {
		maxScore = 1
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(seed))
	// Bias toward the upper half of the range so stub grades look sane.
	half := maxScore/2 + 1
	return maxScore - int(h.Sum32()%uint32(half))
}

func hashVector(text string) []float32 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(strings.TrimSpace(strings.ToLower(text))))
	v := h.Sum64()
	vec := make([]float32, 8)
	for i := range vec {
		vec[i] = float32((v>>(i*8))&0xff) / 255.0
	}
	return vec
}
