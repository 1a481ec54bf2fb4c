package ai

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lydiaket/cs338-rubric/internal/domain"
)

func TestRepairToJSON(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "clean_json",
			input:    `{"score": 3}`,
			expected: `{"score": 3}`,
		},
		{
			name:     "json_fence",
			input:    "```json\n{\"score\": 3}\n```",
			expected: `{"score": 3}`,
		},
		{
			name:     "bare_fence",
			input:    "```\n[1, 2]\n```",
			expected: `[1, 2]`,
		},
		{
			name:     "fenced_unquoted_keys",
			input:    "```json\n{score: 3, snippet: null}\n```",
			expected: `{"score": 3, "snippet": null}`,
		},
		{
			name:     "single_quotes_with_apostrophe",
			input:    `{'snippet': 'the essay's core claim', 'score': 2}`,
			expected: `{"snippet": "the essay's core claim", "score": 2}`,
		},
		{
			name:     "trailing_comma",
			input:    `{"score": 1,}`,
			expected: `{"score": 1}`,
		},
		{
			name:     "surrounding_prose_array",
			input:    "Here are your results:\n[{\"criterion\": \"Thesis\", \"score\": 2}]\nHope that helps!",
			expected: `[{"criterion": "Thesis", "score": 2}]`,
		},
		{
			name:     "surrounding_prose_object",
			input:    "Sure! {\"score\": 4} is my verdict.",
			expected: `{"score": 4}`,
		},
		{
			name:     "prose_and_unquoted_keys",
			input:    "The grade is: {score: 0, suggestion: \"add a thesis\"}",
			expected: `{"score": 0, "suggestion": "add a thesis"}`,
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := RepairToJSON(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, string(got))
			assert.True(t, json.Valid(got))
		})
	}
}

func TestRepairToJSON_ParsesToExpectedValue(t *testing.T) {
	t.Parallel()

	got, err := RepairToJSON("```json\n{score: 3, snippet: null}\n```")
	require.NoError(t, err)
	var v struct {
		Score   int     `json:"score"`
		Snippet *string `json:"snippet"`
	}
	require.NoError(t, json.Unmarshal(got, &v))
	assert.Equal(t, 3, v.Score)
	assert.Nil(t, v.Snippet)
}

func TestRepairToJSON_Unrepairable(t *testing.T) {
	t.Parallel()

	_, err := RepairToJSON("I cannot grade this essay, sorry.")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrMalformedOutput)

	var rerr *RepairError
	require.ErrorAs(t, err, &rerr)
	assert.Contains(t, rerr.Raw, "cannot grade")
}

func TestStripFences(t *testing.T) {
	t.Parallel()

	assert.Equal(t, `{"a":1}`, stripFences("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, stripFences("```{\"a\":1}```"))
	assert.Equal(t, `{"a":1}`, stripFences(`{"a":1}`))
}

func TestQuoteBareKeys(t *testing.T) {
	t.Parallel()

	assert.Equal(t, `{"score": 3}`, quoteBareKeys(`{score: 3}`))
	assert.Equal(t, `{"a": 1, "b": 2}`, quoteBareKeys(`{a: 1, b: 2}`))
	// Colons inside string values stay untouched.
	assert.Equal(t, `{"note": "ratio is 3:1"}`, quoteBareKeys(`{"note": "ratio is 3:1"}`))
}

func TestNormalizeQuotes(t *testing.T) {
	t.Parallel()

	assert.Equal(t, `{"k": "v"}`, normalizeQuotes(`{'k': 'v'}`))
	assert.Equal(t, `{"k": "it's fine"}`, normalizeQuotes(`{'k': 'it's fine'}`))
}

func TestExtractEnvelope(t *testing.T) {
	t.Parallel()

	assert.Equal(t, `[1,2]`, extractEnvelope(`noise [1,2] more noise`))
	assert.Equal(t, `{"a":1}`, extractEnvelope(`noise {"a":1} tail`))
	assert.Equal(t, "", extractEnvelope("no json here"))
	// Arrays win over objects when both are present.
	assert.Equal(t, `[{"a":1}]`, extractEnvelope(`x [{"a":1}] y`))
}
