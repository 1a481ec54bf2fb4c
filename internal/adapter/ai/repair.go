// Package ai holds the grading oracle adapter: prompt construction,
// repair of malformed completions, schema building, and reconciliation
// of partial results against the rubric.
package ai

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/lydiaket/cs338-rubric/internal/adapter/observability"
	"github.com/lydiaket/cs338-rubric/internal/domain"
)

// RepairError reports that the full cascade failed. It carries the
// original raw completion for diagnostics.
type RepairError struct {
	Raw string
}

func (e *RepairError) Error() string {
	snippet := e.Raw
	if len(snippet) > 256 {
		snippet = snippet[:256]
	}
	return fmt.Sprintf("%v: unrepairable completion: %q", domain.ErrMalformedOutput, snippet)
}

func (e *RepairError) Unwrap() error { return domain.ErrMalformedOutput }

// repairStep is one pure transform in the cascade. Steps never touch
// the oracle; they only rewrite the text.
type repairStep struct {
	name  string
	apply func(string) string
}

var cascade = []repairStep{
	{"strict", func(s string) string { return s }},
	{"trailing_commas", stripTrailingCommas},
	{"bare_keys", func(s string) string { return stripTrailingCommas(quoteBareKeys(s)) }},
	{"single_quotes", func(s string) string { return stripTrailingCommas(normalizeQuotes(s)) }},
	{"quotes_and_keys", func(s string) string { return stripTrailingCommas(quoteBareKeys(normalizeQuotes(s))) }},
}

// RepairToJSON coerces a raw oracle completion into valid JSON bytes.
// Markdown fences are stripped first; then each cascade step is tried
// in order against the full text, and again against the bracketed
// substring with surrounding prose discarded. First valid JSON wins.
func RepairToJSON(raw string) ([]byte, error) {
	base := stripFences(raw)
	for _, candidate := range []string{base, extractEnvelope(base)} {
		if candidate == "" {
			continue
		}
		for _, step := range cascade {
			fixed := step.apply(candidate)
			if json.Valid([]byte(fixed)) {
				observability.RepairStepsTotal.WithLabelValues(step.name).Inc()
				return []byte(fixed), nil
			}
		}
	}
	observability.RepairStepsTotal.WithLabelValues("failed").Inc()
	return nil, &RepairError{Raw: raw}
}

// stripFences removes leading/trailing markdown code fences, both
// "```json" and bare "```".
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		if i := strings.IndexByte(s, '\n'); i >= 0 {
			s = s[i+1:]
		} else {
			s = strings.TrimPrefix(s, "```json")
			s = strings.TrimPrefix(s, "```")
		}
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

var bareKeyRe = regexp.MustCompile(`([{\[,]\s*)([A-Za-z_][A-Za-z0-9_]*)\s*:`)

// quoteBareKeys turns `word:` object keys into `"word":`. Only keys
// directly after an opener or comma are touched so values with colons
// survive.
func quoteBareKeys(s string) string {
	return bareKeyRe.ReplaceAllString(s, `$1"$2":`)
}

// normalizeQuotes replaces single quotes with double quotes while
// leaving apostrophes between letters alone.
func normalizeQuotes(s string) string {
	b := []byte(s)
	for i := 0; i < len(b); i++ {
		if b[i] != '\'' {
			continue
		}
		if i > 0 && i < len(b)-1 && isLetter(b[i-1]) && isLetter(b[i+1]) {
			continue
		}
		b[i] = '"'
	}
	return string(b)
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

var trailingCommaRe = regexp.MustCompile(`,(\s*[}\]])`)

func stripTrailingCommas(s string) string {
	return trailingCommaRe.ReplaceAllString(s, "$1")
}

// extractEnvelope returns the substring between the first `[` and last
// `]`, or failing that the first `{` and last `}`. Empty string when
// neither pair is present.
func extractEnvelope(s string) string {
	if start := strings.IndexByte(s, '['); start >= 0 {
		if end := strings.LastIndexByte(s, ']'); end > start {
			return s[start : end+1]
		}
	}
	if start := strings.IndexByte(s, '{'); start >= 0 {
		if end := strings.LastIndexByte(s, '}'); end > start {
			return s[start : end+1]
		}
	}
	return ""
}
