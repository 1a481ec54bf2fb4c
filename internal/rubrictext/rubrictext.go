// Package rubrictext normalizes extracted rubric text and pulls
// criterion names out of it.
//
// Extracted PDF text arrives with repeated headers/footers, hard line
// wraps, and hyphenated words. Normalize rebuilds clean paragraphs so
// downstream parsing (criterion extraction, schema building) sees
// coherent blocks.
package rubrictext

import (
	"regexp"
	"strings"
)

var boilerplate = []*regexp.Regexp{
	regexp.MustCompile(`^AP® English Language and Composition.*`),
	regexp.MustCompile(`^©\s*\d{4}\s*College Board`),
	regexp.MustCompile(`^Reporting$`),
	regexp.MustCompile(`^Category$`),
	regexp.MustCompile(`^Scoring Criteria$`),
}

var (
	hyphenBreak = regexp.MustCompile(`-\s*\n`)
	lineBreaks  = regexp.MustCompile(`\n+`)
)

// Normalize strips boilerplate header/footer lines, rebuilds
// blank-line-delimited paragraphs, de-hyphenates wrapped words, and
// unwraps lines. Returns cleaned paragraphs in order.
func Normalize(text string) []string {
	var kept []string
	for _, line := range strings.Split(text, "\n") {
		if isBoilerplate(strings.TrimSpace(line)) {
			continue
		}
		kept = append(kept, line)
	}

	var paragraphs []string
	var current []string
	flush := func() {
		if len(current) > 0 {
			paragraphs = append(paragraphs, strings.Join(current, "\n"))
			current = nil
		}
	}
	for _, line := range kept {
		if strings.TrimSpace(line) == "" {
			flush()
			continue
		}
		current = append(current, line)
	}
	flush()

	out := make([]string, 0, len(paragraphs))
	for _, p := range paragraphs {
		p = hyphenBreak.ReplaceAllString(p, "")
		p = lineBreaks.ReplaceAllString(p, " ")
		out = append(out, strings.TrimSpace(p))
	}
	return out
}

func isBoilerplate(line string) bool {
	for _, re := range boilerplate {
		if re.MatchString(line) {
			return true
		}
	}
	return false
}

var (
	// Table-style rows: "Row A Thesis (0-1 points)"
	rowRe = regexp.MustCompile(`(?i)^Row\s+[A-Z]\s+(.+?)\s*\(\s*\d+(?:-\d+)?\s*points?\)`)
	// Generic: "Criterion Name (0-4 points)" at start of paragraph
	genericRe = regexp.MustCompile(`(?i)^(.+?)\s*\(\s*\d+(?:-\d+)?\s*points?\)`)
)

// ParseCriteria extracts criterion names from normalized paragraphs,
// preserving order and dropping duplicates.
func ParseCriteria(paragraphs []string) []string {
	var criteria []string
	seen := make(map[string]bool)
	for _, para := range paragraphs {
		var name string
		if m := rowRe.FindStringSubmatch(para); m != nil {
			name = strings.TrimSpace(m[1])
		} else if m := genericRe.FindStringSubmatch(para); m != nil {
			name = strings.TrimSpace(m[1])
		} else {
			continue
		}
		if seen[name] {
			continue
		}
		seen[name] = true
		criteria = append(criteria, name)
	}
	return criteria
}
