// Package essay splits raw essay text into named logical sections.
package essay

import (
	"regexp"
	"strings"

	"github.com/lydiaket/cs338-rubric/internal/domain"
	"github.com/lydiaket/cs338-rubric/pkg/textx"
)

var headingRe = regexp.MustCompile(`(?i)^(Introduction|Background|Methodology|Results|Discussion|Conclusion|In conclusion)\b`)

// segmentState accumulates lines for the section currently being built.
type segmentState struct {
	name     string
	buffer   []string
	sections []domain.Section
}

// commit closes the buffered section, dropping it when empty after trim.
func (st *segmentState) commit() {
	if len(st.buffer) == 0 {
		return
	}
	text := strings.TrimSpace(strings.Join(st.buffer, "\n"))
	st.buffer = st.buffer[:0]
	if text == "" {
		return
	}
	st.sections = append(st.sections, domain.Section{Name: st.name, Text: text})
}

// Segment splits text into ordered sections. Lines that start with a
// known heading keyword open a new section; everything else accumulates
// into the current one. When fewer than two headings are found the
// heading result is discarded in favor of a paragraph-based split.
// Always returns a (possibly empty) slice, never an error.
func Segment(text string) []domain.Section {
	st := segmentState{name: "Body"}
	headings := 0
	for _, line := range strings.Split(text, "\n") {
		m := headingRe.FindStringSubmatch(line)
		if m == nil {
			st.buffer = append(st.buffer, line)
			continue
		}
		headings++
		st.commit()
		st.name = canonicalHeading(m[1])
	}
	st.commit()

	if headings < 2 {
		return paragraphFallback(text)
	}
	return st.sections
}

// canonicalHeading normalizes a matched heading keyword to its
// canonical section name ("in conclusion" folds into "Conclusion").
func canonicalHeading(h string) string {
	lower := strings.ToLower(strings.TrimSpace(h))
	if strings.HasPrefix(lower, "in conclusion") {
		return "Conclusion"
	}
	return strings.ToUpper(lower[:1]) + lower[1:]
}

// paragraphFallback maps blank-line-delimited paragraphs onto
// Introduction / Body / Conclusion.
func paragraphFallback(text string) []domain.Section {
	paras := textx.SplitParagraphs(text)
	sections := make([]domain.Section, 0, 3)
	if len(paras) >= 1 {
		sections = append(sections, domain.Section{Name: "Introduction", Text: paras[0]})
	}
	if len(paras) > 2 {
		sections = append(sections, domain.Section{Name: "Body", Text: strings.Join(paras[1:len(paras)-1], "\n\n")})
	}
	if len(paras) >= 2 {
		sections = append(sections, domain.Section{Name: "Conclusion", Text: paras[len(paras)-1]})
	}
	return sections
}
