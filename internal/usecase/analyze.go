package usecase

import (
	"context"
	"fmt"

	"github.com/lydiaket/cs338-rubric/internal/domain"
	"github.com/lydiaket/cs338-rubric/internal/essay"
	"github.com/lydiaket/cs338-rubric/internal/rubrictext"
	"github.com/lydiaket/cs338-rubric/pkg/textx"
)

// CriterionMatcher is the embedding-mode matching capability.
type CriterionMatcher interface {
	Match(ctx context.Context, text string, criteria []string) ([]domain.MatchResult, error)
}

// AnalyzeService runs the embedding-mode pipeline directly against
// caller-supplied criteria, with no rubric id indirection.
type AnalyzeService struct {
	Matcher CriterionMatcher
}

// NewAnalyzeService constructs an AnalyzeService.
func NewAnalyzeService(m CriterionMatcher) AnalyzeService {
	return AnalyzeService{Matcher: m}
}

// Analyze matches essayText against the given criterion strings.
func (s AnalyzeService) Analyze(ctx context.Context, essayText string, criteria []string) ([]domain.MatchResult, error) {
	essayText = textx.SanitizeText(essayText)
	if essayText == "" {
		return nil, fmt.Errorf("%w: empty essay text", domain.ErrInvalidArgument)
	}
	cleaned := make([]string, 0, len(criteria))
	for _, c := range criteria {
		if c = textx.SanitizeText(c); c != "" {
			cleaned = append(cleaned, c)
		}
	}
	if len(cleaned) == 0 {
		return nil, fmt.Errorf("%w: empty criteria list", domain.ErrInvalidArgument)
	}
	return s.Matcher.Match(ctx, essayText, cleaned)
}

// AnalyzeRubricText extracts criterion names from free-form rubric text
// (table rows and "Name (N points)" lines) and matches the essay
// against them. Rubric text with no recognizable criteria is rejected.
func (s AnalyzeService) AnalyzeRubricText(ctx context.Context, essayText, rubricText string) ([]domain.MatchResult, error) {
	criteria := rubrictext.ParseCriteria(rubrictext.Normalize(rubricText))
	if len(criteria) == 0 {
		return nil, fmt.Errorf("%w: no criteria found in rubric text", domain.ErrInvalidArgument)
	}
	return s.Analyze(ctx, essayText, criteria)
}

// EssayService handles essay ingestion and segmentation.
type EssayService struct{}

// NewEssayService constructs an EssayService.
func NewEssayService() EssayService { return EssayService{} }

// Structure splits essay text into named sections.
func (s EssayService) Structure(essayText string) ([]domain.Section, error) {
	essayText = textx.SanitizeText(essayText)
	if essayText == "" {
		return nil, fmt.Errorf("%w: empty essay text", domain.ErrInvalidArgument)
	}
	return essay.Segment(essayText), nil
}
