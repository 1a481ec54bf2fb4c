package usecase

import (
	"context"
	"fmt"

	"github.com/lydiaket/cs338-rubric/internal/domain"
	"github.com/lydiaket/cs338-rubric/pkg/textx"
)

// GradeService grades essays against previously built rubric schemas.
type GradeService struct {
	Rubrics *RubricService
	Scorer  domain.CriterionScorer
}

// NewGradeService constructs a GradeService.
func NewGradeService(r *RubricService, sc domain.CriterionScorer) GradeService {
	return GradeService{Rubrics: r, Scorer: sc}
}

// Grade scores essayText against the schema registered under rubricID.
// Unknown ids report not-found; the caller must build the schema first.
func (s GradeService) Grade(ctx context.Context, rubricID, essayText string) (domain.RubricSchema, []domain.CriterionResult, error) {
	essayText = textx.SanitizeText(essayText)
	if essayText == "" {
		return domain.RubricSchema{}, nil, fmt.Errorf("%w: empty essay text", domain.ErrInvalidArgument)
	}
	schema, err := s.Rubrics.Lookup(rubricID)
	if err != nil {
		return domain.RubricSchema{}, nil, err
	}
	results, err := s.Scorer.Grade(ctx, schema, essayText)
	if err != nil {
		return domain.RubricSchema{}, nil, err
	}
	return schema, results, nil
}
