// Package usecase contains the application services that sit between
// transport and the oracle adapters.
package usecase

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/singleflight"

	"github.com/lydiaket/cs338-rubric/internal/domain"
	"github.com/lydiaket/cs338-rubric/internal/rubrictext"
)

// SchemaBuilder turns free-form rubric text into a validated schema.
type SchemaBuilder interface {
	BuildSchema(ctx context.Context, rubricText string) (domain.RubricSchema, error)
}

// RubricService builds and caches rubric schemas. Builds are idempotent
// by content hash: the cache is consulted first and concurrent builds
// for the same hash are collapsed so the oracle is paid at most once.
type RubricService struct {
	Builder SchemaBuilder
	Cache   domain.SchemaCache

	group singleflight.Group
}

// NewRubricService constructs a RubricService.
func NewRubricService(b SchemaBuilder, c domain.SchemaCache) *RubricService {
	return &RubricService{Builder: b, Cache: c}
}

// BuildSchema returns the schema for rubricText, building it via the
// completion oracle on first sight. The cache entry is written once,
// only after the schema fully validates.
func (s *RubricService) BuildSchema(ctx context.Context, rubricText string) (domain.RubricSchema, error) {
	text := strings.TrimSpace(rubricText)
	if text == "" {
		return domain.RubricSchema{}, fmt.Errorf("%w: empty rubric text", domain.ErrInvalidArgument)
	}
	id := domain.RubricID(text)
	if schema, ok := s.Cache.Get(id); ok {
		return schema, nil
	}
	v, err, _ := s.group.Do(id, func() (any, error) {
		if schema, ok := s.Cache.Get(id); ok {
			return schema, nil
		}
		schema, err := s.Builder.BuildSchema(ctx, text)
		if err != nil {
			return nil, err
		}
		schema.ID = id
		s.Cache.Put(schema)
		return schema, nil
	})
	if err != nil {
		return domain.RubricSchema{}, err
	}
	return v.(domain.RubricSchema), nil
}

// BuildFromRaw normalizes text extracted from an uploaded rubric
// document (strips PDF boilerplate, rejoins wrapped lines) and builds
// the schema from the cleaned text.
func (s *RubricService) BuildFromRaw(ctx context.Context, raw string) (domain.RubricSchema, error) {
	paras := rubrictext.Normalize(raw)
	if len(paras) == 0 {
		return domain.RubricSchema{}, fmt.Errorf("%w: no usable rubric text", domain.ErrInvalidArgument)
	}
	return s.BuildSchema(ctx, strings.Join(paras, "\n\n"))
}

// Lookup resolves a previously built schema by id.
func (s *RubricService) Lookup(id string) (domain.RubricSchema, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.RubricSchema{}, fmt.Errorf("%w: empty rubric_id", domain.ErrInvalidArgument)
	}
	schema, ok := s.Cache.Get(id)
	if !ok {
		return domain.RubricSchema{}, fmt.Errorf("%w: rubric %s", domain.ErrNotFound, id)
	}
	return schema, nil
}
