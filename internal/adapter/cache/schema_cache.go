// Package cache provides the bounded in-memory rubric schema cache.
package cache

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/lydiaket/cs338-rubric/internal/adapter/observability"
	"github.com/lydiaket/cs338-rubric/internal/domain"
)

// SchemaCache is a size- and TTL-bounded LRU keyed by rubric id. It
// implements domain.SchemaCache and is safe for concurrent use.
type SchemaCache struct {
	lru *expirable.LRU[string, domain.RubricSchema]
}

// NewSchemaCache constructs a cache holding up to size schemas for at
// most ttl each. size <= 0 falls back to a single-entry cache; ttl <= 0
// disables expiry.
func NewSchemaCache(size int, ttl time.Duration) *SchemaCache {
	if size <= 0 {
		size = 1
	}
	return &SchemaCache{lru: expirable.NewLRU[string, domain.RubricSchema](size, nil, ttl)}
}

// Get returns the schema for id, if present and unexpired.
func (c *SchemaCache) Get(id string) (domain.RubricSchema, bool) {
	schema, ok := c.lru.Get(id)
	if ok {
		observability.SchemaCacheHitsTotal.WithLabelValues("hit").Inc()
	} else {
		observability.SchemaCacheHitsTotal.WithLabelValues("miss").Inc()
	}
	return schema, ok
}

// Put stores a fully validated schema. Identical ids carry identical
// content (the id is a content hash), so overwrites are harmless.
func (c *SchemaCache) Put(schema domain.RubricSchema) {
	c.lru.Add(schema.ID, schema)
}
