package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/lydiaket/cs338-rubric/internal/domain"
)

// embedCacheClient wraps an AIClient and caches embedding vectors by
// text hash, so repeated matching of the same essay or criteria does
// not re-pay the embedding oracle. Only Embed is cached; ChatJSON
// passes through.
type embedCacheClient struct {
	base domain.AIClient
	lru  *lru.Cache[string, []float32]
}

// NewEmbedCache wraps base with an embedding cache holding up to
// capacity vectors. If capacity <= 0, base is returned unmodified.
func NewEmbedCache(base domain.AIClient, capacity int) domain.AIClient {
	if capacity <= 0 || base == nil {
		return base
	}
	c, err := lru.New[string, []float32](capacity)
	if err != nil {
		return base
	}
	return &embedCacheClient{base: base, lru: c}
}

// Embed serves cached vectors and fetches only the misses in a single
// upstream call, preserving input order.
func (c *embedCacheClient) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	res := make([][]float32, len(texts))
	missIdx := make([]int, 0)
	missTexts := make([]string, 0)
	for i, t := range texts {
		if v, ok := c.lru.Get(embedKey(t)); ok {
			res[i] = v
			continue
		}
		missIdx = append(missIdx, i)
		missTexts = append(missTexts, t)
	}
	if len(missIdx) > 0 {
		vecs, err := c.base.Embed(ctx, missTexts)
		if err != nil {
			return nil, err
		}
		if len(vecs) != len(missTexts) {
			return nil, domain.ErrMalformedOutput
		}
		for j, idx := range missIdx {
			res[idx] = vecs[j]
			c.lru.Add(embedKey(missTexts[j]), vecs[j])
		}
	}
	return res, nil
}

func (c *embedCacheClient) ChatJSON(ctx context.Context, systemPrompt, userPrompt string, maxTokens int) (string, error) {
	return c.base.ChatJSON(ctx, systemPrompt, userPrompt, maxTokens)
}

func embedKey(text string) string {
	h := sha256.Sum256([]byte(strings.TrimSpace(text)))
	return hex.EncodeToString(h[:])
}
