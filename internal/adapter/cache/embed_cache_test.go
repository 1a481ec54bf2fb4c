package cache

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lydiaket/cs338-rubric/internal/domain"
)

type countingEmbedder struct {
	calls int
	sent  [][]string
	err   error
}

func (f *countingEmbedder) ChatJSON(_ context.Context, _, _ string, _ int) (string, error) {
	return "{}", nil
}

func (f *countingEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	f.calls++
	f.sent = append(f.sent, texts)
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{float32(len(texts[i])), 1}
	}
	return out, nil
}

func TestEmbedCacheServesHits(t *testing.T) {
	t.Parallel()
	base := &countingEmbedder{}
	c := NewEmbedCache(base, 16)

	first, err := c.Embed(context.Background(), []string{"alpha", "beta"})
	require.NoError(t, err)
	require.Len(t, first, 2)
	assert.Equal(t, 1, base.calls)

	second, err := c.Embed(context.Background(), []string{"alpha", "beta"})
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, base.calls, "full hit must not call upstream")
}

func TestEmbedCachePartialMiss(t *testing.T) {
	t.Parallel()
	base := &countingEmbedder{}
	c := NewEmbedCache(base, 16)

	_, err := c.Embed(context.Background(), []string{"alpha"})
	require.NoError(t, err)

	res, err := c.Embed(context.Background(), []string{"alpha", "gamma"})
	require.NoError(t, err)
	require.Len(t, res, 2)
	require.Equal(t, 2, base.calls)
	assert.Equal(t, []string{"gamma"}, base.sent[1], "only misses go upstream")
}

func TestEmbedCacheUpstreamFailure(t *testing.T) {
	t.Parallel()
	base := &countingEmbedder{err: errors.New("down")}
	c := NewEmbedCache(base, 16)

	_, err := c.Embed(context.Background(), []string{"alpha"})
	assert.Error(t, err)
}

func TestEmbedCacheDisabled(t *testing.T) {
	t.Parallel()
	base := &countingEmbedder{}
	assert.Equal(t, domain.AIClient(base), NewEmbedCache(base, 0))
}
