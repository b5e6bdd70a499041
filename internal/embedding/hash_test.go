package embedding

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperjump/kensaku/internal/config"
)

func dot(a, b []float32) float64 {
	var s float64
	for i := range a {
		s += float64(a[i]) * float64(b[i])
	}
	return s
}

func TestHashEmbedder_UnitLengthAndDeterministic(t *testing.T) {
	e := NewHashEmbedder(64)
	ctx := context.Background()
	for _, text := range []string{"Revenue was $5.2M in 2024.", "the", "", "???"} {
		v1, err := e.Embed(ctx, text)
		require.NoError(t, err)
		require.Len(t, v1, 64)
		assert.InDelta(t, 1.0, math.Sqrt(dot(v1, v1)), 1e-5, "text %q", text)

		v2, err := e.Embed(ctx, text)
		require.NoError(t, err)
		assert.Equal(t, v1, v2)
	}
}

func TestHashEmbedder_SharedVocabularyIsCloser(t *testing.T) {
	e := NewHashEmbedder(384)
	ctx := context.Background()
	q, _ := e.Embed(ctx, "What was the revenue?")
	related, _ := e.Embed(ctx, "Revenue was $5.2M in 2024.")
	unrelated, _ := e.Embed(ctx, "The cafeteria menu changes on Fridays.")
	assert.Greater(t, dot(q, related), dot(q, unrelated))
	assert.Greater(t, dot(q, related), 0.3)
}

func TestHashEmbedder_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewHashEmbedder(8).Embed(ctx, "x")
	assert.True(t, errors.Is(err, ErrEmbeddingFailed))
}

type countingEmbedder struct {
	*HashEmbedder
	batches []int
}

func (c *countingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	c.batches = append(c.batches, len(texts))
	return c.HashEmbedder.EmbedBatch(ctx, texts)
}

func TestEmbedInBatches(t *testing.T) {
	c := &countingEmbedder{HashEmbedder: NewHashEmbedder(16)}
	texts := []string{"a", "b", "c", "d", "e"}
	vecs, err := EmbedInBatches(context.Background(), c, texts, 2)
	require.NoError(t, err)
	assert.Len(t, vecs, 5)
	assert.Equal(t, []int{2, 2, 1}, c.batches)

	empty, err := EmbedInBatches(context.Background(), c, nil, 2)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestNew_Backends(t *testing.T) {
	cfg := config.EmbeddingConfig{Backend: config.BackendHash, Dimensions: 32}
	e, err := New(cfg, nil)
	require.NoError(t, err)
	assert.Equal(t, 32, e.Dimensions())
	assert.Equal(t, "hash-v1", Name(e))

	cfg = config.EmbeddingConfig{Backend: config.BackendAuto, Dimensions: 32, ModelPath: filepath.Join(t.TempDir(), "missing.onnx")}
	e, err = New(cfg, nil)
	require.NoError(t, err)
	assert.IsType(t, &HashEmbedder{}, e)

	_, err = New(config.EmbeddingConfig{Backend: "word2vec"}, nil)
	assert.Error(t, err)
}
