// Package embedding provides text embedding via ONNX or feature hashing, with caching and batching.
package embedding

import (
	"context"
	"errors"
	"fmt"
)

// ErrEmbeddingFailed wraps every failure to produce an embedding.
var ErrEmbeddingFailed = errors.New("embedding failed")

// Embedder produces unit-length vector embeddings for text.
// The same text always maps to the same vector for a given model.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	Close() error
}

// EmbedInBatches embeds texts in slices of batchSize, checking ctx between batches.
// The result has one vector per input text, in order.
func EmbedInBatches(ctx context.Context, e Embedder, texts []string, batchSize int) ([][]float32, error) {
	if batchSize <= 0 {
		batchSize = len(texts)
	}
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += batchSize {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrEmbeddingFailed, err)
		}
		end := start + batchSize
		if end > len(texts) {
			end = len(texts)
		}
		vecs, err := e.EmbedBatch(ctx, texts[start:end])
		if err != nil {
			if errors.Is(err, ErrEmbeddingFailed) {
				return nil, err
			}
			return nil, fmt.Errorf("%w: batch %d-%d: %w", ErrEmbeddingFailed, start, end, err)
		}
		if len(vecs) != end-start {
			return nil, fmt.Errorf("%w: batch %d-%d returned %d vectors", ErrEmbeddingFailed, start, end, len(vecs))
		}
		out = append(out, vecs...)
	}
	return out, nil
}
