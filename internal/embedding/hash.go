package embedding

import (
	"context"
	"fmt"
	"hash/fnv"
	"strings"

	"github.com/hyperjump/kensaku/internal/keyword"
	"github.com/hyperjump/kensaku/pkg/utils"
)

const bigramWeight = 0.5

// HashEmbedder is a deterministic feature-hashing embedder over analyzed terms and bigrams.
// Texts sharing vocabulary get positive cosine similarity, which makes it usable without a
// model file and predictable in tests.
type HashEmbedder struct {
	dimensions int
	analyzer   *keyword.Analyzer
}

// NewHashEmbedder returns a hash embedder producing vectors of the given dimension.
func NewHashEmbedder(dimensions int) *HashEmbedder {
	if dimensions <= 0 {
		dimensions = 384
	}
	return &HashEmbedder{dimensions: dimensions, analyzer: keyword.NewAnalyzer()}
}

// Embed returns the unit-length hashed feature vector of text.
func (e *HashEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEmbeddingFailed, err)
	}
	vec := make([]float32, e.dimensions)
	terms := e.analyzer.Terms(text)
	if len(terms) == 0 {
		// Stop words or punctuation only: hash the raw text so distinct inputs still differ.
		if raw := strings.ToLower(strings.TrimSpace(text)); raw != "" {
			terms = []string{raw}
		}
	}
	for _, t := range terms {
		e.add(vec, t, 1)
	}
	for _, bg := range keyword.Bigrams(terms) {
		e.add(vec, bg, bigramWeight)
	}
	if len(terms) == 0 {
		vec[0] = 1
	}
	utils.NormalizeL2(vec)
	return vec, nil
}

func (e *HashEmbedder) add(vec []float32, feature string, weight float32) {
	h := fnv.New64a()
	_, _ = h.Write([]byte(feature))
	sum := h.Sum64()
	idx := int(sum % uint64(e.dimensions))
	if sum>>63 == 1 {
		weight = -weight
	}
	vec[idx] += weight
}

// EmbedBatch calls Embed for each text.
func (e *HashEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	embeddings := make([][]float32, len(texts))
	for i, text := range texts {
		emb, err := e.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		embeddings[i] = emb
	}
	return embeddings, nil
}

// Name identifies the embedder for collection compatibility checks.
func (e *HashEmbedder) Name() string {
	return "hash-v1"
}

// Dimensions returns the embedding dimension.
func (e *HashEmbedder) Dimensions() int {
	return e.dimensions
}

// Close is a no-op for HashEmbedder.
func (e *HashEmbedder) Close() error {
	return nil
}
