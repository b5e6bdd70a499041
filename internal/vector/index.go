// Package vector provides the in-memory nearest-neighbour index over chunk embeddings.
package vector

import (
	"context"

	"github.com/hyperjump/kensaku/internal/models"
)

// VectorIndex defines chunk vector storage and cosine search.
type VectorIndex interface {
	// ReplaceSource swaps all entries of a source for chunks in one step.
	ReplaceSource(ctx context.Context, sourcePath string, chunks []models.Chunk) error
	RemoveSource(ctx context.Context, sourcePath string) error
	// Search returns up to k chunks ordered by ascending cosine distance.
	// models.CategoryAny disables the category filter.
	Search(ctx context.Context, query []float32, k int, category models.Category) ([]models.SearchHit, error)
	// Load replaces the whole index content.
	Load(chunks []models.Chunk) error
	Reset()
	Size() int
	Dimensions() int
	Close() error
}
