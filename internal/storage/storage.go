// Package storage defines the persistence interface for the collection: chunks, source state and collection metadata.
package storage

import (
	"context"
	"errors"

	"github.com/hyperjump/kensaku/internal/models"
)

// ErrNotFound is returned when a source or metadata key does not exist.
var ErrNotFound = errors.New("not found")

// Collection metadata keys.
const (
	MetaDimensions = "dimensions"
	MetaMetric     = "metric"
	MetaModel      = "embedding_model"
)

// Store defines collection persistence operations.
type Store interface {
	// Metadata
	Meta(ctx context.Context, key string) (string, error)
	SetMeta(ctx context.Context, key, value string) error

	// ReplaceSource deletes every chunk of src.Path and inserts chunks in one transaction,
	// recording src as the source's indexing state.
	ReplaceSource(ctx context.Context, src models.SourceDocument, chunks []models.Chunk) error
	// DeleteSource removes the source's chunks and state. It reports whether anything was removed.
	DeleteSource(ctx context.Context, path string) (bool, error)
	GetSource(ctx context.Context, path string) (*models.SourceDocument, error)
	ListSources(ctx context.Context) ([]models.SourceDocument, error)

	// Chunk reads
	LoadChunks(ctx context.Context) ([]models.Chunk, error)
	ChunksBySource(ctx context.Context, path string) ([]models.Chunk, error)

	// Stats
	CountChunks(ctx context.Context) (int64, error)
	CountSources(ctx context.Context) (int64, error)

	Close() error
}
