package vector

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/hyperjump/kensaku/internal/models"
)

var _ VectorIndex = (*MemoryIndex)(nil)

// MemoryIndex is an in-memory vector index using brute-force cosine search, grouped by source path.
// Writers swap a source's entries under the write lock, so readers see either the old or the new
// chunk set of a source and never a mix.
type MemoryIndex struct {
	dimensions int
	sources    map[string][]models.Chunk
	size       int
	mu         sync.RWMutex
}

// NewMemoryIndex creates an in-memory vector index with the given dimension.
func NewMemoryIndex(dimensions int) (*MemoryIndex, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive")
	}
	return &MemoryIndex{
		dimensions: dimensions,
		sources:    make(map[string][]models.Chunk),
	}, nil
}

// Dimensions returns the vector dimension.
func (m *MemoryIndex) Dimensions() int {
	return m.dimensions
}

func (m *MemoryIndex) check(chunks []models.Chunk) error {
	for _, c := range chunks {
		if len(c.Embedding) != m.dimensions {
			return fmt.Errorf("vector dimension mismatch for chunk %s: got %d, expected %d", c.ID, len(c.Embedding), m.dimensions)
		}
	}
	return nil
}

func clone(chunks []models.Chunk) []models.Chunk {
	out := make([]models.Chunk, len(chunks))
	for i, c := range chunks {
		vec := make([]float32, len(c.Embedding))
		copy(vec, c.Embedding)
		c.Embedding = vec
		out[i] = c
	}
	return out
}

// ReplaceSource swaps the chunks of sourcePath. An empty chunk list removes the source.
func (m *MemoryIndex) ReplaceSource(ctx context.Context, sourcePath string, chunks []models.Chunk) error {
	if err := m.check(chunks); err != nil {
		return err
	}
	fresh := clone(chunks)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.size -= len(m.sources[sourcePath])
	if len(fresh) == 0 {
		delete(m.sources, sourcePath)
		return nil
	}
	m.sources[sourcePath] = fresh
	m.size += len(fresh)
	return nil
}

// RemoveSource drops every chunk of sourcePath.
func (m *MemoryIndex) RemoveSource(ctx context.Context, sourcePath string) error {
	return m.ReplaceSource(ctx, sourcePath, nil)
}

// Search returns the top-k chunks by cosine distance (assumes normalized vectors).
// Ties are broken by source path and chunk index so results are stable.
func (m *MemoryIndex) Search(ctx context.Context, query []float32, k int, category models.Category) ([]models.SearchHit, error) {
	if len(query) != m.dimensions {
		return nil, fmt.Errorf("query dimension mismatch: got %d, expected %d", len(query), m.dimensions)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if k <= 0 || m.size == 0 {
		return nil, nil
	}
	hits := make([]models.SearchHit, 0, m.size)
	for _, chunks := range m.sources {
		for _, c := range chunks {
			if category != models.CategoryAny && c.Category != category {
				continue
			}
			hits = append(hits, models.SearchHit{Chunk: c, Distance: CosineDistance(query, c.Embedding)})
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Distance != hits[j].Distance {
			return hits[i].Distance < hits[j].Distance
		}
		if hits[i].Chunk.SourcePath != hits[j].Chunk.SourcePath {
			return hits[i].Chunk.SourcePath < hits[j].Chunk.SourcePath
		}
		return hits[i].Chunk.Index < hits[j].Chunk.Index
	})
	if k > len(hits) {
		k = len(hits)
	}
	return hits[:k:k], nil
}

// Load replaces the whole index with chunks.
func (m *MemoryIndex) Load(chunks []models.Chunk) error {
	if err := m.check(chunks); err != nil {
		return err
	}
	grouped := make(map[string][]models.Chunk)
	for _, c := range clone(chunks) {
		grouped[c.SourcePath] = append(grouped[c.SourcePath], c)
	}
	for path := range grouped {
		sort.Slice(grouped[path], func(i, j int) bool { return grouped[path][i].Index < grouped[path][j].Index })
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sources = grouped
	m.size = len(chunks)
	return nil
}

// Reset empties the index.
func (m *MemoryIndex) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sources = make(map[string][]models.Chunk)
	m.size = 0
}

// Size returns the number of vectors in the index.
func (m *MemoryIndex) Size() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.size
}

// Close is a no-op for MemoryIndex.
func (m *MemoryIndex) Close() error {
	return nil
}
