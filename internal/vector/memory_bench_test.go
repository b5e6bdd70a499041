package vector

import (
	"context"
	"fmt"
	"testing"

	"github.com/hyperjump/kensaku/internal/models"
)

func BenchmarkMemoryIndexSearch(b *testing.B) {
	const dims = 384
	idx, err := NewMemoryIndex(dims)
	if err != nil {
		b.Fatal(err)
	}
	ctx := context.Background()
	for i := 0; i < 1000; i++ {
		vec := make([]float32, dims)
		vec[0] = float32(i) / 1000
		vec[1] = 1
		cat := models.CategoryInternal
		if i%2 == 1 {
			cat = models.CategoryExternal
		}
		path := fmt.Sprintf("/docs/%04d.txt", i)
		chunk := models.Chunk{ID: path, Text: "chunk", SourcePath: path, Category: cat, Embedding: vec}
		if err := idx.ReplaceSource(ctx, path, []models.Chunk{chunk}); err != nil {
			b.Fatal(err)
		}
	}
	query := make([]float32, dims)
	query[0] = 1
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = idx.Search(ctx, query, 10, models.CategoryAny)
	}
}
