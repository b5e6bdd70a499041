package vector

import (
	"context"
	"math"
	"sync"
	"testing"

	"github.com/hyperjump/kensaku/internal/models"
)

func chunk(path string, cat models.Category, idx int, vec []float32) models.Chunk {
	return models.Chunk{ID: path + string(rune('a'+idx)), SourcePath: path, Category: cat, Index: idx, Text: "t", Embedding: vec}
}

func sourceSize(m *MemoryIndex, path string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sources[path])
}

func TestMemoryIndex_ReplaceSearch(t *testing.T) {
	idx, err := NewMemoryIndex(3)
	if err != nil {
		t.Fatal(err)
	}
	defer idx.Close()
	ctx := context.Background()

	if err := idx.ReplaceSource(ctx, "/a", []models.Chunk{
		chunk("/a", models.CategoryInternal, 0, []float32{1, 0, 0}),
		chunk("/a", models.CategoryInternal, 1, []float32{0.8, 0.6, 0}),
	}); err != nil {
		t.Fatal(err)
	}
	if err := idx.ReplaceSource(ctx, "/b", []models.Chunk{
		chunk("/b", models.CategoryExternal, 0, []float32{0, 1, 0}),
	}); err != nil {
		t.Fatal(err)
	}
	if idx.Size() != 3 {
		t.Errorf("Size=%d", idx.Size())
	}

	results, err := idx.Search(ctx, []float32{1, 0, 0}, 2, models.CategoryAny)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].Chunk.SourcePath != "/a" || results[0].Chunk.Index != 0 {
		t.Errorf("top result should be /a#0, got %+v", results[0].Chunk)
	}
	if results[0].Distance > results[1].Distance {
		t.Errorf("results not ascending: %v %v", results[0].Distance, results[1].Distance)
	}
	if math.Abs(results[1].Distance-0.2) > 1e-6 {
		t.Errorf("distance = %v, want 0.2", results[1].Distance)
	}
}

func TestMemoryIndex_CategoryFilter(t *testing.T) {
	idx, _ := NewMemoryIndex(2)
	ctx := context.Background()
	_ = idx.ReplaceSource(ctx, "/in", []models.Chunk{chunk("/in", models.CategoryInternal, 0, []float32{1, 0})})
	_ = idx.ReplaceSource(ctx, "/ex", []models.Chunk{chunk("/ex", models.CategoryExternal, 0, []float32{0, 1})})

	results, err := idx.Search(ctx, []float32{1, 0}, 10, models.CategoryExternal)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 || results[0].Chunk.SourcePath != "/ex" {
		t.Errorf("expected only /ex, got %+v", results)
	}
}

func TestMemoryIndex_ReplaceDropsOldChunks(t *testing.T) {
	idx, _ := NewMemoryIndex(2)
	ctx := context.Background()
	_ = idx.ReplaceSource(ctx, "/a", []models.Chunk{
		chunk("/a", models.CategoryInternal, 0, []float32{1, 0}),
		chunk("/a", models.CategoryInternal, 1, []float32{0, 1}),
	})
	_ = idx.ReplaceSource(ctx, "/a", []models.Chunk{chunk("/a", models.CategoryInternal, 0, []float32{0, 1})})
	if idx.Size() != 1 || sourceSize(idx, "/a") != 1 {
		t.Errorf("size = %d, source size = %d", idx.Size(), sourceSize(idx, "/a"))
	}
	if err := idx.RemoveSource(ctx, "/a"); err != nil {
		t.Fatal(err)
	}
	if idx.Size() != 0 {
		t.Errorf("expected empty index, got %d", idx.Size())
	}
}

func TestMemoryIndex_DimensionMismatch(t *testing.T) {
	idx, _ := NewMemoryIndex(2)
	ctx := context.Background()
	if err := idx.ReplaceSource(ctx, "/a", []models.Chunk{chunk("/a", models.CategoryInternal, 0, []float32{1, 0, 0})}); err == nil {
		t.Error("expected dimension error")
	}
	if _, err := idx.Search(ctx, []float32{1}, 1, models.CategoryAny); err == nil {
		t.Error("expected query dimension error")
	}
}

func TestMemoryIndex_LoadReset(t *testing.T) {
	idx, _ := NewMemoryIndex(2)
	err := idx.Load([]models.Chunk{
		chunk("/a", models.CategoryInternal, 1, []float32{0, 1}),
		chunk("/a", models.CategoryInternal, 0, []float32{1, 0}),
		chunk("/b", models.CategoryExternal, 0, []float32{1, 0}),
	})
	if err != nil {
		t.Fatal(err)
	}
	if idx.Size() != 3 || sourceSize(idx, "/a") != 2 {
		t.Errorf("size = %d", idx.Size())
	}
	idx.Reset()
	if idx.Size() != 0 {
		t.Errorf("size after reset = %d", idx.Size())
	}
	results, err := idx.Search(context.Background(), []float32{1, 0}, 5, models.CategoryAny)
	if err != nil || len(results) != 0 {
		t.Errorf("expected no results, got %v %v", results, err)
	}
}

func TestMemoryIndex_ConcurrentReplaceSearch(t *testing.T) {
	idx, _ := NewMemoryIndex(2)
	ctx := context.Background()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				_ = idx.ReplaceSource(ctx, "/a", []models.Chunk{
					chunk("/a", models.CategoryInternal, 0, []float32{1, 0}),
					chunk("/a", models.CategoryInternal, 1, []float32{0, 1}),
				})
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				res, err := idx.Search(ctx, []float32{1, 0}, 10, models.CategoryAny)
				if err != nil {
					t.Error(err)
					return
				}
				if len(res) != 0 && len(res) != 2 {
					t.Errorf("saw partial source: %d chunks", len(res))
					return
				}
			}
		}()
	}
	wg.Wait()
}

func TestMemoryIndex_AsVectorIndex(t *testing.T) {
	m, err := NewMemoryIndex(3)
	if err != nil {
		t.Fatal(err)
	}
	var idx VectorIndex = m
	if idx.Dimensions() != 3 || idx.Size() != 0 {
		t.Errorf("dimensions = %d, size = %d", idx.Dimensions(), idx.Size())
	}
	if _, err := NewMemoryIndex(0); err == nil {
		t.Error("expected error for zero dimensions")
	}
}
