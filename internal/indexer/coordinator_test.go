package indexer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/hyperjump/kensaku/internal/embedding"
	"github.com/hyperjump/kensaku/internal/extract"
	"github.com/hyperjump/kensaku/internal/index"
	"github.com/hyperjump/kensaku/internal/models"
)

const testDims = 64

func newIndex(t *testing.T) *index.Manager {
	t.Helper()
	m, err := index.NewManager(index.Config{Path: t.TempDir(), Dimensions: testDims})
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })
	return m
}

func newCoordinator(t *testing.T, idx Index, opts ...Option) *Coordinator {
	t.Helper()
	return NewCoordinator(idx, embedding.NewHashEmbedder(testDims), NewSplitter(200, 40), opts...)
}

func writeFile(t *testing.T, path, content string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func created(path string, cat models.Category) models.FileEvent {
	return models.FileEvent{Path: path, Type: models.EventCreated, Category: cat}
}

func longText(words int) string {
	var b strings.Builder
	for i := 0; i < words; i++ {
		fmt.Fprintf(&b, "word%d ", i)
		if i%25 == 24 {
			b.WriteString("\n\n")
		}
	}
	return b.String()
}

func TestCoordinator_IdempotentReingestion(t *testing.T) {
	idx := newIndex(t)
	c := newCoordinator(t, idx)
	ctx := context.Background()
	path := writeFile(t, filepath.Join(t.TempDir(), "report.txt"), longText(120))

	outcome, err := c.OnFileEvent(ctx, created(path, models.CategoryInternal))
	require.NoError(t, err)
	assert.Equal(t, OutcomeIndexed, outcome)
	before, err := idx.Chunks(ctx, path)
	require.NoError(t, err)
	require.NotEmpty(t, before)

	outcome, err = c.OnFileEvent(ctx, models.FileEvent{Path: path, Type: models.EventModified, Category: models.CategoryInternal})
	require.NoError(t, err)
	assert.Equal(t, OutcomeSkipped, outcome)

	outcome, err = c.OnFileEvent(ctx, created(path, models.CategoryInternal), Force())
	require.NoError(t, err)
	assert.Equal(t, OutcomeIndexed, outcome)

	after, err := idx.Chunks(ctx, path)
	require.NoError(t, err)
	require.Len(t, after, len(before))
	for i := range before {
		assert.Equal(t, before[i].ID, after[i].ID)
		assert.Equal(t, before[i].Text, after[i].Text)
	}
}

func TestCoordinator_ReindexReplaces(t *testing.T) {
	idx := newIndex(t)
	c := newCoordinator(t, idx)
	ctx := context.Background()
	path := writeFile(t, filepath.Join(t.TempDir(), "doc.md"), longText(200))

	_, err := c.OnFileEvent(ctx, created(path, models.CategoryExternal))
	require.NoError(t, err)
	count, _ := idx.Count(ctx)
	require.Greater(t, count, int64(1))

	writeFile(t, path, "Short replacement text.")
	outcome, err := c.OnFileEvent(ctx, models.FileEvent{Path: path, Type: models.EventModified, Category: models.CategoryExternal})
	require.NoError(t, err)
	assert.Equal(t, OutcomeIndexed, outcome)

	chunks, err := idx.Chunks(ctx, path)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "Short replacement text.", chunks[0].Text)
	assert.Equal(t, models.CategoryExternal, chunks[0].Category)
	count, _ = idx.Count(ctx)
	assert.EqualValues(t, 1, count)
}

func TestCoordinator_DeletionIsolation(t *testing.T) {
	idx := newIndex(t)
	c := newCoordinator(t, idx)
	ctx := context.Background()
	dir := t.TempDir()
	a := writeFile(t, filepath.Join(dir, "a.txt"), "alpha content")
	b := writeFile(t, filepath.Join(dir, "b.txt"), "beta content")
	for _, p := range []string{a, b} {
		_, err := c.OnFileEvent(ctx, created(p, models.CategoryInternal))
		require.NoError(t, err)
	}

	require.NoError(t, os.Remove(a))
	outcome, err := c.OnFileEvent(ctx, models.FileEvent{Path: a, Type: models.EventDeleted})
	require.NoError(t, err)
	assert.Equal(t, OutcomeDeleted, outcome)

	src, err := idx.Source(ctx, a)
	require.NoError(t, err)
	assert.Nil(t, src)
	chunks, err := idx.Chunks(ctx, b)
	require.NoError(t, err)
	assert.Len(t, chunks, 1)
}

func TestCoordinator_EmptyDocumentClears(t *testing.T) {
	idx := newIndex(t)
	c := newCoordinator(t, idx)
	ctx := context.Background()
	path := writeFile(t, filepath.Join(t.TempDir(), "blank.txt"), "some text")
	_, err := c.OnFileEvent(ctx, created(path, models.CategoryInternal))
	require.NoError(t, err)

	writeFile(t, path, "  \n\n \t ")
	outcome, err := c.OnFileEvent(ctx, created(path, models.CategoryInternal))
	require.NoError(t, err)
	assert.Equal(t, OutcomeCleared, outcome)

	src, err := idx.Source(ctx, path)
	require.NoError(t, err)
	require.NotNil(t, src)
	assert.Zero(t, src.ChunkCount)
	assert.NotEmpty(t, src.Fingerprint)

	outcome, err = c.OnFileEvent(ctx, created(path, models.CategoryInternal))
	require.NoError(t, err)
	assert.Equal(t, OutcomeSkipped, outcome)
}

type extractorFunc func(ctx context.Context, path string) (string, error)

func (f extractorFunc) Extract(ctx context.Context, path string) (string, error) { return f(ctx, path) }

func TestCoordinator_ExtractionFailurePreservesChunks(t *testing.T) {
	idx := newIndex(t)
	core, logs := observer.New(zapcore.WarnLevel)
	ctx := context.Background()
	path := writeFile(t, filepath.Join(t.TempDir(), "notes.txt"), "original notes")

	_, err := newCoordinator(t, idx).OnFileEvent(ctx, created(path, models.CategoryInternal))
	require.NoError(t, err)

	broken := extractorFunc(func(context.Context, string) (string, error) {
		return "", &extract.Error{Kind: extract.KindCorrupt, Path: path, Err: errors.New("bad bytes")}
	})
	c := newCoordinator(t, idx, WithExtractor(broken), WithLogger(zap.New(core)))
	writeFile(t, path, "edited notes")
	_, err = c.OnFileEvent(ctx, created(path, models.CategoryInternal))
	require.ErrorIs(t, err, ErrExtractionFailed)
	kind, ok := extract.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, extract.KindCorrupt, kind)

	chunks, err := idx.Chunks(ctx, path)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "original notes", chunks[0].Text)

	entries := logs.FilterMessage("document ingestion failed").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, path, fields["path"])
	assert.Equal(t, "corrupt", fields["kind"])
	assert.NotEmpty(t, fields["fingerprint"])
}

func TestCoordinator_UnsupportedFile(t *testing.T) {
	idx := newIndex(t)
	path := writeFile(t, filepath.Join(t.TempDir(), "photo.png"), "\x89PNG")
	_, err := newCoordinator(t, idx).OnFileEvent(context.Background(), created(path, models.CategoryExternal))
	require.ErrorIs(t, err, ErrExtractionFailed)
	kind, _ := extract.KindOf(err)
	assert.Equal(t, extract.KindOcrFailed, kind)
}

func TestCoordinator_DocumentTimeout(t *testing.T) {
	idx := newIndex(t)
	release := make(chan struct{})
	defer close(release)
	stuck := extractorFunc(func(context.Context, string) (string, error) {
		<-release
		return "late", nil
	})
	c := newCoordinator(t, idx, WithExtractor(stuck), WithDocumentTimeout(50*time.Millisecond))
	path := writeFile(t, filepath.Join(t.TempDir(), "slow.txt"), "x")

	start := time.Now()
	_, err := c.OnFileEvent(context.Background(), created(path, models.CategoryInternal))
	require.ErrorIs(t, err, ErrExtractionFailed)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 5*time.Second)
}

type failingEmbedder struct{ embedding.Embedder }

func (failingEmbedder) EmbedBatch(context.Context, []string) ([][]float32, error) {
	return nil, errors.New("model crashed")
}

func TestCoordinator_EmbeddingFailure(t *testing.T) {
	idx := newIndex(t)
	ctx := context.Background()
	path := writeFile(t, filepath.Join(t.TempDir(), "a.txt"), "first version")
	_, err := newCoordinator(t, idx).OnFileEvent(ctx, created(path, models.CategoryInternal))
	require.NoError(t, err)

	writeFile(t, path, "second version")
	c := NewCoordinator(idx, failingEmbedder{embedding.NewHashEmbedder(testDims)}, NewSplitter(200, 40))
	_, err = c.OnFileEvent(ctx, created(path, models.CategoryInternal))
	require.ErrorIs(t, err, embedding.ErrEmbeddingFailed)

	chunks, _ := idx.Chunks(ctx, path)
	require.Len(t, chunks, 1)
	assert.Equal(t, "first version", chunks[0].Text)
}

func TestCoordinator_MissingFileFails(t *testing.T) {
	c := newCoordinator(t, newIndex(t))
	_, err := c.OnFileEvent(context.Background(), created(filepath.Join(t.TempDir(), "gone.txt"), models.CategoryInternal))
	assert.ErrorIs(t, err, ErrExtractionFailed)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestCoordinator_RejectsBadEvents(t *testing.T) {
	c := newCoordinator(t, newIndex(t))
	ctx := context.Background()
	_, err := c.OnFileEvent(ctx, models.FileEvent{Path: "/x.txt", Type: models.EventCreated})
	assert.Error(t, err)
	_, err = c.OnFileEvent(ctx, models.FileEvent{Path: "/x.txt", Type: "renamed", Category: models.CategoryInternal})
	assert.Error(t, err)
}

func TestCoordinator_SamePathLinearized(t *testing.T) {
	idx := newIndex(t)
	var active, maxActive int32
	slow := extractorFunc(func(_ context.Context, path string) (string, error) {
		n := atomic.AddInt32(&active, 1)
		for {
			m := atomic.LoadInt32(&maxActive)
			if n <= m || atomic.CompareAndSwapInt32(&maxActive, m, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		atomic.AddInt32(&active, -1)
		data, err := os.ReadFile(path)
		return string(data), err
	})
	c := newCoordinator(t, idx, WithExtractor(slow))
	path := writeFile(t, filepath.Join(t.TempDir(), "shared.txt"), "shared content")

	var wg sync.WaitGroup
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.OnFileEvent(context.Background(), created(path, models.CategoryInternal), Force())
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.EqualValues(t, 1, atomic.LoadInt32(&maxActive))
	assert.Zero(t, c.locks.len())
}

func TestCoordinator_IndexPath(t *testing.T) {
	idx := newIndex(t)
	c := newCoordinator(t, idx)
	ctx := context.Background()
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.txt"), "alpha")
	writeFile(t, filepath.Join(dir, "sub", "b.md"), "beta")
	writeFile(t, filepath.Join(dir, "sub", "c.bin"), "binary")
	writeFile(t, filepath.Join(dir, ".hidden", "d.txt"), "hidden")
	writeFile(t, filepath.Join(dir, "broken.pptx"), "not a zip")

	sum, err := c.IndexPath(ctx, dir, models.CategoryInternal, []string{".txt", ".md", ".pptx"})
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Indexed)
	assert.Equal(t, 1, sum.Failed)
	assert.Equal(t, 3, sum.Total())

	sum, err = c.IndexPath(ctx, dir, models.CategoryInternal, []string{".txt", ".md"})
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Skipped)

	sources, err := idx.Sources(ctx)
	require.NoError(t, err)
	assert.Len(t, sources, 2)
}

func TestExtensionAllowed(t *testing.T) {
	tests := []struct {
		ext     string
		allowed []string
		want    bool
	}{
		{".txt", []string{".txt", ".md"}, true},
		{".TXT", []string{"txt"}, true},
		{".pdf", []string{".txt"}, false},
		{".pdf", nil, true},
	}
	for _, tt := range tests {
		if got := ExtensionAllowed(tt.ext, tt.allowed); got != tt.want {
			t.Errorf("ExtensionAllowed(%q, %v) = %v, want %v", tt.ext, tt.allowed, got, tt.want)
		}
	}
}
