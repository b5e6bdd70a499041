// Package index owns the vector collection: a SQLite collection database mirrored into an
// in-memory cosine index. A collection directory is opened by at most one Manager per process.
package index

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/kensaku/internal/fileid"
	"github.com/hyperjump/kensaku/internal/models"
	"github.com/hyperjump/kensaku/internal/storage"
	"github.com/hyperjump/kensaku/internal/vector"
	"github.com/hyperjump/kensaku/pkg/utils"
)

var (
	// ErrStorageUnavailable means the collection could not be opened or recreated.
	ErrStorageUnavailable = errors.New("storage unavailable")
	// ErrConfigurationMismatch means the stored collection was built with a different configuration.
	ErrConfigurationMismatch = errors.New("collection configuration mismatch")
	// ErrCollectionInUse means another manager in this process already holds the collection.
	ErrCollectionInUse = errors.New("collection already open")
	// ErrClosed is returned by a manager after Close.
	ErrClosed = errors.New("index manager closed")
)

// MetricCosine is the only supported distance metric.
const MetricCosine = "cosine"

// Config identifies a collection. It is fixed for the lifetime of the collection.
type Config struct {
	Path       string
	Dimensions int
	Metric     string
	// Model names the embedding model. Empty skips the model check.
	Model string
}

func (c Config) withDefaults() Config {
	if c.Metric == "" {
		c.Metric = MetricCosine
	}
	if c.Path != "" {
		if abs, err := filepath.Abs(c.Path); err == nil {
			c.Path = abs
		}
	}
	return c
}

func (c Config) dbPath() string {
	return filepath.Join(c.Path, storage.DBFileName)
}

// Collection is an open collection handle.
type Collection struct {
	cfg     Config
	store   *storage.SQLiteStore
	vectors vector.VectorIndex
}

// Path returns the collection directory.
func (c *Collection) Path() string {
	return c.cfg.Path
}

// Dimensions returns the embedding dimension of the collection.
func (c *Collection) Dimensions() int {
	return c.cfg.Dimensions
}

// Manager opens the collection lazily and serializes every mutation.
type Manager struct {
	cfg    Config
	logger *zap.Logger

	openMu sync.Mutex
	// mu serializes mutations; coll is published once the collection is open.
	mu     sync.RWMutex
	coll   atomic.Pointer[Collection]
	closed bool
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger for the manager.
func WithLogger(l *zap.Logger) Option {
	return func(m *Manager) {
		m.logger = l
	}
}

// NewManager returns a manager for cfg. Nothing is opened until first use.
func NewManager(cfg Config, opts ...Option) (*Manager, error) {
	cfg = cfg.withDefaults()
	if cfg.Path == "" {
		return nil, fmt.Errorf("collection path is required")
	}
	if cfg.Dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive, got %d", cfg.Dimensions)
	}
	if cfg.Metric != MetricCosine {
		return nil, fmt.Errorf("%w: unsupported metric %q", ErrConfigurationMismatch, cfg.Metric)
	}
	m := &Manager{cfg: cfg}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = utils.OrNop(m.logger)
	return m, nil
}

// Config returns the manager's collection configuration.
func (m *Manager) Config() Config {
	return m.cfg
}

// Collection returns the open collection, opening it on first call. Concurrent first callers
// are serialized and all receive the same handle. Once open, no lock is taken.
func (m *Manager) Collection(ctx context.Context) (*Collection, error) {
	if coll := m.coll.Load(); coll != nil {
		return coll, nil
	}
	m.openMu.Lock()
	defer m.openMu.Unlock()
	m.mu.RLock()
	closed := m.closed
	m.mu.RUnlock()
	if closed {
		return nil, ErrClosed
	}
	if coll := m.coll.Load(); coll != nil {
		return coll, nil
	}

	if err := register(m); err != nil {
		return nil, err
	}
	coll, err := m.open(ctx)
	if err != nil {
		unregister(m)
		return nil, err
	}
	m.coll.Store(coll)
	m.logger.Info("collection opened",
		zap.String("path", m.cfg.Path),
		zap.Int("dimensions", m.cfg.Dimensions),
		zap.Int("chunks", coll.vectors.Size()))
	return coll, nil
}

// open makes one self-heal attempt: the database files are removed and recreated when the
// first open fails for any reason other than a configuration mismatch.
func (m *Manager) open(ctx context.Context) (*Collection, error) {
	coll, err := m.tryOpen(ctx)
	if err == nil || errors.Is(err, ErrConfigurationMismatch) {
		return coll, err
	}
	m.logger.Warn("collection open failed, recreating", zap.String("path", m.cfg.Path), zap.Error(err))
	if rmErr := storage.RemoveDBFiles(m.cfg.dbPath()); rmErr != nil {
		return nil, fmt.Errorf("%w: %w", ErrStorageUnavailable, rmErr)
	}
	coll, err = m.tryOpen(ctx)
	if err != nil {
		if errors.Is(err, ErrConfigurationMismatch) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}
	return coll, nil
}

func (m *Manager) tryOpen(ctx context.Context) (*Collection, error) {
	if err := os.MkdirAll(m.cfg.Path, 0755); err != nil {
		return nil, fmt.Errorf("create collection directory: %w", err)
	}
	store, err := storage.NewSQLiteStore(m.cfg.dbPath())
	if err != nil {
		return nil, err
	}
	if err := m.checkMeta(ctx, store); err != nil {
		_ = store.Close()
		return nil, err
	}
	vectors, err := vector.NewMemoryIndex(m.cfg.Dimensions)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	chunks, err := store.LoadChunks(ctx)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("load chunks: %w", err)
	}
	if err := vectors.Load(chunks); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("%w: %w", ErrConfigurationMismatch, err)
	}
	return &Collection{cfg: m.cfg, store: store, vectors: vectors}, nil
}

// checkMeta records the configuration of a new collection, or compares it with a stored one.
func (m *Manager) checkMeta(ctx context.Context, store *storage.SQLiteStore) error {
	want := []struct{ key, value string }{
		{storage.MetaDimensions, strconv.Itoa(m.cfg.Dimensions)},
		{storage.MetaMetric, m.cfg.Metric},
		{storage.MetaModel, m.cfg.Model},
	}
	for _, kv := range want {
		got, err := store.Meta(ctx, kv.key)
		switch {
		case errors.Is(err, storage.ErrNotFound):
			if kv.value == "" {
				continue
			}
			if err := store.SetMeta(ctx, kv.key, kv.value); err != nil {
				return fmt.Errorf("record %s: %w", kv.key, err)
			}
		case err != nil:
			return fmt.Errorf("read %s: %w", kv.key, err)
		case kv.value != "" && got != kv.value:
			return fmt.Errorf("%w: %s is %q, configured %q", ErrConfigurationMismatch, kv.key, got, kv.value)
		}
	}
	return nil
}

// writable returns the open collection for a mutation. The caller must hold m.mu.
func (m *Manager) writable() (*Collection, error) {
	if m.closed {
		return nil, ErrClosed
	}
	coll := m.coll.Load()
	if coll == nil {
		return nil, ErrStorageUnavailable
	}
	return coll, nil
}

type upsertOptions struct {
	fingerprint string
	indexedAt   time.Time
}

// UpsertOption configures Upsert.
type UpsertOption func(*upsertOptions)

// WithFingerprint records the content fingerprint the chunks were produced from.
func WithFingerprint(fp string) UpsertOption {
	return func(o *upsertOptions) {
		o.fingerprint = fp
	}
}

// WithIndexedAt overrides the recorded indexing time.
func WithIndexedAt(t time.Time) UpsertOption {
	return func(o *upsertOptions) {
		o.indexedAt = t
	}
}

// Upsert replaces every chunk of sourcePath with texts and their embeddings. The database
// write is one transaction; the in-memory index then swaps the source's entries under its
// write lock, so searches see either the old or the new chunk set. Zero texts clears the
// source but keeps its fingerprint.
func (m *Manager) Upsert(ctx context.Context, sourcePath string, category models.Category, texts []string, embeddings [][]float32, opts ...UpsertOption) (int, error) {
	if len(texts) != len(embeddings) {
		return 0, fmt.Errorf("texts and embeddings differ in length: %d vs %d", len(texts), len(embeddings))
	}
	if !category.Valid() {
		return 0, fmt.Errorf("invalid category %d for %s", category, sourcePath)
	}
	o := upsertOptions{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.indexedAt.IsZero() {
		o.indexedAt = time.Now()
	}
	sourcePath = fileid.Normalize(sourcePath)

	chunks := make([]models.Chunk, len(texts))
	for i, text := range texts {
		if len(embeddings[i]) != m.cfg.Dimensions {
			return 0, fmt.Errorf("%w: embedding %d has dimension %d, expected %d", ErrConfigurationMismatch, i, len(embeddings[i]), m.cfg.Dimensions)
		}
		chunks[i] = models.Chunk{
			ID:         fileid.ChunkID(sourcePath, o.fingerprint, i),
			Text:       text,
			SourcePath: sourcePath,
			Category:   category,
			Index:      i,
			Embedding:  embeddings[i],
		}
	}

	if _, err := m.Collection(ctx); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	coll, err := m.writable()
	if err != nil {
		return 0, err
	}
	src := models.SourceDocument{
		Path:          sourcePath,
		Category:      category,
		Fingerprint:   o.fingerprint,
		LastIndexedAt: o.indexedAt,
		ChunkCount:    len(chunks),
	}
	if err := coll.store.ReplaceSource(ctx, src, chunks); err != nil {
		return 0, fmt.Errorf("upsert %s: %w", sourcePath, err)
	}
	if err := coll.vectors.ReplaceSource(ctx, sourcePath, chunks); err != nil {
		return 0, fmt.Errorf("upsert %s: %w", sourcePath, err)
	}
	return len(chunks), nil
}

// DeleteSource removes every chunk and the recorded state of sourcePath.
// It reports whether the source was present.
func (m *Manager) DeleteSource(ctx context.Context, sourcePath string) (bool, error) {
	sourcePath = fileid.Normalize(sourcePath)
	if _, err := m.Collection(ctx); err != nil {
		return false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	coll, err := m.writable()
	if err != nil {
		return false, err
	}
	removed, err := coll.store.DeleteSource(ctx, sourcePath)
	if err != nil {
		return false, fmt.Errorf("delete %s: %w", sourcePath, err)
	}
	if err := coll.vectors.RemoveSource(ctx, sourcePath); err != nil {
		return false, err
	}
	return removed, nil
}

// Search returns up to k chunks nearest to embedding, ascending by cosine distance.
// models.CategoryAny searches every category.
func (m *Manager) Search(ctx context.Context, embedding []float32, k int, category models.Category) ([]models.SearchHit, error) {
	coll, err := m.Collection(ctx)
	if err != nil {
		return nil, err
	}
	return coll.vectors.Search(ctx, embedding, k, category)
}

// Count returns the number of chunks in the collection.
func (m *Manager) Count(ctx context.Context) (int64, error) {
	coll, err := m.Collection(ctx)
	if err != nil {
		return 0, err
	}
	return int64(coll.vectors.Size()), nil
}

// Source returns the recorded state of sourcePath, or nil when it has never been indexed.
func (m *Manager) Source(ctx context.Context, sourcePath string) (*models.SourceDocument, error) {
	if _, err := m.Collection(ctx); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	coll, err := m.writable()
	if err != nil {
		return nil, err
	}
	src, err := coll.store.GetSource(ctx, fileid.Normalize(sourcePath))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	return src, err
}

// Sources returns the state of every indexed source ordered by path.
func (m *Manager) Sources(ctx context.Context) ([]models.SourceDocument, error) {
	if _, err := m.Collection(ctx); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	coll, err := m.writable()
	if err != nil {
		return nil, err
	}
	return coll.store.ListSources(ctx)
}

// Chunks returns the stored chunks of sourcePath ordered by chunk index.
func (m *Manager) Chunks(ctx context.Context, sourcePath string) ([]models.Chunk, error) {
	if _, err := m.Collection(ctx); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	coll, err := m.writable()
	if err != nil {
		return nil, err
	}
	return coll.store.ChunksBySource(ctx, fileid.Normalize(sourcePath))
}

// Reset empties the collection when hard is true: the database files are removed and an empty
// collection with the same configuration is created. A soft reset leaves the collection as is.
func (m *Manager) Reset(ctx context.Context, hard bool) error {
	if !hard {
		return nil
	}
	if _, err := m.Collection(ctx); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	coll, err := m.writable()
	if err != nil {
		return err
	}
	if err := coll.store.Close(); err != nil {
		m.logger.Warn("close collection before reset", zap.Error(err))
	}
	coll.vectors.Reset()
	if err := storage.RemoveDBFiles(m.cfg.dbPath()); err != nil {
		m.coll.Store(nil)
		return fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}
	store, err := storage.NewSQLiteStore(m.cfg.dbPath())
	if err == nil {
		err = m.checkMeta(ctx, store)
		if err != nil {
			_ = store.Close()
		}
	}
	if err != nil {
		m.coll.Store(nil)
		return fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}
	coll.store = store
	m.logger.Info("collection reset", zap.String("path", m.cfg.Path))
	return nil
}

// DiskUsage returns the size in bytes of the collection directory.
func (m *Manager) DiskUsage() (int64, error) {
	return storage.DiskUsageBytes(m.cfg.Path)
}

// Close releases the collection. Further calls return ErrClosed.
func (m *Manager) Close() error {
	m.openMu.Lock()
	defer m.openMu.Unlock()
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	unregister(m)
	coll := m.coll.Swap(nil)
	if coll == nil {
		return nil
	}
	return coll.store.Close()
}
