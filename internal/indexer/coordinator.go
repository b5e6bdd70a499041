// Package indexer turns file events into collection updates: extract, normalize, split, embed, upsert.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/kensaku/internal/embedding"
	"github.com/hyperjump/kensaku/internal/extract"
	"github.com/hyperjump/kensaku/internal/fileid"
	"github.com/hyperjump/kensaku/internal/index"
	"github.com/hyperjump/kensaku/internal/models"
	"github.com/hyperjump/kensaku/pkg/utils"
)

// ErrExtractionFailed wraps every per-document failure before embedding: unreadable file,
// extractor error, or the document time limit.
var ErrExtractionFailed = errors.New("extraction failed")

// Outcome is the result of handling one file event.
type Outcome int

const (
	// OutcomeSkipped means the fingerprint was unchanged and nothing was done.
	OutcomeSkipped Outcome = iota + 1
	// OutcomeIndexed means the source's chunks were replaced.
	OutcomeIndexed
	// OutcomeCleared means the document had no text; its chunks were removed and its fingerprint kept.
	OutcomeCleared
	// OutcomeDeleted means the source was removed from the collection.
	OutcomeDeleted
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSkipped:
		return "skipped"
	case OutcomeIndexed:
		return "indexed"
	case OutcomeCleared:
		return "cleared"
	case OutcomeDeleted:
		return "deleted"
	default:
		return "failed"
	}
}

// TextExtractor returns the plain text of a file.
type TextExtractor interface {
	Extract(ctx context.Context, path string) (string, error)
}

// Index is the collection surface the coordinator writes to. *index.Manager implements it.
type Index interface {
	Source(ctx context.Context, path string) (*models.SourceDocument, error)
	Upsert(ctx context.Context, path string, category models.Category, texts []string, embeddings [][]float32, opts ...index.UpsertOption) (int, error)
	DeleteSource(ctx context.Context, path string) (bool, error)
}

// Coordinator applies file events to the collection. Events for the same path are linearized.
type Coordinator struct {
	index      Index
	embedder   embedding.Embedder
	extractor  TextExtractor
	splitter   *Splitter
	batchSize  int
	docTimeout time.Duration
	locks      *pathLocks
	logger     *zap.Logger
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithLogger sets the logger; per-document failures are logged at warn level.
func WithLogger(l *zap.Logger) Option {
	return func(c *Coordinator) { c.logger = l }
}

// WithExtractor replaces the default extract.Extractor.
func WithExtractor(x TextExtractor) Option {
	return func(c *Coordinator) { c.extractor = x }
}

// WithDocumentTimeout sets the soft time limit for extracting and embedding one document.
// Zero disables the limit.
func WithDocumentTimeout(d time.Duration) Option {
	return func(c *Coordinator) { c.docTimeout = d }
}

// WithBatchSize sets how many chunks are embedded per call.
func WithBatchSize(n int) Option {
	return func(c *Coordinator) { c.batchSize = n }
}

// NewCoordinator returns a coordinator writing to idx.
func NewCoordinator(idx Index, embedder embedding.Embedder, splitter *Splitter, opts ...Option) *Coordinator {
	c := &Coordinator{
		index:     idx,
		embedder:  embedder,
		extractor: extract.NewExtractor(),
		splitter:  splitter,
		batchSize: 32,
		locks:     newPathLocks(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = utils.OrNop(c.logger)
	return c
}

type eventOptions struct {
	force bool
}

// EventOption configures a single OnFileEvent call.
type EventOption func(*eventOptions)

// Force re-ingests the file even when its fingerprint is unchanged.
func Force() EventOption {
	return func(o *eventOptions) { o.force = true }
}

// OnFileEvent applies one file event. Per-document failures are logged and returned wrapped in
// ErrExtractionFailed or embedding.ErrEmbeddingFailed; the source's existing chunks are left
// in place.
func (c *Coordinator) OnFileEvent(ctx context.Context, ev models.FileEvent, opts ...EventOption) (Outcome, error) {
	o := eventOptions{}
	for _, opt := range opts {
		opt(&o)
	}
	path := fileid.Normalize(ev.Path)
	unlock := c.locks.lock(path)
	defer unlock()

	switch ev.Type {
	case models.EventDeleted:
		return c.delete(ctx, path)
	case models.EventCreated, models.EventModified:
		if !ev.Category.Valid() {
			return 0, fmt.Errorf("event for %s has no category", path)
		}
		return c.ingest(ctx, path, ev.Category, o.force)
	default:
		return 0, fmt.Errorf("unknown event type %q", ev.Type)
	}
}

func (c *Coordinator) delete(ctx context.Context, path string) (Outcome, error) {
	removed, err := c.index.DeleteSource(ctx, path)
	if err != nil {
		return 0, fmt.Errorf("delete %s: %w", path, err)
	}
	c.logger.Debug("source deleted", zap.String("path", path), zap.Bool("was_indexed", removed))
	return OutcomeDeleted, nil
}

func (c *Coordinator) ingest(ctx context.Context, path string, category models.Category, force bool) (Outcome, error) {
	fp, err := fileid.Fingerprint(path)
	if err != nil {
		return 0, c.fail(path, "", "unreadable", fmt.Errorf("%w: %s: %w", ErrExtractionFailed, path, err))
	}
	if !force {
		prev, err := c.index.Source(ctx, path)
		if err != nil {
			return 0, fmt.Errorf("read source state %s: %w", path, err)
		}
		if prev != nil && prev.Fingerprint == fp && prev.Category == category {
			c.logger.Debug("source unchanged", zap.String("path", path), zap.String("fingerprint", fp))
			return OutcomeSkipped, nil
		}
	}

	docCtx := ctx
	if c.docTimeout > 0 {
		var cancel context.CancelFunc
		docCtx, cancel = context.WithTimeout(ctx, c.docTimeout)
		defer cancel()
	}

	text, err := c.extract(docCtx, path)
	if err != nil {
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		return 0, c.fail(path, fp, failureKind(err), fmt.Errorf("%w: %w", ErrExtractionFailed, err))
	}

	texts := c.splitter.Split(Normalize(text))
	if len(texts) == 0 {
		if _, err := c.index.Upsert(ctx, path, category, nil, nil, index.WithFingerprint(fp)); err != nil {
			return 0, fmt.Errorf("clear %s: %w", path, err)
		}
		c.logger.Info("source has no text", zap.String("path", path), zap.String("fingerprint", fp))
		return OutcomeCleared, nil
	}

	embeddings, err := embedding.EmbedInBatches(docCtx, c.embedder, texts, c.batchSize)
	if err != nil {
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return 0, c.fail(path, fp, "timeout", fmt.Errorf("%w: %s: %w", ErrExtractionFailed, path, err))
		}
		return 0, c.fail(path, fp, "embedding_failed", err)
	}

	n, err := c.index.Upsert(ctx, path, category, texts, embeddings, index.WithFingerprint(fp))
	if err != nil {
		return 0, fmt.Errorf("upsert %s: %w", path, err)
	}
	c.logger.Info("source indexed",
		zap.String("path", path),
		zap.String("category", category.String()),
		zap.String("fingerprint", fp),
		zap.Int("chunks", n))
	return OutcomeIndexed, nil
}

// extract runs the extractor under ctx. An extractor that ignores cancellation is abandoned
// when ctx expires; its result is discarded.
func (c *Coordinator) extract(ctx context.Context, path string) (string, error) {
	type result struct {
		text string
		err  error
	}
	done := make(chan result, 1)
	go func() {
		text, err := c.extractor.Extract(ctx, path)
		done <- result{text, err}
	}()
	select {
	case r := <-done:
		return r.text, r.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func failureKind(err error) string {
	if kind, ok := extract.KindOf(err); ok {
		return kind.String()
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	return "extraction_failed"
}

func (c *Coordinator) fail(path, fp, kind string, err error) error {
	c.logger.Warn("document ingestion failed",
		zap.String("path", path),
		zap.String("fingerprint", fp),
		zap.String("kind", kind),
		zap.Error(err))
	return err
}
