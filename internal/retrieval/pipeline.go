// Package retrieval turns a query into ranked, cited context: embed, candidate search,
// relevance threshold, rerank, context assembly.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/kensaku/internal/config"
	"github.com/hyperjump/kensaku/internal/embedding"
	"github.com/hyperjump/kensaku/internal/models"
	"github.com/hyperjump/kensaku/internal/rerank"
	"github.com/hyperjump/kensaku/pkg/utils"
)

var (
	// ErrNoDocumentsIndexed signals that nothing matched because the collection (or the
	// requested category) is empty. Callers fall back to answering without context.
	ErrNoDocumentsIndexed = errors.New("no documents indexed")
	// ErrTimeout means the query did not finish before its deadline.
	ErrTimeout = errors.New("query timed out")
)

// Searcher finds candidate chunks. *index.Manager implements it.
type Searcher interface {
	Search(ctx context.Context, embedding []float32, k int, category models.Category) ([]models.SearchHit, error)
}

// Config holds the pipeline constants.
type Config struct {
	KCandidates int
	KFinal      int
	// Threshold is a similarity cutoff: candidates farther than 1-Threshold are dropped.
	Threshold float64
	// Timeout applies when the caller's context has no earlier deadline. Zero disables it.
	Timeout time.Duration
}

// ConfigFrom maps the retrieval section of the application config.
func ConfigFrom(cfg config.RetrievalConfig) Config {
	return Config{
		KCandidates: cfg.KCandidates,
		KFinal:      cfg.KFinal,
		Threshold:   cfg.Threshold(),
		Timeout:     cfg.QueryTimeout,
	}
}

// Pipeline answers queries against the collection.
type Pipeline struct {
	index    Searcher
	embedder embedding.Embedder
	reranker rerank.Reranker
	cfg      Config
	logger   *zap.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the pipeline logger.
func WithLogger(l *zap.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

// NewPipeline returns a retrieval pipeline. A nil reranker keeps vector order.
func NewPipeline(idx Searcher, embedder embedding.Embedder, reranker rerank.Reranker, cfg Config, opts ...Option) *Pipeline {
	if cfg.KCandidates <= 0 {
		cfg.KCandidates = config.DefaultKCandidates
	}
	if cfg.KFinal <= 0 {
		cfg.KFinal = config.DefaultKFinal
	}
	p := &Pipeline{index: idx, embedder: embedder, reranker: reranker, cfg: cfg}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = utils.OrNop(p.logger)
	return p
}

type outcome struct {
	res *models.RetrievalResult
	err error
}

// Query returns the cited context for text, optionally restricted to one category.
// It returns ErrNoDocumentsIndexed when there is nothing to search, ErrTimeout when the
// deadline passes, and an error wrapping embedding.ErrEmbeddingFailed when the query
// cannot be embedded.
func (p *Pipeline) Query(ctx context.Context, text string, category models.Category) (*models.RetrievalResult, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("query is required")
	}
	if p.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.Timeout)
		defer cancel()
	}

	done := make(chan outcome, 1)
	go func() {
		res, err := p.run(ctx, text, category)
		done <- outcome{res, err}
	}()
	select {
	case o := <-done:
		if o.err != nil && ctx.Err() != nil {
			return nil, p.deadline(ctx)
		}
		return o.res, o.err
	case <-ctx.Done():
		return nil, p.deadline(ctx)
	}
}

func (p *Pipeline) deadline(ctx context.Context) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", ErrTimeout, ctx.Err())
	}
	return ctx.Err()
}

func (p *Pipeline) run(ctx context.Context, text string, category models.Category) (*models.RetrievalResult, error) {
	queryVec, err := p.embedder.Embed(ctx, text)
	if err != nil {
		if errors.Is(err, embedding.ErrEmbeddingFailed) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", embedding.ErrEmbeddingFailed, err)
	}

	hits, err := p.index.Search(ctx, queryVec, p.cfg.KCandidates, category)
	if err != nil {
		return nil, fmt.Errorf("candidate search: %w", err)
	}
	hits = dropEmpty(hits)
	if len(hits) == 0 {
		return nil, ErrNoDocumentsIndexed
	}

	hits = FilterByThreshold(hits, p.cfg.Threshold)
	passages := p.rerank(ctx, text, hits)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(passages) > p.cfg.KFinal {
		passages = passages[:p.cfg.KFinal]
	}
	return Assemble(passages), nil
}

func dropEmpty(hits []models.SearchHit) []models.SearchHit {
	out := hits[:0:0]
	for _, h := range hits {
		if strings.TrimSpace(h.Chunk.Text) != "" {
			out = append(out, h)
		}
	}
	return out
}

// FilterByThreshold keeps hits within distance 1-threshold. When none qualify, the closest hit
// is kept alone so a query always gets a best-effort answer. hits must be sorted by distance.
func FilterByThreshold(hits []models.SearchHit, threshold float64) []models.SearchHit {
	if len(hits) == 0 {
		return nil
	}
	maxDistance := 1 - threshold
	kept := make([]models.SearchHit, 0, len(hits))
	for _, h := range hits {
		if h.Distance <= maxDistance {
			kept = append(kept, h)
		}
	}
	if len(kept) == 0 {
		return hits[:1:1]
	}
	return kept
}

// rerank orders hits by cross-encoder score. A reranker failure keeps vector order.
func (p *Pipeline) rerank(ctx context.Context, query string, hits []models.SearchHit) []models.Passage {
	passages := make([]models.Passage, len(hits))
	texts := make([]string, len(hits))
	for i, h := range hits {
		passages[i] = models.Passage{
			Text:       h.Chunk.Text,
			SourcePath: h.Chunk.SourcePath,
			Category:   h.Chunk.Category,
			ChunkIndex: h.Chunk.Index,
			Distance:   h.Distance,
		}
		texts[i] = h.Chunk.Text
	}
	if p.reranker == nil {
		return passages
	}
	scores, err := p.reranker.Score(ctx, query, texts)
	if err == nil && len(scores) != len(passages) {
		err = fmt.Errorf("reranker returned %d scores for %d passages", len(scores), len(passages))
	}
	if err != nil {
		if ctx.Err() == nil {
			p.logger.Warn("rerank failed, keeping vector order", zap.Error(err))
		}
		return passages
	}
	for i := range passages {
		passages[i].RerankScore = scores[i]
	}
	sort.SliceStable(passages, func(i, j int) bool {
		return passages[i].RerankScore > passages[j].RerankScore
	})
	return passages
}

// Assemble builds the numbered context blocks and the citation list, deduplicated by source
// path. Sources that share a file name are labelled with their parent directory too.
func Assemble(passages []models.Passage) *models.RetrievalResult {
	paths := make([]string, 0, len(passages))
	seen := make(map[string]bool, len(passages))
	for _, ps := range passages {
		if !seen[ps.SourcePath] {
			seen[ps.SourcePath] = true
			paths = append(paths, ps.SourcePath)
		}
	}
	labels := sourceLabels(paths)

	blocks := make([]string, len(passages))
	for i, ps := range passages {
		blocks[i] = fmt.Sprintf("[Source %d: %s]\n%s", i+1, labels[ps.SourcePath], strings.TrimSpace(ps.Text))
	}
	sources := make([]string, len(paths))
	for i, path := range paths {
		sources[i] = labels[path]
	}
	return &models.RetrievalResult{
		Context:  strings.Join(blocks, "\n\n"),
		Sources:  sources,
		Passages: passages,
	}
}

func sourceLabels(paths []string) map[string]string {
	byName := make(map[string]int, len(paths))
	for _, path := range paths {
		byName[utils.SourceLabel(path)]++
	}
	labels := make(map[string]string, len(paths))
	used := make(map[string]int, len(paths))
	for _, path := range paths {
		label := utils.SourceLabel(path)
		if byName[label] > 1 {
			label = filepath.Join(filepath.Base(filepath.Dir(path)), label)
		}
		labels[path] = label
		used[label]++
	}
	// same parent directory name too: fall back to the full path
	for path, label := range labels {
		if used[label] > 1 {
			labels[path] = path
		}
	}
	return labels
}
