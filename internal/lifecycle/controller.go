// Package lifecycle runs administrator-triggered soft and hard resets and reports collection stats.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hyperjump/kensaku/internal/fileid"
	"github.com/hyperjump/kensaku/internal/indexer"
	"github.com/hyperjump/kensaku/internal/models"
	"github.com/hyperjump/kensaku/pkg/utils"
)

// ErrResetInProgress is returned when a reset is requested while another one runs.
var ErrResetInProgress = errors.New("reset already in progress")

// Mode selects the reset kind.
type Mode string

const (
	// ModeSoft re-ingests every source into the existing collection.
	ModeSoft Mode = "soft"
	// ModeHard destroys and recreates the collection, then re-ingests.
	ModeHard Mode = "hard"
)

// ParseMode parses "soft" or "hard"; the empty string means soft.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeSoft:
		return ModeSoft, nil
	case ModeHard:
		return ModeHard, nil
	default:
		return "", fmt.Errorf("unknown reset mode %q (expected soft or hard)", s)
	}
}

// Index is the collection surface the controller needs. *index.Manager implements it.
type Index interface {
	Reset(ctx context.Context, hard bool) error
	Count(ctx context.Context) (int64, error)
	Sources(ctx context.Context) ([]models.SourceDocument, error)
	DiskUsage() (int64, error)
}

// Report describes the last completed reset.
type Report struct {
	Mode       Mode            `json:"mode"`
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt time.Time       `json:"finished_at"`
	Summary    indexer.Summary `json:"summary"`
	Error      string          `json:"error,omitempty"`
}

// Controller owns resets. At most one reset runs at a time; queries may run concurrently.
type Controller struct {
	index   Index
	ingest  indexer.EventHandler
	lister  Lister
	workers int
	logger  *zap.Logger
	baseCtx context.Context

	running atomic.Bool
	wg      sync.WaitGroup
	mu      sync.Mutex
	last    *Report
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the controller logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

// WithWorkers bounds how many documents a reset ingests concurrently.
func WithWorkers(n int) Option {
	return func(c *Controller) { c.workers = n }
}

// WithContext sets the parent context of resets started by Trigger.
func WithContext(ctx context.Context) Option {
	return func(c *Controller) { c.baseCtx = ctx }
}

// NewController returns a controller re-ingesting through ingest the files listed by lister.
func NewController(idx Index, ingest indexer.EventHandler, lister Lister, opts ...Option) *Controller {
	c := &Controller{
		index:   idx,
		ingest:  ingest,
		lister:  lister,
		workers: 4,
		baseCtx: context.Background(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.workers <= 0 {
		c.workers = 1
	}
	c.logger = utils.OrNop(c.logger)
	return c
}

// Run performs a reset synchronously. It returns ErrResetInProgress if one is already running.
func (c *Controller) Run(ctx context.Context, mode Mode) (indexer.Summary, error) {
	if !c.running.CompareAndSwap(false, true) {
		return indexer.Summary{}, ErrResetInProgress
	}
	defer c.running.Store(false)
	return c.run(ctx, mode)
}

// Trigger starts a reset in the background and returns immediately.
func (c *Controller) Trigger(mode Mode) error {
	if mode != ModeSoft && mode != ModeHard {
		return fmt.Errorf("unknown reset mode %q", mode)
	}
	if !c.running.CompareAndSwap(false, true) {
		return ErrResetInProgress
	}
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer c.running.Store(false)
		_, _ = c.run(c.baseCtx, mode)
	}()
	return nil
}

// Wait blocks until a reset started by Trigger finishes.
func (c *Controller) Wait() {
	c.wg.Wait()
}

// Running reports whether a reset is in progress.
func (c *Controller) Running() bool {
	return c.running.Load()
}

// LastReport returns the last finished reset, or nil.
func (c *Controller) LastReport() *Report {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.last == nil {
		return nil
	}
	r := *c.last
	return &r
}

func (c *Controller) run(ctx context.Context, mode Mode) (indexer.Summary, error) {
	report := Report{Mode: mode, StartedAt: time.Now()}
	c.logger.Info("reset started", zap.String("mode", string(mode)))

	var sum indexer.Summary
	var err error
	if mode == ModeHard {
		sum, err = c.hardReset(ctx)
	} else {
		sum, err = c.softReset(ctx)
	}

	report.FinishedAt = time.Now()
	report.Summary = sum
	fields := []zap.Field{
		zap.String("mode", string(mode)),
		zap.Duration("took", report.FinishedAt.Sub(report.StartedAt)),
		zap.Int("indexed", sum.Indexed),
		zap.Int("cleared", sum.Cleared),
		zap.Int("deleted", sum.Deleted),
		zap.Int("failed", sum.Failed),
	}
	if err != nil {
		report.Error = err.Error()
		c.logger.Error("reset failed", append(fields, zap.Error(err))...)
	} else {
		c.logger.Info("reset finished", fields...)
	}
	c.mu.Lock()
	c.last = &report
	c.mu.Unlock()
	return sum, err
}

// SoftReset re-runs ingestion for every listed file, ignoring stored fingerprints, and removes
// sources whose files no longer exist. Per-document failures are counted, not returned.
func (c *Controller) SoftReset(ctx context.Context) (indexer.Summary, error) {
	return c.Run(ctx, ModeSoft)
}

// HardReset recreates an empty collection and then performs a soft reset.
func (c *Controller) HardReset(ctx context.Context) (indexer.Summary, error) {
	return c.Run(ctx, ModeHard)
}

func (c *Controller) hardReset(ctx context.Context) (indexer.Summary, error) {
	if err := c.index.Reset(ctx, true); err != nil {
		return indexer.Summary{}, fmt.Errorf("reset collection: %w", err)
	}
	return c.softReset(ctx)
}

func (c *Controller) softReset(ctx context.Context) (indexer.Summary, error) {
	entries, err := c.lister.List(ctx)
	if err != nil {
		return indexer.Summary{}, fmt.Errorf("list sources: %w", err)
	}
	known, err := c.index.Sources(ctx)
	if err != nil {
		return indexer.Summary{}, fmt.Errorf("read sources: %w", err)
	}
	listed := make(map[string]bool, len(entries))
	events := make([]models.FileEvent, 0, len(entries)+len(known))
	for _, e := range entries {
		path := fileid.Normalize(e.Path)
		listed[path] = true
		events = append(events, models.FileEvent{Path: path, Type: models.EventCreated, Category: e.Category})
	}
	for _, src := range known {
		if !listed[src.Path] {
			events = append(events, models.FileEvent{Path: src.Path, Type: models.EventDeleted, Category: src.Category})
		}
	}

	var (
		mu  sync.Mutex
		sum indexer.Summary
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.workers)
	for _, ev := range events {
		ev := ev
		g.Go(func() error {
			outcome, err := c.ingest.OnFileEvent(gctx, ev, indexer.Force())
			if ctxErr := gctx.Err(); ctxErr != nil {
				return ctxErr
			}
			mu.Lock()
			sum.Add(outcome, err)
			mu.Unlock()
			return nil
		})
	}
	err = g.Wait()
	return sum, err
}

// Stats summarizes the collection.
func (c *Controller) Stats(ctx context.Context) (*models.Stats, error) {
	count, err := c.index.Count(ctx)
	if err != nil {
		return nil, err
	}
	sources, err := c.index.Sources(ctx)
	if err != nil {
		return nil, err
	}
	stats := &models.Stats{
		ChunkCount:     count,
		Documents:      len(sources),
		LastIndexTimes: make(map[string]time.Time, len(sources)),
		ResetRunning:   c.Running(),
	}
	for _, src := range sources {
		stats.LastIndexTimes[src.Path] = src.LastIndexedAt
	}
	if usage, err := c.index.DiskUsage(); err == nil {
		stats.DiskUsageBytes = usage
	} else {
		c.logger.Debug("disk usage unavailable", zap.Error(err))
	}
	return stats, nil
}
