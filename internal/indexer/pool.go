package indexer

import (
	"context"
	"errors"
	"hash/fnv"
	"sync"

	"go.uber.org/zap"

	"github.com/hyperjump/kensaku/internal/fileid"
	"github.com/hyperjump/kensaku/internal/models"
	"github.com/hyperjump/kensaku/pkg/utils"
)

// ErrPoolClosed is returned by Submit after Stop.
var ErrPoolClosed = errors.New("ingest pool closed")

// EventHandler handles one file event. *Coordinator implements it.
type EventHandler interface {
	OnFileEvent(ctx context.Context, ev models.FileEvent, opts ...EventOption) (Outcome, error)
}

// Pool runs file events on a fixed set of workers. Each worker owns a bounded queue and every
// event for a path goes to the same worker, so events for one file are applied in arrival order.
type Pool struct {
	handler EventHandler
	queues  []chan models.FileEvent
	logger  *zap.Logger

	mu       sync.RWMutex
	closed   bool
	started  bool
	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	statsMu sync.Mutex
	summary Summary
}

// PoolOption configures a Pool.
type PoolOption func(*Pool)

// WithPoolLogger sets the pool logger.
func WithPoolLogger(l *zap.Logger) PoolOption {
	return func(p *Pool) { p.logger = l }
}

// NewPool creates a pool of workers, each with a queue of queueSize/workers events.
func NewPool(handler EventHandler, workers, queueSize int, opts ...PoolOption) *Pool {
	if workers <= 0 {
		workers = 1
	}
	perWorker := queueSize / workers
	if perWorker <= 0 {
		perWorker = 1
	}
	p := &Pool{handler: handler, queues: make([]chan models.FileEvent, workers), done: make(chan struct{})}
	for i := range p.queues {
		p.queues[i] = make(chan models.FileEvent, perWorker)
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = utils.OrNop(p.logger)
	return p
}

// Start launches the workers. Handlers receive ctx.
func (p *Pool) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started || p.closed {
		return
	}
	p.started = true
	for i, q := range p.queues {
		p.wg.Add(1)
		go p.work(ctx, i, q)
	}
}

func (p *Pool) work(ctx context.Context, id int, q <-chan models.FileEvent) {
	defer p.wg.Done()
	for ev := range q {
		outcome, err := p.handler.OnFileEvent(ctx, ev)
		p.statsMu.Lock()
		p.summary.Add(outcome, err)
		p.statsMu.Unlock()
		if err != nil {
			p.logger.Debug("event failed",
				zap.Int("worker", id),
				zap.String("path", ev.Path),
				zap.String("type", string(ev.Type)),
				zap.Error(err))
		}
	}
}

func (p *Pool) queueFor(path string) chan models.FileEvent {
	h := fnv.New32a()
	_, _ = h.Write([]byte(fileid.Normalize(path)))
	return p.queues[h.Sum32()%uint32(len(p.queues))]
}

// Submit queues ev, blocking while the worker's queue is full. It returns ctx.Err() if ctx ends
// first and ErrPoolClosed once Stop has been called, including while it is blocked.
func (p *Pool) Submit(ctx context.Context, ev models.FileEvent) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPoolClosed
	}
	select {
	case p.queueFor(ev.Path) <- ev:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-p.done:
		return ErrPoolClosed
	}
}

// Pending returns the number of queued events.
func (p *Pool) Pending() int {
	n := 0
	for _, q := range p.queues {
		n += len(q)
	}
	return n
}

// Summary returns outcome counts since the pool was created.
func (p *Pool) Summary() Summary {
	p.statsMu.Lock()
	defer p.statsMu.Unlock()
	return p.summary
}

// Stop closes the queues and waits for the workers to drain them. Events still queued in a
// pool that was never started are dropped.
func (p *Pool) Stop() {
	// Wake blocked submitters first; they hold the read lock.
	p.stopOnce.Do(func() { close(p.done) })
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	for _, q := range p.queues {
		close(q)
	}
	p.mu.Unlock()
	p.wg.Wait()
}
