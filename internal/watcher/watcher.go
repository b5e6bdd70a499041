// Package watcher turns filesystem changes under the category roots into debounced file events.
package watcher

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/hyperjump/kensaku/internal/indexer"
	"github.com/hyperjump/kensaku/internal/models"
	"github.com/hyperjump/kensaku/pkg/utils"
)

const defaultDebounce = 400 * time.Millisecond

// Root is a watched directory and the category of every file under it.
type Root struct {
	Path     string
	Category models.Category
}

// Handler receives file events. It must not block for long; the server hands events to the ingest pool.
type Handler func(models.FileEvent)

// Watcher watches the category roots recursively and reports created, modified and deleted files.
type Watcher struct {
	roots      []Root
	extensions []string
	handler    Handler
	debounce   time.Duration
	logger     *zap.Logger

	mu       sync.Mutex
	watcher  *fsnotify.Watcher
	pending  map[string]*pendingEvent
	done     chan struct{}
	started  bool
	stopOnce sync.Once
}

type pendingEvent struct {
	timer *time.Timer
	typ   models.EventType
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithLogger sets a logger for debug output.
func WithLogger(l *zap.Logger) Option {
	return func(w *Watcher) { w.logger = l }
}

// WithDebounce sets how long a path must stay quiet before its created or modified event fires.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// NewWatcher creates a watcher over roots. extensions filter which files are reported (empty = all).
func NewWatcher(roots []Root, extensions []string, handler Handler, opts ...Option) *Watcher {
	w := &Watcher{
		extensions: extensions,
		handler:    handler,
		debounce:   defaultDebounce,
		pending:    make(map[string]*pendingEvent),
		done:       make(chan struct{}),
	}
	for _, r := range roots {
		abs, err := filepath.Abs(r.Path)
		if err != nil {
			abs = filepath.Clean(r.Path)
		}
		w.roots = append(w.roots, Root{Path: abs, Category: r.Category})
	}
	for _, opt := range opts {
		opt(w)
	}
	w.logger = utils.OrNop(w.logger)
	return w
}

// Roots returns the watched roots.
func (w *Watcher) Roots() []Root {
	return append([]Root(nil), w.roots...)
}

// Start creates missing roots, watches every directory under them and returns.
// Events are delivered until ctx is cancelled or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.started {
		return nil
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	for _, root := range w.roots {
		if err := addTree(fw, root.Path, true); err != nil {
			_ = fw.Close()
			return err
		}
	}
	w.watcher = fw
	w.started = true
	w.logger.Debug("watcher started", zap.Int("roots", len(w.roots)), zap.Strings("extensions", w.extensions))
	go w.run(ctx, fw)
	return nil
}

func addTree(fw *fsnotify.Watcher, root string, create bool) error {
	if create {
		if err := os.MkdirAll(root, 0755); err != nil {
			return err
		}
	}
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && hidden(path) {
			return filepath.SkipDir
		}
		return fw.Add(path)
	})
}

func (w *Watcher) run(ctx context.Context, fw *fsnotify.Watcher) {
	for {
		select {
		case <-ctx.Done():
			w.Stop()
			return
		case <-w.done:
			return
		case ev, ok := <-fw.Events:
			if !ok {
				return
			}
			w.handleEvent(ev)
		case err, ok := <-fw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watcher error", zap.Error(err))
		}
	}
}

func (w *Watcher) handleEvent(ev fsnotify.Event) {
	path := filepath.Clean(ev.Name)
	root, ok := w.rootFor(path)
	if !ok || hidden(path) {
		return
	}
	w.logger.Debug("watcher event", zap.String("op", ev.Op.String()), zap.String("path", path))

	switch {
	case ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename):
		w.cancel(path)
		if indexer.ExtensionAllowed(filepath.Ext(path), w.extensions) {
			w.emit(models.FileEvent{Path: path, Type: models.EventDeleted, Category: root.Category})
		}
	case ev.Has(fsnotify.Create) || ev.Has(fsnotify.Write):
		info, err := os.Stat(path)
		if err != nil {
			return
		}
		if info.IsDir() {
			w.handleNewDirectory(path, root)
			return
		}
		typ := models.EventModified
		if ev.Has(fsnotify.Create) {
			typ = models.EventCreated
		}
		if indexer.ExtensionAllowed(filepath.Ext(path), w.extensions) {
			w.schedule(models.FileEvent{Path: path, Type: typ, Category: root.Category})
		}
	}
}

// handleNewDirectory watches a directory created or moved under a root and reports the files in it.
func (w *Watcher) handleNewDirectory(dir string, root Root) {
	w.mu.Lock()
	fw := w.watcher
	w.mu.Unlock()
	if fw == nil {
		return
	}
	if err := addTree(fw, dir, false); err != nil {
		w.logger.Debug("watch new directory", zap.String("path", dir), zap.Error(err))
	}
	w.syncDirectory(context.Background(), dir, root.Category)
}

func (w *Watcher) rootFor(path string) (Root, bool) {
	for _, root := range w.roots {
		if root.Path == path || inDir(root.Path, path) {
			return root, true
		}
	}
	return Root{}, false
}

func inDir(dir, path string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// hidden reports dot files such as editor swap files.
func hidden(path string) bool {
	return strings.HasPrefix(filepath.Base(path), ".")
}

// schedule delays ev until its path has been quiet for the debounce interval. A pending
// created event stays created when later writes arrive.
func (w *Watcher) schedule(ev models.FileEvent) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.started {
		return
	}
	if p, ok := w.pending[ev.Path]; ok {
		p.timer.Stop()
		if p.typ == models.EventCreated {
			ev.Type = models.EventCreated
		}
	}
	p := &pendingEvent{typ: ev.Type}
	p.timer = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		if w.pending[ev.Path] != p {
			w.mu.Unlock()
			return
		}
		delete(w.pending, ev.Path)
		w.mu.Unlock()
		w.emit(ev)
	})
	w.pending[ev.Path] = p
}

func (w *Watcher) cancel(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if p, ok := w.pending[path]; ok {
		p.timer.Stop()
		delete(w.pending, path)
	}
}

func (w *Watcher) emit(ev models.FileEvent) {
	w.logger.Debug("file event", zap.String("path", ev.Path), zap.String("type", string(ev.Type)))
	if w.handler != nil {
		w.handler(ev)
	}
}

func (w *Watcher) syncDirectory(ctx context.Context, dir string, category models.Category) {
	err := indexer.WalkFiles(ctx, dir, w.extensions, func(path string) error {
		w.emit(models.FileEvent{Path: path, Type: models.EventCreated, Category: category})
		return nil
	})
	if err != nil {
		w.logger.Warn("sync directory", zap.String("path", dir), zap.Error(err))
	}
}

// SyncExistingFiles reports every existing file under the roots as created. Call it after Start
// to pick up files that were added while the server was down.
func (w *Watcher) SyncExistingFiles(ctx context.Context) {
	for _, root := range w.roots {
		if ctx.Err() != nil {
			return
		}
		w.logger.Debug("watcher syncing existing files", zap.String("root", root.Path))
		w.syncDirectory(ctx, root.Path, root.Category)
	}
}

// Stop stops the watcher and drops pending events.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.started {
		w.mu.Unlock()
		return
	}
	for path, p := range w.pending {
		p.timer.Stop()
		delete(w.pending, path)
	}
	_ = w.watcher.Close()
	w.watcher = nil
	w.started = false
	w.mu.Unlock()
	w.stopOnce.Do(func() { close(w.done) })
}
