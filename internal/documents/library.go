// Package documents manages the files under the category roots: listing what is indexed,
// reading a document's extracted text, and adding or removing files. Ingestion itself is left
// to the watcher and the ingest pool.
package documents

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/hyperjump/kensaku/internal/config"
	"github.com/hyperjump/kensaku/internal/indexer"
	"github.com/hyperjump/kensaku/internal/models"
	"github.com/hyperjump/kensaku/pkg/utils"
)

var (
	// ErrOutsideRoots means a path does not resolve inside a category root.
	ErrOutsideRoots = errors.New("path is outside the document roots")
	// ErrNotFound means the file does not exist.
	ErrNotFound = errors.New("document not found")
	// ErrInvalidName means an upload name is not a plain file name with a watched extension.
	ErrInvalidName = errors.New("invalid document name")
)

// SourceLister returns the indexed sources. *index.Manager implements it.
type SourceLister interface {
	Sources(ctx context.Context) ([]models.SourceDocument, error)
}

// Extractor returns the text of a file. *extract.Extractor implements it.
type Extractor interface {
	Extract(ctx context.Context, path string) (string, error)
}

// Library reads and writes documents under the category roots.
type Library struct {
	roots      map[models.Category]string
	extensions []string
	sources    SourceLister
	extractor  Extractor
	logger     *zap.Logger
}

// Option configures a Library.
type Option func(*Library)

// WithLogger sets the library logger.
func WithLogger(l *zap.Logger) Option {
	return func(lib *Library) { lib.logger = l }
}

// NewLibrary returns a library over roots. Only files with one of extensions can be uploaded.
func NewLibrary(roots map[models.Category]string, extensions []string, sources SourceLister, extractor Extractor, opts ...Option) *Library {
	clean := make(map[models.Category]string, len(roots))
	for cat, root := range roots {
		if root == "" {
			continue
		}
		if abs, err := filepath.Abs(root); err == nil {
			root = abs
		}
		clean[cat] = filepath.Clean(root)
	}
	lib := &Library{roots: clean, extensions: extensions, sources: sources, extractor: extractor}
	for _, opt := range opts {
		opt(lib)
	}
	lib.logger = utils.OrNop(lib.logger)
	return lib
}

// NewLibraryFromConfig returns a library over the configured roots and extensions.
func NewLibraryFromConfig(cfg *config.Config, sources SourceLister, extractor Extractor, opts ...Option) *Library {
	return NewLibrary(map[models.Category]string{
		models.CategoryInternal: cfg.Sources.InternalRoot,
		models.CategoryExternal: cfg.Sources.ExternalRoot,
	}, cfg.Sources.Extensions, sources, extractor, opts...)
}

// List returns every indexed source ordered by path.
func (l *Library) List(ctx context.Context) ([]models.SourceDocument, error) {
	return l.sources.Sources(ctx)
}

// Resolve returns the absolute path and category of path. The path must lie inside a root,
// also after symlinks are followed.
func (l *Library) Resolve(path string) (string, models.Category, error) {
	if path == "" {
		return "", models.CategoryAny, ErrOutsideRoots
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", models.CategoryAny, fmt.Errorf("%w: %s", ErrOutsideRoots, path)
	}
	cat, ok := l.categoryOf(abs, false)
	if !ok {
		return "", models.CategoryAny, fmt.Errorf("%w: %s", ErrOutsideRoots, path)
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		if realCat, ok := l.categoryOf(resolved, true); !ok || realCat != cat {
			return "", models.CategoryAny, fmt.Errorf("%w: %s", ErrOutsideRoots, path)
		}
	}
	return abs, cat, nil
}

func (l *Library) categoryOf(path string, resolveRoots bool) (models.Category, bool) {
	for _, cat := range models.Categories {
		root, ok := l.roots[cat]
		if !ok {
			continue
		}
		if resolveRoots {
			if resolved, err := filepath.EvalSymlinks(root); err == nil {
				root = resolved
			}
		}
		if inside(root, path) {
			return cat, true
		}
	}
	return models.CategoryAny, false
}

func inside(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil || rel == "." {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// Content returns the extracted text of the file at path.
func (l *Library) Content(ctx context.Context, path string) (string, error) {
	abs, _, err := l.Resolve(path)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(abs)
	if errors.Is(err, fs.ErrNotExist) || (err == nil && info.IsDir()) {
		return "", fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	if err != nil {
		return "", err
	}
	return l.extractor.Extract(ctx, abs)
}

// Save writes r to name inside the category root and returns the created event for it.
// The file appears under its final name only once it is complete.
func (l *Library) Save(category models.Category, name string, r io.Reader) (models.FileEvent, error) {
	root, ok := l.roots[category]
	if !ok {
		return models.FileEvent{}, fmt.Errorf("no root configured for category %q", category)
	}
	if name == "" || name != filepath.Base(name) || name == "." || name == ".." || strings.HasPrefix(name, ".") {
		return models.FileEvent{}, fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	if !indexer.ExtensionAllowed(filepath.Ext(name), l.extensions) {
		return models.FileEvent{}, fmt.Errorf("%w: extension %q is not watched", ErrInvalidName, filepath.Ext(name))
	}
	if err := os.MkdirAll(root, 0755); err != nil {
		return models.FileEvent{}, fmt.Errorf("create root: %w", err)
	}

	// hidden temp name so the watcher ignores it until the rename
	tmp, err := os.CreateTemp(root, ".upload-*")
	if err != nil {
		return models.FileEvent{}, fmt.Errorf("create upload: %w", err)
	}
	if _, err := io.Copy(tmp, r); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return models.FileEvent{}, fmt.Errorf("write upload: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return models.FileEvent{}, fmt.Errorf("write upload: %w", err)
	}
	dest := filepath.Join(root, name)
	if err := os.Rename(tmp.Name(), dest); err != nil {
		_ = os.Remove(tmp.Name())
		return models.FileEvent{}, fmt.Errorf("store upload: %w", err)
	}
	l.logger.Info("document saved", zap.String("path", dest), zap.Stringer("category", category))
	return models.FileEvent{Path: dest, Type: models.EventCreated, Category: category}, nil
}

// Remove deletes the file at path and returns the deleted event for it.
func (l *Library) Remove(path string) (models.FileEvent, error) {
	abs, cat, err := l.Resolve(path)
	if err != nil {
		return models.FileEvent{}, err
	}
	info, err := os.Stat(abs)
	if errors.Is(err, fs.ErrNotExist) || (err == nil && info.IsDir()) {
		return models.FileEvent{}, fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	if err != nil {
		return models.FileEvent{}, err
	}
	if err := os.Remove(abs); err != nil {
		return models.FileEvent{}, fmt.Errorf("remove %s: %w", abs, err)
	}
	l.logger.Info("document removed", zap.String("path", abs))
	return models.FileEvent{Path: abs, Type: models.EventDeleted, Category: cat}, nil
}
