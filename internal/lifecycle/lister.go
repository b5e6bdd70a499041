package lifecycle

import (
	"context"
	"errors"
	"io/fs"
	"os"

	"github.com/hyperjump/kensaku/internal/config"
	"github.com/hyperjump/kensaku/internal/indexer"
	"github.com/hyperjump/kensaku/internal/models"
)

// Entry is one file found under a category root.
type Entry struct {
	Path     string
	Category models.Category
}

// Lister enumerates every current source file.
type Lister interface {
	List(ctx context.Context) ([]Entry, error)
}

// DirLister lists files under the category roots, filtered by extension.
type DirLister struct {
	Roots      map[models.Category]string
	Extensions []string
}

// NewDirLister returns a lister over the configured roots.
func NewDirLister(cfg *config.Config) *DirLister {
	return &DirLister{
		Roots: map[models.Category]string{
			models.CategoryInternal: cfg.Sources.InternalRoot,
			models.CategoryExternal: cfg.Sources.ExternalRoot,
		},
		Extensions: cfg.Sources.Extensions,
	}
}

// List walks the roots in category order. A missing root lists nothing.
func (l *DirLister) List(ctx context.Context) ([]Entry, error) {
	var out []Entry
	for _, cat := range models.Categories {
		root := l.Roots[cat]
		if root == "" {
			continue
		}
		if _, err := os.Stat(root); errors.Is(err, fs.ErrNotExist) {
			continue
		}
		err := indexer.WalkFiles(ctx, root, l.Extensions, func(path string) error {
			out = append(out, Entry{Path: path, Category: cat})
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}
