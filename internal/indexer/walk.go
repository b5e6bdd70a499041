package indexer

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/hyperjump/kensaku/internal/models"
)

// Summary counts event outcomes over a batch of files.
type Summary struct {
	Indexed int `json:"indexed"`
	Skipped int `json:"skipped"`
	Cleared int `json:"cleared"`
	Deleted int `json:"deleted"`
	Failed  int `json:"failed"`
}

// Add records one outcome; a non-nil err counts as a failure.
func (s *Summary) Add(o Outcome, err error) {
	if err != nil {
		s.Failed++
		return
	}
	switch o {
	case OutcomeIndexed:
		s.Indexed++
	case OutcomeSkipped:
		s.Skipped++
	case OutcomeCleared:
		s.Cleared++
	case OutcomeDeleted:
		s.Deleted++
	}
}

// Total returns the number of files seen.
func (s Summary) Total() int {
	return s.Indexed + s.Skipped + s.Cleared + s.Deleted + s.Failed
}

// ExtensionAllowed reports whether ext is in allowed, ignoring case and the leading dot.
// An empty allow list accepts everything.
func ExtensionAllowed(ext string, allowed []string) bool {
	if len(allowed) == 0 {
		return true
	}
	extNorm := strings.ToLower(strings.TrimPrefix(ext, "."))
	for _, a := range allowed {
		if strings.ToLower(strings.TrimPrefix(a, ".")) == extNorm {
			return true
		}
	}
	return false
}

// WalkFiles calls fn for every regular file under root whose extension is allowed.
// Symlinks are resolved; hidden files and directories are skipped.
func WalkFiles(ctx context.Context, root string, allowedExts []string, fn func(path string) error) error {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return fmt.Errorf("absolute path: %w", err)
	}
	info, err := os.Stat(absRoot)
	if err != nil {
		return fmt.Errorf("stat %s: %w", absRoot, err)
	}
	if !info.IsDir() {
		if !info.Mode().IsRegular() {
			return fmt.Errorf("not a regular file: %s", absRoot)
		}
		if !ExtensionAllowed(filepath.Ext(absRoot), allowedExts) {
			return fmt.Errorf("extension %q not in allowed list", filepath.Ext(absRoot))
		}
		return fn(absRoot)
	}
	return filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if path != absRoot && strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !ExtensionAllowed(filepath.Ext(path), allowedExts) {
			return nil
		}
		finfo, statErr := os.Stat(path)
		if statErr != nil || !finfo.Mode().IsRegular() {
			return nil
		}
		return fn(path)
	})
}

// IndexPath ingests a file or every allowed file under a directory, in order.
// Per-document failures are counted in the summary and do not stop the walk.
func (c *Coordinator) IndexPath(ctx context.Context, root string, category models.Category, allowedExts []string, opts ...EventOption) (Summary, error) {
	var sum Summary
	err := WalkFiles(ctx, root, allowedExts, func(path string) error {
		outcome, err := c.OnFileEvent(ctx, models.FileEvent{Path: path, Type: models.EventCreated, Category: category}, opts...)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		sum.Add(outcome, err)
		if err == nil {
			c.logger.Debug("file processed", zap.String("path", path), zap.Stringer("outcome", outcome))
		}
		return nil
	})
	return sum, err
}
