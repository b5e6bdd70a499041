// Package extract provides text extraction from the supported document formats.
package extract

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Kind classifies an extraction failure.
type Kind int

const (
	// KindUnsupported means the file extension has no extractor.
	KindUnsupported Kind = iota + 1
	// KindCorrupt means the file could not be read or parsed.
	KindCorrupt
	// KindOcrFailed means the file is an image and no text could be recognized.
	KindOcrFailed
)

func (k Kind) String() string {
	switch k {
	case KindUnsupported:
		return "unsupported"
	case KindCorrupt:
		return "corrupt"
	case KindOcrFailed:
		return "ocr_failed"
	default:
		return "unknown"
	}
}

// Error is returned for every extraction failure.
type Error struct {
	Kind Kind
	Path string
	Err  error
}

func (e *Error) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("extract: %s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("extract %s: %s: %v", e.Path, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the failure kind of err, if it is an extraction error.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}

func corrupt(format string, args ...any) error {
	return &Error{Kind: KindCorrupt, Err: fmt.Errorf(format, args...)}
}

// imageExtensions are accepted by the watcher but need OCR, which is not linked in.
var imageExtensions = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".tiff": true, ".tif": true, ".bmp": true, ".gif": true,
}

type extractFunc func(ctx context.Context, content []byte) (string, error)

var extractors = map[string]extractFunc{
	".txt":  extractPlain,
	".md":   extractPlain,
	".rst":  extractPlain,
	".csv":  extractPlain,
	".json": extractPlain,
	".html": extractHTML,
	".htm":  extractHTML,
	".pdf":  extractPDF,
	".docx": extractDOCX,
	".pptx": extractPPTX,
	".xlsx": extractXLSX,
	".odt":  extractODT,
	".odp":  extractODP,
	".ods":  extractODS,
}

// SupportedExtensions returns the extensions Extract can read, sorted.
func SupportedExtensions() []string {
	out := make([]string, 0, len(extractors))
	for ext := range extractors {
		out = append(out, ext)
	}
	sort.Strings(out)
	return out
}

// Extractor extracts plain text from document files.
type Extractor struct{}

// NewExtractor returns a new Extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// Extract reads the file at path and returns its text content.
// Failures are *Error; a cancelled ctx returns ctx.Err().
func (e *Extractor) Extract(ctx context.Context, path string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	ext := strings.ToLower(filepath.Ext(path))
	if _, ok := extractors[ext]; !ok && !imageExtensions[ext] {
		return "", &Error{Kind: KindUnsupported, Path: path, Err: fmt.Errorf("no extractor for %q", ext)}
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return "", &Error{Kind: KindCorrupt, Path: path, Err: err}
	}
	text, err := e.ExtractBytes(ctx, content, ext)
	var xerr *Error
	if errors.As(err, &xerr) && xerr.Path == "" {
		xerr.Path = path
	}
	return text, err
}

// ExtractBytes extracts text from content based on the given extension.
// ext should include the leading dot (e.g. ".pdf").
func (e *Extractor) ExtractBytes(ctx context.Context, content []byte, ext string) (string, error) {
	ext = strings.ToLower(ext)
	if imageExtensions[ext] {
		return "", &Error{Kind: KindOcrFailed, Err: fmt.Errorf("no OCR engine available for %s images", ext)}
	}
	fn, ok := extractors[ext]
	if !ok {
		return "", &Error{Kind: KindUnsupported, Err: fmt.Errorf("no extractor for %q", ext)}
	}
	text, err := fn(ctx, content)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		if _, typed := KindOf(err); !typed {
			err = &Error{Kind: KindCorrupt, Err: err}
		}
		return "", err
	}
	return text, nil
}
