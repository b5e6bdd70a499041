// Package models defines core data structures for source documents, chunks, events, and retrieval results.
package models

import (
	"fmt"
	"strings"
	"time"
)

// Category is the closed set of source categories a document can belong to.
// The zero value, CategoryAny, is only valid as a search filter and is never stored.
type Category uint8

const (
	// CategoryAny matches every category when used as a filter.
	CategoryAny Category = iota
	// CategoryInternal marks documents from the internal root.
	CategoryInternal
	// CategoryExternal marks documents from the external root.
	CategoryExternal
)

// Categories lists every storable category in a stable order.
var Categories = []Category{CategoryInternal, CategoryExternal}

// String returns the wire name of the category.
func (c Category) String() string {
	switch c {
	case CategoryInternal:
		return "internal"
	case CategoryExternal:
		return "external"
	default:
		return ""
	}
}

// Valid reports whether c is a storable category.
func (c Category) Valid() bool {
	return c == CategoryInternal || c == CategoryExternal
}

// ParseCategory parses a wire name. The empty string and "all" parse to CategoryAny.
func ParseCategory(s string) (Category, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "all", "any":
		return CategoryAny, nil
	case "internal":
		return CategoryInternal, nil
	case "external":
		return CategoryExternal, nil
	default:
		return CategoryAny, fmt.Errorf("unknown category %q (expected internal or external)", s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (c Category) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *Category) UnmarshalText(text []byte) error {
	parsed, err := ParseCategory(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// SourceDocument is the indexing state of one file, keyed by its absolute path.
type SourceDocument struct {
	Path          string    `json:"path"`
	Category      Category  `json:"category"`
	Fingerprint   string    `json:"fingerprint"`
	LastIndexedAt time.Time `json:"last_indexed_at"`
	ChunkCount    int       `json:"chunk_count"`
}

// Chunk is a contiguous text window of a source document together with its embedding.
type Chunk struct {
	ID         string    `json:"id"`
	Text       string    `json:"text"`
	SourcePath string    `json:"source_path"`
	Category   Category  `json:"source_category"`
	Index      int       `json:"chunk_index"`
	Embedding  []float32 `json:"-"`
}

// EventType is the kind of file change delivered to the ingestion coordinator.
type EventType string

const (
	EventCreated  EventType = "created"
	EventModified EventType = "modified"
	EventDeleted  EventType = "deleted"
)

// ParseEventType parses an event type name.
func ParseEventType(s string) (EventType, error) {
	switch EventType(strings.ToLower(strings.TrimSpace(s))) {
	case EventCreated:
		return EventCreated, nil
	case EventModified:
		return EventModified, nil
	case EventDeleted:
		return EventDeleted, nil
	default:
		return "", fmt.Errorf("unknown event type %q", s)
	}
}

// FileEvent is a single file change notification.
type FileEvent struct {
	Path     string    `json:"path"`
	Type     EventType `json:"type"`
	Category Category  `json:"category"`
}
