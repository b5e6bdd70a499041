// Package cli provides output formatting and an HTTP client for the kensaku CLI.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/hyperjump/kensaku/internal/lifecycle"
	"github.com/hyperjump/kensaku/internal/models"
	"github.com/hyperjump/kensaku/pkg/utils"
)

// OutputFormat is the format for command output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// ParseOutputFormat validates a --output flag value.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch OutputFormat(strings.ToLower(s)) {
	case "", OutputText:
		return OutputText, nil
	case OutputJSON:
		return OutputJSON, nil
	default:
		return "", fmt.Errorf("unknown output format %q; use text or json", s)
	}
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// WriteQueryResponse writes a query response to w in the given format.
func WriteQueryResponse(w io.Writer, resp *models.QueryResponse, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, resp)
	}
	if resp.Status == models.QueryStatusNoDocuments {
		fmt.Fprintf(w, "No documents indexed for this query (%dms).\n", resp.QueryTime)
		return nil
	}
	fmt.Fprintf(w, "\n%d passage(s) from %d source(s) in %dms\n\n", len(resp.Passages), len(resp.Sources), resp.QueryTime)
	for i, p := range resp.Passages {
		fmt.Fprintf(w, "─────────────────────────────────────────────────────────\n")
		fmt.Fprintf(w, "[Source %d] %s (%s) | distance %.4f | rerank %.4f\n",
			i+1, utils.SourceLabel(p.SourcePath), p.Category, p.Distance, p.RerankScore)
		fmt.Fprintf(w, "\n%s\n\n", utils.Truncate(strings.TrimSpace(p.Text), 400))
	}
	if len(resp.Passages) == 0 && resp.Context != "" {
		fmt.Fprintf(w, "%s\n\n", resp.Context)
	}
	if len(resp.Sources) > 0 {
		fmt.Fprintf(w, "Sources: %s\n", strings.Join(resp.Sources, ", "))
	}
	return nil
}

// StatsView is the stats payload shown by the stats command.
type StatsView struct {
	*models.Stats
	LastReset *lifecycle.Report `json:"last_reset,omitempty"`
}

// WriteStats writes collection stats to w in the given format.
func WriteStats(w io.Writer, view *StatsView, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, view)
	}
	fmt.Fprintf(w, "documents:          %d   # indexed source files\n", view.Documents)
	fmt.Fprintf(w, "chunks:             %d   # passages in the collection\n", view.ChunkCount)
	fmt.Fprintf(w, "disk_usage_bytes:   %d   # collection directory on disk\n", view.DiskUsageBytes)
	fmt.Fprintf(w, "reset_running:      %t\n", view.ResetRunning)
	if r := view.LastReset; r != nil {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "# last reset")
		fmt.Fprintf(w, "mode:               %s\n", r.Mode)
		fmt.Fprintf(w, "finished_at:        %s\n", r.FinishedAt.Format("2006-01-02 15:04:05"))
		fmt.Fprintf(w, "indexed/failed:     %d/%d\n", r.Summary.Indexed, r.Summary.Failed)
		if r.Error != "" {
			fmt.Fprintf(w, "error:              %s\n", r.Error)
		}
	}
	if len(view.LastIndexTimes) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "# last indexed")
		paths := make([]string, 0, len(view.LastIndexTimes))
		for p := range view.LastIndexTimes {
			paths = append(paths, p)
		}
		sort.Strings(paths)
		for _, p := range paths {
			fmt.Fprintf(w, "%s  %s\n", view.LastIndexTimes[p].Format("2006-01-02 15:04:05"), p)
		}
	}
	return nil
}

// WriteDocuments writes the indexed sources to w in the given format.
func WriteDocuments(w io.Writer, docs []models.SourceDocument, format OutputFormat) error {
	if format == OutputJSON {
		if docs == nil {
			docs = []models.SourceDocument{}
		}
		return writeJSON(w, docs)
	}
	if len(docs) == 0 {
		fmt.Fprintln(w, "No documents indexed.")
		return nil
	}
	for _, d := range docs {
		fmt.Fprintf(w, "%-8s  %4d chunks  %s  %s\n", d.Category, d.ChunkCount, d.LastIndexedAt.Format("2006-01-02 15:04:05"), d.Path)
	}
	fmt.Fprintf(w, "%d document(s)\n", len(docs))
	return nil
}
