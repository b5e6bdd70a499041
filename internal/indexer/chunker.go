package indexer

import (
	"strings"
	"unicode/utf8"
)

// DefaultSeparators are tried in order: paragraph, line, word, character.
var DefaultSeparators = []string{"\n\n", "\n", " ", ""}

// Span is a chunk together with its byte offsets in the source text.
type Span struct {
	Text  string
	Start int
	End   int
}

// Splitter splits text recursively on decreasing-priority separators into windows of at most
// ChunkSize characters, carrying up to Overlap characters of context between consecutive windows.
// Separators stay attached to the piece they end, so every chunk is a substring of the input.
type Splitter struct {
	ChunkSize  int
	Overlap    int
	Separators []string
}

// NewSplitter creates a splitter with the default separators. Overlap is clamped below chunkSize.
func NewSplitter(chunkSize, overlap int) *Splitter {
	if chunkSize <= 0 {
		chunkSize = 1
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= chunkSize {
		overlap = chunkSize - 1
	}
	return &Splitter{ChunkSize: chunkSize, Overlap: overlap, Separators: DefaultSeparators}
}

// Split is a convenience for NewSplitter(chunkSize, overlap).Split(text).
func Split(text string, chunkSize, overlap int) []string {
	return NewSplitter(chunkSize, overlap).Split(text)
}

// Split returns the chunk texts. Empty or whitespace-only input yields no chunks.
func (s *Splitter) Split(text string) []string {
	spans := s.SplitSpans(text)
	if len(spans) == 0 {
		return nil
	}
	out := make([]string, len(spans))
	for i, sp := range spans {
		out[i] = sp.Text
	}
	return out
}

// SplitSpans returns the chunks with their offsets. Whitespace-only chunks are dropped.
func (s *Splitter) SplitSpans(text string) []Span {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	var spans []Span
	for _, sp := range s.split(text, span{0, len(text)}, s.Separators) {
		t := text[sp.start:sp.end]
		if strings.TrimSpace(t) == "" {
			continue
		}
		spans = append(spans, Span{Text: t, Start: sp.start, End: sp.end})
	}
	return spans
}

type span struct{ start, end int }

func (s *Splitter) length(text string, sp span) int {
	return utf8.RuneCountInString(text[sp.start:sp.end])
}

func (s *Splitter) split(text string, region span, separators []string) []span {
	sep, rest := "", []string(nil)
	for i, candidate := range separators {
		if candidate == "" || strings.Contains(text[region.start:region.end], candidate) {
			sep, rest = candidate, separators[i+1:]
			break
		}
	}

	var out, good []span
	for _, piece := range splitKeep(text, region, sep) {
		if s.length(text, piece) <= s.ChunkSize {
			good = append(good, piece)
			continue
		}
		if len(good) > 0 {
			out = append(out, s.merge(text, good)...)
			good = nil
		}
		if len(rest) == 0 {
			out = append(out, piece)
			continue
		}
		out = append(out, s.split(text, piece, rest)...)
	}
	if len(good) > 0 {
		out = append(out, s.merge(text, good)...)
	}
	return out
}

// merge packs consecutive pieces into windows, keeping a tail of at most Overlap characters
// from the previous window at the start of the next one.
func (s *Splitter) merge(text string, pieces []span) []span {
	var out []span
	var window []span
	total := 0
	for _, p := range pieces {
		l := s.length(text, p)
		if total+l > s.ChunkSize && len(window) > 0 {
			out = append(out, span{window[0].start, window[len(window)-1].end})
			for len(window) > 0 && (total > s.Overlap || total+l > s.ChunkSize) {
				total -= s.length(text, window[0])
				window = window[1:]
			}
		}
		window = append(window, p)
		total += l
	}
	if len(window) > 0 {
		out = append(out, span{window[0].start, window[len(window)-1].end})
	}
	return out
}

// splitKeep cuts region after every occurrence of sep. An empty sep cuts between runes.
func splitKeep(text string, region span, sep string) []span {
	var out []span
	if sep == "" {
		for i := region.start; i < region.end; {
			_, size := utf8.DecodeRuneInString(text[i:region.end])
			out = append(out, span{i, i + size})
			i += size
		}
		return out
	}
	start := region.start
	for start < region.end {
		idx := strings.Index(text[start:region.end], sep)
		if idx < 0 {
			out = append(out, span{start, region.end})
			break
		}
		end := start + idx + len(sep)
		out = append(out, span{start, end})
		start = end
	}
	return out
}
