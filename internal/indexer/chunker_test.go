package indexer

import (
	"strings"
	"testing"
	"unicode/utf8"
)

// reconstruct joins the non-overlapping parts of spans. Gaps may only hold whitespace
// (whitespace-only chunks are dropped); anything else fails the reconstruction.
func reconstruct(text string, spans []Span) string {
	var b strings.Builder
	prevEnd := 0
	for _, sp := range spans {
		start := sp.Start
		if start > prevEnd {
			gap := text[prevEnd:start]
			if strings.TrimSpace(gap) != "" {
				return ""
			}
			b.WriteString(gap)
		}
		if start < prevEnd {
			start = prevEnd
		}
		b.WriteString(text[start:sp.End])
		prevEnd = sp.End
	}
	if tail := text[prevEnd:]; strings.TrimSpace(tail) == "" {
		b.WriteString(tail)
	}
	return b.String()
}

func TestSplit_Empty(t *testing.T) {
	for _, in := range []string{"", "   \n\t  ", "\n\n\n"} {
		if chunks := Split(in, 10, 2); chunks != nil {
			t.Errorf("Split(%q) = %v, want nil", in, chunks)
		}
	}
}

func TestSplit_ShortTextIsOneChunk(t *testing.T) {
	chunks := Split("Revenue was $5.2M in 2024.", 1200, 250)
	if len(chunks) != 1 || chunks[0] != "Revenue was $5.2M in 2024." {
		t.Errorf("chunks = %q", chunks)
	}
}

func TestSplit_PrefersParagraphs(t *testing.T) {
	text := "First paragraph here.\n\nSecond paragraph here.\n\nThird one."
	chunks := Split(text, 30, 0)
	want := []string{"First paragraph here.\n\n", "Second paragraph here.\n\n", "Third one."}
	if len(chunks) != len(want) {
		t.Fatalf("chunks = %q", chunks)
	}
	for i := range want {
		if chunks[i] != want[i] {
			t.Errorf("chunk %d = %q, want %q", i, chunks[i], want[i])
		}
	}
}

func TestSplit_SizeAndOverlap(t *testing.T) {
	text := strings.Repeat("alpha beta gamma delta epsilon zeta eta theta. ", 40)
	s := NewSplitter(100, 20)
	spans := s.SplitSpans(text)
	if len(spans) < 2 {
		t.Fatalf("expected several chunks, got %d", len(spans))
	}
	for i, sp := range spans {
		if n := utf8.RuneCountInString(sp.Text); n > 100 {
			t.Errorf("chunk %d has %d chars", i, n)
		}
		if text[sp.Start:sp.End] != sp.Text {
			t.Errorf("chunk %d is not a substring at its offsets", i)
		}
		if i > 0 {
			prev := spans[i-1]
			if sp.Start > prev.End && strings.TrimSpace(text[prev.End:sp.Start]) != "" {
				t.Errorf("content gap between chunk %d and %d", i-1, i)
			}
			if overlap := prev.End - sp.Start; overlap > 20 {
				t.Errorf("overlap %d between chunk %d and %d exceeds 20", overlap, i-1, i)
			}
			if sp.Start <= prev.Start {
				t.Errorf("chunk %d does not advance", i)
			}
		}
	}
	if spans[1].Start >= spans[0].End {
		t.Error("expected consecutive chunks to share context")
	}
}

func TestSplit_RoundTrip(t *testing.T) {
	texts := []string{
		strings.Repeat("The quick brown fox jumps over the lazy dog.\n", 30),
		"Para one is short.\n\n" + strings.Repeat("word ", 300) + "\n\nclosing line\nwith two lines",
		strings.Repeat("x", 537),
		strings.Repeat("héllo wörld ", 90),
	}
	for i, text := range texts {
		for _, cfg := range [][2]int{{50, 0}, {80, 15}, {200, 60}} {
			spans := NewSplitter(cfg[0], cfg[1]).SplitSpans(text)
			if got := reconstruct(text, spans); got != text {
				t.Errorf("text %d size=%d overlap=%d: reconstruction mismatch", i, cfg[0], cfg[1])
			}
		}
	}
}

func TestSplit_LongWordFallsBackToCharacters(t *testing.T) {
	text := strings.Repeat("z", 25)
	chunks := Split(text, 10, 3)
	for i, c := range chunks[:len(chunks)-1] {
		if len(c) != 10 {
			t.Errorf("chunk %d len = %d", i, len(c))
		}
	}
	if chunks[1][:3] != chunks[0][7:] {
		t.Errorf("expected 3-char overlap, got %q then %q", chunks[0], chunks[1])
	}
}

func TestSplit_Deterministic(t *testing.T) {
	text := strings.Repeat("lorem ipsum dolor sit amet\n", 50)
	a := Split(text, 64, 16)
	b := Split(text, 64, 16)
	if strings.Join(a, "|") != strings.Join(b, "|") {
		t.Error("split should be deterministic")
	}
}

func TestNewSplitter_ClampsOverlap(t *testing.T) {
	s := NewSplitter(10, 50)
	if s.Overlap != 9 {
		t.Errorf("Overlap = %d, want 9", s.Overlap)
	}
}

func TestNormalize(t *testing.T) {
	in := "  Title  \r\n\r\n\r\n\r\nBody line   \nnext\t\n"
	want := "Title\n\nBody line\nnext"
	if got := Normalize(in); got != want {
		t.Errorf("Normalize = %q, want %q", got, want)
	}
}
