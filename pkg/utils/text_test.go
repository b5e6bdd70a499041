package utils

import (
	"math"
	"testing"
)

func TestTruncate(t *testing.T) {
	if Truncate("hello", 10) != "hello" {
		t.Error("short string unchanged")
	}
	if Truncate("hello world", 5) != "hello..." {
		t.Errorf("got %s", Truncate("hello world", 5))
	}
	if Truncate("x", 0) != "x" {
		t.Error("maxLen 0 returns as-is")
	}
	if got := Truncate("café au lait", 4); got != "café..." {
		t.Errorf("rune-aware truncate got %q", got)
	}
}

func TestSourceLabel(t *testing.T) {
	if got := SourceLabel("/data/internal/report.pdf"); got != "report.pdf" {
		t.Errorf("got %q", got)
	}
	if got := SourceLabel(""); got != "" {
		t.Errorf("got %q", got)
	}
}

func TestNormalizeL2(t *testing.T) {
	v := []float32{3, 4}
	NormalizeL2(v)
	if math.Abs(float64(v[0])-0.6) > 1e-6 || math.Abs(float64(v[1])-0.8) > 1e-6 {
		t.Errorf("got %v", v)
	}
	zero := []float32{0, 0}
	NormalizeL2(zero)
	if zero[0] != 0 || zero[1] != 0 {
		t.Errorf("zero vector changed: %v", zero)
	}
}
