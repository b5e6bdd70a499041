package vector

import (
	"math"
	"testing"
)

func TestInnerProduct(t *testing.T) {
	if got := InnerProduct([]float32{1, 2}, []float32{3, 4}); got != 11 {
		t.Errorf("InnerProduct = %v", got)
	}
	if got := InnerProduct([]float32{1}, []float32{1, 2}); got != 0 {
		t.Errorf("mismatched lengths should give 0, got %v", got)
	}
}

func TestCosineDistance(t *testing.T) {
	if got := CosineDistance([]float32{1, 0}, []float32{1, 0}); got != 0 {
		t.Errorf("identical vectors distance = %v", got)
	}
	if got := CosineDistance([]float32{1, 0}, []float32{-1, 0}); got != 2 {
		t.Errorf("opposite vectors distance = %v", got)
	}
}

func TestEncodeDecode(t *testing.T) {
	in := []float32{0.5, -1.25, float32(math.Pi)}
	out, err := Decode(Encode(in))
	if err != nil {
		t.Fatal(err)
	}
	for i := range in {
		if in[i] != out[i] {
			t.Errorf("index %d: %v != %v", i, in[i], out[i])
		}
	}
	if _, err := Decode([]byte{1, 2, 3}); err == nil {
		t.Error("expected error for truncated blob")
	}
}
