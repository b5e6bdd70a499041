package embedding

import (
	"testing"
)

func TestSimpleTokenizer_Tokenize(t *testing.T) {
	tok := &SimpleTokenizer{}
	ids, attn, types := tok.Tokenize("hello world", 10)
	if len(ids) != 10 {
		t.Errorf("len(ids)=%d", len(ids))
	}
	if ids[0] != tokenCLS {
		t.Errorf("expected CLS 101, got %d", ids[0])
	}
	if ids[3] != tokenSEP {
		t.Errorf("expected SEP at 3, got %d", ids[3])
	}
	if attn[3] != 1 || attn[4] != 0 {
		t.Errorf("attention = %v", attn)
	}
	for _, ty := range types {
		if ty != 0 {
			t.Fatalf("single segment should have type 0, got %v", types)
		}
	}
}

func TestSimpleTokenizer_Truncates(t *testing.T) {
	tok := &SimpleTokenizer{}
	ids, attn, _ := tok.Tokenize("a b c d e f g h i j k l", 5)
	if ids[4] != tokenSEP || attn[4] != 1 {
		t.Errorf("last position should be SEP, got ids=%v", ids)
	}
}

func TestSimpleTokenizer_TokenizePair(t *testing.T) {
	tok := &SimpleTokenizer{}
	ids, attn, types := tok.TokenizePair("revenue", "revenue was high", 16)
	// [CLS] revenue [SEP] revenue was high [SEP]
	if ids[0] != tokenCLS || ids[2] != tokenSEP || ids[6] != tokenSEP {
		t.Errorf("ids = %v", ids)
	}
	if types[1] != 0 || types[3] != 1 || types[6] != 1 {
		t.Errorf("types = %v", types)
	}
	if ids[1] != ids[3] {
		t.Error("same word should get the same id in both segments")
	}
	if attn[7] != 0 {
		t.Error("padding should be masked")
	}
}

func TestSplitWords(t *testing.T) {
	words := SplitWords("  a  B  c  ")
	if len(words) != 3 || words[1] != "b" {
		t.Errorf("expected 3 lowercased words, got %v", words)
	}
	if SplitWords("") != nil {
		t.Error("empty string should return nil")
	}
}

func TestHashString(t *testing.T) {
	h := HashString("abc")
	if h <= 0 {
		t.Error("hash should be positive")
	}
	if HashString("abc") != HashString("abc") {
		t.Error("hash should be deterministic")
	}
}
