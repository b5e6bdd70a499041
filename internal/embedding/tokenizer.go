package embedding

import (
	"hash/fnv"
	"strings"
)

// BERT special token ids and vocabulary size used by SimpleTokenizer.
const (
	tokenCLS  = 101
	tokenSEP  = 102
	vocabSize = 30000
)

// Tokenizer produces token IDs for BERT-style models (input_ids, attention_mask, token_type_ids).
type Tokenizer interface {
	Tokenize(text string, maxTokens int) (inputIDs, attentionMask, tokenTypeIDs []int64)
	// TokenizePair encodes "[CLS] a [SEP] b [SEP]" with token type 1 for the second segment.
	TokenizePair(a, b string, maxTokens int) (inputIDs, attentionMask, tokenTypeIDs []int64)
}

// SimpleTokenizer is a lowercased word-split tokenizer with hash-based token IDs (fallback when no vocab is shipped).
type SimpleTokenizer struct{}

// Tokenize splits text into words and produces padded token IDs up to maxTokens.
func (t *SimpleTokenizer) Tokenize(text string, maxTokens int) (inputIDs, attentionMask, tokenTypeIDs []int64) {
	return t.encode(SplitWords(text), nil, maxTokens)
}

// TokenizePair encodes a query/passage pair for cross-encoders. The second segment is truncated first.
func (t *SimpleTokenizer) TokenizePair(a, b string, maxTokens int) (inputIDs, attentionMask, tokenTypeIDs []int64) {
	return t.encode(SplitWords(a), SplitWords(b), maxTokens)
}

func (t *SimpleTokenizer) encode(first, second []string, maxTokens int) (inputIDs, attentionMask, tokenTypeIDs []int64) {
	if maxTokens <= 0 {
		maxTokens = 256
	}
	inputIDs = make([]int64, maxTokens)
	attentionMask = make([]int64, maxTokens)
	tokenTypeIDs = make([]int64, maxTokens)

	pos := 0
	put := func(id int64, segment int64) bool {
		if pos >= maxTokens {
			return false
		}
		inputIDs[pos] = id
		attentionMask[pos] = 1
		tokenTypeIDs[pos] = segment
		pos++
		return true
	}

	// Reserve room for the closing [SEP] of each segment.
	reserve := 1
	if second != nil {
		reserve = 2
	}
	put(tokenCLS, 0)
	for _, w := range first {
		if pos >= maxTokens-reserve {
			break
		}
		put(wordID(w), 0)
	}
	put(tokenSEP, 0)
	if second == nil {
		return inputIDs, attentionMask, tokenTypeIDs
	}
	for _, w := range second {
		if pos >= maxTokens-1 {
			break
		}
		put(wordID(w), 1)
	}
	put(tokenSEP, 1)
	return inputIDs, attentionMask, tokenTypeIDs
}

func wordID(w string) int64 {
	// Keep ids clear of the special token range.
	return int64(1000 + HashString(w)%(vocabSize-1000))
}

// SplitWords lowercases text and splits it on whitespace.
func SplitWords(text string) []string {
	words := strings.Fields(strings.ToLower(text))
	if len(words) == 0 {
		return nil
	}
	return words
}

// HashString returns a deterministic non-negative hash of s.
func HashString(s string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(s))
	return int(h.Sum32() & 0x7fffffff)
}
