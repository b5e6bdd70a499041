package rerank

import (
	"context"
	"math"

	"github.com/hyperjump/kensaku/internal/keyword"
)

// BM25 parameters.
const (
	bm25K1 = 1.2
	bm25B  = 0.75
)

// LexicalReranker scores passages with BM25 over the candidate set, using the candidates
// themselves as the corpus for document frequencies. Scores are in [0,1).
type LexicalReranker struct {
	analyzer *keyword.Analyzer
}

// NewLexicalReranker returns a BM25 reranker using the standard analyzer.
func NewLexicalReranker() *LexicalReranker {
	return &LexicalReranker{analyzer: keyword.NewAnalyzer()}
}

// Score returns a squashed BM25 score per passage.
func (r *LexicalReranker) Score(ctx context.Context, query string, passages []string) ([]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	scores := make([]float64, len(passages))
	qTerms := unique(r.analyzer.Terms(query))
	if len(qTerms) == 0 || len(passages) == 0 {
		return scores, nil
	}

	tfs := make([]map[string]int, len(passages))
	lengths := make([]int, len(passages))
	df := make(map[string]int, len(qTerms))
	var totalLen int
	for i, p := range passages {
		tfs[i] = r.analyzer.TermFrequencies(p)
		for _, n := range tfs[i] {
			lengths[i] += n
		}
		totalLen += lengths[i]
		for _, t := range qTerms {
			if tfs[i][t] > 0 {
				df[t]++
			}
		}
	}
	avgLen := float64(totalLen) / float64(len(passages))
	if avgLen == 0 {
		avgLen = 1
	}
	n := float64(len(passages))
	for i := range passages {
		var s float64
		for _, t := range qTerms {
			tf := float64(tfs[i][t])
			if tf == 0 {
				continue
			}
			idf := math.Log(1 + (n-float64(df[t])+0.5)/(float64(df[t])+0.5))
			norm := tf * (bm25K1 + 1) / (tf + bm25K1*(1-bm25B+bm25B*float64(lengths[i])/avgLen))
			s += idf * norm
		}
		scores[i] = s / (1 + s)
	}
	return scores, nil
}

// Close is a no-op for LexicalReranker.
func (r *LexicalReranker) Close() error {
	return nil
}

func unique(terms []string) []string {
	seen := make(map[string]struct{}, len(terms))
	out := terms[:0:0]
	for _, t := range terms {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
