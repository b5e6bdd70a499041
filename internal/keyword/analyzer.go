// Package keyword provides term analysis backed by Bleve's standard analyzer
// (unicode tokenization, lowercasing, English stop word removal, no stemming).
package keyword

import (
	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
)

type tokenAnalyzer interface {
	Analyze(input []byte) analysis.TokenStream
}

// Analyzer turns text into index terms the same way a Bleve text field with the standard analyzer would.
// It is safe for concurrent use.
type Analyzer struct {
	analyzer tokenAnalyzer
}

// NewAnalyzer returns an analyzer using Bleve's standard analyzer.
func NewAnalyzer() *Analyzer {
	im := bleve.NewIndexMapping()
	return &Analyzer{analyzer: im.AnalyzerNamed(standard.Name)}
}

// Terms returns the analyzed terms of text in order, duplicates included.
func (a *Analyzer) Terms(text string) []string {
	if text == "" {
		return nil
	}
	stream := a.analyzer.Analyze([]byte(text))
	terms := make([]string, 0, len(stream))
	for _, tok := range stream {
		if len(tok.Term) == 0 {
			continue
		}
		terms = append(terms, string(tok.Term))
	}
	return terms
}

// TermFrequencies returns term counts for text.
func (a *Analyzer) TermFrequencies(text string) map[string]int {
	terms := a.Terms(text)
	tf := make(map[string]int, len(terms))
	for _, t := range terms {
		tf[t]++
	}
	return tf
}

// Bigrams returns adjacent term pairs joined by a space.
func Bigrams(terms []string) []string {
	if len(terms) < 2 {
		return nil
	}
	out := make([]string, 0, len(terms)-1)
	for i := 0; i+1 < len(terms); i++ {
		out = append(out, terms[i]+" "+terms[i+1])
	}
	return out
}
