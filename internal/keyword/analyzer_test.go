package keyword

import (
	"reflect"
	"testing"
)

func TestAnalyzer_Terms(t *testing.T) {
	a := NewAnalyzer()
	got := a.Terms("What was the Revenue?")
	want := []string{"revenue"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Terms = %v, want %v", got, want)
	}
	if terms := a.Terms(""); len(terms) != 0 {
		t.Errorf("empty text produced %v", terms)
	}
}

func TestAnalyzer_NoStemming(t *testing.T) {
	a := NewAnalyzer()
	got := a.Terms("Bayesian bayes")
	if len(got) != 2 || got[0] != "bayesian" || got[1] != "bayes" {
		t.Errorf("Terms = %v", got)
	}
}

func TestAnalyzer_TermFrequencies(t *testing.T) {
	a := NewAnalyzer()
	tf := a.TermFrequencies("budget report budget")
	if tf["budget"] != 2 || tf["report"] != 1 {
		t.Errorf("tf = %v", tf)
	}
}

func TestBigrams(t *testing.T) {
	if got := Bigrams([]string{"a"}); got != nil {
		t.Errorf("single term bigrams = %v", got)
	}
	got := Bigrams([]string{"annual", "budget", "report"})
	want := []string{"annual budget", "budget report"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Bigrams = %v, want %v", got, want)
	}
}

func TestAnalyzer_Concurrent(t *testing.T) {
	a := NewAnalyzer()
	done := make(chan struct{})
	for i := 0; i < 8; i++ {
		go func() {
			defer func() { done <- struct{}{} }()
			for j := 0; j < 50; j++ {
				if len(a.Terms("quarterly revenue grew strongly")) != 4 {
					t.Error("unexpected term count")
					return
				}
			}
		}()
	}
	for i := 0; i < 8; i++ {
		<-done
	}
}
