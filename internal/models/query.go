package models

import "fmt"

// QueryRequest is a retrieval request with an optional category filter.
type QueryRequest struct {
	Query    string   `json:"query"`
	Category Category `json:"category,omitempty"`
	// TimeoutMS overrides the configured query timeout when positive.
	TimeoutMS int `json:"timeout_ms,omitempty"`
}

// Validate ensures the request has a non-empty query and a usable filter.
func (q *QueryRequest) Validate() error {
	if q.Query == "" {
		return fmt.Errorf("query cannot be empty")
	}
	if q.Category != CategoryAny && !q.Category.Valid() {
		return fmt.Errorf("invalid category filter")
	}
	if q.TimeoutMS < 0 {
		q.TimeoutMS = 0
	}
	return nil
}
