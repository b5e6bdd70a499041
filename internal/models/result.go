package models

import "time"

// SearchHit is a nearest-neighbour candidate. Distance is cosine distance (smaller is closer).
type SearchHit struct {
	Chunk    Chunk   `json:"chunk"`
	Distance float64 `json:"distance"`
}

// Passage is one ranked passage in a retrieval result.
type Passage struct {
	Text        string   `json:"text"`
	SourcePath  string   `json:"source_path"`
	Category    Category `json:"source_category"`
	ChunkIndex  int      `json:"chunk_index"`
	Distance    float64  `json:"distance"`
	RerankScore float64  `json:"rerank_score"`
}

// RetrievalResult is the cited context produced for a query. It is never persisted.
type RetrievalResult struct {
	Context  string    `json:"context"`
	Sources  []string  `json:"sources"`
	Passages []Passage `json:"passages,omitempty"`
}

// QueryStatus distinguishes a real answer from the no-documents signal on the wire.
type QueryStatus string

const (
	QueryStatusOK          QueryStatus = "ok"
	QueryStatusNoDocuments QueryStatus = "no_documents_indexed"
)

// QueryResponse is the Query API response body.
type QueryResponse struct {
	Status    QueryStatus `json:"status"`
	Context   string      `json:"context,omitempty"`
	Sources   []string    `json:"sources,omitempty"`
	Passages  []Passage   `json:"passages,omitempty"`
	QueryTime int64       `json:"query_time_ms"`
	Query     string      `json:"query"`
}

// Stats summarizes the collection for the Admin API.
type Stats struct {
	ChunkCount     int64                `json:"chunk_count"`
	Documents      int                  `json:"documents"`
	LastIndexTimes map[string]time.Time `json:"last_index_times"`
	DiskUsageBytes int64                `json:"disk_usage_bytes,omitempty"`
	ResetRunning   bool                 `json:"reset_running"`
}
