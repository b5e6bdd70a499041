package cli

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hyperjump/kensaku/internal/lifecycle"
	"github.com/hyperjump/kensaku/internal/models"
)

func TestClient(t *testing.T) {
	var gotQuery models.QueryRequest
	var gotMode string
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/query", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&gotQuery)
		_ = json.NewEncoder(w).Encode(models.QueryResponse{Status: models.QueryStatusOK, Sources: []string{"a.txt"}})
	})
	mux.HandleFunc("/api/v1/admin/reset", func(w http.ResponseWriter, r *http.Request) {
		gotMode = r.URL.Query().Get("mode")
		if gotMode == "hard" {
			w.WriteHeader(http.StatusConflict)
			_, _ = w.Write([]byte(`{"error":"reset already in progress"}`))
			return
		}
		w.WriteHeader(http.StatusAccepted)
	})
	mux.HandleFunc("/api/v1/admin/stats", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"chunk_count":5,"documents":1,"last_reset":{"mode":"soft"}}`))
	})
	mux.HandleFunc("/api/v1/documents", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"documents":[{"path":"/kb/internal/a.txt","category":"internal","chunk_count":3}],"count":1}`))
	})
	ts := httptest.NewServer(mux)
	defer ts.Close()

	c := NewClient(ts.URL + "/")
	ctx := context.Background()

	resp, err := c.Query(ctx, &models.QueryRequest{Query: "hello", Category: models.CategoryExternal})
	if err != nil {
		t.Fatal(err)
	}
	if gotQuery.Query != "hello" || gotQuery.Category != models.CategoryExternal {
		t.Errorf("server got %+v", gotQuery)
	}
	if len(resp.Sources) != 1 || resp.Sources[0] != "a.txt" {
		t.Errorf("resp = %+v", resp)
	}

	if err := c.Reset(ctx, lifecycle.ModeSoft); err != nil {
		t.Fatal(err)
	}
	if gotMode != "soft" {
		t.Errorf("mode = %q", gotMode)
	}
	err = c.Reset(ctx, lifecycle.ModeHard)
	if err == nil || !strings.Contains(err.Error(), "409") {
		t.Errorf("expected 409 error, got %v", err)
	}

	stats, err := c.Stats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if stats.ChunkCount != 5 || stats.Documents != 1 || stats.LastReset == nil || stats.LastReset.Mode != lifecycle.ModeSoft {
		t.Errorf("stats = %+v", stats)
	}

	docs, err := c.Documents(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(docs) != 1 || docs[0].Category != models.CategoryInternal || docs[0].ChunkCount != 3 {
		t.Errorf("documents = %+v", docs)
	}
}
