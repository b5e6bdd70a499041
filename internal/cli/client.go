package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hyperjump/kensaku/internal/lifecycle"
	"github.com/hyperjump/kensaku/internal/models"
)

// Client talks to a running kensaku server.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient returns a client for the server at baseURL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 2 * time.Minute},
	}
}

// Query posts a query to the Query API.
func (c *Client) Query(ctx context.Context, req *models.QueryRequest) (*models.QueryResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	var resp models.QueryResponse
	if err := c.do(ctx, http.MethodPost, "/api/v1/query", bytes.NewReader(body), http.StatusOK, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Reset asks the server to start a reset.
func (c *Client) Reset(ctx context.Context, mode lifecycle.Mode) error {
	path := "/api/v1/admin/reset?mode=" + url.QueryEscape(string(mode))
	return c.do(ctx, http.MethodPost, path, nil, http.StatusAccepted, nil)
}

// Stats fetches collection stats.
func (c *Client) Stats(ctx context.Context) (*StatsView, error) {
	view := &StatsView{Stats: &models.Stats{}}
	if err := c.do(ctx, http.MethodGet, "/api/v1/admin/stats", nil, http.StatusOK, view); err != nil {
		return nil, err
	}
	return view, nil
}

// Documents lists the indexed sources.
func (c *Client) Documents(ctx context.Context) ([]models.SourceDocument, error) {
	var resp struct {
		Documents []models.SourceDocument `json:"documents"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/v1/documents", nil, http.StatusOK, &resp); err != nil {
		return nil, err
	}
	return resp.Documents, nil
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, want int, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != want {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
