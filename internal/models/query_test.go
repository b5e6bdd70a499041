package models

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestQueryRequest_Validate(t *testing.T) {
	tests := []struct {
		name    string
		query   *QueryRequest
		wantErr bool
	}{
		{"empty query", &QueryRequest{Query: ""}, true},
		{"valid query", &QueryRequest{Query: "hello"}, false},
		{"internal filter", &QueryRequest{Query: "x", Category: CategoryInternal}, false},
		{"bogus filter", &QueryRequest{Query: "x", Category: Category(9)}, true},
		{"negative timeout reset", &QueryRequest{Query: "x", TimeoutMS: -5}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.query.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && tt.query.TimeoutMS < 0 {
				t.Errorf("expected timeout clamped to 0, got %d", tt.query.TimeoutMS)
			}
		})
	}
}

func TestParseCategory(t *testing.T) {
	tests := []struct {
		in      string
		want    Category
		wantErr bool
	}{
		{"internal", CategoryInternal, false},
		{"EXTERNAL", CategoryExternal, false},
		{"", CategoryAny, false},
		{"all", CategoryAny, false},
		{"public", CategoryAny, true},
	}
	for _, tt := range tests {
		got, err := ParseCategory(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseCategory(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseCategory(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestCategory_JSON(t *testing.T) {
	var req QueryRequest
	if err := json.Unmarshal([]byte(`{"query":"q","category":"external"}`), &req); err != nil {
		t.Fatal(err)
	}
	if req.Category != CategoryExternal {
		t.Errorf("category = %v", req.Category)
	}
	if err := json.Unmarshal([]byte(`{"query":"q","category":"nope"}`), &req); err == nil {
		t.Error("expected error for unknown category")
	}
	b, err := json.Marshal(Chunk{SourcePath: "/a", Category: CategoryInternal})
	if err != nil {
		t.Fatal(err)
	}
	if want := `"source_category":"internal"`; !strings.Contains(string(b), want) {
		t.Errorf("marshal = %s, want %s", b, want)
	}
}

func TestParseEventType(t *testing.T) {
	for _, s := range []string{"created", "Modified", "deleted"} {
		if _, err := ParseEventType(s); err != nil {
			t.Errorf("ParseEventType(%q): %v", s, err)
		}
	}
	if _, err := ParseEventType("moved"); err == nil {
		t.Error("expected error for moved")
	}
}
