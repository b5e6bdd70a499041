package fileid

import (
	"os"
	"path/filepath"
	"testing"
)

func TestChunkID_Deterministic(t *testing.T) {
	a := ChunkID("/docs/a.txt", "abc", 0)
	if a != ChunkID("/docs/a.txt", "abc", 0) {
		t.Error("same inputs should give same ID")
	}
	if a != ChunkID("/docs/./a.txt", "abc", 0) {
		t.Error("path should be cleaned")
	}
	for _, other := range []string{
		ChunkID("/docs/b.txt", "abc", 0),
		ChunkID("/docs/a.txt", "abd", 0),
		ChunkID("/docs/a.txt", "abc", 1),
	} {
		if other == a {
			t.Errorf("expected distinct ID, got %s", other)
		}
	}
}

func TestFingerprint(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "f.txt")
	if err := os.WriteFile(p, []byte("hello"), 0644); err != nil {
		t.Fatal(err)
	}
	got, err := Fingerprint(p)
	if err != nil {
		t.Fatal(err)
	}
	if got != FingerprintBytes([]byte("hello")) {
		t.Errorf("Fingerprint = %s", got)
	}
	if got != "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824" {
		t.Errorf("unexpected sha256 %s", got)
	}
	if _, err := Fingerprint(filepath.Join(dir, "missing")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestNormalize(t *testing.T) {
	if got := Normalize("/a/b/../c.txt"); got != "/a/c.txt" {
		t.Errorf("Normalize = %s", got)
	}
	if got := Normalize("rel/x.txt"); !filepath.IsAbs(got) {
		t.Errorf("Normalize(relative) = %s, want absolute", got)
	}
}
