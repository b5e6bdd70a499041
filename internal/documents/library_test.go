package documents

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperjump/kensaku/internal/extract"
	"github.com/hyperjump/kensaku/internal/models"
)

type staticSources []models.SourceDocument

func (s staticSources) Sources(context.Context) ([]models.SourceDocument, error) {
	return s, nil
}

func newLibrary(t *testing.T) (*Library, string, string) {
	t.Helper()
	base := t.TempDir()
	internal := filepath.Join(base, "internal")
	external := filepath.Join(base, "external")
	require.NoError(t, os.MkdirAll(internal, 0755))
	require.NoError(t, os.MkdirAll(external, 0755))
	lib := NewLibrary(map[models.Category]string{
		models.CategoryInternal: internal,
		models.CategoryExternal: external,
	}, []string{".txt", ".md"}, staticSources{{Path: filepath.Join(internal, "a.txt"), Category: models.CategoryInternal}},
		extract.NewExtractor())
	return lib, internal, external
}

func TestLibrary_Resolve(t *testing.T) {
	lib, internal, external := newLibrary(t)

	path, cat, err := lib.Resolve(filepath.Join(external, "sub", "x.txt"))
	require.NoError(t, err)
	assert.Equal(t, models.CategoryExternal, cat)
	assert.Equal(t, filepath.Join(external, "sub", "x.txt"), path)

	for _, p := range []string{
		"",
		internal,
		filepath.Join(internal, "..", "external-other", "x.txt"),
		internal + "-sibling/x.txt",
		"/etc/passwd",
	} {
		_, _, err := lib.Resolve(p)
		assert.ErrorIs(t, err, ErrOutsideRoots, p)
	}
}

func TestLibrary_ResolveRejectsSymlinkEscape(t *testing.T) {
	lib, internal, _ := newLibrary(t)
	outside := filepath.Join(t.TempDir(), "secret.txt")
	require.NoError(t, os.WriteFile(outside, []byte("secret"), 0644))
	link := filepath.Join(internal, "link.txt")
	if err := os.Symlink(outside, link); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}
	_, _, err := lib.Resolve(link)
	assert.ErrorIs(t, err, ErrOutsideRoots)
}

func TestLibrary_Content(t *testing.T) {
	lib, internal, _ := newLibrary(t)
	path := filepath.Join(internal, "a.txt")
	require.NoError(t, os.WriteFile(path, []byte("Revenue was $5.2M in Q3 2024."), 0644))

	text, err := lib.Content(context.Background(), path)
	require.NoError(t, err)
	assert.Contains(t, text, "$5.2M")

	_, err = lib.Content(context.Background(), filepath.Join(internal, "missing.txt"))
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = lib.Content(context.Background(), "/etc/hostname")
	assert.ErrorIs(t, err, ErrOutsideRoots)
}

func TestLibrary_Save(t *testing.T) {
	lib, _, external := newLibrary(t)

	ev, err := lib.Save(models.CategoryExternal, "press.md", strings.NewReader("# Launch"))
	require.NoError(t, err)
	assert.Equal(t, models.FileEvent{Path: filepath.Join(external, "press.md"), Type: models.EventCreated, Category: models.CategoryExternal}, ev)
	data, err := os.ReadFile(ev.Path)
	require.NoError(t, err)
	assert.Equal(t, "# Launch", string(data))

	entries, err := os.ReadDir(external)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temporary upload file left behind")

	for _, name := range []string{"", "../x.txt", "sub/x.txt", ".hidden.txt", "tool.exe"} {
		_, err := lib.Save(models.CategoryExternal, name, strings.NewReader("x"))
		assert.ErrorIs(t, err, ErrInvalidName, name)
	}
	_, err = lib.Save(models.CategoryAny, "x.txt", strings.NewReader("x"))
	assert.Error(t, err)
}

func TestLibrary_Remove(t *testing.T) {
	lib, internal, _ := newLibrary(t)
	path := filepath.Join(internal, "old.txt")
	require.NoError(t, os.WriteFile(path, []byte("old"), 0644))

	ev, err := lib.Remove(path)
	require.NoError(t, err)
	assert.Equal(t, models.EventDeleted, ev.Type)
	assert.Equal(t, models.CategoryInternal, ev.Category)
	assert.NoFileExists(t, path)

	_, err = lib.Remove(path)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLibrary_List(t *testing.T) {
	lib, internal, _ := newLibrary(t)
	docs, err := lib.List(context.Background())
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, filepath.Join(internal, "a.txt"), docs[0].Path)
}
