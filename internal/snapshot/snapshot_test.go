package snapshot

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mpetrun/semcode/pkg/types"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)
	return store
}

func TestSaveLoadRoundTrip(t *testing.T) {
	store := newTestStore(t)

	snap := New("/some/project", []string{"vendor/"}, []string{".go"})
	snap.FileHashes["main.go"] = FileFingerprint{
		Path:    "main.go",
		Hash:    "deadbeef",
		Size:    42,
		ModTime: time.Now().Truncate(time.Second),
	}
	require.NoError(t, store.Save(snap))

	loaded, err := store.Load("/some/project")
	require.NoError(t, err)
	assert.Equal(t, snap.RootDir, loaded.RootDir)
	assert.Equal(t, snap.IgnorePatterns, loaded.IgnorePatterns)
	assert.Equal(t, snap.IncludeExtensions, loaded.IncludeExtensions)
	require.Contains(t, loaded.FileHashes, "main.go")
	assert.Equal(t, "deadbeef", loaded.FileHashes["main.go"].Hash)
	assert.Equal(t, int64(42), loaded.FileHashes["main.go"].Size)
}

func TestLoadMissingSnapshot(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Load("/never/indexed")
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestSaveIsAtomic(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir)
	require.NoError(t, err)

	snap := New("/p", nil, nil)
	require.NoError(t, store.Save(snap))

	// No temp files may survive a successful save.
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.Equal(t, ".json", filepath.Ext(e.Name()))
	}
}

func TestSaveOverwrites(t *testing.T) {
	store := newTestStore(t)

	first := New("/p", nil, nil)
	first.FileHashes["a.go"] = FileFingerprint{Path: "a.go", Hash: "h1"}
	require.NoError(t, store.Save(first))

	second := New("/p", nil, nil)
	second.FileHashes["b.go"] = FileFingerprint{Path: "b.go", Hash: "h2"}
	require.NoError(t, store.Save(second))

	loaded, err := store.Load("/p")
	require.NoError(t, err)
	assert.NotContains(t, loaded.FileHashes, "a.go")
	assert.Contains(t, loaded.FileHashes, "b.go")
}

func TestDeleteAndExists(t *testing.T) {
	store := newTestStore(t)

	snap := New("/p", nil, nil)
	require.NoError(t, store.Save(snap))
	assert.True(t, store.Exists("/p"))

	require.NoError(t, store.Delete("/p"))
	assert.False(t, store.Exists("/p"))

	_, err := store.Load("/p")
	assert.True(t, errors.Is(err, types.ErrNotFound))
}

func TestDistinctRootsDoNotCollide(t *testing.T) {
	store := newTestStore(t)

	a := New("/project/a", nil, nil)
	a.FileHashes["x.go"] = FileFingerprint{Path: "x.go", Hash: "ha"}
	b := New("/project/b", nil, nil)
	b.FileHashes["y.go"] = FileFingerprint{Path: "y.go", Hash: "hb"}

	require.NoError(t, store.Save(a))
	require.NoError(t, store.Save(b))

	loadedA, err := store.Load("/project/a")
	require.NoError(t, err)
	loadedB, err := store.Load("/project/b")
	require.NoError(t, err)
	assert.Contains(t, loadedA.FileHashes, "x.go")
	assert.Contains(t, loadedB.FileHashes, "y.go")
}
