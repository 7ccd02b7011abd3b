package storage

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStorePutOpenDelete(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	key, err := store.Put("activity/t1-1700000000.pdf", []byte("%PDF-1.4"))
	require.NoError(t, err)
	assert.Equal(t, "activity/t1-1700000000.pdf", key)

	f, err := store.Open(key)
	require.NoError(t, err)
	body, err := io.ReadAll(f)
	require.NoError(t, f.Close())
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4", string(body))

	require.NoError(t, store.Delete(key))
	require.NoError(t, store.Delete(key))
	_, err = store.Open(key)
	require.Error(t, err)
}

func TestFileStorePutStream(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	n, err := store.PutStream("a/b.txt", strings.NewReader("hello"))
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)
}

func TestFileStoreRejectsTraversal(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.Put("../escape.txt", []byte("x"))
	require.ErrorIs(t, err, ErrOutsideRoot)
	_, err = store.Open("a/../../escape.txt")
	require.ErrorIs(t, err, ErrOutsideRoot)
}

func TestFileStorePrune(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir)
	require.NoError(t, err)

	_, err = store.Put("old.csv", []byte("old"))
	require.NoError(t, err)
	_, err = store.Put("new.csv", []byte("new"))
	require.NoError(t, err)
	past := time.Now().Add(-48 * time.Hour)
	require.NoError(t, os.Chtimes(filepath.Join(dir, "old.csv"), past, past))

	removed, err := store.Prune(24 * time.Hour)
	require.NoError(t, err)
	assert.Equal(t, []string{"old.csv"}, removed)
	_, err = os.Stat(filepath.Join(dir, "new.csv"))
	require.NoError(t, err)
}
