package blobstore

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStore_Lifecycle(t *testing.T) {
	tmpDir := t.TempDir()
	store := NewLocalStore(tmpDir)
	ctx := context.Background()

	data := []byte("hello world, this is a sample blob")
	require.NoError(t, store.Put(ctx, "samples/001.ccs", data))

	_, err := os.Stat(filepath.Join(tmpDir, "samples", "001.ccs"))
	require.NoError(t, err)

	blob, err := store.Open(ctx, "samples/001.ccs")
	require.NoError(t, err)
	defer blob.Close()

	require.Equal(t, int64(len(data)), blob.Size())

	buf := make([]byte, 5)
	n, err := blob.ReadAt(ctx, buf, 6)
	require.NoError(t, err)
	require.Equal(t, 5, n)
	require.Equal(t, "world", string(buf))

	_, err = blob.ReadAt(ctx, buf, -1)
	assert.ErrorIs(t, err, io.EOF)

	all, err := ReadAll(ctx, blob)
	require.NoError(t, err)
	assert.Equal(t, data, all)

	require.NoError(t, store.Put(ctx, "samples/002.ccs", []byte("x")))
	require.NoError(t, store.Put(ctx, "other.bin", []byte("y")))

	names, err := store.List(ctx, "samples/")
	require.NoError(t, err)
	assert.Equal(t, []string{"samples/001.ccs", "samples/002.ccs"}, names)

	names, err = store.List(ctx, "")
	require.NoError(t, err)
	assert.Len(t, names, 3)

	require.NoError(t, store.Delete(ctx, "samples/002.ccs"))
	require.NoError(t, store.Delete(ctx, "samples/002.ccs"))

	_, err = store.Open(ctx, "samples/002.ccs")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLocalStore_PutOverwrites(t *testing.T) {
	store := NewLocalStore(t.TempDir())
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "a", []byte("first version")))
	require.NoError(t, store.Put(ctx, "a", []byte("second")))

	data, err := Get(ctx, store, "a")
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))

	names, err := store.List(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, names)
}

func TestLocalStore_EmptyBlob(t *testing.T) {
	store := NewLocalStore(t.TempDir())
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "empty", nil))

	data, err := Get(ctx, store, "empty")
	require.NoError(t, err)
	assert.Empty(t, data)
}

func TestLocalStore_Canceled(t *testing.T) {
	store := NewLocalStore(t.TempDir())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, store.Put(ctx, "a", []byte("x")), context.Canceled)
	_, err := store.Open(ctx, "a")
	assert.ErrorIs(t, err, context.Canceled)
}
