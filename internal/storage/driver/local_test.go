package driver

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bytevault/bytevault/internal/storage/biz"
)

func TestLocalStoreRoundTrip(t *testing.T) {
	store, err := NewLocalStore(t.TempDir(), "")
	require.NoError(t, err)
	ctx := context.Background()

	const path = "ab/cd/hash/hash_original.txt"
	content := "stored bytes"

	require.NoError(t, store.Put(ctx, path, strings.NewReader(content), int64(len(content)), "text/plain"))

	ok, err := store.Exists(ctx, path)
	require.NoError(t, err)
	assert.True(t, ok)

	rc, err := store.Get(ctx, path)
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, rc.Close())
	require.NoError(t, err)
	assert.Equal(t, content, string(data))

	require.NoError(t, store.Delete(ctx, path))
	ok, err = store.Exists(ctx, path)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLocalStoreGetMissing(t *testing.T) {
	store, err := NewLocalStore(t.TempDir(), "")
	require.NoError(t, err)

	_, err = store.Get(context.Background(), "nope/missing")
	assert.ErrorIs(t, err, biz.ErrNotFound)
}

func TestLocalStoreDeleteMissingIsNoop(t *testing.T) {
	store, err := NewLocalStore(t.TempDir(), "")
	require.NoError(t, err)

	assert.NoError(t, store.Delete(context.Background(), "never/there"))
}

func TestLocalStoreOverwriteKeepsLatest(t *testing.T) {
	store, err := NewLocalStore(t.TempDir(), "")
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "p/x", strings.NewReader("one"), 3, ""))
	require.NoError(t, store.Put(ctx, "p/x", strings.NewReader("two"), 3, ""))

	rc, err := store.Get(ctx, "p/x")
	require.NoError(t, err)
	data, _ := io.ReadAll(rc)
	rc.Close()
	assert.Equal(t, "two", string(data))
}

func TestLocalStoreLeavesNoTempFiles(t *testing.T) {
	base := t.TempDir()
	store, err := NewLocalStore(base, "")
	require.NoError(t, err)

	require.NoError(t, store.Put(context.Background(), "p/x", strings.NewReader("data"), 4, ""))

	var leftovers []string
	err = filepath.Walk(base, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && strings.HasPrefix(info.Name(), ".upload-") {
			leftovers = append(leftovers, path)
		}
		return nil
	})
	require.NoError(t, err)
	assert.Empty(t, leftovers)
}

func TestLocalStorePublicURL(t *testing.T) {
	ctx := context.Background()

	private, err := NewLocalStore(t.TempDir(), "")
	require.NoError(t, err)
	url, err := private.PublicURL(ctx, "p/x")
	require.NoError(t, err)
	assert.Empty(t, url)

	public, err := NewLocalStore(t.TempDir(), "https://cdn.example.com/files/")
	require.NoError(t, err)
	url, err = public.PublicURL(ctx, "p/x")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/files/p/x", url)
}
