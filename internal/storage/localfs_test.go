package storage

import (
	"context"
	"io"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	path, err := store.Save(ctx, "user-1", "abc.csv", strings.NewReader("a,b\n1,2\n"), 8, "text/csv")
	require.NoError(t, err)
	assert.Equal(t, "user-1", filepath.Base(filepath.Dir(path)))

	ok, err := store.Exists(ctx, path)
	require.NoError(t, err)
	assert.True(t, ok)

	rc, err := store.Open(ctx, path)
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	rc.Close()
	assert.Equal(t, "a,b\n1,2\n", string(data))

	local, cleanup, err := store.LocalPath(ctx, path)
	require.NoError(t, err)
	cleanup()
	assert.Equal(t, path, local)

	require.NoError(t, store.Delete(ctx, path))
	ok, err = store.Exists(ctx, path)
	require.NoError(t, err)
	assert.False(t, ok)

	// Deleting twice is fine
	assert.NoError(t, store.Delete(ctx, path))
}

func TestLocalStoreSanitizesNames(t *testing.T) {
	ctx := context.Background()
	base := t.TempDir()
	store, err := NewLocalStore(base)
	require.NoError(t, err)

	path, err := store.Save(ctx, "../evil", "..\\..\\name", strings.NewReader("x"), 1, "text/plain")
	require.NoError(t, err)
	rel, err := filepath.Rel(base, path)
	require.NoError(t, err)
	assert.False(t, strings.HasPrefix(rel, ".."))
}
