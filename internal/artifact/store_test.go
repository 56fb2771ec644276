package artifact_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/phrazzld/genserve/internal/artifact"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) *artifact.FileStore {
	t.Helper()
	store, err := artifact.NewFileStore(filepath.Join(t.TempDir(), "images"))
	require.NoError(t, err)
	return store
}

func TestNewFileStore_CreatesRoot(t *testing.T) {
	root := filepath.Join(t.TempDir(), "nested", "images")

	store, err := artifact.NewFileStore(root)

	require.NoError(t, err)
	assert.Equal(t, root, store.Root())
	info, err := os.Stat(root)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestNewFileStore_EmptyRoot(t *testing.T) {
	_, err := artifact.NewFileStore("")
	assert.Error(t, err)
}

func TestFileStore_GetBeforePut(t *testing.T) {
	store := newStore(t)

	got, err := store.Get(context.Background(), "a1b2c3")

	assert.ErrorIs(t, err, artifact.ErrNotFound)
	assert.Nil(t, got)
}

func TestFileStore_PutThenGet(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	data := []byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a, 1, 2, 3}

	location, err := store.Put(ctx, "a1b2c3", data)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(store.Root(), "a1b2c3.png"), location)
	assert.Equal(t, location, store.Location("a1b2c3"))

	got, err := store.Get(ctx, "a1b2c3")
	require.NoError(t, err)
	assert.Equal(t, "a1b2c3", got.ID)
	assert.Equal(t, data, got.Data)
	assert.Equal(t, location, got.Location)
	assert.False(t, got.ModTime.IsZero())
}

func TestFileStore_PutOverwrites(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	_, err := store.Put(ctx, "same-id", []byte("first"))
	require.NoError(t, err)
	_, err = store.Put(ctx, "same-id", []byte("second"))
	require.NoError(t, err)

	got, err := store.Get(ctx, "same-id")
	require.NoError(t, err)
	assert.Equal(t, []byte("second"), got.Data)
}

func TestFileStore_LeavesNoTemporaryFiles(t *testing.T) {
	store := newStore(t)

	_, err := store.Put(context.Background(), "clean", []byte("data"))
	require.NoError(t, err)

	entries, err := os.ReadDir(store.Root())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "clean.png", entries[0].Name())
}

func TestFileStore_RejectsUnsafeIDs(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	outside := filepath.Join(filepath.Dir(store.Root()), "secret.png")
	require.NoError(t, os.WriteFile(outside, []byte("secret"), 0o600))

	ids := []string{"", "../secret", "a/b", "a.b", "..", "id with space"}
	for _, id := range ids {
		t.Run(id, func(t *testing.T) {
			_, err := store.Get(ctx, id)
			assert.ErrorIs(t, err, artifact.ErrNotFound)

			_, err = store.Put(ctx, id, []byte("x"))
			assert.ErrorIs(t, err, artifact.ErrInvalidID)
		})
	}
}

func TestFileStore_DirectoryIsNotAnArtifact(t *testing.T) {
	store := newStore(t)
	require.NoError(t, os.Mkdir(filepath.Join(store.Root(), "dir.png"), 0o755))

	_, err := store.Get(context.Background(), "dir")

	assert.ErrorIs(t, err, artifact.ErrNotFound)
}

func TestFileStore_CancelledContext(t *testing.T) {
	store := newStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := store.Put(ctx, "late", []byte("x"))
	assert.ErrorIs(t, err, context.Canceled)

	_, err = store.Get(ctx, "late")
	assert.ErrorIs(t, err, context.Canceled)
}
