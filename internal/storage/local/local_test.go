package local

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fmdrive/internal/domain"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	store, err := NewStore(t.TempDir())
	require.NoError(t, err)
	return store
}

func TestPutAndGet(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	err := store.Put(ctx, "user-1/root/object-1", strings.NewReader("hello"), "text/plain")
	require.NoError(t, err)

	obj, err := store.GetObject(ctx, "user-1/root/object-1")
	require.NoError(t, err)
	defer obj.Close()

	data, err := io.ReadAll(obj)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
	assert.Equal(t, int64(5), obj.ContentLength())
}

func TestPutOverwrites(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	require.NoError(t, store.Put(ctx, "key", strings.NewReader("first"), ""))
	require.NoError(t, store.Put(ctx, "key", strings.NewReader("second"), ""))

	obj, err := store.GetObject(ctx, "key")
	require.NoError(t, err)
	defer obj.Close()

	data, err := io.ReadAll(obj)
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))
}

func TestGetMissing(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	_, err := store.GetObject(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDeleteIdempotent(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	require.NoError(t, store.Put(ctx, "key", strings.NewReader("data"), ""))
	require.NoError(t, store.Delete(ctx, "key"))

	// Повторное удаление — не ошибка
	assert.NoError(t, store.Delete(ctx, "key"))

	exists, err := store.Exists(ctx, "key")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestExists(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	exists, err := store.Exists(ctx, "key")
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, store.Put(ctx, "key", strings.NewReader("data"), ""))

	exists, err = store.Exists(ctx, "key")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestCopy(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	require.NoError(t, store.Put(ctx, "src", strings.NewReader("data"), ""))
	require.NoError(t, store.Copy(ctx, "src", "dst/nested"))

	obj, err := store.GetObject(ctx, "dst/nested")
	require.NoError(t, err)
	defer obj.Close()

	data, err := io.ReadAll(obj)
	require.NoError(t, err)
	assert.Equal(t, "data", string(data))

	// Источник не тронут
	exists, err := store.Exists(ctx, "src")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestCopyMissingSource(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	err := store.Copy(ctx, "missing", "dst")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestKeyEscapeRejected(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	for _, key := range []string{"../outside", "a/../../outside", ""} {
		err := store.Put(ctx, key, strings.NewReader("data"), "")
		assert.ErrorIs(t, err, domain.ErrValidation, "key %q", key)
	}
}

func TestRemoveEmptyDirs(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	store, err := NewStore(root)
	require.NoError(t, err)

	require.NoError(t, store.Put(ctx, "user-1/10/a", strings.NewReader("a"), ""))
	require.NoError(t, store.Put(ctx, "user-1/20/b", strings.NewReader("b"), ""))
	require.NoError(t, store.Delete(ctx, "user-1/10/a"))

	require.NoError(t, store.RemoveEmptyDirs(ctx, "user-1"))

	// Опустевший каталог удален, непустой остался
	_, err = os.Stat(filepath.Join(root, "user-1", "10"))
	assert.True(t, os.IsNotExist(err))

	_, err = os.Stat(filepath.Join(root, "user-1", "20"))
	assert.NoError(t, err)
}

func TestRemoveEmptyDirsRemovesWholePrefix(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	store, err := NewStore(root)
	require.NoError(t, err)

	require.NoError(t, store.Put(ctx, "user-1/10/a", strings.NewReader("a"), ""))
	require.NoError(t, store.Delete(ctx, "user-1/10/a"))

	require.NoError(t, store.RemoveEmptyDirs(ctx, "user-1"))

	_, err = os.Stat(filepath.Join(root, "user-1"))
	assert.True(t, os.IsNotExist(err))
}
