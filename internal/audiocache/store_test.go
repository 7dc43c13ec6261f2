package audiocache_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/hxann/radiotruyen/internal/audiocache"
	"github.com/stretchr/testify/require"
)

func TestKeyForURL(t *testing.T) {
	t.Run("deterministic", func(t *testing.T) {
		url := "https://truyenfull.vn/truyen/chuong-1/"
		require.Equal(t, audiocache.KeyForURL(url), audiocache.KeyForURL(url))
	})

	t.Run("known value", func(t *testing.T) {
		// md5 is part of the on-disk naming scheme; existing caches depend on it
		require.Equal(t, "acbd18db4cc2f85cedef654fccc4a4d8", audiocache.KeyForURL("foo"))
	})

	t.Run("distinct URLs get distinct keys", func(t *testing.T) {
		require.NotEqual(
			t,
			audiocache.KeyForURL("https://example.com/c/1"),
			audiocache.KeyForURL("https://example.com/c/2"),
		)
		require.Len(t, audiocache.KeyForURL("https://example.com/c/1"), 32)
	})
}

func TestStoreSetup(t *testing.T) {
	t.Run("creates missing directory", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "nested", "audio_cache")
		store := audiocache.NewStore(dir)

		require.NoError(t, store.Setup())

		info, err := os.Stat(dir)
		require.NoError(t, err)
		require.True(t, info.IsDir())
	})

	t.Run("existing directory is fine", func(t *testing.T) {
		dir := t.TempDir()
		store := audiocache.NewStore(dir)
		require.NoError(t, store.Setup())
		require.NoError(t, store.Setup())
	})
}

func TestPathFor(t *testing.T) {
	store := audiocache.NewStore("/cache")
	key := audiocache.KeyForURL("https://example.com/c/1")
	require.Equal(t, filepath.Join("/cache", key+".audio"), store.PathFor(key))
}

func TestExists(t *testing.T) {
	ctx := context.Background()
	store := audiocache.NewStore(t.TempDir())
	require.NoError(t, store.Setup())

	key := audiocache.KeyForURL("https://example.com/c/1")
	path := store.PathFor(key)

	require.False(t, store.Exists(path))

	require.NoError(t, os.WriteFile(path, []byte("audio"), 0o644))
	require.True(t, store.Exists(path))

	require.NoError(t, os.Remove(path))
	require.False(t, store.Exists(path))

	// Touch on a missing file must not panic or error out
	store.Touch(ctx, path)
}

func TestStreamTo(t *testing.T) {
	ctx := context.Background()

	newEntry := func(t *testing.T, content []byte) (*audiocache.Store, string) {
		t.Helper()
		store := audiocache.NewStore(t.TempDir())
		require.NoError(t, store.Setup())
		path := store.PathFor(audiocache.KeyForURL("https://example.com/c/1"))
		require.NoError(t, os.WriteFile(path, content, 0o644))
		return store, path
	}

	t.Run("streams content byte-identically", func(t *testing.T) {
		content := bytes.Repeat([]byte("abcdefgh"), 3000) // >8KiB, several frames
		store, path := newEntry(t, content)

		var out bytes.Buffer
		require.NoError(t, store.StreamTo(ctx, path, &out))
		require.Equal(t, content, out.Bytes())
	})

	t.Run("empty file streams nothing", func(t *testing.T) {
		store, path := newEntry(t, nil)

		var out bytes.Buffer
		require.NoError(t, store.StreamTo(ctx, path, &out))
		require.Zero(t, out.Len())
	})

	t.Run("missing file is not an error", func(t *testing.T) {
		store := audiocache.NewStore(t.TempDir())
		require.NoError(t, store.Setup())

		var out bytes.Buffer
		err := store.StreamTo(ctx, store.PathFor("0123456789abcdef0123456789abcdef"), &out)
		require.NoError(t, err)
		require.Zero(t, out.Len())
	})

	t.Run("cancelled context stops the stream", func(t *testing.T) {
		content := bytes.Repeat([]byte("x"), 64*1024)
		store, path := newEntry(t, content)

		cancelled, cancel := context.WithCancel(ctx)
		cancel()

		var out bytes.Buffer
		err := store.StreamTo(cancelled, path, &out)
		require.ErrorIs(t, err, context.Canceled)
	})
}
