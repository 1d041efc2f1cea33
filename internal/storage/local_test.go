package storage

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalGateway_SaveLoadDelete(t *testing.T) {
	t.Parallel()

	g, err := NewLocalGateway(t.TempDir())
	require.NoError(t, err)

	key, err := g.Save(FolderAnnouncements, "photo.JPG", []byte("content"))
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(key, ".jpg"))
	assert.NotContains(t, key, "photo", "keys must be opaque, not derived from the filename")

	data, err := g.Load(FolderAnnouncements, key)
	require.NoError(t, err)
	assert.Equal(t, []byte("content"), data)

	require.NoError(t, g.Delete(FolderAnnouncements, key))
	_, err = g.Load(FolderAnnouncements, key)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLocalGateway_SaveGeneratesUniqueKeys(t *testing.T) {
	t.Parallel()

	g, err := NewLocalGateway(t.TempDir())
	require.NoError(t, err)

	key1, err := g.Save(FolderAnnouncements, "same.png", []byte("a"))
	require.NoError(t, err)
	key2, err := g.Save(FolderAnnouncements, "same.png", []byte("b"))
	require.NoError(t, err)
	assert.NotEqual(t, key1, key2)
}

func TestLocalGateway_DeleteMissingIsIdempotent(t *testing.T) {
	t.Parallel()

	g, err := NewLocalGateway(t.TempDir())
	require.NoError(t, err)

	assert.NoError(t, g.Delete(FolderAnnouncements, "0c6de1c5-aaaa-bbbb-cccc-000000000000.jpg"))
}

func TestLocalGateway_RejectsEmptyFile(t *testing.T) {
	t.Parallel()

	g, err := NewLocalGateway(t.TempDir())
	require.NoError(t, err)

	_, err = g.Save(FolderAnnouncements, "empty.jpg", nil)
	assert.Error(t, err)
}

func TestLocalGateway_LoadRejectsTraversal(t *testing.T) {
	t.Parallel()

	g, err := NewLocalGateway(t.TempDir())
	require.NoError(t, err)

	for _, key := range []string{"../secret", "..%2fsecret", "a/b.jpg", "", "UPPER.JPG"} {
		_, err := g.Load(FolderAnnouncements, key)
		assert.ErrorIs(t, err, ErrNotFound, "key %q must be rejected", key)
	}
}
