package services

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStorage_PutAndDelete(t *testing.T) {
	// Arrange
	ctx := context.Background()
	root := t.TempDir()
	store, err := NewLocalStorage(root, "http://localhost:8080/uploads/")
	require.NoError(t, err)

	// Act
	url, err := store.Put(ctx, "avatars/u1/a b.jpg", []byte("jpeg"), "image/jpeg")

	// Assert
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080/uploads/avatars/u1/a%20b.jpg", url)
	data, err := os.ReadFile(filepath.Join(root, "avatars", "u1", "a b.jpg"))
	require.NoError(t, err)
	assert.Equal(t, []byte("jpeg"), data)

	signed, err := store.GetSignedURL(ctx, "avatars/u1/a b.jpg", time.Hour)
	require.NoError(t, err)
	assert.Equal(t, url, signed)

	require.NoError(t, store.Delete(ctx, "avatars/u1/a b.jpg"))
	_, err = os.Stat(filepath.Join(root, "avatars", "u1", "a b.jpg"))
	assert.True(t, os.IsNotExist(err))
	assert.NoError(t, store.Delete(ctx, "avatars/u1/a b.jpg"), "deleting twice is not an error")
}

func TestLocalStorage_KeysCannotEscapeRoot(t *testing.T) {
	root := t.TempDir()
	store, err := NewLocalStorage(filepath.Join(root, "store"), "http://localhost/uploads")
	require.NoError(t, err)

	_, err = store.Put(context.Background(), "../../escape.txt", []byte("x"), "text/plain")

	require.NoError(t, err)
	_, statErr := os.Stat(filepath.Join(root, "escape.txt"))
	assert.True(t, os.IsNotExist(statErr))
	_, statErr = os.Stat(filepath.Join(root, "store", "escape.txt"))
	assert.NoError(t, statErr)
}

func TestLocalStorage_EmptyKey(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir(), "http://localhost/uploads")
	require.NoError(t, err)

	_, err = store.Put(context.Background(), "", []byte("x"), "text/plain")

	assert.Error(t, err)
}
