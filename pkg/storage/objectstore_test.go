package storage

import (
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) *LocalObjectStore {
	store, err := NewLocalObjectStore("media", t.TempDir(), "http://localhost:8080/files")
	require.NoError(t, err)
	return store
}

func TestCreateOpenDelete(t *testing.T) {
	store := newStore(t)

	require.NoError(t, store.Create("lesson_pictures/abc_photo.png", []byte("payload")))

	exists, err := store.Exists("lesson_pictures/abc_photo.png")
	require.NoError(t, err)
	assert.True(t, exists)

	rc, err := store.Open("lesson_pictures/abc_photo.png")
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, []byte("payload"), data)

	require.NoError(t, store.Delete("lesson_pictures/abc_photo.png"))
	exists, err = store.Exists("lesson_pictures/abc_photo.png")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestDeleteMissingObjectIsNoop(t *testing.T) {
	store := newStore(t)
	assert.NoError(t, store.Delete("profile_pictures/missing.png"))
}

func TestPublicURL(t *testing.T) {
	store := newStore(t)
	assert.Equal(t, "http://localhost:8080/files/media/profile_pictures/a.png", store.PublicURL("profile_pictures/a.png"))
}

func TestResolveRejectsEmptyName(t *testing.T) {
	store := newStore(t)
	err := store.Create("", []byte("x"))
	assert.Error(t, err)
}
