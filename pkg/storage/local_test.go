package storage_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sendwerk/outbox/pkg/storage"
)

func TestLocal_SaveLoadDelete(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store, err := storage.NewLocal(t.TempDir())
	require.NoError(t, err)

	f := &storage.File{Name: "report.pdf", Content: []byte("%PDF-1.4 fake")}
	require.NoError(t, store.Save(ctx, f))
	require.NotEqual(t, uuid.Nil, f.ID, "save assigns an id")

	got, err := store.Load(ctx, f.ID)
	require.NoError(t, err)
	assert.Equal(t, "report.pdf", got.Name)
	assert.Equal(t, "application/pdf", got.ContentType)
	assert.Equal(t, f.Content, got.Content)

	require.NoError(t, store.Delete(ctx, f.ID))
	_, err = store.Load(ctx, f.ID)
	require.ErrorIs(t, err, storage.ErrFileNotFound)

	// Deleting an absent id is not an error.
	require.NoError(t, store.Delete(ctx, uuid.New()))
}

func TestLocal_SaveOverwrites(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store, err := storage.NewLocal(t.TempDir())
	require.NoError(t, err)

	f := &storage.File{Name: "notes.txt", Content: []byte("v1")}
	require.NoError(t, store.Save(ctx, f))

	f.Name = "renamed.txt"
	f.Content = []byte("v2")
	require.NoError(t, store.Save(ctx, f))

	got, err := store.Load(ctx, f.ID)
	require.NoError(t, err)
	assert.Equal(t, "renamed.txt", got.Name)
	assert.Equal(t, []byte("v2"), got.Content)
}

func TestLocal_SanitizesFilename(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store, err := storage.NewLocal(t.TempDir())
	require.NoError(t, err)

	f := &storage.File{Name: "../../etc/passwd", Content: []byte("x")}
	require.NoError(t, store.Save(ctx, f))
	assert.NotContains(t, f.Name, "/")
	assert.NotContains(t, f.Name, "..")

	got, err := store.Load(ctx, f.ID)
	require.NoError(t, err)
	assert.Equal(t, f.Name, got.Name)
}

func TestLocal_RejectsEmptyFile(t *testing.T) {
	t.Parallel()

	store, err := storage.NewLocal(t.TempDir())
	require.NoError(t, err)

	err = store.Save(context.Background(), &storage.File{Name: "empty.txt"})
	require.ErrorIs(t, err, storage.ErrEmptyFile)
}

func TestNewLocal_EmptyDir(t *testing.T) {
	t.Parallel()

	_, err := storage.NewLocal("")
	require.ErrorIs(t, err, storage.ErrInvalidConfig)
}

func TestAttachments_Loader(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store, err := storage.NewLocal(t.TempDir())
	require.NoError(t, err)

	f := &storage.File{Name: "logo.png", Content: []byte{0x89, 'P', 'N', 'G'}}
	require.NoError(t, store.Save(ctx, f))

	loader := storage.NewAttachments(store)

	att, err := loader.Attachment(ctx, f.ID)
	require.NoError(t, err)
	require.NotNil(t, att)
	assert.Equal(t, "logo.png", att.Filename)
	assert.Equal(t, f.Content, att.Content)

	att, err = loader.Attachment(ctx, uuid.New())
	require.NoError(t, err)
	assert.Nil(t, att, "absent file is reported as (nil, nil)")
}
