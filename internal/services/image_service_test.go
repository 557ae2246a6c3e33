package services

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalImageStore_UploadAndDelete(t *testing.T) {
	ctx := context.Background()
	uploadDir := t.TempDir()
	s, err := NewLocalImageStore(uploadDir, t.TempDir())
	require.NoError(t, err)

	resp, err := s.Upload(ctx, "u1", "image/png", strings.NewReader("png-bytes"))
	require.NoError(t, err)
	assert.Equal(t, "/uploads/"+resp.ID+".png", resp.URL)
	assert.Equal(t, int64(len("png-bytes")), resp.Size)

	data, err := os.ReadFile(filepath.Join(uploadDir, resp.Filename))
	require.NoError(t, err)
	assert.Equal(t, "png-bytes", string(data))

	assert.ErrorIs(t, s.Delete(ctx, "u2", resp.ID), ErrUnauthorized)
	require.NoError(t, s.Delete(ctx, "u1", resp.ID))
	assert.ErrorIs(t, s.Delete(ctx, "u1", resp.ID), ErrImageNotFound)

	_, err = os.Stat(filepath.Join(uploadDir, resp.Filename))
	assert.True(t, os.IsNotExist(err))
}

func TestLocalImageStore_RejectsUnknownType(t *testing.T) {
	s, err := NewLocalImageStore(t.TempDir(), t.TempDir())
	require.NoError(t, err)

	_, err = s.Upload(context.Background(), "u1", "application/pdf", strings.NewReader("%PDF"))
	assert.ErrorIs(t, err, ErrInvalidImage)
}

func TestLocalImageStore_OwnershipSurvivesRestart(t *testing.T) {
	ctx := context.Background()
	uploadDir, dataDir := t.TempDir(), t.TempDir()

	s, err := NewLocalImageStore(uploadDir, dataDir)
	require.NoError(t, err)
	resp, err := s.Upload(ctx, "u1", "image/jpeg", strings.NewReader("jpg"))
	require.NoError(t, err)

	reopened, err := NewLocalImageStore(uploadDir, dataDir)
	require.NoError(t, err)
	assert.ErrorIs(t, reopened.Delete(ctx, "u2", resp.ID), ErrUnauthorized)
	assert.NoError(t, reopened.Delete(ctx, "u1", resp.ID))
}

func TestIsValidImageType(t *testing.T) {
	for _, ct := range []string{"image/jpeg", "image/png", "image/gif", "image/webp"} {
		assert.True(t, IsValidImageType(ct), ct)
	}
	assert.False(t, IsValidImageType("image/svg+xml"))
	assert.False(t, IsValidImageType(""))
}

func TestLocalImageStore_DeleteByUserID(t *testing.T) {
	ctx := context.Background()
	uploadDir, dataDir := t.TempDir(), t.TempDir()
	s, err := NewLocalImageStore(uploadDir, dataDir)
	require.NoError(t, err)

	a, err := s.Upload(ctx, "u1", "image/png", strings.NewReader("a"))
	require.NoError(t, err)
	b, err := s.Upload(ctx, "u1", "image/gif", strings.NewReader("b"))
	require.NoError(t, err)
	keep, err := s.Upload(ctx, "u2", "image/png", strings.NewReader("c"))
	require.NoError(t, err)

	n, err := s.DeleteByUserID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	for _, resp := range []string{a.Filename, b.Filename} {
		_, err = os.Stat(filepath.Join(uploadDir, resp))
		assert.True(t, os.IsNotExist(err), resp)
	}

	n, err = s.DeleteByUserID(ctx, "u1")
	require.NoError(t, err)
	assert.Zero(t, n)

	reopened, err := NewLocalImageStore(uploadDir, dataDir)
	require.NoError(t, err)
	assert.ErrorIs(t, reopened.Delete(ctx, "u1", a.ID), ErrImageNotFound)
	assert.NoError(t, reopened.Delete(ctx, "u2", keep.ID))
}

func TestLocalImageStore_ReadUpload(t *testing.T) {
	ctx := context.Background()
	uploadDir := t.TempDir()
	s, err := NewLocalImageStore(uploadDir, t.TempDir())
	require.NoError(t, err)

	resp, err := s.Upload(ctx, "u1", "image/png", strings.NewReader("png-bytes"))
	require.NoError(t, err)

	data, err := s.ReadUpload(ctx, resp.Filename)
	require.NoError(t, err)
	assert.Equal(t, "png-bytes", string(data))

	require.NoError(t, os.WriteFile(filepath.Join(uploadDir, "stray.png"), []byte("x"), 0o644))
	for _, name := range []string{"stray.png", resp.ID + ".jpg", "../" + resp.Filename, ""} {
		_, err = s.ReadUpload(ctx, name)
		assert.ErrorIs(t, err, ErrImageNotFound, name)
	}
}
