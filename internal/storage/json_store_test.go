package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type record struct {
	Name  string   `json:"name"`
	Links []string `json:"links"`
}

func TestJSONStore_LoadMissingReturnsZero(t *testing.T) {
	s, err := NewJSONStore[map[string]record](t.TempDir(), "records.json")
	require.NoError(t, err)

	got, err := s.Load()
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.False(t, s.Exists())
}

func TestJSONStore_SaveThenLoad(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested")
	s, err := NewJSONStore[map[string]record](dir, "records.json")
	require.NoError(t, err)

	in := map[string]record{"a": {Name: "A", Links: []string{"x", "y"}}}
	require.NoError(t, s.Save(in))
	assert.True(t, s.Exists())

	_, err = os.Stat(s.Path() + ".tmp")
	assert.True(t, os.IsNotExist(err), "temp file should be renamed away")

	reopened, err := NewJSONStore[map[string]record](dir, "records.json")
	require.NoError(t, err)
	got, err := reopened.Load()
	require.NoError(t, err)
	assert.Equal(t, in, got)
}

func TestJSONStore_CorruptFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.json"), []byte("{not json"), 0o644))

	s, err := NewJSONStore[map[string]record](dir, "bad.json")
	require.NoError(t, err)

	_, err = s.Load()
	assert.Error(t, err)
}
