package storage

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveStreamRoundTrip(t *testing.T) {
	dir := t.TempDir()
	store, err := NewLocalStorage(dir)
	require.NoError(t, err)

	name, err := store.SaveStream("attachment.pdf", strings.NewReader("file-body"))
	require.NoError(t, err)
	assert.Equal(t, "attachment.pdf", name)

	file, err := store.Open("attachment.pdf")
	require.NoError(t, err)
	defer file.Close()

	body, err := io.ReadAll(file)
	require.NoError(t, err)
	assert.Equal(t, "file-body", string(body))
}

func TestDeleteMissingFileIsNoop(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	assert.NoError(t, store.Delete("never-existed.png"))
}

func TestNewLocalStorageCreatesBaseDir(t *testing.T) {
	base := filepath.Join(t.TempDir(), "nested", "uploads")
	store, err := NewLocalStorage(base)
	require.NoError(t, err)
	assert.Equal(t, base, store.BasePath())

	info, err := os.Stat(base)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}
