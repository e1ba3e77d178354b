package history

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestFileStore_LoadCreatesMissingFile verifies a missing history file is
// created and reported as empty
func TestFileStore_LoadCreatesMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seen.txt")
	store := NewFileStore(path, quietLogger())

	set, err := store.Load()
	require.NoError(t, err)
	assert.Empty(t, set)

	info, err := os.Stat(path)
	require.NoError(t, err, "history file should have been created")
	assert.Zero(t, info.Size())
}

// TestFileStore_LoadCreatesDirectory verifies parent directories are made
func TestFileStore_LoadCreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "nested", "seen.txt")
	store := NewFileStore(path, quietLogger())

	_, err := store.Load()
	require.NoError(t, err)

	_, err = os.Stat(path)
	assert.NoError(t, err)
}

// TestFileStore_FileFormat verifies one id per line
func TestFileStore_FileFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seen.txt")
	store := NewFileStore(path, quietLogger())

	require.NoError(t, store.Append([]string{"a", "b"}))
	require.NoError(t, store.Append([]string{"c"}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "a\nb\nc\n", string(data))
}

// TestFileStore_LoadToleratesCRLFAndBlankLines verifies hand-edited files
// still load
func TestFileStore_LoadToleratesCRLFAndBlankLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seen.txt")
	require.NoError(t, os.WriteFile(path, []byte("a\r\n\r\nb\n\n"), 0o600))

	set, err := NewFileStore(path, quietLogger()).Load()
	require.NoError(t, err)
	assert.Len(t, set, 2)
	assert.True(t, set.Contains("a"))
	assert.True(t, set.Contains("b"))
}

// TestFileStore_AppendAfterTornWrite verifies a partial last line is not
// merged with the next record
func TestFileStore_AppendAfterTornWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seen.txt")
	require.NoError(t, os.WriteFile(path, []byte("a\nparti"), 0o600))

	store := NewFileStore(path, quietLogger())
	require.NoError(t, store.Append([]string{"b"}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "a\nparti\nb\n", string(data))

	set, err := store.Load()
	require.NoError(t, err)
	assert.True(t, set.Contains("a"))
	assert.True(t, set.Contains("b"))
}
