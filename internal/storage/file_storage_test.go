// internal/storage/file_storage_test.go
package storage

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStorage(t *testing.T) *FileStorage {
	t.Helper()
	fs, err := NewFileStorage(filepath.Join(t.TempDir(), "store"))
	require.NoError(t, err)
	return fs
}

func TestSaveAndLoadText(t *testing.T) {
	fs := newTestStorage(t)

	require.NoError(t, fs.SaveTextFile("exports", "ebook.md", []byte("# Title")))
	assert.True(t, fs.FileExists("exports", "ebook.md"))
	assert.False(t, fs.FileExists("exports", "ebook.md.tmp"))

	data, err := fs.LoadTextFile("exports", "ebook.md")
	require.NoError(t, err)
	assert.Equal(t, "# Title", string(data))
}

func TestSaveOverwrites(t *testing.T) {
	fs := newTestStorage(t)
	require.NoError(t, fs.SaveTextFile("", "a.txt", []byte("one")))
	require.NoError(t, fs.SaveTextFile("", "a.txt", []byte("two")))

	data, err := fs.LoadTextFile("", "a.txt")
	require.NoError(t, err)
	assert.Equal(t, "two", string(data))
}

func TestJSONRoundTrip(t *testing.T) {
	fs := newTestStorage(t)
	in := map[string]interface{}{"name": "Q3 Product Launch"}
	require.NoError(t, fs.SaveJSONFile("campaigns", "q3.json", in))

	var out map[string]interface{}
	require.NoError(t, fs.LoadJSONFile("campaigns", "q3.json", &out))
	assert.Equal(t, "Q3 Product Launch", out["name"])

	require.NoError(t, fs.SaveTextFile("campaigns", "broken.json", []byte("{")))
	assert.Error(t, fs.LoadJSONFile("campaigns", "broken.json", &out))
}

func TestRejectsEscapingPaths(t *testing.T) {
	fs := newTestStorage(t)
	assert.Error(t, fs.SaveTextFile("", "../evil.txt", []byte("x")))
	assert.Error(t, fs.SaveTextFile("../outside", "evil.txt", []byte("x")))
	assert.Error(t, fs.SaveTextFile("", "", []byte("x")))

	_, err := os.Stat(filepath.Join(filepath.Dir(fs.BaseDir), "evil.txt"))
	assert.True(t, os.IsNotExist(err))
}

func TestListAndDelete(t *testing.T) {
	fs := newTestStorage(t)

	files, err := fs.ListFiles("none")
	require.NoError(t, err)
	assert.Empty(t, files)

	require.NoError(t, fs.SaveTextFile("out", "b.txt", []byte("b")))
	require.NoError(t, fs.SaveTextFile("out", "a.txt", []byte("a")))
	files, err = fs.ListFiles("out")
	require.NoError(t, err)
	assert.Equal(t, []string{"a.txt", "b.txt"}, files)

	require.NoError(t, fs.DeleteFile("out", "a.txt"))
	assert.Error(t, fs.DeleteFile("out", "a.txt"))
	assert.False(t, fs.FileExists("out", "a.txt"))
}

func TestConcurrentWritesSameFile(t *testing.T) {
	fs := newTestStorage(t)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, fs.SaveTextFile("out", "shared.txt", []byte("content")))
		}()
	}
	wg.Wait()

	data, err := fs.LoadTextFile("out", "shared.txt")
	require.NoError(t, err)
	assert.Equal(t, "content", string(data))
}
