package file

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"imgadapt/internal/core/port"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) {
	return 0, errors.New("connection reset")
}

func TestNewBatch(t *testing.T) {
	w, err := NewWorkspace(t.TempDir())
	require.NoError(t, err)

	id, err := w.NewBatch()
	require.NoError(t, err)
	assert.Len(t, id, 8)

	assert.DirExists(t, w.InputDir(id))
	assert.DirExists(t, w.OutputDir(id))
}

func TestSave(t *testing.T) {
	tests := []struct {
		name      string
		uploads   []port.Upload
		wantNames []string
	}{
		{
			name: "success",
			uploads: []port.Upload{
				{Name: "a.png", Body: strings.NewReader("aaa")},
				{Name: "b.jpg", Body: strings.NewReader("bb")},
			},
			wantNames: []string{"a.png", "b.jpg"},
		},
		{
			name: "path components stripped",
			uploads: []port.Upload{
				{Name: "../../etc/passwd.png", Body: strings.NewReader("x")},
			},
			wantNames: []string{"passwd.png"},
		},
		{
			name: "failed upload skipped",
			uploads: []port.Upload{
				{Name: "broken.png", Body: io.MultiReader(strings.NewReader("par"), failingReader{})},
				{Name: "ok.png", Body: strings.NewReader("ok")},
			},
			wantNames: []string{"ok.png"},
		},
		{
			name:    "empty",
			uploads: nil,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			w, err := NewWorkspace(t.TempDir())
			require.NoError(t, err)
			id, err := w.NewBatch()
			require.NoError(t, err)

			items, err := w.Save(t.Context(), id, tc.uploads)
			require.NoError(t, err)
			require.Len(t, items, len(tc.wantNames))

			for i, item := range items {
				assert.Equal(t, tc.wantNames[i], item.Name)
				assert.Equal(t, w.InputDir(id), filepath.Dir(item.Path))
				assert.True(t, strings.HasSuffix(filepath.Base(item.Path), "_"+tc.wantNames[i]))
				assert.FileExists(t, item.Path)
			}

			entries, err := os.ReadDir(w.InputDir(id))
			require.NoError(t, err)
			assert.Len(t, entries, len(tc.wantNames), "no partial files left behind")
		})
	}
}

func TestResolve(t *testing.T) {
	w, err := NewWorkspace(t.TempDir())
	require.NoError(t, err)
	id, err := w.NewBatch()
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(w.OutputDir(id), "translated_a.png"), []byte("x"), 0o644))

	path, err := w.Resolve(id, OutputDir, "translated_a.png")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(w.OutputDir(id), "translated_a.png"), path)

	_, err = w.Resolve(id, OutputDir, "../input")
	assert.Error(t, err)
	_, err = w.Resolve("..", OutputDir, "x")
	assert.Error(t, err)
	_, err = w.Resolve(id, "secrets", "translated_a.png")
	assert.Error(t, err)
	_, err = w.Resolve(id, InputDir, "translated_a.png")
	assert.Error(t, err)
}

func TestCleanupIsIdempotent(t *testing.T) {
	w, err := NewWorkspace(t.TempDir())
	require.NoError(t, err)
	id, err := w.NewBatch()
	require.NoError(t, err)

	require.NoError(t, w.Cleanup(id))
	assert.NoDirExists(t, w.InputDir(id))
	require.NoError(t, w.Cleanup(id))

	assert.Error(t, w.Cleanup("../x"))
}
