package local

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestArchiveSaveWritesNestedObject(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	a, err := New(dir)
	require.NoError(t, err)

	err = a.Save(context.Background(), "run-1/page.html", []byte("<html>body</html>"))
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dir, "run-1", "page.html"))
	require.NoError(t, err)
	require.Equal(t, "<html>body</html>", string(data))
}

func TestArchiveSaveRejectsTraversal(t *testing.T) {
	t.Parallel()

	a, err := New(t.TempDir())
	require.NoError(t, err)

	err = a.Save(context.Background(), "../escape.html", []byte("x"))
	require.Error(t, err)
}

func TestNewCreatesMissingBaseDir(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "archive")
	_, err := New(dir)
	require.NoError(t, err)

	info, err := os.Stat(dir)
	require.NoError(t, err)
	require.True(t, info.IsDir())
}

func TestNewRequiresBaseDir(t *testing.T) {
	t.Parallel()

	_, err := New("  ")
	require.Error(t, err)
}
