package local

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewRequiresBaseDir(t *testing.T) {
	t.Parallel()

	_, err := New(Config{})
	require.Error(t, err)
	_, err = New(Config{BaseDir: "   "})
	require.Error(t, err)
}

func TestNewCreatesMissingBaseDir(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "cache", "favicons")
	store, err := New(Config{BaseDir: dir})
	require.NoError(t, err)
	require.NotNil(t, store)
	require.DirExists(t, dir)
}

func TestPutObjectWritesFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	store, err := New(Config{BaseDir: dir})
	require.NoError(t, err)

	uri, err := store.PutObject(context.Background(), "favicons/abc", "image/png", bytes.NewReader([]byte("icon")))
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(uri, "file://"))

	data, err := os.ReadFile(filepath.Join(dir, "favicons", "abc"))
	require.NoError(t, err)
	require.Equal(t, []byte("icon"), data)
}

func TestPutObjectRejectsTraversal(t *testing.T) {
	t.Parallel()

	store, err := New(Config{BaseDir: t.TempDir()})
	require.NoError(t, err)

	_, err = store.PutObject(context.Background(), "../outside", "", bytes.NewReader([]byte("x")))
	require.Error(t, err)

	_, err = store.PutObject(context.Background(), "", "", bytes.NewReader([]byte("x")))
	require.Error(t, err)
}
