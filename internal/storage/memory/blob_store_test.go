package memory

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBlobStoreRoundTrip(t *testing.T) {
	t.Parallel()

	store := NewBlobStore()
	uri, err := store.PutObject(context.Background(), "favicons/abc", "image/png", bytes.NewReader([]byte{1, 2, 3}))
	require.NoError(t, err)
	require.Equal(t, "memory://favicons/abc", uri)
	require.Equal(t, 1, store.Len())

	payload, ok := store.Object("favicons/abc")
	require.True(t, ok)
	require.Equal(t, []byte{1, 2, 3}, payload)

	_, ok = store.Object("favicons/missing")
	require.False(t, ok)
}

func TestBlobStoreOverwrites(t *testing.T) {
	t.Parallel()

	store := NewBlobStore()
	_, err := store.PutObject(context.Background(), "k", "", bytes.NewReader([]byte("one")))
	require.NoError(t, err)
	_, err = store.PutObject(context.Background(), "k", "", bytes.NewReader([]byte("two")))
	require.NoError(t, err)

	payload, ok := store.Object("k")
	require.True(t, ok)
	require.Equal(t, []byte("two"), payload)
	require.Equal(t, 1, store.Len())
}
