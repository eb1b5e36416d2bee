package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestArchiveStoresCopies(t *testing.T) {
	t.Parallel()

	a := New()
	body := []byte("original")
	require.NoError(t, a.Save(context.Background(), "obj", body))

	body[0] = 'X'
	stored, ok := a.Object("obj")
	require.True(t, ok)
	require.Equal(t, "original", string(stored))
	require.Equal(t, 1, a.Len())
}

func TestArchiveMissingObject(t *testing.T) {
	t.Parallel()

	_, ok := New().Object("absent")
	require.False(t, ok)
}
