package testing

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync/atomic"
	"testing"

	"github.com/marmos91/dittofiles/pkg/content"
	"github.com/stretchr/testify/require"
)

var keyCounter atomic.Int64

// generateTestKey returns a key unique within the test binary.
func generateTestKey(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, keyCounter.Add(1))
}

func mustWrite(t *testing.T, store content.Store, key string, data []byte) {
	t.Helper()
	n, err := store.Write(context.Background(), key, bytes.NewReader(data))
	require.NoError(t, err)
	require.Equal(t, int64(len(data)), n)
}

func assertContentEquals(t *testing.T, store content.Store, key string, expected []byte) {
	t.Helper()
	rc, err := store.Read(context.Background(), key)
	require.NoError(t, err)
	defer func() { _ = rc.Close() }()

	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.Equal(t, expected, got)
}

func assertExists(t *testing.T, store content.Store, key string, expected bool) {
	t.Helper()
	exists, err := store.Exists(context.Background(), key)
	require.NoError(t, err)
	require.Equal(t, expected, exists, "exists(%s)", key)
}
