package testing

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/marmos91/dittofiles/pkg/content"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunBasicTests executes the Write/Read/Delete/Exists tests.
func (suite *StoreTestSuite) RunBasicTests(t *testing.T) {
	t.Run("Write_Read", suite.testWriteRead)
	t.Run("Write_Empty", suite.testWriteEmpty)
	t.Run("Write_Overwrite", suite.testWriteOverwrite)
	t.Run("Write_Large", suite.testWriteLarge)
	t.Run("Write_CancelledContext", suite.testWriteCancelled)
	t.Run("Read_NotFound", suite.testReadNotFound)
	t.Run("Delete_Success", suite.testDeleteSuccess)
	t.Run("Delete_Idempotent", suite.testDeleteIdempotent)
	t.Run("Exists", suite.testExists)
}

func (suite *StoreTestSuite) testWriteRead(t *testing.T) {
	store := suite.newStore(t)
	key := generateTestKey("write-read")

	mustWrite(t, store, key, []byte("Hello, World!"))
	assertContentEquals(t, store, key, []byte("Hello, World!"))
}

func (suite *StoreTestSuite) testWriteEmpty(t *testing.T) {
	store := suite.newStore(t)
	key := generateTestKey("write-empty")

	mustWrite(t, store, key, []byte{})
	assertExists(t, store, key, true)
	assertContentEquals(t, store, key, []byte{})
}

func (suite *StoreTestSuite) testWriteOverwrite(t *testing.T) {
	store := suite.newStore(t)
	key := generateTestKey("write-overwrite")

	mustWrite(t, store, key, []byte("Old data"))
	mustWrite(t, store, key, []byte("New data that is longer"))
	assertContentEquals(t, store, key, []byte("New data that is longer"))
}

func (suite *StoreTestSuite) testWriteLarge(t *testing.T) {
	store := suite.newStore(t)
	key := generateTestKey("write-large")

	data := bytes.Repeat([]byte("0123456789abcdef"), 256*1024) // 4MB
	mustWrite(t, store, key, data)
	assertContentEquals(t, store, key, data)
}

func (suite *StoreTestSuite) testWriteCancelled(t *testing.T) {
	store := suite.newStore(t)
	key := generateTestKey("write-cancelled")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := store.Write(ctx, key, strings.NewReader("data"))
	require.Error(t, err)
	assertExists(t, store, key, false)
}

func (suite *StoreTestSuite) testReadNotFound(t *testing.T) {
	store := suite.newStore(t)

	_, err := store.Read(context.Background(), generateTestKey("missing"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, content.ErrContentNotFound), "got %v", err)
}

func (suite *StoreTestSuite) testDeleteSuccess(t *testing.T) {
	store := suite.newStore(t)
	key := generateTestKey("delete")

	mustWrite(t, store, key, []byte("data"))
	require.NoError(t, store.Delete(context.Background(), key))
	assertExists(t, store, key, false)

	_, err := store.Read(context.Background(), key)
	assert.ErrorIs(t, err, content.ErrContentNotFound)
}

func (suite *StoreTestSuite) testDeleteIdempotent(t *testing.T) {
	store := suite.newStore(t)
	key := generateTestKey("delete-twice")

	assert.NoError(t, store.Delete(context.Background(), key))
	mustWrite(t, store, key, []byte("data"))
	assert.NoError(t, store.Delete(context.Background(), key))
	assert.NoError(t, store.Delete(context.Background(), key))
}

func (suite *StoreTestSuite) testExists(t *testing.T) {
	store := suite.newStore(t)
	key := generateTestKey("exists")

	assertExists(t, store, key, false)
	mustWrite(t, store, key, []byte("data"))
	assertExists(t, store, key, true)
}
