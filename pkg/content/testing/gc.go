package testing

import (
	"context"
	"testing"

	"github.com/marmos91/dittofiles/pkg/content"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunGCTests executes the content.GarbageCollectable tests.
func (suite *StoreTestSuite) RunGCTests(t *testing.T) {
	t.Run("List", suite.testList)
	t.Run("DeleteBatch", suite.testDeleteBatch)
	t.Run("DeleteBatch_Cancelled", suite.testDeleteBatchCancelled)
}

func (suite *StoreTestSuite) gcStore(t *testing.T) (content.Store, content.GarbageCollectable) {
	store := suite.newStore(t)
	gc, ok := store.(content.GarbageCollectable)
	if !ok {
		t.Skip("Store does not implement GarbageCollectable")
	}
	return store, gc
}

func (suite *StoreTestSuite) testList(t *testing.T) {
	store, gc := suite.gcStore(t)
	a := generateTestKey("list-a")
	b := content.TempKey(generateTestKey("list-b"))

	mustWrite(t, store, a, []byte("a"))
	mustWrite(t, store, b, []byte("b"))

	keys, err := gc.List(context.Background())
	require.NoError(t, err)
	assert.Contains(t, keys, a)
	assert.Contains(t, keys, b)
}

func (suite *StoreTestSuite) testDeleteBatch(t *testing.T) {
	store, gc := suite.gcStore(t)
	keep := generateTestKey("batch-keep")
	drop1 := generateTestKey("batch-drop")
	drop2 := generateTestKey("batch-drop")

	for _, k := range []string{keep, drop1, drop2} {
		mustWrite(t, store, k, []byte(k))
	}

	failures, err := gc.DeleteBatch(context.Background(), []string{drop1, drop2, generateTestKey("never-written")})
	require.NoError(t, err)
	assert.Empty(t, failures)

	assertExists(t, store, keep, true)
	assertExists(t, store, drop1, false)
	assertExists(t, store, drop2, false)
}

func (suite *StoreTestSuite) testDeleteBatchCancelled(t *testing.T) {
	store, gc := suite.gcStore(t)
	key := generateTestKey("batch-cancel")
	mustWrite(t, store, key, []byte("data"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := gc.DeleteBatch(ctx, []string{key})
	assert.ErrorIs(t, err, context.Canceled)
	assertExists(t, store, key, true)
}
