package testing

import (
	"context"
	"testing"

	"github.com/marmos91/dittofiles/pkg/content"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunCopyTests exercises content.Copy, which uses the backend's Copier when
// implemented and falls back to streaming otherwise.
func (suite *StoreTestSuite) RunCopyTests(t *testing.T) {
	t.Run("Copy_Success", suite.testCopySuccess)
	t.Run("Copy_SourceMissing", suite.testCopySourceMissing)
}

func (suite *StoreTestSuite) testCopySuccess(t *testing.T) {
	store := suite.newStore(t)
	src := content.TempKey(generateTestKey("copy-src"))
	dst := generateTestKey("copy-dst")

	mustWrite(t, store, src, []byte("promote me"))
	require.NoError(t, content.Copy(context.Background(), store, src, dst))

	assertContentEquals(t, store, dst, []byte("promote me"))
	assertContentEquals(t, store, src, []byte("promote me"))
}

func (suite *StoreTestSuite) testCopySourceMissing(t *testing.T) {
	store := suite.newStore(t)

	err := content.Copy(context.Background(), store, generateTestKey("nope"), generateTestKey("dst"))
	assert.ErrorIs(t, err, content.ErrContentNotFound)
}
