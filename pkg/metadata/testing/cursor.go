package testing

import (
	"context"
	"testing"

	"github.com/marmos91/dittofiles/pkg/metadata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (suite *StoreTestSuite) RunCursorTests(test *testing.T) {
	test.Run("Cursor_Iterates", suite.TestCursor_Iterates)
	test.Run("Cursor_Restartable", suite.TestCursor_Restartable)
	test.Run("Cursor_Empty", suite.TestCursor_Empty)
}

func (suite *StoreTestSuite) TestCursor_Iterates(test *testing.T) {
	store := suite.newStore(test)
	records := seed(test, store)
	ctx := context.Background()

	cur, err := store.Cursor(ctx, metadata.Query{metadata.Eq(metadata.FieldOwnerID, "alice")})
	require.NoError(test, err)

	got, err := metadata.Collect(ctx, cur)
	require.NoError(test, err)
	assert.ElementsMatch(test, []string{
		records["alice/docs"].ID, records["alice/a"].ID, records["alice/b"].ID, records["alice/c"].ID,
	}, ids(got))
}

// TestCursor_Restartable verifies each Cursor call starts a fresh iteration.
func (suite *StoreTestSuite) TestCursor_Restartable(test *testing.T) {
	store := suite.newStore(test)
	seed(test, store)
	ctx := context.Background()
	q := metadata.Query{metadata.Eq(metadata.FieldHash, "h1")}

	first, err := store.Cursor(ctx, q)
	require.NoError(test, err)
	a, err := metadata.Collect(ctx, first)
	require.NoError(test, err)

	second, err := store.Cursor(ctx, q)
	require.NoError(test, err)
	b, err := metadata.Collect(ctx, second)
	require.NoError(test, err)

	assert.Len(test, a, 3)
	assert.ElementsMatch(test, ids(a), ids(b))
}

func (suite *StoreTestSuite) TestCursor_Empty(test *testing.T) {
	store := suite.newStore(test)
	ctx := context.Background()

	cur, err := store.Cursor(ctx, metadata.Query{metadata.Eq(metadata.FieldOwnerID, "nobody")})
	require.NoError(test, err)
	defer func() { _ = cur.Close() }()

	assert.False(test, cur.Next(ctx))
	assert.NoError(test, cur.Err())
}
