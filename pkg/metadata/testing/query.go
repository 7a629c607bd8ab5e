package testing

import (
	"context"
	"testing"

	"github.com/marmos91/dittofiles/pkg/metadata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (suite *StoreTestSuite) RunQueryTests(test *testing.T) {
	test.Run("GetAll_Equality", suite.TestGetAll_Equality)
	test.Run("GetAll_Range", suite.TestGetAll_Range)
	test.Run("GetAll_EmptyQuery", suite.TestGetAll_EmptyQuery)
	test.Run("GetAll_InvalidQuery", suite.TestGetAll_InvalidQuery)
	test.Run("GetAll_HashAndStatus", suite.TestGetAll_HashAndStatus)
}

// seed creates a small tree for two owners:
//
//	alice: /docs (folder), /docs/a.txt (h1), /docs/b.txt (h1, pending), /c.txt (h2)
//	bob:   /docs (folder), /docs/a.txt (h1)
func seed(test *testing.T, store metadata.Store) map[string]*metadata.File {
	test.Helper()
	ctx := context.Background()

	pending := NewFileRecord("alice", "/docs", "b.txt", "h1", 20)
	pending.Status = metadata.StatusNotUploaded

	records := map[string]*metadata.File{
		"alice/docs": NewFolderRecord("alice", "", "docs"),
		"alice/a":    NewFileRecord("alice", "/docs", "a.txt", "h1", 10),
		"alice/b":    pending,
		"alice/c":    NewFileRecord("alice", "", "c.txt", "h2", 30),
		"bob/docs":   NewFolderRecord("bob", "", "docs"),
		"bob/docs/a": NewFileRecord("bob", "/docs", "a.txt", "h1", 10),
	}
	for _, f := range records {
		require.NoError(test, store.Create(ctx, f))
	}
	return records
}

func (suite *StoreTestSuite) TestGetAll_Equality(test *testing.T) {
	store := suite.newStore(test)
	records := seed(test, store)

	got, err := store.GetAll(context.Background(), metadata.Query{
		metadata.Eq(metadata.FieldOwnerID, "alice"),
		metadata.Eq(metadata.FieldPath, "/docs"),
	})
	require.NoError(test, err)
	assert.ElementsMatch(test, []string{records["alice/a"].ID, records["alice/b"].ID}, ids(got))
}

func (suite *StoreTestSuite) TestGetAll_Range(test *testing.T) {
	store := suite.newStore(test)
	records := seed(test, store)
	ctx := context.Background()

	got, err := store.GetAll(ctx, metadata.Query{
		metadata.Gt(metadata.FieldSize, 10),
		metadata.Lt(metadata.FieldSize, 31),
	})
	require.NoError(test, err)
	assert.ElementsMatch(test, []string{records["alice/b"].ID, records["alice/c"].ID}, ids(got))

	folders, err := store.GetAll(ctx, metadata.Query{metadata.Gt(metadata.FieldStatus, metadata.StatusDefault)})
	require.NoError(test, err)
	assert.ElementsMatch(test, []string{records["alice/docs"].ID, records["bob/docs"].ID}, ids(folders))
}

func (suite *StoreTestSuite) TestGetAll_EmptyQuery(test *testing.T) {
	store := suite.newStore(test)
	records := seed(test, store)

	got, err := store.GetAll(context.Background(), nil)
	require.NoError(test, err)
	assert.Len(test, got, len(records))
}

func (suite *StoreTestSuite) TestGetAll_InvalidQuery(test *testing.T) {
	store := suite.newStore(test)

	_, err := store.GetAll(context.Background(), metadata.Query{metadata.Eq("colour", "red")})
	AssertErrorCode(test, metadata.ErrInvalidArgument, err)
}

// TestGetAll_HashAndStatus exercises the reference-count query shape.
func (suite *StoreTestSuite) TestGetAll_HashAndStatus(test *testing.T) {
	store := suite.newStore(test)
	records := seed(test, store)

	got, err := store.GetAll(context.Background(), metadata.Query{
		metadata.Eq(metadata.FieldHash, "h1"),
		metadata.Eq(metadata.FieldStatus, metadata.StatusDefault),
	})
	require.NoError(test, err)
	assert.ElementsMatch(test, []string{records["alice/a"].ID, records["bob/docs/a"].ID}, ids(got))
}
