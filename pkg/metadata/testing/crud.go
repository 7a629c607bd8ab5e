package testing

import (
	"context"
	"testing"

	"github.com/marmos91/dittofiles/pkg/metadata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (suite *StoreTestSuite) RunCRUDTests(test *testing.T) {
	test.Run("Create_Get", suite.TestCreate_Get)
	test.Run("Create_Duplicate", suite.TestCreate_Duplicate)
	test.Run("Get_NotFound", suite.TestGet_NotFound)
	test.Run("Get_ReturnsCopy", suite.TestGet_ReturnsCopy)
	test.Run("Update_Success", suite.TestUpdate_Success)
	test.Run("Update_NotFound", suite.TestUpdate_NotFound)
	test.Run("Delete_Success", suite.TestDelete_Success)
	test.Run("Delete_NotFound", suite.TestDelete_NotFound)
}

// TestCreate_Get verifies a created record round-trips through Get.
func (suite *StoreTestSuite) TestCreate_Get(test *testing.T) {
	store := suite.newStore(test)
	ctx := context.Background()

	f := NewFileRecord("alice", "/docs", "report.pdf", "h1", 128)
	require.NoError(test, store.Create(ctx, f))

	got, err := store.Get(ctx, f.ID)
	require.NoError(test, err)

	assert.Equal(test, f.ID, got.ID)
	assert.Equal(test, "alice", got.OwnerID)
	assert.Equal(test, "/docs", got.Path)
	assert.Equal(test, "report.pdf", got.Name)
	assert.Equal(test, "h1", got.Hash)
	assert.Equal(test, int64(128), got.Size)
	assert.Equal(test, metadata.StatusDefault, got.Status)
	assert.True(test, f.Created.Equal(got.Created))
}

func (suite *StoreTestSuite) TestCreate_Duplicate(test *testing.T) {
	store := suite.newStore(test)
	ctx := context.Background()

	f := NewFolderRecord("alice", "", "docs")
	require.NoError(test, store.Create(ctx, f))

	err := store.Create(ctx, f)
	AssertErrorCode(test, metadata.ErrAlreadyExists, err)
}

func (suite *StoreTestSuite) TestGet_NotFound(test *testing.T) {
	store := suite.newStore(test)

	_, err := store.Get(context.Background(), "missing")
	AssertErrorCode(test, metadata.ErrNotFound, err)
}

// TestGet_ReturnsCopy verifies callers cannot mutate stored state through returned records.
func (suite *StoreTestSuite) TestGet_ReturnsCopy(test *testing.T) {
	store := suite.newStore(test)
	ctx := context.Background()

	f := NewFolderRecord("alice", "", "docs")
	require.NoError(test, store.Create(ctx, f))

	f.Name = "changed-after-create"
	got, err := store.Get(ctx, f.ID)
	require.NoError(test, err)
	got.Name = "changed-after-get"

	again, err := store.Get(ctx, f.ID)
	require.NoError(test, err)
	assert.Equal(test, "docs", again.Name)
}

func (suite *StoreTestSuite) TestUpdate_Success(test *testing.T) {
	store := suite.newStore(test)
	ctx := context.Background()

	f := NewFileRecord("alice", "", "a.txt", "h1", 1)
	f.Status = metadata.StatusNotUploaded
	require.NoError(test, store.Create(ctx, f))

	err := store.Update(ctx, f.ID, metadata.Patch{
		Hash:   metadata.Ptr("h2"),
		Status: metadata.Ptr(metadata.StatusDefault),
		Path:   metadata.Ptr("/moved"),
	})
	require.NoError(test, err)

	got, err := store.Get(ctx, f.ID)
	require.NoError(test, err)
	assert.Equal(test, "h2", got.Hash)
	assert.Equal(test, metadata.StatusDefault, got.Status)
	assert.Equal(test, "/moved", got.Path)
	assert.Equal(test, "a.txt", got.Name)

	// The hash index must follow the update
	byOld, err := store.GetAll(ctx, metadata.Query{metadata.Eq(metadata.FieldHash, "h1")})
	require.NoError(test, err)
	assert.Empty(test, byOld)

	byNew, err := store.GetAll(ctx, metadata.Query{metadata.Eq(metadata.FieldHash, "h2")})
	require.NoError(test, err)
	assert.Equal(test, []string{f.ID}, ids(byNew))
}

func (suite *StoreTestSuite) TestUpdate_NotFound(test *testing.T) {
	store := suite.newStore(test)

	err := store.Update(context.Background(), "missing", metadata.Patch{Name: metadata.Ptr("x")})
	AssertErrorCode(test, metadata.ErrNotFound, err)
}

func (suite *StoreTestSuite) TestDelete_Success(test *testing.T) {
	store := suite.newStore(test)
	ctx := context.Background()

	f := NewFileRecord("alice", "", "a.txt", "h1", 1)
	require.NoError(test, store.Create(ctx, f))
	require.NoError(test, store.Delete(ctx, f.ID))

	_, err := store.Get(ctx, f.ID)
	AssertErrorCode(test, metadata.ErrNotFound, err)

	byHash, err := store.GetAll(ctx, metadata.Query{metadata.Eq(metadata.FieldHash, "h1")})
	require.NoError(test, err)
	assert.Empty(test, byHash)
}

func (suite *StoreTestSuite) TestDelete_NotFound(test *testing.T) {
	store := suite.newStore(test)

	err := store.Delete(context.Background(), "missing")
	AssertErrorCode(test, metadata.ErrNotFound, err)
}
