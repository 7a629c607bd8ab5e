package testing

import (
	"testing"

	"github.com/marmos91/dittofiles/pkg/metadata"
)

// StoreTestSuite is a conformance suite for metadata.Store implementations.
// It tests the interface contract, not implementation details, so every
// backend (memory, badger, cache) runs the same checks.
type StoreTestSuite struct {
	// NewStore creates a fresh, empty store for each test.
	NewStore func(t *testing.T) metadata.Store
}

// Run executes all tests in the suite.
func (suite *StoreTestSuite) Run(test *testing.T) {
	test.Run("CRUD", suite.RunCRUDTests)
	test.Run("Query", suite.RunQueryTests)
	test.Run("Bulk", suite.RunBulkTests)
	test.Run("Cursor", suite.RunCursorTests)
}

// newStore creates a store and closes it when the test ends.
func (suite *StoreTestSuite) newStore(test *testing.T) metadata.Store {
	test.Helper()
	store := suite.NewStore(test)
	test.Cleanup(func() { _ = store.Close() })
	return store
}
