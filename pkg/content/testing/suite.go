// Package testing provides a reusable conformance suite for content.Store
// implementations.
package testing

import (
	"testing"

	"github.com/marmos91/dittofiles/pkg/content"
)

// StoreTestSuite tests the content.Store contract, not implementation
// details, so every backend (memory, filesystem, S3) runs the same checks.
//
// Usage:
//
//	func TestMyContentStore(t *testing.T) {
//	    suite := &testing.StoreTestSuite{
//	        NewStore: func(t *testing.T) content.Store {
//	            return mystore.New()
//	        },
//	    }
//	    suite.Run(t)
//	}
type StoreTestSuite struct {
	// NewStore creates a fresh, empty store for each test.
	NewStore func(t *testing.T) content.Store
}

// Run executes all tests in the suite.
func (suite *StoreTestSuite) Run(t *testing.T) {
	t.Run("BasicOperations", suite.RunBasicTests)
	t.Run("Keys", suite.RunKeyTests)
	t.Run("Copy", suite.RunCopyTests)
	t.Run("GarbageCollection", suite.RunGCTests)
}

func (suite *StoreTestSuite) newStore(t *testing.T) content.Store {
	t.Helper()
	store := suite.NewStore(t)
	t.Cleanup(func() { _ = store.Close() })
	return store
}
