package memory

import (
	"testing"

	"github.com/marmos91/dittofiles/pkg/content"
	contenttesting "github.com/marmos91/dittofiles/pkg/content/testing"
)

// TestMemoryContentStore runs the complete content.Store test suite
// against the MemoryContentStore implementation.
func TestMemoryContentStore(t *testing.T) {
	suite := &contenttesting.StoreTestSuite{
		NewStore: func(t *testing.T) content.Store {
			return NewMemoryContentStore()
		},
	}

	suite.Run(t)
}
