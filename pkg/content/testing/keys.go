package testing

import (
	"context"
	"strings"
	"testing"

	"github.com/marmos91/dittofiles/pkg/content"
	"github.com/stretchr/testify/assert"
)

// RunKeyTests checks that every operation rejects unusable keys.
func (suite *StoreTestSuite) RunKeyTests(t *testing.T) {
	store := suite.newStore(t)
	ctx := context.Background()

	invalid := []string{"", ".", "..", ".hidden", "a/b", "../escape", "with space", strings.Repeat("a", content.MaxKeyLength+1)}

	for _, key := range invalid {
		_, err := store.Write(ctx, key, strings.NewReader("x"))
		assert.ErrorIs(t, err, content.ErrInvalidKey, "write %q", key)

		_, err = store.Read(ctx, key)
		assert.ErrorIs(t, err, content.ErrInvalidKey, "read %q", key)

		_, err = store.Exists(ctx, key)
		assert.ErrorIs(t, err, content.ErrInvalidKey, "exists %q", key)

		assert.ErrorIs(t, store.Delete(ctx, key), content.ErrInvalidKey, "delete %q", key)
	}

	temp := content.TempKey(generateTestKey("abc"))
	mustWrite(t, store, temp, []byte("staged"))
	assertContentEquals(t, store, temp, []byte("staged"))
}
