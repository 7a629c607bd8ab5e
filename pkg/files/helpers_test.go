package files

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/marmos91/dittofiles/pkg/content"
	contentmemory "github.com/marmos91/dittofiles/pkg/content/memory"
	"github.com/marmos91/dittofiles/pkg/metadata"
	metamemory "github.com/marmos91/dittofiles/pkg/metadata/memory"
	"github.com/marmos91/dittofiles/pkg/session"
	"github.com/stretchr/testify/require"
)

var errInjected = errors.New("injected failure")

// blobStore wraps the memory content store, counting calls and injecting
// failures per operation.
type blobStore struct {
	*contentmemory.MemoryContentStore

	mu          sync.Mutex
	deletes     map[string]int
	failWrite   error
	failDelete  map[string]error
	writeCalled chan struct{}
}

func newBlobStore() *blobStore {
	return &blobStore{
		MemoryContentStore: contentmemory.NewMemoryContentStore(),
		deletes:            make(map[string]int),
		failDelete:         make(map[string]error),
	}
}

func (b *blobStore) Write(ctx context.Context, key string, r io.Reader) (int64, error) {
	b.mu.Lock()
	failWrite, started := b.failWrite, b.writeCalled
	b.mu.Unlock()

	if started != nil {
		close(started)
	}
	if failWrite != nil {
		return 0, failWrite
	}
	return b.MemoryContentStore.Write(ctx, key, r)
}

func (b *blobStore) Delete(ctx context.Context, key string) error {
	b.mu.Lock()
	b.deletes[key]++
	err := b.failDelete[key]
	b.mu.Unlock()

	if err != nil {
		return err
	}
	return b.MemoryContentStore.Delete(ctx, key)
}

func (b *blobStore) deleteCount(key string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.deletes[key]
}

func (b *blobStore) exists(t *testing.T, key string) bool {
	t.Helper()
	ok, err := b.Exists(context.Background(), key)
	require.NoError(t, err)
	return ok
}

func (b *blobStore) keys(t *testing.T) []string {
	t.Helper()
	keys, err := b.List(context.Background())
	require.NoError(t, err)
	return keys
}

var _ content.Store = (*blobStore)(nil)

type fixture struct {
	ctrl  *Controller
	meta  *metamemory.MemoryMetadataStore
	blobs *blobStore
}

func newFixture(t *testing.T, mutate ...func(*Config)) *fixture {
	t.Helper()

	f := &fixture{
		meta:  metamemory.NewMemoryMetadataStore(),
		blobs: newBlobStore(),
	}
	cfg := Config{Metadata: f.meta, Content: f.blobs}
	for _, m := range mutate {
		m(&cfg)
	}

	ctrl, err := NewController(cfg)
	require.NoError(t, err)
	f.ctrl = ctrl
	return f
}

var (
	alice = session.New("alice", session.PermissionFiles)
	bob   = session.New("bob", session.PermissionFiles)
	admin = session.New("root", session.PermissionFiles, session.PermissionAdmin)
)

func (f *fixture) digest(t *testing.T, data string) string {
	t.Helper()
	d, err := f.ctrl.Hasher().Sum(bytes.NewReader([]byte(data)))
	require.NoError(t, err)
	return d
}

func (f *fixture) create(t *testing.T, s *session.Session, in FileInput) *metadata.File {
	t.Helper()
	rec, err := f.ctrl.Create(context.Background(), Request{Session: s, Body: in})
	require.NoError(t, err)
	return rec
}

func (f *fixture) upload(t *testing.T, s *session.Session, data string) string {
	t.Helper()
	d := f.digest(t, data)
	err := f.ctrl.UploadBinary(context.Background(), Request{
		Session:    s,
		Parameters: map[string]string{ParamFile: d},
		Stream:     bytes.NewReader([]byte(data)),
	})
	require.NoError(t, err)
	return d
}

func (f *fixture) get(t *testing.T, id string) *metadata.File {
	t.Helper()
	rec, err := f.meta.Get(context.Background(), id)
	require.NoError(t, err)
	return rec
}

func (f *fixture) gone(t *testing.T, id string) bool {
	t.Helper()
	_, err := f.meta.Get(context.Background(), id)
	if metadata.IsNotFound(err) {
		return true
	}
	require.NoError(t, err)
	return false
}

func (f *fixture) folders(t *testing.T, owner string) []string {
	t.Helper()
	recs, err := f.meta.GetAll(context.Background(), metadata.Query{
		metadata.Eq(metadata.FieldOwnerID, owner),
		metadata.Eq(metadata.FieldStatus, metadata.StatusFolder),
	})
	require.NoError(t, err)

	out := make([]string, 0, len(recs))
	for _, r := range recs {
		out = append(out, r.FullPath())
	}
	return out
}

func params(id string) map[string]string {
	return map[string]string{ParamFile: id}
}

func stringsReader(s string) io.Reader {
	return bytes.NewReader([]byte(s))
}
