package files

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/marmos91/dittofiles/internal/ratelimiter"
	"github.com/marmos91/dittofiles/pkg/content"
	"github.com/marmos91/dittofiles/pkg/metadata"
	"github.com/marmos91/dittofiles/pkg/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func uploadReq(s *session.Session, claimed string, r io.Reader) Request {
	return Request{Session: s, Parameters: params(claimed), Stream: r}
}

func TestUpload_FlipsEverySharer(t *testing.T) {
	f := newFixture(t)
	h := f.digest(t, "shared")

	a := f.create(t, alice, FileInput{OwnerID: "alice", Name: "a", Hash: h})
	b := f.create(t, bob, FileInput{OwnerID: "bob", Name: "b", Hash: h})
	other := f.create(t, alice, FileInput{OwnerID: "alice", Name: "other", Hash: f.digest(t, "other")})
	require.Equal(t, metadata.StatusNotUploaded, a.Status)
	require.Equal(t, metadata.StatusNotUploaded, b.Status)

	f.upload(t, bob, "shared")

	assert.Equal(t, metadata.StatusDefault, f.get(t, a.ID).Status)
	assert.Equal(t, metadata.StatusDefault, f.get(t, b.ID).Status)
	assert.Equal(t, metadata.StatusNotUploaded, f.get(t, other.ID).Status)
	assert.Equal(t, []string{h}, f.blobs.keys(t), "only the permanent blob remains")
}

func TestUpload_MismatchChangesNothing(t *testing.T) {
	f := newFixture(t)
	claimed := f.digest(t, "expected")
	rec := f.create(t, alice, FileInput{OwnerID: "alice", Name: "a", Hash: claimed})

	err := f.ctrl.UploadBinary(context.Background(), uploadReq(alice, claimed, strings.NewReader("something else")))
	require.ErrorIs(t, err, ErrHashMismatch)

	var mismatch *HashMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, claimed, mismatch.Claimed)
	assert.Equal(t, f.digest(t, "something else"), mismatch.Computed)

	assert.False(t, f.blobs.exists(t, claimed))
	assert.Empty(t, f.blobs.keys(t), "temporary blob removed")
	assert.Equal(t, 1, f.blobs.deleteCount(content.TempKey(claimed)))
	assert.Equal(t, metadata.StatusNotUploaded, f.get(t, rec.ID).Status)
}

func TestUpload_WrongHash(t *testing.T) {
	f := newFixture(t)

	for _, claimed := range []string{"", "abc", strings.Repeat("Z", 64)} {
		err := f.ctrl.UploadBinary(context.Background(), uploadReq(alice, claimed, strings.NewReader("x")))
		require.ErrorIs(t, err, ErrValidation, claimed)

		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, MsgWrongHash, verr.Message)
	}
	assert.Empty(t, f.blobs.keys(t))
}

func TestUpload_RequiresFilesPermission(t *testing.T) {
	f := newFixture(t)
	h := f.digest(t, "x")

	err := f.ctrl.UploadBinary(context.Background(), uploadReq(session.New("alice"), h, strings.NewReader("x")))
	assert.ErrorIs(t, err, ErrForbidden)

	err = f.ctrl.UploadBinary(context.Background(), Request{Session: alice, Parameters: params(h)})
	assert.ErrorIs(t, err, ErrValidation)
}

type failingReader struct {
	data []byte
	err  error
}

func (r *failingReader) Read(p []byte) (int, error) {
	if len(r.data) == 0 {
		return 0, r.err
	}
	n := copy(p, r.data)
	r.data = r.data[n:]
	return n, nil
}

func TestUpload_StreamFailureCleansUp(t *testing.T) {
	f := newFixture(t)
	h := f.digest(t, "complete payload")
	rec := f.create(t, alice, FileInput{OwnerID: "alice", Name: "a", Hash: h})

	err := f.ctrl.UploadBinary(context.Background(), uploadReq(alice, h, &failingReader{data: []byte("complete"), err: errInjected}))
	require.ErrorIs(t, err, errInjected)

	assert.Empty(t, f.blobs.keys(t))
	assert.Equal(t, 1, f.blobs.deleteCount(content.TempKey(h)))
	assert.Equal(t, metadata.StatusNotUploaded, f.get(t, rec.ID).Status)
}

func TestUpload_BlobWriteFailure(t *testing.T) {
	f := newFixture(t)
	h := f.digest(t, "payload")
	f.blobs.failWrite = errInjected

	err := f.ctrl.UploadBinary(context.Background(), uploadReq(alice, h, strings.NewReader("payload")))
	require.ErrorIs(t, err, errInjected)
	assert.Contains(t, err.Error(), "write temporary blob")
	assert.Equal(t, 1, f.blobs.deleteCount(content.TempKey(h)))
}

func TestUpload_CleanupFailureDoesNotMaskSuccess(t *testing.T) {
	f := newFixture(t)
	h := f.digest(t, "payload")
	rec := f.create(t, alice, FileInput{OwnerID: "alice", Name: "a", Hash: h})
	f.blobs.failDelete[content.TempKey(h)] = errInjected

	err := f.ctrl.UploadBinary(context.Background(), uploadReq(alice, h, strings.NewReader("payload")))
	require.NoError(t, err)
	assert.Equal(t, metadata.StatusDefault, f.get(t, rec.ID).Status)
	assert.True(t, f.blobs.exists(t, h))
}

func TestUpload_CancelledBeforeAdmission(t *testing.T) {
	f := newFixture(t)
	h := f.digest(t, "payload")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := f.ctrl.UploadBinary(ctx, uploadReq(alice, h, strings.NewReader("payload")))
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, f.blobs.keys(t))
}

// gatedReader returns its first chunk, then blocks on gate before returning
// a second chunk.
type gatedReader struct {
	first []byte
	gate  chan struct{}
	reads int
}

func (r *gatedReader) Read(p []byte) (int, error) {
	r.reads++
	switch r.reads {
	case 1:
		return copy(p, r.first), nil
	case 2:
		<-r.gate
		return copy(p, "more"), nil
	default:
		return 0, io.EOF
	}
}

func TestUpload_CancelledMidStream(t *testing.T) {
	f := newFixture(t)
	h := f.digest(t, "partmore")
	rec := f.create(t, alice, FileInput{OwnerID: "alice", Name: "a", Hash: h})

	started := make(chan struct{})
	f.blobs.writeCalled = started

	ctx, cancel := context.WithCancel(context.Background())
	r := &gatedReader{first: []byte("part"), gate: make(chan struct{})}
	done := make(chan error, 1)
	go func() {
		done <- f.ctrl.UploadBinary(ctx, uploadReq(alice, h, r))
	}()

	<-started
	cancel()
	close(r.gate)

	err := <-done
	require.ErrorIs(t, err, context.Canceled)
	assert.False(t, f.blobs.exists(t, h), "nothing promoted")
	assert.Equal(t, 1, f.blobs.deleteCount(content.TempKey(h)), "cleanup runs on a detached context")
	assert.Equal(t, metadata.StatusNotUploaded, f.get(t, rec.ID).Status)
}

func TestUpload_RateLimitedAdmission(t *testing.T) {
	f := newFixture(t, func(c *Config) {
		c.UploadLimiter = ratelimiter.New(0.001, 1)
	})
	h := f.digest(t, "x")

	f.upload(t, alice, "x")

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := f.ctrl.UploadBinary(ctx, uploadReq(alice, h, strings.NewReader("x")))
	require.Error(t, err)
	assert.Equal(t, 1, f.blobs.deleteCount(content.TempKey(h)), "the rejected upload never reached the store")
}

// blockingReader hands out its data and then blocks until released.
type blockingReader struct {
	data    []byte
	release chan struct{}
}

func (r *blockingReader) Read(p []byte) (int, error) {
	if len(r.data) > 0 {
		n := copy(p, r.data)
		r.data = r.data[n:]
		return n, nil
	}
	<-r.release
	return 0, io.EOF
}

func TestUpload_TracksInFlight(t *testing.T) {
	f := newFixture(t)
	h := f.digest(t, "slow")
	started := make(chan struct{})
	f.blobs.writeCalled = started

	r := &blockingReader{data: []byte("slow"), release: make(chan struct{})}
	done := make(chan error, 1)
	go func() {
		done <- f.ctrl.UploadBinary(context.Background(), uploadReq(alice, h, r))
	}()

	<-started
	assert.True(t, f.ctrl.IsUploading(h))

	close(r.release)
	require.NoError(t, <-done)
	assert.False(t, f.ctrl.IsUploading(h))
}

func TestUpload_LargeStream(t *testing.T) {
	f := newFixture(t, func(c *Config) { c.BufferSize = 1024 })
	data := bytes.Repeat([]byte("0123456789abcdef"), 64*1024)

	h := f.digest(t, string(data))
	rec := f.create(t, alice, FileInput{OwnerID: "alice", Name: "big", Hash: h, Size: int64(len(data))})
	require.NoError(t, f.ctrl.UploadBinary(context.Background(), uploadReq(alice, h, bytes.NewReader(data))))

	rc, got, err := f.ctrl.DownloadBinary(context.Background(), Request{Session: alice, Parameters: params(rec.ID)})
	require.NoError(t, err)
	defer func() { _ = rc.Close() }()
	body, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, data, body)
	assert.Equal(t, metadata.StatusDefault, got.Status)
}
