// Package hash provides the content hashers used to address blobs.
//
// Digests are encoded as lowercase hex. The algorithm is chosen once per
// deployment (files.hash_algorithm) since changing it orphans every
// existing blob key.
package hash

import (
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	gohash "hash"
	"io"
	"strings"

	"golang.org/x/crypto/blake2b"
)

// Supported algorithm names.
const (
	SHA256     = "sha256"
	SHA512     = "sha512"
	BLAKE2b256 = "blake2b-256"
)

// Default is the algorithm used when none is configured.
const Default = SHA256

// Hasher computes content digests.
type Hasher interface {
	// New returns a fresh streaming hash state.
	New() gohash.Hash

	// Name returns the algorithm name.
	Name() string

	// Size returns the digest length in bytes.
	Size() int

	// Sum reads r to EOF and returns its hex digest.
	Sum(r io.Reader) (string, error)

	// Valid reports whether digest is a well-formed hex digest of this algorithm.
	Valid(digest string) bool
}

type hasher struct {
	name string
	size int
	new  func() gohash.Hash
}

// New returns the Hasher for the named algorithm. The empty name selects Default.
func New(name string) (Hasher, error) {
	switch strings.ToLower(name) {
	case "", SHA256:
		return &hasher{name: SHA256, size: sha256.Size, new: sha256.New}, nil
	case SHA512:
		return &hasher{name: SHA512, size: sha512.Size, new: sha512.New}, nil
	case BLAKE2b256:
		return &hasher{name: BLAKE2b256, size: blake2b.Size256, new: newBlake2b256}, nil
	default:
		return nil, fmt.Errorf("unsupported hash algorithm %q", name)
	}
}

// MustNew is New for known-good names; it panics on error.
func MustNew(name string) Hasher {
	h, err := New(name)
	if err != nil {
		panic(err)
	}
	return h
}

// Algorithms lists the supported algorithm names.
func Algorithms() []string {
	return []string{SHA256, SHA512, BLAKE2b256}
}

func newBlake2b256() gohash.Hash {
	// New256 only fails for keys longer than 64 bytes
	h, _ := blake2b.New256(nil)
	return h
}

func (h *hasher) New() gohash.Hash {
	return h.new()
}

func (h *hasher) Name() string {
	return h.name
}

func (h *hasher) Size() int {
	return h.size
}

func (h *hasher) Sum(r io.Reader) (string, error) {
	state := h.new()
	if _, err := io.Copy(state, r); err != nil {
		return "", fmt.Errorf("hash %s: %w", h.name, err)
	}
	return Encode(state), nil
}

func (h *hasher) Valid(digest string) bool {
	if len(digest) != h.size*2 {
		return false
	}
	for i := 0; i < len(digest); i++ {
		c := digest[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}

// Encode returns the lowercase hex digest of state.
func Encode(state gohash.Hash) string {
	return hex.EncodeToString(state.Sum(nil))
}
