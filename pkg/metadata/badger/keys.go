package badger

import (
	"bytes"
)

// Database Key Namespace Design
// ==============================
//
// BadgerDB is a key-value store, so records and their secondary indexes live
// under prefixed keys:
//
// Data Type        Prefix   Key Format                    Value
// ================================================================
// File Data        "f:"     f:<id>                        File (JSON)
// Hash Index       "h:"     h:<hash>\x00<id>              empty
// Owner Index      "o:"     o:<ownerID>\x00<id>           empty
//
// The hash index serves the reference-count and upload-completion queries
// (hash=H AND status=S). The owner index serves owner-scoped listings and
// folder child lookups (ownerId=U AND path=P). Any other query scans "f:".
//
// A NUL byte separates the indexed value from the id so that a value that is
// a prefix of another value ("a" vs "ab") never shares a scan range.

const (
	prefixFile  = "f:"
	prefixHash  = "h:"
	prefixOwner = "o:"
	indexSep    = byte(0)
)

func keyFile(id string) []byte {
	return []byte(prefixFile + id)
}

func keyHashIndex(hash, id string) []byte {
	return append(keyHashPrefix(hash), id...)
}

func keyHashPrefix(hash string) []byte {
	return append([]byte(prefixHash+hash), indexSep)
}

func keyOwnerIndex(owner, id string) []byte {
	return append(keyOwnerPrefix(owner), id...)
}

func keyOwnerPrefix(owner string) []byte {
	return append([]byte(prefixOwner+owner), indexSep)
}

// idFromKey extracts the record id from a primary or index key.
func idFromKey(key []byte) string {
	if bytes.HasPrefix(key, []byte(prefixFile)) {
		return string(key[len(prefixFile):])
	}
	if i := bytes.IndexByte(key, indexSep); i >= 0 {
		return string(key[i+1:])
	}
	return ""
}
