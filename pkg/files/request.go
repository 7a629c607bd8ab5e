package files

import (
	"io"

	"github.com/marmos91/dittofiles/pkg/metadata"
	"github.com/marmos91/dittofiles/pkg/session"
)

// Parameter names read from Request.Parameters.
const (
	// ParamFile carries the record id (or the claimed hash for UploadBinary).
	ParamFile = "file"

	// ParamUser selects the owner whose usage is reported.
	ParamUser = "user"
)

// Request is the input of every Controller operation.
//
// It mirrors what an outer request layer would hand over after decoding a
// call: the caller's session, the optional query for list operations, path
// parameters, a decoded body and, for uploads, the raw byte stream.
type Request struct {
	// Session is the authenticated caller. A nil session fails every permission check.
	Session *session.Session

	// Method is the verb used by the outer layer. It is informational only.
	Method string

	// Query filters GetAll results.
	Query metadata.Query

	// Parameters holds path parameters such as ParamFile.
	Parameters map[string]string

	// Body is a FileInput, *FileInput or a decoded JSON object (map[string]any).
	Body any

	// Stream is the upload payload for UploadBinary.
	Stream io.Reader
}

// Param returns the named path parameter or "".
func (r Request) Param(name string) string {
	if r.Parameters == nil {
		return ""
	}
	return r.Parameters[name]
}

