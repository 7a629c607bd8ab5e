package postgres

import (
	"fmt"
	"strings"

	"github.com/marmos91/dittofiles/pkg/metadata"
)

const selectColumns = `id, owner_id, size, path, name, hash, status, created_at, updated_at`

var columns = map[metadata.Field]string{
	metadata.FieldID:      "id",
	metadata.FieldOwnerID: "owner_id",
	metadata.FieldSize:    "size",
	metadata.FieldPath:    "path",
	metadata.FieldName:    "name",
	metadata.FieldHash:    "hash",
	metadata.FieldStatus:  "status",
	metadata.FieldCreated: "created_at",
	metadata.FieldUpdated: "updated_at",
}

// buildWhere renders a normalized query as a WHERE clause with positional
// placeholders starting at $start. An empty query renders as "".
func buildWhere(q metadata.Query, start int) (string, []any) {
	if len(q) == 0 {
		return "", nil
	}

	conds := make([]string, len(q))
	args := make([]any, len(q))
	for i, p := range q {
		conds[i] = fmt.Sprintf("%s %s $%d", columns[p.Field], p.Op, start+i)
		args[i] = sqlValue(p.Value)
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// buildSet renders the non-nil fields of a patch as a SET clause with
// placeholders starting at $1.
func buildSet(p metadata.Patch) (string, []any) {
	var sets []string
	var args []any

	add := func(col string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}

	if p.OwnerID != nil {
		add("owner_id", *p.OwnerID)
	}
	if p.Size != nil {
		add("size", *p.Size)
	}
	if p.Path != nil {
		add("path", *p.Path)
	}
	if p.Name != nil {
		add("name", *p.Name)
	}
	if p.Hash != nil {
		add("hash", *p.Hash)
	}
	if p.Status != nil {
		add("status", int(*p.Status))
	}
	if p.Updated != nil {
		add("updated_at", *p.Updated)
	}
	return strings.Join(sets, ", "), args
}

func sqlValue(v any) any {
	if s, ok := v.(metadata.FileStatus); ok {
		return int(s)
	}
	return v
}
