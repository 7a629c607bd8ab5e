package metadata

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"
)

// Field names a File attribute usable in a Predicate.
type Field string

const (
	FieldID      Field = "id"
	FieldOwnerID Field = "ownerId"
	FieldSize    Field = "size"
	FieldPath    Field = "path"
	FieldName    Field = "name"
	FieldHash    Field = "hash"
	FieldStatus  Field = "status"
	FieldCreated Field = "created"
	FieldUpdated Field = "updated"
)

var fieldKinds = map[Field]valueKind{
	FieldID:      kindString,
	FieldOwnerID: kindString,
	FieldSize:    kindInt,
	FieldPath:    kindString,
	FieldName:    kindString,
	FieldHash:    kindString,
	FieldStatus:  kindStatus,
	FieldCreated: kindTime,
	FieldUpdated: kindTime,
}

// Valid reports whether f is a known File field.
func (f Field) Valid() bool {
	_, ok := fieldKinds[f]
	return ok
}

// Op is a comparison operator.
type Op string

const (
	OpEq Op = "="
	OpLt Op = "<"
	OpGt Op = ">"
)

// Valid reports whether o is a supported operator.
func (o Op) Valid() bool {
	return o == OpEq || o == OpLt || o == OpGt
}

type valueKind int

const (
	kindString valueKind = iota
	kindInt
	kindStatus
	kindTime
)

// Predicate constrains one field of a File.
type Predicate struct {
	Field Field
	Op    Op
	Value any
}

func (p Predicate) String() string {
	return fmt.Sprintf("%s%s%v", p.Field, p.Op, p.Value)
}

// Eq matches records whose field equals value.
func Eq(field Field, value any) Predicate {
	return Predicate{Field: field, Op: OpEq, Value: value}
}

// Lt matches records whose field is less than value.
func Lt(field Field, value any) Predicate {
	return Predicate{Field: field, Op: OpLt, Value: value}
}

// Gt matches records whose field is greater than value.
func Gt(field Field, value any) Predicate {
	return Predicate{Field: field, Op: OpGt, Value: value}
}

// Query is a conjunction of predicates. The empty Query matches every record.
type Query []Predicate

// And returns a new Query with the given predicates appended.
func (q Query) And(preds ...Predicate) Query {
	out := make(Query, 0, len(q)+len(preds))
	out = append(out, q...)
	return append(out, preds...)
}

// Without returns a new Query with every predicate on field removed.
func (q Query) Without(field Field) Query {
	out := make(Query, 0, len(q))
	for _, p := range q {
		if p.Field != field {
			out = append(out, p)
		}
	}
	return out
}

// EqualityValue returns the value of the first equality predicate on field.
func (q Query) EqualityValue(field Field) (any, bool) {
	for _, p := range q {
		if p.Field == field && p.Op == OpEq {
			return p.Value, true
		}
	}
	return nil, false
}

// Normalize validates every predicate and converts values to the canonical
// Go type of their field (string, int64, FileStatus or time.Time).
//
// Backends call Normalize before evaluating a query so that callers may pass
// untyped numbers, e.g. values decoded from JSON.
func (q Query) Normalize() (Query, error) {
	out := make(Query, len(q))
	for i, p := range q {
		kind, ok := fieldKinds[p.Field]
		if !ok {
			return nil, &StoreError{
				Code:    ErrInvalidArgument,
				Message: fmt.Sprintf("unknown query field %q", p.Field),
			}
		}
		if !p.Op.Valid() {
			return nil, &StoreError{
				Code:    ErrInvalidArgument,
				Message: fmt.Sprintf("unsupported operator %q on field %s", p.Op, p.Field),
			}
		}
		v, err := coerce(kind, p.Value)
		if err != nil {
			return nil, &StoreError{
				Code:    ErrInvalidArgument,
				Message: fmt.Sprintf("field %s: %v", p.Field, err),
			}
		}
		out[i] = Predicate{Field: p.Field, Op: p.Op, Value: v}
	}
	return out, nil
}

// Match reports whether f satisfies every predicate. q must be normalized.
func (q Query) Match(f *File) bool {
	for _, p := range q {
		c, ok := compare(FieldValue(f, p.Field), p.Value)
		if !ok {
			return false
		}
		switch p.Op {
		case OpEq:
			if c != 0 {
				return false
			}
		case OpLt:
			if c >= 0 {
				return false
			}
		case OpGt:
			if c <= 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}

func (q Query) String() string {
	parts := make([]string, len(q))
	for i, p := range q {
		parts[i] = p.String()
	}
	return strings.Join(parts, " AND ")
}

// ParseQuery converts a suffix-keyed query object ({"path=": "/docs",
// "size>": 10}) into a Query. Keys are applied in sorted order so the result
// is deterministic.
func ParseQuery(raw map[string]any) (Query, error) {
	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	q := make(Query, 0, len(raw))
	for _, k := range keys {
		if len(k) < 2 {
			return nil, &StoreError{Code: ErrInvalidArgument, Message: fmt.Sprintf("malformed query key %q", k)}
		}
		field, op := Field(k[:len(k)-1]), Op(k[len(k)-1:])
		q = append(q, Predicate{Field: field, Op: op, Value: raw[k]})
	}
	return q.Normalize()
}

// FieldValue returns the value of field on f in its canonical type.
func FieldValue(f *File, field Field) any {
	switch field {
	case FieldID:
		return f.ID
	case FieldOwnerID:
		return f.OwnerID
	case FieldSize:
		return f.Size
	case FieldPath:
		return f.Path
	case FieldName:
		return f.Name
	case FieldHash:
		return f.Hash
	case FieldStatus:
		return f.Status
	case FieldCreated:
		return f.Created
	case FieldUpdated:
		return f.Updated
	default:
		return nil
	}
}

func coerce(kind valueKind, v any) (any, error) {
	switch kind {
	case kindString:
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("expected string, got %T", v)
		}
		return s, nil
	case kindInt:
		n, err := toInt64(v)
		if err != nil {
			return nil, err
		}
		return n, nil
	case kindStatus:
		if s, ok := v.(FileStatus); ok {
			return s, nil
		}
		n, err := toInt64(v)
		if err != nil {
			return nil, err
		}
		return FileStatus(n), nil
	case kindTime:
		switch t := v.(type) {
		case time.Time:
			return t, nil
		case string:
			parsed, err := time.Parse(time.RFC3339Nano, t)
			if err != nil {
				return nil, err
			}
			return parsed, nil
		}
		return nil, fmt.Errorf("expected time, got %T", v)
	}
	return nil, fmt.Errorf("unsupported value %T", v)
}

func toInt64(v any) (int64, error) {
	switch n := v.(type) {
	case int:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case int64:
		return n, nil
	case uint32:
		return int64(n), nil
	case uint64:
		if n > math.MaxInt64 {
			return 0, fmt.Errorf("value %d overflows int64", n)
		}
		return int64(n), nil
	case float64:
		if n != math.Trunc(n) {
			return 0, fmt.Errorf("expected integer, got %v", n)
		}
		return int64(n), nil
	case FileStatus:
		return int64(n), nil
	}
	return 0, fmt.Errorf("expected integer, got %T", v)
}

// compare returns -1, 0 or 1. ok is false when the values are not comparable.
func compare(a, b any) (int, bool) {
	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		if !ok {
			return 0, false
		}
		return strings.Compare(av, bv), true
	case int64:
		bv, ok := b.(int64)
		if !ok {
			return 0, false
		}
		return cmpInt(av, bv), true
	case FileStatus:
		bv, ok := b.(FileStatus)
		if !ok {
			return 0, false
		}
		return cmpInt(int64(av), int64(bv)), true
	case time.Time:
		bv, ok := b.(time.Time)
		if !ok {
			return 0, false
		}
		return av.Compare(bv), true
	}
	return 0, false
}

func cmpInt(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
