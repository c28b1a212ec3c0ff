// Package store defines the record store contract the ancestry core operates
// against: flat node records, a small query algebra (equality, prefix match,
// id-set membership, null checks, AND/OR), ordered listings, and the two-tier
// write model. Save runs the installed validation hook and fires the
// path-change trigger; SaveRaw bypasses both and is used by cascading
// maintenance that must not re-enter itself.
package store

import (
	"context"
	"errors"
)

// ErrNotFound is returned when an operation targets an id with no record.
var ErrNotFound = errors.New("record not found")

// Record is a flat node row. A nil Path means the node is a root. Depth is
// populated only when depth caching is enabled for the store's schema; it is
// derived state, never a source of truth. ID zero means not yet persisted.
type Record struct {
	ID    int64
	Name  string
	Path  *string
	Depth *int64
}

// Clone returns a deep copy so callers can mutate results freely.
func (r Record) Clone() Record {
	out := r
	if r.Path != nil {
		p := *r.Path
		out.Path = &p
	}
	if r.Depth != nil {
		d := *r.Depth
		out.Depth = &d
	}
	return out
}

// PathEquals reports whether two path values are equal, treating nil as a
// distinct value (two roots compare equal, root never equals a non-root).
func PathEquals(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// CondKind discriminates the condition algebra.
type CondKind int

const (
	CondIDEq CondKind = iota
	CondIDIn
	CondPathEq
	CondPathNull
	CondPathPrefix
	CondDepthCmp
	CondAnd
	CondOr
)

// CmpOp is a numeric comparison operator for depth conditions.
type CmpOp string

const (
	CmpLT CmpOp = "<"
	CmpLE CmpOp = "<="
	CmpEQ CmpOp = "="
	CmpGE CmpOp = ">="
	CmpGT CmpOp = ">"
)

// Condition is a query predicate tree. Leaves carry their payload in the
// fields matching their kind; And/Or carry sub-conditions. Conditions are
// data, not behavior, so each store implementation can compile them to its
// own query form.
type Condition struct {
	Kind  CondKind
	ID    int64
	IDs   []int64
	Path  string
	Op    CmpOp
	Depth int64
	Subs  []Condition
}

func IDEq(id int64) Condition        { return Condition{Kind: CondIDEq, ID: id} }
func IDIn(ids []int64) Condition     { return Condition{Kind: CondIDIn, IDs: ids} }
func PathEq(path string) Condition   { return Condition{Kind: CondPathEq, Path: path} }
func PathIsNull() Condition          { return Condition{Kind: CondPathNull} }
func PathPrefix(p string) Condition  { return Condition{Kind: CondPathPrefix, Path: p} }
func DepthCmp(op CmpOp, n int64) Condition {
	return Condition{Kind: CondDepthCmp, Op: op, Depth: n}
}
func And(subs ...Condition) Condition { return Condition{Kind: CondAnd, Subs: subs} }
func Or(subs ...Condition) Condition  { return Condition{Kind: CondOr, Subs: subs} }

// Field names an orderable record attribute.
type Field int

const (
	FieldID Field = iota
	FieldPath
	FieldDepth
)

// Order is a single sort key with configurable null placement for nullable
// fields (Path, Depth).
type Order struct {
	Field      Field
	Desc       bool
	NullsFirst bool
}

// Query selects and orders records. A nil Where matches every record.
type Query struct {
	Where *Condition
	Order []Order
	Limit int
}

// Hooks are installed once by the ancestry core. Validate runs before a
// maintained write and may reject it or normalize the record in place;
// wasPath carries the persisted pre-change path value (nil on create).
// AfterPathChange fires after a maintained write whose path value changed.
// BeforeDelete runs before a hooked delete and may veto it by returning an
// error, or perform side-effecting cascades of its own first.
type Hooks struct {
	Validate        func(ctx context.Context, r *Record, wasPath *string) error
	AfterPathChange func(ctx context.Context, r Record, wasPath *string) error
	BeforeDelete    func(ctx context.Context, r Record) error
}

// Store is the narrow persistence contract consumed by the ancestry core.
//
// Create assigns an id and runs the validation hook. Save is the maintained
// write: validation hook, persist, then the path-change trigger when the path
// value actually changed. SaveRaw persists as-is with no hooks, no trigger,
// and no derived-state maintenance. Delete runs BeforeDelete first and aborts
// on its error; DeleteRaw removes the row unconditionally.
type Store interface {
	SetHooks(h Hooks)

	Create(ctx context.Context, r Record) (Record, error)
	Get(ctx context.Context, id int64) (Record, error)
	List(ctx context.Context, q Query) ([]Record, error)
	Count(ctx context.Context, q Query) (int64, error)
	Exists(ctx context.Context, q Query) (bool, error)

	Save(ctx context.Context, r Record) error
	SaveRaw(ctx context.Context, r Record) error
	Delete(ctx context.Context, id int64) error
	DeleteRaw(ctx context.Context, id int64) error

	Close() error
}
