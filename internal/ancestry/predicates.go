package ancestry

import (
	"forestry/internal/store"
)

// Predicates derive store query conditions from a node's materialized path.
// Each function decodes the node's own path; a malformed stored path
// surfaces as a FormatError rather than a wrong query.

// Ancestors matches every ancestor of r: id membership in r's decoded path.
func Ancestors(r store.Record) (store.Condition, error) {
	ids, err := Decode(r.Path)
	if err != nil {
		return store.Condition{}, err
	}
	return store.IDIn(ids), nil
}

// PathSet matches r itself plus every ancestor of r.
func PathSet(r store.Record) (store.Condition, error) {
	ids, err := Decode(r.Path)
	if err != nil {
		return store.Condition{}, err
	}
	return store.IDIn(append(ids, r.ID)), nil
}

// Children matches the direct children of r: exact equality with r's child
// path. A child of a root node carries a non-null path, so the condition is
// never a null check.
func Children(r store.Record) (store.Condition, error) {
	cp, err := ChildPath(r)
	if err != nil {
		return store.Condition{}, err
	}
	return store.PathEq(*cp), nil
}

// Siblings matches nodes with exactly r's path value, nulls included: the
// siblings of a root are the other roots.
func Siblings(r store.Record) store.Condition {
	if r.Path == nil {
		return store.PathIsNull()
	}
	return store.PathEq(*r.Path)
}

// Descendants matches every node below r: path equal to r's child path, or
// beginning with the child path plus a separator. The trailing separator in
// the prefix keeps id 1 from matching descendants of id 10.
func Descendants(r store.Record) (store.Condition, error) {
	cp, err := ChildPath(r)
	if err != nil {
		return store.Condition{}, err
	}
	return descendantsOf(*cp), nil
}

func descendantsOf(childPath string) store.Condition {
	return store.Or(
		store.PathEq(childPath),
		store.PathPrefix(childPath+Separator),
	)
}

// Subtree matches r and every descendant of r.
func Subtree(r store.Record) (store.Condition, error) {
	desc, err := Descendants(r)
	if err != nil {
		return store.Condition{}, err
	}
	return store.Or(store.IDEq(r.ID), desc), nil
}

// Depth is the number of ancestors of r, recomputed from its path.
func Depth(r store.Record) (int, error) {
	ids, err := Decode(r.Path)
	if err != nil {
		return 0, err
	}
	return len(ids), nil
}

// RootID returns the id of the root of r's tree: the first path element, or
// r's own id when r is a root.
func RootID(r store.Record) (int64, error) {
	ids, err := Decode(r.Path)
	if err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return r.ID, nil
	}
	return ids[0], nil
}

// ParentID returns the id of r's direct parent (innermost path element) and
// false when r is a root.
func ParentID(r store.Record) (int64, bool, error) {
	ids, err := Decode(r.Path)
	if err != nil {
		return 0, false, err
	}
	if len(ids) == 0 {
		return 0, false, nil
	}
	return ids[len(ids)-1], true, nil
}

// DepthScope is a depth-bound combinator relative to an absolute depth.
type DepthScope string

const (
	BeforeDepth DepthScope = "before"
	ToDepth     DepthScope = "to"
	AtDepth     DepthScope = "at"
	FromDepth   DepthScope = "from"
	AfterDepth  DepthScope = "after"
)

var depthOps = map[DepthScope]store.CmpOp{
	BeforeDepth: store.CmpLT,
	ToDepth:     store.CmpLE,
	AtDepth:     store.CmpEQ,
	FromDepth:   store.CmpGE,
	AfterDepth:  store.CmpGT,
}

// DepthCondition translates a depth-bound combinator into a comparison
// against the cached depth column. The schema must have depth caching
// enabled; without the cache there is no column to compare against.
func DepthCondition(schema Schema, scope DepthScope, depth int64) (store.Condition, error) {
	if !schema.CacheDepth {
		return store.Condition{}, &ConfigurationError{Reason: "depth scope " + string(scope) + " requires depth caching"}
	}
	op, ok := depthOps[scope]
	if !ok {
		return store.Condition{}, &ConfigurationError{Reason: "unknown depth scope " + string(scope)}
	}
	return store.DepthCmp(op, depth), nil
}

// CompareAncestry orders records for traversal and arrangement: roots first,
// then paths compared segment-by-segment numerically, shorter prefixes
// first, ties broken by id. Numeric segment comparison keeps ancestors ahead
// of descendants even for multi-digit ids, where a plain lexicographic
// comparison would put "10" before "9".
func CompareAncestry(a, b store.Record) int {
	as, aerr := Decode(a.Path)
	bs, berr := Decode(b.Path)
	// Malformed paths sort last so the well-formed forest stays contiguous.
	if aerr != nil || berr != nil {
		switch {
		case aerr != nil && berr != nil:
			return compareID(a.ID, b.ID)
		case aerr != nil:
			return 1
		default:
			return -1
		}
	}
	n := len(as)
	if len(bs) < n {
		n = len(bs)
	}
	for i := 0; i < n; i++ {
		if as[i] != bs[i] {
			if as[i] < bs[i] {
				return -1
			}
			return 1
		}
	}
	if len(as) != len(bs) {
		if len(as) < len(bs) {
			return -1
		}
		return 1
	}
	return compareID(a.ID, b.ID)
}

func compareID(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
