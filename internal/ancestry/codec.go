// Package ancestry implements the materialized-path algebra for flat node
// records: path encoding, tree-query predicates, cascading rewrites on moves,
// orphan resolution on deletes, integrity checking and restoration, depth
// caching, and in-memory arrangement. It operates against the narrow store
// contract in internal/store and holds no state of its own beyond an
// immutable schema descriptor.
package ancestry

import (
	"strconv"
	"strings"

	"forestry/internal/store"
)

// Separator joins ancestor ids in a materialized path, root first.
const Separator = "/"

// Encode joins ancestor ids into a path value. An empty sequence encodes to
// nil: the node is a root.
func Encode(ids []int64) *string {
	if len(ids) == 0 {
		return nil
	}
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	p := strings.Join(parts, Separator)
	return &p
}

// Decode splits a path value into its ancestor ids, root first. A nil or
// empty path decodes to an empty sequence.
func Decode(path *string) ([]int64, error) {
	if path == nil || *path == "" {
		return nil, nil
	}
	segments := strings.Split(*path, Separator)
	ids := make([]int64, len(segments))
	for i, seg := range segments {
		id, err := parseSegment(seg)
		if err != nil {
			return nil, &FormatError{Raw: *path}
		}
		ids[i] = id
	}
	return ids, nil
}

// Validate succeeds iff path is nil or matches the single-separator-joined
// non-negative-integers grammar.
func Validate(path *string) error {
	_, err := Decode(path)
	return err
}

// ChildPath returns the path value every direct child of r must carry:
// r's own path extended with r's id. r must be persisted.
func ChildPath(r store.Record) (*string, error) {
	if r.ID == 0 {
		return nil, &UnpersistedNodeError{}
	}
	ids, err := Decode(r.Path)
	if err != nil {
		return nil, err
	}
	return Encode(append(ids, r.ID)), nil
}

func parseSegment(seg string) (int64, error) {
	if seg == "" {
		return 0, strconv.ErrSyntax
	}
	// Reject signs, spaces, and leading "+": only plain decimal digits.
	for _, c := range seg {
		if c < '0' || c > '9' {
			return 0, strconv.ErrSyntax
		}
	}
	return strconv.ParseInt(seg, 10, 64)
}
