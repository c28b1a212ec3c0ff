package ancestry

import (
	"forestry/internal/store"
)

// TreeNode is one node of an arrangement with its direct children in
// insertion order. The per-level id index keeps descent O(1) per step even
// for very wide levels.
type TreeNode struct {
	Record   store.Record
	Children []*TreeNode

	index map[int64]*TreeNode
}

// Arrangement is the nested in-memory reconstruction of the forest.
type Arrangement struct {
	root TreeNode
}

// Roots returns the top-level trees in insertion order.
func (a *Arrangement) Roots() []*TreeNode {
	return a.root.Children
}

// Nested is the id-keyed nested-map view of an arrangement: each node maps
// to the nested map of its own children.
type Nested map[int64]Nested

// NestedIDs flattens the arrangement to its id structure, mainly for
// assertions and serialization.
func (a *Arrangement) NestedIDs() Nested {
	return nestedOf(&a.root)
}

func nestedOf(n *TreeNode) Nested {
	out := make(Nested, len(n.Children))
	for _, child := range n.Children {
		out[child.Record.ID] = nestedOf(child)
	}
	return out
}

// Walk visits every node depth-first in arrangement order. depth is zero
// for top-level nodes.
func (a *Arrangement) Walk(visit func(n *TreeNode, depth int)) {
	var walk func(n *TreeNode, depth int)
	walk = func(n *TreeNode, depth int) {
		for _, child := range n.Children {
			visit(child, depth)
			walk(child, depth+1)
		}
	}
	walk(&a.root, 0)
}

// ArrangeRecords builds a nested hierarchy from a flat listing that must be
// ancestry-ordered: ancestors before their descendants, subtrees
// contiguous. For each record the insertion cursor descends from the top
// level through the ancestor ids that are present at the cursor's level;
// the record is then inserted at wherever the cursor ended up. A listing
// violating the ordering contract produces a flattened (not failed)
// arrangement, which is why OrderedByAncestry uses a numeric-aware
// comparison rather than raw string order.
func ArrangeRecords(rows []store.Record) (*Arrangement, error) {
	a := &Arrangement{root: TreeNode{index: make(map[int64]*TreeNode)}}
	for _, r := range rows {
		ancestors, err := Decode(r.Path)
		if err != nil {
			return nil, err
		}
		cursor := &a.root
		for _, ancestor := range ancestors {
			next, ok := cursor.index[ancestor]
			if !ok {
				continue
			}
			cursor = next
		}
		node := &TreeNode{Record: r, index: make(map[int64]*TreeNode)}
		cursor.Children = append(cursor.Children, node)
		cursor.index[r.ID] = node
	}
	return a, nil
}
