package ancestry

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"forestry/internal/observability"
)

// BuildPathsFromParentColumn is the one-time migration helper: given the
// legacy direct-parent-id relation (nil parent means root), it materializes
// path values top-down for every node reachable from a root. The walk is an
// explicit worklist, not recursion, so arbitrarily deep trees cannot blow
// the stack. Nodes unreachable from any root (cyclic or dangling parents)
// are left untouched; RestoreIntegrity roots those afterwards.
//
// Returns the number of nodes whose path was materialized.
func (s *Service) BuildPathsFromParentColumn(ctx context.Context, parents map[int64]*int64) (int, error) {
	ctx, done := s.begin(ctx, "build_paths_from_parent_column")
	defer done()

	children := make(map[int64][]int64, len(parents))
	roots := make([]int64, 0)
	for id, parent := range parents {
		if parent == nil {
			roots = append(roots, id)
			continue
		}
		if _, ok := parents[*parent]; !ok {
			// Parent id missing from the relation entirely: treat as root
			// candidate rather than dropping the node.
			roots = append(roots, id)
			continue
		}
		children[*parent] = append(children[*parent], id)
	}
	sort.Slice(roots, func(i, j int) bool { return roots[i] < roots[j] })
	for _, kids := range children {
		sort.Slice(kids, func(i, j int) bool { return kids[i] < kids[j] })
	}

	type item struct {
		id        int64
		ancestors []int64
	}
	work := make([]item, 0, len(roots))
	for _, id := range roots {
		work = append(work, item{id: id})
	}

	migrated := 0
	for len(work) > 0 {
		cur := work[len(work)-1]
		work = work[:len(work)-1]

		r, err := s.st.Get(ctx, cur.id)
		if err != nil {
			return migrated, fmt.Errorf("load node %d: %w", cur.id, err)
		}
		r.Path = Encode(cur.ancestors)
		if err := s.rawWrite(ctx, r); err != nil {
			return migrated, fmt.Errorf("materialize path of node %d: %w", cur.id, err)
		}
		observability.MigratedPathsTotal.Inc()
		migrated++

		childAncestors := append(append([]int64{}, cur.ancestors...), cur.id)
		for _, child := range children[cur.id] {
			work = append(work, item{id: child, ancestors: childAncestors})
		}
	}

	s.log.Info("materialized paths from parent column",
		slog.Int("nodes", len(parents)), slog.Int("migrated", migrated))
	return migrated, nil
}
