package ancestry

import (
	"context"
	"fmt"
	"log/slog"

	"forestry/internal/observability"
	"forestry/internal/store"
)

// RestoreIntegrity repairs a forest without assuming it is currently valid.
// It never raises for data it can repair; unrecoverable relationships
// (dangling or cyclic parents) are resolved by demoting nodes to roots, not
// by failing. Four phases:
//
//  1. normalize: any node with a malformed path is demoted to root;
//  2. parent map: each node's direct parent is taken from the innermost
//     path entry, but only when that parent actually exists;
//  3. cycle breaking: walking the parent map upward from each node, a walk
//     that returns to its starting node severs that node's parent entry;
//  4. rebuild: every path is reconstructed from the now-acyclic parent map
//     and written raw, bypassing cascade and validation hooks.
//
// Raw writes here are the source of truth; cached depth is refreshed in the
// same write when the schema caches depth, since the correct value is known.
func (s *Service) RestoreIntegrity(ctx context.Context) error {
	ctx, done := s.begin(ctx, "restore_integrity")
	defer done()

	rows, err := s.st.List(ctx, store.Query{Order: []store.Order{{Field: store.FieldID}}})
	if err != nil {
		return fmt.Errorf("list nodes: %w", err)
	}

	// Phase 1: demote malformed paths to root.
	for i, r := range rows {
		if Validate(r.Path) == nil {
			continue
		}
		s.log.Warn("normalizing malformed path", slog.Int64("node", r.ID), slog.String("raw", rawPath(r.Path)))
		r.Path = nil
		if err := s.rawWrite(ctx, r); err != nil {
			return fmt.Errorf("normalize node %d: %w", r.ID, err)
		}
		rows[i] = r
		observability.RestoreRepairsTotal.WithLabelValues("normalize").Inc()
	}

	exists := make(map[int64]bool, len(rows))
	for _, r := range rows {
		exists[r.ID] = true
	}

	// Phase 2: direct parent per node, roots and dangling parents excluded.
	parent := make(map[int64]int64, len(rows))
	for _, r := range rows {
		ancestors, err := Decode(r.Path)
		if err != nil || len(ancestors) == 0 {
			continue
		}
		direct := ancestors[len(ancestors)-1]
		if exists[direct] {
			parent[r.ID] = direct
		}
	}

	// Phase 3: sever cycles. The step guard covers walks that enter a cycle
	// not containing the start; those cycles are severed when one of their
	// own members is processed.
	for _, r := range rows {
		cur, ok := parent[r.ID]
		steps := 0
		for ok {
			if cur == r.ID {
				s.log.Warn("breaking ancestry cycle", slog.Int64("node", r.ID))
				delete(parent, r.ID)
				observability.RestoreRepairsTotal.WithLabelValues("break_cycle").Inc()
				break
			}
			steps++
			if steps > len(rows) {
				break
			}
			cur, ok = parent[cur]
		}
	}

	// Phase 4: rebuild every path from the acyclic parent map.
	for _, r := range rows {
		chain := make([]int64, 0, 4)
		cur, ok := parent[r.ID]
		steps := 0
		for ok && steps <= len(rows) {
			chain = append(chain, cur)
			steps++
			cur, ok = parent[cur]
		}
		reverse(chain)

		rebuilt := Encode(chain)
		if store.PathEquals(r.Path, rebuilt) && !s.depthStale(r, len(chain)) {
			continue
		}
		r.Path = rebuilt
		if err := s.rawWrite(ctx, r); err != nil {
			return fmt.Errorf("rebuild node %d: %w", r.ID, err)
		}
		observability.RestoreRepairsTotal.WithLabelValues("rebuild").Inc()
	}

	s.log.Info("integrity restored", slog.Int("nodes", len(rows)))
	return nil
}

// rawWrite persists a record bypassing hooks, pacing against the write
// limiter and refreshing cached depth from the path being written.
func (s *Service) rawWrite(ctx context.Context, r store.Record) error {
	if err := s.limiter.Wait(ctx, 1); err != nil {
		return err
	}
	if s.schema.CacheDepth {
		ids, err := Decode(r.Path)
		if err == nil {
			d := int64(len(ids))
			r.Depth = &d
		}
	}
	return s.st.SaveRaw(ctx, r)
}

func (s *Service) depthStale(r store.Record, want int) bool {
	if !s.schema.CacheDepth {
		return false
	}
	return r.Depth == nil || *r.Depth != int64(want)
}

func reverse(ids []int64) {
	for i, j := 0, len(ids)-1; i < j; i, j = i+1, j-1 {
		ids[i], ids[j] = ids[j], ids[i]
	}
}
