package ancestry

import (
	"context"
	"fmt"
	"log/slog"

	"forestry/internal/observability"
	"forestry/internal/store"
)

// RebuildDepthCache recomputes and persists the cached depth of every node
// from its path. Used after enabling caching retroactively, and after move
// cascades left descendant depths stale. Malformed paths are skipped;
// RestoreIntegrity handles those.
func (s *Service) RebuildDepthCache(ctx context.Context) error {
	ctx, done := s.begin(ctx, "rebuild_depth_cache")
	defer done()

	if !s.schema.CacheDepth {
		return &ConfigurationError{Reason: "depth caching is not enabled for this schema"}
	}

	rows, err := s.st.List(ctx, store.Query{Order: []store.Order{{Field: store.FieldID}}})
	if err != nil {
		return fmt.Errorf("list nodes: %w", err)
	}

	updated := 0
	for _, r := range rows {
		ids, err := Decode(r.Path)
		if err != nil {
			s.log.Warn("skipping malformed path during depth rebuild", slog.Int64("node", r.ID))
			continue
		}
		depth := int64(len(ids))
		if r.Depth != nil && *r.Depth == depth {
			continue
		}
		r.Depth = &depth
		if err := s.limiter.Wait(ctx, 1); err != nil {
			return err
		}
		if err := s.st.SaveRaw(ctx, r); err != nil {
			return fmt.Errorf("persist depth of node %d: %w", r.ID, err)
		}
		observability.DepthRebuildRowsTotal.Inc()
		updated++
	}

	s.log.Info("depth cache rebuilt", slog.Int("nodes", len(rows)), slog.Int("updated", updated))
	return nil
}
