package ancestry

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"forestry/internal/observability"
	"forestry/internal/store"
)

// resolveOrphans is installed as the store's pre-delete hook. The schema's
// orphan strategy decides the fate of the doomed node's descendants before
// the row itself goes away. Restrict vetoes the delete outright; rootify and
// destroy cascade first and then let the delete proceed.
func (s *Service) resolveOrphans(ctx context.Context, r store.Record) error {
	ctx, done := s.begin(ctx, "resolve_orphans")
	defer done()

	switch s.schema.Strategy {
	case Restrict:
		return s.restrictDeletion(ctx, r)
	case Rootify:
		return s.rootifyDescendants(ctx, r)
	case Destroy:
		return s.destroyDescendants(ctx, r)
	}
	return &ConfigurationError{Reason: "unknown orphan strategy " + string(s.schema.Strategy)}
}

func (s *Service) restrictDeletion(ctx context.Context, r store.Record) error {
	cond, err := Children(r)
	if err != nil {
		return err
	}
	hasChildren, err := s.st.Exists(ctx, store.Query{Where: &cond})
	if err != nil {
		return fmt.Errorf("check children of node %d: %w", r.ID, err)
	}
	if hasChildren {
		return &DeletionRestrictedError{NodeID: r.ID}
	}
	return nil
}

// rootifyDescendants makes each direct child a root and strips the deleted
// node's child path (plus separator) from the front of every deeper
// descendant's path, preserving the relative structure of the subtree.
func (s *Service) rootifyDescendants(ctx context.Context, r store.Record) error {
	childPath, err := ChildPath(r)
	if err != nil {
		return err
	}
	cond := descendantsOf(*childPath)
	descendants, err := s.st.List(ctx, store.Query{Where: &cond})
	if err != nil {
		return fmt.Errorf("list descendants of node %d: %w", r.ID, err)
	}

	for _, d := range descendants {
		if *d.Path == *childPath {
			d.Path = nil
		} else {
			stripped := strings.TrimPrefix(*d.Path, *childPath+Separator)
			d.Path = &stripped
		}
		if err := s.rawWrite(ctx, d); err != nil {
			return fmt.Errorf("rootify descendant %d of node %d: %w", d.ID, r.ID, err)
		}
		observability.OrphansResolvedTotal.WithLabelValues(string(Rootify)).Inc()
	}

	s.log.Debug("rootified orphans", slog.Int64("node", r.ID), slog.Int("descendants", len(descendants)))
	return nil
}

// destroyDescendants removes the whole subtree, deepest rows first so no
// surviving row ever references a deleted ancestor mid-pass. The strategy is
// uniform across the subtree, so deleting the rows directly is equivalent to
// re-invoking resolution per descendant, without unbounded recursion on deep
// trees.
func (s *Service) destroyDescendants(ctx context.Context, r store.Record) error {
	childPath, err := ChildPath(r)
	if err != nil {
		return err
	}
	cond := descendantsOf(*childPath)
	descendants, err := s.st.List(ctx, store.Query{Where: &cond})
	if err != nil {
		return fmt.Errorf("list descendants of node %d: %w", r.ID, err)
	}

	sort.SliceStable(descendants, func(i, j int) bool {
		return CompareAncestry(descendants[i], descendants[j]) > 0
	})
	for _, d := range descendants {
		if err := s.st.DeleteRaw(ctx, d.ID); err != nil {
			return fmt.Errorf("destroy descendant %d of node %d: %w", d.ID, r.ID, err)
		}
		observability.OrphansResolvedTotal.WithLabelValues(string(Destroy)).Inc()
	}

	s.log.Debug("destroyed subtree", slog.Int64("node", r.ID), slog.Int("descendants", len(descendants)))
	return nil
}
