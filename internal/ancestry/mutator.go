package ancestry

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"forestry/internal/observability"
	"forestry/internal/store"
)

// cascade is installed as the store's path-change trigger. After a
// maintained save changes a persisted node's path, every descendant located
// under the node's pre-change child path is rewritten: the leading old child
// path is replaced by the new one, the remainder kept verbatim.
//
// Descendant writes go through SaveRaw, so they neither re-enter this
// trigger nor refresh cached depth. Only the moved node's own depth is
// maintained (by the validation hook during the triggering save); callers
// needing correct cached depth below the moved node run RebuildDepthCache.
//
// The rewrite is not transactional. An interruption leaves some descendants
// under the old prefix; wrap the triggering save in a store-level
// transaction when atomicity matters.
func (s *Service) cascade(ctx context.Context, r store.Record, wasPath *string) error {
	ctx, done := s.begin(ctx, "cascade")
	defer done()

	oldIDs, err := Decode(wasPath)
	if err != nil {
		return fmt.Errorf("decode pre-change path of node %d: %w", r.ID, err)
	}
	oldChild := *Encode(append(oldIDs, r.ID))
	newChildPtr, err := ChildPath(r)
	if err != nil {
		return err
	}
	newChild := *newChildPtr

	cond := descendantsOf(oldChild)
	descendants, err := s.st.List(ctx, store.Query{Where: &cond})
	if err != nil {
		return fmt.Errorf("list descendants of node %d: %w", r.ID, err)
	}

	for _, d := range descendants {
		rewritten := rewritePrefix(*d.Path, oldChild, newChild)
		d.Path = &rewritten
		if err := s.st.SaveRaw(ctx, d); err != nil {
			return fmt.Errorf("rewrite descendant %d of node %d: %w", d.ID, r.ID, err)
		}
		observability.CascadeRewritesTotal.Inc()
	}

	s.log.Debug("cascaded path change",
		slog.Int64("node", r.ID),
		slog.String("old_child_path", oldChild),
		slog.String("new_child_path", newChild),
		slog.Int("descendants", len(descendants)))
	return nil
}

// rewritePrefix replaces the leading oldChild prefix of path with newChild.
// path is either exactly oldChild or oldChild followed by a separator and
// the untouched remainder.
func rewritePrefix(path, oldChild, newChild string) string {
	if path == oldChild {
		return newChild
	}
	return newChild + strings.TrimPrefix(path, oldChild)
}
