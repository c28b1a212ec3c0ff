package ancestry

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"forestry/internal/observability"
	"forestry/internal/shared/util"
	"forestry/internal/store"
)

// Service binds the path algebra to a concrete record store under an
// immutable schema descriptor. Construction installs the store hooks:
// validation on maintained saves, the cascade trigger on path changes, and
// orphan resolution before hooked deletes.
//
// The service performs no locking of its own. Concurrent structural
// mutations of overlapping subtrees race; callers serialize them, typically
// with an external lock keyed by the affected subtree's root id, or by
// running each cascade inside a store-level transaction.
type Service struct {
	st      store.Store
	schema  Schema
	log     *slog.Logger
	limiter *util.Limiter
}

// Option configures a Service.
type Option func(*Service)

// WithLogger replaces the default slog logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.log = l }
}

// WithWriteLimiter paces bulk maintenance writes (restore, depth rebuild,
// migration). Cascades triggered by single moves are not paced.
func WithWriteLimiter(l *util.Limiter) Option {
	return func(s *Service) { s.limiter = l }
}

// New builds a Service over st and installs its hooks on the store.
func New(st store.Store, schema Schema, opts ...Option) *Service {
	s := &Service{
		st:     st,
		schema: schema,
		log:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	st.SetHooks(store.Hooks{
		Validate:        s.validate,
		AfterPathChange: s.cascade,
		BeforeDelete:    s.resolveOrphans,
	})
	return s
}

// Schema returns the immutable schema descriptor in effect.
func (s *Service) Schema() Schema { return s.schema }

// Store exposes the underlying record store.
func (s *Service) Store() store.Store { return s.st }

// begin opens a span and a duration observation for a public operation.
func (s *Service) begin(ctx context.Context, op string) (context.Context, func()) {
	ctx, span := observability.Tracer.Start(ctx, "ancestry."+op)
	start := time.Now()
	return ctx, func() {
		observability.OperationDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
		span.End()
	}
}

// validate is the pre-save hook for maintained writes: path format,
// self-ancestry, and (when caching is enabled) the non-negative depth check
// plus recomputation of the cached depth from the path being saved. A
// failure blocks the save and is returned to the caller as a
// ValidationError; the record may be fixed and retried.
func (s *Service) validate(ctx context.Context, r *store.Record, wasPath *string) error {
	ids, err := Decode(r.Path)
	if err != nil {
		return &ValidationError{Field: "path", Reason: err.Error()}
	}
	if r.ID != 0 {
		for _, id := range ids {
			if id == r.ID {
				return &ValidationError{Field: "path", Reason: fmt.Sprintf("node %d cannot be its own ancestor", r.ID)}
			}
		}
	}
	if s.schema.CacheDepth {
		if r.Depth != nil && *r.Depth < 0 {
			return &ValidationError{Field: "depth", Reason: "cached depth must be a non-negative integer"}
		}
		depth := int64(len(ids))
		r.Depth = &depth
	} else {
		r.Depth = nil
	}
	return nil
}

// Create persists a new node under the given parent (nil for a root).
func (s *Service) Create(ctx context.Context, name string, parentID *int64) (store.Record, error) {
	ctx, done := s.begin(ctx, "create")
	defer done()

	var path *string
	if parentID != nil {
		parent, err := s.st.Get(ctx, *parentID)
		if err != nil {
			return store.Record{}, fmt.Errorf("load parent %d: %w", *parentID, err)
		}
		path, err = ChildPath(parent)
		if err != nil {
			return store.Record{}, err
		}
	}
	return s.st.Create(ctx, store.Record{Name: name, Path: path})
}

// Move reassigns a node's parent (nil for root). The maintained save runs
// validation, which rejects self-ancestry (including moves under the node's
// own descendants, whose paths contain the node's id), and then triggers
// the descendant cascade.
func (s *Service) Move(ctx context.Context, id int64, parentID *int64) error {
	ctx, done := s.begin(ctx, "move")
	defer done()

	r, err := s.st.Get(ctx, id)
	if err != nil {
		return err
	}
	if parentID == nil {
		r.Path = nil
	} else {
		parent, err := s.st.Get(ctx, *parentID)
		if err != nil {
			return fmt.Errorf("load parent %d: %w", *parentID, err)
		}
		r.Path, err = ChildPath(parent)
		if err != nil {
			return err
		}
	}
	return s.st.Save(ctx, r)
}

// DeleteNode removes a node through the hooked delete path, letting the
// schema's orphan strategy dispose of its descendants.
func (s *Service) DeleteNode(ctx context.Context, id int64) error {
	ctx, done := s.begin(ctx, "delete")
	defer done()
	return s.st.Delete(ctx, id)
}

// Node loads a single record.
func (s *Service) Node(ctx context.Context, id int64) (store.Record, error) {
	return s.st.Get(ctx, id)
}

// Roots lists the root nodes.
func (s *Service) Roots(ctx context.Context) ([]store.Record, error) {
	ctx, done := s.begin(ctx, "roots")
	defer done()
	cond := store.PathIsNull()
	return s.st.List(ctx, store.Query{Where: &cond, Order: idOrder()})
}

// AncestorsOf lists the ancestors of the node, root first.
func (s *Service) AncestorsOf(ctx context.Context, id int64) ([]store.Record, error) {
	ctx, done := s.begin(ctx, "ancestors_of")
	defer done()

	r, err := s.st.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	cond, err := Ancestors(r)
	if err != nil {
		return nil, err
	}
	rows, err := s.st.List(ctx, store.Query{Where: &cond})
	if err != nil {
		return nil, err
	}
	sortAncestry(rows)
	return rows, nil
}

// ChildrenOf lists the direct children of the node.
func (s *Service) ChildrenOf(ctx context.Context, id int64) ([]store.Record, error) {
	ctx, done := s.begin(ctx, "children_of")
	defer done()

	r, err := s.st.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	cond, err := Children(r)
	if err != nil {
		return nil, err
	}
	return s.st.List(ctx, store.Query{Where: &cond, Order: idOrder()})
}

// DescendantsOf lists every node below the node, ancestry-ordered.
func (s *Service) DescendantsOf(ctx context.Context, id int64) ([]store.Record, error) {
	ctx, done := s.begin(ctx, "descendants_of")
	defer done()

	r, err := s.st.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	cond, err := Descendants(r)
	if err != nil {
		return nil, err
	}
	rows, err := s.st.List(ctx, store.Query{Where: &cond})
	if err != nil {
		return nil, err
	}
	sortAncestry(rows)
	return rows, nil
}

// SubtreeOf lists the node plus its descendants, ancestry-ordered.
func (s *Service) SubtreeOf(ctx context.Context, id int64) ([]store.Record, error) {
	ctx, done := s.begin(ctx, "subtree_of")
	defer done()

	r, err := s.st.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	cond, err := Subtree(r)
	if err != nil {
		return nil, err
	}
	rows, err := s.st.List(ctx, store.Query{Where: &cond})
	if err != nil {
		return nil, err
	}
	sortAncestry(rows)
	return rows, nil
}

// SiblingsOf lists nodes sharing the node's exact path value, the node
// itself included; the siblings of a root are the other roots.
func (s *Service) SiblingsOf(ctx context.Context, id int64) ([]store.Record, error) {
	ctx, done := s.begin(ctx, "siblings_of")
	defer done()

	r, err := s.st.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	cond := Siblings(r)
	return s.st.List(ctx, store.Query{Where: &cond, Order: idOrder()})
}

// ParentOf returns the node's direct parent; ok is false for roots.
func (s *Service) ParentOf(ctx context.Context, id int64) (store.Record, bool, error) {
	r, err := s.st.Get(ctx, id)
	if err != nil {
		return store.Record{}, false, err
	}
	pid, ok, err := ParentID(r)
	if err != nil || !ok {
		return store.Record{}, false, err
	}
	parent, err := s.st.Get(ctx, pid)
	if err != nil {
		return store.Record{}, false, err
	}
	return parent, true, nil
}

// RootOf returns the root of the node's tree; a root is its own root.
func (s *Service) RootOf(ctx context.Context, id int64) (store.Record, error) {
	r, err := s.st.Get(ctx, id)
	if err != nil {
		return store.Record{}, err
	}
	rootID, err := RootID(r)
	if err != nil {
		return store.Record{}, err
	}
	if rootID == r.ID {
		return r, nil
	}
	return s.st.Get(ctx, rootID)
}

// IsRoot reports whether the node has no ancestors.
func (s *Service) IsRoot(ctx context.Context, id int64) (bool, error) {
	r, err := s.st.Get(ctx, id)
	if err != nil {
		return false, err
	}
	return r.Path == nil, nil
}

// HasChildren reports whether the node has at least one direct child.
func (s *Service) HasChildren(ctx context.Context, id int64) (bool, error) {
	r, err := s.st.Get(ctx, id)
	if err != nil {
		return false, err
	}
	cond, err := Children(r)
	if err != nil {
		return false, err
	}
	return s.st.Exists(ctx, store.Query{Where: &cond})
}

// IsChildless reports whether the node has no direct children.
func (s *Service) IsChildless(ctx context.Context, id int64) (bool, error) {
	has, err := s.HasChildren(ctx, id)
	return !has, err
}

// DescendantCount counts every node below the node.
func (s *Service) DescendantCount(ctx context.Context, id int64) (int64, error) {
	r, err := s.st.Get(ctx, id)
	if err != nil {
		return 0, err
	}
	cond, err := Descendants(r)
	if err != nil {
		return 0, err
	}
	return s.st.Count(ctx, store.Query{Where: &cond})
}

// OrderedByAncestry lists the whole forest with ancestors before their
// descendants and subtrees contiguous, using numeric-aware path comparison
// so multi-digit ids cannot break the contract.
func (s *Service) OrderedByAncestry(ctx context.Context) ([]store.Record, error) {
	ctx, done := s.begin(ctx, "ordered_by_ancestry")
	defer done()

	rows, err := s.st.List(ctx, store.Query{})
	if err != nil {
		return nil, err
	}
	sortAncestry(rows)
	return rows, nil
}

// NodesAtDepth lists nodes selected by a depth-bound combinator against the
// cached depth column. Requires depth caching.
func (s *Service) NodesAtDepth(ctx context.Context, scope DepthScope, depth int64) ([]store.Record, error) {
	ctx, done := s.begin(ctx, "nodes_at_depth")
	defer done()

	cond, err := DepthCondition(s.schema, scope, depth)
	if err != nil {
		return nil, err
	}
	return s.st.List(ctx, store.Query{Where: &cond, Order: idOrder()})
}

// DescendantsOfAtDepth lists descendants of the node constrained by a
// depth-bound combinator relative to the node's own depth. Requires depth
// caching.
func (s *Service) DescendantsOfAtDepth(ctx context.Context, id int64, scope DepthScope, relative int64) ([]store.Record, error) {
	ctx, done := s.begin(ctx, "descendants_of_at_depth")
	defer done()

	r, err := s.st.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	own, err := Depth(r)
	if err != nil {
		return nil, err
	}
	depthCond, err := DepthCondition(s.schema, scope, int64(own)+relative)
	if err != nil {
		return nil, err
	}
	desc, err := Descendants(r)
	if err != nil {
		return nil, err
	}
	cond := store.And(desc, depthCond)
	rows, err := s.st.List(ctx, store.Query{Where: &cond})
	if err != nil {
		return nil, err
	}
	sortAncestry(rows)
	return rows, nil
}

// Arrange builds the nested hierarchy of the whole forest.
func (s *Service) Arrange(ctx context.Context) (*Arrangement, error) {
	ctx, done := s.begin(ctx, "arrange")
	defer done()

	rows, err := s.OrderedByAncestry(ctx)
	if err != nil {
		return nil, err
	}
	return ArrangeRecords(rows)
}

// ArrangeSubtree builds the nested hierarchy of one node's subtree.
func (s *Service) ArrangeSubtree(ctx context.Context, id int64) (*Arrangement, error) {
	ctx, done := s.begin(ctx, "arrange_subtree")
	defer done()

	rows, err := s.SubtreeOf(ctx, id)
	if err != nil {
		return nil, err
	}
	return ArrangeRecords(rows)
}

func sortAncestry(rows []store.Record) {
	sort.SliceStable(rows, func(i, j int) bool {
		return CompareAncestry(rows[i], rows[j]) < 0
	})
}

func idOrder() []store.Order {
	return []store.Order{{Field: store.FieldID}}
}
