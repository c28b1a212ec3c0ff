package ancestry

import (
	"context"
	"fmt"

	"forestry/internal/observability"
	"forestry/internal/store"
)

// CheckIntegrity validates the whole forest read-only and fails fast on the
// first violation, scanning in the store's natural (id) order. Three checks
// run per node:
//
//  1. path format;
//  2. every ancestor id resolves to an existing node;
//  3. parent consistency: walking each node's path as (child, parent) pairs,
//     every denormalized sighting of an id must agree on that id's parent.
//
// A violation is reported as an IntegrityError and never repaired here;
// RestoreIntegrity is the healing counterpart.
func (s *Service) CheckIntegrity(ctx context.Context) error {
	ctx, done := s.begin(ctx, "check_integrity")
	defer done()

	rows, err := s.st.List(ctx, store.Query{Order: []store.Order{{Field: store.FieldID}}})
	if err != nil {
		return fmt.Errorf("list nodes: %w", err)
	}

	exists := make(map[int64]bool, len(rows))
	for _, r := range rows {
		exists[r.ID] = true
	}

	recordedParent := make(map[int64]*int64, len(rows))
	for _, r := range rows {
		ancestors, err := Decode(r.Path)
		if err != nil {
			observability.IntegrityViolationsTotal.WithLabelValues(string(MalformedPath)).Inc()
			return &IntegrityError{Kind: MalformedPath, NodeID: r.ID, Raw: rawPath(r.Path)}
		}
		for _, ancestor := range ancestors {
			if !exists[ancestor] {
				observability.IntegrityViolationsTotal.WithLabelValues(string(DanglingReference)).Inc()
				return &IntegrityError{Kind: DanglingReference, NodeID: r.ID, Missing: ancestor}
			}
		}

		chain := append(ancestors, r.ID)
		for i, child := range chain {
			var parent *int64
			if i > 0 {
				p := chain[i-1]
				parent = &p
			}
			seen, ok := recordedParent[child]
			if !ok {
				recordedParent[child] = parent
				continue
			}
			if !sameParent(seen, parent) {
				observability.IntegrityViolationsTotal.WithLabelValues(string(ConflictingParent)).Inc()
				return &IntegrityError{
					Kind:     ConflictingParent,
					NodeID:   r.ID,
					Subject:  child,
					Expected: seen,
					Found:    parent,
				}
			}
		}
	}
	return nil
}

func sameParent(a, b *int64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func rawPath(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
