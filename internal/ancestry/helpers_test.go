package ancestry

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"forestry/internal/store"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newService(t *testing.T, strategy OrphanStrategy, cacheDepth bool) (*Service, *store.Memory) {
	t.Helper()
	schema, err := NewSchema(strategy, cacheDepth)
	if err != nil {
		t.Fatalf("NewSchema: %v", err)
	}
	st := store.NewMemory()
	svc := New(st, schema, WithLogger(quietLogger()))
	return svc, st
}

// mustCreate persists a node through the maintained path and returns it.
func mustCreate(t *testing.T, svc *Service, name string, parent *int64) store.Record {
	t.Helper()
	r, err := svc.Create(context.Background(), name, parent)
	if err != nil {
		t.Fatalf("Create(%s): %v", name, err)
	}
	return r
}

// seedRaw inserts a record bypassing validation, for corrupt fixtures. The
// memory store assigns the next sequential id.
func seedRaw(t *testing.T, st *store.Memory, path *string) store.Record {
	t.Helper()
	r, err := st.Create(context.Background(), store.Record{})
	if err != nil {
		t.Fatalf("seed create: %v", err)
	}
	r.Path = path
	if err := st.SaveRaw(context.Background(), r); err != nil {
		t.Fatalf("seed raw save: %v", err)
	}
	return r
}

func pathOf(t *testing.T, st store.Store, id int64) *string {
	t.Helper()
	r, err := st.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("Get(%d): %v", id, err)
	}
	return r.Path
}

func wantPath(t *testing.T, st store.Store, id int64, want *string) {
	t.Helper()
	got := pathOf(t, st, id)
	if !store.PathEquals(got, want) {
		t.Fatalf("node %d path = %v, want %v", id, deref(got), deref(want))
	}
}

func deref(p *string) string {
	if p == nil {
		return "<nil>"
	}
	return *p
}

func i64(n int64) *int64 { return &n }
