package ancestry

import (
	"errors"
	"sort"
	"testing"

	"forestry/internal/store"
)

func TestPredicates_Shapes(t *testing.T) {
	n := store.Record{ID: 3, Path: strPtr("1/2")}

	anc, err := Ancestors(n)
	if err != nil {
		t.Fatal(err)
	}
	if anc.Kind != store.CondIDIn || len(anc.IDs) != 2 || anc.IDs[0] != 1 || anc.IDs[1] != 2 {
		t.Errorf("Ancestors = %+v, want id in [1 2]", anc)
	}

	children, err := Children(n)
	if err != nil {
		t.Fatal(err)
	}
	if children.Kind != store.CondPathEq || children.Path != "1/2/3" {
		t.Errorf("Children = %+v, want path == 1/2/3", children)
	}

	sib := Siblings(n)
	if sib.Kind != store.CondPathEq || sib.Path != "1/2" {
		t.Errorf("Siblings = %+v, want path == 1/2", sib)
	}
	rootSib := Siblings(store.Record{ID: 9})
	if rootSib.Kind != store.CondPathNull {
		t.Errorf("Siblings of root = %+v, want path is null", rootSib)
	}

	desc, err := Descendants(n)
	if err != nil {
		t.Fatal(err)
	}
	if desc.Kind != store.CondOr || len(desc.Subs) != 2 {
		t.Fatalf("Descendants = %+v, want OR of two conditions", desc)
	}
	if desc.Subs[0].Path != "1/2/3" || desc.Subs[1].Path != "1/2/3/" {
		t.Errorf("Descendants subs = %q, %q; want child path and child path plus separator",
			desc.Subs[0].Path, desc.Subs[1].Path)
	}

	sub, err := Subtree(n)
	if err != nil {
		t.Fatal(err)
	}
	if sub.Kind != store.CondOr || sub.Subs[0].Kind != store.CondIDEq || sub.Subs[0].ID != 3 {
		t.Errorf("Subtree = %+v, want OR(id == 3, descendants)", sub)
	}
}

func TestDepthAndRoots(t *testing.T) {
	n := store.Record{ID: 3, Path: strPtr("1/2")}

	d, err := Depth(n)
	if err != nil || d != 2 {
		t.Errorf("Depth = %d (%v), want 2", d, err)
	}

	rootID, err := RootID(n)
	if err != nil || rootID != 1 {
		t.Errorf("RootID = %d (%v), want 1", rootID, err)
	}
	selfRoot, err := RootID(store.Record{ID: 7})
	if err != nil || selfRoot != 7 {
		t.Errorf("RootID of root = %d (%v), want 7", selfRoot, err)
	}

	pid, ok, err := ParentID(n)
	if err != nil || !ok || pid != 2 {
		t.Errorf("ParentID = %d ok=%v (%v), want 2 true", pid, ok, err)
	}
	_, ok, err = ParentID(store.Record{ID: 7})
	if err != nil || ok {
		t.Errorf("ParentID of root ok=%v (%v), want false", ok, err)
	}
}

func TestDepthCondition_RequiresCache(t *testing.T) {
	noCache := Schema{Strategy: Rootify}
	_, err := DepthCondition(noCache, AtDepth, 2)
	var ce *ConfigurationError
	if !errors.As(err, &ce) {
		t.Fatalf("DepthCondition without cache returned %v, want *ConfigurationError", err)
	}

	cached := Schema{Strategy: Rootify, CacheDepth: true}
	cond, err := DepthCondition(cached, BeforeDepth, 3)
	if err != nil {
		t.Fatal(err)
	}
	if cond.Kind != store.CondDepthCmp || cond.Op != store.CmpLT || cond.Depth != 3 {
		t.Errorf("DepthCondition(before, 3) = %+v", cond)
	}

	if _, err := DepthCondition(cached, DepthScope("between"), 1); err == nil {
		t.Error("unknown depth scope accepted, want ConfigurationError")
	}
}

// Multi-digit ids must not break ancestors-before-descendants: raw string
// order would put "10/5" before "9", ancestry order must not.
func TestCompareAncestry_NumericSegments(t *testing.T) {
	rows := []store.Record{
		{ID: 5, Path: strPtr("10")},
		{ID: 9},
		{ID: 10},
		{ID: 99, Path: strPtr("9")},
		{ID: 7, Path: strPtr("10/5")},
	}
	sort.SliceStable(rows, func(i, j int) bool {
		return CompareAncestry(rows[i], rows[j]) < 0
	})

	wantIDs := []int64{9, 10, 99, 5, 7}
	for i, want := range wantIDs {
		if rows[i].ID != want {
			t.Fatalf("order[%d] = %d, want %d (full order %v)", i, rows[i].ID, want, ids(rows))
		}
	}
}

func ids(rows []store.Record) []int64 {
	out := make([]int64, len(rows))
	for i, r := range rows {
		out[i] = r.ID
	}
	return out
}
