package ancestry

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"forestry/internal/store"
)

// End-to-end worked example: nodes {1: root, 2: "1", 3: "1/2"}.
func TestService_WorkedExample(t *testing.T) {
	svc, _ := newService(t, Rootify, false)
	ctx := context.Background()

	n1 := mustCreate(t, svc, "one", nil)
	n2 := mustCreate(t, svc, "two", i64(n1.ID))
	mustCreate(t, svc, "three", i64(n2.ID))

	arr, err := svc.Arrange(ctx)
	require.NoError(t, err)
	require.Equal(t, Nested{1: Nested{2: Nested{3: Nested{}}}}, arr.NestedIDs())

	desc, err := svc.DescendantsOf(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, []int64{2, 3}, ids(desc))

	// Reassigning node 2 to root cascades node 3 under it.
	require.NoError(t, svc.Move(ctx, 2, nil))

	roots, err := svc.Roots(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2}, ids(roots))

	n3, err := svc.Node(ctx, 3)
	require.NoError(t, err)
	require.NotNil(t, n3.Path)
	assert.Equal(t, "2", *n3.Path)
}

// Same worked example against the persistent store.
func TestService_WorkedExampleSQLite(t *testing.T) {
	st, err := store.OpenSQLite(filepath.Join(t.TempDir(), "forestry.db"), store.SQLiteOptions{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	schema, err := NewSchema(Rootify, false)
	require.NoError(t, err)
	svc := New(st, schema, WithLogger(quietLogger()))
	ctx := context.Background()

	n1 := mustCreate(t, svc, "one", nil)
	n2 := mustCreate(t, svc, "two", i64(n1.ID))
	mustCreate(t, svc, "three", i64(n2.ID))

	arr, err := svc.Arrange(ctx)
	require.NoError(t, err)
	require.Equal(t, Nested{1: Nested{2: Nested{3: Nested{}}}}, arr.NestedIDs())

	require.NoError(t, svc.Move(ctx, 2, nil))
	wantPath(t, st, 3, strPtr("2"))

	roots, err := svc.Roots(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2}, ids(roots))
}

func TestService_Listings(t *testing.T) {
	svc, _ := newService(t, Rootify, false)
	ctx := context.Background()
	seedForest(t, svc) // 1 -> 2 -> {3,4}, root 5

	anc, err := svc.AncestorsOf(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2}, ids(anc), "ancestors are root first")

	children, err := svc.ChildrenOf(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, []int64{3, 4}, ids(children))

	sib, err := svc.SiblingsOf(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, []int64{3, 4}, ids(sib), "sibling scope includes the node itself")

	rootSib, err := svc.SiblingsOf(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 5}, ids(rootSib), "siblings of a root are the roots")

	sub, err := svc.SubtreeOf(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, []int64{2, 3, 4}, ids(sub))

	ordered, err := svc.OrderedByAncestry(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 5, 2, 3, 4}, ids(ordered))

	count, err := svc.DescendantCount(ctx, 1)
	require.NoError(t, err)
	assert.EqualValues(t, 3, count)
}

func TestService_Accessors(t *testing.T) {
	svc, _ := newService(t, Rootify, false)
	ctx := context.Background()
	seedForest(t, svc)

	parent, ok, err := svc.ParentOf(ctx, 3)
	require.NoError(t, err)
	require.True(t, ok)
	assert.EqualValues(t, 2, parent.ID)

	_, ok, err = svc.ParentOf(ctx, 1)
	require.NoError(t, err)
	assert.False(t, ok)

	root, err := svc.RootOf(ctx, 3)
	require.NoError(t, err)
	assert.EqualValues(t, 1, root.ID)

	isRoot, err := svc.IsRoot(ctx, 5)
	require.NoError(t, err)
	assert.True(t, isRoot)

	has, err := svc.HasChildren(ctx, 2)
	require.NoError(t, err)
	assert.True(t, has)

	has, err = svc.HasChildren(ctx, 3)
	require.NoError(t, err)
	assert.False(t, has)

	childless, err := svc.IsChildless(ctx, 3)
	require.NoError(t, err)
	assert.True(t, childless)
}

func TestService_ValidationBlocksSave(t *testing.T) {
	svc, st := newService(t, Rootify, false)
	ctx := context.Background()
	seedForest(t, svc)

	r, err := svc.Node(ctx, 3)
	require.NoError(t, err)

	r.Path = strPtr("1//2")
	err = st.Save(ctx, r)
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "path", ve.Field)

	// The stored record is unchanged.
	wantPath(t, st, 3, strPtr("1/2"))
}

func TestService_DepthCombinators(t *testing.T) {
	svc, _ := newService(t, Rootify, true)
	ctx := context.Background()
	seedForest(t, svc)
	mustCreate(t, svc, "six", i64(3)) // depth 3

	at, err := svc.NodesAtDepth(ctx, AtDepth, 1)
	require.NoError(t, err)
	assert.Equal(t, []int64{2}, ids(at))

	before, err := svc.NodesAtDepth(ctx, BeforeDepth, 2)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2, 5}, ids(before))

	from, err := svc.NodesAtDepth(ctx, FromDepth, 2)
	require.NoError(t, err)
	assert.Equal(t, []int64{3, 4, 6}, ids(from))

	relative, err := svc.DescendantsOfAtDepth(ctx, 1, AfterDepth, 1)
	require.NoError(t, err)
	assert.Equal(t, []int64{3, 4, 6}, ids(relative))
}

func TestService_DepthCombinatorsRequireCache(t *testing.T) {
	svc, _ := newService(t, Rootify, false)
	_, err := svc.NodesAtDepth(context.Background(), AtDepth, 1)
	var ce *ConfigurationError
	require.ErrorAs(t, err, &ce)
}

func TestService_DepthCachedOnCreateAndMove(t *testing.T) {
	svc, st := newService(t, Rootify, true)
	ctx := context.Background()

	n1 := mustCreate(t, svc, "one", nil)
	n2 := mustCreate(t, svc, "two", i64(n1.ID))

	r1, err := st.Get(ctx, n1.ID)
	require.NoError(t, err)
	require.NotNil(t, r1.Depth)
	assert.EqualValues(t, 0, *r1.Depth)

	r2, err := st.Get(ctx, n2.ID)
	require.NoError(t, err)
	require.NotNil(t, r2.Depth)
	assert.EqualValues(t, 1, *r2.Depth)
}

func TestService_ArrangeSubtree(t *testing.T) {
	svc, _ := newService(t, Rootify, false)
	ctx := context.Background()
	seedForest(t, svc)
	mustCreate(t, svc, "six", i64(3))

	arr, err := svc.ArrangeSubtree(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, Nested{2: Nested{3: Nested{6: Nested{}}, 4: Nested{}}}, arr.NestedIDs())
}

func TestNewSchema_UnknownStrategy(t *testing.T) {
	_, err := NewSchema(OrphanStrategy("adopt"), false)
	var ce *ConfigurationError
	require.ErrorAs(t, err, &ce)
}

func TestService_CreateUnderMissingParent(t *testing.T) {
	svc, _ := newService(t, Rootify, false)
	_, err := svc.Create(context.Background(), "orphan", i64(99))
	require.ErrorIs(t, err, store.ErrNotFound)
}
