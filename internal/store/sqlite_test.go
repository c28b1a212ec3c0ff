package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestSQLite(t *testing.T) *SQLite {
	t.Helper()
	s, err := OpenSQLite(filepath.Join(t.TempDir(), "forestry.db"), SQLiteOptions{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSQLite_OpenRejectsBadInputs(t *testing.T) {
	_, err := OpenSQLite("", SQLiteOptions{})
	assert.Error(t, err)

	_, err = OpenSQLite(t.TempDir(), SQLiteOptions{})
	assert.Error(t, err, "directory path must be rejected")

	_, err = OpenSQLite(filepath.Join(t.TempDir(), "x.db"), SQLiteOptions{Table: "nodes; DROP"})
	assert.Error(t, err, "non-identifier table name must be rejected")
}

func TestSQLite_CRUDRoundTrip(t *testing.T) {
	s := openTestSQLite(t)
	ctx := context.Background()

	r, err := s.Create(ctx, Record{Name: "root"})
	require.NoError(t, err)
	require.EqualValues(t, 1, r.ID)

	child, err := s.Create(ctx, Record{Name: "child", Path: strPtr("1")})
	require.NoError(t, err)

	got, err := s.Get(ctx, child.ID)
	require.NoError(t, err)
	assert.Equal(t, "child", got.Name)
	require.NotNil(t, got.Path)
	assert.Equal(t, "1", *got.Path)
	assert.Nil(t, got.Depth)

	d := int64(1)
	got.Depth = &d
	require.NoError(t, s.SaveRaw(ctx, got))
	got, err = s.Get(ctx, child.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Depth)
	assert.EqualValues(t, 1, *got.Depth)

	require.NoError(t, s.DeleteRaw(ctx, child.ID))
	_, err = s.Get(ctx, child.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	assert.ErrorIs(t, s.SaveRaw(ctx, Record{ID: 99}), ErrNotFound)
	assert.ErrorIs(t, s.DeleteRaw(ctx, 99), ErrNotFound)
}

func TestSQLite_ConditionCompilation(t *testing.T) {
	s := openTestSQLite(t)
	ctx := context.Background()

	// 1: root, 2: "1", 3: "1/2", 4: "10", 5: "1_2" (LIKE metacharacter)
	fixtures := []*string{nil, strPtr("1"), strPtr("1/2"), strPtr("10"), strPtr("1_2")}
	for _, p := range fixtures {
		_, err := s.Create(ctx, Record{Path: p})
		require.NoError(t, err)
	}

	cases := []struct {
		name string
		cond Condition
		want []int64
	}{
		{"path null", PathIsNull(), []int64{1}},
		{"path eq", PathEq("1"), []int64{2}},
		{"descendants shape", Or(PathEq("1"), PathPrefix("1/")), []int64{2, 3}},
		{"prefix does not match multi-digit id", PathPrefix("1/"), []int64{3}},
		{"underscore is literal, not wildcard", PathPrefix("1_"), []int64{5}},
		{"id in", IDIn([]int64{2, 4}), []int64{2, 4}},
		{"id in empty", IDIn(nil), nil},
		{"and", And(IDEq(3), PathPrefix("1/")), []int64{3}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rows, err := s.List(ctx, Query{Where: &tc.cond})
			require.NoError(t, err)
			var got []int64
			for _, r := range rows {
				got = append(got, r.ID)
			}
			assert.Equal(t, tc.want, got)

			n, err := s.Count(ctx, Query{Where: &tc.cond})
			require.NoError(t, err)
			assert.EqualValues(t, len(tc.want), n)
		})
	}
}

func TestSQLite_OrderingNullPlacement(t *testing.T) {
	s := openTestSQLite(t)
	ctx := context.Background()
	for _, p := range []*string{strPtr("2"), nil, strPtr("1")} {
		_, err := s.Create(ctx, Record{Path: p})
		require.NoError(t, err)
	}

	rows, err := s.List(ctx, Query{Order: []Order{{Field: FieldPath, NullsFirst: true}}})
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Nil(t, rows[0].Path)

	rows, err = s.List(ctx, Query{Order: []Order{{Field: FieldPath}}})
	require.NoError(t, err)
	assert.Nil(t, rows[2].Path)
}

func TestSQLite_HooksAndTrigger(t *testing.T) {
	s := openTestSQLite(t)
	ctx := context.Background()

	var cascades []string
	s.SetHooks(Hooks{
		AfterPathChange: func(ctx context.Context, r Record, wasPath *string) error {
			was := "<nil>"
			if wasPath != nil {
				was = *wasPath
			}
			cascades = append(cascades, was)
			return nil
		},
	})

	r, err := s.Create(ctx, Record{Name: "n"})
	require.NoError(t, err)

	r.Name = "renamed"
	require.NoError(t, s.Save(ctx, r))
	assert.Empty(t, cascades, "no path change, no trigger")

	r.Path = strPtr("9")
	require.NoError(t, s.Save(ctx, r))
	require.Equal(t, []string{"<nil>"}, cascades)

	r.Path = strPtr("9/3")
	require.NoError(t, s.Save(ctx, r))
	assert.Equal(t, []string{"<nil>", "9"}, cascades)
}

func TestSQLite_ParentColumn(t *testing.T) {
	s := openTestSQLite(t)
	ctx := context.Background()

	root, err := s.Create(ctx, Record{Name: "root"})
	require.NoError(t, err)
	child, err := s.Create(ctx, Record{Name: "child"})
	require.NoError(t, err)
	_, err = s.DB().ExecContext(ctx, `UPDATE nodes SET parent_id = ? WHERE id = ?`, root.ID, child.ID)
	require.NoError(t, err)

	parents, err := s.ParentColumn(ctx)
	require.NoError(t, err)
	require.Len(t, parents, 2)
	assert.Nil(t, parents[root.ID])
	require.NotNil(t, parents[child.ID])
	assert.Equal(t, root.ID, *parents[child.ID])
}

func TestSQLite_SchemaIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "forestry.db")

	s1, err := OpenSQLite(path, SQLiteOptions{})
	require.NoError(t, err)
	_, err = s1.Create(context.Background(), Record{Name: "kept"})
	require.NoError(t, err)
	require.NoError(t, s1.Close())

	s2, err := OpenSQLite(path, SQLiteOptions{})
	require.NoError(t, err)
	defer s2.Close()
	r, err := s2.Get(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "kept", r.Name)
}
