package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	_ "modernc.org/sqlite"
)

const driverName = "sqlite"

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// SQLiteOptions name the table and columns the node rows live in. Column
// names are part of the integrator-facing configuration surface; they are
// validated as plain identifiers before being spliced into SQL.
type SQLiteOptions struct {
	Table       string
	PathColumn  string
	DepthColumn string
}

func (o *SQLiteOptions) applyDefaults() {
	if o.Table == "" {
		o.Table = "nodes"
	}
	if o.PathColumn == "" {
		o.PathColumn = "ancestry"
	}
	if o.DepthColumn == "" {
		o.DepthColumn = "ancestry_depth"
	}
}

func (o SQLiteOptions) validate() error {
	for _, ident := range []string{o.Table, o.PathColumn, o.DepthColumn} {
		if !identRe.MatchString(ident) {
			return fmt.Errorf("invalid identifier %q in sqlite options", ident)
		}
	}
	return nil
}

// SQLite is the persistent Store backed by modernc.org/sqlite.
type SQLite struct {
	db   *sql.DB
	opts SQLiteOptions

	hookMu sync.RWMutex
	hooks  Hooks
}

var _ Store = (*SQLite)(nil)

// OpenSQLite opens (creating parent directories and schema as needed) the
// node store at path. busy_timeout + WAL reduce lock conflicts when a
// maintenance pass and a reader overlap.
func OpenSQLite(path string, opts SQLiteOptions) (*SQLite, error) {
	cleanPath := strings.TrimSpace(path)
	if cleanPath == "" {
		return nil, fmt.Errorf("store path must not be empty")
	}
	if info, err := os.Stat(cleanPath); err == nil && info.IsDir() {
		return nil, fmt.Errorf("store path %q is a directory, expected file", cleanPath)
	}
	opts.applyDefaults()
	if err := opts.validate(); err != nil {
		return nil, err
	}

	dir := filepath.Dir(cleanPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create store directory %q: %w", dir, err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(2000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)", cleanPath)
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite store %q: %w", cleanPath, err)
	}
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(0)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite store %q: %w", cleanPath, err)
	}
	if err := ensureSchema(db, opts); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize sqlite schema %q: %w", cleanPath, err)
	}

	return &SQLite{db: db, opts: opts}, nil
}

func (s *SQLite) SetHooks(h Hooks) {
	s.hookMu.Lock()
	defer s.hookMu.Unlock()
	s.hooks = h
}

func (s *SQLite) currentHooks() Hooks {
	s.hookMu.RLock()
	defer s.hookMu.RUnlock()
	return s.hooks
}

func (s *SQLite) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// DB exposes the underlying handle for one-time migrations (parent-column
// import) that need columns outside the Store contract.
func (s *SQLite) DB() *sql.DB { return s.db }

// ParentColumn reads the legacy direct-parent-id column as id -> parent id
// (nil for roots). Input to the one-time path materialization helper.
func (s *SQLite) ParentColumn(ctx context.Context) (map[int64]*int64, error) {
	q := fmt.Sprintf(`SELECT id, parent_id FROM %s`, s.opts.Table)
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("read parent column: %w", err)
	}
	defer rows.Close()

	out := make(map[int64]*int64)
	for rows.Next() {
		var (
			id     int64
			parent sql.NullInt64
		)
		if err := rows.Scan(&id, &parent); err != nil {
			return nil, fmt.Errorf("scan parent column row: %w", err)
		}
		if parent.Valid {
			p := parent.Int64
			out[id] = &p
		} else {
			out[id] = nil
		}
	}
	return out, rows.Err()
}

func (s *SQLite) cols() string {
	return fmt.Sprintf("id, name, %s, %s", s.opts.PathColumn, s.opts.DepthColumn)
}

func (s *SQLite) Create(ctx context.Context, r Record) (Record, error) {
	r = r.Clone()
	if h := s.currentHooks(); h.Validate != nil {
		if err := h.Validate(ctx, &r, nil); err != nil {
			return Record{}, err
		}
	}
	q := fmt.Sprintf(`INSERT INTO %s (name, %s, %s) VALUES (?, ?, ?)`,
		s.opts.Table, s.opts.PathColumn, s.opts.DepthColumn)
	res, err := s.db.ExecContext(ctx, q, r.Name, nullString(r.Path), nullInt(r.Depth))
	if err != nil {
		return Record{}, fmt.Errorf("insert node: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return Record{}, fmt.Errorf("read inserted node id: %w", err)
	}
	r.ID = id
	return r, nil
}

func (s *SQLite) Get(ctx context.Context, id int64) (Record, error) {
	q := fmt.Sprintf(`SELECT %s FROM %s WHERE id = ?`, s.cols(), s.opts.Table)
	return s.scanOne(s.db.QueryRowContext(ctx, q, id))
}

func (s *SQLite) List(ctx context.Context, q Query) ([]Record, error) {
	where, args := s.compileWhere(q.Where)
	sqlText := fmt.Sprintf(`SELECT %s FROM %s%s%s`, s.cols(), s.opts.Table, where, s.compileOrder(q.Order))
	if q.Limit > 0 {
		sqlText += fmt.Sprintf(" LIMIT %d", q.Limit)
	}
	rows, err := s.db.QueryContext(ctx, sqlText, args...)
	if err != nil {
		return nil, fmt.Errorf("list nodes: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var (
			r     Record
			path  sql.NullString
			depth sql.NullInt64
		)
		if err := rows.Scan(&r.ID, &r.Name, &path, &depth); err != nil {
			return nil, fmt.Errorf("scan node row: %w", err)
		}
		if path.Valid {
			p := path.String
			r.Path = &p
		}
		if depth.Valid {
			d := depth.Int64
			r.Depth = &d
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLite) Count(ctx context.Context, q Query) (int64, error) {
	where, args := s.compileWhere(q.Where)
	var n int64
	sqlText := fmt.Sprintf(`SELECT COUNT(*) FROM %s%s`, s.opts.Table, where)
	if err := s.db.QueryRowContext(ctx, sqlText, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count nodes: %w", err)
	}
	return n, nil
}

func (s *SQLite) Exists(ctx context.Context, q Query) (bool, error) {
	n, err := s.Count(ctx, Query{Where: q.Where})
	return n > 0, err
}

func (s *SQLite) Save(ctx context.Context, r Record) error {
	r = r.Clone()
	prev, err := s.Get(ctx, r.ID)
	if err != nil {
		return err
	}
	was := prev.Path

	h := s.currentHooks()
	if h.Validate != nil {
		if err := h.Validate(ctx, &r, was); err != nil {
			return err
		}
	}
	if err := s.SaveRaw(ctx, r); err != nil {
		return err
	}
	if !PathEquals(was, r.Path) && h.AfterPathChange != nil {
		return h.AfterPathChange(ctx, r, was)
	}
	return nil
}

func (s *SQLite) SaveRaw(ctx context.Context, r Record) error {
	q := fmt.Sprintf(`UPDATE %s SET name = ?, %s = ?, %s = ? WHERE id = ?`,
		s.opts.Table, s.opts.PathColumn, s.opts.DepthColumn)
	res, err := s.db.ExecContext(ctx, q, r.Name, nullString(r.Path), nullInt(r.Depth), r.ID)
	if err != nil {
		return fmt.Errorf("update node %d: %w", r.ID, err)
	}
	return requireRow(res, r.ID)
}

func (s *SQLite) Delete(ctx context.Context, id int64) error {
	r, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if h := s.currentHooks(); h.BeforeDelete != nil {
		if err := h.BeforeDelete(ctx, r); err != nil {
			return err
		}
	}
	return s.DeleteRaw(ctx, id)
}

func (s *SQLite) DeleteRaw(ctx context.Context, id int64) error {
	q := fmt.Sprintf(`DELETE FROM %s WHERE id = ?`, s.opts.Table)
	res, err := s.db.ExecContext(ctx, q, id)
	if err != nil {
		return fmt.Errorf("delete node %d: %w", id, err)
	}
	return requireRow(res, id)
}

func (s *SQLite) scanOne(row *sql.Row) (Record, error) {
	var (
		r     Record
		path  sql.NullString
		depth sql.NullInt64
	)
	err := row.Scan(&r.ID, &r.Name, &path, &depth)
	if err == sql.ErrNoRows {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("scan node: %w", err)
	}
	if path.Valid {
		p := path.String
		r.Path = &p
	}
	if depth.Valid {
		d := depth.Int64
		r.Depth = &d
	}
	return r, nil
}

func (s *SQLite) compileWhere(c *Condition) (string, []any) {
	if c == nil {
		return "", nil
	}
	expr, args := s.compileCond(*c)
	if expr == "" {
		return "", nil
	}
	return " WHERE " + expr, args
}

func (s *SQLite) compileCond(c Condition) (string, []any) {
	switch c.Kind {
	case CondIDEq:
		return "id = ?", []any{c.ID}
	case CondIDIn:
		if len(c.IDs) == 0 {
			return "0 = 1", nil
		}
		placeholders := strings.Repeat("?, ", len(c.IDs))
		args := make([]any, len(c.IDs))
		for i, id := range c.IDs {
			args[i] = id
		}
		return fmt.Sprintf("id IN (%s)", placeholders[:len(placeholders)-2]), args
	case CondPathEq:
		return s.opts.PathColumn + " = ?", []any{c.Path}
	case CondPathNull:
		return s.opts.PathColumn + " IS NULL", nil
	case CondPathPrefix:
		return s.opts.PathColumn + ` LIKE ? ESCAPE '\'`, []any{escapeLike(c.Path) + "%"}
	case CondDepthCmp:
		return fmt.Sprintf("%s %s ?", s.opts.DepthColumn, c.Op), []any{c.Depth}
	case CondAnd, CondOr:
		joiner := " AND "
		if c.Kind == CondOr {
			joiner = " OR "
		}
		parts := make([]string, 0, len(c.Subs))
		var args []any
		for _, sub := range c.Subs {
			expr, subArgs := s.compileCond(sub)
			parts = append(parts, "("+expr+")")
			args = append(args, subArgs...)
		}
		return strings.Join(parts, joiner), args
	}
	return "0 = 1", nil
}

func (s *SQLite) compileOrder(orders []Order) string {
	if len(orders) == 0 {
		return " ORDER BY id ASC"
	}
	parts := make([]string, 0, len(orders))
	for _, o := range orders {
		col := "id"
		nullable := false
		switch o.Field {
		case FieldPath:
			col = s.opts.PathColumn
			nullable = true
		case FieldDepth:
			col = s.opts.DepthColumn
			nullable = true
		}
		if nullable {
			// Explicit null placement ahead of the value comparison.
			placement := fmt.Sprintf("%s IS NOT NULL", col)
			if !o.NullsFirst {
				placement = fmt.Sprintf("%s IS NULL", col)
			}
			parts = append(parts, placement)
		}
		dir := "ASC"
		if o.Desc {
			dir = "DESC"
		}
		parts = append(parts, fmt.Sprintf("%s %s", col, dir))
	}
	return " ORDER BY " + strings.Join(parts, ", ")
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

func nullString(p *string) any {
	if p == nil {
		return nil
	}
	return *p
}

func nullInt(p *int64) any {
	if p == nil {
		return nil
	}
	return *p
}

func requireRow(res sql.Result, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected for node %d: %w", id, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
