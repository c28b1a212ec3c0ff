package store

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// Memory is an in-process Store used by tests and small forests. Records are
// deep-copied on the way in and out so callers never share state with the
// store. Hook callbacks run outside the lock because they re-enter the store
// (cascades issue SaveRaw/DeleteRaw against descendants).
type Memory struct {
	mu     sync.RWMutex
	seq    int64
	rows   map[int64]Record
	hooks  Hooks
	hookMu sync.RWMutex
}

var _ Store = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{rows: make(map[int64]Record)}
}

func (m *Memory) SetHooks(h Hooks) {
	m.hookMu.Lock()
	defer m.hookMu.Unlock()
	m.hooks = h
}

func (m *Memory) currentHooks() Hooks {
	m.hookMu.RLock()
	defer m.hookMu.RUnlock()
	return m.hooks
}

func (m *Memory) Create(ctx context.Context, r Record) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}
	r = r.Clone()
	if h := m.currentHooks(); h.Validate != nil {
		if err := h.Validate(ctx, &r, nil); err != nil {
			return Record{}, err
		}
	}
	m.mu.Lock()
	m.seq++
	r.ID = m.seq
	m.rows[r.ID] = r.Clone()
	m.mu.Unlock()
	return r, nil
}

func (m *Memory) Get(ctx context.Context, id int64) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.rows[id]
	if !ok {
		return Record{}, ErrNotFound
	}
	return r.Clone(), nil
}

func (m *Memory) List(ctx context.Context, q Query) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	out := make([]Record, 0, len(m.rows))
	for _, r := range m.rows {
		if q.Where == nil || matches(*q.Where, r) {
			out = append(out, r.Clone())
		}
	}
	m.mu.RUnlock()

	orders := q.Order
	if len(orders) == 0 {
		orders = []Order{{Field: FieldID}}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return less(out[i], out[j], orders)
	})
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (m *Memory) Count(ctx context.Context, q Query) (int64, error) {
	rows, err := m.List(ctx, Query{Where: q.Where})
	if err != nil {
		return 0, err
	}
	return int64(len(rows)), nil
}

func (m *Memory) Exists(ctx context.Context, q Query) (bool, error) {
	n, err := m.Count(ctx, q)
	return n > 0, err
}

func (m *Memory) Save(ctx context.Context, r Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r = r.Clone()

	m.mu.RLock()
	prev, ok := m.rows[r.ID]
	m.mu.RUnlock()
	if !ok {
		return ErrNotFound
	}
	was := prev.Clone().Path

	h := m.currentHooks()
	if h.Validate != nil {
		if err := h.Validate(ctx, &r, was); err != nil {
			return err
		}
	}

	m.mu.Lock()
	m.rows[r.ID] = r.Clone()
	m.mu.Unlock()

	if !PathEquals(was, r.Path) && h.AfterPathChange != nil {
		return h.AfterPathChange(ctx, r.Clone(), was)
	}
	return nil
}

func (m *Memory) SaveRaw(ctx context.Context, r Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[r.ID]; !ok {
		return ErrNotFound
	}
	m.rows[r.ID] = r.Clone()
	return nil
}

func (m *Memory) Delete(ctx context.Context, id int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.RLock()
	r, ok := m.rows[id]
	m.mu.RUnlock()
	if !ok {
		return ErrNotFound
	}
	if h := m.currentHooks(); h.BeforeDelete != nil {
		if err := h.BeforeDelete(ctx, r.Clone()); err != nil {
			return err
		}
	}
	return m.DeleteRaw(ctx, id)
}

func (m *Memory) DeleteRaw(ctx context.Context, id int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[id]; !ok {
		return ErrNotFound
	}
	delete(m.rows, id)
	return nil
}

func (m *Memory) Close() error { return nil }

func matches(c Condition, r Record) bool {
	switch c.Kind {
	case CondIDEq:
		return r.ID == c.ID
	case CondIDIn:
		for _, id := range c.IDs {
			if r.ID == id {
				return true
			}
		}
		return false
	case CondPathEq:
		return r.Path != nil && *r.Path == c.Path
	case CondPathNull:
		return r.Path == nil
	case CondPathPrefix:
		return r.Path != nil && strings.HasPrefix(*r.Path, c.Path)
	case CondDepthCmp:
		if r.Depth == nil {
			return false
		}
		switch c.Op {
		case CmpLT:
			return *r.Depth < c.Depth
		case CmpLE:
			return *r.Depth <= c.Depth
		case CmpEQ:
			return *r.Depth == c.Depth
		case CmpGE:
			return *r.Depth >= c.Depth
		case CmpGT:
			return *r.Depth > c.Depth
		}
		return false
	case CondAnd:
		for _, s := range c.Subs {
			if !matches(s, r) {
				return false
			}
		}
		return true
	case CondOr:
		for _, s := range c.Subs {
			if matches(s, r) {
				return true
			}
		}
		return false
	}
	return false
}

func less(a, b Record, orders []Order) bool {
	for _, o := range orders {
		cmp := compareField(a, b, o)
		if cmp == 0 {
			continue
		}
		if o.Desc {
			return cmp > 0
		}
		return cmp < 0
	}
	return a.ID < b.ID
}

func compareField(a, b Record, o Order) int {
	switch o.Field {
	case FieldID:
		return compareInt64(a.ID, b.ID)
	case FieldPath:
		return compareNullableString(a.Path, b.Path, o.NullsFirst)
	case FieldDepth:
		an, bn := a.Depth, b.Depth
		if an == nil || bn == nil {
			return compareNullPlacement(an == nil, bn == nil, o.NullsFirst)
		}
		return compareInt64(*an, *bn)
	}
	return 0
}

func compareInt64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func compareNullableString(a, b *string, nullsFirst bool) int {
	if a == nil || b == nil {
		return compareNullPlacement(a == nil, b == nil, nullsFirst)
	}
	return strings.Compare(*a, *b)
}

func compareNullPlacement(aNull, bNull, nullsFirst bool) int {
	if aNull == bNull {
		return 0
	}
	if aNull {
		if nullsFirst {
			return -1
		}
		return 1
	}
	if nullsFirst {
		return 1
	}
	return -1
}
