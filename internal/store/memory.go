package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/oss377/maneBot/internal/registrant"
)

// Memory is an in-process Store. A single mutex makes every Update and
// Mutate atomic.
type Memory struct {
	mu   sync.Mutex
	recs map[int64]*registrant.Registrant
	now  func() time.Time
}

var _ Store = (*Memory)(nil)

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{recs: make(map[int64]*registrant.Registrant), now: time.Now}
}

func (m *Memory) Find(_ context.Context, id int64) (*registrant.Registrant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.recs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return r.Clone(), nil
}

func (m *Memory) FindMany(_ context.Context, q Query) ([]*registrant.Registrant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*registrant.Registrant
	for _, r := range m.recs {
		if q.Match(r) {
			out = append(out, r.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *Memory) FindByClaimToken(_ context.Context, token string) (*registrant.Registrant, int, error) {
	if token == "" {
		return nil, -1, ErrNotFound
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.recs {
		if idx := r.TokenIndex(token); idx >= 0 {
			return r.Clone(), idx, nil
		}
	}
	return nil, -1, ErrNotFound
}

func (m *Memory) FindByPhone(_ context.Context, phone string) (*registrant.Registrant, error) {
	if phone == "" {
		return nil, ErrNotFound
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var found *registrant.Registrant
	for _, r := range m.recs {
		if r.Profile.Phone == phone && (found == nil || r.ID < found.ID) {
			found = r
		}
	}
	if found == nil {
		return nil, ErrNotFound
	}
	return found.Clone(), nil
}

func (m *Memory) Save(_ context.Context, r *registrant.Registrant) error {
	if err := r.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	c := r.Clone()
	c.UpdatedAt = m.now()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = c.UpdatedAt
	}
	m.recs[c.ID] = c
	return nil
}

func (m *Memory) Delete(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.recs[id]; !ok {
		return ErrNotFound
	}
	delete(m.recs, id)
	return nil
}

func (m *Memory) Count(_ context.Context, q Query) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, r := range m.recs {
		if q.Match(r) {
			n++
		}
	}
	return n, nil
}

func (m *Memory) Update(ctx context.Context, id int64, upsert bool, fn func(*registrant.Registrant) error) (*registrant.Registrant, error) {
	recs, err := m.Mutate(ctx, []int64{id}, upsert, func(rs []*registrant.Registrant) error {
		return fn(rs[0])
	})
	if err != nil {
		return nil, err
	}
	return recs[0], nil
}

func (m *Memory) Mutate(_ context.Context, ids []int64, upsert bool, fn MutateFunc) ([]*registrant.Registrant, error) {
	if err := distinct(ids); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	work := make([]*registrant.Registrant, len(ids))
	for i, id := range ids {
		r, ok := m.recs[id]
		switch {
		case ok:
			work[i] = r.Clone()
		case upsert:
			work[i] = registrant.New(id, now)
		default:
			return nil, fmt.Errorf("%w: %d", ErrNotFound, id)
		}
	}
	if err := fn(work); err != nil {
		return nil, err
	}
	for _, r := range work {
		if err := r.Validate(); err != nil {
			return nil, fmt.Errorf("store: registrant %d: %w", r.ID, err)
		}
	}

	out := make([]*registrant.Registrant, len(work))
	for i, r := range work {
		r.ID = ids[i]
		r.UpdatedAt = now
		m.recs[r.ID] = r
		out[i] = r.Clone()
	}
	return out, nil
}

func distinct(ids []int64) error {
	if len(ids) == 0 {
		return fmt.Errorf("store: no ids")
	}
	seen := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			return fmt.Errorf("store: duplicate id %d", id)
		}
		seen[id] = struct{}{}
	}
	return nil
}
