package authors

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"bookshelf/internal/types"
)

// NewMemoryRepository keeps authors in process memory. Ordering and conflict rules match the pgx repository.
func NewMemoryRepository() Repository {
	return &memoryRepo{byId: make(map[int64]*types.Author), byKey: make(map[string]int64)}
}

type memoryRepo struct {
	mu     sync.RWMutex
	lastId int64
	byId   map[int64]*types.Author
	byKey  map[string]int64
}

func clone(a *types.Author) *types.Author {
	c := *a
	if a.BirthYear != nil {
		y := *a.BirthYear
		c.BirthYear = &y
	}
	if a.DeathYear != nil {
		y := *a.DeathYear
		c.DeathYear = &y
	}
	return &c
}

func (m *memoryRepo) GetById(_ context.Context, id int64) (*types.Author, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if a, ok := m.byId[id]; ok {
		return clone(a), nil
	}

	return nil, nil
}

func (m *memoryRepo) GetByIds(_ context.Context, ids ...int64) (map[int64]*types.Author, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ret := make(map[int64]*types.Author, len(ids))
	for _, id := range ids {
		if a, ok := m.byId[id]; ok {
			ret[id] = clone(a)
		}
	}

	return ret, nil
}

func (m *memoryRepo) FindByName(_ context.Context, name string) (*types.Author, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if id, ok := m.byKey[types.NameKey(name)]; ok {
		return clone(m.byId[id]), nil
	}

	return nil, nil
}

func (m *memoryRepo) Save(_ context.Context, author *types.Author) (*types.Author, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := types.NameKey(author.Name)
	if _, ok := m.byKey[key]; ok {
		return nil, fmt.Errorf("%w: author %q", types.ErrConflict, author.Name)
	}

	m.lastId++
	stored := clone(author)
	stored.Id = m.lastId

	m.byId[stored.Id] = stored
	m.byKey[key] = stored.Id

	return clone(stored), nil
}

func (m *memoryRepo) List(_ context.Context) ([]*types.Author, error) {
	return m.filter(func(*types.Author) bool { return true }), nil
}

func (m *memoryRepo) AliveInYear(_ context.Context, year int) ([]*types.Author, error) {
	return m.filter(func(a *types.Author) bool { return a.AliveInYear(year) }), nil
}

func (m *memoryRepo) SearchByName(_ context.Context, fragment string) ([]*types.Author, error) {
	words := strings.Fields(strings.ToLower(fragment))

	return m.filter(func(a *types.Author) bool {
		name := strings.ToLower(a.Name)
		for _, w := range words {
			if !strings.Contains(name, w) {
				return false
			}
		}
		return true
	}), nil
}

func (m *memoryRepo) Count(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.byId), nil
}

func (m *memoryRepo) CountAlive(_ context.Context) (int, error) {
	return len(m.filter((*types.Author).IsAlive)), nil
}

func (m *memoryRepo) CountByCentury(_ context.Context) (map[int]int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ret := make(map[int]int)
	for _, a := range m.byId {
		if c := a.BirthCentury(); c > 0 {
			ret[c]++
		}
	}

	return ret, nil
}

func (m *memoryRepo) filter(pred func(a *types.Author) bool) []*types.Author {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ret := make([]*types.Author, 0, len(m.byId))
	for _, a := range m.byId {
		if pred(a) {
			ret = append(ret, clone(a))
		}
	}

	sort.Slice(ret, func(i, j int) bool {
		if ret[i].Name != ret[j].Name {
			return ret[i].Name < ret[j].Name
		}
		return ret[i].Id < ret[j].Id
	})

	return ret
}
