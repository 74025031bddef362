package subjects

import (
	"context"
	"sort"
	"strings"
	"sync"
)

func NewMemoryRepository() Repository {
	return &memoryRepo{
		titles: make(map[int64]string),
		byKey:  make(map[string]int64),
		links:  make(map[int64]map[int64]struct{}),
	}
}

type memoryRepo struct {
	mu     sync.RWMutex
	lastId int64
	titles map[int64]string
	byKey  map[string]int64
	// book id -> subject ids
	links map[int64]map[int64]struct{}
}

func (m *memoryRepo) GetIdByTitles(_ context.Context, titles ...string) (map[string]int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ret := make(map[string]int64, len(titles))
	for _, title := range titles {
		if id, ok := m.byKey[strings.ToLower(title)]; ok {
			ret[title] = id
		}
	}

	return ret, nil
}

func (m *memoryRepo) Insert(_ context.Context, titles ...string) (map[string]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ret := make(map[string]int64, len(titles))
	for _, title := range titles {
		key := strings.ToLower(title)

		id, ok := m.byKey[key]
		if !ok {
			m.lastId++
			id = m.lastId
			m.byKey[key] = id
			m.titles[id] = title
		}

		ret[title] = id
	}

	return ret, nil
}

func (m *memoryRepo) Link(_ context.Context, bookId int64, subjectIds ...int64) error {
	if len(subjectIds) == 0 {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	linked, ok := m.links[bookId]
	if !ok {
		linked = make(map[int64]struct{}, len(subjectIds))
		m.links[bookId] = linked
	}

	for _, id := range subjectIds {
		linked[id] = struct{}{}
	}

	return nil
}

func (m *memoryRepo) Unlink(_ context.Context, bookId int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.links, bookId)
	return nil
}

func (m *memoryRepo) ForBook(_ context.Context, bookId int64) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ret := make([]string, 0, len(m.links[bookId]))
	for id := range m.links[bookId] {
		ret = append(ret, m.titles[id])
	}
	sort.Strings(ret)

	return ret, nil
}

func (m *memoryRepo) BookIds(_ context.Context, title string) ([]int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ret := []int64{}

	subjectId, ok := m.byKey[strings.ToLower(strings.TrimSpace(title))]
	if !ok {
		return ret, nil
	}

	for bookId, linked := range m.links {
		if _, ok := linked[subjectId]; ok {
			ret = append(ret, bookId)
		}
	}
	sort.Slice(ret, func(i, j int) bool { return ret[i] < ret[j] })

	return ret, nil
}

func (m *memoryRepo) GetAll(_ context.Context) ([]*Subject, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	counts := make(map[int64]int, len(m.titles))
	for _, linked := range m.links {
		for id := range linked {
			counts[id]++
		}
	}

	ret := make([]*Subject, 0, len(m.titles))
	for id, title := range m.titles {
		ret = append(ret, &Subject{Id: id, Title: title, Books: counts[id]})
	}

	sort.Slice(ret, func(i, j int) bool {
		if ret[i].Books != ret[j].Books {
			return ret[i].Books > ret[j].Books
		}
		return ret[i].Title < ret[j].Title
	})

	return ret, nil
}
