package fails

import (
	"context"
	"sort"
	"sync"
	"time"

	"bookshelf/internal/types"
)

func NewMemoryRepository() Repository {
	return &memoryRepo{}
}

type memoryRepo struct {
	mu      sync.Mutex
	lastId  int64
	records []*Record
}

func (m *memoryRepo) Save(_ context.Context, startTime time.Time, src types.HarvestSource, err error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if src.ExternalId != nil {
		id := *src.ExternalId
		src.ExternalId = &id
	}

	m.lastId++
	m.records = append(m.records, &Record{Id: m.lastId, StartTime: startTime, Source: src, Error: err.Error()})

	return nil
}

func (m *memoryRepo) GetFails(_ context.Context, notAfter time.Time, limit uint) ([]*Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ret := make([]*Record, 0, len(m.records))
	for _, r := range m.records {
		if !r.StartTime.After(notAfter) {
			c := *r
			ret = append(ret, &c)
		}
	}

	sort.SliceStable(ret, func(i, j int) bool {
		return ret[i].StartTime.Before(ret[j].StartTime)
	})

	if limit > 0 && uint(len(ret)) > limit {
		ret = ret[:limit]
	}

	return ret, nil
}

func (m *memoryRepo) DeleteById(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, r := range m.records {
		if r.Id == id {
			m.records = append(m.records[:i], m.records[i+1:]...)
			return nil
		}
	}

	return nil
}
