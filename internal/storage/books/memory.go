package books

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"bookshelf/internal/storage/authors"
	"bookshelf/internal/types"
)

// NewMemoryRepository keeps books in process memory and loads their authors from authorRepo.
func NewMemoryRepository(authorRepo authors.Repository) Repository {
	return &memoryRepo{authors: authorRepo, byId: make(map[int64]*types.Book)}
}

type memoryRepo struct {
	authors authors.Repository

	mu     sync.RWMutex
	lastId int64
	byId   map[int64]*types.Book
}

type titleAuthor struct {
	title    string
	authorId int64
}

func identity(b *types.Book) titleAuthor {
	k := titleAuthor{title: b.Title}
	if b.AuthorId != nil {
		k.authorId = *b.AuthorId
	}
	return k
}

func clone(b *types.Book) *types.Book {
	c := *b
	c.Author = nil
	c.Subjects = nil
	if b.AuthorId != nil {
		v := *b.AuthorId
		c.AuthorId = &v
	}
	if b.DownloadCount != nil {
		v := *b.DownloadCount
		c.DownloadCount = &v
	}
	if b.ExternalId != nil {
		v := *b.ExternalId
		c.ExternalId = &v
	}
	return &c
}

func (m *memoryRepo) GetById(ctx context.Context, id int64) (*types.Book, error) {
	return m.findOne(ctx, func(b *types.Book) bool { return b.Id == id })
}

func (m *memoryRepo) GetByExternalId(ctx context.Context, externalId int64) (*types.Book, error) {
	return m.findOne(ctx, func(b *types.Book) bool {
		return b.ExternalId != nil && *b.ExternalId == externalId
	})
}

func (m *memoryRepo) FindByTitleAndAuthor(ctx context.Context, title string, authorId *int64) (*types.Book, error) {
	want := identity(&types.Book{Title: title, AuthorId: authorId})
	return m.findOne(ctx, func(b *types.Book) bool { return identity(b) == want })
}

func (m *memoryRepo) findOne(ctx context.Context, pred func(b *types.Book) bool) (*types.Book, error) {
	found := m.filter(pred)
	if len(found) == 0 {
		return nil, nil
	}

	return m.loadAuthor(ctx, found[0])
}

func (m *memoryRepo) Save(ctx context.Context, book *types.Book) (*types.Book, error) {
	m.mu.Lock()

	for _, b := range m.byId {
		dupExternal := book.ExternalId != nil && b.ExternalId != nil && *book.ExternalId == *b.ExternalId
		dupIdentity := book.ExternalId == nil && b.ExternalId == nil && identity(book) == identity(b)
		if dupExternal || dupIdentity {
			m.mu.Unlock()
			return nil, fmt.Errorf("%w: book %q", types.ErrConflict, book.Title)
		}
	}

	m.lastId++
	stored := clone(book)
	stored.Id = m.lastId
	m.byId[stored.Id] = stored

	m.mu.Unlock()

	return m.loadAuthor(ctx, clone(stored))
}

func (m *memoryRepo) Delete(_ context.Context, id int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.byId[id]; !ok {
		return false, nil
	}

	delete(m.byId, id)
	return true, nil
}

func (m *memoryRepo) List(ctx context.Context, f Filter) ([]*types.Book, error) {
	query := strings.ToLower(strings.TrimSpace(f.TitleLike))

	var ids map[int64]struct{}
	if f.Ids != nil {
		ids = make(map[int64]struct{}, len(f.Ids))
		for _, id := range f.Ids {
			ids[id] = struct{}{}
		}
	}

	found := m.filter(func(b *types.Book) bool {
		switch {
		case f.Language != "" && b.Language != f.Language:
			return false
		case query != "" && !strings.Contains(strings.ToLower(b.Title), query):
			return false
		case f.AuthorId != nil && (b.AuthorId == nil || *b.AuthorId != *f.AuthorId):
			return false
		case f.WithDownloads && b.DownloadCount == nil:
			return false
		}
		if ids != nil {
			if _, ok := ids[b.Id]; !ok {
				return false
			}
		}
		return true
	})

	if f.OrderBy == OrderByDownloads {
		sort.SliceStable(found, func(i, j int) bool {
			a, b := found[i].DownloadCount, found[j].DownloadCount
			switch {
			case a == nil || b == nil:
				return a != nil && b == nil
			case *a != *b:
				return *a > *b
			}
			return found[i].Title < found[j].Title
		})
	}

	if f.Limit > 0 && len(found) > f.Limit {
		found = found[:f.Limit]
	}

	authorIds := make([]int64, 0, len(found))
	for _, b := range found {
		if b.AuthorId != nil {
			authorIds = append(authorIds, *b.AuthorId)
		}
	}

	byId, err := m.authors.GetByIds(ctx, authorIds...)
	if err != nil {
		return nil, fmt.Errorf("loading authors of %d books: %w", len(found), err)
	}

	for _, b := range found {
		if b.AuthorId != nil {
			b.Author = byId[*b.AuthorId]
		}
	}

	return found, nil
}

func (m *memoryRepo) Count(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.byId), nil
}

func (m *memoryRepo) CountByLanguage(_ context.Context) (map[string]int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ret := make(map[string]int)
	for _, b := range m.byId {
		ret[b.Language]++
	}

	return ret, nil
}

// filter returns copies ordered by title, then id.
func (m *memoryRepo) filter(pred func(b *types.Book) bool) []*types.Book {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ret := make([]*types.Book, 0, len(m.byId))
	for _, b := range m.byId {
		if pred(b) {
			ret = append(ret, clone(b))
		}
	}

	sort.Slice(ret, func(i, j int) bool {
		if ret[i].Title != ret[j].Title {
			return ret[i].Title < ret[j].Title
		}
		return ret[i].Id < ret[j].Id
	})

	return ret
}

func (m *memoryRepo) loadAuthor(ctx context.Context, b *types.Book) (*types.Book, error) {
	if b.AuthorId == nil {
		return b, nil
	}

	a, err := m.authors.GetById(ctx, *b.AuthorId)
	if err != nil {
		return nil, fmt.Errorf("loading author %d of book %d: %w", *b.AuthorId, b.Id, err)
	}

	b.Author = a
	return b, nil
}
