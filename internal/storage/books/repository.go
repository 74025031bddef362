package books

import (
	"context"

	"bookshelf/internal/types"
)

type OrderBy string

const (
	// OrderByTitle sorts by title in byte order, then id.
	OrderByTitle OrderBy = "title"
	// OrderByDownloads sorts by download count descending, then title. Books without a count go last.
	OrderByDownloads OrderBy = "downloads"
)

type Filter struct {
	// Language matches exactly, callers lower-case it.
	Language  string
	TitleLike string
	AuthorId  *int64
	// Ids restricts the result when non-nil. An empty non-nil slice matches nothing.
	Ids []int64
	// WithDownloads drops books without a download count.
	WithDownloads bool
	OrderBy       OrderBy
	// Limit <= 0 means no limit.
	Limit int
}

// Repository returns books with Author loaded. Lookups return (nil, nil) when nothing matches.
type Repository interface {
	GetById(ctx context.Context, id int64) (*types.Book, error)
	GetByExternalId(ctx context.Context, externalId int64) (*types.Book, error)
	// FindByTitleAndAuthor is the fallback identity for books without an external id. Nil authorId matches authorless books.
	FindByTitleAndAuthor(ctx context.Context, title string, authorId *int64) (*types.Book, error)

	// Save inserts a new book and returns it with the assigned id.
	// A duplicate external id, or duplicate title and author for a book without one, fails with types.ErrConflict.
	Save(ctx context.Context, book *types.Book) (*types.Book, error)
	// Delete reports whether a row was removed.
	Delete(ctx context.Context, id int64) (bool, error)

	List(ctx context.Context, f Filter) ([]*types.Book, error)
	Count(ctx context.Context) (int, error)
	CountByLanguage(ctx context.Context) (map[string]int, error)
}
