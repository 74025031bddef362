package subjects

import (
	"context"
)

type Subject struct {
	Id    int64  `json:"id" yaml:"id" db:"id"`
	Title string `json:"title" yaml:"title" db:"title"`
	Books int    `json:"books" yaml:"books" db:"books"`
}

// Repository matches titles case-insensitively. The first spelling stored wins.
type Repository interface {
	GetIdByTitles(ctx context.Context, titles ...string) (map[string]int64, error)
	// Insert returns ids for every title, existing ones included. Keys are the titles as passed.
	Insert(ctx context.Context, titles ...string) (map[string]int64, error)

	Link(ctx context.Context, bookId int64, subjectIds ...int64) error
	Unlink(ctx context.Context, bookId int64) error

	ForBook(ctx context.Context, bookId int64) ([]string, error)
	BookIds(ctx context.Context, title string) ([]int64, error)
	// GetAll orders by book count descending, then title.
	GetAll(ctx context.Context) ([]*Subject, error)
}
