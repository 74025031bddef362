package authors

import (
	"context"

	"bookshelf/internal/types"
)

// Repository lookups return (nil, nil) when nothing matches.
type Repository interface {
	GetById(ctx context.Context, id int64) (*types.Author, error)
	// GetByIds leaves unknown ids out of the map; present values are never nil.
	GetByIds(ctx context.Context, ids ...int64) (map[int64]*types.Author, error)
	// FindByName matches by types.NameKey, so "Shakespeare, William" finds "william shakespeare".
	FindByName(ctx context.Context, name string) (*types.Author, error)

	// Save inserts a new author and returns it with the assigned id.
	// A second author with the same name key fails with types.ErrConflict.
	Save(ctx context.Context, author *types.Author) (*types.Author, error)

	// List orders by raw name, then id.
	List(ctx context.Context) ([]*types.Author, error)
	AliveInYear(ctx context.Context, year int) ([]*types.Author, error)
	SearchByName(ctx context.Context, fragment string) ([]*types.Author, error)

	Count(ctx context.Context) (int, error)
	CountAlive(ctx context.Context) (int, error)
	// CountByCentury keys are 1-based birth centuries. Authors without a birth year are skipped.
	CountByCentury(ctx context.Context) (map[int]int, error)
}
