package fails

import (
	"context"
	"time"

	"bookshelf/internal/types"
)

type Record struct {
	Id        int64               `json:"id" yaml:"id"`
	StartTime time.Time           `json:"start_time" yaml:"start_time"`
	Source    types.HarvestSource `json:"source" yaml:"source"`
	Error     string              `json:"error" yaml:"error"`
}

type Repository interface {
	Save(ctx context.Context, startTime time.Time, src types.HarvestSource, err error) error

	// GetFails returns records of harvests started no later than notAfter, oldest first. Zero limit means all.
	GetFails(ctx context.Context, notAfter time.Time, limit uint) ([]*Record, error)
	DeleteById(ctx context.Context, id int64) error
}
