package crawler

import (
	"context"
	"fmt"
	"time"

	"bookshelf/internal/storage/fails"
	"bookshelf/internal/types"
)

type ErrorHandler interface {
	// Handle returns an error only when the failure itself could not be recorded.
	Handle(ctx context.Context, src types.HarvestSource, err error) error
}

type StoringHandler struct {
	StartTime time.Time
	Fails     fails.Repository
}

func (s *StoringHandler) Handle(ctx context.Context, src types.HarvestSource, err error) error {
	err = s.Fails.Save(ctx, s.StartTime, src, err)
	if err != nil {
		err = fmt.Errorf("%w: saving fail: %w", types.ErrStorage, err)
	}

	return err
}
