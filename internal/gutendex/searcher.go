package gutendex

//go:generate mockgen -source=searcher.go -destination=mocks/searcher.go -package=mocks

import (
	"context"
	"fmt"
)

// Searcher returns raw JSON text. Decoding is left to the normalize package.
type Searcher interface {
	// Search returns one page of {count, next, previous, results}. Empty term lists the whole catalog.
	Search(ctx context.Context, term string, f Filters) (string, error)
	GetBook(ctx context.Context, id int64) (string, error)
}

type Filters struct {
	// Language is a comma separated list of two-letter codes, e.g. "en,fr".
	Language string
	// Page is 1-based; zero means first page.
	Page int
}

type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	body := e.Body
	if len(body) > 200 {
		body = body[:200] + "..."
	}

	return fmt.Sprintf("gutendex responded with status %d: %s", e.Code, body)
}

// Temporary reports whether the request is worth retrying.
func (e *StatusError) Temporary() bool {
	return e.Code == 429 || e.Code >= 500
}
