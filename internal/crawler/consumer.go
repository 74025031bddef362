package crawler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"bookshelf/internal/catalog"
	"bookshelf/internal/normalize"
	"bookshelf/internal/types"
)

type Consumer interface {
	// ConsumeBooks gets one page of results. It MUST NOT keep books after returning.
	// A returned error stops the harvest, so failures of single books are handled inside.
	ConsumeBooks(ctx context.Context, src types.HarvestSource, books []normalize.Book) (Tally, error)
}

type Tally struct {
	Created  int `json:"created" yaml:"created"`
	Existing int `json:"existing" yaml:"existing"`
	Failed   int `json:"failed" yaml:"failed"`
}

func (t *Tally) Add(o Tally) {
	t.Created += o.Created
	t.Existing += o.Existing
	t.Failed += o.Failed
}

// LoggerConsumer stores nothing. Useful as a dry run.
type LoggerConsumer struct {
	Logger *slog.Logger
}

func (c *LoggerConsumer) ConsumeBooks(ctx context.Context, src types.HarvestSource, books []normalize.Book) (Tally, error) {
	for i := range books {
		b := &books[i]

		var authors_ string
		if len(b.Authors) > 0 {
			sb := strings.Builder{}
			if len(b.Authors) > 1 {
				sb.WriteString("by authors ")
			} else {
				sb.WriteString("by author ")
			}
			sb.WriteString(b.AuthorNames())
			authors_ = sb.String()
		} else {
			authors_ = "without authors"
		}

		id := "?"
		if b.Id != nil {
			id = fmt.Sprint(*b.Id)
		}

		c.Logger.InfoContext(ctx, "Consumed book "+id+" ("+b.TitleOrEmpty()+") "+authors_, slog.Int("page", src.Page))
	}

	return Tally{}, nil
}

// StoringConsumer imports every result with the catalog dedup rules.
type StoringConsumer struct {
	Catalog *catalog.Service
	Logger  *slog.Logger
	// Errors records books that failed to store. Nil only logs them.
	Errors ErrorHandler
}

func (s *StoringConsumer) ConsumeBooks(ctx context.Context, src types.HarvestSource, books []normalize.Book) (Tally, error) {
	var t Tally

	for i := range books {
		res, err := s.Catalog.Store(ctx, &books[i])
		if err == nil {
			if res.Created {
				t.Created++
			} else {
				t.Existing++
			}
			continue
		}

		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return t, err
		}

		t.Failed++

		bookSrc := src
		bookSrc.ExternalId = books[i].Id

		s.Logger.ErrorContext(ctx, "Failed to store "+bookSrc.String()+": "+err.Error())

		if s.Errors != nil {
			if herr := s.Errors.Handle(ctx, bookSrc, err); herr != nil {
				return t, herr
			}
		}
	}

	return t, nil
}
