// Package crawler walks Gutendex search pages and hands every result to a Consumer.
package crawler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"bookshelf/internal/gutendex"
	"bookshelf/internal/normalize"
	"bookshelf/internal/storage/fails"
	"bookshelf/internal/types"
)

// maxFailedInRow stops a walk when Gutendex keeps failing.
const maxFailedInRow = 3

type Request struct {
	Term     string
	Language string
	// FromPage is 1-based; zero starts at the first page.
	FromPage int
	// MaxPages <= 0 walks until the last page.
	MaxPages int
}

type Report struct {
	Pages       int `json:"pages" yaml:"pages"`
	FailedPages int `json:"failed_pages" yaml:"failed_pages"`
	Books       int `json:"books" yaml:"books"`
	Tally       `yaml:",inline"`
	// LastPage is the last page attempted, a starting point for the next run.
	LastPage int `json:"last_page" yaml:"last_page"`
}

type Gutendex struct {
	Search gutendex.Searcher
	Logger *slog.Logger
	// Errors records failed pages. Nil only logs them.
	Errors ErrorHandler
}

type pageOutcome int

const (
	pageDone pageOutcome = iota
	pageLast
	pageFailed
)

// Crawl MUST NOT be called concurrently with the same consumer.
func (g *Gutendex) Crawl(ctx context.Context, req Request, consumer Consumer) (*Report, error) {
	rep := &Report{}

	page := max(req.FromPage, 1)
	failedInRow := 0

	for req.MaxPages <= 0 || rep.Pages+rep.FailedPages < req.MaxPages {
		src := types.HarvestSource{Term: req.Term, Language: req.Language, Page: page}
		rep.LastPage = page

		outcome, err := g.crawlPage(ctx, src, consumer, rep)
		if err != nil {
			return rep, err
		}

		if outcome == pageLast {
			break
		}

		if outcome == pageFailed {
			failedInRow++
			if failedInRow >= maxFailedInRow {
				g.Logger.WarnContext(ctx, fmt.Sprintf("Giving up after %d failed pages in a row", failedInRow))
				break
			}
		} else {
			failedInRow = 0
		}

		page++
	}

	g.Logger.InfoContext(ctx, fmt.Sprintf("Harvested %d pages (%d failed), %d books: %d new, %d existing, %d failed",
		rep.Pages, rep.FailedPages, rep.Books, rep.Created, rep.Existing, rep.Failed))

	return rep, nil
}

func (g *Gutendex) crawlPage(ctx context.Context, src types.HarvestSource, consumer Consumer, rep *Report) (pageOutcome, error) {
	if err := ctx.Err(); err != nil {
		return pageFailed, err
	}

	l := g.Logger.With(slog.Int("page", src.Page))
	l.DebugContext(ctx, "Fetching "+src.String())

	raw, err := g.Search.Search(ctx, src.Term, gutendex.Filters{Language: src.Language, Page: src.Page})
	if err != nil {
		if ctx.Err() != nil {
			return pageFailed, ctx.Err()
		}

		// Gutendex answers 404 past the last page
		var se *gutendex.StatusError
		if errors.As(err, &se) && se.Code == http.StatusNotFound {
			l.DebugContext(ctx, "No such page, stopping")
			return pageLast, nil
		}

		return g.pageFailed(ctx, src, upstreamErr(err), rep)
	}

	page, err := normalize.ParsePage(raw)
	if err != nil {
		return g.pageFailed(ctx, src, err, rep)
	}

	rep.Pages++
	rep.Books += len(page.Books)

	if len(page.Books) > 0 {
		tally, err := consumer.ConsumeBooks(ctx, src, page.Books)
		rep.Tally.Add(tally)
		if err != nil {
			return pageFailed, fmt.Errorf("consuming %s: %w", src, err)
		}
	}

	if page.Empty() || !page.HasNext() {
		return pageLast, nil
	}

	return pageDone, nil
}

func (g *Gutendex) pageFailed(ctx context.Context, src types.HarvestSource, err error, rep *Report) (pageOutcome, error) {
	rep.FailedPages++
	g.Logger.ErrorContext(ctx, "Failed to harvest "+src.String()+": "+err.Error())

	if g.Errors == nil {
		return pageFailed, nil
	}

	if herr := g.Errors.Handle(ctx, src, err); herr != nil {
		return pageFailed, herr
	}

	return pageFailed, nil
}

// Retry replays failures recorded for harvests started no later than notAfter, oldest first.
// Every replayed record is deleted; a repeated failure is recorded again through g.Errors.
func (g *Gutendex) Retry(ctx context.Context, repo fails.Repository, notAfter time.Time, limit uint, consumer Consumer) (*Report, error) {
	records, err := repo.GetFails(ctx, notAfter, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: loading failures: %w", types.ErrStorage, err)
	}

	rep := &Report{}

	for _, rec := range records {
		if rec.Source.ExternalId != nil {
			err = g.retryBook(ctx, rec.Source, consumer, rep)
		} else {
			rep.LastPage = rec.Source.Page
			_, err = g.crawlPage(ctx, rec.Source, consumer, rep)
		}
		if err != nil {
			return rep, err
		}

		if err := repo.DeleteById(ctx, rec.Id); err != nil {
			return rep, fmt.Errorf("%w: deleting failure %d: %w", types.ErrStorage, rec.Id, err)
		}
	}

	g.Logger.InfoContext(ctx, fmt.Sprintf("Retried %d failures", len(records)))

	return rep, nil
}

func (g *Gutendex) retryBook(ctx context.Context, src types.HarvestSource, consumer Consumer, rep *Report) error {
	raw, err := g.Search.GetBook(ctx, *src.ExternalId)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if errors.Is(err, types.ErrNotFound) {
			g.Logger.WarnContext(ctx, "Book is gone from Gutendex, dropping "+src.String())
			return nil
		}

		rep.Failed++
		return g.bookFailed(ctx, src, upstreamErr(err))
	}

	b, err := normalize.ParseBook(raw)
	if err != nil {
		rep.Failed++
		return g.bookFailed(ctx, src, err)
	}

	rep.Books++

	tally, err := consumer.ConsumeBooks(ctx, src, []normalize.Book{*b})
	rep.Tally.Add(tally)

	return err
}

func (g *Gutendex) bookFailed(ctx context.Context, src types.HarvestSource, err error) error {
	g.Logger.ErrorContext(ctx, "Failed to harvest "+src.String()+": "+err.Error())

	if g.Errors == nil {
		return nil
	}

	return g.Errors.Handle(ctx, src, err)
}

func upstreamErr(err error) error {
	if errors.Is(err, types.ErrUpstream) {
		return err
	}

	return fmt.Errorf("%w: %w", types.ErrUpstream, err)
}
