// Package catalog holds the business rules between the Gutendex client and the repositories:
// import with dedup and the derived read queries.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"bookshelf/internal/gutendex"
	"bookshelf/internal/normalize"
	"bookshelf/internal/storage/authors"
	"bookshelf/internal/storage/books"
	"bookshelf/internal/storage/subjects"
	"bookshelf/internal/types"
)

// popularOnPage caps the most downloaded list of a remote page analysis.
const popularOnPage = 5

type Service struct {
	search   gutendex.Searcher
	authors  authors.Repository
	books    books.Repository
	subjects subjects.Repository
	l        *slog.Logger
	now      func() time.Time
}

func NewService(search gutendex.Searcher, authorRepo authors.Repository, bookRepo books.Repository,
	subjectRepo subjects.Repository, l *slog.Logger) *Service {
	return &Service{
		search:   search,
		authors:  authorRepo,
		books:    bookRepo,
		subjects: subjectRepo,
		l:        l,
		now:      time.Now,
	}
}

type ImportResult struct {
	Book *types.Book `json:"book" yaml:"book"`
	// Created is false when the book was already in the catalog.
	Created bool `json:"created" yaml:"created"`
}

func storageErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", types.ErrStorage, op, err)
}

func upstreamErr(err error) error {
	if errors.Is(err, types.ErrUpstream) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	return fmt.Errorf("%w: %w", types.ErrUpstream, err)
}

// ImportByTitle stores the first search result for query, or returns the stored copy if it was imported before.
func (s *Service) ImportByTitle(ctx context.Context, query string) (*types.Book, error) {
	res, err := s.Import(ctx, query)
	if err != nil {
		return nil, err
	}

	return res.Book, nil
}

func (s *Service) Import(ctx context.Context, query string) (*ImportResult, error) {
	l := s.l.With(slog.String("query", query))

	raw, err := s.search.Search(ctx, query, gutendex.Filters{})
	if err != nil {
		l.WarnContext(ctx, "Search for import failed: "+err.Error())
		return nil, upstreamErr(err)
	}

	page, err := normalize.ParsePage(raw)
	if err != nil {
		l.ErrorContext(ctx, "Failed to normalize search response: "+err.Error())
		return nil, err
	}

	if page.Empty() {
		return nil, fmt.Errorf("%w: no results for %q", types.ErrNotFound, query)
	}

	return s.Store(ctx, &page.Books[0])
}

// Store persists one normalized search result with the same dedup rules as Import.
func (s *Service) Store(ctx context.Context, b *normalize.Book) (*ImportResult, error) {
	l := s.l.With(slog.String("title", b.TitleOrEmpty()))

	if b.Id != nil {
		existing, err := s.findImported(ctx, b, nil)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			l.DebugContext(ctx, fmt.Sprintf("Book %d already imported", existing.Id))
			return &ImportResult{Book: existing}, nil
		}
	}

	var authorId *int64
	if fa := b.FirstAuthor(); fa != nil {
		author, err := s.FindOrCreateAuthor(ctx, *fa)
		if err != nil {
			return nil, err
		}
		authorId = &author.Id
	}

	// without an external id, the title and author pair is the identity
	if b.Id == nil {
		existing, err := s.findImported(ctx, b, authorId)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return &ImportResult{Book: existing}, nil
		}
	}

	saved, err := s.books.Save(ctx, &types.Book{
		Title:         strings.TrimSpace(b.TitleOrEmpty()),
		AuthorId:      authorId,
		Language:      b.PrimaryLanguage(),
		DownloadCount: b.DownloadCount,
		ExternalId:    b.Id,
	})
	if err != nil {
		if !errors.Is(err, types.ErrConflict) {
			return nil, storageErr("saving book", err)
		}

		// a concurrent import won the race
		existing, rerr := s.findImported(ctx, b, authorId)
		if rerr != nil {
			return nil, rerr
		}
		if existing == nil {
			return nil, storageErr("re-reading conflicting book", err)
		}

		l.InfoContext(ctx, fmt.Sprintf("Book %d was imported concurrently", existing.Id))
		return &ImportResult{Book: existing}, nil
	}

	// the book stays imported even if its subjects cannot be stored
	if err := s.linkSubjects(ctx, saved.Id, b.Subjects); err != nil {
		l.WarnContext(ctx, fmt.Sprintf("Failed to store subjects of book %d: %s", saved.Id, err.Error()))
	}

	l.InfoContext(ctx, fmt.Sprintf("Imported book %d (%s)", saved.Id, saved.Title))
	return &ImportResult{Book: saved, Created: true}, nil
}

func (s *Service) linkSubjects(ctx context.Context, bookId int64, titles []string) error {
	seen := make(map[string]struct{}, len(titles))
	uniq := make([]string, 0, len(titles))
	for _, title := range titles {
		title = strings.TrimSpace(title)
		key := strings.ToLower(title)
		if title == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		uniq = append(uniq, title)
	}

	if len(uniq) == 0 {
		return nil
	}

	ids, err := s.subjects.Insert(ctx, uniq...)
	if err != nil {
		return fmt.Errorf("inserting subjects: %w", err)
	}

	subjectIds := make([]int64, 0, len(ids))
	for _, title := range uniq {
		id, ok := ids[title]
		if !ok {
			return fmt.Errorf("no id returned for subject %q", title)
		}
		subjectIds = append(subjectIds, id)
	}

	if err := s.subjects.Link(ctx, bookId, subjectIds...); err != nil {
		return fmt.Errorf("linking book and subjects: %w", err)
	}

	return nil
}

// findImported looks a search result up by external id, or by title and resolved author when it has none.
func (s *Service) findImported(ctx context.Context, b *normalize.Book, authorId *int64) (*types.Book, error) {
	if b.Id != nil {
		existing, err := s.books.GetByExternalId(ctx, *b.Id)
		if err != nil {
			return nil, storageErr("looking up external id", err)
		}
		return existing, nil
	}

	existing, err := s.books.FindByTitleAndAuthor(ctx, strings.TrimSpace(b.TitleOrEmpty()), authorId)
	if err != nil {
		return nil, storageErr("looking up title", err)
	}

	return existing, nil
}

// FindOrCreateAuthor matches by case-insensitive formatted name. Nameless authors are stored as types.UnknownAuthor.
func (s *Service) FindOrCreateAuthor(ctx context.Context, a normalize.Author) (*types.Author, error) {
	v := a.Value()
	if v.Name == "" {
		v.Name = types.UnknownAuthor
	}

	existing, err := s.authors.FindByName(ctx, v.Name)
	if err != nil {
		return nil, storageErr("looking up author", err)
	}
	if existing != nil {
		return existing, nil
	}

	saved, err := s.authors.Save(ctx, v)
	if err == nil {
		s.l.DebugContext(ctx, fmt.Sprintf("Created author %d (%s)", saved.Id, saved.Name))
		return saved, nil
	}

	if !errors.Is(err, types.ErrConflict) {
		return nil, storageErr("saving author", err)
	}

	existing, rerr := s.authors.FindByName(ctx, v.Name)
	if rerr != nil {
		return nil, storageErr("re-reading author", rerr)
	}
	if existing == nil {
		return nil, storageErr("re-reading conflicting author", err)
	}

	return existing, nil
}

func (s *Service) ListAllBooks(ctx context.Context) ([]*types.Book, error) {
	return s.listBooks(ctx, books.Filter{OrderBy: books.OrderByTitle})
}

// ListBooksByLanguage matches the code case-insensitively. An unknown code yields an empty list.
func (s *Service) ListBooksByLanguage(ctx context.Context, code string) ([]*types.Book, error) {
	code = strings.ToLower(strings.TrimSpace(code))
	if code == "" {
		return []*types.Book{}, nil
	}

	return s.listBooks(ctx, books.Filter{Language: code, OrderBy: books.OrderByTitle})
}

// TopNByDownloads skips books without a download count. Ties are broken by title.
func (s *Service) TopNByDownloads(ctx context.Context, n int) ([]*types.Book, error) {
	if n <= 0 {
		return []*types.Book{}, nil
	}

	return s.listBooks(ctx, books.Filter{WithDownloads: true, OrderBy: books.OrderByDownloads, Limit: n})
}

func (s *Service) SearchBooksByTitle(ctx context.Context, fragment string) ([]*types.Book, error) {
	return s.listBooks(ctx, books.Filter{TitleLike: fragment, OrderBy: books.OrderByTitle})
}

func (s *Service) listBooks(ctx context.Context, f books.Filter) ([]*types.Book, error) {
	ret, err := s.books.List(ctx, f)
	if err != nil {
		return nil, storageErr("listing books", err)
	}

	return ret, nil
}

func (s *Service) ListAllAuthors(ctx context.Context) ([]*types.Author, error) {
	ret, err := s.authors.List(ctx)
	if err != nil {
		return nil, storageErr("listing authors", err)
	}

	return ret, nil
}

// ListAuthorsLivedDuring returns authors whose lifetime overlaps [from, to], ordered like ListAllAuthors.
// Living authors count up to the current year.
func (s *Service) ListAuthorsLivedDuring(ctx context.Context, from, to int) ([]*types.Author, error) {
	all, err := s.ListAllAuthors(ctx)
	if err != nil {
		return nil, err
	}

	now := s.now()
	ret := make([]*types.Author, 0)
	for _, a := range all {
		if a.LivedDuring(from, to, now) {
			ret = append(ret, a)
		}
	}

	return ret, nil
}

// ListAuthorsAliveInYear orders by name, then id. It agrees with IsAliveInYear for every stored author.
func (s *Service) ListAuthorsAliveInYear(ctx context.Context, year int) ([]*types.Author, error) {
	ret, err := s.authors.AliveInYear(ctx, year)
	if err != nil {
		return nil, storageErr("listing authors alive in year", err)
	}

	return ret, nil
}

func (s *Service) IsAliveInYear(author *types.Author, year int) bool {
	return author != nil && author.AliveInYear(year)
}

func (s *Service) SearchAuthorsByName(ctx context.Context, fragment string) ([]*types.Author, error) {
	ret, err := s.authors.SearchByName(ctx, fragment)
	if err != nil {
		return nil, storageErr("searching authors", err)
	}

	return ret, nil
}

func (s *Service) GetBook(ctx context.Context, id int64) (*types.Book, error) {
	b, err := s.books.GetById(ctx, id)
	if err != nil {
		return nil, storageErr("getting book", err)
	}
	if b == nil {
		return nil, fmt.Errorf("%w: book %d", types.ErrNotFound, id)
	}

	b.Subjects, err = s.subjects.ForBook(ctx, id)
	if err != nil {
		return nil, storageErr("getting book subjects", err)
	}

	return b, nil
}

func (s *Service) GetAuthor(ctx context.Context, id int64) (*types.Author, error) {
	a, err := s.authors.GetById(ctx, id)
	if err != nil {
		return nil, storageErr("getting author", err)
	}
	if a == nil {
		return nil, fmt.Errorf("%w: author %d", types.ErrNotFound, id)
	}

	return a, nil
}

func (s *Service) DeleteBook(ctx context.Context, id int64) error {
	ok, err := s.books.Delete(ctx, id)
	if err != nil {
		return storageErr("deleting book", err)
	}
	if !ok {
		return fmt.Errorf("%w: book %d", types.ErrNotFound, id)
	}

	if err := s.subjects.Unlink(ctx, id); err != nil {
		return storageErr("unlinking subjects", err)
	}

	s.l.InfoContext(ctx, fmt.Sprintf("Deleted book %d", id))
	return nil
}

func (s *Service) ListAuthorBooks(ctx context.Context, authorId int64) ([]*types.Book, error) {
	if _, err := s.GetAuthor(ctx, authorId); err != nil {
		return nil, err
	}

	return s.listBooks(ctx, books.Filter{AuthorId: &authorId, OrderBy: books.OrderByTitle})
}

// ListSubjects orders by number of stored books, most common first.
func (s *Service) ListSubjects(ctx context.Context) ([]*subjects.Subject, error) {
	ret, err := s.subjects.GetAll(ctx)
	if err != nil {
		return nil, storageErr("listing subjects", err)
	}

	return ret, nil
}

// ListBooksBySubject matches the whole subject title case-insensitively.
func (s *Service) ListBooksBySubject(ctx context.Context, subject string) ([]*types.Book, error) {
	if strings.TrimSpace(subject) == "" {
		return []*types.Book{}, nil
	}

	ids, err := s.subjects.BookIds(ctx, subject)
	if err != nil {
		return nil, storageErr("looking up subject", err)
	}
	if ids == nil {
		ids = []int64{}
	}

	return s.listBooks(ctx, books.Filter{Ids: ids, OrderBy: books.OrderByTitle})
}

// SearchRemote returns a normalized page without storing anything.
func (s *Service) SearchRemote(ctx context.Context, term string, f gutendex.Filters) (*normalize.Page, error) {
	raw, err := s.search.Search(ctx, term, f)
	if err != nil {
		return nil, upstreamErr(err)
	}

	return normalize.ParsePage(raw)
}

// AnalyzeRemote summarizes one remote page; year, when set, lists the authors alive in it.
func (s *Service) AnalyzeRemote(ctx context.Context, term string, f gutendex.Filters, year *int) (*normalize.PageAnalysis, error) {
	p, err := s.SearchRemote(ctx, term, f)
	if err != nil {
		return nil, err
	}

	return normalize.Analyze(p, s.now(), year, popularOnPage), nil
}

func (s *Service) RemoteBook(ctx context.Context, id int64) (*normalize.Book, error) {
	raw, err := s.search.GetBook(ctx, id)
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			return nil, err
		}
		return nil, upstreamErr(err)
	}

	return normalize.ParseBook(raw)
}

// DescribeAuthor renders name, lifespan, century and age as of now.
func (s *Service) DescribeAuthor(a *types.Author) string {
	return a.Description(s.now())
}
