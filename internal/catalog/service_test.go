package catalog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bookshelf/internal/gutendex"
	"bookshelf/internal/gutendex/mocks"
	"bookshelf/internal/normalize"
	"bookshelf/internal/storage/authors"
	"bookshelf/internal/storage/books"
	"bookshelf/internal/storage/subjects"
	"bookshelf/internal/types"
)

const hamletPage = `{
	"count": 2,
	"results": [
		{
			"id": 1524,
			"title": "Hamlet, Prince of Denmark",
			"authors": [{"name": "Shakespeare, William", "birth_year": 1564, "death_year": 1616}],
			"languages": ["EN"],
			"download_count": 15432
		},
		{
			"id": 2265,
			"title": "Hamlet",
			"authors": [{"name": "Shakespeare, William", "birth_year": 1564, "death_year": 1616}],
			"languages": ["en"]
		}
	]
}`

type fixture struct {
	search  *mocks.MockSearcher
	authors authors.Repository
	books   books.Repository
	svc     *Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	ctrl := gomock.NewController(t)
	search := mocks.NewMockSearcher(ctrl)
	authorRepo := authors.NewMemoryRepository()
	bookRepo := books.NewMemoryRepository(authorRepo)

	svc := NewService(search, authorRepo, bookRepo, subjects.NewMemoryRepository(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	svc.now = func() time.Time { return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC) }

	return &fixture{search: search, authors: authorRepo, books: bookRepo, svc: svc}
}

func ptr[T any](v T) *T {
	return &v
}

func TestImportByTitle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.search.EXPECT().Search(gomock.Any(), "hamlet", gutendex.Filters{}).Return(hamletPage, nil)

	b, err := f.svc.ImportByTitle(ctx, "hamlet")
	require.NoError(t, err)

	assert.Equal(t, "Hamlet, Prince of Denmark", b.Title)
	assert.Equal(t, "en", b.Language)
	assert.Equal(t, int64(1524), *b.ExternalId)
	assert.Equal(t, 15432, *b.DownloadCount)
	require.NotNil(t, b.Author)
	assert.Equal(t, "William Shakespeare", b.AuthorName())
	assert.Equal(t, 1564, *b.Author.BirthYear)

	count, err := f.books.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestImportIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.search.EXPECT().Search(gomock.Any(), "hamlet", gomock.Any()).Return(hamletPage, nil).Times(2)

	first, err := f.svc.Import(ctx, "hamlet")
	require.NoError(t, err)
	assert.True(t, first.Created)

	second, err := f.svc.Import(ctx, "hamlet")
	require.NoError(t, err)
	assert.False(t, second.Created)
	assert.Equal(t, first.Book.Id, second.Book.Id)

	bookCount, err := f.books.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, bookCount)

	authorCount, err := f.authors.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, authorCount)
}

func TestImportReusesAuthorAcrossBooks(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.search.EXPECT().Search(gomock.Any(), "hamlet", gomock.Any()).Return(hamletPage, nil)
	f.search.EXPECT().Search(gomock.Any(), "macbeth", gomock.Any()).Return(`{"results": [
		{"id": 1533, "title": "Macbeth", "authors": [{"name": "william shakespeare"}], "languages": ["en"]}
	]}`, nil)

	hamlet, err := f.svc.ImportByTitle(ctx, "hamlet")
	require.NoError(t, err)

	macbeth, err := f.svc.ImportByTitle(ctx, "macbeth")
	require.NoError(t, err)

	assert.Equal(t, *hamlet.AuthorId, *macbeth.AuthorId)

	authorBooks, err := f.svc.ListAuthorBooks(ctx, *hamlet.AuthorId)
	require.NoError(t, err)
	assert.Len(t, authorBooks, 2)
}

func TestImportWithoutAuthorsOrLanguages(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.search.EXPECT().Search(gomock.Any(), "anon", gomock.Any()).Return(`{"results": [{"title": "Beowulf"}]}`, nil).Times(2)

	first, err := f.svc.Import(ctx, "anon")
	require.NoError(t, err)
	assert.True(t, first.Created)
	assert.Nil(t, first.Book.AuthorId)
	assert.Nil(t, first.Book.ExternalId)
	assert.Equal(t, types.UnknownLanguage, first.Book.Language)
	assert.Equal(t, types.UnknownAuthor, first.Book.AuthorName())

	// no external id: title and author identify the book
	second, err := f.svc.Import(ctx, "anon")
	require.NoError(t, err)
	assert.False(t, second.Created)
	assert.Equal(t, first.Book.Id, second.Book.Id)
}

func TestImportNotFound(t *testing.T) {
	f := newFixture(t)

	f.search.EXPECT().Search(gomock.Any(), gomock.Any(), gomock.Any()).Return(`{"count": 0, "results": []}`, nil)

	_, err := f.svc.ImportByTitle(context.Background(), "zzzz")
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestImportUpstreamError(t *testing.T) {
	f := newFixture(t)

	f.search.EXPECT().Search(gomock.Any(), gomock.Any(), gomock.Any()).Return("", errors.New("connection refused"))

	_, err := f.svc.ImportByTitle(context.Background(), "hamlet")
	assert.ErrorIs(t, err, types.ErrUpstream)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestImportMalformed(t *testing.T) {
	f := newFixture(t)

	f.search.EXPECT().Search(gomock.Any(), gomock.Any(), gomock.Any()).Return(`{"results": [`, nil)

	_, err := f.svc.ImportByTitle(context.Background(), "hamlet")
	assert.ErrorIs(t, err, types.ErrMalformedPayload)
}

// conflictingBooks simulates a concurrent import landing between lookup and insert.
type conflictingBooks struct {
	books.Repository
	winner *types.Book
}

func (c *conflictingBooks) GetByExternalId(ctx context.Context, id int64) (*types.Book, error) {
	if c.winner == nil {
		return nil, nil
	}
	return c.Repository.GetByExternalId(ctx, id)
}

func (c *conflictingBooks) Save(ctx context.Context, b *types.Book) (*types.Book, error) {
	if c.winner == nil {
		winner, err := c.Repository.Save(ctx, b)
		if err != nil {
			return nil, err
		}
		c.winner = winner
	}

	return nil, fmt.Errorf("%w: book %q", types.ErrConflict, b.Title)
}

func TestImportConflictRereads(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	racing := &conflictingBooks{Repository: f.books}
	f.svc.books = racing

	f.search.EXPECT().Search(gomock.Any(), gomock.Any(), gomock.Any()).Return(hamletPage, nil)

	res, err := f.svc.Import(ctx, "hamlet")
	require.NoError(t, err)
	assert.False(t, res.Created)
	assert.Equal(t, racing.winner.Id, res.Book.Id)

	count, err := f.books.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

type failingAuthors struct {
	authors.Repository
}

func (failingAuthors) FindByName(context.Context, string) (*types.Author, error) {
	return nil, errors.New("connection reset")
}

func TestImportStorageError(t *testing.T) {
	f := newFixture(t)
	f.svc.authors = failingAuthors{f.authors}

	f.search.EXPECT().Search(gomock.Any(), gomock.Any(), gomock.Any()).Return(hamletPage, nil)

	_, err := f.svc.ImportByTitle(context.Background(), "hamlet")
	assert.ErrorIs(t, err, types.ErrStorage)
}

func seedBooks(t *testing.T, f *fixture, downloads ...*int) {
	t.Helper()

	for i, d := range downloads {
		_, err := f.books.Save(context.Background(), &types.Book{
			Title:         fmt.Sprintf("book %d", i),
			Language:      "en",
			DownloadCount: d,
			ExternalId:    ptr(int64(i + 1)),
		})
		require.NoError(t, err)
	}
}

func TestTopNByDownloads(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	seedBooks(t, f, nil, ptr(500), ptr(1500), ptr(1000))

	top, err := f.svc.TopNByDownloads(ctx, 2)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, 1500, *top[0].DownloadCount)
	assert.Equal(t, 1000, *top[1].DownloadCount)

	all, err := f.svc.TopNByDownloads(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, all, 3)
	for _, b := range all {
		assert.NotNil(t, b.DownloadCount)
	}

	none, err := f.svc.TopNByDownloads(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestTopNByDownloadsTiesByTitle(t *testing.T) {
	f := newFixture(t)
	seedBooks(t, f, ptr(100), ptr(100), ptr(100))

	top, err := f.svc.TopNByDownloads(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, "book 0", top[0].Title)
	assert.Equal(t, "book 1", top[1].Title)
	assert.Equal(t, "book 2", top[2].Title)
}

func TestListBooks(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, b := range []*types.Book{
		{Title: "b", Language: "en"},
		{Title: "a", Language: "fr"},
		{Title: "C", Language: "en"},
	} {
		_, err := f.books.Save(ctx, b)
		require.NoError(t, err)
	}

	all, err := f.svc.ListAllBooks(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "C", all[0].Title)
	assert.Equal(t, "a", all[1].Title)
	assert.Equal(t, "b", all[2].Title)

	en, err := f.svc.ListBooksByLanguage(ctx, "EN")
	require.NoError(t, err)
	require.Len(t, en, 2)
	assert.Equal(t, "C", en[0].Title)

	unknown, err := f.svc.ListBooksByLanguage(ctx, "xx")
	require.NoError(t, err)
	assert.NotNil(t, unknown)
	assert.Empty(t, unknown)

	found, err := f.svc.SearchBooksByTitle(ctx, "c")
	require.NoError(t, err)
	assert.Len(t, found, 1)
}

func seedAuthors(t *testing.T, f *fixture) {
	t.Helper()

	for _, a := range []*types.Author{
		{Name: "Shakespeare, William", BirthYear: ptr(1564), DeathYear: ptr(1616)},
		{Name: "Anonymous"},
		{Name: "Orphan", DeathYear: ptr(1600)},
		{Name: "Cervantes, Miguel de", BirthYear: ptr(1547), DeathYear: ptr(1616)},
		{Name: "Austen, Jane", BirthYear: ptr(1775), DeathYear: ptr(1817)},
		{Name: "King, Stephen", BirthYear: ptr(1947)},
	} {
		_, err := f.authors.Save(context.Background(), a)
		require.NoError(t, err)
	}
}

func TestListAuthorsAliveInYear(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	seedAuthors(t, f)

	names := func(year int) []string {
		alive, err := f.svc.ListAuthorsAliveInYear(ctx, year)
		require.NoError(t, err)

		ret := make([]string, 0, len(alive))
		for _, a := range alive {
			ret = append(ret, a.Name)
		}
		return ret
	}

	assert.Equal(t, []string{"Cervantes, Miguel de", "Shakespeare, William"}, names(1600))
	assert.NotContains(t, names(1700), "Shakespeare, William")
	assert.NotContains(t, names(1500), "Shakespeare, William")
	assert.Equal(t, []string{"King, Stephen"}, names(2000))
}

func TestListAuthorsLivedDuring(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	seedAuthors(t, f)

	names := func(from, to int) []string {
		rows, err := f.svc.ListAuthorsLivedDuring(ctx, from, to)
		require.NoError(t, err)

		ret := make([]string, 0, len(rows))
		for _, a := range rows {
			ret = append(ret, a.Name)
		}
		return ret
	}

	assert.Equal(t, []string{"Cervantes, Miguel de", "Shakespeare, William"}, names(1610, 1620))
	assert.Equal(t, []string{"Austen, Jane"}, names(1800, 1800))
	assert.Equal(t, []string{"King, Stephen"}, names(2020, 2030))
	assert.Empty(t, names(1000, 1100))
}

func TestAnalyzeRemote(t *testing.T) {
	f := newFixture(t)

	f.search.EXPECT().Search(gomock.Any(), "hamlet", gutendex.Filters{Language: "en"}).Return(hamletPage, nil)

	a, err := f.svc.AnalyzeRemote(context.Background(), "hamlet", gutendex.Filters{Language: "en"}, ptr(1600))
	require.NoError(t, err)
	assert.Equal(t, 2, a.Books)
	assert.Equal(t, map[string]int{"en": 2}, a.ByLanguage)
	assert.Equal(t, []string{"William Shakespeare"}, a.AliveInYear)
	require.Len(t, a.Authors, 1)
	assert.True(t, a.Authors[0].Classic)
	require.Len(t, a.MostPopular, 1)
	assert.Equal(t, 15432, a.MostPopular[0].DownloadCount)

	f.search.EXPECT().Search(gomock.Any(), "hamlet", gutendex.Filters{}).Return("", errors.New("timeout"))

	_, err = f.svc.AnalyzeRemote(context.Background(), "hamlet", gutendex.Filters{}, nil)
	assert.ErrorIs(t, err, types.ErrUpstream)
}

func TestAliveInYearAgreesWithPredicate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	seedAuthors(t, f)

	all, err := f.svc.ListAllAuthors(ctx)
	require.NoError(t, err)
	require.Len(t, all, 6)

	for _, year := range []int{-100, 0, 1500, 1547, 1564, 1600, 1616, 1617, 1800, 1817, 1900, 2026, 3000} {
		alive, err := f.svc.ListAuthorsAliveInYear(ctx, year)
		require.NoError(t, err)

		inList := make(map[int64]bool, len(alive))
		for _, a := range alive {
			inList[a.Id] = true
			assert.True(t, f.svc.IsAliveInYear(a, year), "%s in %d", a.Name, year)
		}

		for _, a := range all {
			assert.Equal(t, inList[a.Id], f.svc.IsAliveInYear(a, year), "%s in %d", a.Name, year)
		}
	}

	assert.False(t, f.svc.IsAliveInYear(nil, 1600))
}

func TestListAllAuthorsByRawName(t *testing.T) {
	f := newFixture(t)
	seedAuthors(t, f)

	all, err := f.svc.ListAllAuthors(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "Anonymous", all[0].Name)
	assert.Equal(t, "Austen, Jane", all[1].Name)
	assert.Equal(t, "Shakespeare, William", all[len(all)-1].Name)
}

func TestGetAndDelete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.GetBook(ctx, 1)
	assert.ErrorIs(t, err, types.ErrNotFound)

	_, err = f.svc.GetAuthor(ctx, 1)
	assert.ErrorIs(t, err, types.ErrNotFound)

	_, err = f.svc.ListAuthorBooks(ctx, 1)
	assert.ErrorIs(t, err, types.ErrNotFound)

	seedBooks(t, f, ptr(1))

	b, err := f.svc.GetBook(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "book 0", b.Title)

	require.NoError(t, f.svc.DeleteBook(ctx, 1))
	assert.ErrorIs(t, f.svc.DeleteBook(ctx, 1), types.ErrNotFound)
}

func TestStats(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	seedAuthors(t, f)

	for _, b := range []*types.Book{
		{Title: "Hamlet", Language: "en", AuthorId: ptr(int64(1))},
		{Title: "Macbeth", Language: "en", AuthorId: ptr(int64(1))},
		{Title: "Don Quijote", Language: "es", AuthorId: ptr(int64(4))},
	} {
		_, err := f.books.Save(ctx, b)
		require.NoError(t, err)
	}

	st, err := f.svc.Stats(ctx)
	require.NoError(t, err)

	assert.Equal(t, 3, st.Books)
	assert.Equal(t, 6, st.Authors)
	assert.Equal(t, 2, st.LivingAuthors)
	assert.Equal(t, 4, st.DeceasedAuthors)
	assert.Equal(t, []LanguageCount{
		{Language: "en", Name: "English", Books: 2},
		{Language: "es", Name: "Spanish", Books: 1},
	}, st.ByLanguage)
	assert.Equal(t, []CenturyCount{
		{Century: 16, Authors: 2},
		{Century: 18, Authors: 1},
		{Century: 20, Authors: 1},
	}, st.ByCentury)

	prolific, err := f.svc.ProlificAuthors(ctx, 1)
	require.NoError(t, err)
	require.Len(t, prolific, 1)
	assert.Equal(t, "Shakespeare, William", prolific[0].Author.Name)
	assert.Equal(t, 2, prolific[0].Books)

	byAuthor, err := f.svc.SearchBooksByAuthor(ctx, "cervantes")
	require.NoError(t, err)
	require.Len(t, byAuthor, 1)
	assert.Equal(t, "Don Quijote", byAuthor[0].Title)
}

func TestSearchRemote(t *testing.T) {
	f := newFixture(t)

	f.search.EXPECT().Search(gomock.Any(), "hamlet", gutendex.Filters{Language: "en", Page: 2}).Return(hamletPage, nil)

	page, err := f.svc.SearchRemote(context.Background(), "hamlet", gutendex.Filters{Language: "en", Page: 2})
	require.NoError(t, err)
	assert.Equal(t, 2, page.TotalCount)
	assert.Len(t, page.Books, 2)

	count, err := f.books.Count(context.Background())
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestRemoteBook(t *testing.T) {
	f := newFixture(t)

	f.search.EXPECT().GetBook(gomock.Any(), int64(1524)).Return(`{"id": 1524, "title": "Hamlet"}`, nil)
	f.search.EXPECT().GetBook(gomock.Any(), int64(1)).Return("", fmt.Errorf("%w: book 1", types.ErrNotFound))

	b, err := f.svc.RemoteBook(context.Background(), 1524)
	require.NoError(t, err)
	assert.Equal(t, "Hamlet", *b.Title)

	_, err = f.svc.RemoteBook(context.Background(), 1)
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestDescribeAuthor(t *testing.T) {
	f := newFixture(t)

	a := &types.Author{Name: "Austen, Jane", BirthYear: ptr(1775), DeathYear: ptr(1817)}
	assert.Equal(t, "Jane Austen (1775 - 1817) - 18 century - classic - lived 42 years", f.svc.DescribeAuthor(a))
	assert.Equal(t, "Spanish", LanguageName("ES"))
	assert.Equal(t, "XX", LanguageName("xx"))
}

func TestStoreKeepsSubjects(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.svc.Store(ctx, &normalize.Book{
		Id:        ptr(int64(1342)),
		Title:     ptr("Pride and Prejudice"),
		Authors:   []normalize.Author{{Name: ptr("Austen, Jane")}},
		Languages: []string{"en"},
		Subjects:  []string{"Courtship -- Fiction", " courtship -- fiction ", "", "England -- Fiction"},
	})
	require.NoError(t, err)
	require.True(t, res.Created)

	_, err = f.svc.Store(ctx, &normalize.Book{
		Id:       ptr(int64(158)),
		Title:    ptr("Emma"),
		Subjects: []string{"England -- Fiction"},
	})
	require.NoError(t, err)

	b, err := f.svc.GetBook(ctx, res.Book.Id)
	require.NoError(t, err)
	assert.Equal(t, []string{"Courtship -- Fiction", "England -- Fiction"}, b.Subjects)

	all, err := f.svc.ListSubjects(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "England -- Fiction", all[0].Title)
	assert.Equal(t, 2, all[0].Books)

	rows, err := f.svc.ListBooksBySubject(ctx, "england -- fiction")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Emma", rows[0].Title)
	assert.Equal(t, "Pride and Prejudice", rows[1].Title)

	rows, err = f.svc.ListBooksBySubject(ctx, "Whaling")
	require.NoError(t, err)
	assert.Empty(t, rows)

	require.NoError(t, f.svc.DeleteBook(ctx, res.Book.Id))

	rows, err = f.svc.ListBooksBySubject(ctx, "Courtship -- Fiction")
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestStoreDeduplicatesLikeImport(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.search.EXPECT().Search(gomock.Any(), "hamlet", gomock.Any()).Return(hamletPage, nil)

	imported, err := f.svc.Import(ctx, "hamlet")
	require.NoError(t, err)

	stored, err := f.svc.Store(ctx, &normalize.Book{Id: ptr(int64(1524)), Title: ptr("Hamlet, Prince of Denmark")})
	require.NoError(t, err)
	assert.False(t, stored.Created)
	assert.Equal(t, imported.Book.Id, stored.Book.Id)
}
