package opds

import (
	"context"
	"encoding/xml"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/opds-community/libopds2-go/opds1"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bookshelf/internal/catalog"
	"bookshelf/internal/gutendex/mocks"
	"bookshelf/internal/response"
	"bookshelf/internal/storage/authors"
	"bookshelf/internal/storage/books"
	"bookshelf/internal/storage/subjects"
	"bookshelf/internal/types"
)

func ptr[T any](v T) *T {
	return &v
}

func newTestHandler(t *testing.T) http.Handler {
	t.Helper()
	ctx := context.Background()

	authorRepo := authors.NewMemoryRepository()
	bookRepo := books.NewMemoryRepository(authorRepo)

	austen, err := authorRepo.Save(ctx, &types.Author{Name: "Austen, Jane", BirthYear: ptr(1775), DeathYear: ptr(1817)})
	require.NoError(t, err)

	for _, b := range []*types.Book{
		{Title: "Pride and Prejudice", AuthorId: &austen.Id, Language: "en", DownloadCount: ptr(52000), ExternalId: ptr[int64](1342)},
		{Title: "Emma", AuthorId: &austen.Id, Language: "en", DownloadCount: ptr(9000), ExternalId: ptr[int64](158)},
		{Title: "Orphan", Language: types.UnknownLanguage},
	} {
		_, err := bookRepo.Save(ctx, b)
		require.NoError(t, err)
	}

	svc := catalog.NewService(mocks.NewMockSearcher(gomock.NewController(t)), authorRepo, bookRepo, subjects.NewMemoryRepository(),
		slog.New(slog.NewTextHandler(io.Discard, nil)))

	return Handler(svc, &response.Responder{}, "/opds")
}

func get(t *testing.T, h http.Handler, target string) (*httptest.ResponseRecorder, *opds1.Feed) {
	t.Helper()

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, target, nil))

	if w.Code != http.StatusOK {
		return w, nil
	}

	var feed opds1.Feed
	require.NoError(t, xml.Unmarshal(w.Body.Bytes(), &feed))
	return w, &feed
}

func TestBooksFeed(t *testing.T) {
	h := newTestHandler(t)

	w, feed := get(t, h, "/books")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "kind=acquisition")
	assert.Contains(t, w.Body.String(), `xmlns="http://www.w3.org/2005/Atom"`)

	assert.Equal(t, "All books", feed.Title)
	require.Len(t, feed.Entries, 3)

	emma := feed.Entries[0]
	assert.Equal(t, "Emma", emma.Title)
	assert.Equal(t, "en", emma.Language)
	require.Len(t, emma.Author, 1)
	assert.Equal(t, "/opds/authors/1", emma.Author[0].URI)
	require.Len(t, emma.Category, 1)
	assert.Equal(t, "English", emma.Category[0].Term)
	require.Len(t, emma.Links, 2)
	assert.Equal(t, "https://www.gutenberg.org/ebooks/158.epub.images", emma.Links[0].Href)

	orphan := feed.Entries[1]
	assert.Equal(t, "Orphan", orphan.Title)
	assert.Empty(t, orphan.Author)
	assert.Empty(t, orphan.Category)
	assert.Empty(t, orphan.Links)
}

func TestLanguageAndTopFeeds(t *testing.T) {
	h := newTestHandler(t)

	_, feed := get(t, h, "/books?language=EN")
	assert.Equal(t, "Books in English", feed.Title)
	assert.Len(t, feed.Entries, 2)

	_, feed = get(t, h, "/top")
	require.Len(t, feed.Entries, 2)
	assert.Equal(t, "Pride and Prejudice", feed.Entries[0].Title)

	_, feed = get(t, h, "/languages")
	require.Len(t, feed.Entries, 2)
	assert.Equal(t, "English", feed.Entries[0].Title)
	assert.Equal(t, "/opds/books?language=en", feed.Entries[0].Links[0].Href)
}

func TestRootAndAuthorFeeds(t *testing.T) {
	h := newTestHandler(t)

	w, feed := get(t, h, "/")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "kind=navigation")
	assert.Len(t, feed.Entries, 3)

	_, feed = get(t, h, "/authors/1")
	assert.Equal(t, "Books by Jane Austen", feed.Title)
	assert.Len(t, feed.Entries, 2)

	w, _ = get(t, h, "/authors/42")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, _ = get(t, h, "/authors/x")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
