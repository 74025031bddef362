package normalize

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bookshelf/internal/types"
)

const gutendexPage = `{
  "count": 2,
  "next": "https://gutendex.com/books/?page=2&search=shakespeare",
  "previous": null,
  "results": [
    {
      "id": 1524,
      "title": "Hamlet, Prince of Denmark",
      "authors": [{"name": "Shakespeare, William", "birth_year": 1564, "death_year": 1616}],
      "translators": [],
      "subjects": ["Tragedies", "Denmark -- Drama"],
      "bookshelves": ["Plays"],
      "languages": ["en"],
      "copyright": false,
      "media_type": "Text",
      "formats": {
        "text/html": "https://www.gutenberg.org/ebooks/1524.html.images",
        "application/epub+zip": "https://www.gutenberg.org/ebooks/1524.epub3.images"
      },
      "download_count": 15432,
      "unexpected": {"nested": [1, 2, 3]}
    },
    {
      "id": 100,
      "title": "The Complete Works of William Shakespeare",
      "authors": [{"name": "Shakespeare, William", "birth_year": 1564, "death_year": 1616}],
      "languages": ["EN", "fr"],
      "download_count": 9000
    }
  ]
}`

func TestParsePage(t *testing.T) {
	p, err := ParsePage(gutendexPage)
	require.NoError(t, err)

	assert.Equal(t, 2, p.TotalCount)
	require.NotNil(t, p.Next)
	assert.True(t, p.HasNext())
	assert.Nil(t, p.Previous)
	require.Len(t, p.Books, 2)

	b := p.Books[0]
	assert.Equal(t, int64(1524), *b.Id)
	assert.Equal(t, "Hamlet, Prince of Denmark", *b.Title)
	assert.Equal(t, "William Shakespeare", b.AuthorNames())
	assert.Equal(t, "en", b.PrimaryLanguage())
	assert.Equal(t, 15432, *b.DownloadCount)
	assert.Equal(t, "Text", *b.MediaType)
	assert.True(t, b.IsPublicDomain())
	assert.True(t, b.HasFormat("application/epub"))
	assert.Equal(t, "https://www.gutenberg.org/ebooks/1524.html.images", b.FormatURL("text/html"))
	assert.False(t, b.HasFormat("audio/"))
	assert.Empty(t, b.Translators)
	assert.NotNil(t, b.Translators)

	assert.Len(t, p.UniqueAuthors(), 1)
	assert.Equal(t, []string{"en", "fr"}, p.Languages())
	assert.Len(t, p.ByLanguage("FR"), 1)
	assert.Len(t, p.PublicDomain(), 2)
	assert.Equal(t, "en", p.Books[1].PrimaryLanguage())
}

func TestPrimaryLanguageIsFirstEntry(t *testing.T) {
	b, err := ParseBook(`{"title": "Faust", "languages": ["", "de"]}`)
	require.NoError(t, err)
	assert.Equal(t, types.UnknownLanguage, b.PrimaryLanguage())

	b, err = ParseBook(`{"title": "Faust", "languages": [" DE ", "en"]}`)
	require.NoError(t, err)
	assert.Equal(t, "de", b.PrimaryLanguage())
}

func TestParsePageAliases(t *testing.T) {
	tests := []struct {
		name    string
		countK  string
		nextK   string
		prevK   string
		resultK string
	}{
		{"primary", "count", "next", "previous", "results"},
		{"second", "total", "next_page", "prev_page", "books"},
		{"third", "total_count", "next_url", "prev_url", "data"},
		{"fourth", "total_count", "next_url", "previous_page", "items"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := fmt.Sprintf(`{%q: 7, %q: "n", %q: "p", %q: [{"title": "X"}]}`,
				tt.countK, tt.nextK, tt.prevK, tt.resultK)

			p, err := ParsePage(raw)
			require.NoError(t, err)
			assert.Equal(t, 7, p.TotalCount)
			assert.Equal(t, "n", *p.Next)
			assert.Equal(t, "p", *p.Previous)
			require.Len(t, p.Books, 1)
			assert.Equal(t, "X", *p.Books[0].Title)
		})
	}
}

func TestParseBookTitleAliases(t *testing.T) {
	for _, key := range bookTitleKeys {
		t.Run(key, func(t *testing.T) {
			b, err := ParseBook(fmt.Sprintf(`{%q: "Moby Dick"}`, key))
			require.NoError(t, err)
			require.NotNil(t, b.Title)
			assert.Equal(t, "Moby Dick", *b.Title)
		})
	}
}

func TestParseBookFieldAliases(t *testing.T) {
	raw := `{
		"gutenberg_id": "2701",
		"book_title": "Moby Dick",
		"writers": [{"writer_name": "Melville, Herman", "year_born": "1819", "year_died": 1891}],
		"topics": ["Whaling"],
		"shelves": ["Best Books Ever Listings"],
		"langs": ["en"],
		"copyrighted": "true",
		"content_type": "Text",
		"files": {"text/plain": "https://example.org/2701.txt"},
		"downloads": "1200"
	}`

	b, err := ParseBook(raw)
	require.NoError(t, err)

	assert.Equal(t, int64(2701), *b.Id)
	assert.Equal(t, "Moby Dick", *b.Title)
	require.Len(t, b.Authors, 1)
	assert.Equal(t, "Herman Melville", b.Authors[0].FormattedName())
	assert.Equal(t, 1819, *b.Authors[0].BirthYear)
	assert.Equal(t, 1891, *b.Authors[0].DeathYear)
	assert.Equal(t, []string{"Whaling"}, b.Subjects)
	assert.Equal(t, []string{"Best Books Ever Listings"}, b.Bookshelves)
	assert.Equal(t, []string{"en"}, b.Languages)
	assert.True(t, *b.Copyright)
	assert.False(t, b.IsPublicDomain())
	assert.Equal(t, "Text", *b.MediaType)
	assert.True(t, b.HasFormat("text/plain"))
	assert.Equal(t, 1200, *b.DownloadCount)
}

func TestParseBookAliasPriority(t *testing.T) {
	b, err := ParseBook(`{"name": "third", "book_title": "second", "title": "first"}`)
	require.NoError(t, err)
	assert.Equal(t, "first", *b.Title)

	// null is absent, so the next alias wins
	b, err = ParseBook(`{"title": null, "book_title": "second"}`)
	require.NoError(t, err)
	assert.Equal(t, "second", *b.Title)
}

func TestParseBookMissingCollections(t *testing.T) {
	b, err := ParseBook(`{"id": 1, "title": "Bare"}`)
	require.NoError(t, err)

	assert.NotNil(t, b.Authors)
	assert.Empty(t, b.Authors)
	assert.NotNil(t, b.Languages)
	assert.Empty(t, b.Languages)
	assert.NotNil(t, b.Formats)
	assert.Empty(t, b.Formats)
	assert.NotNil(t, b.Subjects)
	assert.Empty(t, b.Subjects)
	assert.Nil(t, b.DownloadCount)
	assert.Nil(t, b.Copyright)

	assert.Nil(t, b.FirstAuthor())
	assert.Equal(t, types.UnknownAuthor, b.AuthorNames())
	assert.Equal(t, types.UnknownLanguage, b.PrimaryLanguage())
	assert.True(t, b.IsPublicDomain())
	assert.Equal(t, "Bare by unknown author [unknown]", b.Summary())
}

func TestParseBookNullsAreAbsent(t *testing.T) {
	b, err := ParseBook(`{"id": null, "title": null, "download_count": null, "authors": null, "languages": null}`)
	require.NoError(t, err)

	assert.Nil(t, b.Id)
	assert.Nil(t, b.Title)
	assert.Nil(t, b.DownloadCount)
	assert.Empty(t, b.Authors)
	assert.Empty(t, b.Languages)
}

func TestParseBookLargeDownloadCount(t *testing.T) {
	b, err := ParseBook(`{"id": 84, "title": "Frankenstein", "download_count": 3000000000}`)
	require.NoError(t, err)
	require.NotNil(t, b.DownloadCount)
	assert.Equal(t, 3000000000, *b.DownloadCount)

	b, err = ParseBook(`{"id": 84, "download_count": "4000000000"}`)
	require.NoError(t, err)
	require.NotNil(t, b.DownloadCount)
	assert.Equal(t, 4000000000, *b.DownloadCount)

	p, err := ParsePage(`{"results": [
		{"title": "modest", "download_count": 2000000000},
		{"title": "huge", "download_count": 3000000000}
	]}`)
	require.NoError(t, err)
	top := p.MostPopular(1)
	require.Len(t, top, 1)
	assert.Equal(t, "huge", *top[0].Title)
}

func TestParseBookLenientShapes(t *testing.T) {
	b, err := ParseBook(`{
		"title": {"nested": true},
		"authors": {"name": "Dante"},
		"languages": "it",
		"download_count": "many"
	}`)
	require.NoError(t, err)

	assert.Nil(t, b.Title)
	require.Len(t, b.Authors, 1)
	assert.Equal(t, "Dante", b.Authors[0].FormattedName())
	assert.Equal(t, []string{"it"}, b.Languages)
	assert.Nil(t, b.DownloadCount)

	b, err = ParseBook(`{"authors": ["Dante", {"name": "Virgil"}, 3]}`)
	require.NoError(t, err)
	require.Len(t, b.Authors, 1)
	assert.Equal(t, "Virgil", *b.Authors[0].Name)
}

func TestParseAuthorAliases(t *testing.T) {
	nameKeys := authorNameKeys
	birthKeys := authorBirthKeys
	deathKeys := authorDeathKeys

	for i := range nameKeys {
		t.Run(nameKeys[i], func(t *testing.T) {
			raw := fmt.Sprintf(`{%q: "Austen, Jane", %q: 1775, %q: "1817"}`,
				nameKeys[i], birthKeys[i], deathKeys[i])

			a, err := ParseAuthor(raw)
			require.NoError(t, err)
			assert.Equal(t, "Austen, Jane", *a.Name)
			assert.Equal(t, 1775, *a.BirthYear)
			assert.Equal(t, 1817, *a.DeathYear)
			assert.Equal(t, "Jane Austen", a.FormattedName())
			assert.Equal(t, "1775 - 1817", a.Lifespan())
			assert.True(t, a.AliveInYear(1800))
			assert.False(t, a.IsAlive())
		})
	}
}

func TestParseAuthorEmpty(t *testing.T) {
	a, err := ParseAuthor(`{}`)
	require.NoError(t, err)

	assert.Nil(t, a.Name)
	assert.Equal(t, types.UnknownAuthor, a.FormattedName())
	assert.Equal(t, types.UnknownPeriod, a.Lifespan())
	assert.True(t, a.IsAlive())
	assert.False(t, a.AliveInYear(1900))
}

func TestParseMalformed(t *testing.T) {
	inputs := []string{
		`{"count": 1, "results": [`,
		``,
		`not json`,
		`[1, 2, 3]`,
		`"string root"`,
		`null`,
		`{} {}`,
	}

	for _, raw := range inputs {
		_, err := ParsePage(raw)
		assert.ErrorIs(t, err, types.ErrMalformedPayload, raw)

		_, err = ParseBook(raw)
		assert.ErrorIs(t, err, types.ErrMalformedPayload, raw)

		_, err = ParseAuthor(raw)
		assert.ErrorIs(t, err, types.ErrMalformedPayload, raw)
	}

	_, err := ParseBook(`[1, 2, 3]`)
	assert.EqualError(t, err, "malformed payload: root is Array, expected Object")
}

func TestPageMostPopular(t *testing.T) {
	p, err := ParsePage(`{"results": [
		{"title": "none"},
		{"title": "five hundred", "download_count": 500},
		{"title": "fifteen hundred", "download_count": 1500},
		{"title": "thousand", "download_count": 1000}
	]}`)
	require.NoError(t, err)

	top := p.MostPopular(2)
	require.Len(t, top, 2)
	assert.Equal(t, "fifteen hundred", *top[0].Title)
	assert.Equal(t, "thousand", *top[1].Title)

	assert.Len(t, p.MostPopular(10), 3)
	assert.Empty(t, p.MostPopular(0))
	assert.False(t, p.HasNext())
	assert.Equal(t, 0, p.TotalCount)
}

func TestPageEmpty(t *testing.T) {
	p, err := ParsePage(`{"count": 0, "results": []}`)
	require.NoError(t, err)
	assert.True(t, p.Empty())

	p, err = ParsePage(`{}`)
	require.NoError(t, err)
	assert.True(t, p.Empty())
	assert.NotNil(t, p.Books)
}
