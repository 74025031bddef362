// Package normalize converts raw Gutendex-like JSON into canonical records.
//
// Every target field has an ordered list of accepted source keys. The first key present
// with a non-null value wins; when none is present the field stays absent. Unknown keys
// are ignored and missing collections become empty ones.
package normalize

var (
	pageCountKeys    = []string{"count", "total", "total_count"}
	pageNextKeys     = []string{"next", "next_page", "next_url"}
	pagePreviousKeys = []string{"previous", "prev_page", "prev_url", "previous_page"}
	pageResultsKeys  = []string{"results", "books", "data", "items"}

	bookIdKeys          = []string{"id", "book_id", "gutenberg_id"}
	bookTitleKeys       = []string{"title", "book_title", "name"}
	bookAuthorsKeys     = []string{"authors", "book_authors", "writers"}
	bookTranslatorsKeys = []string{"translators"}
	bookSubjectsKeys    = []string{"subjects", "book_subjects", "topics"}
	bookBookshelvesKeys = []string{"bookshelves", "shelves", "categories"}
	bookLanguagesKeys   = []string{"languages", "book_languages", "langs"}
	bookCopyrightKeys   = []string{"copyright", "has_copyright", "copyrighted"}
	bookMediaTypeKeys   = []string{"media_type", "type", "content_type"}
	bookFormatsKeys     = []string{"formats", "download_links", "files"}
	bookDownloadsKeys   = []string{"download_count", "downloads", "download_number"}

	authorNameKeys  = []string{"name", "author_name", "full_name", "writer_name"}
	authorBirthKeys = []string{"birth_year", "born", "birth", "year_born"}
	authorDeathKeys = []string{"death_year", "died", "death", "year_died"}
)

// ParsePage parses a paged search response.
func ParsePage(raw string) (*Page, error) {
	obj, err := decodeObject(raw)
	if err != nil {
		return nil, err
	}

	return pageFromObject(obj), nil
}

// ParseBook parses a single book object.
func ParseBook(raw string) (*Book, error) {
	obj, err := decodeObject(raw)
	if err != nil {
		return nil, err
	}

	return bookFromObject(obj), nil
}

// ParseAuthor parses a single author object.
func ParseAuthor(raw string) (*Author, error) {
	obj, err := decodeObject(raw)
	if err != nil {
		return nil, err
	}

	return authorFromObject(obj), nil
}

func pageFromObject(obj map[string]any) *Page {
	p := &Page{
		Next:     stringField(obj, pageNextKeys),
		Previous: stringField(obj, pagePreviousKeys),
	}

	if count := intField(obj, pageCountKeys); count != nil {
		p.TotalCount = *count
	}

	results := objectsField(obj, pageResultsKeys)
	p.Books = make([]Book, 0, len(results))
	for _, r := range results {
		p.Books = append(p.Books, *bookFromObject(r))
	}

	return p
}

func bookFromObject(obj map[string]any) *Book {
	return &Book{
		Id:            int64Field(obj, bookIdKeys),
		Title:         stringField(obj, bookTitleKeys),
		Authors:       authorsFromObjects(objectsField(obj, bookAuthorsKeys)),
		Translators:   authorsFromObjects(objectsField(obj, bookTranslatorsKeys)),
		Subjects:      stringsField(obj, bookSubjectsKeys),
		Bookshelves:   stringsField(obj, bookBookshelvesKeys),
		Languages:     stringsField(obj, bookLanguagesKeys),
		Copyright:     boolField(obj, bookCopyrightKeys),
		MediaType:     stringField(obj, bookMediaTypeKeys),
		Formats:       mapField(obj, bookFormatsKeys),
		DownloadCount: intField(obj, bookDownloadsKeys),
	}
}

func authorsFromObjects(objs []map[string]any) []Author {
	ret := make([]Author, 0, len(objs))
	for _, o := range objs {
		ret = append(ret, *authorFromObject(o))
	}

	return ret
}

func authorFromObject(obj map[string]any) *Author {
	return &Author{
		Name:      stringField(obj, authorNameKeys),
		BirthYear: intField(obj, authorBirthKeys),
		DeathYear: intField(obj, authorDeathKeys),
	}
}
