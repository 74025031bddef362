package catalog

import (
	"context"
	"sort"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"

	"bookshelf/internal/storage/books"
	"bookshelf/internal/types"
)

// LanguageName returns the English name of a language code, or the code upper-cased when it is not a known language.
func LanguageName(code string) string {
	code = strings.ToLower(strings.TrimSpace(code))

	tag, err := language.Parse(code)
	if err != nil {
		return strings.ToUpper(code)
	}

	if name := display.English.Languages().Name(tag); name != "" {
		return name
	}

	return strings.ToUpper(code)
}

type LanguageCount struct {
	Language string `json:"language" yaml:"language"`
	Name     string `json:"name" yaml:"name"`
	Books    int    `json:"books" yaml:"books"`
}

type CenturyCount struct {
	Century int `json:"century" yaml:"century"`
	Authors int `json:"authors" yaml:"authors"`
}

type Stats struct {
	Books           int             `json:"books" yaml:"books"`
	Authors         int             `json:"authors" yaml:"authors"`
	LivingAuthors   int             `json:"living_authors" yaml:"living_authors"`
	DeceasedAuthors int             `json:"deceased_authors" yaml:"deceased_authors"`
	ByLanguage      []LanguageCount `json:"by_language" yaml:"by_language"`
	ByCentury       []CenturyCount  `json:"by_century" yaml:"by_century"`
}

func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	st := &Stats{}

	var err error
	if st.Books, err = s.books.Count(ctx); err != nil {
		return nil, storageErr("counting books", err)
	}

	if st.Authors, err = s.authors.Count(ctx); err != nil {
		return nil, storageErr("counting authors", err)
	}

	if st.LivingAuthors, err = s.authors.CountAlive(ctx); err != nil {
		return nil, storageErr("counting living authors", err)
	}
	st.DeceasedAuthors = st.Authors - st.LivingAuthors

	langs, err := s.books.CountByLanguage(ctx)
	if err != nil {
		return nil, storageErr("counting books by language", err)
	}

	st.ByLanguage = make([]LanguageCount, 0, len(langs))
	for code, n := range langs {
		st.ByLanguage = append(st.ByLanguage, LanguageCount{Language: code, Name: LanguageName(code), Books: n})
	}
	sort.Slice(st.ByLanguage, func(i, j int) bool {
		return st.ByLanguage[i].Language < st.ByLanguage[j].Language
	})

	centuries, err := s.authors.CountByCentury(ctx)
	if err != nil {
		return nil, storageErr("counting authors by century", err)
	}

	st.ByCentury = make([]CenturyCount, 0, len(centuries))
	for c, n := range centuries {
		st.ByCentury = append(st.ByCentury, CenturyCount{Century: c, Authors: n})
	}
	sort.Slice(st.ByCentury, func(i, j int) bool {
		return st.ByCentury[i].Century < st.ByCentury[j].Century
	})

	return st, nil
}

type AuthorBooks struct {
	Author *types.Author `json:"author" yaml:"author"`
	Books  int           `json:"books" yaml:"books"`
}

// ProlificAuthors ranks authors by number of stored books, then by name.
func (s *Service) ProlificAuthors(ctx context.Context, limit int) ([]AuthorBooks, error) {
	if limit <= 0 {
		return []AuthorBooks{}, nil
	}

	all, err := s.listBooks(ctx, books.Filter{})
	if err != nil {
		return nil, err
	}

	counts := make(map[int64]*AuthorBooks)
	for _, b := range all {
		if b.Author == nil {
			continue
		}

		ab, ok := counts[b.Author.Id]
		if !ok {
			ab = &AuthorBooks{Author: b.Author}
			counts[b.Author.Id] = ab
		}
		ab.Books++
	}

	ret := make([]AuthorBooks, 0, len(counts))
	for _, ab := range counts {
		ret = append(ret, *ab)
	}

	sort.Slice(ret, func(i, j int) bool {
		if ret[i].Books != ret[j].Books {
			return ret[i].Books > ret[j].Books
		}
		if ret[i].Author.Name != ret[j].Author.Name {
			return ret[i].Author.Name < ret[j].Author.Name
		}
		return ret[i].Author.Id < ret[j].Author.Id
	})

	if len(ret) > limit {
		ret = ret[:limit]
	}

	return ret, nil
}

// SearchBooksByAuthor returns books of every author whose name contains fragment, ordered by title.
func (s *Service) SearchBooksByAuthor(ctx context.Context, fragment string) ([]*types.Book, error) {
	found, err := s.SearchAuthorsByName(ctx, fragment)
	if err != nil {
		return nil, err
	}

	ret := make([]*types.Book, 0)
	for _, a := range found {
		id := a.Id
		bs, err := s.listBooks(ctx, books.Filter{AuthorId: &id, OrderBy: books.OrderByTitle})
		if err != nil {
			return nil, err
		}
		ret = append(ret, bs...)
	}

	sort.SliceStable(ret, func(i, j int) bool {
		return ret[i].Title < ret[j].Title
	})

	return ret, nil
}
