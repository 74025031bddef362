package normalize

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"bookshelf/internal/types"
)

type Author struct {
	Name      *string `json:"name" yaml:"name"`
	BirthYear *int    `json:"birth_year" yaml:"birth_year"`
	DeathYear *int    `json:"death_year" yaml:"death_year"`
}

type Book struct {
	Id            *int64            `json:"id" yaml:"id"`
	Title         *string           `json:"title" yaml:"title"`
	Authors       []Author          `json:"authors" yaml:"authors"`
	Translators   []Author          `json:"translators" yaml:"translators"`
	Subjects      []string          `json:"subjects" yaml:"subjects"`
	Bookshelves   []string          `json:"bookshelves" yaml:"bookshelves"`
	Languages     []string          `json:"languages" yaml:"languages"`
	Copyright     *bool             `json:"copyright" yaml:"copyright"`
	MediaType     *string           `json:"media_type" yaml:"media_type"`
	Formats       map[string]string `json:"formats" yaml:"formats"`
	DownloadCount *int              `json:"download_count" yaml:"download_count"`
}

type Page struct {
	TotalCount int     `json:"count" yaml:"count"`
	Next       *string `json:"next" yaml:"next"`
	Previous   *string `json:"previous" yaml:"previous"`
	Books      []Book  `json:"results" yaml:"results"`
}

// Value converts to the persisted shape. Id stays zero.
func (a *Author) Value() *types.Author {
	name := ""
	if a.Name != nil {
		name = strings.TrimSpace(*a.Name)
	}

	return &types.Author{Name: name, BirthYear: a.BirthYear, DeathYear: a.DeathYear}
}

func (a *Author) FormattedName() string {
	return a.Value().FormattedName()
}

func (a *Author) Lifespan() string {
	return types.Lifespan(a.BirthYear, a.DeathYear)
}

func (a *Author) IsAlive() bool {
	return a.DeathYear == nil
}

func (a *Author) IsClassic(now time.Time) bool {
	return a.Value().IsClassic(now)
}

func (a *Author) AliveInYear(year int) bool {
	return types.AliveInYear(a.BirthYear, a.DeathYear, year)
}

// FirstAuthor returns nil when the source listed no authors.
func (b *Book) FirstAuthor() *Author {
	if len(b.Authors) == 0 {
		return nil
	}

	return &b.Authors[0]
}

func (b *Book) TitleOrEmpty() string {
	if b.Title == nil {
		return ""
	}

	return *b.Title
}

func (b *Book) AuthorNames() string {
	if len(b.Authors) == 0 {
		return types.UnknownAuthor
	}

	names := make([]string, 0, len(b.Authors))
	for i := range b.Authors {
		names = append(names, b.Authors[i].FormattedName())
	}

	return strings.Join(names, ", ")
}

// PrimaryLanguage is the first listed language, lower-cased. It is "unknown" when the list
// is empty or its first entry is blank.
func (b *Book) PrimaryLanguage() string {
	if len(b.Languages) == 0 {
		return types.UnknownLanguage
	}

	if lang := strings.ToLower(strings.TrimSpace(b.Languages[0])); lang != "" {
		return lang
	}

	return types.UnknownLanguage
}

func (b *Book) InLanguage(code string) bool {
	for _, lang := range b.Languages {
		if strings.EqualFold(strings.TrimSpace(lang), strings.TrimSpace(code)) {
			return true
		}
	}

	return false
}

// HasFormat matches a MIME type prefix, e.g. "text/html" or "application/epub".
func (b *Book) HasFormat(kind string) bool {
	return b.FormatURL(kind) != ""
}

// FormatURL returns the download URL for the first format whose MIME type starts with kind.
// Map iteration order is random, so keys are checked sorted.
func (b *Book) FormatURL(kind string) string {
	keys := make([]string, 0, len(b.Formats))
	for k := range b.Formats {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		if strings.HasPrefix(k, kind) {
			return b.Formats[k]
		}
	}

	return ""
}

func (b *Book) IsPublicDomain() bool {
	return b.Copyright == nil || !*b.Copyright
}

func (b *Book) Summary() string {
	title := b.TitleOrEmpty()
	if title == "" {
		title = "untitled"
	}

	s := fmt.Sprintf("%s by %s [%s]", title, b.AuthorNames(), b.PrimaryLanguage())
	if b.DownloadCount != nil {
		s += fmt.Sprintf(" - %d downloads", *b.DownloadCount)
	}

	return s
}

func (p *Page) Empty() bool {
	return len(p.Books) == 0
}

func (p *Page) HasNext() bool {
	return p.Next != nil && *p.Next != ""
}

// UniqueAuthors dedups by case-insensitive formatted name, keeping first occurrences.
func (p *Page) UniqueAuthors() []Author {
	seen := make(map[string]struct{})
	ret := make([]Author, 0)

	for i := range p.Books {
		for _, a := range p.Books[i].Authors {
			key := strings.ToLower(a.FormattedName())
			if _, ok := seen[key]; ok {
				continue
			}

			seen[key] = struct{}{}
			ret = append(ret, a)
		}
	}

	return ret
}

func (p *Page) Languages() []string {
	seen := make(map[string]struct{})
	ret := make([]string, 0)

	for i := range p.Books {
		for _, lang := range p.Books[i].Languages {
			lang = strings.ToLower(strings.TrimSpace(lang))
			if _, ok := seen[lang]; ok || lang == "" {
				continue
			}

			seen[lang] = struct{}{}
			ret = append(ret, lang)
		}
	}

	sort.Strings(ret)
	return ret
}

func (p *Page) ByLanguage(code string) []Book {
	return p.filter(func(b *Book) bool { return b.InLanguage(code) })
}

func (p *Page) PublicDomain() []Book {
	return p.filter((*Book).IsPublicDomain)
}

// MostPopular returns books with a known download count, most downloaded first.
func (p *Page) MostPopular(n int) []Book {
	if n <= 0 {
		return []Book{}
	}

	ret := p.filter(func(b *Book) bool { return b.DownloadCount != nil })
	sort.SliceStable(ret, func(i, j int) bool {
		return *ret[i].DownloadCount > *ret[j].DownloadCount
	})

	if len(ret) > n {
		ret = ret[:n]
	}

	return ret
}

func (p *Page) filter(pred func(b *Book) bool) []Book {
	ret := make([]Book, 0)
	for i := range p.Books {
		if pred(&p.Books[i]) {
			ret = append(ret, p.Books[i])
		}
	}

	return ret
}
