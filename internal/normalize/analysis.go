package normalize

import "time"

// formatKinds are the download formats counted by Analyze, keyed by MIME type prefix.
var formatKinds = []struct {
	name string
	mime string
}{
	{"html", "text/html"},
	{"epub", "application/epub"},
	{"kindle", "application/x-mobipocket-ebook"},
	{"plain_text", "text/plain"},
}

type AuthorSummary struct {
	Name     string `json:"name" yaml:"name"`
	Lifespan string `json:"lifespan" yaml:"lifespan"`
	Alive    bool   `json:"alive" yaml:"alive"`
	Classic  bool   `json:"classic" yaml:"classic"`
}

type PopularBook struct {
	Title         string `json:"title" yaml:"title"`
	Authors       string `json:"authors" yaml:"authors"`
	Language      string `json:"language" yaml:"language"`
	DownloadCount int    `json:"download_count" yaml:"download_count"`
	HtmlURL       string `json:"html_url,omitempty" yaml:"html_url,omitempty"`
	EpubURL       string `json:"epub_url,omitempty" yaml:"epub_url,omitempty"`
}

type PageAnalysis struct {
	TotalCount   int             `json:"total_count" yaml:"total_count"`
	Books        int             `json:"books" yaml:"books"`
	Languages    []string        `json:"languages" yaml:"languages"`
	ByLanguage   map[string]int  `json:"by_language" yaml:"by_language"`
	PublicDomain int             `json:"public_domain" yaml:"public_domain"`
	Formats      map[string]int  `json:"formats" yaml:"formats"`
	Authors      []AuthorSummary `json:"authors" yaml:"authors"`
	// AliveInYear is only set when a year was asked for.
	AliveInYear []string      `json:"alive_in_year,omitempty" yaml:"alive_in_year,omitempty"`
	MostPopular []PopularBook `json:"most_popular" yaml:"most_popular"`
}

// Analyze summarizes one page of results. year, when not nil, lists the authors alive in it.
func Analyze(p *Page, now time.Time, year *int, top int) *PageAnalysis {
	a := &PageAnalysis{
		TotalCount:   p.TotalCount,
		Books:        len(p.Books),
		Languages:    p.Languages(),
		PublicDomain: len(p.PublicDomain()),
		Formats:      make(map[string]int, len(formatKinds)),
		Authors:      make([]AuthorSummary, 0),
		MostPopular:  make([]PopularBook, 0),
	}

	a.ByLanguage = make(map[string]int, len(a.Languages))
	for _, lang := range a.Languages {
		a.ByLanguage[lang] = len(p.ByLanguage(lang))
	}

	for i := range p.Books {
		for _, kind := range formatKinds {
			if p.Books[i].HasFormat(kind.mime) {
				a.Formats[kind.name]++
			}
		}
	}

	if year != nil {
		a.AliveInYear = make([]string, 0)
	}

	for _, author := range p.UniqueAuthors() {
		a.Authors = append(a.Authors, AuthorSummary{
			Name:     author.FormattedName(),
			Lifespan: author.Lifespan(),
			Alive:    author.IsAlive(),
			Classic:  author.IsClassic(now),
		})

		if year != nil && author.AliveInYear(*year) {
			a.AliveInYear = append(a.AliveInYear, author.FormattedName())
		}
	}

	for _, b := range p.MostPopular(top) {
		a.MostPopular = append(a.MostPopular, PopularBook{
			Title:         b.TitleOrEmpty(),
			Authors:       b.AuthorNames(),
			Language:      b.PrimaryLanguage(),
			DownloadCount: *b.DownloadCount,
			HtmlURL:       b.FormatURL("text/html"),
			EpubURL:       b.FormatURL("application/epub"),
		})
	}

	return a
}
