// Package opds publishes the stored catalog as OPDS 1.2 Atom feeds so e-readers can browse it.
package opds

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/opds-community/libopds2-go/opds1"

	"bookshelf/internal/catalog"
	"bookshelf/internal/response"
	"bookshelf/internal/types"
)

const (
	atomNS = "http://www.w3.org/2005/Atom"

	linkTypeNavigation  = "application/atom+xml;profile=opds-catalog;kind=navigation"
	linkTypeAcquisition = "application/atom+xml;profile=opds-catalog;kind=acquisition"
	linkTypeEpub        = "application/epub+zip"
	linkTypeHtml        = "text/html"

	linkRelSelf        = "self"
	linkRelStart       = "start"
	linkRelSubsection  = "subsection"
	linkRelAlternate   = "alternate"
	linkRelOpenAccess  = "http://opds-spec.org/acquisition/open-access"
	linkRelPopular     = "http://opds-spec.org/sort/popular"
	topFeedSize        = 25
	gutenbergEbookHref = "https://www.gutenberg.org/ebooks/%d"
)

type feeds struct {
	svc    *catalog.Service
	rr     *response.Responder
	prefix string
}

// Handler serves the feeds. prefix is the path the handler is mounted at, used for links.
func Handler(svc *catalog.Service, rr *response.Responder, prefix string) http.Handler {
	f := &feeds{svc: svc, rr: rr, prefix: strings.TrimSuffix(prefix, "/")}

	r := chi.NewRouter()
	r.Get("/", f.root)
	r.Get("/books", f.books)
	r.Get("/top", f.top)
	r.Get("/languages", f.languages)
	r.Get("/authors/{id}", f.author)

	return r
}

func (f *feeds) href(path string) string {
	return f.prefix + path
}

func (f *feeds) root(w http.ResponseWriter, r *http.Request) {
	st, err := f.svc.Stats(r.Context())
	if err != nil {
		f.rr.RespondError(w, r.Context(), err)
		return
	}

	feed := f.newFeed("Bookshelf", "/", linkTypeNavigation)
	feed.Entries = []opds1.Entry{
		f.navEntry("tag:books", "All books", fmt.Sprintf("%d books by title", st.Books), "/books", linkRelSubsection),
		f.navEntry("tag:top", "Most popular", "Top downloads on Project Gutenberg", "/top", linkRelPopular),
		f.navEntry("tag:languages", "By language", fmt.Sprintf("%d languages", len(st.ByLanguage)), "/languages", linkRelSubsection),
	}

	f.send(w, r, feed)
}

func (f *feeds) books(w http.ResponseWriter, r *http.Request) {
	var rows []*types.Book
	var err error

	title := "All books"
	if lang := r.URL.Query().Get("language"); lang != "" {
		title = "Books in " + catalog.LanguageName(lang)
		rows, err = f.svc.ListBooksByLanguage(r.Context(), lang)
	} else {
		rows, err = f.svc.ListAllBooks(r.Context())
	}

	if err != nil {
		f.rr.RespondError(w, r.Context(), err)
		return
	}

	feed := f.newFeed(title, "/books", linkTypeAcquisition)
	feed.Entries = f.bookEntries(rows)
	f.send(w, r, feed)
}

func (f *feeds) top(w http.ResponseWriter, r *http.Request) {
	rows, err := f.svc.TopNByDownloads(r.Context(), topFeedSize)
	if err != nil {
		f.rr.RespondError(w, r.Context(), err)
		return
	}

	feed := f.newFeed("Most popular", "/top", linkTypeAcquisition)
	feed.Entries = f.bookEntries(rows)
	f.send(w, r, feed)
}

func (f *feeds) languages(w http.ResponseWriter, r *http.Request) {
	st, err := f.svc.Stats(r.Context())
	if err != nil {
		f.rr.RespondError(w, r.Context(), err)
		return
	}

	feed := f.newFeed("By language", "/languages", linkTypeNavigation)
	for _, lc := range st.ByLanguage {
		feed.Entries = append(feed.Entries, f.navEntry("tag:language:"+lc.Language, lc.Name,
			fmt.Sprintf("%d books", lc.Books), "/books?language="+lc.Language, linkRelSubsection))
	}

	f.send(w, r, feed)
}

func (f *feeds) author(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		f.rr.RespondError(w, r.Context(), fmt.Errorf("%w: invalid author id", types.ErrValidation))
		return
	}

	a, err := f.svc.GetAuthor(r.Context(), id)
	if err != nil {
		f.rr.RespondError(w, r.Context(), err)
		return
	}

	rows, err := f.svc.ListAuthorBooks(r.Context(), id)
	if err != nil {
		f.rr.RespondError(w, r.Context(), err)
		return
	}

	feed := f.newFeed("Books by "+a.FormattedName(),
		fmt.Sprintf("/authors/%d", id), linkTypeAcquisition)
	feed.Entries = f.bookEntries(rows)
	f.send(w, r, feed)
}

func (f *feeds) newFeed(title, path, kind string) *opds1.Feed {
	return &opds1.Feed{
		Title: title,
		Links: []opds1.Link{
			{Rel: linkRelSelf, Href: f.href(path), TypeLink: kind},
			{Rel: linkRelStart, Href: f.href("/"), TypeLink: linkTypeNavigation},
		},
	}
}

func (f *feeds) navEntry(id, title, about, path, rel string) opds1.Entry {
	e := opds1.Entry{
		ID:    id,
		Title: title,
		Links: []opds1.Link{{Rel: rel, Href: f.href(path), TypeLink: linkTypeAcquisition}},
	}
	e.Content.Content = about

	return e
}

func (f *feeds) bookEntries(rows []*types.Book) []opds1.Entry {
	entries := make([]opds1.Entry, 0, len(rows))
	for _, b := range rows {
		entries = append(entries, f.bookEntry(b))
	}

	return entries
}

func (f *feeds) bookEntry(b *types.Book) opds1.Entry {
	e := opds1.Entry{
		ID:       fmt.Sprintf("tag:book:%d", b.Id),
		Title:    b.Title,
		Language: b.Language,
	}

	if b.Author != nil {
		e.Author = []opds1.Author{{
			Name: b.Author.FormattedName(),
			URI:  f.href(fmt.Sprintf("/authors/%d", b.Author.Id)),
		}}
	}

	if b.Language != types.UnknownLanguage {
		e.Category = []opds1.Category{{Term: catalog.LanguageName(b.Language)}}
	}

	about := "By " + b.AuthorName()
	if d := b.DownloadCount; d != nil {
		about += fmt.Sprintf(", %d downloads", *d)
	}
	e.Content.Content = about

	if b.ExternalId != nil {
		page := fmt.Sprintf(gutenbergEbookHref, *b.ExternalId)
		e.Links = []opds1.Link{
			{Rel: linkRelOpenAccess, Href: page + ".epub.images", TypeLink: linkTypeEpub},
			{Rel: linkRelAlternate, Href: page, TypeLink: linkTypeHtml},
		}
	}

	return e
}

func (f *feeds) send(w http.ResponseWriter, r *http.Request, feed *opds1.Feed) {
	var buf bytes.Buffer
	buf.WriteString(xml.Header)

	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	err := enc.EncodeElement(feed, xml.StartElement{Name: xml.Name{Space: atomNS, Local: "feed"}})
	if err == nil {
		err = enc.Flush()
	}

	if err != nil {
		f.rr.RespondAndLogError(w, r.Context(), fmt.Errorf("encoding feed %q: %w", feed.Title, err))
		return
	}

	w.Header().Set("Content-Type", feed.Links[0].TypeLink+";charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}
