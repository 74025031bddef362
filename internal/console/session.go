// Package console runs the interactive catalog menu over a reader and a writer.
package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"bookshelf/internal/catalog"
	"bookshelf/internal/gutendex"
	"bookshelf/internal/types"
)

const (
	rule         = "--------------------------------------------------------------"
	topDefault   = 10
	previewLimit = 5
)

var errExit = errors.New("exit requested")

type Session struct {
	in  *bufio.Scanner
	out io.Writer
	svc *catalog.Service
	l   *slog.Logger
}

func NewSession(in io.Reader, out io.Writer, svc *catalog.Service, l *slog.Logger) *Session {
	return &Session{
		in:  bufio.NewScanner(in),
		out: out,
		svc: svc,
		l:   l,
	}
}

type action struct {
	key   string
	title string
	run   func(s *Session, ctx context.Context) error
}

var menu = []action{
	{"1", "Import a book by title", (*Session).importBook},
	{"2", "List all books", (*Session).listBooks},
	{"3", "List books by language", (*Session).booksByLanguage},
	{"4", "List authors", (*Session).listAuthors},
	{"5", "List authors alive in a year", (*Session).authorsAlive},
	{"6", "Catalog statistics", (*Session).stats},
	{"7", "Top downloaded books", (*Session).topBooks},
	{"8", "Preview a Gutendex search", (*Session).preview},
	{"0", "Exit", func(*Session, context.Context) error { return errExit }},
}

// Run shows the menu until the user exits, the input ends or ctx is canceled.
func (s *Session) Run(ctx context.Context) error {
	s.println("Bookshelf catalog")

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		s.printMenu()

		choice, ok := s.prompt("Choose an option: ")
		if !ok {
			return s.in.Err()
		}

		a := lookupAction(choice)
		if a == nil {
			s.printf("Invalid option %q, choose one of the numbers above.\n", choice)
			continue
		}

		err := a.run(s, ctx)
		switch {
		case err == nil:
		case errors.Is(err, errExit):
			s.println("Bye!")
			return nil
		case errors.Is(err, io.EOF):
			return s.in.Err()
		case errors.Is(err, context.Canceled):
			return err
		default:
			s.report(ctx, err)
		}
	}
}

func lookupAction(choice string) *action {
	for i := range menu {
		if menu[i].key == choice {
			return &menu[i]
		}
	}

	return nil
}

func (s *Session) printMenu() {
	s.println("")
	s.println(rule)
	for _, a := range menu {
		s.printf("  %s - %s\n", a.key, a.title)
	}
	s.println(rule)
}

func (s *Session) report(ctx context.Context, err error) {
	switch {
	case errors.Is(err, types.ErrNotFound):
		s.println("Nothing found: " + err.Error())
	case errors.Is(err, types.ErrUpstream):
		s.println("Gutendex is unavailable right now, try again later.")
		s.l.WarnContext(ctx, "Search failed: "+err.Error())
	case errors.Is(err, types.ErrMalformedPayload):
		s.println("Gutendex returned an unreadable response.")
		s.l.WarnContext(ctx, "Malformed upstream response: "+err.Error())
	default:
		s.println("Error: " + err.Error())
		s.l.ErrorContext(ctx, "Menu action failed: "+err.Error())
	}
}

// prompt returns false when the input is exhausted.
func (s *Session) prompt(label string) (string, bool) {
	s.printf("%s", label)
	if !s.in.Scan() {
		return "", false
	}

	return strings.TrimSpace(s.in.Text()), true
}

// promptRequired re-prompts until a non-empty line is read.
func (s *Session) promptRequired(label, what string) (string, error) {
	for {
		v, ok := s.prompt(label)
		if !ok {
			return "", io.EOF
		}
		if v != "" {
			return v, nil
		}

		s.println(what + " cannot be empty.")
	}
}

// promptInt re-prompts until an integer in [lo, hi] is read. Empty input yields def when allowed.
func (s *Session) promptInt(label string, lo, hi int, def *int) (int, error) {
	for {
		v, ok := s.prompt(label)
		if !ok {
			return 0, io.EOF
		}

		if v == "" && def != nil {
			return *def, nil
		}

		n, err := strconv.Atoi(v)
		if err != nil {
			s.printf("%q is not a number.\n", v)
			continue
		}
		if n < lo || n > hi {
			s.printf("Enter a number between %d and %d.\n", lo, hi)
			continue
		}

		return n, nil
	}
}

func (s *Session) importBook(ctx context.Context) error {
	title, err := s.promptRequired("Book title: ", "Title")
	if err != nil {
		return err
	}

	res, err := s.svc.Import(ctx, title)
	if err != nil {
		return err
	}

	if res.Created {
		s.println("Book added to the catalog:")
	} else {
		s.println("Book is already in the catalog:")
	}
	s.printBookDetails(res.Book)

	return nil
}

func (s *Session) listBooks(ctx context.Context) error {
	rows, err := s.svc.ListAllBooks(ctx)
	if err != nil {
		return err
	}

	if len(rows) == 0 {
		s.println("The catalog is empty. Use option 1 to import books.")
		return nil
	}

	s.printf("Total: %d book(s)\n", len(rows))
	s.printBooks(rows)

	return nil
}

func (s *Session) booksByLanguage(ctx context.Context) error {
	s.println("Common codes: en, pt, fr, es, de, it")
	code, err := s.promptRequired("Language code: ", "Language code")
	if err != nil {
		return err
	}

	rows, err := s.svc.ListBooksByLanguage(ctx, code)
	if err != nil {
		return err
	}

	name := catalog.LanguageName(code)
	if len(rows) == 0 {
		s.println("No books in " + name + ".")
		return nil
	}

	s.printf("Books in %s:\n", name)
	s.printBooks(rows)

	return nil
}

func (s *Session) listAuthors(ctx context.Context) error {
	rows, err := s.svc.ListAllAuthors(ctx)
	if err != nil {
		return err
	}

	if len(rows) == 0 {
		s.println("No authors yet. Import books first.")
		return nil
	}

	s.printf("Total: %d author(s)\n", len(rows))
	s.println(rule)
	for i, a := range rows {
		s.printf("%2d. %s\n", i+1, s.svc.DescribeAuthor(a))
	}

	return nil
}

func (s *Session) authorsAlive(ctx context.Context) error {
	year, err := s.promptInt("Year: ", -3000, 3000, nil)
	if err != nil {
		return err
	}

	rows, err := s.svc.ListAuthorsAliveInYear(ctx, year)
	if err != nil {
		return err
	}

	if len(rows) == 0 {
		s.printf("No stored author was alive in %d.\n", year)
		return nil
	}

	s.printf("Authors alive in %d:\n", year)
	s.println(rule)
	for i, a := range rows {
		s.printf("%2d. %s (%s)\n", i+1, a.FormattedName(), a.Lifespan())
	}

	return nil
}

func (s *Session) stats(ctx context.Context) error {
	st, err := s.svc.Stats(ctx)
	if err != nil {
		return err
	}

	s.printf("Books:            %d\n", st.Books)
	s.printf("Authors:          %d\n", st.Authors)
	s.printf("  living:         %d\n", st.LivingAuthors)
	s.printf("  deceased:       %d\n", st.DeceasedAuthors)

	if len(st.ByLanguage) > 0 {
		s.println("Books per language:")
		for _, lc := range st.ByLanguage {
			s.printf("  %-12s %d\n", lc.Name, lc.Books)
		}
	}

	if len(st.ByCentury) > 0 {
		s.println("Authors per birth century:")
		for _, cc := range st.ByCentury {
			s.printf("  %2d century    %d\n", cc.Century, cc.Authors)
		}
	}

	return nil
}

func (s *Session) topBooks(ctx context.Context) error {
	def := topDefault
	n, err := s.promptInt(fmt.Sprintf("How many books [%d]: ", topDefault), 1, 1000, &def)
	if err != nil {
		return err
	}

	rows, err := s.svc.TopNByDownloads(ctx, n)
	if err != nil {
		return err
	}

	if len(rows) == 0 {
		s.println("No stored book has a download count.")
		return nil
	}

	s.printBooks(rows)
	return nil
}

func (s *Session) preview(ctx context.Context) error {
	term, err := s.promptRequired("Search term: ", "Search term")
	if err != nil {
		return err
	}

	p, err := s.svc.SearchRemote(ctx, term, gutendex.Filters{})
	if err != nil {
		return err
	}

	if p.Empty() {
		s.println("Gutendex has no matches for " + strconv.Quote(term) + ".")
		return nil
	}

	s.printf("%d match(es), showing up to %d:\n", p.TotalCount, previewLimit)
	s.println(rule)
	for i := range p.Books {
		if i == previewLimit {
			break
		}
		s.printf("%2d. %s\n", i+1, p.Books[i].Summary())
	}

	return nil
}

func (s *Session) printBooks(rows []*types.Book) {
	s.println(rule)
	for i, b := range rows {
		s.printf("%2d. %s\n", i+1, bookSummary(b))
	}
}

func (s *Session) printBookDetails(b *types.Book) {
	s.println(rule)
	s.printf("Title:     %s\n", b.Title)
	s.printf("Author:    %s\n", b.AuthorName())
	if b.Author != nil {
		s.printf("Lifespan:  %s\n", b.Author.Lifespan())
	}
	s.printf("Language:  %s\n", catalog.LanguageName(b.Language))
	if b.DownloadCount != nil {
		s.printf("Downloads: %d\n", *b.DownloadCount)
	}
	s.println(rule)
}

func bookSummary(b *types.Book) string {
	ret := b.Title + " by " + b.AuthorName() + " [" + b.Language + "]"
	if b.DownloadCount != nil {
		ret += fmt.Sprintf(" - %d downloads", *b.DownloadCount)
	}

	return ret
}

func (s *Session) println(line string) {
	_, _ = fmt.Fprintln(s.out, line)
}

func (s *Session) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(s.out, format, args...)
}
