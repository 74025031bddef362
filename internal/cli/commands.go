package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"bookshelf/internal/app"
	"bookshelf/internal/catalog"
	"bookshelf/internal/console"
	"bookshelf/internal/gutendex"
	"bookshelf/internal/jsontree"
	"bookshelf/internal/normalize"
	"bookshelf/internal/types"
)

func newMenuCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "menu",
		Short: "Run the interactive menu",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return e.withApp(cmd, func(a *app.App) error {
				return console.NewSession(cmd.InOrStdin(), cmd.OutOrStdout(), a.Service, slog.Default()).Run(cmd.Context())
			})
		},
	}
}

func newImportCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "import <title...>",
		Short: "Import the first Gutendex match for a title",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.TrimSpace(strings.Join(args, " "))
			if query == "" {
				return errors.New("title must not be empty")
			}

			return e.withApp(cmd, func(a *app.App) error {
				res, err := a.Service.Import(cmd.Context(), query)
				if err != nil {
					return err
				}

				return e.render(cmd.OutOrStdout(), res, func(w io.Writer) {
					if res.Created {
						fmt.Fprintln(w, "Imported:")
					} else {
						fmt.Fprintln(w, "Already in the catalog:")
					}
					writeBooks(w, []*types.Book{res.Book})
				})
			})
		},
	}
}

func newBooksCmd(e *env) *cobra.Command {
	var language, search, author, subject string

	cmd := &cobra.Command{
		Use:   "books",
		Short: "List stored books by title",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return e.withApp(cmd, func(a *app.App) error {
				var rows []*types.Book
				var err error

				switch {
				case cmd.Flags().Changed("language"):
					rows, err = a.Service.ListBooksByLanguage(cmd.Context(), language)
				case subject != "":
					rows, err = a.Service.ListBooksBySubject(cmd.Context(), subject)
				case author != "":
					rows, err = a.Service.SearchBooksByAuthor(cmd.Context(), author)
				case search != "":
					rows, err = a.Service.SearchBooksByTitle(cmd.Context(), search)
				default:
					rows, err = a.Service.ListAllBooks(cmd.Context())
				}

				if err != nil {
					return err
				}

				return e.render(cmd.OutOrStdout(), rows, func(w io.Writer) {
					writeBooks(w, rows)
				})
			})
		},
	}

	cmd.Flags().StringVarP(&language, "language", "l", "", "only books in this language code, e.g. en")
	cmd.Flags().StringVarP(&search, "search", "s", "", "only titles containing this text")
	cmd.Flags().StringVar(&author, "author", "", "only books by authors whose name contains this text")
	cmd.Flags().StringVar(&subject, "subject", "", "only books filed under this subject")

	return cmd
}

func newAuthorsCmd(e *env) *cobra.Command {
	var aliveIn int
	var search string

	cmd := &cobra.Command{
		Use:   "authors",
		Short: "List stored authors",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return e.withApp(cmd, func(a *app.App) error {
				var rows []*types.Author
				var err error

				switch {
				case cmd.Flags().Changed("alive-in"):
					rows, err = a.Service.ListAuthorsAliveInYear(cmd.Context(), aliveIn)
				case search != "":
					rows, err = a.Service.SearchAuthorsByName(cmd.Context(), search)
				default:
					rows, err = a.Service.ListAllAuthors(cmd.Context())
				}

				if err != nil {
					return err
				}

				return e.render(cmd.OutOrStdout(), rows, func(w io.Writer) {
					if len(rows) == 0 {
						fmt.Fprintln(w, "No authors.")
						return
					}
					for _, au := range rows {
						fmt.Fprintf(w, "%5d  %s\n", au.Id, a.Service.DescribeAuthor(au))
					}
				})
			})
		},
	}

	cmd.Flags().IntVar(&aliveIn, "alive-in", 0, "only authors alive in this year")
	cmd.Flags().StringVarP(&search, "search", "s", "", "only names containing this text")

	return cmd
}

func newTopCmd(e *env) *cobra.Command {
	var n int

	cmd := &cobra.Command{
		Use:   "top",
		Short: "Most downloaded stored books",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return e.withApp(cmd, func(a *app.App) error {
				rows, err := a.Service.TopNByDownloads(cmd.Context(), n)
				if err != nil {
					return err
				}

				return e.render(cmd.OutOrStdout(), rows, func(w io.Writer) {
					writeBooks(w, rows)
				})
			})
		},
	}

	cmd.Flags().IntVarP(&n, "limit", "n", 10, "number of books")

	return cmd
}

func newStatsCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Catalog statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return e.withApp(cmd, func(a *app.App) error {
				st, err := a.Service.Stats(cmd.Context())
				if err != nil {
					return err
				}

				return e.render(cmd.OutOrStdout(), st, func(w io.Writer) {
					writeStats(w, st)
				})
			})
		},
	}
}

func newSubjectsCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "subjects",
		Short: "List subjects of stored books, most common first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return e.withApp(cmd, func(a *app.App) error {
				rows, err := a.Service.ListSubjects(cmd.Context())
				if err != nil {
					return err
				}

				return e.render(cmd.OutOrStdout(), rows, func(w io.Writer) {
					if len(rows) == 0 {
						fmt.Fprintln(w, "No subjects.")
						return
					}
					for _, s := range rows {
						fmt.Fprintf(w, "%5d  %s\n", s.Books, s.Title)
					}
				})
			})
		},
	}
}

func newRemoteCmd(e *env) *cobra.Command {
	var language string
	var page int
	var analyze bool
	var aliveIn int

	cmd := &cobra.Command{
		Use:   "remote [term...]",
		Short: "Search Gutendex without storing anything",
		RunE: func(cmd *cobra.Command, args []string) error {
			term := strings.Join(args, " ")
			filters := gutendex.Filters{Language: language, Page: page}

			return e.withApp(cmd, func(a *app.App) error {
				if analyze {
					var year *int
					if cmd.Flags().Changed("alive-in") {
						year = &aliveIn
					}

					pa, err := a.Service.AnalyzeRemote(cmd.Context(), term, filters, year)
					if err != nil {
						return err
					}

					return e.render(cmd.OutOrStdout(), pa, func(w io.Writer) {
						writePageAnalysis(w, pa)
					})
				}

				p, err := a.Service.SearchRemote(cmd.Context(), term, filters)
				if err != nil {
					return err
				}

				return e.render(cmd.OutOrStdout(), p, func(w io.Writer) {
					writePage(w, p)
				})
			})
		},
	}

	cmd.Flags().StringVarP(&language, "language", "l", "", "comma separated language codes")
	cmd.Flags().IntVarP(&page, "page", "p", 0, "result page, starting at 1")
	cmd.Flags().BoolVar(&analyze, "analyze", false, "summarize the page instead of listing it")
	cmd.Flags().IntVar(&aliveIn, "alive-in", 0, "with --analyze, list the authors alive in this year")

	return cmd
}

func newAnalyzeCmd(e *env) *cobra.Command {
	var validate bool
	var extract string

	cmd := &cobra.Command{
		Use:   "analyze <file|->",
		Short: "Describe the structure of a JSON document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := readInput(cmd, args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()

			switch {
			case validate:
				v := jsontree.Validate(raw)
				return e.render(out, v, func(w io.Writer) {
					if v.Valid {
						fmt.Fprintf(w, "valid %s, %d bytes\n", v.Type, v.Size)
					} else {
						fmt.Fprintf(w, "invalid: %s\n", v.Error)
					}
				})
			case extract != "":
				values, err := jsontree.Extract(raw, extract)
				if err != nil {
					return err
				}
				return e.render(out, values, func(w io.Writer) {
					for _, v := range values {
						fmt.Fprintln(w, v)
					}
				})
			default:
				an, err := jsontree.Analyze(raw)
				if err != nil {
					return err
				}
				return e.render(out, an, func(w io.Writer) {
					writeAnalysis(w, an)
				})
			}
		},
	}

	cmd.Flags().BoolVar(&validate, "validate", false, "only report whether the document parses")
	cmd.Flags().StringVar(&extract, "extract", "", "print every value stored under this property")

	return cmd
}

func newPingCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Check that Gutendex answers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return e.withApp(cmd, func(a *app.App) error {
				if a.Client == nil {
					return errors.New("no gutendex client configured")
				}

				if err := a.Client.Ping(cmd.Context()); err != nil {
					return err
				}

				fmt.Fprintln(cmd.OutOrStdout(), "gutendex is reachable")
				return nil
			})
		},
	}
}

func readInput(cmd *cobra.Command, name string) (string, error) {
	if name == "-" {
		bs, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", fmt.Errorf("reading stdin: %w", err)
		}
		return string(bs), nil
	}

	bs, err := os.ReadFile(name)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", name, err)
	}

	return string(bs), nil
}

func writeBooks(w io.Writer, rows []*types.Book) {
	if len(rows) == 0 {
		fmt.Fprintln(w, "No books.")
		return
	}

	for _, b := range rows {
		downloads := "-"
		if b.DownloadCount != nil {
			downloads = fmt.Sprint(*b.DownloadCount)
		}
		fmt.Fprintf(w, "%5d  %-40s  %-25s  %-7s  %s\n", b.Id, b.Title, b.AuthorName(), b.Language, downloads)
	}
}

func writeStats(w io.Writer, st *catalog.Stats) {
	fmt.Fprintf(w, "books: %d\nauthors: %d (living %d, deceased %d)\n",
		st.Books, st.Authors, st.LivingAuthors, st.DeceasedAuthors)

	for _, lc := range st.ByLanguage {
		fmt.Fprintf(w, "  %s (%s): %d\n", lc.Name, lc.Language, lc.Books)
	}
	for _, cc := range st.ByCentury {
		fmt.Fprintf(w, "  century %d: %d authors\n", cc.Century, cc.Authors)
	}
}

func writePage(w io.Writer, p *normalize.Page) {
	fmt.Fprintf(w, "%d match(es)\n", p.TotalCount)
	for i := range p.Books {
		fmt.Fprintln(w, "  "+p.Books[i].Summary())
	}
	if p.HasNext() {
		fmt.Fprintln(w, "more results: use --page")
	}
}

func writePageAnalysis(w io.Writer, a *normalize.PageAnalysis) {
	fmt.Fprintf(w, "%d book(s) on this page, %d match(es) in total\n", a.Books, a.TotalCount)
	for _, lang := range a.Languages {
		fmt.Fprintf(w, "  %-4s %d\n", lang, a.ByLanguage[lang])
	}
	fmt.Fprintf(w, "public domain: %d\n", a.PublicDomain)

	fmt.Fprintln(w, "authors:")
	for _, au := range a.Authors {
		tag := ""
		if au.Classic {
			tag = " classic"
		} else if au.Alive {
			tag = " alive"
		}
		fmt.Fprintf(w, "  %s (%s)%s\n", au.Name, au.Lifespan, tag)
	}

	if a.AliveInYear != nil {
		fmt.Fprintf(w, "alive in year: %s\n", strings.Join(a.AliveInYear, ", "))
	}

	if len(a.MostPopular) > 0 {
		fmt.Fprintln(w, "most downloaded:")
		for i, b := range a.MostPopular {
			fmt.Fprintf(w, "%2d. %s by %s - %d downloads\n", i+1, b.Title, b.Authors, b.DownloadCount)
		}
	}
}

func writeAnalysis(w io.Writer, a *jsontree.Analysis) {
	fmt.Fprintf(w, "type: %s, %d bytes\n", a.Type, a.Size)
	if a.Type == jsontree.TypeObject {
		fmt.Fprintf(w, "properties: %d\n", a.Properties)
	} else if a.Type == jsontree.TypeArray {
		fmt.Fprintf(w, "elements: %d\n", a.Elements)
	}

	for _, t := range []string{jsontree.TypeObject, jsontree.TypeArray, jsontree.TypeString,
		jsontree.TypeNumber, jsontree.TypeBoolean, jsontree.TypeNull} {
		if n := a.TypeCounts[t]; n > 0 {
			fmt.Fprintf(w, "  %-8s %d\n", t, n)
		}
	}

	if len(a.EmptyProperties) > 0 {
		fmt.Fprintln(w, "empty: "+strings.Join(a.EmptyProperties, ", "))
	}
	for _, arr := range a.Arrays {
		fmt.Fprintf(w, "array %s: %d\n", arr.Path, arr.Size)
	}
	if len(a.Arrays) > 0 {
		fmt.Fprintf(w, "average array size: %.2f\n", a.AverageArraySize)
	}
}
