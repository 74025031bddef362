package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"bookshelf/internal/app"
	"bookshelf/internal/crawler"
	"bookshelf/internal/storage/fails"
)

func newHarvestCmd(e *env) *cobra.Command {
	var req crawler.Request
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "harvest [term...]",
		Short: "Import every result of a Gutendex search, page by page",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			req.Term = strings.TrimSpace(strings.Join(args, " "))
			req.Language = strings.ToLower(strings.ReplaceAll(req.Language, " ", ""))

			if req.FromPage < 0 {
				return errors.New("--from must not be negative")
			}

			return e.withApp(cmd, func(a *app.App) error {
				cr, handler := newCrawler(a)

				var consumer crawler.Consumer = &crawler.StoringConsumer{
					Catalog: a.Service,
					Logger:  slog.Default(),
					Errors:  handler,
				}
				if dryRun {
					consumer = &crawler.LoggerConsumer{Logger: slog.Default()}
				}

				rep, err := cr.Crawl(cmd.Context(), req, consumer)
				if err != nil {
					return err
				}

				return e.render(cmd.OutOrStdout(), rep, func(w io.Writer) {
					writeReport(w, rep)
				})
			})
		},
	}

	cmd.Flags().StringVarP(&req.Language, "language", "l", "", "comma separated language codes")
	cmd.Flags().IntVar(&req.FromPage, "from", 1, "first page to fetch")
	cmd.Flags().IntVar(&req.MaxPages, "pages", 0, "stop after this many pages, 0 for all")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "only log what would be imported")

	cmd.AddCommand(newHarvestRetryCmd(e), newHarvestFailsCmd(e))

	return cmd
}

func newHarvestRetryCmd(e *env) *cobra.Command {
	var limit uint

	cmd := &cobra.Command{
		Use:   "retry",
		Short: "Replay recorded harvest failures",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return e.withApp(cmd, func(a *app.App) error {
				cr, handler := newCrawler(a)

				rep, err := cr.Retry(cmd.Context(), a.Fails, handler.StartTime, limit, &crawler.StoringConsumer{
					Catalog: a.Service,
					Logger:  slog.Default(),
					Errors:  handler,
				})
				if err != nil {
					return err
				}

				return e.render(cmd.OutOrStdout(), rep, func(w io.Writer) {
					writeReport(w, rep)
				})
			})
		},
	}

	cmd.Flags().UintVar(&limit, "limit", 0, "replay at most this many failures, 0 for all")

	return cmd
}

func newHarvestFailsCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "fails",
		Short: "List recorded harvest failures",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return e.withApp(cmd, func(a *app.App) error {
				rows, err := a.Fails.GetFails(cmd.Context(), time.Now(), 0)
				if err != nil {
					return err
				}

				return e.render(cmd.OutOrStdout(), rows, func(w io.Writer) {
					writeFails(w, rows)
				})
			})
		},
	}
}

func newCrawler(a *app.App) (*crawler.Gutendex, *crawler.StoringHandler) {
	handler := &crawler.StoringHandler{StartTime: time.Now(), Fails: a.Fails}

	return &crawler.Gutendex{Search: a.Search, Logger: slog.Default(), Errors: handler}, handler
}

func writeReport(w io.Writer, rep *crawler.Report) {
	fmt.Fprintf(w, "pages: %d (failed %d), last page %d\n", rep.Pages, rep.FailedPages, rep.LastPage)
	fmt.Fprintf(w, "books: %d (new %d, existing %d, failed %d)\n", rep.Books, rep.Created, rep.Existing, rep.Failed)
	if rep.FailedPages > 0 || rep.Failed > 0 {
		fmt.Fprintln(w, "failures were recorded, see: catalog harvest fails")
	}
}

func writeFails(w io.Writer, rows []*fails.Record) {
	if len(rows) == 0 {
		fmt.Fprintln(w, "No failures.")
		return
	}

	for _, r := range rows {
		fmt.Fprintf(w, "%5d  %s  %s: %s\n", r.Id, r.StartTime.Format(time.DateTime), r.Source, r.Error)
	}
}
