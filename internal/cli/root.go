// Package cli holds the cobra commands of the catalog binary.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"bookshelf/internal/app"
)

const (
	outputText = "text"
	outputJson = "json"
	outputYaml = "yaml"
)

// Opener builds the application on first use. Commands that do not touch the catalog never call it.
type Opener func(ctx context.Context) (*app.App, error)

type env struct {
	open   Opener
	output string
}

func NewRootCmd(open Opener) *cobra.Command {
	e := &env{open: open}

	root := &cobra.Command{
		Use:           "catalog",
		Short:         "Gutendex book catalog: import books, query authors and languages",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			switch e.output {
			case outputText, outputJson, outputYaml:
				return nil
			}
			return fmt.Errorf("--output must be text, json or yaml, got %q", e.output)
		},
	}

	root.PersistentFlags().StringVarP(&e.output, "output", "o", outputText, "output format: text, json or yaml")

	root.AddCommand(
		newMenuCmd(e),
		newImportCmd(e),
		newBooksCmd(e),
		newAuthorsCmd(e),
		newTopCmd(e),
		newStatsCmd(e),
		newRemoteCmd(e),
		newAnalyzeCmd(e),
		newPingCmd(e),
		newSubjectsCmd(e),
		newHarvestCmd(e),
	)

	return root
}

// withApp opens the application for the duration of fn.
func (e *env) withApp(cmd *cobra.Command, fn func(a *app.App) error) error {
	a, err := e.open(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	return fn(a)
}

// render writes v as json or yaml, or calls text for the plain format.
func (e *env) render(w io.Writer, v any, text func(w io.Writer)) error {
	switch e.output {
	case outputJson:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case outputYaml:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		text(w)
		return nil
	}
}
