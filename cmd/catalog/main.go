package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path"
	"runtime"

	_ "github.com/doug-martin/goqu/v9/dialect/postgres"

	"bookshelf/internal/app"
	"bookshelf/internal/cli"
	"bookshelf/internal/config"
	"bookshelf/internal/logger"
)

func main() {
	_, thisFile, _, _ := runtime.Caller(0)

	cfg, err := config.Load()
	if err != nil {
		_, _ = fmt.Fprintln(os.Stderr, "invalid configuration: "+err.Error())
		os.Exit(1)
	}

	// stdout belongs to command output
	err = logger.SetupSLog(os.Stderr, cfg.LogLevel, cfg.LogFormat, path.Dir(path.Dir(path.Dir(thisFile))), nil)
	if err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	root := cli.NewRootCmd(func(ctx context.Context) (*app.App, error) {
		return app.Open(ctx, cfg, slog.Default())
	})

	if err := root.ExecuteContext(ctx); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}
