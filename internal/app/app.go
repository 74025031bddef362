// Package app wires configuration into a ready catalog service. Both binaries share it.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"bookshelf/internal/catalog"
	"bookshelf/internal/config"
	"bookshelf/internal/gutendex"
	"bookshelf/internal/logger"
	"bookshelf/internal/storage"
	"bookshelf/internal/storage/authors"
	"bookshelf/internal/storage/books"
	"bookshelf/internal/storage/fails"
	"bookshelf/internal/storage/subjects"
)

type App struct {
	Service *catalog.Service
	Client  *gutendex.Client
	Search  gutendex.Searcher
	// Fails keeps harvest failures for a later retry.
	Fails fails.Repository

	pool *pgxpool.Pool
}

// Open connects storage (postgres when DatabaseURL is set, memory otherwise) and the Gutendex client.
func Open(ctx context.Context, cfg *config.Config, l *slog.Logger) (*App, error) {
	client, err := gutendex.NewClient(cfg.Gutendex, l)
	if err != nil {
		return nil, err
	}

	a := &App{Client: client, Search: client}

	var authorRepo authors.Repository
	var bookRepo books.Repository
	var subjectRepo subjects.Repository

	if cfg.DatabaseURL == "" {
		l.Info("DATABASE_URL is not set, using in-memory storage")
		authorRepo = authors.NewMemoryRepository()
		bookRepo = books.NewMemoryRepository(authorRepo)
		subjectRepo = subjects.NewMemoryRepository()
		a.Fails = fails.NewMemoryRepository()
	} else {
		pcfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("parsing DATABASE_URL: %w", err)
		}

		pcfg.ConnConfig.Tracer = logger.NewPGXTracer(l)

		a.pool, err = pgxpool.NewWithConfig(ctx, pcfg)
		if err != nil {
			return nil, fmt.Errorf("creating postgres pool: %w", err)
		}

		if cfg.Migrate {
			if err := storage.Migrate(ctx, a.pool); err != nil {
				a.pool.Close()
				return nil, err
			}
			l.Debug("Migrations applied")
		}

		authorRepo = authors.NewPGXRepository(a.pool, l)
		bookRepo = books.NewPGXRepository(a.pool, l)
		subjectRepo = subjects.NewPGXRepository(a.pool, l)
		a.Fails = fails.NewPGXRepository(a.pool, l)
	}

	a.Service = catalog.NewService(client, authorRepo, bookRepo, subjectRepo, l)
	return a, nil
}

func (a *App) Close() {
	if a.pool != nil {
		a.pool.Close()
	}
}
