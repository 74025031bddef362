package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path"
	"runtime"
	"syscall"
	"time"

	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"bookshelf/internal/app"
	"bookshelf/internal/config"
	"bookshelf/internal/logger"
	"bookshelf/internal/opds"
	"bookshelf/internal/response"
	"bookshelf/internal/server"
)

func main() {
	_, thisFile, _, _ := runtime.Caller(0)

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Invalid configuration: " + err.Error())
		os.Exit(1)
	}

	err = logger.SetupSLog(os.Stderr, cfg.LogLevel, cfg.LogFormat, path.Dir(path.Dir(path.Dir(thisFile))), middleware.RequestIDKey)
	if err != nil {
		slog.Error("Failed to set up logging: " + err.Error())
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.Open(ctx, cfg, slog.Default())
	if err != nil {
		slog.Error("Failed to start: " + err.Error())
		os.Exit(1)
	}
	defer a.Close()

	rr := &response.Responder{DebugMode: cfg.DebugMode}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	if cfg.RateLimit > 0 {
		rl := server.NewRateLimiter(cfg.RateLimit, int(cfg.RateLimit*2)+1, rr)
		go rl.Run(ctx)
		r.Use(rl.Middleware)
	}

	r.Mount("/api", server.Handler(a.Service, rr))
	r.Mount("/opds", opds.Handler(a.Service, rr, "/opds"))

	srv := &http.Server{
		Addr:              cfg.BindAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Failed to shut down gracefully: " + err.Error())
		}
	}()

	slog.Info("Listening on " + cfg.BindAddr)

	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		slog.Error("aborting: " + err.Error())
		a.Close()
		os.Exit(1)
	}

	slog.Info("Server stopped")
}
