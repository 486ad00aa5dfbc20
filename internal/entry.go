// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/raido/internal/api"
	"github.com/starford/raido/internal/cache"
	"github.com/starford/raido/internal/discovery"
	"github.com/starford/raido/internal/mcpserver"
	"github.com/starford/raido/internal/query"
	"github.com/starford/raido/internal/registry"
)

// Run starts the application with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app := &application{}

	for _, opt := range opts {
		opt(app)
	}

	if app.config == nil {
		return fmt.Errorf("config is required")
	}

	cfg := app.config

	// Initialize structured JSON logger. In stdio mode stdout carries the
	// MCP protocol, so logs go to stderr.
	logOut := os.Stdout
	if app.stdio {
		logOut = os.Stderr
	}
	logger := slog.New(slog.NewJSONHandler(logOut, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("registry_log", cfg.Registry.LogPath),
		slog.String("cache_dir", cfg.Cache.Dir),
		slog.String("discovery_org", cfg.Discovery.Org),
		slog.String("log_level", cfg.App.LogLevel.String()))

	if err := os.MkdirAll(cfg.Cache.Dir, 0o755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}

	// Discovery log persists discovered resources across restarts.
	store, err := registry.OpenStore(cfg.Registry.LogPath)
	if err != nil {
		return fmt.Errorf("open discovery log: %w", err)
	}
	defer store.Close()

	reg := registry.New(store)
	if err := reg.LoadStore(); err != nil {
		return fmt.Errorf("load discovery log: %w", err)
	}
	// Seed after the log so statically configured identity fields win.
	if cfg.Registry.SeedFile != "" {
		if _, err := os.Stat(cfg.Registry.SeedFile); err == nil {
			if err := reg.LoadSeed(cfg.Registry.SeedFile); err != nil {
				return fmt.Errorf("load seed file: %w", err)
			}
		}
	}
	logger.Info("Registry loaded", slog.Int("resources", reg.Len()))

	token := cfg.Discovery.Token
	if token == "" {
		token = os.Getenv("GITHUB_TOKEN")
	}

	fetcher := cache.NewHTTPFetcher(cfg.Discovery.RawBaseURL, cfg.Discovery.ArtifactPath, token, cfg.Cache.MaxFileSize)
	c := cache.New(reg, fetcher, logger, cache.Options{
		Dir:                  cfg.Cache.Dir,
		TTL:                  cfg.Cache.TTL(),
		FetchTimeout:         cfg.Cache.FetchTimeout(),
		MaxConcurrentFetches: cfg.Cache.MaxConcurrentFetches,
	})
	if err := c.LoadPersisted(); err != nil {
		logger.Warn("loading persisted cache failed", slog.String("error", err.Error()))
	}

	// Discovery is optional: without an organization the registry is
	// whatever the seed file and discovery log provide.
	var disc *discovery.Discoverer
	if cfg.Discovery.Org != "" {
		disc = discovery.New(reg, logger, discovery.Options{
			Org:            cfg.Discovery.Org,
			RepoSuffix:     cfg.Discovery.RepoSuffix,
			ArtifactBranch: cfg.Discovery.ArtifactBranch,
			APIBaseURL:     cfg.Discovery.APIBaseURL,
			Token:          token,
		})
		// A resource with a live cache entry proved its artifact branch
		// already; skip the probe on re-discovery.
		disc.SkipProbe = c.Fresh
	}

	engine := query.New(reg, c, disc, logger)

	if app.stdio {
		logger.Info("Starting MCP server on stdio")
		return mcpserver.New(engine).ServeStdio()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Mount("/", api.NewRouter(engine, cfg.Auth.AuthEnabled(), cfg.Auth.Token))

	httpServer := &http.Server{
		Addr:    cfg.App.HTTP.Address(),
		Handler: r,
	}

	g, gCtx := errgroup.WithContext(ctx)

	// Watch local artifact directories so edits mark the cache stale. The
	// watcher rescans the registry, so locals added later are covered too.
	g.Go(func() error {
		if err := cache.Watch(gCtx, c, logger); err != nil {
			logger.Warn("artifact watcher failed", slog.String("error", err.Error()))
		}
		return nil
	})

	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}
