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

	"github.com/starford/othala/internal/api"
	"github.com/starford/othala/internal/history"
	"github.com/starford/othala/internal/mcpserver"
	"github.com/starford/othala/internal/models"
	"github.com/starford/othala/internal/noterepo"
	"github.com/starford/othala/internal/noteservice"
	"github.com/starford/othala/internal/object"
	"github.com/starford/othala/internal/search"
	"github.com/starford/othala/internal/sse"
	"github.com/starford/othala/internal/syncer"
	"github.com/starford/othala/internal/vault"
)

// Run starts the HTTP server with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app := &application{}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return fmt.Errorf("config is required")
	}
	cfg := app.config

	// Initialize structured JSON logger.
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("vault_path", cfg.Vault.Path),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("log_level", cfg.App.LogLevel.String()))

	broker := sse.NewBroker(2 * time.Second)
	defer broker.Close()

	deps, err := buildService(cfg, logger, broker)
	if err != nil {
		return err
	}
	svc, store := deps.svc, deps.store
	defer svc.Close()
	defer deps.db.Close()

	r := newRootRouter(cfg, deps, broker)

	httpServer := &http.Server{
		Addr:    cfg.App.HTTP.Address(),
		Handler: r,
	}

	g, gCtx := errgroup.WithContext(ctx)

	// Watch the vault for foreign edits (editors, sync tools) and keep the
	// search index in step, streaming changes to SSE clients.
	ix := deps.index
	g.Go(func() error {
		if err := search.Watch(gCtx, ix, store, logger, func(kind, id string) {
			broker.PublishNoteEvent(kind, id)
		}); err != nil {
			logger.Warn("vault watcher stopped", slog.String("error", err.Error()))
		}
		return nil
	})

	// Start HTTP server.
	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
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

// RunMCP starts the MCP server on stdin/stdout, sharing the same vault and
// index as the HTTP server.
func RunMCP(_ context.Context, opts ...Option) error {
	app := &application{}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return fmt.Errorf("config is required")
	}
	cfg := app.config

	// Log to stderr; stdout carries the MCP protocol.
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	deps, err := buildService(cfg, logger, nil)
	if err != nil {
		return err
	}
	defer deps.svc.Close()
	defer deps.db.Close()

	return mcpserver.New(deps.svc, deps.store).ServeStdio()
}

type serviceDeps struct {
	svc   *noteservice.Service
	store vault.Provider
	repo  *object.Repository
	db    *search.DB
	index *search.Index
}

// newRootRouter assembles the process-wide HTTP surface: health checks, the
// REST API under /api, public asset serving, and the sync server under
// /sync so this vault can act as a remote for another.
func newRootRouter(cfg *Config, deps *serviceDeps, broker *sse.Broker) chi.Router {
	apiRouter := api.NewRouter(deps.svc, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker, cfg.Vault.Path)
	assets := api.NewAssetHandler(cfg.Vault.Path)

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

	r.Mount("/api", apiRouter)
	r.Get("/assets/{filename}", assets.ServeFile)
	r.Mount("/sync", syncer.Handler(deps.repo, cfg.Sync.Token))

	return r
}

// buildService wires the vault, object repository, search index, and
// orchestrating service from configuration.
func buildService(cfg *Config, logger *slog.Logger, broker *sse.Broker) (*serviceDeps, error) {
	if err := os.MkdirAll(cfg.Vault.Path, 0o755); err != nil {
		return nil, fmt.Errorf("create vault dir: %w", err)
	}

	store, err := vault.NewFS(cfg.Vault.Path)
	if err != nil {
		return nil, fmt.Errorf("init vault: %w", err)
	}
	if err := store.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("prepare vault layout: %w", err)
	}

	repo, err := object.Open(cfg.Vault.Path)
	if err != nil {
		return nil, fmt.Errorf("open repository: %w", err)
	}
	if err := repo.Init(); err != nil {
		return nil, fmt.Errorf("init repository: %w", err)
	}
	if cfg.Sync.Remote != "" {
		if err := repo.AddRemote("origin", cfg.Sync.Remote); err != nil {
			logger.Warn("record default remote failed", slog.String("error", err.Error()))
		}
	}

	db, err := search.Open(cfg.SQLite.Path)
	if err != nil {
		return nil, fmt.Errorf("open search index: %w", err)
	}

	notes := noterepo.New(store)
	ix := search.NewIndex(db, notes)
	if err := ix.Rebuild(context.Background()); err != nil {
		logger.Warn("initial index rebuild failed", slog.String("error", err.Error()))
	}

	author := models.Author{Name: cfg.Author.Name, Email: cfg.Author.Email}
	svc := noteservice.New(noteservice.Deps{
		Notes:         notes,
		History:       history.New(repo, store, author),
		Index:         ix,
		Repo:          repo,
		Store:         store,
		Broker:        broker,
		Logger:        logger,
		AutosaveQuiet: time.Duration(cfg.Autosave.QuietSeconds) * time.Second,
		SyncToken:     cfg.Sync.Token,
	})
	return &serviceDeps{svc: svc, store: store, repo: repo, db: db, index: ix}, nil
}
