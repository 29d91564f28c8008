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

	"github.com/starford/fathom/internal/api"
	"github.com/starford/fathom/internal/mcpserver"
	"github.com/starford/fathom/internal/mirror"
	"github.com/starford/fathom/internal/noteservice"
	"github.com/starford/fathom/internal/sse"
	"github.com/starford/fathom/internal/storage"
	"github.com/starford/fathom/internal/store"
	"github.com/starford/fathom/internal/workspace"
)

// App holds the opened workspace: storage, database and note service.
type App struct {
	Config  *Config
	Logger  *slog.Logger
	FS      *storage.FS
	DB      *store.DB
	Service *noteservice.Service
}

// Open prepares the workspace root and database and wires the note service.
// The config must have its paths resolved. Callers must Close the App.
func Open(opts ...Option) (*App, error) {
	app := &application{}
	for _, opt := range opts {
		opt(app)
	}
	return open(app)
}

func open(app *application) (*App, error) {
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	cfg := app.config

	logger := app.logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
			Level: cfg.App.LogLevel,
		}))
	}

	if err := os.MkdirAll(cfg.Workspace.Root, 0o755); err != nil {
		return nil, fmt.Errorf("create workspace dir: %w", err)
	}

	fs, err := storage.NewFS(cfg.Workspace.Root)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}

	db, err := store.Open(cfg.SQLite.Path)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}

	sessions := workspace.NewManager(cfg.Workspace.Root, fs, logger)
	var svcOpts []noteservice.Option
	if app.sink != nil {
		svcOpts = append(svcOpts, noteservice.WithEventSink(app.sink))
	}
	svc := noteservice.NewService(db, mirror.NewWriter(fs, sessions.Allocator()), sessions, logger, svcOpts...)

	if !store.FullTextSearch {
		logger.Warn("built without sqlite_fts5: search uses substring matching, newest first")
	}

	logger.Debug("Workspace opened",
		slog.String("workspace", cfg.Workspace.Root),
		slog.String("sqlite_path", cfg.SQLite.Path))

	return &App{
		Config:  cfg,
		Logger:  logger,
		FS:      fs,
		DB:      db,
		Service: svc,
	}, nil
}

// Close releases the database.
func (a *App) Close() error {
	return a.DB.Close()
}

// Run starts the HTTP server and the workspace watcher and blocks until ctx
// is cancelled or a shutdown signal arrives.
func Run(ctx context.Context, opts ...Option) error {
	app := &application{}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return fmt.Errorf("config is required")
	}
	cfg := app.config

	// SSE broker; service events feed it directly.
	broker := sse.NewBroker(2 * time.Second)
	defer broker.Close()
	app.sink = broker.Notify

	a, err := open(app)
	if err != nil {
		return err
	}
	defer a.Close()
	logger := a.Logger

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("workspace", cfg.Workspace.Root),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("auth_mode", cfg.Auth.Mode),
		slog.String("log_level", cfg.App.LogLevel.String()))

	apiRouter := api.NewRouter(a.Service, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker, cfg.Workspace.Root, a.FS)

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
	r.Get("/health/ready", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if _, err := a.Service.List(req.Context(), 1); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"unavailable"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gCtx := errgroup.WithContext(ctx)

	// Watch the workspace and forward mirror and session changes over SSE.
	g.Go(func() error {
		if err := mirror.Watch(gCtx, cfg.Workspace.Root, logger, broker.PublishWorkspaceEvent); err != nil {
			logger.Warn("workspace watcher stopped", slog.String("error", err.Error()))
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

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

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
		return errShutdown
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errShutdown) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// errShutdown cancels the errgroup so the watcher exits with the server.
var errShutdown = errors.New("shutdown")

// RunMCP serves the MCP tools over stdin/stdout. Logs go to stderr so they
// never mix with the protocol stream.
func RunMCP(_ context.Context, version string, opts ...Option) error {
	a, err := Open(opts...)
	if err != nil {
		return err
	}
	defer a.Close()

	a.Logger.Info("MCP server starting", slog.String("workspace", a.Config.Workspace.Root))
	if err := mcpserver.New(a.Service, a.FS, version).ServeStdio(); err != nil {
		return fmt.Errorf("mcp server: %w", err)
	}
	return nil
}
