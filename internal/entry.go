// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/wssync/internal/api"
	"github.com/starford/wssync/internal/catalogue"
	"github.com/starford/wssync/internal/history"
	"github.com/starford/wssync/internal/mcpserver"
	"github.com/starford/wssync/internal/metrics"
	"github.com/starford/wssync/internal/runner"
	"github.com/starford/wssync/internal/sse"
	"github.com/starford/wssync/internal/storage"
	"github.com/starford/wssync/internal/syncservice"
	"github.com/starford/wssync/internal/watcher"
)

// stack is everything a command needs, wired from the configuration.
type stack struct {
	cfg     *Config
	logger  *slog.Logger
	store   *storage.FS
	history *history.DB
	metrics *metrics.Metrics
	runner  *runner.Runner
}

func (s *stack) Close() {
	if s.history != nil {
		if err := s.history.Close(); err != nil {
			s.logger.Warn("close history failed", slog.String("error", err.Error()))
		}
	}
}

func setup(opts []Option, extra ...runner.Option) (*stack, error) {
	app := &application{logOutput: os.Stdout, version: "dev"}

	for _, opt := range opts {
		opt(app)
	}

	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}

	cfg := app.config

	// Initialize structured JSON logger.
	logger := slog.New(slog.NewJSONHandler(app.logOutput, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	logger.Debug("Configuration loaded",
		slog.String("source", cfg.Sync.Source),
		slog.String("target", cfg.Sync.Target),
		slog.String("docs", cfg.Sync.Docs),
		slog.String("prefix", cfg.Catalogue.LinkPrefix()),
		slog.String("history_path", cfg.History.Path),
		slog.String("log_level", cfg.App.LogLevel.String()))

	store, err := storage.NewFS(cfg.Sync.Target)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}

	s := &stack{cfg: cfg, logger: logger, store: store, metrics: metrics.New()}

	ropts := []runner.Option{
		runner.WithLogger(logger),
		runner.WithMetrics(s.metrics),
	}
	if cfg.History.Enabled() {
		db, err := history.Open(cfg.History.Path, logger)
		if err != nil {
			return nil, fmt.Errorf("init history: %w", err)
		}
		s.history = db
		ropts = append(ropts, runner.WithHistory(db))
	}
	ropts = append(ropts, extra...)

	s.runner = runner.New(store, runner.Settings{
		SourceRoot:    cfg.Sync.Source,
		Docs:          cfg.Sync.Docs,
		Exclude:       cfg.Sync.Exclude,
		Prefix:        cfg.Catalogue.LinkPrefix(),
		CatalogueFile: cfg.Catalogue.File,
		DryRun:        cfg.Sync.DryRun,
		Lock:          cfg.Sync.Lock,
	}, ropts...)

	return s, nil
}

// service returns the read/trigger facade over the stack. A nil history
// must stay an untyped nil inside the interface.
func (s *stack) service() *syncservice.Service {
	var hist history.Store
	if s.history != nil {
		hist = s.history
	}
	return syncservice.NewService(s.runner, hist, s.logger)
}

// Run performs a single synchronization pass.
func Run(ctx context.Context, opts ...Option) error {
	s, err := setup(opts)
	if err != nil {
		return err
	}
	defer s.Close()

	res, err := s.runner.Run(ctx)
	if err != nil {
		return fmt.Errorf("sync: %w", err)
	}
	s.logger.Info("Sync finished",
		slog.Int("workspaces", len(res.Workspaces)),
		slog.Int("copied", len(res.Copied)),
		slog.Bool("catalogue_rebuilt", res.Rebuilt),
		slog.Duration("took", res.FinishedAt.Sub(res.StartedAt)))
	return nil
}

// Watch performs a pass, then another one whenever the source tree changes,
// until interrupted.
func Watch(ctx context.Context, opts ...Option) error {
	s, err := setup(opts)
	if err != nil {
		return err
	}
	defer s.Close()

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if _, err := s.runner.Run(ctx); err != nil {
		s.logger.Error("initial sync failed", slog.String("error", err.Error()))
	}

	return watcher.Watch(ctx, s.cfg.Sync.Source, s.cfg.Watch.Debounce, s.logger, func(ctx context.Context) error {
		_, err := s.runner.Run(ctx)
		return err
	})
}

// Serve starts the HTTP server exposing the catalogue, run history, SSE
// events and metrics. With watch set it also runs the source watcher.
func Serve(ctx context.Context, watch bool, opts ...Option) error {
	// SSE broker.
	broker := sse.NewBroker(2 * time.Second)
	defer broker.Close()

	s, err := setup(opts, runner.WithHook(broker.PublishRun))
	if err != nil {
		return err
	}
	defer s.Close()

	cfg := s.cfg
	logger := s.logger

	apiRouter := api.NewRouter(s.service(), cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker)

	// Build chi router.
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
		if _, err := os.Stat(cfg.Sync.Source); err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"source unavailable"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Handle("/metrics", s.metrics.Handler())

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)

	// Mirrored target tree, including the catalogue file.
	var hide []string
	if rel, ok := api.HiddenPath(s.store.Root(), cfg.History.Path); ok {
		hide = append(hide, rel, rel+"-wal", rel+"-shm")
	}
	r.Handle("/files/*", http.StripPrefix("/files", api.FilesHandler(s.store.Root(), hide...)))

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gCtx := errgroup.WithContext(ctx)

	if watch {
		g.Go(func() error {
			if _, err := s.runner.Run(gCtx); err != nil {
				logger.Error("initial sync failed", slog.String("error", err.Error()))
			}
			return watcher.Watch(gCtx, cfg.Sync.Source, cfg.Watch.Debounce, logger, func(ctx context.Context) error {
				_, err := s.runner.Run(ctx)
				return err
			})
		})
	}

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

		return context.Canceled
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// ServeMCP runs the MCP server on stdin/stdout. Logs go to stderr.
func ServeMCP(_ context.Context, opts ...Option) error {
	app := &application{version: "dev"}
	for _, opt := range opts {
		opt(app)
	}
	opts = append(opts, WithLogOutput(os.Stderr))

	s, err := setup(opts)
	if err != nil {
		return err
	}
	defer s.Close()

	return mcpserver.New(s.service(), app.version).ServeStdio()
}

// ShowCatalogue writes the current catalogue file to w.
func ShowCatalogue(_ context.Context, w io.Writer, opts ...Option) error {
	s, err := setup(append(opts, WithLogOutput(os.Stderr)))
	if err != nil {
		return err
	}
	defer s.Close()

	entries, err := catalogue.Load(s.store, s.cfg.Catalogue.File, s.logger)
	if err != nil {
		return err
	}
	data, err := catalogue.Encode(entries)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

// ShowHistory prints the most recent runs to w.
func ShowHistory(_ context.Context, w io.Writer, limit int, asJSON bool, opts ...Option) error {
	s, err := setup(append(opts, WithLogOutput(os.Stderr)))
	if err != nil {
		return err
	}
	defer s.Close()

	if s.history == nil {
		return fmt.Errorf("history: no database configured (history.path)")
	}
	runs, err := s.history.Recent(limit)
	if err != nil {
		return err
	}

	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(runs)
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTARTED\tTOOK\tWORKSPACES\tCOPIED\tREBUILT\tDRY RUN")
	for _, r := range runs {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%d\t%t\t%t\n",
			r.ID,
			r.StartedAt.Local().Format(time.DateTime),
			r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond),
			r.Workspaces, r.Copied, r.Rebuilt, r.DryRun)
	}
	return tw.Flush()
}
