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

	"github.com/starford/orgsync/internal/api"
	"github.com/starford/orgsync/internal/sse"
	"github.com/starford/orgsync/internal/syncer"
	"github.com/starford/orgsync/internal/watch"
)

// EventSyncCompleted is broadcast after every successful sync.
const EventSyncCompleted = "sync.completed"

// Run starts the long-running service: HTTP API, document watcher and the
// periodic sync ticker.
func Run(ctx context.Context, opts ...Option) error {
	app := &application{}

	for _, opt := range opts {
		opt(app)
	}

	if app.config == nil {
		return fmt.Errorf("config is required")
	}

	cfg := app.config

	logger := app.logger
	if logger == nil {
		logger = cfg.App.NewLogger(os.Stdout)
	}
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("document", cfg.Document.Path),
		slog.String("provider", cfg.Provider.Kind),
		slog.String("repo", cfg.Sync.Repo),
		slog.Bool("history", cfg.History.Enabled),
		slog.String("log_level", cfg.App.LogLevel.String()))

	// SSE broker.
	broker := sse.NewBroker(2 * time.Second)
	defer broker.Close()

	comps, err := Build(cfg, logger, notifyBroker(broker))
	if err != nil {
		return err
	}
	defer comps.Close()

	httpServer := &http.Server{
		Addr:    cfg.App.HTTP.Address(),
		Handler: newHTTPHandler(comps, broker),
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	// Start document watcher with SSE callback.
	g.Go(func() error {
		return watch.Watch(gCtx, comps.Store, comps.Document, logger, broker.PublishDocumentEvent)
	})

	// Periodic sync.
	if cfg.Sync.Interval > 0 && cfg.Sync.Repo != "" {
		g.Go(func() error {
			syncLoop(gCtx, comps, cfg.Sync.Interval)
			return nil
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

		return errShutdown
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errShutdown) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// errShutdown cancels the group once the HTTP server is down so the watcher
// and the sync loop stop too.
var errShutdown = errors.New("shutdown")

// notifyBroker broadcasts every successful sync to SSE clients.
func notifyBroker(broker *sse.Broker) syncer.Option {
	return syncer.WithNotify(func(res *syncer.Result) {
		broker.Publish(sse.Event{Type: EventSyncCompleted, Data: res})
	})
}

func newHTTPHandler(comps *Components, broker *sse.Broker) http.Handler {
	cfg := comps.Config
	apiRouter := api.NewRouter(comps.Syncer, comps.Defaults(), cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker)

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
		if err := comps.Syncer.CheckConnection(req.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"unavailable"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)
	return r
}

// syncLoop runs a sync right away and then every interval until ctx is done.
// Failures are logged by the syncer and do not stop the loop.
func syncLoop(ctx context.Context, comps *Components, interval time.Duration) {
	opts := comps.Defaults()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if res, err := comps.Syncer.Sync(ctx, opts); err == nil {
			comps.Logger.Info("Periodic sync finished",
				slog.String("summary", res.Report.Summary()),
				slog.Bool("written", res.Written))
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
