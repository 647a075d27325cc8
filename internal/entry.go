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

	"github.com/thkim0515/gagyebu/internal/api"
	"github.com/thkim0515/gagyebu/internal/bridge"
	"github.com/thkim0515/gagyebu/internal/mcpserver"
	"github.com/thkim0515/gagyebu/internal/paircode"
	"github.com/thkim0515/gagyebu/internal/pairing"
	"github.com/thkim0515/gagyebu/internal/parser"
	"github.com/thkim0515/gagyebu/internal/recon"
	"github.com/thkim0515/gagyebu/internal/rules"
	"github.com/thkim0515/gagyebu/internal/sse"
	"github.com/thkim0515/gagyebu/internal/store"
	"github.com/thkim0515/gagyebu/internal/trigger"
)

// Run starts the daemon with the given options. It plays both roles: the
// device (ledger, reconciliation, pairing client) and the remote store
// (pairing-code endpoints).
func Run(ctx context.Context, opts ...Option) error {
	app := &application{}

	for _, opt := range opts {
		opt(app)
	}

	if app.config == nil {
		return fmt.Errorf("config is required")
	}

	cfg := app.config

	// Initialize structured JSON logger unless one was injected.
	logger := app.logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: cfg.App.LogLevel,
		}))
	}
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("ledger_path", cfg.SQLite.Ledger),
		slog.String("codes_path", cfg.SQLite.Codes),
		slog.String("log_level", cfg.App.LogLevel.String()))

	// Ledger store.
	ledger, err := store.Open(cfg.SQLite.Ledger)
	if err != nil {
		return fmt.Errorf("init ledger store: %w", err)
	}
	defer ledger.Close()

	// Pairing-code store for the remote role.
	codes, err := paircode.Open(cfg.SQLite.Codes)
	if err != nil {
		return fmt.Errorf("init code store: %w", err)
	}
	defer codes.Close()

	// Classification rules: bundled defaults, optionally overridden from a
	// hot-reloaded YAML file.
	rulesEngine := rules.NewEngine()
	if cfg.Rules.Path != "" {
		rs, loadErr := rules.LoadFile(cfg.Rules.Path)
		if loadErr != nil {
			logger.Warn("rules file not loaded, using defaults",
				slog.String("path", cfg.Rules.Path),
				slog.String("error", loadErr.Error()))
		} else {
			rulesEngine.Replace(rs)
		}
	}

	// SSE broker.
	broker := sse.NewBroker(2 * time.Second)
	defer broker.Close()

	// Capture pipeline: bridge queue, reconciliation engine, scheduler.
	queue := bridge.NewQueue()
	engine := recon.New(ledger, parser.New(rulesEngine), queue, broker, recon.Settings{
		AutoSaveIncome:  cfg.AutoSave.Income,
		AutoSaveExpense: cfg.AutoSave.Expense,
	}, logger)
	sched := trigger.New(engine, queue, cfg.Sync.PollInterval, logger)
	ledger.SubscribeRecords(sched.OnLedgerChanged)

	// Pairing client; with the default config it talks to this daemon's own
	// remote endpoints.
	pairSvc := pairing.New(ledger, broker, cfg.Pairing.RemoteURL, logger)

	// Build router.
	handler := api.NewHandler(ledger, queue, sched, pairSvc)
	apiRouter := api.NewRouter(handler, api.NewRemoteHandler(codes), cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Mount("/", apiRouter)

	httpServer := &http.Server{
		Addr:    cfg.App.HTTP.Address(),
		Handler: r,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	// Hot-reload the rules file when one is configured.
	if cfg.Rules.Path != "" {
		g.Go(func() error {
			return rules.Watch(gCtx, rulesEngine, cfg.Rules.Path, logger)
		})
	}

	// Reconciliation scheduler.
	g.Go(func() error {
		return sched.Run(gCtx)
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

// RunMCP starts the MCP server on stdio instead of the HTTP daemon. Logs go
// to stderr so they do not corrupt the stdio transport.
func RunMCP(cfg *Config) error {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	ledger, err := store.Open(cfg.SQLite.Ledger)
	if err != nil {
		return fmt.Errorf("init ledger store: %w", err)
	}
	defer ledger.Close()

	rulesEngine := rules.NewEngine()
	if cfg.Rules.Path != "" {
		if rs, loadErr := rules.LoadFile(cfg.Rules.Path); loadErr == nil {
			rulesEngine.Replace(rs)
		}
	}

	srv := mcpserver.New(ledger, parser.New(rulesEngine), rulesEngine)
	logger.Info("MCP server starting on stdio")
	return srv.ServeStdio()
}
