// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
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

	"golang.org/x/sync/errgroup"

	"github.com/starford/panela/internal/apiclient"
	"github.com/starford/panela/internal/ledger"
	"github.com/starford/panela/internal/mcpserver"
	"github.com/starford/panela/internal/recipeform"
	"github.com/starford/panela/internal/session"
	"github.com/starford/panela/internal/sse"
	"github.com/starford/panela/internal/web"
)

func newApplication(opts []Option) (*application, error) {
	app := &application{logOut: os.Stdout}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	return app, nil
}

// logger builds the structured JSON logger and makes it the default.
func (a *application) logger() *slog.Logger {
	logger := slog.New(slog.NewJSONHandler(a.logOut, &slog.HandlerOptions{
		Level: a.config.App.LogLevel,
	}))
	slog.SetDefault(logger)
	return logger
}

// Run starts the web frontend with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config
	logger := app.logger()

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("api_base_url", cfg.API.BaseURL),
		slog.String("templates_dir", cfg.Templates.Dir),
		slog.String("ledger_path", cfg.Ledger.Path),
		slog.String("log_level", cfg.App.LogLevel.String()))

	client := apiclient.New(cfg.API.BaseURL, cfg.API.Timeout)
	resolver := session.NewResolver(client, logger)

	// The ledger is optional; a nil interface keeps the submitter from recording uploads.
	var uploads recipeform.UploadLedger
	if cfg.Ledger.Enabled() {
		db, err := ledger.Open(cfg.Ledger.Path)
		if err != nil {
			return fmt.Errorf("init ledger: %w", err)
		}
		defer db.Close()
		uploads = db
	}
	submitter := recipeform.NewSubmitter(client, uploads, logger)

	renderer, err := web.NewRenderer(cfg.Templates.Dir, logger)
	if err != nil {
		return fmt.Errorf("init templates: %w", err)
	}

	broker := sse.NewBroker(cfg.Events.Throttle)
	defer broker.Close()

	h := web.NewHandler(client, resolver, submitter, renderer, broker, web.Options{
		CookieName:   cfg.Session.CookieName,
		SecureCookie: cfg.Session.SecureCookie,
		LoginPath:    cfg.Session.LoginPath,
	}, logger)

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           web.NewRouter(h, broker),
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	// Reload templates from disk on change and tell open pages.
	if cfg.Templates.Watch {
		g.Go(func() error {
			err := web.WatchTemplates(gCtx, renderer, cfg.Templates.Dir, logger, func() {
				broker.Publish(sse.Event{Type: "catalog.updated", Data: map[string]string{}})
			})
			if err != nil {
				logger.Warn("template watcher unavailable", slog.String("error", err.Error()))
			}
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
		// SSE streams only end when their clients go away; close them first.
		broker.Close()
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

// ServeMCP exposes the catalog over MCP on stdin/stdout until ctx is
// cancelled, a signal arrives or stdin closes. Logs go to the writer set
// by WithLogOutput.
func ServeMCP(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	logger := app.logger()

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client := apiclient.New(app.config.API.BaseURL, app.config.API.Timeout)
	logger.Info("MCP server starting", slog.String("api_base_url", app.config.API.BaseURL))
	if err := mcpserver.New(client).ServeStdio(ctx); err != nil {
		return fmt.Errorf("mcp: %w", err)
	}
	logger.Info("MCP server stopped")
	return nil
}

// ListOrphans writes the ledger's unattached uploads older than minAge to out.
func ListOrphans(ctx context.Context, out io.Writer, minAge time.Duration, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	if !app.config.Ledger.Enabled() {
		return fmt.Errorf("ledger is disabled (set ledger.path)")
	}

	db, err := ledger.Open(app.config.Ledger.Path)
	if err != nil {
		return fmt.Errorf("open ledger: %w", err)
	}
	defer db.Close()

	orphans, err := db.Orphans(ctx, minAge)
	if err != nil {
		return err
	}
	return writeOrphans(out, orphans)
}

func writeOrphans(out io.Writer, orphans []ledger.Upload) error {
	if len(orphans) == 0 {
		_, err := fmt.Fprintln(out, "no orphaned uploads")
		return err
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "UPLOADED\tFILENAME\tCHECKSUM\tURL")
	for _, u := range orphans {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
			u.CreatedAt.Format(time.RFC3339), u.Filename, u.Checksum, u.URL)
	}
	return tw.Flush()
}
