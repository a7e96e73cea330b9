// Command slotline serves the storefront layout platform: the admin layout
// API, the storefront render routes, and optionally the MCP tool surface.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	_ "modernc.org/sqlite"

	"github.com/lumaworks/slotline/dbopen"
	"github.com/lumaworks/slotline/layout"
	"github.com/lumaworks/slotline/observability"
	"github.com/lumaworks/slotline/preview"
	"github.com/lumaworks/slotline/registry"
	"github.com/lumaworks/slotline/render"
	"github.com/lumaworks/slotline/shield"
	"github.com/lumaworks/slotline/widgets"
)

func main() {
	port := env("PORT", "8090")
	layoutPath := env("LAYOUT_DB", "db/layouts.db")
	obsPath := env("OBS_DB", "db/observability.db")
	shellPath := env("SHELL_HTML", "")
	mcpTransport := env("MCP_TRANSPORT", "")
	logLevel := env("LOG_LEVEL", "info")
	debounceMs, _ := strconv.Atoi(env("AUTOSAVE_DEBOUNCE_MS", "2000"))

	// Logging.
	var lvl slog.Level
	switch logLevel {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
	slog.SetDefault(logger)

	// Signal context.
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Layout DB.
	layoutDB, err := dbopen.Open(layoutPath, dbopen.WithMkdirAll())
	if err != nil {
		slog.Error("layout db", "error", err)
		os.Exit(1)
	}
	defer layoutDB.Close()

	// Observability DB — separate file to keep audit writes off the layout
	// write path.
	obsDB, err := dbopen.Open(obsPath, dbopen.WithMkdirAll())
	if err != nil {
		slog.Error("observability db", "error", err)
		os.Exit(1)
	}
	defer obsDB.Close()
	if err := observability.Init(obsDB); err != nil {
		slog.Error("observability init", "error", err)
		os.Exit(1)
	}
	events := observability.NewEventLogger(obsDB)
	requests := observability.NewRequestLogger(obsDB)
	defer requests.Close()

	// Layout service.
	svc, err := layout.New(layoutDB,
		layout.WithAutosaveDebounce(time.Duration(debounceMs)*time.Millisecond),
		layout.WithEventLogger(events),
		layout.WithLogger(logger),
	)
	if err != nil {
		slog.Error("layout service", "error", err)
		os.Exit(1)
	}
	defer svc.Close()

	// Component registry and renderer.
	reg := registry.New(registry.WithLogger(logger))
	widgets.RegisterBuiltins(reg)
	renderer := render.New(reg, render.WithLogger(logger))

	// Preview builder, fed from the storefront shell if configured.
	var shell string
	if shellPath != "" {
		raw, err := os.ReadFile(shellPath)
		if err != nil {
			slog.Warn("shell html unreadable, previews unstyled", "path", shellPath, "error", err)
		} else {
			shell = string(raw)
		}
	}
	pb := preview.NewBuilder(shell)

	// Change notifier for editor refresh signals.
	notifier := layout.NewNotifier(layoutDB, layout.NotifierOptions{
		Interval: time.Second,
		Debounce: 500 * time.Millisecond,
		Logger:   logger,
	})
	go notifier.Run(ctx)

	// HTTP router.
	r := chi.NewRouter()
	for _, mw := range shield.AdminStack() {
		r.Use(mw)
	}
	r.Use(requests.Middleware)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	api := layout.NewAPI(svc, renderer, notifier, pb, logger)
	api.RegisterHTTP(r)

	// Optional MCP over stdio.
	if mcpTransport == "stdio" {
		mcpSrv := mcp.NewServer(&mcp.Implementation{
			Name:    "slotline",
			Version: "1.0.0",
		}, nil)
		svc.RegisterMCP(mcpSrv, renderer)
		go func() {
			slog.Info("MCP stdio starting")
			if err := mcpSrv.Run(ctx, &mcp.StdioTransport{}); err != nil && ctx.Err() == nil {
				slog.Error("MCP stdio", "error", err)
			}
		}()
	}

	// HTTP server.
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		slog.Info("server starting", "port", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown", "error", err)
	}
	slog.Info("server stopped")
}

func env(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
