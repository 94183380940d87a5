package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ragconsole/configuration"
	"ragconsole/internal/console"
	httpserver "ragconsole/internal/http"
	"ragconsole/package/logger"
	"ragconsole/package/validator"
)

func main() {
	cfg, err := configuration.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.Environment, logger.Options{
		FilePath:   cfg.Log.FilePath,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
	})
	defer log.Close()
	validator.Init()

	logConfig(cfg)

	deps := console.Deps{}
	if cfg.Notice.Terminal {
		deps.Terminal = os.Stdout
	}
	app, err := console.New(cfg, log.WithFields("app", cfg.App.Name, "version", cfg.App.Version).Logger, deps)
	if err != nil {
		slog.Error("failed to initialize console", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	startCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	err = app.Start(startCtx)
	cancel()
	if err != nil {
		slog.Error("failed to start console", "error", err)
		os.Exit(1)
	}

	router := httpserver.NewRouter(cfg, app)
	router.SetupRoutes()

	srv := createServer(cfg, router)
	if p := app.Printer(); p != nil {
		p.Banner(cfg.App.Name, cfg.App.Version, srv.Addr)
	}

	go startServer(srv, cfg)

	waitForShutdown(srv)
}

func logConfig(cfg *configuration.Config) {
	slog.Info("starting application",
		"name", cfg.App.Name,
		"version", cfg.App.Version,
		"environment", cfg.App.Environment,
		"remote", cfg.Remote.BaseURL,
		"s3_export", cfg.S3Enabled(),
	)
}

func createServer(cfg *configuration.Config, router *httpserver.Router) *http.Server {
	addr := fmt.Sprintf("%s:%d", cfg.Console.Host, cfg.Console.Port)

	// No WriteTimeout: query and ingest calls run as long as the remote needs.
	return &http.Server{
		Addr:              addr,
		Handler:           router.Engine(),
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}

func startServer(srv *http.Server, cfg *configuration.Config) {
	slog.Info("server starting",
		"address", srv.Addr,
		"mode", cfg.Console.Mode,
		"environment", cfg.App.Environment,
	)

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}

func waitForShutdown(srv *http.Server) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("forced shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("server stopped")
}
