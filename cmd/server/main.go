package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/dandantas/agenda/internal/agenda"
	"github.com/dandantas/agenda/internal/config"
	"github.com/dandantas/agenda/internal/database"
	"github.com/dandantas/agenda/internal/handler"
	"github.com/dandantas/agenda/internal/jobs"
	"github.com/dandantas/agenda/internal/platform"
	"github.com/dandantas/agenda/internal/render"
	"github.com/dandantas/agenda/internal/scheduler"
	"github.com/dandantas/agenda/pkg/middleware"
)

const version = "1.0.0"

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize logger
	logger := config.InitLogger(cfg)

	slog.Info("Starting Agenda Service", "version", version)

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Job store
	var (
		store agenda.Store
		db    *database.MongoDB
	)
	switch cfg.AgendaStore {
	case config.StoreMemory:
		slog.Warn("Using in-memory job store, jobs are lost on restart")
		store = agenda.NewMemoryStore()
	default:
		var err error
		db, err = database.Connect(ctx, cfg.MongoURI, cfg.MongoDatabase, cfg.MongoTimeout)
		if err != nil {
			slog.Error("Failed to connect to MongoDB", "error", err)
			os.Exit(1)
		}
		defer func() {
			if err := db.Disconnect(context.Background()); err != nil {
				slog.Error("Failed to disconnect from MongoDB", "error", err)
			}
		}()

		if err := database.CreateIndexes(ctx, db, cfg.AgendaCollection); err != nil {
			slog.Error("Failed to create indexes", "error", err)
			os.Exit(1)
		}

		store = database.NewJobRepository(db, cfg.AgendaCollection)
	}

	// Scheduling client
	client := agenda.New(agenda.Config{
		Name:                cfg.AgendaWorkerName,
		ProcessEvery:        cfg.AgendaProcessEvery,
		MaxConcurrency:      cfg.AgendaMaxConcurrency,
		DefaultConcurrency:  cfg.AgendaDefaultConcurrency,
		DefaultLockLifetime: cfg.AgendaDefaultLockLifetime,
	}, store)

	// Providers
	injector := platform.NewInjector(logger)

	module := scheduler.NewModule(injector, client, scheduler.Options{
		Enabled:              cfg.AgendaEnabled,
		DisableJobProcessing: cfg.AgendaDisableJobProcessing,
	})
	maintenance := jobs.NewMaintenance(client, cfg.AgendaPurgeRetention)

	for _, provider := range []*platform.Provider{
		{Token: "agenda.module", Instance: module},
		maintenance.Provider(cfg.AgendaPurgeInterval),
	} {
		if err := injector.Register(provider); err != nil {
			slog.Error("Failed to register provider", "token", provider.Token, "error", err)
			os.Exit(1)
		}
	}

	// Render middleware
	var renderer *middleware.RendererMiddleware
	if cfg.RenderEnabled {
		renderClient, err := render.NewClient(render.Config{
			ServerURL:    cfg.RenderServerURL,
			Timeout:      cfg.RenderTimeout,
			ResponsePath: cfg.RenderResponsePath,
			MaxAttempts:  cfg.RenderMaxAttempts,
		})
		if err != nil {
			slog.Error("Failed to create render client", "error", err)
			os.Exit(1)
		}
		renderer = middleware.NewRendererMiddleware(renderClient)
		slog.Info("Render middleware enabled", "server_url", cfg.RenderServerURL)
	}

	// Initialize handlers
	var pinger handler.Pinger
	if db != nil {
		pinger = db
	}
	healthHandler := handler.NewHealthHandler(pinger, client, version)
	jobsHandler := handler.NewJobsHandler(client)

	// Create CORS config
	corsConfig := middleware.CORSConfig{
		AllowedOrigins:   middleware.ParseOrigins(cfg.CORSAllowedOrigins),
		AllowedMethods:   cfg.CORSAllowedMethods,
		AllowedHeaders:   cfg.CORSAllowedHeaders,
		AllowCredentials: cfg.CORSAllowCredentials,
		MaxAge:           cfg.CORSMaxAge,
	}

	router := handler.NewRouter(injector, healthHandler, jobsHandler, renderer, corsConfig)

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router.Handler(),
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
	}

	listener, err := net.Listen("tcp", server.Addr)
	if err != nil {
		slog.Error("Failed to listen", "addr", server.Addr, "error", err)
		os.Exit(1)
	}

	// Start server in goroutine
	go func() {
		slog.Info("Starting HTTP server", "port", cfg.HTTPPort)
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	// The listener is bound, so hooks run once the server accepts connections
	if err := injector.Emit(ctx, platform.EventAfterListen); err != nil {
		slog.Error("Failed to run after listen hooks", "error", err)
		os.Exit(1)
	}

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	<-sigChan
	slog.Info("Received shutdown signal, initiating graceful shutdown")

	// Create shutdown context with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.HTTPShutdownTimeout)
	defer shutdownCancel()

	// Stop the agenda first (wait for in-flight jobs)
	if err := injector.Emit(shutdownCtx, platform.EventOnDestroy); err != nil {
		slog.Error("Failed to run destroy hooks", "error", err)
	}

	// Shutdown HTTP server
	slog.Info("Shutting down HTTP server...")
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	slog.Info("Agenda Service stopped")
}
