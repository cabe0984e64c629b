// DraftFlow - multi-party document drafting backend
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/okovalenko/draftflow/internal/api"
	"github.com/okovalenko/draftflow/internal/config"
	"github.com/okovalenko/draftflow/internal/contracts"
	"github.com/okovalenko/draftflow/internal/domain"
	"github.com/okovalenko/draftflow/internal/middleware"
	"github.com/okovalenko/draftflow/internal/schema"
	"github.com/okovalenko/draftflow/internal/session"
	"github.com/okovalenko/draftflow/internal/store"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("Starting server", "port", cfg.Port, "backend", cfg.SessionBackend, "dev", cfg.IsDevelopment())

	// Load the category and template schemas.
	schemas := schema.NewRegistry()
	if err := schemas.LoadDir(cfg.SchemasDir); err != nil {
		slog.Error("Failed to load schemas", "dir", cfg.SchemasDir, "error", err)
		os.Exit(1)
	}
	slog.Info("Schemas loaded", "categories", len(schemas.Categories()))

	ttl := domain.TTLPolicy{
		Draft:  cfg.TTL.Draft,
		Filled: cfg.TTL.Filled,
		Signed: cfg.TTL.Signed,
	}

	// The local backend always runs; the remote backend is layered on
	// top when configured, with one-way degradation on failure.
	local := store.NewMemory(store.MemoryOptions{
		TTL:          ttl,
		Schemas:      schemas,
		MirrorDir:    cfg.SessionsDir,
		DocumentsDir: cfg.DocumentsDir,
	})

	var remote store.Backend
	if cfg.SessionBackend == "redis" {
		redisOpts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			slog.Error("Invalid REDIS_URL", "error", err)
			os.Exit(1)
		}
		client := redis.NewClient(redisOpts)
		pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := client.Ping(pingCtx).Err(); err != nil {
			slog.Warn("Redis unreachable at startup, serving from local backend", "error", err)
		} else {
			slog.Info("Redis connected")
		}
		cancel()
		defer func() {
			if closeErr := client.Close(); closeErr != nil {
				slog.Error("Failed to close redis client", "error", closeErr)
			}
		}()
		remote = store.NewRedis(store.RedisOptions{
			Client:  client,
			TTL:     ttl,
			Schemas: schemas,
		})
	}
	backend := store.NewSelector(remote, local)

	// Contracts registry.
	contractsRepo, err := contracts.NewSQLite(cfg.ContractsDB)
	if err != nil {
		slog.Error("Failed to initialize contracts database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := contractsRepo.Close(); closeErr != nil {
			slog.Error("Failed to close contracts repository", "error", closeErr)
		}
	}()
	slog.Info("Contracts database connected", "path", cfg.ContractsDB)

	svc := session.NewService(schemas)
	handler := api.NewHandler(backend, svc, schemas, contractsRepo)

	// Setup router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/health"))
	r.Use(middleware.CORS([]string{"*"}))

	handler.RegisterRoutes(r)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Start the cleanup worker.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cleaner := session.NewCleaner(cfg.SessionsDir, cfg.DocumentsDir, ttl)
	cleaner.StartWorker(ctx, cfg.Cleanup.Interval, cfg.Cleanup.AbandonedGrace, nil)

	// Start server.
	go func() {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal.
	<-ctx.Done()
	stop()

	slog.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("Server stopped successfully")
}
