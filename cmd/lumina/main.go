// Lumina session orchestrator — serves the WebSocket conversation
// endpoints and drives the agent pipelines for live learning sessions.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/lumina-learn/lumina/pkg/api"
	"github.com/lumina-learn/lumina/pkg/auth"
	"github.com/lumina-learn/lumina/pkg/config"
	"github.com/lumina-learn/lumina/pkg/database"
	"github.com/lumina-learn/lumina/pkg/pipeline"
	"github.com/lumina-learn/lumina/pkg/registry"
	"github.com/lumina-learn/lumina/pkg/services"
	"github.com/lumina-learn/lumina/pkg/ws"
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Warn("Could not load .env file, continuing with existing environment", "error", err)
	}

	ctx := context.Background()

	// 1. Configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	slog.Info("Starting Lumina", "http_port", cfg.Server.Port)

	// 2. Database
	dbConfig, err := database.LoadConfigFromEnv()
	if err != nil {
		slog.Error("Failed to load database config", "error", err)
		os.Exit(1)
	}
	dbClient, err := database.NewClient(ctx, dbConfig)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			slog.Error("Error closing database client", "error", err)
		}
	}()
	slog.Info("Connected to PostgreSQL database")

	// 3. Domain services
	sessionService := services.NewSessionService(dbClient)
	messageService := services.NewMessageService(dbClient)
	missionService := services.NewMissionService(dbClient)
	slog.Info("Services initialized")

	// 4. Session registry: Redis-backed when configured, in-process
	// otherwise. Single-replica deployments need no Redis.
	var reg registry.Registry
	if cfg.Redis.Addr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			slog.Error("Failed to connect to Redis", "addr", cfg.Redis.Addr, "error", err)
			os.Exit(1)
		}
		reg = registry.NewRedisRegistry(redisClient, cfg.Redis.LeaseTTL)
		slog.Info("Using Redis session registry", "addr", cfg.Redis.Addr)
	} else {
		reg = registry.NewLocalRegistry()
		slog.Info("Using in-process session registry")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := reg.Shutdown(shutdownCtx); err != nil {
			slog.Error("Error shutting down session registry", "error", err)
		}
	}()

	// 5. Content generator client
	generatorURL := getEnv("GENERATOR_URL", "http://localhost:8090")
	generator := pipeline.NewHTTPGenerator(generatorURL, 60*time.Second)
	slog.Info("Generator client initialized", "url", generatorURL)

	// 6. Auth and connection manager
	resolver := auth.NewResolver(cfg.Auth)
	connManager := ws.NewConnectionManager(
		sessionService, missionService, messageService,
		reg, generator, resolver,
		cfg.Server.WriteTimeout, cfg.Server.TurnTimeout,
	)

	// 7. HTTP server
	server := api.NewServer(dbClient, sessionService, connManager, resolver)
	httpServer := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: server.Router(),
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
			errCh <- err
		}
	}()

	// 8. Wait for shutdown signal or server error
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	select {
	case sig := <-sigCh:
		slog.Info("Shutdown signal received", "signal", sig)
	case err := <-errCh:
		slog.Error("Server error triggered shutdown", "error", err)
	}

	// 9. Graceful shutdown: stop accepting connections, then let live
	// workers drain within the timeout. Registry teardown runs in the
	// deferred cleanup above.
	shutdownCtx, cancel := context.WithTimeout(ctx, cfg.Server.GracefulShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	slog.Info("Shutdown complete")
}
