/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the Warp Points Engine server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load .env (if present), parse flags, apply env overrides
  2. Install the slog default logger
  3. Initialize SQLite store
  4. Create API handler with metrics, seed and load the active policy
  5. Configure HTTP router, start the snapshot scheduler
  6. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -port               HTTP server port (default: 8080)
  -db                 SQLite database path (default: points.db)
                      Use ":memory:" for in-memory database
  -log-level          debug | info | warn | error (default: info)
  -snapshot-interval  Snapshot refresh interval, 0 disables (default: 1h)
  -rate-limit         Requests per second per client IP, 0 disables

ENVIRONMENT:
  Overrides the matching flag when set. A .env file in the working
  directory is loaded first and never overrides the real environment.
  PORT, DATABASE_PATH, LOG_LEVEL, SNAPSHOT_INTERVAL, RATE_LIMIT_RPS,
  RATE_LIMIT_BURST, CORS_ORIGINS (comma separated),
  LOG_FORMAT=json for JSON log lines

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the snapshot scheduler
  2. Stop accepting new connections
  3. Wait for active requests to complete (30s timeout)
  4. Close database connection

EXAMPLES:
  ./server -db="./data/points.db"
  ./server -db=":memory:" -log-level=debug
  LOG_FORMAT=json RATE_LIMIT_RPS=20 ./server

SEE ALSO:
  - api/server.go: Router configuration
  - api/scheduler.go: Snapshot scheduler
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/warp/points-engine/api"
	"github.com/warp/points-engine/metrics"
	"github.com/warp/points-engine/store/sqlite"
)

type config struct {
	Port             int
	DBPath           string
	LogLevel         string
	LogFormat        string
	SnapshotInterval time.Duration
	RateLimitRPS     float64
	RateLimitBurst   int
	AllowedOrigins   []string
}

func loadConfig() (config, error) {
	// Missing .env is normal outside development.
	_ = godotenv.Load()

	cfg := config{
		AllowedOrigins: api.DefaultRouterOptions().AllowedOrigins,
		LogFormat:      getEnv("LOG_FORMAT", "text"),
	}
	flag.IntVar(&cfg.Port, "port", 8080, "HTTP server port")
	flag.StringVar(&cfg.DBPath, "db", "points.db", "SQLite database path")
	flag.StringVar(&cfg.LogLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	flag.DurationVar(&cfg.SnapshotInterval, "snapshot-interval", time.Hour, "Snapshot refresh interval (0 disables)")
	flag.Float64Var(&cfg.RateLimitRPS, "rate-limit", 0, "Requests per second per client IP (0 disables)")
	flag.Parse()

	var err error
	if v := os.Getenv("PORT"); v != "" {
		if cfg.Port, err = strconv.Atoi(v); err != nil {
			return cfg, fmt.Errorf("PORT: %w", err)
		}
	}
	cfg.DBPath = getEnv("DATABASE_PATH", cfg.DBPath)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)
	if v := os.Getenv("SNAPSHOT_INTERVAL"); v != "" {
		if cfg.SnapshotInterval, err = time.ParseDuration(v); err != nil {
			return cfg, fmt.Errorf("SNAPSHOT_INTERVAL: %w", err)
		}
	}
	if v := os.Getenv("RATE_LIMIT_RPS"); v != "" {
		if cfg.RateLimitRPS, err = strconv.ParseFloat(v, 64); err != nil {
			return cfg, fmt.Errorf("RATE_LIMIT_RPS: %w", err)
		}
	}
	cfg.RateLimitBurst = getEnvInt("RATE_LIMIT_BURST", int(cfg.RateLimitRPS*2)+1)
	if v := splitAndTrim(os.Getenv("CORS_ORIGINS"), ","); len(v) > 0 {
		cfg.AllowedOrigins = v
	}
	return cfg, nil
}

func newLogger(level, format string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("log level %q: %w", level, err)
	}
	opts := &slog.HandlerOptions{Level: lvl}
	if strings.EqualFold(format, "json") {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts)), nil
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts)), nil
}

func main() {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(2)
	}
	logger, err := newLogger(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(2)
	}
	slog.SetDefault(logger)

	// Initialize store
	store, err := sqlite.New(cfg.DBPath)
	if err != nil {
		logger.Error("Failed to initialize database", "path", cfg.DBPath, "error", err)
		os.Exit(1)
	}
	defer store.Close()

	// Initialize handler; LoadPolicies seeds the presets on a fresh database
	handler := api.NewHandler(store, metrics.New(), logger)
	if err := handler.LoadPolicies(context.Background()); err != nil {
		logger.Error("Failed to load policies", "error", err)
		os.Exit(1)
	}

	router := api.NewRouter(handler, api.RouterOptions{
		AllowedOrigins: cfg.AllowedOrigins,
		RateLimitRPS:   cfg.RateLimitRPS,
		RateLimitBurst: cfg.RateLimitBurst,
	})

	scheduler := api.NewSnapshotScheduler(handler)
	scheduler.Interval = cfg.SnapshotInterval
	scheduler.Enabled = cfg.SnapshotInterval > 0
	scheduler.Start()

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("Server starting", "addr", fmt.Sprintf("http://localhost:%d", cfg.Port), "db", cfg.DBPath)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")
	scheduler.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
		return
	}

	logger.Info("Server stopped")
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if i, err := strconv.Atoi(v); err == nil {
		return i
	}
	return def
}

func splitAndTrim(s, sep string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, sep)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
