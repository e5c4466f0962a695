package main

import (
	"context"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/JonMunkholm/tidycsv/internal/config"
	"github.com/JonMunkholm/tidycsv/internal/core"
	_ "github.com/JonMunkholm/tidycsv/internal/core/tasks" // Register all tasks
	"github.com/JonMunkholm/tidycsv/internal/logging"
	"github.com/JonMunkholm/tidycsv/internal/metrics"
	"github.com/JonMunkholm/tidycsv/internal/publish"
	"github.com/JonMunkholm/tidycsv/internal/web"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
)

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Debug("effective configuration", "config", cfg.String())

	slog.Info("configuration loaded",
		"port", cfg.Server.Port,
		"publishing", cfg.Database.Enabled(),
		"upload_max_concurrent", cfg.Upload.MaxConcurrent,
		"rate_limit_enabled", cfg.Rate.Enabled,
	)

	service := core.NewService(cfg.ServiceConfig())

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
		service.SetObserver(m)
		limiter := service.Limiter()
		m.RegisterGaugeFunc("uploads_in_flight", "Uploads currently being parsed.", func() float64 {
			return float64(limiter.ActiveCount())
		})
	}

	ctx := context.Background()

	var publisher *publish.Publisher
	if cfg.Database.Enabled() {
		pool, err := connect(ctx, cfg.Database)
		if err != nil {
			slog.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer pool.Close()
		publisher = publish.New(pool, cfg.Database.Schema, cfg.Database.PublishTimeout)
	}

	slog.Info("tasks registered",
		"count", core.TaskCount(),
		"groups", len(core.Groups()),
	)

	server := web.NewServer(service, cfg, web.Options{Metrics: m, Publisher: publisher})

	jobCtx, cancelJobs := context.WithCancel(context.Background())
	go service.StartJanitor(jobCtx, cfg.Session.JanitorInterval)
	server.RunJanitors(jobCtx)

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")
		cancelJobs()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}

		if active := service.Limiter().ActiveCount(); active > 0 {
			slog.Info("waiting for uploads to complete", "active", active)
		}
		if err := service.Shutdown(shutdownCtx); err != nil {
			slog.Warn("uploads did not complete in time", "error", err)
		}
	}()

	if err := server.Start(); err != nil {
		slog.Info("server stopped", "error", err)
	}
}

// connect opens the publish pool and verifies it answers.
func connect(ctx context.Context, db config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(db.URL)
	if err != nil {
		return nil, err
	}
	poolConfig.MaxConns = int32(db.MaxConns)
	poolConfig.MinConns = int32(db.MinConns)
	poolConfig.MaxConnLifetime = db.MaxConnLifetime
	poolConfig.MaxConnIdleTime = db.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	if u, err := url.Parse(db.URL); err == nil {
		slog.Info("connected to database", "name", strings.TrimPrefix(u.Path, "/"), "schema", db.Schema)
	}
	return pool, nil
}
