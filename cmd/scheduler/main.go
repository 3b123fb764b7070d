/**
 * @description
 * Entry point for the billing scheduler. A non-HTTP, long-running process
 * that executes the invoice generation, overdue sweep and reminder dispatch
 * jobs on cron schedules.
 */
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/karan-ksrk/billing-service/internal/app"
	"github.com/karan-ksrk/billing-service/internal/config"
	"github.com/karan-ksrk/billing-service/internal/store"
	billingrabbit "github.com/karan-ksrk/billing-service/pkg/rabbitmq"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	_ = godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()

	pgConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		logger.Error("unable to parse database URL", "error", err)
		os.Exit(1)
	}
	pgConfig.MaxConns = 100
	pgConfig.MinConns = 20
	pgConfig.MaxConnLifetime = 30 * time.Minute
	pgConfig.MaxConnIdleTime = 5 * time.Minute
	pgConfig.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol

	dbpool, err := pgxpool.NewWithConfig(ctx, pgConfig)
	if err != nil {
		logger.Error("unable to connect to database", "error", err)
		os.Exit(1)
	}
	defer dbpool.Close()
	logger.Info("database connection established")

	repository := store.NewRepository(dbpool)

	var publisher app.EventPublisher = &billingrabbit.EventProducerFallback{}
	if cfg.RabbitMQURL != "" {
		if producer, err := billingrabbit.NewEventProducer(cfg.RabbitMQURL); err == nil {
			publisher = producer
			defer producer.Close()
		} else {
			logger.Warn("failed to connect to RabbitMQ, using fallback publisher", "error", err)
		}
	}

	var limiter app.RateLimiter
	if cfg.RedisURL != "" && cfg.ReminderLimitPerDay > 0 {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logger.Warn("invalid REDIS_URL, reminder rate limiting disabled", "error", err)
		} else {
			client := redis.NewClient(opts)
			defer client.Close()
			limiter = app.NewRedisReminderRateLimiter(client, "billing:rate_limit")
			logger.Info("reminder rate limiting enabled", "limit_per_day", cfg.ReminderLimitPerDay)
		}
	}

	service := app.NewService(repository, publisher, nil, limiter, cfg.ReminderLimitPerDay, 24*time.Hour)
	jobs := app.NewJobs(service, logger)
	scheduler := app.NewScheduler(jobs, logger, cfg)

	scheduler.Start()
	logger.Info("scheduler started")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("shutdown signal received, stopping scheduler")
	stopCtx := scheduler.Stop()
	<-stopCtx.Done()
	logger.Info("scheduler stopped gracefully")
}
