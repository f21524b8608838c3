package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"

	"github.com/dmitrymomot/chatrelay/core/config"
	"github.com/dmitrymomot/chatrelay/core/history"
	"github.com/dmitrymomot/chatrelay/core/httpapi"
	"github.com/dmitrymomot/chatrelay/core/logger"
	"github.com/dmitrymomot/chatrelay/core/relay"
	"github.com/dmitrymomot/chatrelay/core/server"
	"github.com/dmitrymomot/chatrelay/integration/database/pg"
	"github.com/dmitrymomot/chatrelay/integration/database/redis"
	"github.com/dmitrymomot/chatrelay/integration/queue"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var cfg Config
	config.MustLoad(&cfg) // panic on error

	var log *slog.Logger
	if cfg.Environment == "production" {
		log = logger.New(logger.WithProduction(cfg.AppName))
	} else {
		log = logger.New(logger.WithDevelopment(cfg.AppName))
	}

	// Init postgres connection, it handles auto-retry and ping inside
	db, err := pg.Connect(ctx, cfg.DB)
	if err != nil {
		log.Error("failed to connect to database", logger.Component("database"), logger.Error(err))
		os.Exit(1)
	}
	defer db.Close()

	// Run migrations automatically on app start
	if err := pg.Migrate(ctx, db, cfg.DB, log.With("component", "migration")); err != nil {
		if errors.Is(err, pg.ErrMigrationsDirNotFound) {
			log.Warn("no migrations directory found, skipping", logger.Component("database.migration"))
		} else {
			log.Error("failed to migrate database", logger.Component("database.migration"), logger.Error(err))
			os.Exit(1)
		}
	}

	rdb, err := redis.Connect(ctx, cfg.Redis)
	if err != nil {
		log.Error("failed to connect to redis", logger.Component("redis"), logger.Error(err))
		os.Exit(1)
	}
	defer func() {
		_ = rdb.Close()
	}()

	store := history.New(db)

	publisher, err := queue.NewPublisher(rdb, cfg.Queue)
	if err != nil {
		log.Error("failed to create relay publisher", logger.Component("queue"), logger.Error(err))
		os.Exit(1)
	}
	consumer, err := queue.NewConsumer(ctx, rdb, cfg.Queue)
	if err != nil {
		log.Error("failed to create relay consumer", logger.Component("queue"), logger.Error(err))
		os.Exit(1)
	}

	registry := relay.NewRegistry(log)
	ingress := relay.NewIngress(store, publisher, cfg.Relay, log)
	fanout := relay.NewFanout(consumer, registry, cfg.Relay, log)

	apiOpts := []httpapi.Option{
		httpapi.WithLogger(log),
		httpapi.WithClientConfig(cfg.Relay),
		httpapi.WithReadiness(pg.Healthcheck(db), redis.Healthcheck(rdb)),
	}
	if cfg.AllowAnyOrigin {
		apiOpts = append(apiOpts, httpapi.WithAllowAnyOrigin())
	}
	api := httpapi.New(registry, ingress, store, apiOpts...)

	s, err := server.NewFromConfig(cfg.Server, server.WithLogger(log))
	if err != nil {
		log.Error("failed to create server", logger.Component("server"), logger.Error(err))
		os.Exit(1)
	}

	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(s.Run(ctx, api.Router()))
	eg.Go(fanout.Run(ctx))
	eg.Go(func() error {
		// On shutdown, drain every client with a close code distinct from
		// error closes before the server stops accepting writes.
		<-ctx.Done()
		registry.CloseAll(websocket.CloseServiceRestart, "server shutting down")
		return nil
	})

	if err := eg.Wait(); err != nil {
		log.Error("relay terminated with error", logger.Component("main"), logger.Error(err))
		os.Exit(1)
	}

	cleanupCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := consumer.Close(cleanupCtx); err != nil {
		log.Warn("failed to clean up relay consumer group", logger.Component("queue"), logger.Error(err))
	}

	log.Info("application stopped")
}
