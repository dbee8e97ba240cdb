package main

import (
	"context"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/trockboppro/v4panel/internal/config"
	"github.com/trockboppro/v4panel/internal/middleware"
	"github.com/trockboppro/v4panel/internal/panel/api"
	"github.com/trockboppro/v4panel/internal/panel/node"
	"github.com/trockboppro/v4panel/internal/panel/reconcile"
	"github.com/trockboppro/v4panel/internal/panel/service"
	"github.com/trockboppro/v4panel/internal/panel/store"
)

func main() {
	// load config first
	log.Info().Msg("Starting v4panel api server")
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	// configure log level from config
	switch strings.ToLower(cfg.Logging.Level) {
	case "trace":
		zerolog.SetGlobalLevel(zerolog.TraceLevel)
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "warn", "warning":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var kv store.Store
	redisStore := store.NewRedisStore(&cfg.Redis)
	if err := redisStore.Ping(ctx); err != nil {
		log.Error().Err(err).Str("addr", cfg.Redis.Addr).Msg("redis unreachable; falling back to in-memory store, records will not survive restart")
		kv = store.NewMemStore()
	} else {
		defer redisStore.Close()
		kv = redisStore
	}

	nodeClient := node.NewClient(
		parseDuration(cfg.Node.CallTimeout, 5*time.Second),
		parseDuration(cfg.Node.MutateTimeout, 30*time.Second),
	)
	svc := service.New(kv, nodeClient)

	// retry remote deletes that failed while local records were cleaned up
	consumer := reconcile.NewConsumer(kv, nodeClient,
		parseDuration(cfg.Reconcile.Interval, 30*time.Second),
		cfg.Reconcile.MaxAttempts,
	)
	go consumer.Start(ctx)

	metrics := middleware.NewMetrics()
	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(metrics.Handler())
	metrics.Expose(router)

	api.NewApi(svc, router, middleware.Authentication(svc, cfg.Auth.AdminToken))

	log.Info().Msgf("Starting server on %s", cfg.Server.BindAddr)
	if err := router.Run(cfg.Server.BindAddr); err != nil {
		log.Fatal().Err(err).Msg("start v4panel api server failed.")
	}
	log.Info().Msg("v4panel api server exit...")
}

func parseDuration(s string, d time.Duration) time.Duration {
	if s == "" {
		return d
	}
	if v, err := time.ParseDuration(s); err == nil {
		return v
	}
	return d
}
