// Command tokentracker runs the discovery/tracking/momentum-scoring
// pipeline: config → logger → store → connection pool → provider →
// registry → rate limiters → scorer → SSE manager → alert sink →
// orchestrator → HTTP API, with graceful shutdown on
// SIGINT/SIGTERM. Grounded on the teacher's root main.go wiring order.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dexter-labs/tokentracker/internal/alert"
	"github.com/dexter-labs/tokentracker/internal/api"
	"github.com/dexter-labs/tokentracker/internal/config"
	"github.com/dexter-labs/tokentracker/internal/lock"
	"github.com/dexter-labs/tokentracker/internal/logger"
	"github.com/dexter-labs/tokentracker/internal/provider"
	"github.com/dexter-labs/tokentracker/internal/ratelimiter"
	"github.com/dexter-labs/tokentracker/internal/scorer"
	"github.com/dexter-labs/tokentracker/internal/sse"
	"github.com/dexter-labs/tokentracker/internal/store"
	"github.com/dexter-labs/tokentracker/internal/tracker"
)

func main() {
	cfg := config.Load()
	log := logger.New(cfg)

	log.Info().Str("env", cfg.Env).Bool("remote_store", cfg.UsesRemoteStore()).Msg("token tracker starting")

	st, err := store.New(cfg.DatabaseURL, cfg.SQLitePath)
	if err != nil {
		log.Fatal().Err(err).Msg("store init failed")
	}
	defer st.Close()

	if tiers, err := st.LoadAlertTiers(context.Background()); err != nil {
		log.Warn().Err(err).Msg("failed to load persisted alert tiers, using defaults")
	} else {
		log.Info().Float64("tier1", tiers.Tier1).Float64("tier2", tiers.Tier2).Float64("tier3", tiers.Tier3).Msg("alert tiers loaded")
	}

	// REDIS_URL is optional: when set, a Redis debounce lock is built and
	// pinged at startup. An unparsable URL is fatal; an unreachable server
	// is logged as a warning and startup continues. The orchestrator's
	// persist path uses its own process-local lock.KeyedMutex either way
	// (see DESIGN.md).
	if cfg.RedisURL != "" {
		rdb, err := lock.NewRedisDebounceLock(cfg.RedisURL)
		if err != nil {
			log.Fatal().Err(err).Msg("invalid REDIS_URL")
		}
		pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err = rdb.Ping(pingCtx)
		cancel()
		if err != nil {
			log.Warn().Err(err).Msg("redis unreachable, continuing with process-local debounce lock")
		} else {
			log.Info().Msg("redis debounce lock reachable")
		}
		defer rdb.Close()
	}

	pool := provider.NewConnectionPool(provider.DefaultPoolConfig())
	defer pool.Close()

	dex := provider.NewDexScreenerProvider(provider.Config{
		ListingsBaseURL: cfg.ListingsBaseURL,
		MetricsBaseURL:  cfg.MetricsBaseURL,
		SSEBaseURL:      cfg.SSEBaseURL,
		MetricsFanout:   10,
	}, pool, log)

	registry := provider.NewRegistry()
	registry.Register(dex)
	log.Info().Strs("providers", registry.List()).Msg("providers registered")

	limits := ratelimiter.NewSet(cfg.ListingsRPS, cfg.ListingsBurst, cfg.MetricsRPS, cfg.MetricsBurst)

	scoreEngine := scorer.NewEngine()

	sseManager := sse.NewManager(dex, cfg.SSEMaxConnections, cfg.SSEStagger, log)

	alertSink := alert.NewSink(alert.NewConfig(cfg.AlertAPIKey, cfg.AlertWebhookURL), log)

	trk := tracker.New(st, dex, limits, sseManager, scoreEngine, alertSink, log)

	if err := trk.Hydrate(context.Background()); err != nil {
		log.Warn().Err(err).Msg("token hydration failed, starting with an empty token map")
	}

	runCtx, stopTracker := context.WithCancel(context.Background())
	trackerDone := make(chan struct{})
	go func() {
		defer close(trackerDone)
		trk.Run(runCtx)
	}()

	r := api.NewRouter(trk, log, api.Config{
		RateLimitRPS:   cfg.APIRateLimitRPS,
		RateLimitBurst: cfg.APIRateLimitBurst,
		MaxBodyBytes:   cfg.MaxBodyBytes,
	})

	srv := &http.Server{
		Addr:         cfg.Addr,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		log.Info().Str("addr", cfg.Addr).Msg("token tracker listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-done
	log.Info().Msg("shutdown signal received")

	stopTracker()
	<-trackerDone

	ctx, cancel := context.WithTimeout(context.Background(), cfg.GracefulTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	} else {
		log.Info().Msg("token tracker stopped gracefully")
	}
}
