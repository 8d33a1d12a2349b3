package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	httpadapter "github.com/couchcryptid/quakewatch-service/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/quakewatch-service/internal/adapter/kafka"
	"github.com/couchcryptid/quakewatch-service/internal/adapter/mapbox"
	"github.com/couchcryptid/quakewatch-service/internal/adapter/openmeteo"
	redisadapter "github.com/couchcryptid/quakewatch-service/internal/adapter/redis"
	"github.com/couchcryptid/quakewatch-service/internal/adapter/sqlite"
	"github.com/couchcryptid/quakewatch-service/internal/adapter/usgs"
	"github.com/couchcryptid/quakewatch-service/internal/cache"
	"github.com/couchcryptid/quakewatch-service/internal/config"
	"github.com/couchcryptid/quakewatch-service/internal/domain"
	"github.com/couchcryptid/quakewatch-service/internal/fetch"
	"github.com/couchcryptid/quakewatch-service/internal/location"
	"github.com/couchcryptid/quakewatch-service/internal/observability"
	"github.com/couchcryptid/quakewatch-service/internal/pipeline"
	"github.com/jonboulle/clockwork"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()
	clock := clockwork.NewRealClock()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Response cache: Redis when REDIS_ADDR is set, in-process otherwise.
	var responses cache.Cache = cache.NewMemory(cfg.CacheTTL, clock, metrics)
	if cfg.RedisAddr != "" {
		rdb, err := redisadapter.NewClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			logger.Error("failed to connect to redis", "addr", cfg.RedisAddr, "error", err)
			os.Exit(1)
		}
		defer rdb.Close()
		responses = redisadapter.NewCache(rdb, cfg.CacheTTL, clock, logger, metrics)
		logger.Info("redis response cache enabled", "addr", cfg.RedisAddr)
	}

	policy := fetch.DefaultPolicy()
	policy.MaxRetries = cfg.FetchMaxRetries
	policy.Timeout = cfg.FetchTimeout
	fetcher := fetch.NewClient(policy, clock, logger, metrics)

	quakes := usgs.NewClient(cfg.USGSBaseURL, fetcher, responses, logger)
	weather := openmeteo.NewClient(cfg.WeatherBaseURL, fetcher, responses, logger)
	data := pipeline.NewDataAccess(quakes, weather, logger)

	prefs, err := sqlite.Open(cfg.DBPath, clock)
	if err != nil {
		logger.Error("failed to open preference store", "path", cfg.DBPath, "error", err)
		os.Exit(1)
	}

	var locator domain.Locator
	if static := location.NewStaticLocator(cfg); static != nil {
		locator = static
		logger.Info("device location configured", "lat", cfg.HomeLat, "lon", cfg.HomeLon)
	}
	resolver := location.NewResolver(locator, prefs, logger)
	if cfg.MapboxEnabled {
		geoPolicy := policy
		geoPolicy.Timeout = cfg.MapboxTimeout
		geoFetcher := fetch.NewClient(geoPolicy, clock, logger, metrics)
		resolver.WithGeocoder(mapbox.NewCachedGeocoder(
			mapbox.NewClient(cfg.MapboxToken, cfg.MapboxBaseURL, geoFetcher, logger),
			cfg.MapboxCacheSize))
		logger.Info("mapbox geocoding enabled", "cache_size", cfg.MapboxCacheSize, "timeout", cfg.MapboxTimeout)
	} else {
		logger.Info("mapbox geocoding disabled")
	}

	opts := pipeline.Options{
		Data:      data,
		Cache:     responses,
		Locations: resolver,
		Prefs:     prefs,
		AlertRule: domain.AlertRule{
			MinMagnitude: cfg.AlertMinMagnitude,
			RadiusKm:     cfg.AlertRadiusKm,
		},
		Clock:            clock,
		Logger:           logger,
		Metrics:          metrics,
		RefreshInterval:  cfg.RefreshInterval,
		StaleAfter:       cfg.StaleAfter,
		PageSize:         cfg.PageSize,
		DefaultTimeframe: domain.ParseTimeframe(cfg.DefaultTimeframe),
	}

	var alerts *kafkaadapter.AlertWriter
	if cfg.AlertsEnabled() {
		alerts = kafkaadapter.NewAlertWriter(cfg, logger)
		opts.Alerts = alerts
		logger.Info("kafka alerts enabled", "topic", cfg.KafkaAlertTopic, "min_magnitude", cfg.AlertMinMagnitude)
	} else {
		logger.Info("kafka alerts disabled")
	}

	p := pipeline.New(opts)
	srv := httpadapter.NewServer(cfg.HTTPAddr, p, logger)

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Start refresh loop.
	go func() {
		if err := p.Run(ctx); err != nil {
			logger.Error("pipeline error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if err := p.Close(shutdownCtx); err != nil {
		logger.Error("pipeline close error", "error", err)
	}
	if alerts != nil {
		if err := alerts.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}
	if err := prefs.Close(); err != nil {
		logger.Error("preference store close error", "error", err)
	}

	logger.Info("shutdown complete")
}
