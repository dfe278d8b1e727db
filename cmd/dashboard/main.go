package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"github.com/paulmach/orb/geojson"

	"github.com/couchcryptid/arbovirus-dashboard/internal/adapter/httpadapter"
	"github.com/couchcryptid/arbovirus-dashboard/internal/adapter/ibge"
	"github.com/couchcryptid/arbovirus-dashboard/internal/adapter/infodengue"
	kafkaadapter "github.com/couchcryptid/arbovirus-dashboard/internal/adapter/kafka"
	"github.com/couchcryptid/arbovirus-dashboard/internal/cache"
	"github.com/couchcryptid/arbovirus-dashboard/internal/config"
	"github.com/couchcryptid/arbovirus-dashboard/internal/domain"
	"github.com/couchcryptid/arbovirus-dashboard/internal/observability"
	"github.com/couchcryptid/arbovirus-dashboard/internal/pipeline"
)

func main() {
	// A missing .env is fine; the environment wins either way.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := sharedobs.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	warmDisease, err := domain.ParseDisease(cfg.WarmupDisease)
	if err != nil {
		logger.Error("invalid WARMUP_DISEASE", "error", err)
		os.Exit(1)
	}

	clock := clockwork.NewRealClock()

	client := infodengue.NewClient(infodengue.Options{
		BulkURL:       cfg.MosqlimateURL,
		SingleURL:     cfg.InfoDengueURL,
		BulkTimeout:   cfg.BulkTimeout,
		SingleTimeout: cfg.SingleTimeout,
		PerPage:       cfg.PerPage,
		PageCap:       cfg.PageCap,
		PageWorkers:   cfg.PageWorkers,
	}, metrics, logger)
	epi := infodengue.NewCachedSource(client,
		cache.New[[]domain.RawRecord](clock, cfg.CacheMaxEntries), cfg.CacheTTL, metrics)

	mesh := ibge.NewCachedMesh(ibge.NewClient(cfg.IBGEURL, cfg.GeoTimeout, metrics, logger),
		cache.New[*geojson.FeatureCollection](clock, cfg.CacheMaxEntries), cfg.GeoCacheTTL, metrics)

	opts := pipeline.Options{StateCode: cfg.StateCode, Clock: clock}

	// Snapshot publishing is feature-flagged via KAFKA_ENABLED.
	var writer *kafkaadapter.Writer
	if cfg.KafkaEnabled {
		writer = kafkaadapter.NewWriter(cfg, logger)
		opts.Publisher = writer
		logger.Info("snapshot publishing enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaSnapshotTopic)
	} else {
		logger.Info("snapshot publishing disabled")
	}

	p := pipeline.New(epi, mesh, logger, metrics, opts)
	srv := httpadapter.NewServer(cfg.HTTPAddr, cfg.HTTPWriteTimeout(), p, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Load the default dataset once so /readyz flips and the cache is hot.
	go func() {
		if err := p.Warm(ctx, warmDisease); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("warm-up error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if writer != nil {
		if err := writer.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}
