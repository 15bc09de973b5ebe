package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	httpadapter "github.com/couchcryptid/radar-feed/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/radar-feed/internal/adapter/kafka"
	"github.com/couchcryptid/radar-feed/internal/adapter/radarapi"
	"github.com/couchcryptid/radar-feed/internal/cache"
	"github.com/couchcryptid/radar-feed/internal/config"
	"github.com/couchcryptid/radar-feed/internal/domain"
	"github.com/couchcryptid/radar-feed/internal/feed"
	"github.com/couchcryptid/radar-feed/internal/geo"
	"github.com/couchcryptid/radar-feed/internal/notifier"
	"github.com/couchcryptid/radar-feed/internal/observability"
	"github.com/couchcryptid/radar-feed/internal/overlay"
	"github.com/couchcryptid/radar-feed/internal/scan"
	"github.com/couchcryptid/radar-feed/internal/socket"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		logger.Error("failed to open cache store", "backend", cfg.CacheBackend, "error", err)
		os.Exit(1)
	}
	logger.Info("cache store ready", "backend", cfg.CacheBackend, "retention", cfg.CacheRetention)

	api := radarapi.NewClient(cfg.RadarAPIURL, cfg.HTTPTimeout, logger)
	evictor := cache.NewEvictor(store, cfg.CacheRetention, nil, logger)
	scans := scan.New(api, store, evictor, logger, metrics)
	overlays := overlay.NewLoader(api, store, nil, logger, metrics)

	worker := geo.NewWorker(geo.ModelByName(cfg.GeodesicModel), cfg.TransformQueue, logger, metrics)
	go worker.Run(ctx)

	// Scan-event publishing is feature-flagged via KAFKA_BROKERS.
	var (
		publisher feed.Publisher
		writer    *kafkaadapter.Writer
	)
	if cfg.KafkaEnabled {
		writer = kafkaadapter.NewWriter(cfg, logger)
		publisher = writer
		logger.Info("scan event publishing enabled", "topic", cfg.KafkaScanTopic, "brokers", cfg.KafkaBrokers)
	} else {
		logger.Info("scan event publishing disabled")
	}

	site := feed.Site{Station: cfg.Station, Sweep: cfg.Sweep, Lon: cfg.SiteLon, Lat: cfg.SiteLat}
	f := feed.New(site, scans, worker, publisher, logger)

	srv := httpadapter.NewServer(cfg.HTTPAddr, scans, func() any { return f.Status() }, logger)
	srv.Handle("GET /overlays/{name}", httpadapter.JSONHandler(func(r *http.Request) (any, error) {
		fc, err := overlays.Get(r.Context(), r.PathValue("name"))
		if errors.Is(err, overlay.ErrUnknownLayer) {
			return nil, fmt.Errorf("%w: %w", httpadapter.ErrNotFound, err)
		}
		return fc, err
	}))
	srv.Handle("POST /overlays/refresh", httpadapter.JSONHandler(func(r *http.Request) (any, error) {
		n, err := overlays.Refresh(r.Context())
		if err != nil {
			return nil, err
		}
		return map[string]int{"purged": n}, nil
	}))
	srv.Handle("GET /rings", httpadapter.JSONHandler(func(r *http.Request) (any, error) {
		return f.RangeRings(r.Context(), feed.DefaultRingsKm)
	}))

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	go func() {
		if err := overlays.Preload(ctx); err != nil && ctx.Err() == nil {
			logger.Warn("overlay preload incomplete", "error", err)
		}
	}()

	// Seed the feed so the notifier only reacts to scans newer than this one.
	if s, err := scans.GetScan(ctx, cfg.Station, cfg.Sweep); err != nil {
		logger.Warn("initial scan fetch failed", "station", cfg.Station, "error", err)
	} else {
		f.HandleScan(ctx, s)
	}

	n := notifier.New(api, scans, nil, cfg.PollInterval, logger, metrics)
	sub := n.Start(ctx, cfg.Station, cfg.Sweep, f.LastScanMillis(), func(s domain.RadarScan) {
		f.HandleScan(ctx, s)
	})

	wsURL, err := socket.WebsocketURL(cfg.RadarAPIURL, cfg.WebsocketPath)
	if err != nil {
		logger.Error("invalid websocket url", "error", err)
		os.Exit(1)
	}
	ws := socket.New(wsURL, func(msg []byte) { f.HandleMessage(ctx, msg) },
		socket.WithBackoff(cfg.WSBaseDelay, cfg.WSMaxDelay),
		socket.WithHeartbeatDelay(cfg.WSHeartbeatDelay),
		socket.WithLogger(logger),
		socket.WithMetrics(metrics),
	)
	f.SetSocketState(func() string { return ws.State().String() })
	if err := ws.Connect(ctx); err != nil {
		logger.Error("websocket connect error", "error", err)
	}

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	sub.Stop()
	ws.Close()
	if err := waitAll(shutdownCtx, f.Close, scans.Wait, func() { <-worker.Done() }); err != nil {
		logger.Error("background work did not finish", "error", err)
	}
	if writer != nil {
		if err := writer.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}
	closeStore()

	logger.Info("shutdown complete")
}

// openStore builds the configured cache backend and its cleanup func.
func openStore(ctx context.Context, cfg *config.Config) (cache.Store, func(), error) {
	switch cfg.CacheBackend {
	case config.CacheBackendPostgres:
		pg, err := cache.NewPostgresStore(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		return pg, pg.Close, nil
	default:
		return cache.NewMemoryStore(cfg.CacheMaxNamespaces), func() {}, nil
	}
}

// waitAll runs the wait funcs in order on a separate goroutine and returns
// when they have all finished or ctx expires.
func waitAll(ctx context.Context, waits ...func()) error {
	done := make(chan struct{})
	go func() {
		defer close(done)
		for _, wait := range waits {
			wait()
		}
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
