package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/samirrijal/vastmap/internal/adapters/http"
	"github.com/samirrijal/vastmap/internal/adapters/memory"
	natsadapter "github.com/samirrijal/vastmap/internal/adapters/nats"
	"github.com/samirrijal/vastmap/internal/adapters/openmeteo"
	"github.com/samirrijal/vastmap/internal/adapters/shapes"
	"github.com/samirrijal/vastmap/internal/adapters/valkey"
	"github.com/samirrijal/vastmap/internal/adapters/vasttrafik"
	"github.com/samirrijal/vastmap/internal/core/domain"
	"github.com/samirrijal/vastmap/internal/core/ports"
	"github.com/samirrijal/vastmap/internal/core/usecases"
	"github.com/samirrijal/vastmap/internal/pkg/config"
	"github.com/samirrijal/vastmap/internal/pkg/logging"
	"github.com/samirrijal/vastmap/internal/pkg/telemetry"
)

func main() {
	cfg, err := config.Load("vastmap-api")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	// Structured logging
	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "info"
	}
	logging.Setup(logLevel, "json")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Telemetry
	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitTracer(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.TempoAddr)
		if err != nil {
			slog.Warn("telemetry init failed", "error", err)
		} else {
			defer shutdown()
		}
	}

	// Cache (optional)
	var cacheSvc ports.CacheService
	cache, err := valkey.New(cfg.Valkey.Addr)
	if err != nil {
		slog.Warn("valkey unavailable", "error", err)
	} else {
		cacheSvc = cache
		defer cache.Close()
	}

	// NATS broadcast (optional)
	var publisher ports.EventPublisher
	pub, err := natsadapter.NewPublisher(cfg.NATS.URL)
	if err != nil {
		slog.Warn("nats unavailable", "error", err)
	} else {
		publisher = pub
		defer pub.Close()
	}

	// Raw NATS connection for the WebSocket relay
	natsConn, err := natsadapter.RawConn(cfg.NATS.URL)
	if err != nil {
		slog.Warn("nats ws conn unavailable", "error", err)
	}

	// Upstream clients
	tokens := vasttrafik.NewTokenClient(cfg.Vasttrafik.TokenURL, cfg.Vasttrafik.ClientID, cfg.Vasttrafik.ClientSecret)
	positions := vasttrafik.NewClient(cfg.Vasttrafik.PositionsURL, cfg.Vasttrafik.FetchLimit, tokens)
	weatherSource := openmeteo.NewClient(cfg.Weather.URL,
		domain.GeoPoint{Lat: cfg.Weather.Latitude, Lon: cfg.Weather.Longitude})

	// Core services
	store := memory.NewSnapshotStore()
	minLat, minLon, maxLat, maxLon := cfg.Vasttrafik.Bounds()
	aggregator := usecases.NewAggregatorService(
		tokens, positions, store, publisher, cacheSvc,
		domain.Bounds{MinLat: minLat, MinLon: minLon, MaxLat: maxLat, MaxLon: maxLon},
		cfg.Vasttrafik.GridSize, cfg.Vasttrafik.Workers,
	)
	weatherSvc := usecases.NewWeatherService(weatherSource, cacheSvc, publisher,
		time.Duration(cfg.Weather.TTLSeconds)*time.Second)

	// Static route geometries; the map works without them.
	routes, err := shapes.Load(cfg.Shapes.File)
	if err != nil {
		slog.Warn("route shapes unavailable", "file", cfg.Shapes.File, "error", err)
	} else {
		slog.Info("route shapes loaded", "file", cfg.Shapes.File, "routes", len(routes))
	}

	// Refresh loop
	poller := usecases.NewPoller(aggregator, time.Duration(cfg.Vasttrafik.PollInterval)*time.Second)
	poller.Start(ctx)

	deps := &http.Dependencies{
		Snapshots: store,
		Weather:   weatherSvc,
		Routes:    routes,
		NATS:      natsConn,
		Cache:     cache,
		StartedAt: time.Now(),
	}

	// Fiber
	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    1024 * 1024, // 1 MB max request body
		AppName:      "VastMap API",
	})
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     "http://localhost:3000, http://localhost:5173, https://*.vastmap.se",
		AllowMethods:     "GET,POST,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: false,
		MaxAge:           3600,
	}))

	http.SetupRoutes(app, deps)

	// Graceful shutdown
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		slog.Info("API server starting", "addr", addr)
		if err := app.Listen(addr); err != nil {
			log.Fatalf("listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	slog.Info("shutdown signal received, draining connections...", "signal", sig.String())

	// Stop the refresh loop, then give in-flight requests up to 10s
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		slog.Error("forced shutdown", "error", err)
	}

	slog.Info("server stopped")
}
