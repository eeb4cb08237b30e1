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

	"github.com/enviro-meter/firewatch/internal/adapters/classifier"
	"github.com/enviro-meter/firewatch/internal/adapters/http"
	"github.com/enviro-meter/firewatch/internal/adapters/imagestore"
	natsadapter "github.com/enviro-meter/firewatch/internal/adapters/nats"
	"github.com/enviro-meter/firewatch/internal/adapters/sentinel"
	"github.com/enviro-meter/firewatch/internal/adapters/valkey"
	"github.com/enviro-meter/firewatch/internal/core/ports"
	"github.com/enviro-meter/firewatch/internal/core/usecases"
	"github.com/enviro-meter/firewatch/internal/pkg/config"
	"github.com/enviro-meter/firewatch/internal/pkg/httpclient"
	"github.com/enviro-meter/firewatch/internal/pkg/logging"
	"github.com/enviro-meter/firewatch/internal/pkg/telemetry"
)

func main() {
	cfg, err := config.Load("firewatch-api")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	// Structured logging
	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "info"
	}
	logging.Setup(logLevel, os.Getenv("LOG_FORMAT"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Telemetry
	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitTracer(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.OTLPAddr)
		if err != nil {
			slog.Warn("telemetry init failed", "error", err)
		} else {
			defer shutdown()
		}
	}

	// Image store
	store := imagestore.New(cfg.Store.Dir, cfg.Store.PublicPath)

	// Imagery provider
	if cfg.Sentinel.ClientID == "" || cfg.Sentinel.ClientSecret == "" {
		slog.Warn("sentinel credentials not set, acquisition will fail until " +
			"FIREWATCH_SENTINEL_CLIENT_ID and FIREWATCH_SENTINEL_CLIENT_SECRET are provided")
	}
	auth := sentinel.NewAuthenticator(
		cfg.Sentinel.TokenURL,
		cfg.Sentinel.ClientID,
		cfg.Sentinel.ClientSecret,
		httpclient.New(cfg.SentinelTimeout()),
	)
	imagery := sentinel.NewClient(cfg.Sentinel.ProcessURL, auth, cfg.SentinelTimeout(), cfg.Sentinel.MaxRetries)

	// Wildfire classifier
	clf := classifier.New(cfg.Classifier.URL, cfg.ClassifierTimeout(), cfg.Classifier.MaxRetries)

	// Optional verdict cache. The interface stays nil unless the backend is
	// connected, so the services skip it cleanly.
	var verdictCache ports.CacheService
	var cache *valkey.Cache
	if cfg.Valkey.Enabled {
		c, err := valkey.New(cfg.Valkey.Addr)
		if err != nil {
			slog.Warn("valkey unavailable", "error", err)
		} else {
			defer c.Close()
			cache = c
			verdictCache = c
		}
	}

	deps := &http.Dependencies{
		Images: store,
		Cache:  cache,
	}

	// Optional detection event publisher + raw connection for the WS relay
	var events ports.EventPublisher
	if cfg.NATS.Enabled {
		pub, err := natsadapter.NewPublisher(cfg.NATS.URL)
		if err != nil {
			slog.Warn("nats unavailable", "error", err)
		} else {
			defer pub.Close()
			events = pub
			if nc, err := natsadapter.RawConn(cfg.NATS.URL); err != nil {
				slog.Warn("nats ws conn unavailable", "error", err)
			} else {
				deps.NATS = nc
			}
		}
	}

	// Use cases
	deps.Acquisitions = usecases.NewAcquisitionService(imagery, store)
	deps.Detections = usecases.NewDetectionService(clf, store, verdictCache, events, cfg.Classifier.VerdictTTL)

	// Fiber
	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    1024 * 1024, // 1 MB max request body
		AppName:      "Firewatch API",
	})
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     "http://localhost:3000, http://localhost:5173, https://*.enviro-meter.io",
		AllowMethods:     "GET,POST,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: false,
		MaxAge:           3600,
	}))

	http.SetupRoutes(app, deps)

	// Serve the cached captures themselves
	app.Static(cfg.Store.PublicPath, cfg.Store.Dir, fiber.Static{
		MaxAge: 86400,
	})

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

	// Give in-flight requests up to 10s to complete
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		slog.Error("forced shutdown", "error", err)
	}

	slog.Info("server stopped")
}
