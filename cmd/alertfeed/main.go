package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/saviour-labs/alertfeed/internal/api"
	"github.com/saviour-labs/alertfeed/internal/changefeed"
	"github.com/saviour-labs/alertfeed/internal/config"
	"github.com/saviour-labs/alertfeed/internal/ingest"
	"github.com/saviour-labs/alertfeed/internal/location"
	"github.com/saviour-labs/alertfeed/internal/logging"
	"github.com/saviour-labs/alertfeed/internal/models"
	"github.com/saviour-labs/alertfeed/internal/notify"
	"github.com/saviour-labs/alertfeed/internal/observability"
	"github.com/saviour-labs/alertfeed/internal/session"
	"github.com/saviour-labs/alertfeed/internal/source"
	"github.com/saviour-labs/alertfeed/internal/store"
	"github.com/saviour-labs/alertfeed/internal/trigger"
	"github.com/saviour-labs/alertfeed/internal/worker"
)

// countingPublisher forwards feed snapshots to the change feed and counts
// them for observability.
type countingPublisher struct {
	feed    *changefeed.Feed
	metrics *observability.Metrics
}

func (p *countingPublisher) Publish(subscriberID string, snapshot []models.Alert) {
	p.metrics.SnapshotsSent.Inc()
	p.feed.Publish(subscriberID, snapshot)
}

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logging.Fatalf("Fatal while loading config: %v", err)
	}
	logging.Setup(cfg.Logging.Level)

	slog.Info("Server starting", "host", cfg.Server.Host, "port", cfg.Server.Port)

	db, err := store.NewSQLiteDB(cfg.DB.Path, cfg.Feed.MaxSize)
	if err != nil {
		logging.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	metrics := observability.NewMetrics()

	feed := changefeed.New()
	db.SetPublisher(&countingPublisher{feed: feed, metrics: metrics})

	var gateway notify.Gateway = notify.Log{}
	if cfg.Notify.WebhookURL != "" {
		gateway = notify.NewWebhook(cfg.Notify.WebhookURL, cfg.Notify.Timeout)
	}

	clock := clockwork.NewRealClock()
	coordinator := ingest.NewCoordinator(db, gateway, metrics, clock, logging.Component("ingest"))

	pool := worker.NewPool(cfg.Worker.Count, cfg.Worker.BufferSize, func(ctx context.Context, batch worker.Batch) error {
		_, err := coordinator.Ingest(ctx, batch.SubscriberID, batch.Raws)
		return err
	})
	pool.Start(ctx)

	sess := session.NewStatic(cfg.Session.SubscriberID)
	loc := location.NewManual(models.Coordinates{
		Latitude:  cfg.Location.DefaultLatitude,
		Longitude: cfg.Location.DefaultLongitude,
	})
	weather := source.NewOpenWeather(cfg.Source.URL, cfg.Source.APIKey, cfg.Source.Timeout)

	scheduler := trigger.NewScheduler(cfg.Triggers, cfg.Source.Timeout, weather, sess, loc, pool,
		metrics, clock, logging.Component("trigger"))
	scheduler.Start(ctx)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: false, // Set to false when using wildcard origins
	}))
	router.Use(api.RateLimitMiddleware(cfg.Server.RateLimitRPS, logging.Component("api")))

	handler := api.NewHandler(db, feed, scheduler, coordinator, loc)
	handler.RegisterRoutes(router)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler: router,
	}

	go func() {
		slog.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down...")

	// The HTTP surface goes first: close the change feed so SSE streams end,
	// then drain in-flight requests while the pipeline is still alive to
	// serve them. Only then stop the triggers and workers.
	feed.Close()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	cancel()
	scheduler.Stop()
	pool.Stop()

	slog.Info("shutdown complete")
}
