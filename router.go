package main

import (
	"context"
	"fmt"

	"github.com/arunvm123/ticketinventory/cache"
	"github.com/arunvm123/ticketinventory/cache/redis"
	"github.com/arunvm123/ticketinventory/config"
	"github.com/arunvm123/ticketinventory/engine"
	"github.com/arunvm123/ticketinventory/invalidation"
	messaging "github.com/arunvm123/ticketinventory/messaging/kafka"
	"github.com/arunvm123/ticketinventory/metrics"
	"github.com/arunvm123/ticketinventory/repository"
	"github.com/arunvm123/ticketinventory/repository/memory"
	"github.com/arunvm123/ticketinventory/repository/postgres"
	"github.com/arunvm123/ticketinventory/service"
	"github.com/gin-gonic/gin"
	zlog "github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"
)

// application owns everything that needs closing on shutdown.
type application struct {
	repo        repository.Repository
	cache       *redis.RedisCache
	coordinator *invalidation.Coordinator
	kafkaWriter *kafka.Writer
}

func newStore(cfg *config.Database) (repository.Repository, error) {
	switch cfg.Driver {
	case "memory":
		zlog.Warn().Msg("using in-memory inventory store, data is lost on restart")
		return memory.NewRepository(), nil
	case "postgres", "":
		return postgres.NewRepository(cfg)
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}
}

// newApplication wires store, cache, coordinator and engine from cfg.
func newApplication(cfg *config.Config) (*application, *Handler, error) {
	repo, err := newStore(&cfg.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize repository: %w", err)
	}

	// The cache is optional for correctness: start without it and let
	// go-redis reconnect once it comes up.
	redisCache, err := redis.NewRedisCache(cfg.Redis.GetRedisURL(), cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.KeyPrefix)
	if err != nil {
		zlog.Warn().Err(err).Msg("redis unavailable at startup, serving from the store")
		redisCache = redis.NewUnchecked(cfg.Redis.GetRedisURL(), cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.KeyPrefix)
	}

	app := &application{repo: repo, cache: redisCache}

	var sink invalidation.RetrySink
	if cfg.Kafka.Enabled {
		app.kafkaWriter = messaging.NewWriter(cfg.Kafka.Brokers, cfg.Kafka.PurgeTopic)
		sink = messaging.NewPurgePublisher(app.kafkaWriter)
	}

	app.coordinator = invalidation.NewCoordinator(redisCache, invalidation.Options{
		Policy:        invalidation.Policy{PurgeCatalogOnEventWrite: cfg.Cache.PurgeCatalogOnEventWrite},
		Timeout:       cfg.Cache.PurgeTimeout,
		Attempts:      cfg.Cache.PurgeAttempts,
		Backoff:       cfg.Cache.PurgeBackoff,
		ScanBatchSize: cfg.Cache.ScanBatchSize,
		QueueSize:     cfg.Cache.QueueSize,
		Workers:       cfg.Cache.DispatchWorkers,
		Async:         cfg.Cache.AsyncPurge,
		Sink:          sink,
	})

	layer := cache.NewLayer(redisCache, cache.TTLPolicy{
		Event:   cfg.Cache.EventTTL,
		List:    cfg.Cache.ListTTL,
		Catalog: cfg.Cache.CatalogTTL,
	})

	eng := engine.New(repo, app.coordinator,
		engine.WithRetry(cfg.Engine.MaxAttempts, cfg.Engine.BaseBackoff),
		engine.WithTxTimeout(cfg.Engine.TxTimeout),
		engine.WithMaxTicketsPerBooking(cfg.Engine.MaxTicketsPerBooking),
	)
	catalog := service.NewCatalogService(repo, layer, app.coordinator)

	return app, NewHandler(eng, catalog, repo, redisCache), nil
}

// Close drains pending purges before closing the cache they target.
func (a *application) Close(ctx context.Context) {
	if err := a.coordinator.Close(ctx); err != nil {
		zlog.Warn().Err(err).Msg("purge queue not drained before shutdown")
	}
	if a.kafkaWriter != nil {
		if err := a.kafkaWriter.Close(); err != nil {
			zlog.Warn().Err(err).Msg("failed to close kafka writer")
		}
	}
	if err := a.cache.Close(); err != nil {
		zlog.Warn().Err(err).Msg("failed to close redis client")
	}
}

// NewRouter registers every route on a fresh gin engine.
func NewRouter(h *Handler, jwtService *JWTService) *gin.Engine {
	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(CORSMiddleware())
	r.Use(LoggingMiddleware())

	// Health check and metrics (no auth required)
	r.GET("/health", h.HealthCheck)
	r.GET("/metrics", gin.WrapH(metrics.MetricsHandler()))

	api := r.Group("/api")

	// Public read path
	api.GET("/events", h.ListEvents)
	api.GET("/events/:id", h.GetEvent)
	api.GET("/categories", h.ListCategories)
	api.GET("/categories/:id", h.GetCategory)
	api.GET("/tags", h.ListTags)
	api.GET("/tags/:id", h.GetTag)
	api.GET("/tags/:id/events", h.ListEventsByTag)

	// Protected endpoints (require authentication)
	protected := api.Group("")
	protected.Use(AuthMiddleware(jwtService))

	protected.POST("/bookings", h.ReserveTickets)
	protected.GET("/bookings", h.ListUserBookings)
	protected.GET("/bookings/:id", h.GetBooking)
	protected.PATCH("/bookings/:id", h.UpdateBookingTicketCount)
	protected.DELETE("/bookings/:id", h.CancelBooking)

	admin := protected.Group("/admin")
	admin.Use(AdminOnly())

	admin.POST("/events", h.CreateEvent)
	admin.PUT("/events/:id", h.UpdateEvent)
	admin.DELETE("/events/:id", h.DeleteEvent)
	admin.GET("/events/:id/bookings", h.ListEventBookings)
	admin.PUT("/events/:id/capacity", h.ResizeEventCapacity)
	admin.POST("/categories", h.CreateCategory)
	admin.PUT("/categories/:id", h.RenameCategory)
	admin.DELETE("/categories/:id", h.DeleteCategory)
	admin.POST("/tags", h.CreateTag)
	admin.PUT("/tags/:id", h.RenameTag)
	admin.DELETE("/tags/:id", h.DeleteTag)

	return r
}
