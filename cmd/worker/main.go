package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/arunvm123/ticketinventory/cache/redis"
	"github.com/arunvm123/ticketinventory/config"
	"github.com/arunvm123/ticketinventory/invalidation"
	"github.com/arunvm123/ticketinventory/logger"
	messaging "github.com/arunvm123/ticketinventory/messaging/kafka"
	"github.com/arunvm123/ticketinventory/worker"
	zlog "github.com/rs/zerolog/log"
)

func main() {
	// Load configuration (fallback to env variables if config file not found)
	cfg, err := config.Initialise("config.yaml", false)
	if err != nil {
		cfg, err = config.Initialise("", true)
		if err != nil {
			zlog.Fatal().Err(err).Msg("failed to load configuration")
		}
	}
	logger.Init(cfg.Log.Level, cfg.Log.Format)

	// Unlike the API, the worker is useless without redis.
	redisCache, err := redis.NewRedisCache(cfg.Redis.GetRedisURL(), cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.KeyPrefix)
	if err != nil {
		zlog.Fatal().Err(err).Msg("failed to initialize cache")
	}
	defer redisCache.Close()

	writer := messaging.NewWriter(cfg.Kafka.Brokers, cfg.Kafka.PurgeTopic)
	defer writer.Close()

	reader := messaging.NewReader(cfg.Kafka.Brokers, cfg.Kafka.PurgeTopic, cfg.Kafka.ConsumerGroup)
	defer reader.Close()

	// Inline purges only; retries go back on the topic.
	coordinator := invalidation.NewCoordinator(redisCache, invalidation.Options{
		Timeout:       cfg.Cache.PurgeTimeout,
		ScanBatchSize: cfg.Cache.ScanBatchSize,
		Workers:       1,
	})

	processor := worker.NewPurgeProcessor(reader, coordinator, messaging.NewPurgePublisher(writer), worker.Options{
		MaxWorkers:      cfg.Worker.MaxWorkers,
		MaxRedeliveries: cfg.Worker.MaxRedeliveries,
		Backoff:         cfg.Cache.PurgeBackoff,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		zlog.Info().Msg("received shutdown signal, stopping worker")
		cancel()
	}()

	zlog.Info().Str("topic", cfg.Kafka.PurgeTopic).Msg("purge retry worker started")
	if err := processor.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		zlog.Error().Err(err).Msg("worker error")
	}

	if err := coordinator.Close(context.Background()); err != nil {
		zlog.Warn().Err(err).Msg("coordinator close")
	}
	zlog.Info().Msg("worker stopped gracefully")
}
