package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/arunvm123/ticketinventory/config"
	"github.com/arunvm123/ticketinventory/logger"
	zlog "github.com/rs/zerolog/log"
)

func main() {
	// Try to load from config.yaml first, fallback to environment variables
	cfg, err := config.Initialise("config.yaml", false)
	if err != nil {
		cfg, err = config.Initialise("", true)
		if err != nil {
			zlog.Fatal().Err(err).Msg("failed to load configuration")
		}
	}
	logger.Init(cfg.Log.Level, cfg.Log.Format)

	app, handler, err := newApplication(cfg)
	if err != nil {
		zlog.Fatal().Err(err).Msg("failed to start")
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           NewRouter(handler, NewJWTService(cfg.JWTSecret)),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		zlog.Info().Str("port", cfg.Port).Msg("starting ticket inventory API")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zlog.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	zlog.Info().Msg("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		zlog.Error().Err(err).Msg("server shutdown failed")
	}
	app.Close(ctx)
}
