package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/sketchparty/sketchparty/internal/config"
	"github.com/sketchparty/sketchparty/internal/db"
	"github.com/sketchparty/sketchparty/internal/drawings"
	"github.com/sketchparty/sketchparty/internal/gateway"
	"github.com/sketchparty/sketchparty/internal/httpapi"
	"github.com/sketchparty/sketchparty/internal/relay"
	"github.com/sketchparty/sketchparty/internal/slides"
	"github.com/sketchparty/sketchparty/internal/upload"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	database, err := db.Open(ctx, cfg.Database.Path)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.Database.Path).Msg("failed to open database")
	}
	defer database.Close()

	rel := buildRelay(cfg.Relay)
	defer rel.Close()

	slideApp := slides.NewApp(slides.NewRepository(database))
	drawingApp := drawings.NewApp(drawings.NewRepository(database))

	var uploader httpapi.Uploader
	if cfg.S3.Bucket != "" {
		s3Uploader, err := upload.NewS3Uploader(ctx, cfg.S3)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to build S3 uploader")
		}
		uploader = s3Uploader
	} else {
		log.Warn().Msg("S3 bucket not configured, uploads disabled")
	}

	gw := gateway.New(rel, gateway.DefaultConfig())

	handler := httpapi.NewHandler(slideApp, drawingApp, uploader)
	router := httpapi.NewRouter(handler, gw.HandleWS, cfg.HTTP.AllowedOrigins)

	server := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("HTTP server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	sig := <-sigChan

	log.Info().Str("signal", sig.String()).Msg("received shutdown signal")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}

	cancel()
	log.Info().Msg("shutdown complete")
}

// buildRelay connects to NATS when a URL is configured and falls back
// to the in-process relay for single-binary demos.
func buildRelay(cfg config.RelayConfig) relay.Relay {
	if cfg.URL == "" {
		log.Warn().Msg("no relay URL configured, using in-process relay")
		return relay.NewMemory()
	}

	natsRelay, err := relay.ConnectNATS(relay.DefaultNATSConfig(cfg.URL))
	if err != nil {
		log.Fatal().Err(err).Str("url", cfg.URL).Msg("failed to connect to NATS")
	}
	log.Info().Str("url", cfg.URL).Msg("connected to NATS relay")
	return natsRelay
}
