package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	router "github.com/fileroom/fileroom/internal/adapters/http"
	"github.com/fileroom/fileroom/internal/app"
	"github.com/fileroom/fileroom/internal/config"
	"github.com/fileroom/fileroom/internal/core"
	"github.com/fileroom/fileroom/internal/storage"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	// Human-friendly output for terminal; in production you may want JSON only.
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	blobs, err := storage.NewUploadDirStore(cfg.UploadDir)
	if err != nil {
		log.Fatal().Err(err).Str("dir", cfg.UploadDir).Msg("failed to open upload dir")
	}

	rooms := core.NewRoomRegistry()
	presence := core.NewPresenceTracker(cfg.PresenceTimeout)
	store := core.NewMessageStore()
	hub := core.NewBroadcastHub(presence)

	svc := &app.Service{
		Rooms:         rooms,
		Presence:      presence,
		Store:         store,
		Hub:           hub,
		Blobs:         blobs,
		TTL:           cfg.MessageTTL,
		MaxUploadSize: cfg.MaxUploadBytes,
	}

	expiry := &core.ExpiryReaper{
		Store:         store,
		Rooms:         rooms,
		Presence:      presence,
		Blobs:         blobs,
		Interval:      cfg.ExpirySweep,
		RoomIdleAfter: cfg.RoomIdleAfter,
	}
	timeouts := &core.PresenceReaper{
		Presence: presence,
		Hub:      hub,
		Interval: cfg.PresenceSweep,
	}
	go expiry.Run(ctx)
	go timeouts.Run(ctx)

	r := router.SetupRouter(ctx, cfg, svc, hub)
	addr := fmt.Sprintf(":%d", cfg.Port)

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("FileRoom server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	log.Info().Msg("Server exited gracefully")
}
