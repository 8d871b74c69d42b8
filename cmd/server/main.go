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

	router "github.com/seenuaaa/casmi/internal/adapters/http"
	wssignal "github.com/seenuaaa/casmi/internal/adapters/signal"
	"github.com/seenuaaa/casmi/internal/app"
	"github.com/seenuaaa/casmi/internal/config"
	"github.com/seenuaaa/casmi/internal/core"
	"github.com/seenuaaa/casmi/internal/pkg/token"
	"github.com/seenuaaa/casmi/internal/store"
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

	// Presence survives without the store: mirroring is best-effort and
	// the in-memory registry stays authoritative either way.
	var roomStore core.RoomStore
	if cfg.PostgresDSN != "" {
		repo, err := store.New(cfg.PostgresDSN)
		if err != nil {
			log.Warn().Err(err).Msg("room store unavailable, participant mirroring disabled")
		} else {
			defer repo.Close()
			roomStore = repo
		}
	}

	engine := app.NewEngine(roomStore, cfg.StaleAfter, cfg.StoreTimeout)
	ctl := wssignal.NewController(engine, cfg)
	verifier := token.New(cfg.Secret)

	sweeper := app.NewSweeper(engine, cfg.SweepInterval)
	go sweeper.Run(ctx)

	r := router.SetupRouter(ctx, cfg, engine, ctl, verifier)
	addr := fmt.Sprintf(":%d", cfg.Port)

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("Casmi signaling server started")
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
