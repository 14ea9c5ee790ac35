package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/quizvigil/proctor-agent/internal/audio"
	"github.com/quizvigil/proctor-agent/internal/backend"
	"github.com/quizvigil/proctor-agent/internal/config"
	"github.com/quizvigil/proctor-agent/internal/database"
	"github.com/quizvigil/proctor-agent/internal/handler"
	"github.com/quizvigil/proctor-agent/internal/logger"
	"github.com/quizvigil/proctor-agent/internal/proctor"
	"github.com/quizvigil/proctor-agent/internal/router"
	"github.com/quizvigil/proctor-agent/internal/store"
	"github.com/quizvigil/proctor-agent/internal/validator"
	"github.com/quizvigil/proctor-agent/internal/worker"
	"github.com/rs/zerolog"
)

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup("proctor-agent", cfg.LogLevel, cfg.LogFormat)
	log.Info().
		Str("port", cfg.ServerPort).
		Str("mode", cfg.GinMode).
		Str("backend", cfg.BackendBaseURL).
		Msg("Starting proctoring agent")

	// ─── Initialize Validator ──────────────────────────────────────────
	validator.Setup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ─── Connect to Redis ──────────────────────────────────────────────
	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	// ─── Initialize Audio Backend ──────────────────────────────────────
	// A missing audio backend is not fatal for the process: session starts
	// will fail with MEDIA_UNAVAILABLE until a device is present.
	audioCtx, err := audio.NewContext()
	if err != nil {
		log.Warn().Err(err).Msg("Audio backend unavailable, sessions cannot start")
		audioCtx = nil
	} else {
		defer audioCtx.Close()
	}

	// ─── Initialize Components ─────────────────────────────────────────
	client := backend.NewClient(cfg.BackendBaseURL, cfg.BackendTimeout, log)
	sessionStore := store.NewSessionStore(rdb)
	journal := worker.NewRedisJournal(rdb, log)
	registry := proctor.NewRegistry()

	handlers := &router.Handlers{
		Session: handler.NewSessionHandler(registry, client, sessionStore, journal, audioCtx, cfg, log),
		WS:      handler.NewWSHandler(registry, log, cfg.AllowedOrigins),
	}

	// ─── Start Background Workers ─────────────────────────────────────
	workerCtx, workerCancel := context.WithCancel(context.Background())

	journalWorker := worker.NewJournalWorker(rdb, cfg.JournalPath, log)
	go journalWorker.Start(workerCtx)

	// ─── Setup Router ──────────────────────────────────────────────────
	r := router.SetupRouter(handlers, cfg)

	// ─── Create HTTP Server ────────────────────────────────────────────
	srv := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: r,
	}

	// ─── Start Server in Goroutine ─────────────────────────────────────
	go func() {
		log.Info().Str("addr", ":"+cfg.ServerPort).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	// ─── Graceful Shutdown ─────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().Str("signal", sig.String()).Msg("Shutting down gracefully...")

	// 1. Stop accepting new HTTP requests (5s timeout).
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	// 2. Release live sessions (stops media capture and countdowns).
	registry.CloseAll()

	// 3. Stop the journal worker and wait for the queue to drain.
	workerCancel()
	time.Sleep(2 * time.Second) // Allow the worker to drain.

	log.Info().Msg("Shutdown complete")
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
