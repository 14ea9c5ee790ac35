package main

import (
	"context"
	"net/http"
	"net/mail"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/quizvigil/proctor-agent/internal/config"
	"github.com/quizvigil/proctor-agent/internal/logger"
	"github.com/quizvigil/proctor-agent/internal/mailer"
	"github.com/quizvigil/proctor-agent/internal/validator"
	"github.com/rs/zerolog"
)

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup("result-mailer", cfg.LogLevel, cfg.LogFormat)
	log.Info().
		Str("port", cfg.MailerPort).
		Str("driver", cfg.MailDriver).
		Msg("Starting result mailer")

	// ─── Initialize Validator ──────────────────────────────────────────
	validator.Setup()

	from := mail.Address{Name: cfg.MailFromName, Address: cfg.MailFromAddr}

	// ─── Select Mail Driver ────────────────────────────────────────────
	var service mailer.EmailService
	switch cfg.MailDriver {
	case "sendgrid":
		if cfg.SendgridAPIKey == "" {
			log.Fatal().Msg("MAIL_DRIVER=sendgrid requires SENDGRID_API_KEY")
		}
		service = mailer.NewSendgridService(cfg.SendgridAPIKey, from, log)
	case "console":
		service = mailer.NewConsoleService(log)
	default:
		log.Fatal().Str("driver", cfg.MailDriver).Msg("Unknown mail driver")
	}

	h := mailer.NewHandler(service, log)
	r := mailer.SetupRouter(h)

	srv := &http.Server{
		Addr:    ":" + cfg.MailerPort,
		Handler: r,
	}

	// ─── Start Server in Goroutine ─────────────────────────────────────
	go func() {
		log.Info().Str("addr", ":"+cfg.MailerPort).Msg("Mailer listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	// ─── Graceful Shutdown ─────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().Str("signal", sig.String()).Msg("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	log.Info().Msg("Shutdown complete")
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
