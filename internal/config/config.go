package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration for both the proctoring
// agent and the result mailer.
type Config struct {
	ServerPort string
	GinMode    string
	LogLevel   string
	LogFormat  string
	RedisURL   string
	JWTSecret  string

	// Quiz backend (external, authoritative for scoring and enforcement).
	BackendBaseURL string
	BackendTimeout time.Duration

	// Proctoring policy. The warning threshold duplicates the backend
	// rule as an offline safety net, not as the primary enforcement point.
	NoiseThreshold  float64
	NoiseWindow     time.Duration
	MaxWarnings     int
	GraceDelay      time.Duration
	TickInterval    time.Duration
	UrgentThreshold int

	// SessionRetention is how long a terminated session's snapshot stays in
	// the registry so a reloading page can still fetch the result.
	SessionRetention time.Duration

	// Violation journal.
	JournalPath string

	// Mailer.
	MailerPort     string
	MailDriver     string
	SendgridAPIKey string
	MailFromName   string
	MailFromAddr   string

	// AllowedOrigins controls HTTP CORS and WebSocket origin validation.
	// Empty slice means all origins are permitted (dev default).
	AllowedOrigins []string
}

// Load reads configuration from environment variables with sensible defaults.
// It loads .env file if present but does not fail if missing.
func Load() *Config {
	_ = godotenv.Load() // .env is optional

	return &Config{
		ServerPort: getEnv("SERVER_PORT", "8090"),
		GinMode:    getEnv("GIN_MODE", "debug"),
		LogLevel:   getEnv("LOG_LEVEL", "info"),
		LogFormat:  getEnv("LOG_FORMAT", "pretty"),
		RedisURL:   getEnv("REDIS_URL", "redis://localhost:6379/0"),
		JWTSecret:  getEnv("JWT_SECRET", "change-this-to-a-secure-random-string"),

		BackendBaseURL: getEnv("QUIZ_BACKEND_URL", "http://localhost:8000"),
		BackendTimeout: time.Duration(getEnvInt("QUIZ_BACKEND_TIMEOUT_SECONDS", 10)) * time.Second,

		NoiseThreshold:  float64(getEnvInt("NOISE_THRESHOLD", 60)),
		NoiseWindow:     time.Duration(getEnvInt("NOISE_WINDOW_MS", 3000)) * time.Millisecond,
		MaxWarnings:     getEnvInt("MAX_WARNINGS", 2),
		GraceDelay:      time.Duration(getEnvInt("GRACE_DELAY_MS", 1500)) * time.Millisecond,
		TickInterval:    time.Duration(getEnvInt("TICK_INTERVAL_MS", 1000)) * time.Millisecond,
		UrgentThreshold: getEnvInt("URGENT_THRESHOLD_SECONDS", 60),

		SessionRetention: time.Duration(getEnvInt("SESSION_RETENTION_SECONDS", 60)) * time.Second,

		JournalPath: getEnv("JOURNAL_PATH", "./violations.jsonl"),

		MailerPort:     getEnv("MAILER_PORT", "3001"),
		MailDriver:     getEnv("MAIL_DRIVER", "console"),
		SendgridAPIKey: getEnv("SENDGRID_API_KEY", ""),
		MailFromName:   getEnv("MAIL_FROM_NAME", "Quiz Results"),
		MailFromAddr:   getEnv("MAIL_FROM_ADDR", "results@quizvigil.local"),

		AllowedOrigins: parseOrigins(getEnv("ALLOWED_ORIGINS", "")),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

// parseOrigins splits a comma-separated origins string into a trimmed slice.
// Returns nil (allow-all) if the input is empty.
func parseOrigins(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	origins := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	return origins
}
