// Package server exposes the REST surface and the WebSocket endpoint of the
// group-chat service, and wires handlers to the store, the credential
// service, and the realtime hub.
package server

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/parley-chat/parley/internal/objstore"
)

// RateLimitConfig bounds client-to-server events per WebSocket connection.
type RateLimitConfig struct {
	Burst          int
	RefillInterval time.Duration
}

// Config holds every runtime setting of the service.
type Config struct {
	Port           string
	AllowedOrigins []string
	DatabaseDSN    string

	JWTSecret  string
	TokenTTL   time.Duration
	BcryptCost int

	MaxMessageSize int64
	MaxUploadSize  int64
	RateLimit      RateLimitConfig

	S3 objstore.S3Config
}

// NewConfig returns a Config populated with development defaults.
func NewConfig() *Config {
	return &Config{
		Port:           ":8080",
		AllowedOrigins: []string{"http://localhost:8080", "http://localhost:3000"},
		DatabaseDSN:    "parley.db",
		JWTSecret:      "dev-secret-change-me",
		TokenTTL:       24 * time.Hour,
		BcryptCost:     10,
		MaxMessageSize: 4096,
		MaxUploadSize:  10 << 20,
		RateLimit: RateLimitConfig{
			Burst:          10,
			RefillInterval: time.Second,
		},
	}
}

// NewConfigFromEnv builds a Config from environment variables, falling back
// to defaults for anything unset or unparsable.
func NewConfigFromEnv() *Config {
	cfg := NewConfig()

	if port := os.Getenv("PORT"); port != "" {
		if !strings.HasPrefix(port, ":") {
			port = ":" + port
		}
		cfg.Port = port
	}
	if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
		cfg.AllowedOrigins = splitAndTrim(origins)
	}
	if dsn := os.Getenv("DATABASE_DSN"); dsn != "" {
		cfg.DatabaseDSN = dsn
	}
	if secret := os.Getenv("JWT_SECRET"); secret != "" {
		cfg.JWTSecret = secret
	}
	if ttl := os.Getenv("TOKEN_TTL"); ttl != "" {
		cfg.TokenTTL = parseDurationSeconds(ttl, cfg.TokenTTL)
	}
	if cost := os.Getenv("BCRYPT_COST"); cost != "" {
		cfg.BcryptCost = parseInt(cost, cfg.BcryptCost)
	}
	if size := os.Getenv("MAX_MESSAGE_SIZE"); size != "" {
		cfg.MaxMessageSize = parseInt64(size, cfg.MaxMessageSize)
	}
	if size := os.Getenv("MAX_UPLOAD_SIZE"); size != "" {
		cfg.MaxUploadSize = parseInt64(size, cfg.MaxUploadSize)
	}
	if burst := os.Getenv("RATE_LIMIT_BURST"); burst != "" {
		cfg.RateLimit.Burst = parseInt(burst, cfg.RateLimit.Burst)
	}
	if interval := os.Getenv("RATE_LIMIT_REFILL_INTERVAL"); interval != "" {
		cfg.RateLimit.RefillInterval = parseDurationSeconds(interval, cfg.RateLimit.RefillInterval)
	}

	cfg.S3 = objstore.S3Config{
		Endpoint:      os.Getenv("S3_ENDPOINT"),
		AccessKey:     os.Getenv("S3_ACCESS_KEY"),
		SecretKey:     os.Getenv("S3_SECRET_KEY"),
		UseSSL:        os.Getenv("S3_USE_SSL") == "true",
		Bucket:        envOr("S3_BUCKET", "parley-uploads"),
		PublicBaseURL: os.Getenv("S3_PUBLIC_BASE_URL"),
	}

	return cfg
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func splitAndTrim(s string) []string {
	parts := strings.Split(s, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseInt(value string, fallback int) int {
	if n, err := strconv.Atoi(value); err == nil && n > 0 {
		return n
	}
	return fallback
}

func parseInt64(value string, fallback int64) int64 {
	if n, err := strconv.ParseInt(value, 10, 64); err == nil && n > 0 {
		return n
	}
	return fallback
}

func parseDurationSeconds(value string, fallback time.Duration) time.Duration {
	if n, err := strconv.Atoi(value); err == nil && n > 0 {
		return time.Duration(n) * time.Second
	}
	return fallback
}
