// Package config reads server settings from the environment and an optional .env file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds every server setting.
type Config struct {
	Port        int
	Env         string
	LogLevel    string
	LogFile     string
	CORSOrigins []string

	DatabaseURL string

	UploadDir      string
	PublicBaseURL  string
	MaxUploadBytes int64
	S3Bucket       string
	S3Prefix       string
	S3Endpoint     string
	AWSRegion      string
	AWSAccessKey   string
	AWSSecretKey   string

	NATSPort int

	ChainRPCURL     string
	ContractAddress string
	ChainPrivateKey string
	ChainID         int64
	ChainCacheTTL   time.Duration

	PollInterval time.Duration
	PollTimeout  time.Duration
}

// Production reports whether ENV=production.
func (c Config) Production() bool {
	return c.Env == "production"
}

// ChainEnabled reports whether a contract is configured.
func (c Config) ChainEnabled() bool {
	return c.ChainRPCURL != "" && c.ContractAddress != ""
}

// Load reads .env when present and then the process environment.
func Load() (Config, bool, error) {
	dotenv := godotenv.Load() == nil
	cfg, err := FromEnv(os.Getenv)
	return cfg, dotenv, err
}

// FromEnv builds a Config from getenv. Every malformed value is reported.
func FromEnv(getenv func(string) string) (Config, error) {
	var errs []error

	str := func(key, def string) string {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			return v
		}
		return def
	}
	integer := func(key string, def int64) int64 {
		v := strings.TrimSpace(getenv(key))
		if v == "" {
			return def
		}
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("invalid %s=%q: %w", key, v, err))
			return def
		}
		return n
	}
	duration := func(key string, def time.Duration) time.Duration {
		v := strings.TrimSpace(getenv(key))
		if v == "" {
			return def
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("invalid %s=%q: %w", key, v, err))
			return def
		}
		if d <= 0 {
			errs = append(errs, fmt.Errorf("invalid %s=%q: must be positive", key, v))
			return def
		}
		return d
	}

	cfg := Config{
		Port:     int(integer("PORT", 3001)),
		Env:      str("ENV", "development"),
		LogLevel: str("LOG_LEVEL", "info"),
		LogFile:  str("LOG_FILE", ""),

		DatabaseURL: str("DATABASE_URL", ""),

		UploadDir:      str("UPLOAD_DIR", "./uploads"),
		MaxUploadBytes: integer("MAX_UPLOAD_BYTES", 10<<20),
		S3Bucket:       str("EVIDENCE_S3_BUCKET", ""),
		S3Prefix:       str("EVIDENCE_S3_PREFIX", "evidence"),
		S3Endpoint:     str("EVIDENCE_S3_ENDPOINT", ""),
		AWSRegion:      str("AWS_REGION", ""),
		AWSAccessKey:   str("AWS_ACCESS_KEY_ID", ""),
		AWSSecretKey:   str("AWS_SECRET_ACCESS_KEY", ""),

		NATSPort: int(integer("NATS_PORT", 4233)),

		ChainRPCURL:     str("CHAIN_RPC_URL", ""),
		ContractAddress: str("VIOLATION_CONTRACT_ADDRESS", ""),
		ChainPrivateKey: str("CHAIN_PRIVATE_KEY", ""),
		ChainID:         integer("CHAIN_ID", 0),
		ChainCacheTTL:   duration("CHAIN_CACHE_TTL", 10*time.Second),

		PollInterval: duration("POLL_INTERVAL", 30*time.Second),
		PollTimeout:  duration("POLL_TIMEOUT", 10*time.Second),
	}
	cfg.PublicBaseURL = strings.TrimRight(str("PUBLIC_BASE_URL", fmt.Sprintf("http://localhost:%d", cfg.Port)), "/")

	for _, origin := range strings.Split(str("CORS_ORIGINS", "http://localhost:5173,http://localhost:3000"), ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			cfg.CORSOrigins = append(cfg.CORSOrigins, origin)
		}
	}

	if cfg.Port <= 0 || cfg.Port > 65535 {
		errs = append(errs, fmt.Errorf("invalid PORT=%d", cfg.Port))
	}
	if cfg.MaxUploadBytes <= 0 {
		errs = append(errs, fmt.Errorf("invalid MAX_UPLOAD_BYTES=%d", cfg.MaxUploadBytes))
	}
	if (cfg.ChainRPCURL == "") != (cfg.ContractAddress == "") {
		errs = append(errs, errors.New("CHAIN_RPC_URL and VIOLATION_CONTRACT_ADDRESS must be set together"))
	}

	return cfg, errors.Join(errs...)
}
