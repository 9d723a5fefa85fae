package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultAppName         = "CryptoExchange"
	defaultAppEnv          = "development"
	defaultPort            = "8080"
	defaultLogLevel        = "info"
	defaultShutdownDelay   = 10 * time.Second
	defaultIdempotencyTTL  = 24 * time.Hour
	defaultPriceAPIURL     = "https://api.coingecko.com/api/v3"
	defaultPriceRefresh    = 30 * time.Second
	defaultPriceTimeout    = 10 * time.Second
	defaultTradeRateLimit  = 60
	defaultDBMaxConns      = 10
	defaultPriceMirrorKey  = "prices:v1:latest"
	idemTTLSecondsEnvVar   = "IDEMPOTENCY_TTL_SECONDS"
	idemTTLDurEnvVar       = "IDEMPOTENCY_TTL"
	shutdownSecondsEnvVar  = "SHUTDOWN_TIMEOUT_SECONDS"
	shutdownDurationEnvVar = "SHUTDOWN_TIMEOUT"
)

// Config captures application runtime configuration loaded from environment variables.
type Config struct {
	AppName        string
	AppEnv         string
	Port           string
	LogLevel       string
	DatabaseURL    string
	RedisURL       string
	DBMaxConns     int32
	ShutdownPeriod time.Duration
	IdempotencyTTL time.Duration

	PriceAPIURL          string
	PriceRefreshInterval time.Duration
	PriceFetchTimeout    time.Duration
	PriceFallbackEnabled bool
	PriceMirrorKey       string
	TradeRateLimit       int
	LedgerJournalDir     string
}

// Load reads configuration values from the environment and populates a Config instance.
// A .env file in the working directory is loaded first when present; real
// environment variables take precedence over it.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	cfg := Config{
		AppName:              getEnv("APP_NAME", defaultAppName),
		AppEnv:               getEnv("APP_ENV", defaultAppEnv),
		Port:                 getEnv("PORT", defaultPort),
		LogLevel:             strings.ToLower(getEnv("LOG_LEVEL", defaultLogLevel)),
		DatabaseURL:          os.Getenv("DATABASE_URL"),
		RedisURL:             os.Getenv("REDIS_URL"),
		ShutdownPeriod:       defaultShutdownDelay,
		IdempotencyTTL:       defaultIdempotencyTTL,
		PriceAPIURL:          strings.TrimRight(getEnv("PRICE_API_URL", defaultPriceAPIURL), "/"),
		PriceMirrorKey:       getEnv("PRICE_MIRROR_KEY", defaultPriceMirrorKey),
		LedgerJournalDir:     os.Getenv("LEDGER_JOURNAL_DIR"),
		PriceFallbackEnabled: true,
		TradeRateLimit:       defaultTradeRateLimit,
		DBMaxConns:           defaultDBMaxConns,
	}

	var err error
	if cfg.ShutdownPeriod, err = durationFromEnv(shutdownSecondsEnvVar, shutdownDurationEnvVar, defaultShutdownDelay); err != nil {
		return Config{}, err
	}
	if cfg.IdempotencyTTL, err = durationFromEnv(idemTTLSecondsEnvVar, idemTTLDurEnvVar, defaultIdempotencyTTL); err != nil {
		return Config{}, err
	}
	if cfg.PriceRefreshInterval, err = durationFromEnv("", "PRICE_REFRESH_INTERVAL", defaultPriceRefresh); err != nil {
		return Config{}, err
	}
	if cfg.PriceFetchTimeout, err = durationFromEnv("", "PRICE_FETCH_TIMEOUT", defaultPriceTimeout); err != nil {
		return Config{}, err
	}
	if cfg.PriceRefreshInterval <= 0 {
		return Config{}, fmt.Errorf("PRICE_REFRESH_INTERVAL must be positive")
	}

	if v := os.Getenv("PRICE_FALLBACK_ENABLED"); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid PRICE_FALLBACK_ENABLED: %w", err)
		}
		cfg.PriceFallbackEnabled = enabled
	}

	if v := os.Getenv("TRADE_RATE_LIMIT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return Config{}, fmt.Errorf("invalid TRADE_RATE_LIMIT %q", v)
		}
		cfg.TradeRateLimit = n
	}

	if v := os.Getenv("DATABASE_MAX_CONNS"); v != "" {
		n, err := strconv.ParseInt(v, 10, 32)
		if err != nil || n <= 0 {
			return Config{}, fmt.Errorf("invalid DATABASE_MAX_CONNS %q", v)
		}
		cfg.DBMaxConns = int32(n)
	}

	if !cfg.IsDev() {
		if cfg.DatabaseURL == "" {
			return Config{}, fmt.Errorf("DATABASE_URL must be set when APP_ENV=%s", cfg.AppEnv)
		}
		if cfg.RedisURL == "" {
			return Config{}, fmt.Errorf("REDIS_URL must be set when APP_ENV=%s", cfg.AppEnv)
		}
	}

	return cfg, nil
}

// Address returns the listen address in the format Fiber expects.
func (c Config) Address() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return fmt.Sprintf(":%s", c.Port)
}

// IsDev reports whether the app runs in a local development environment,
// where Postgres and Redis are optional.
func (c Config) IsDev() bool {
	switch strings.ToLower(c.AppEnv) {
	case "dev", "development", "local", "test":
		return true
	default:
		return false
	}
}

// durationFromEnv reads an integer number of seconds from secondsKey, or a
// Go duration string from durationKey. secondsKey wins when both are set.
func durationFromEnv(secondsKey, durationKey string, fallback time.Duration) (time.Duration, error) {
	if secondsKey != "" {
		if v := os.Getenv(secondsKey); v != "" {
			seconds, err := strconv.Atoi(v)
			if err != nil {
				return 0, fmt.Errorf("invalid %s: %w", secondsKey, err)
			}
			return time.Duration(seconds) * time.Second, nil
		}
	}
	if v := os.Getenv(durationKey); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return 0, fmt.Errorf("invalid %s: %w", durationKey, err)
		}
		return d, nil
	}
	return fallback, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
