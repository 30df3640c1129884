package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Environment     string
	AppName         string
	Port            string
	LogLevel        slog.Level
	SQLitePath      string
	MigrationsPath  string
	SeedDefaultData bool

	AniListEndpoint       string
	AniListAttemptTimeout time.Duration
	AniListMaxAttempts    int
	AniListBaseDelay      time.Duration
	AniListMaxRetryDelay  time.Duration

	EligibilityPolicyPath string
	ResolveCacheTTL       time.Duration

	RefreshEnabled bool
	RefreshMinutes int
}

func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		Environment:     getEnv("APP_ENV", "development"),
		AppName:         getEnv("APP_NAME", "anime-watchlist"),
		Port:            getEnv("APP_PORT", "8080"),
		SQLitePath:      getEnv("SQLITE_PATH", "./data/app.sqlite"),
		MigrationsPath:  getEnv("MIGRATIONS_PATH", "./migrations"),
		SeedDefaultData: getEnvAsBool("SEED_DEFAULT_DATA", true),

		AniListEndpoint:       getEnv("ANILIST_ENDPOINT", "https://graphql.anilist.co"),
		AniListAttemptTimeout: getEnvAsDuration("ANILIST_ATTEMPT_TIMEOUT", 8*time.Second),
		AniListMaxAttempts:    getEnvAsInt("ANILIST_MAX_ATTEMPTS", 3),
		AniListBaseDelay:      getEnvAsDuration("ANILIST_BASE_DELAY", 500*time.Millisecond),
		AniListMaxRetryDelay:  getEnvAsDuration("ANILIST_MAX_RETRY_DELAY", 8*time.Second),

		EligibilityPolicyPath: getEnv("ELIGIBILITY_POLICY_PATH", "./configs/eligibility.yaml"),
		ResolveCacheTTL:       getEnvAsDuration("RESOLVE_CACHE_TTL", time.Hour),

		RefreshEnabled: getEnvAsBool("REFRESH_ENABLED", true),
		RefreshMinutes: getEnvAsInt("REFRESH_MINUTES", 60),
	}

	if cfg.RefreshMinutes <= 0 {
		cfg.RefreshMinutes = 60
	}
	if cfg.AniListMaxAttempts <= 0 {
		cfg.AniListMaxAttempts = 3
	}

	level, err := parseLogLevel(getEnv("LOG_LEVEL", "INFO"))
	if err != nil {
		return Config{}, err
	}
	cfg.LogLevel = level

	return cfg, nil
}

func parseLogLevel(raw string) (slog.Level, error) {
	switch raw {
	case "DEBUG":
		return slog.LevelDebug, nil
	case "INFO":
		return slog.LevelInfo, nil
	case "WARN":
		return slog.LevelWarn, nil
	case "ERROR":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid LOG_LEVEL %q, expected DEBUG|INFO|WARN|ERROR", raw)
	}
}

func getEnv(key string, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getEnvAsBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}
