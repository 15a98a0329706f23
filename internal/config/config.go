// Package config reads server settings from the environment, optionally
// seeded from a .env file.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server    ServerConfig
	Data      DataConfig
	Game      GameConfig
	Logging   LoggingConfig
	Store     StoreConfig
	Redis     RedisConfig
	CORS      CORSConfig
	RateLimit RateLimitConfig
}

type ServerConfig struct {
	Port            string
	Environment     string
	ShutdownTimeout time.Duration
}

type DataConfig struct {
	Dir          string
	SavePath     string
	AirportsCSV  string
	AircraftJSON string
}

type GameConfig struct {
	StartingCash      float64
	DemandVariability float64
	// RNGSeed of 0 seeds from the clock.
	RNGSeed int64
}

type LoggingConfig struct {
	Level      string
	JSONFormat bool
	// File enables a rotating log file next to stdout.
	File string
}

type StoreConfig struct {
	LedgerDB     string
	ArchiveDir   string
	ArchiveEvery int
}

type RedisConfig struct {
	Enabled bool
	URL     string
	Addr    string
}

type CORSConfig struct {
	Origins []string
}

type RateLimitConfig struct {
	Enabled           bool
	RequestsPerSecond float64
	BurstSize         int
}

// Load reads .env if present and then the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("No .env file found, using system environment variables")
	}
	cfg := load()
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func load() *Config {
	env := GetEnv("ENVIRONMENT", "development")
	dataDir := GetEnv("DATA_DIR", "data")
	return &Config{
		Server: ServerConfig{
			Port:            GetEnv("PORT", "4000"),
			Environment:     env,
			ShutdownTimeout: time.Duration(getEnvInt("SHUTDOWN_TIMEOUT_SECONDS", 10)) * time.Second,
		},
		Data: DataConfig{
			Dir:          dataDir,
			SavePath:     GetEnv("SAVE_PATH", filepath.Join(dataDir, "savegame.json")),
			AirportsCSV:  GetEnv("AIRPORTS_CSV", filepath.Join(dataDir, "airports.csv")),
			AircraftJSON: GetEnv("AIRCRAFT_JSON", filepath.Join(dataDir, "aircraft.json")),
		},
		Game: GameConfig{
			StartingCash:      getEnvFloat("STARTING_CASH", 500_000_000),
			DemandVariability: getEnvFloat("DEMAND_VARIABILITY", 0.08),
			RNGSeed:           int64(getEnvInt("RNG_SEED", 0)),
		},
		Logging: LoggingConfig{
			Level:      strings.ToLower(GetEnv("LOG_LEVEL", "info")),
			JSONFormat: env == "production",
			File:       GetEnv("LOG_FILE", ""),
		},
		Store: StoreConfig{
			LedgerDB:     GetEnv("LEDGER_DB", filepath.Join(dataDir, "ledger.db")),
			ArchiveDir:   GetEnv("ARCHIVE_DIR", filepath.Join(dataDir, "archive")),
			ArchiveEvery: getEnvInt("ARCHIVE_EVERY", 60),
		},
		Redis: RedisConfig{
			Enabled: GetEnv("REDIS_ENABLED", "false") == "true",
			URL:     GetEnv("REDIS_URL", ""),
			Addr:    GetEnv("REDIS_ADDR", "localhost:6379"),
		},
		CORS: CORSConfig{
			Origins: splitList(GetEnv("CORS_ORIGINS", "*")),
		},
		RateLimit: RateLimitConfig{
			Enabled:           GetEnv("RATE_LIMIT_ENABLED", "true") == "true",
			RequestsPerSecond: getEnvFloat("RATE_LIMIT_RPS", 20),
			BurstSize:         getEnvInt("RATE_LIMIT_BURST", 40),
		},
	}
}

func (c *Config) validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("PORT is required")
	}
	if c.Data.SavePath == "" {
		return fmt.Errorf("SAVE_PATH is required")
	}
	if c.Game.StartingCash < 0 {
		return fmt.Errorf("STARTING_CASH must not be negative")
	}
	if c.Game.DemandVariability < 0 || c.Game.DemandVariability >= 1 {
		return fmt.Errorf("DEMAND_VARIABILITY must be in [0, 1)")
	}
	if c.Store.ArchiveEvery < 0 {
		return fmt.Errorf("ARCHIVE_EVERY must not be negative")
	}
	if c.RateLimit.Enabled && (c.RateLimit.RequestsPerSecond <= 0 || c.RateLimit.BurstSize < 1) {
		return fmt.Errorf("RATE_LIMIT_RPS and RATE_LIMIT_BURST must be positive")
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("LOG_LEVEL %q is not one of debug, info, warn, error", c.Logging.Level)
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return c.Server.Environment == "production"
}

// GetEnv returns the value of key, or fallback when unset or empty.
func GetEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v, err := strconv.Atoi(GetEnv(key, ""))
	if err != nil {
		return fallback
	}
	return v
}

func getEnvFloat(key string, fallback float64) float64 {
	v, err := strconv.ParseFloat(GetEnv(key, ""), 64)
	if err != nil {
		return fallback
	}
	return v
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
