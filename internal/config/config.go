package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

type Config struct {
	Port           string
	Environment    string
	LogLevel       slog.Level
	DatabaseDriver string
	DatabaseURL    string
	RedisURL       string
	WorkerID       string
	Story          StoryConfig
}

// StoryConfig tunes the story engine and its automation cycle
type StoryConfig struct {
	MaxEventsPerCheck int
	CycleSchedule     string
	CycleTimeout      time.Duration
	RecentMessages    int
	SeedDefaults      bool
}

// fileConfig is the optional TOML file named by CONFIG_FILE
type fileConfig struct {
	Story struct {
		MaxEventsPerCheck *int    `toml:"max_events_per_check"`
		CycleSchedule     *string `toml:"cycle_schedule"`
		CycleTimeout      *string `toml:"cycle_timeout"`
		RecentMessages    *int    `toml:"recent_messages"`
		SeedDefaults      *bool   `toml:"seed_defaults"`
	} `toml:"story"`
}

// Load reads .env (if present), then the CONFIG_FILE TOML (if set), then environment overrides
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := &Config{
		Port:           getEnv("PORT", "8080"),
		Environment:    getEnv("ENVIRONMENT", "development"),
		LogLevel:       parseLogLevel(getEnv("LOG_LEVEL", "info")),
		DatabaseDriver: strings.ToLower(getEnv("DATABASE_DRIVER", "sqlite")),
		DatabaseURL:    getEnv("DATABASE_URL", "companion.db"),
		RedisURL:       getEnv("REDIS_URL", "redis://localhost:6379/0"),
		WorkerID:       os.Getenv("WORKER_ID"),
		Story: StoryConfig{
			MaxEventsPerCheck: 3,
			CycleSchedule:     "0 */15 * * * *",
			CycleTimeout:      10 * time.Minute,
			RecentMessages:    10,
			SeedDefaults:      true,
		},
	}

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.applyFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	var fc fileConfig
	if err := toml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	s := fc.Story
	if s.MaxEventsPerCheck != nil {
		c.Story.MaxEventsPerCheck = *s.MaxEventsPerCheck
	}
	if s.CycleSchedule != nil {
		c.Story.CycleSchedule = *s.CycleSchedule
	}
	if s.CycleTimeout != nil {
		d, err := time.ParseDuration(*s.CycleTimeout)
		if err != nil {
			return fmt.Errorf("story.cycle_timeout: %w", err)
		}
		c.Story.CycleTimeout = d
	}
	if s.RecentMessages != nil {
		c.Story.RecentMessages = *s.RecentMessages
	}
	if s.SeedDefaults != nil {
		c.Story.SeedDefaults = *s.SeedDefaults
	}
	return nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("STORY_MAX_EVENTS_PER_CHECK"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("STORY_MAX_EVENTS_PER_CHECK: %w", err)
		}
		c.Story.MaxEventsPerCheck = n
	}
	if v := os.Getenv("STORY_CYCLE_SCHEDULE"); v != "" {
		c.Story.CycleSchedule = v
	}
	if v := os.Getenv("STORY_CYCLE_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("STORY_CYCLE_TIMEOUT: %w", err)
		}
		c.Story.CycleTimeout = d
	}
	if v := os.Getenv("STORY_RECENT_MESSAGES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("STORY_RECENT_MESSAGES: %w", err)
		}
		c.Story.RecentMessages = n
	}
	if v := os.Getenv("STORY_SEED_DEFAULTS"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("STORY_SEED_DEFAULTS: %w", err)
		}
		c.Story.SeedDefaults = b
	}
	return nil
}

// Validate rejects values the services cannot run with
func (c *Config) Validate() error {
	var errs []error
	switch c.DatabaseDriver {
	case "postgres", "sqlite":
	default:
		errs = append(errs, fmt.Errorf("DATABASE_DRIVER must be postgres or sqlite, got %q", c.DatabaseDriver))
	}
	if c.Story.MaxEventsPerCheck < 1 {
		errs = append(errs, errors.New("story max events per check must be at least 1"))
	}
	if c.Story.RecentMessages < 1 {
		errs = append(errs, errors.New("story recent messages must be at least 1"))
	}
	if c.Story.CycleTimeout <= 0 {
		errs = append(errs, errors.New("story cycle timeout must be positive"))
	}
	return errors.Join(errs...)
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
