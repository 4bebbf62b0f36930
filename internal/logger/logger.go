package logger

import (
	"io"
	"log/slog"
	"os"

	"github.com/google/uuid"
	"github.com/jwebster45206/companion-engine/internal/config"
)

// Setup builds the process logger for a binary ("api", "worker") and installs
// it as the slog default. Production logs are JSON; everything else is text.
func Setup(cfg *config.Config, component string) *slog.Logger {
	logger := New(os.Stdout, cfg.Environment, cfg.LogLevel).With(
		"service", "companion-engine",
		"component", component,
	)
	slog.SetDefault(logger)
	return logger
}

// New returns a logger writing to w without touching the default
func New(w io.Writer, environment string, level slog.Level) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	if environment == "production" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// WithRequestID adds request ID to logger context
func WithRequestID(logger *slog.Logger, requestID string) *slog.Logger {
	return logger.With("request_id", requestID)
}

// WithCharacter scopes a logger to one character
func WithCharacter(logger *slog.Logger, characterID uuid.UUID) *slog.Logger {
	return logger.With("character_id", characterID.String())
}
