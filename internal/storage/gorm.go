package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jwebster45206/companion-engine/pkg/character"
	"github.com/jwebster45206/companion-engine/pkg/chat"
	"github.com/jwebster45206/companion-engine/pkg/storage"
	"github.com/jwebster45206/companion-engine/pkg/story"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// GormStorage implements the Storage interface on a relational database via GORM
type GormStorage struct {
	db     *gorm.DB
	logger *slog.Logger
}

// Ensure GormStorage implements Storage interface
var _ storage.Storage = (*GormStorage)(nil)

// Open connects to the database for the given driver ("postgres" or "sqlite")
func Open(driver, dsn string, logger *slog.Logger) (*GormStorage, error) {
	var dialector gorm.Dialector
	switch strings.ToLower(driver) {
	case DriverPostgres:
		dialector = postgres.Open(dsn)
	case DriverSQLite:
		dialector = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", driver, err)
	}

	if strings.EqualFold(driver, DriverSQLite) {
		// SQLite serialises writers; one connection also keeps :memory: databases alive
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("failed to get sqlite handle: %w", err)
		}
		sqlDB.SetMaxOpenConns(1)
	}

	logger.Info("Database connection opened", "driver", driver)
	return NewGormStorage(db, logger), nil
}

// NewGormStorage wraps an existing GORM handle
func NewGormStorage(db *gorm.DB, logger *slog.Logger) *GormStorage {
	return &GormStorage{
		db:     db,
		logger: logger,
	}
}

// Migrate creates or updates the schema for every entity the engine persists
func (g *GormStorage) Migrate(ctx context.Context) error {
	err := g.db.WithContext(ctx).AutoMigrate(
		&character.Character{},
		&character.Need{},
		&chat.Dialog{},
		&chat.Message{},
		&story.Event{},
		&story.Progress{},
	)
	if err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}

// Health and lifecycle methods

func (g *GormStorage) Ping(ctx context.Context) error {
	sqlDB, err := g.db.DB()
	if err != nil {
		return fmt.Errorf("database handle unavailable: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	return nil
}

func (g *GormStorage) Close() error {
	sqlDB, err := g.db.DB()
	if err != nil {
		return err
	}
	if err := sqlDB.Close(); err != nil {
		g.logger.Error("Failed to close database connection", "error", err)
		return err
	}
	g.logger.Info("Database connection closed")
	return nil
}

// WaitForConnection waits for the database to become available (used during startup)
func (g *GormStorage) WaitForConnection(ctx context.Context) error {
	maxRetries := 30
	retryDelay := 2 * time.Second

	for i := 0; i < maxRetries; i++ {
		if err := g.Ping(ctx); err != nil {
			g.logger.Debug("Database not ready yet", "error", err, "attempt", i+1)

			select {
			case <-ctx.Done():
				return fmt.Errorf("context cancelled while waiting for database: %w", ctx.Err())
			case <-time.After(retryDelay):
				continue
			}
		}

		g.logger.Info("Database connection established")
		return nil
	}

	return fmt.Errorf("database did not become available after %d attempts", maxRetries)
}

func (g *GormStorage) Transaction(ctx context.Context, fn func(tx storage.Storage) error) error {
	return g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormStorage{db: tx, logger: g.logger})
	})
}

func isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value")
}
