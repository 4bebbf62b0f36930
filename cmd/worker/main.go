package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jwebster45206/companion-engine/internal/config"
	"github.com/jwebster45206/companion-engine/internal/engine"
	"github.com/jwebster45206/companion-engine/internal/logger"
	"github.com/jwebster45206/companion-engine/internal/services"
	"github.com/jwebster45206/companion-engine/internal/services/events"
	"github.com/jwebster45206/companion-engine/internal/services/queue"
	"github.com/jwebster45206/companion-engine/internal/storage"
	"github.com/jwebster45206/companion-engine/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	log := logger.Setup(cfg, "worker")

	log.Info("Starting Companion Engine Worker",
		"environment", cfg.Environment,
		"schedule", cfg.Story.CycleSchedule,
		"database_driver", cfg.DatabaseDriver)

	db, err := storage.Open(cfg.DatabaseDriver, cfg.DatabaseURL, log)
	if err != nil {
		log.Error("Failed to open database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", "error", err)
		}
	}()

	startupCtx, startupCancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer startupCancel()

	if err := db.WaitForConnection(startupCtx); err != nil {
		log.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	if err := db.Migrate(startupCtx); err != nil {
		log.Error("Failed to migrate database", "error", err)
		os.Exit(1)
	}
	log.Info("Database connection established successfully")

	redisService, err := services.NewRedisService(cfg.RedisURL, log)
	if err != nil {
		log.Error("Invalid redis configuration", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisService.Close(); err != nil {
			log.Error("Error closing redis connection", "error", err)
		}
	}()
	if err := redisService.WaitForConnection(startupCtx); err != nil {
		log.Error("Failed to connect to redis", "error", err)
		os.Exit(1)
	}
	log.Info("Redis connection established successfully")

	rdb := redisService.GetClient()
	broadcaster := events.NewBroadcaster(rdb, log)

	storyService := engine.NewService(db, log, cfg.Story.MaxEventsPerCheck).
		WithQueue(queue.NewStoryEventQueue(queue.NewClientFromRedis(rdb, log), log)).
		WithPublisher(broadcaster).
		WithEventCache(redisService, 0).
		WithScanLock(redisService, 0)
	automation := engine.NewAutomationService(storyService, db, log).
		WithLocker(redisService, lockOwner(cfg.WorkerID), cfg.Story.CycleTimeout).
		WithNotifier(broadcaster).
		WithRecentMessages(cfg.Story.RecentMessages)

	if cfg.Story.SeedDefaults {
		if _, err := automation.InitializeDefaultEvents(startupCtx); err != nil {
			log.Error("Failed to seed default story events", "error", err)
			os.Exit(1)
		}
	}

	w, err := worker.New(automation, log, cfg.WorkerID, cfg.Story.CycleSchedule, cfg.Story.CycleTimeout)
	if err != nil {
		log.Error("Failed to create worker", "error", err)
		os.Exit(1)
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := w.Start(); err != nil {
			log.Error("Worker error", "error", err)
		}
	}()

	log.Info("Worker started", "worker_id", w.ID(), "next_cycle", w.Next())

	<-quit
	log.Info("Worker shutdown signal received")

	w.Stop()
	<-done

	log.Info("Worker exited")
}

// lockOwner keeps the worker's cycle lock token distinct from other binaries sharing WORKER_ID.
// An empty id leaves the automation service to pick a random owner.
func lockOwner(workerID string) string {
	if workerID == "" {
		return ""
	}
	return workerID + "-worker"
}
