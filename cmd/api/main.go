package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jwebster45206/companion-engine/internal/config"
	"github.com/jwebster45206/companion-engine/internal/engine"
	"github.com/jwebster45206/companion-engine/internal/handlers"
	"github.com/jwebster45206/companion-engine/internal/logger"
	"github.com/jwebster45206/companion-engine/internal/services"
	"github.com/jwebster45206/companion-engine/internal/services/events"
	"github.com/jwebster45206/companion-engine/internal/services/queue"
	"github.com/jwebster45206/companion-engine/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	log := logger.Setup(cfg, "api")

	log.Info("Starting Companion Engine API",
		"port", cfg.Port,
		"environment", cfg.Environment,
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
	promptQueue := queue.NewStoryEventQueue(queue.NewClientFromRedis(rdb, log), log)
	broadcaster := events.NewBroadcaster(rdb, log)

	storyService := engine.NewService(db, log, cfg.Story.MaxEventsPerCheck).
		WithQueue(promptQueue).
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

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	rt := &handlers.Router{
		Health: handlers.NewHealthHandler(db, redisService, log),
		Story:  handlers.NewStoryHandler(storyService, automation, db, log).WithPrompts(promptQueue),
		Cycles: handlers.NewCycleHandler(automation, log),
		Events: handlers.NewEventsHandler(rdb, log),
		Logger: log,
	}

	server := &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     rt.SetupRouter(),
		ReadTimeout: 15 * time.Second,
		// No WriteTimeout: the SSE endpoints hold the connection open
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		log.Info("Server starting", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Server is shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", "error", err)
	}

	log.Info("Server exited")
}

// lockOwner keeps the api's cycle lock token distinct from other binaries sharing WORKER_ID.
// An empty id leaves the automation service to pick a random owner.
func lockOwner(workerID string) string {
	if workerID == "" {
		return ""
	}
	return workerID + "-api"
}
