//go:build integration
// +build integration

package integration

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jwebster45206/companion-engine/internal/engine"
	"github.com/jwebster45206/companion-engine/internal/services"
	"github.com/jwebster45206/companion-engine/internal/services/events"
	"github.com/jwebster45206/companion-engine/internal/services/queue"
	gormstorage "github.com/jwebster45206/companion-engine/internal/storage"
	"github.com/jwebster45206/companion-engine/pkg/character"
	"github.com/jwebster45206/companion-engine/pkg/chat"
	"github.com/jwebster45206/companion-engine/pkg/story"
)

// stack is a story engine wired to real postgres and redis instances.
type stack struct {
	db         *gormstorage.GormStorage
	redis      *services.RedisService
	queue      *queue.StoryEventQueue
	automation *engine.AutomationService
	service    *engine.Service
}

func TestMain(m *testing.M) {
	fmt.Printf("Running Companion Engine Integration Tests\n")
	fmt.Printf("   Database: %s\n", getEnv("DATABASE_URL", "(unset)"))
	fmt.Printf("   Redis:    %s\n", getEnv("REDIS_URL", "redis://localhost:6379/0"))
	os.Exit(m.Run())
}

func setupStack(t *testing.T) *stack {
	t.Helper()

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL is not set")
	}
	timeout := time.Duration(getIntEnv("TEST_TIMEOUT_SECONDS", 30)) * time.Second
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelWarn}))

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	db, err := gormstorage.Open(gormstorage.DriverPostgres, dsn, logger)
	if err != nil {
		t.Fatalf("Failed to open postgres: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := db.WaitForConnection(ctx); err != nil {
		t.Fatalf("Postgres not reachable: %v", err)
	}
	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("Failed to migrate: %v", err)
	}

	rs, err := services.NewRedisService(getEnv("REDIS_URL", "redis://localhost:6379/0"), logger)
	if err != nil {
		t.Fatalf("Invalid REDIS_URL: %v", err)
	}
	t.Cleanup(func() { _ = rs.Close() })
	if err := rs.WaitForConnection(ctx); err != nil {
		t.Fatalf("Redis not reachable: %v", err)
	}

	rdb := rs.GetClient()
	q := queue.NewStoryEventQueue(queue.NewClientFromRedis(rdb, logger), logger)
	broadcaster := events.NewBroadcaster(rdb, logger)
	svc := engine.NewService(db, logger, 0).WithQueue(q).WithPublisher(broadcaster)
	automation := engine.NewAutomationService(svc, db, logger).
		WithLocker(rs, "integration-"+uuid.NewString()[:8], time.Minute).
		WithNotifier(broadcaster)

	return &stack{db: db, redis: rs, queue: q, automation: automation, service: svc}
}

// uniqueEvent suffixes the name so repeated runs against the same database don't collide.
func uniqueEvent(def story.Definition) story.Definition {
	def.Name = fmt.Sprintf("%s_%d", def.Name, time.Now().UnixNano())
	return def
}

func TestIntegration_CycleFiresAndQueues(t *testing.T) {
	s := setupStack(t)
	ctx := context.Background()

	ch := &character.Character{Name: "Integration", Trust: 55, Affection: 40, IsActive: true}
	if err := s.db.CreateCharacter(ctx, ch); err != nil {
		t.Fatalf("Failed to create character: %v", err)
	}
	dialog := &chat.Dialog{CharacterID: ch.ID, IsActive: true}
	if err := s.db.CreateDialog(ctx, dialog); err != nil {
		t.Fatalf("Failed to create dialog: %v", err)
	}
	if err := s.db.CreateMessage(ctx, &chat.Message{
		DialogID: dialog.ID,
		Role:     chat.ChatRoleUser,
		Content:  "I think I can tell you a secret now",
	}); err != nil {
		t.Fatalf("Failed to create message: %v", err)
	}
	t.Cleanup(func() { _ = s.queue.Clear(context.Background(), ch.ID) })

	rel := 4
	def := uniqueEvent(story.Definition{
		Name:        "shared_secret",
		Description: "The user is confiding in you. Treat it with care.",
		EventType:   story.EventTypeRelationship,
		Priority:    1000,
		Triggers:    story.TriggerSpec{SpecificKeyword: []string{"secret"}},
		Effects:     story.EffectSpec{RelationshipChange: &rel},
	})
	if _, err := s.service.CreateStoryEvent(ctx, def); err != nil {
		t.Fatalf("Failed to create story event: %v", err)
	}

	summary, err := s.automation.RunCycle(ctx)
	if err != nil {
		t.Fatalf("RunCycle failed: %v", err)
	}
	t.Logf("Cycle: processed=%d triggered=%d failed=%d in %v",
		summary.Processed, summary.Triggered, summary.Failed, summary.Duration)
	if summary.Triggered < 1 {
		t.Errorf("Expected at least one triggered event, got %d", summary.Triggered)
	}

	stored, err := s.db.GetCharacter(ctx, ch.ID)
	if err != nil || stored == nil {
		t.Fatalf("Failed to reload character: %v", err)
	}
	// Other active events in a shared database may also have fired.
	if stored.Trust < 59 {
		t.Errorf("Expected trust of at least 59, got %d", stored.Trust)
	}

	progress, err := s.service.GetCharacterStoryProgress(ctx, ch.ID)
	if err != nil {
		t.Fatalf("Failed to load progress: %v", err)
	}
	found := false
	for _, p := range progress {
		if p.Event != nil && p.Event.Name == def.Name {
			found = true
		}
	}
	if !found {
		t.Errorf("Expected progress for %s", def.Name)
	}

	prompts, err := s.queue.Dequeue(ctx, ch.ID)
	if err != nil {
		t.Fatalf("Failed to dequeue prompts: %v", err)
	}
	if len(prompts) == 0 || prompts[0] != def.Description {
		t.Errorf("Expected queued prompt %q, got %v", def.Description, prompts)
	}
}

func TestIntegration_CycleLockIsExclusive(t *testing.T) {
	s := setupStack(t)
	ctx := context.Background()

	ok, err := s.redis.AcquireLock(ctx, engine.CycleLockKey, "someone-else", time.Minute)
	if err != nil {
		t.Fatalf("Failed to take lock: %v", err)
	}
	if !ok {
		t.Skip("cycle lock is held by a running process")
	}
	defer func() { _ = s.redis.ReleaseLock(ctx, engine.CycleLockKey, "someone-else") }()

	if _, err := s.automation.RunCycle(ctx); err == nil {
		t.Error("Expected RunCycle to refuse while another process holds the lock")
	}
}

func getEnv(name, defaultValue string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return defaultValue
}

func getIntEnv(name string, defaultValue int) int {
	str := os.Getenv(name)
	if str == "" {
		return defaultValue
	}

	val, err := strconv.Atoi(str)
	if err != nil {
		return defaultValue
	}

	return val
}
