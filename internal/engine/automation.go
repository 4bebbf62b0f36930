package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jwebster45206/companion-engine/internal/services"
	"github.com/jwebster45206/companion-engine/pkg/character"
	"github.com/jwebster45206/companion-engine/pkg/chat"
	"github.com/jwebster45206/companion-engine/pkg/storage"
	"github.com/jwebster45206/companion-engine/pkg/story"
	"go.uber.org/atomic"
)

const (
	// CycleLockKey guards automation cycles across processes
	CycleLockKey = "story-cycle-lock"

	defaultRecentMessages = 10
	defaultCycleLockTTL   = 15 * time.Minute
)

// CycleNotifier announces finished cycles
type CycleNotifier interface {
	PublishCycleCompleted(ctx context.Context, processed, triggered, failed int, duration time.Duration) error
}

// CycleSummary reports one automation cycle
type CycleSummary struct {
	Processed int           `json:"processed"`
	Triggered int           `json:"triggered"`
	Failed    int           `json:"failed"`
	Duration  time.Duration `json:"duration"`
}

// SeedResult lists which event names were created and which already existed
type SeedResult struct {
	Created []string `json:"created"`
	Skipped []string `json:"skipped"`
}

// AutomationService drives periodic story scans over every active character
type AutomationService struct {
	service        *Service
	storage        storage.Storage
	logger         *slog.Logger
	locker         services.Locker
	notifier       CycleNotifier
	owner          string
	recentMessages int
	lockTTL        time.Duration
	running        atomic.Bool
	now            func() time.Time
}

// NewAutomationService creates the automation driver around a story service
func NewAutomationService(svc *Service, st storage.Storage, logger *slog.Logger) *AutomationService {
	return &AutomationService{
		service:        svc,
		storage:        st,
		logger:         logger,
		owner:          fmt.Sprintf("automation-%s", uuid.New().String()[:8]),
		recentMessages: defaultRecentMessages,
		lockTTL:        defaultCycleLockTTL,
		now:            time.Now,
	}
}

// WithLocker enables the cross-process cycle lock
func (a *AutomationService) WithLocker(l services.Locker, owner string, ttl time.Duration) *AutomationService {
	a.locker = l
	if owner != "" {
		a.owner = owner
	}
	if ttl > 0 {
		a.lockTTL = ttl
	}
	return a
}

// WithNotifier sets where cycle summaries are published
func (a *AutomationService) WithNotifier(n CycleNotifier) *AutomationService {
	a.notifier = n
	return a
}

// WithRecentMessages sets how many messages are read to build a context
func (a *AutomationService) WithRecentMessages(n int) *AutomationService {
	if n > 0 {
		a.recentMessages = n
	}
	return a
}

// WithClock overrides the time source
func (a *AutomationService) WithClock(now func() time.Time) *AutomationService {
	a.now = now
	return a
}

// Running reports whether a cycle is in progress in this process
func (a *AutomationService) Running() bool {
	return a.running.Load()
}

// RunCycle scans every active character once. Overlapping calls, in this process or
// any other sharing the lock, return ErrCycleInProgress. The cycle is cut off when the
// lock TTL runs out.
func (a *AutomationService) RunCycle(ctx context.Context) (*CycleSummary, error) {
	if !a.running.CompareAndSwap(false, true) {
		a.logger.Warn("Story cycle skipped, previous cycle still running")
		return nil, ErrCycleInProgress
	}
	defer a.running.Store(false)

	if a.locker != nil {
		ok, err := a.locker.AcquireLock(ctx, CycleLockKey, a.owner, a.lockTTL)
		if err != nil {
			return nil, fmt.Errorf("failed to acquire cycle lock: %w", err)
		}
		if !ok {
			a.logger.Warn("Story cycle skipped, lock held by another worker", "owner", a.owner)
			return nil, ErrCycleInProgress
		}
		defer func() {
			if err := a.locker.ReleaseLock(context.WithoutCancel(ctx), CycleLockKey, a.owner); err != nil {
				a.logger.Error("Failed to release cycle lock", "error", err)
			}
		}()
	}

	// The cycle must not outlive the lock it holds
	ctx, cancel := context.WithTimeout(ctx, a.lockTTL)
	defer cancel()

	start := a.now()
	a.logger.Info("Story cycle started", "owner", a.owner)

	characters, err := a.storage.ListActiveCharacters(ctx)
	if err != nil {
		a.logger.Error("Failed to list active characters", "operation", "run_cycle", "error", err)
		return nil, fmt.Errorf("failed to list active characters: %w", err)
	}

	summary := &CycleSummary{}
	var cycleErr error
	for _, ch := range characters {
		if err := ctx.Err(); err != nil {
			cycleErr = fmt.Errorf("story cycle interrupted: %w", err)
			break
		}

		summary.Processed++
		triggered, err := a.processCharacter(ctx, ch)
		summary.Triggered += triggered
		if err != nil {
			summary.Failed++
			a.logger.Error("Story scan failed for character",
				"character_id", ch.ID.String(),
				"error", err)
		}
	}
	summary.Duration = a.now().Sub(start)

	a.logger.Info("Story cycle completed",
		"processed", summary.Processed,
		"triggered", summary.Triggered,
		"failed", summary.Failed,
		"duration", summary.Duration)

	if a.notifier != nil {
		if err := a.notifier.PublishCycleCompleted(context.WithoutCancel(ctx), summary.Processed, summary.Triggered, summary.Failed, summary.Duration); err != nil {
			a.logger.Error("Failed to publish cycle summary", "error", err)
		}
	}

	return summary, cycleErr
}

func (a *AutomationService) processCharacter(ctx context.Context, ch *character.Character) (int, error) {
	sc, err := a.BuildContext(ctx, ch)
	if err != nil {
		return 0, err
	}
	result, err := a.service.CheckAndTriggerEvents(ctx, sc)
	if err != nil {
		return result.Triggered(), err
	}
	return result.Triggered(), nil
}

// BuildContext assembles a scan context from the character's latest dialog
func (a *AutomationService) BuildContext(ctx context.Context, ch *character.Character) (*story.Context, error) {
	sc := &story.Context{Character: ch}

	dialog, err := a.storage.LastDialog(ctx, ch.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load last dialog: %w", err)
	}
	if dialog == nil {
		return sc, nil
	}

	messages, err := a.storage.RecentMessages(ctx, dialog.ID, a.recentMessages)
	if err != nil {
		return nil, fmt.Errorf("failed to load recent messages: %w", err)
	}

	sc.ConversationLength = len(messages)
	sc.LastUserMessage = chat.LastUserMessage(messages)
	if len(messages) > 0 {
		idle := a.now().Sub(messages[0].CreatedAt)
		if idle > 0 {
			sc.TimeSinceLastInteraction = int(idle.Minutes())
		}
	}
	return sc, nil
}

// InitializeDefaultEvents seeds the built-in catalog; names that already exist are skipped
func (a *AutomationService) InitializeDefaultEvents(ctx context.Context) (*SeedResult, error) {
	catalog, err := DefaultCatalog()
	if err != nil {
		return nil, err
	}

	result, err := a.seed(ctx, catalog.Events)
	if err != nil {
		return result, err
	}

	a.logger.Info("Default story events initialized",
		"created", len(result.Created),
		"skipped", len(result.Skipped))
	return result, nil
}

// CreatePersonalizedEvents creates the archetype-specific events for one character
func (a *AutomationService) CreatePersonalizedEvents(ctx context.Context, characterID uuid.UUID) (*SeedResult, error) {
	ch, err := a.storage.GetCharacter(ctx, characterID)
	if err != nil {
		return nil, fmt.Errorf("failed to load character: %w", err)
	}
	if ch == nil {
		return nil, fmt.Errorf("%w: %s", ErrCharacterNotFound, characterID)
	}

	defs := personalizedEvents(ch.Archetype, ch.ID.String()[:8])
	if len(defs) == 0 {
		a.logger.Info("No personalized events for archetype",
			"character_id", ch.ID.String(),
			"archetype", ch.Archetype)
		return &SeedResult{}, nil
	}

	result, err := a.seed(ctx, defs)
	if err != nil {
		return result, err
	}

	a.logger.Info("Personalized story events created",
		"character_id", ch.ID.String(),
		"archetype", ch.Archetype,
		"created", len(result.Created),
		"skipped", len(result.Skipped))
	return result, nil
}

func (a *AutomationService) seed(ctx context.Context, defs []story.Definition) (*SeedResult, error) {
	result := &SeedResult{}
	for _, def := range defs {
		_, err := a.service.CreateStoryEvent(ctx, def)
		switch {
		case err == nil:
			result.Created = append(result.Created, def.Name)
		case errors.Is(err, storage.ErrDuplicateName):
			a.logger.Warn("Story event already exists, skipping", "event", def.Name)
			result.Skipped = append(result.Skipped, def.Name)
		default:
			return result, fmt.Errorf("failed to seed story event %s: %w", def.Name, err)
		}
	}
	return result, nil
}

// TriggerEventForCharacter fires the named event for a character, ignoring its triggers
func (a *AutomationService) TriggerEventForCharacter(ctx context.Context, characterID uuid.UUID, eventName string) (*Firing, error) {
	ch, err := a.storage.GetCharacter(ctx, characterID)
	if err != nil {
		return nil, fmt.Errorf("failed to load character: %w", err)
	}
	if ch == nil {
		return nil, fmt.Errorf("%w: %s", ErrCharacterNotFound, characterID)
	}

	ev, err := a.storage.GetStoryEventByName(ctx, eventName)
	if err != nil {
		return nil, fmt.Errorf("failed to load story event: %w", err)
	}
	if ev == nil || !ev.IsActive {
		return nil, fmt.Errorf("%w: %s", ErrEventNotFound, eventName)
	}

	sc := &story.Context{
		Character:       ch,
		LastUserMessage: fmt.Sprintf("Manual trigger: %s", eventName),
	}
	firing, err := a.service.FireEvent(ctx, sc, ev)
	if err != nil {
		a.logger.Warn("Manual story trigger failed",
			"character_id", characterID.String(),
			"event", eventName,
			"error", err)
		return nil, err
	}
	return firing, nil
}
