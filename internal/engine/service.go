package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jwebster45206/companion-engine/internal/logger"
	"github.com/jwebster45206/companion-engine/internal/services"
	"github.com/jwebster45206/companion-engine/pkg/character"
	"github.com/jwebster45206/companion-engine/pkg/storage"
	"github.com/jwebster45206/companion-engine/pkg/story"
	"github.com/jwebster45206/companion-engine/pkg/textfilter"
)

const (
	// DefaultMaxEventsPerCheck caps how many events one scan may fire
	DefaultMaxEventsPerCheck = 3

	// ActiveEventsCacheKey holds the JSON active event list when a cache is configured
	ActiveEventsCacheKey = "story-catalog:active"

	// ScanLockPrefix namespaces the per-character scan lock, e.g. story-scan:<id>
	ScanLockPrefix = "story-scan:"

	defaultEventCacheTTL = time.Minute
	defaultScanLockTTL   = 30 * time.Second
	scanLockRetry        = 25 * time.Millisecond
)

// PromptQueue receives the description of every fired event
type PromptQueue interface {
	Enqueue(ctx context.Context, characterID uuid.UUID, eventPrompt string) error
}

// EventPublisher announces fired events to live subscribers
type EventPublisher interface {
	PublishEventFired(ctx context.Context, characterID uuid.UUID, eventName, eventType, description string) error
}

// EventCache keeps the active event list between scans. Get returns "" on a miss.
type EventCache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Del(ctx context.Context, keys ...string) error
}

// Firing is one story event that fired during a scan
type Firing struct {
	Event    *story.Event    `json:"event"`
	Progress *story.Progress `json:"progress"`
	Outcome  story.Outcome   `json:"-"`
}

// ScanResult reports what a CheckAndTriggerEvents call did
type ScanResult struct {
	CharacterID uuid.UUID `json:"character_id"`
	Candidates  int       `json:"candidates"`
	Fired       []Firing  `json:"fired"`
	Capped      bool      `json:"capped"`
}

// Triggered returns the number of events fired
func (r *ScanResult) Triggered() int {
	if r == nil {
		return 0
	}
	return len(r.Fired)
}

// Service evaluates story events against a character's context and applies their effects
type Service struct {
	storage     storage.Storage
	logger      *slog.Logger
	maxPerCheck int
	queue       PromptQueue
	publisher   EventPublisher
	cache       EventCache
	cacheTTL    time.Duration
	locker      services.Locker
	scanLockTTL time.Duration
	now         func() time.Time

	scanMu   sync.Mutex
	scanning map[uuid.UUID]chan struct{}
}

// NewService creates a story service. maxPerCheck <= 0 selects DefaultMaxEventsPerCheck.
func NewService(st storage.Storage, logger *slog.Logger, maxPerCheck int) *Service {
	if maxPerCheck <= 0 {
		maxPerCheck = DefaultMaxEventsPerCheck
	}
	return &Service{
		storage:     st,
		logger:      logger,
		maxPerCheck: maxPerCheck,
		scanLockTTL: defaultScanLockTTL,
		now:         time.Now,
		scanning:    make(map[uuid.UUID]chan struct{}),
	}
}

// WithQueue sets the prompt queue fired events are pushed to
func (s *Service) WithQueue(q PromptQueue) *Service {
	s.queue = q
	return s
}

// WithPublisher sets the broadcaster fired events are announced on
func (s *Service) WithPublisher(p EventPublisher) *Service {
	s.publisher = p
	return s
}

// WithEventCache caches the active event list for ttl; ttl <= 0 means one minute.
// CreateStoryEvent invalidates it.
func (s *Service) WithEventCache(c EventCache, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = defaultEventCacheTTL
	}
	s.cache = c
	s.cacheTTL = ttl
	return s
}

// WithScanLock serializes scans of one character across processes. A scan waits up to
// ttl for the lock and is cut off once it has held the lock for ttl; ttl <= 0 means 30s.
func (s *Service) WithScanLock(l services.Locker, ttl time.Duration) *Service {
	s.locker = l
	if ttl > 0 {
		s.scanLockTTL = ttl
	}
	return s
}

// WithClock overrides the time source
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// MaxPerCheck returns the activation cap
func (s *Service) MaxPerCheck() int {
	return s.maxPerCheck
}

// CheckAndTriggerEvents fires every eligible event whose triggers hold for sc, up to the
// activation cap. sc.Character and sc.CurrentNeeds are updated as each firing commits.
func (s *Service) CheckAndTriggerEvents(ctx context.Context, sc *story.Context) (*ScanResult, error) {
	if sc == nil || sc.Character == nil {
		return nil, fmt.Errorf("%w: scan context has no character", ErrCharacterNotFound)
	}
	charID := sc.Character.ID
	log := logger.WithCharacter(s.logger, charID)

	ctx, unlock, err := s.lockCharacter(ctx, charID)
	if err != nil {
		log.Warn("Story scan not started", "operation", "check_and_trigger", "error", err)
		return nil, err
	}
	defer unlock()

	if err := s.refreshCharacter(ctx, sc); err != nil {
		log.Error("Failed to reload character", "operation", "check_and_trigger", "error", err)
		return nil, err
	}
	if err := s.loadNeeds(ctx, sc); err != nil {
		log.Error("Failed to load needs", "operation", "check_and_trigger", "error", err)
		return nil, err
	}

	events, err := s.activeEvents(ctx)
	if err != nil {
		log.Error("Failed to load story events", "operation", "check_and_trigger", "error", err)
		return nil, fmt.Errorf("failed to load story events: %w", err)
	}

	completed, err := s.storage.LatestCompletions(ctx, charID)
	if err != nil {
		log.Error("Failed to load story progress", "operation", "check_and_trigger", "error", err)
		return nil, fmt.Errorf("failed to load story progress: %w", err)
	}

	now := s.now()
	candidates := make([]*story.Event, 0, len(events))
	for _, ev := range events {
		if s.eligible(ev, completed, now) {
			candidates = append(candidates, ev)
		}
	}

	result := &ScanResult{CharacterID: charID, Candidates: len(candidates)}
	for _, ev := range candidates {
		if len(result.Fired) >= s.maxPerCheck {
			result.Capped = true
			break
		}

		if !story.TriggersMet(ev.TriggerSpec(), sc) {
			log.Debug("Story event triggers not met",
				"event", ev.Name,
				"clause", story.FailingClause(ev.TriggerSpec(), sc))
			continue
		}

		firing, err := s.fire(ctx, sc, ev)
		if err != nil {
			log.Error("Failed to fire story event", "operation", "check_and_trigger", "event", ev.Name, "error", err)
			return result, fmt.Errorf("failed to fire story event %s: %w", ev.Name, err)
		}
		result.Fired = append(result.Fired, *firing)
	}

	if len(result.Fired) > 0 {
		log.Info("Story events triggered",
			"count", len(result.Fired),
			"candidates", result.Candidates,
			"capped", result.Capped)
	}
	return result, nil
}

// FireEvent fires ev for sc without evaluating its triggers.
// Completed non-repeatable events and events in cooldown return ErrEventNotEligible.
func (s *Service) FireEvent(ctx context.Context, sc *story.Context, ev *story.Event) (*Firing, error) {
	if sc == nil || sc.Character == nil {
		return nil, fmt.Errorf("%w: scan context has no character", ErrCharacterNotFound)
	}
	if ev == nil || !ev.IsActive {
		return nil, ErrEventNotFound
	}

	ctx, unlock, err := s.lockCharacter(ctx, sc.Character.ID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	if err := s.refreshCharacter(ctx, sc); err != nil {
		return nil, err
	}
	if err := s.loadNeeds(ctx, sc); err != nil {
		return nil, err
	}

	completed, err := s.storage.LatestCompletions(ctx, sc.Character.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load story progress: %w", err)
	}
	if !s.eligible(ev, completed, s.now()) {
		return nil, fmt.Errorf("%w: %s", ErrEventNotEligible, ev.Name)
	}

	return s.fire(ctx, sc, ev)
}

// eligible reports whether ev may fire given the character's completion history
func (s *Service) eligible(ev *story.Event, completed map[uuid.UUID]time.Time, now time.Time) bool {
	last, done := completed[ev.ID]
	if !done {
		return true
	}
	if !ev.IsRepeatable {
		return false
	}
	return !ev.InCooldown(last, now)
}

// lockCharacter holds the character's scan slot in this process and, with a locker
// configured, the shared story-scan lock. The returned context ends when the shared
// lock's TTL runs out.
func (s *Service) lockCharacter(ctx context.Context, characterID uuid.UUID) (context.Context, func(), error) {
	s.scanMu.Lock()
	slot, ok := s.scanning[characterID]
	if !ok {
		slot = make(chan struct{}, 1)
		s.scanning[characterID] = slot
	}
	s.scanMu.Unlock()

	select {
	case slot <- struct{}{}:
	case <-ctx.Done():
		return ctx, nil, fmt.Errorf("%w: %w", ErrScanInProgress, ctx.Err())
	}
	release := func() { <-slot }

	if s.locker == nil {
		return ctx, release, nil
	}

	key := ScanLockPrefix + characterID.String()
	owner := uuid.New().String()
	if err := s.waitForLock(ctx, key, owner); err != nil {
		release()
		return ctx, nil, err
	}

	held, cancel := context.WithTimeout(ctx, s.scanLockTTL)
	return held, func() {
		cancel()
		if err := s.locker.ReleaseLock(context.WithoutCancel(ctx), key, owner); err != nil {
			s.logger.Error("Failed to release scan lock", "key", key, "error", err)
		}
		release()
	}, nil
}

// waitForLock polls the shared lock until it is acquired, ctx ends or the TTL passes
func (s *Service) waitForLock(ctx context.Context, key, owner string) error {
	deadline := time.NewTimer(s.scanLockTTL)
	defer deadline.Stop()
	for {
		ok, err := s.locker.AcquireLock(ctx, key, owner, s.scanLockTTL)
		if err != nil {
			return fmt.Errorf("failed to acquire scan lock: %w", err)
		}
		if ok {
			return nil
		}

		retry := time.NewTimer(scanLockRetry)
		select {
		case <-retry.C:
		case <-deadline.C:
			retry.Stop()
			return fmt.Errorf("%w: %s", ErrScanInProgress, key)
		case <-ctx.Done():
			retry.Stop()
			return fmt.Errorf("%w: %w", ErrScanInProgress, ctx.Err())
		}
	}
}

// refreshCharacter replaces sc.Character with the stored row so a scan never starts
// from state another scan has already moved past
func (s *Service) refreshCharacter(ctx context.Context, sc *story.Context) error {
	fresh, err := s.storage.GetCharacter(ctx, sc.Character.ID)
	if err != nil {
		return fmt.Errorf("failed to load character: %w", err)
	}
	if fresh == nil {
		return fmt.Errorf("%w: %s", ErrCharacterNotFound, sc.Character.ID)
	}
	*sc.Character = *fresh
	return nil
}

func (s *Service) loadNeeds(ctx context.Context, sc *story.Context) error {
	if sc.CurrentNeeds != nil {
		return nil
	}
	needs, err := s.storage.ListActiveNeeds(ctx, sc.Character.ID)
	if err != nil {
		return fmt.Errorf("failed to load needs: %w", err)
	}
	if needs == nil {
		needs = []*character.Need{}
	}
	sc.CurrentNeeds = needs
	return nil
}

// fire applies ev's effects to copies of the character and needs, persists them with a
// progress row in one transaction, and only then publishes the new state into sc.
func (s *Service) fire(ctx context.Context, sc *story.Context, ev *story.Event) (*Firing, error) {
	now := s.now()
	ch := sc.Character.Clone()
	needs := cloneNeeds(sc.CurrentNeeds)

	outcome := story.ApplyEffects(ch, needs, ev.EffectSpec())

	progress := &story.Progress{
		CharacterID: ch.ID,
		EventID:     ev.ID,
		CompletedAt: now,
		EventData: map[string]interface{}{
			"event":              ev.Name,
			"message":            sc.LastUserMessage,
			"relationship_stage": string(sc.Character.RelationshipStage),
			"trust":              sc.Character.Trust,
			"affection":          sc.Character.Affection,
			"timestamp":          now.UTC().Format(time.RFC3339),
		},
	}
	if keywords := ev.TriggerSpec().SpecificKeyword; len(keywords) > 0 {
		if matched := textfilter.NewKeywordMatcher(keywords).Matches(sc.LastUserMessage); len(matched) > 0 {
			progress.EventData["matched_keywords"] = matched
		}
	}

	err := s.storage.Transaction(ctx, func(tx storage.Storage) error {
		if err := tx.SaveCharacter(ctx, ch); err != nil {
			return err
		}
		for _, n := range outcome.TouchedNeeds {
			if err := tx.SaveNeed(ctx, n); err != nil {
				return err
			}
		}
		return tx.CreateProgress(ctx, progress)
	})
	if err != nil {
		return nil, err
	}

	*sc.Character = *ch
	sc.CurrentNeeds = needs

	log := logger.WithCharacter(s.logger, ch.ID).With("event", ev.Name)
	for _, memory := range outcome.Memories {
		log.Info("Story memory recorded", "memory", memory)
	}
	for _, missing := range outcome.MissingNeeds {
		log.Warn("Need change skipped, character has no such need", "need", missing)
	}
	if outcome.StageChanged {
		log.Info("Relationship stage changed", "stage", ch.RelationshipStage, "stage_score", outcome.StageScore)
	}
	log.Info("Story event fired", "event_type", ev.EventType)

	s.notify(ctx, ch.ID, ev)

	return &Firing{Event: ev, Progress: progress, Outcome: outcome}, nil
}

// notify pushes side-channel updates; failures never fail the firing
func (s *Service) notify(ctx context.Context, characterID uuid.UUID, ev *story.Event) {
	if s.queue != nil && ev.Description != "" {
		if err := s.queue.Enqueue(ctx, characterID, ev.Description); err != nil {
			s.logger.Error("Failed to enqueue story prompt",
				"character_id", characterID.String(),
				"event", ev.Name,
				"error", err)
		}
	}
	if s.publisher != nil {
		if err := s.publisher.PublishEventFired(ctx, characterID, ev.Name, string(ev.EventType), ev.Description); err != nil {
			s.logger.Error("Failed to publish story event",
				"character_id", characterID.String(),
				"event", ev.Name,
				"error", err)
		}
	}
}

// CreateStoryEvent validates def and stores it as an active event
func (s *Service) CreateStoryEvent(ctx context.Context, def story.Definition) (*story.Event, error) {
	if err := def.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidEvent, err)
	}

	ev := def.ToEvent()
	if err := s.storage.CreateStoryEvent(ctx, ev); err != nil {
		if errors.Is(err, storage.ErrDuplicateName) {
			return nil, err
		}
		s.logger.Error("Failed to create story event", "event", def.Name, "error", err)
		return nil, fmt.Errorf("failed to create story event: %w", err)
	}

	if s.cache != nil {
		if err := s.cache.Del(ctx, ActiveEventsCacheKey); err != nil {
			s.logger.Warn("Failed to invalidate story event cache", "error", err)
		}
	}

	s.logger.Info("Story event created", "event", ev.Name, "event_type", ev.EventType)
	return ev, nil
}

// GetCharacterStoryProgress returns the character's completed events, newest first
func (s *Service) GetCharacterStoryProgress(ctx context.Context, characterID uuid.UUID) ([]*story.Progress, error) {
	progress, err := s.storage.ListProgress(ctx, characterID)
	if err != nil {
		s.logger.Error("Failed to load story progress", "character_id", characterID.String(), "error", err)
		return nil, fmt.Errorf("failed to load story progress: %w", err)
	}
	return progress, nil
}

// ListActiveStoryEvents returns every active event in evaluation order
func (s *Service) ListActiveStoryEvents(ctx context.Context) ([]*story.Event, error) {
	events, err := s.activeEvents(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list story events: %w", err)
	}
	return events, nil
}

// activeEvents reads through the event cache. Cache failures fall back to storage.
func (s *Service) activeEvents(ctx context.Context) ([]*story.Event, error) {
	if s.cache != nil {
		raw, err := s.cache.Get(ctx, ActiveEventsCacheKey)
		switch {
		case err != nil:
			s.logger.Warn("Failed to read story event cache", "error", err)
		case raw != "":
			var events []*story.Event
			if err := json.Unmarshal([]byte(raw), &events); err == nil {
				return events, nil
			}
			s.logger.Warn("Discarding unreadable story event cache", "error", err)
		}
	}

	events, err := s.storage.ListActiveStoryEvents(ctx)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		data, err := json.Marshal(events)
		if err == nil {
			err = s.cache.Set(ctx, ActiveEventsCacheKey, string(data), s.cacheTTL)
		}
		if err != nil {
			s.logger.Warn("Failed to cache story events", "error", err)
		}
	}
	return events, nil
}

func cloneNeeds(needs []*character.Need) []*character.Need {
	out := make([]*character.Need, 0, len(needs))
	for _, n := range needs {
		if n == nil {
			continue
		}
		cp := *n
		out = append(out, &cp)
	}
	return out
}
