package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jwebster45206/companion-engine/pkg/storage"
	"github.com/jwebster45206/companion-engine/pkg/story"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Story event operations

func (g *GormStorage) ListActiveStoryEvents(ctx context.Context) ([]*story.Event, error) {
	var events []*story.Event
	err := g.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("priority desc").
		Order("created_at asc").
		Order("name asc").
		Find(&events).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list active story events: %w", err)
	}
	return events, nil
}

func (g *GormStorage) GetStoryEventByName(ctx context.Context, name string) (*story.Event, error) {
	var ev story.Event
	err := g.db.WithContext(ctx).First(&ev, "name = ?", name).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load story event: %w", err)
	}
	return &ev, nil
}

func (g *GormStorage) CreateStoryEvent(ctx context.Context, ev *story.Event) error {
	if err := g.db.WithContext(ctx).Create(ev).Error; err != nil {
		if isDuplicateKey(err) {
			return fmt.Errorf("%w: %s", storage.ErrDuplicateName, ev.Name)
		}
		return fmt.Errorf("failed to create story event: %w", err)
	}
	return nil
}

// Progress operations

func (g *GormStorage) CreateProgress(ctx context.Context, p *story.Progress) error {
	if p.CompletedAt.IsZero() {
		p.CompletedAt = time.Now()
	}
	if err := g.db.WithContext(ctx).Omit(clause.Associations).Create(p).Error; err != nil {
		g.logger.Error("Failed to create story progress",
			"character_id", p.CharacterID,
			"event_id", p.EventID,
			"error", err)
		return fmt.Errorf("failed to create story progress: %w", err)
	}
	return nil
}

func (g *GormStorage) ListProgress(ctx context.Context, characterID uuid.UUID) ([]*story.Progress, error) {
	progress := []*story.Progress{}
	err := g.db.WithContext(ctx).
		Preload("Event").
		Where("character_id = ?", characterID).
		Order("completed_at desc").
		Find(&progress).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list story progress: %w", err)
	}
	return progress, nil
}

func (g *GormStorage) LatestCompletions(ctx context.Context, characterID uuid.UUID) (map[uuid.UUID]time.Time, error) {
	var rows []story.Progress
	err := g.db.WithContext(ctx).
		Select("event_id", "completed_at").
		Where("character_id = ?", characterID).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load completed story events: %w", err)
	}

	latest := make(map[uuid.UUID]time.Time, len(rows))
	for _, r := range rows {
		if r.CompletedAt.After(latest[r.EventID]) {
			latest[r.EventID] = r.CompletedAt
		}
	}
	return latest, nil
}
