package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jwebster45206/companion-engine/pkg/character"
	"gorm.io/gorm"
)

// Character operations

func (g *GormStorage) GetCharacter(ctx context.Context, id uuid.UUID) (*character.Character, error) {
	var ch character.Character
	err := g.db.WithContext(ctx).First(&ch, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		g.logger.Error("Failed to load character", "character_id", id, "error", err)
		return nil, fmt.Errorf("failed to load character: %w", err)
	}
	return &ch, nil
}

func (g *GormStorage) ListActiveCharacters(ctx context.Context) ([]*character.Character, error) {
	var characters []*character.Character
	err := g.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("created_at asc").
		Find(&characters).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list active characters: %w", err)
	}
	return characters, nil
}

func (g *GormStorage) CreateCharacter(ctx context.Context, ch *character.Character) error {
	if err := g.db.WithContext(ctx).Create(ch).Error; err != nil {
		return fmt.Errorf("failed to create character: %w", err)
	}
	return nil
}

func (g *GormStorage) SaveCharacter(ctx context.Context, ch *character.Character) error {
	if err := g.db.WithContext(ctx).Save(ch).Error; err != nil {
		g.logger.Error("Failed to save character", "character_id", ch.ID, "error", err)
		return fmt.Errorf("failed to save character: %w", err)
	}
	return nil
}

// Need operations

func (g *GormStorage) ListActiveNeeds(ctx context.Context, characterID uuid.UUID) ([]*character.Need, error) {
	needs := []*character.Need{}
	err := g.db.WithContext(ctx).
		Where("character_id = ? AND is_active = ?", characterID, true).
		Order("type asc").
		Find(&needs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list needs: %w", err)
	}
	return needs, nil
}

func (g *GormStorage) CreateNeed(ctx context.Context, n *character.Need) error {
	if err := g.db.WithContext(ctx).Create(n).Error; err != nil {
		return fmt.Errorf("failed to create need: %w", err)
	}
	return nil
}

func (g *GormStorage) SaveNeed(ctx context.Context, n *character.Need) error {
	if err := g.db.WithContext(ctx).Save(n).Error; err != nil {
		g.logger.Error("Failed to save need", "need_id", n.ID, "need", n.Type, "error", err)
		return fmt.Errorf("failed to save need: %w", err)
	}
	return nil
}
