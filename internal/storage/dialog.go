package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jwebster45206/companion-engine/pkg/chat"
	"gorm.io/gorm"
)

// Dialog operations

func (g *GormStorage) LastDialog(ctx context.Context, characterID uuid.UUID) (*chat.Dialog, error) {
	var d chat.Dialog
	err := g.db.WithContext(ctx).
		Where("character_id = ?", characterID).
		Order("updated_at desc").
		Order("created_at desc").
		First(&d).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load last dialog: %w", err)
	}
	return &d, nil
}

func (g *GormStorage) RecentMessages(ctx context.Context, dialogID uuid.UUID, limit int) ([]chat.Message, error) {
	var messages []chat.Message
	q := g.db.WithContext(ctx).
		Where("dialog_id = ?", dialogID).
		Order("created_at desc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&messages).Error; err != nil {
		return nil, fmt.Errorf("failed to load recent messages: %w", err)
	}
	return messages, nil
}

func (g *GormStorage) CreateDialog(ctx context.Context, d *chat.Dialog) error {
	if err := g.db.WithContext(ctx).Create(d).Error; err != nil {
		return fmt.Errorf("failed to create dialog: %w", err)
	}
	return nil
}

func (g *GormStorage) CreateMessage(ctx context.Context, m *chat.Message) error {
	if err := g.db.WithContext(ctx).Create(m).Error; err != nil {
		return fmt.Errorf("failed to create message: %w", err)
	}
	return nil
}
