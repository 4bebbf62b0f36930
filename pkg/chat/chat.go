package chat

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	ChatRoleUser   = "user"      // Human side of the conversation
	ChatRoleAgent  = "assistant" // Character
	ChatRoleSystem = "system"    // Narrator or system
)

// Dialog is a conversation between a user and a character
type Dialog struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	CharacterID uuid.UUID `gorm:"type:uuid;not null;index" json:"character_id"`
	UserID      string    `gorm:"size:64;index" json:"user_id"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// BeforeCreate assigns an ID when the caller did not
func (d *Dialog) BeforeCreate(tx *gorm.DB) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	return nil
}

// Message is a single chat message within a dialog
type Message struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	DialogID  uuid.UUID `gorm:"type:uuid;not null;index:idx_message_dialog_time,priority:1" json:"dialog_id"`
	Role      string    `gorm:"size:16;not null" json:"role"` // "user", "assistant", "system"
	Content   string    `gorm:"type:text" json:"content"`
	CreatedAt time.Time `gorm:"index:idx_message_dialog_time,priority:2" json:"created_at"`
}

// BeforeCreate assigns an ID when the caller did not
func (m *Message) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}

// LastUserMessage returns the content of the newest user message.
// messages must be ordered newest first.
func LastUserMessage(messages []Message) string {
	for _, m := range messages {
		if m.Role == ChatRoleUser {
			return m.Content
		}
	}
	return ""
}
