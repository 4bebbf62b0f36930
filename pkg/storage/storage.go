package storage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jwebster45206/companion-engine/pkg/character"
	"github.com/jwebster45206/companion-engine/pkg/chat"
	"github.com/jwebster45206/companion-engine/pkg/story"
)

// ErrDuplicateName is returned when a story event name is already taken
var ErrDuplicateName = errors.New("story event name already exists")

// Storage defines a unified interface for all persistence used by the story engine
type Storage interface {
	// Health and lifecycle
	Ping(ctx context.Context) error
	Close() error

	// Transaction runs fn against a transactional view of the storage.
	// If fn returns an error every write made through tx is rolled back.
	Transaction(ctx context.Context, fn func(tx Storage) error) error

	// Character operations
	// GetCharacter returns nil if the character doesn't exist
	GetCharacter(ctx context.Context, id uuid.UUID) (*character.Character, error)
	ListActiveCharacters(ctx context.Context) ([]*character.Character, error)
	CreateCharacter(ctx context.Context, ch *character.Character) error
	SaveCharacter(ctx context.Context, ch *character.Character) error

	// Need operations
	ListActiveNeeds(ctx context.Context, characterID uuid.UUID) ([]*character.Need, error)
	CreateNeed(ctx context.Context, n *character.Need) error
	SaveNeed(ctx context.Context, n *character.Need) error

	// Story event operations
	// ListActiveStoryEvents orders by priority (highest first), then creation time
	ListActiveStoryEvents(ctx context.Context) ([]*story.Event, error)
	// GetStoryEventByName returns nil if no event has that name
	GetStoryEventByName(ctx context.Context, name string) (*story.Event, error)
	// CreateStoryEvent returns ErrDuplicateName when the name is taken
	CreateStoryEvent(ctx context.Context, ev *story.Event) error

	// Progress operations
	CreateProgress(ctx context.Context, p *story.Progress) error
	// ListProgress returns the character's progress, newest first, with events loaded
	ListProgress(ctx context.Context, characterID uuid.UUID) ([]*story.Progress, error)
	// LatestCompletions maps event ID to the most recent completion time
	LatestCompletions(ctx context.Context, characterID uuid.UUID) (map[uuid.UUID]time.Time, error)

	// Dialog operations (read by the automation driver)
	// LastDialog returns nil if the character has no dialog
	LastDialog(ctx context.Context, characterID uuid.UUID) (*chat.Dialog, error)
	// RecentMessages returns up to limit messages, newest first
	RecentMessages(ctx context.Context, dialogID uuid.UUID, limit int) ([]chat.Message, error)
	CreateDialog(ctx context.Context, d *chat.Dialog) error
	CreateMessage(ctx context.Context, m *chat.Message) error
}
