package story

import (
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// EventType categorises a story event
type EventType string

const (
	EventTypeRelationship    EventType = "relationship"
	EventTypePersonalGrowth  EventType = "personal_growth"
	EventTypeWorldEvent      EventType = "world_event"
	EventTypeUserInteraction EventType = "user_interaction"
	EventTypeEmotional       EventType = "emotional"
	EventTypeNeedFulfillment EventType = "need_fulfillment"
)

// EventTypes lists every known event type
var EventTypes = []EventType{
	EventTypeRelationship,
	EventTypePersonalGrowth,
	EventTypeWorldEvent,
	EventTypeUserInteraction,
	EventTypeEmotional,
	EventTypeNeedFulfillment,
}

// Valid reports whether t is a known event type
func (t EventType) Valid() bool {
	for _, et := range EventTypes {
		if et == t {
			return true
		}
	}
	return false
}

// Event is a named, reusable story rule: when Triggers hold, Effects are applied
type Event struct {
	ID              uuid.UUID                       `gorm:"type:uuid;primaryKey" json:"id"`
	Name            string                          `gorm:"size:128;not null;uniqueIndex" json:"name"`
	Description     string                          `gorm:"type:text" json:"description"`
	EventType       EventType                       `gorm:"size:32;not null" json:"event_type"`
	Triggers        datatypes.JSONType[TriggerSpec] `json:"triggers"`
	Effects         datatypes.JSONType[EffectSpec]  `json:"effects"`
	IsActive        bool                            `gorm:"index" json:"is_active"`
	IsRepeatable    bool                            `json:"is_repeatable"`
	Priority        int                             `json:"priority"`
	CooldownMinutes int                             `json:"cooldown_minutes"`
	CreatedAt       time.Time                       `json:"created_at"`
	UpdatedAt       time.Time                       `json:"updated_at"`
}

func (Event) TableName() string { return "story_events" }

// BeforeCreate assigns an ID when the caller did not
func (e *Event) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}

// TriggerSpec returns the decoded trigger spec
func (e *Event) TriggerSpec() TriggerSpec { return e.Triggers.Data() }

// EffectSpec returns the decoded effect spec
func (e *Event) EffectSpec() EffectSpec { return e.Effects.Data() }

// InCooldown reports whether a repeatable event last completed at lastCompleted
// may not fire again at now
func (e *Event) InCooldown(lastCompleted, now time.Time) bool {
	if e.CooldownMinutes <= 0 || lastCompleted.IsZero() {
		return false
	}
	return now.Sub(lastCompleted) < time.Duration(e.CooldownMinutes)*time.Minute
}

var eventNamePattern = regexp.MustCompile(`^[a-z0-9]+(_[a-z0-9]+)*$`)

// ValidName reports whether name is lowercase snake_case
func ValidName(name string) bool {
	return eventNamePattern.MatchString(name)
}

// Definition is the catalog/API shape of a story event before it is persisted
type Definition struct {
	Name            string      `json:"name" toml:"name"`
	Description     string      `json:"description" toml:"description"`
	EventType       EventType   `json:"event_type" toml:"event_type"`
	Triggers        TriggerSpec `json:"triggers" toml:"triggers"`
	Effects         EffectSpec  `json:"effects" toml:"effects"`
	IsRepeatable    bool        `json:"is_repeatable" toml:"is_repeatable"`
	Priority        int         `json:"priority" toml:"priority"`
	CooldownMinutes int         `json:"cooldown_minutes" toml:"cooldown_minutes"`
}

// Validate checks the definition and returns every problem found, joined
func (d Definition) Validate() error {
	var errs []error
	if !ValidName(d.Name) {
		errs = append(errs, fmt.Errorf("name %q must be lowercase snake_case", d.Name))
	}
	if d.EventType == "" {
		errs = append(errs, errors.New("event_type is required"))
	} else if !d.EventType.Valid() {
		errs = append(errs, fmt.Errorf("unknown event_type %q", d.EventType))
	}
	if d.CooldownMinutes < 0 {
		errs = append(errs, errors.New("cooldown_minutes cannot be negative"))
	}
	if err := d.Triggers.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("triggers: %w", err))
	}
	if err := d.Effects.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("effects: %w", err))
	}
	return errors.Join(errs...)
}

// ToEvent builds an active Event from the definition
func (d Definition) ToEvent() *Event {
	return &Event{
		Name:            d.Name,
		Description:     d.Description,
		EventType:       d.EventType,
		Triggers:        datatypes.NewJSONType(d.Triggers),
		Effects:         datatypes.NewJSONType(d.Effects),
		IsActive:        true,
		IsRepeatable:    d.IsRepeatable,
		Priority:        d.Priority,
		CooldownMinutes: d.CooldownMinutes,
	}
}

// Progress records that a character completed (fired) a story event
type Progress struct {
	ID          uuid.UUID         `gorm:"type:uuid;primaryKey" json:"id"`
	CharacterID uuid.UUID         `gorm:"type:uuid;not null;index:idx_progress_character,priority:1" json:"character_id"`
	EventID     uuid.UUID         `gorm:"type:uuid;not null;index" json:"event_id"`
	Event       *Event            `gorm:"foreignKey:EventID" json:"event,omitempty"`
	CompletedAt time.Time         `gorm:"not null;index:idx_progress_character,priority:2" json:"completed_at"`
	EventData   datatypes.JSONMap `json:"event_data"`
	CreatedAt   time.Time         `json:"created_at"`
}

func (Progress) TableName() string { return "character_story_progress" }

// BeforeCreate assigns an ID when the caller did not
func (p *Progress) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
