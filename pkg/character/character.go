package character

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Archetype selects the personalised story events a character receives
type Archetype string

const (
	ArchetypeNone      Archetype = ""
	ArchetypeCompanion Archetype = "companion"
	ArchetypeMentor    Archetype = "mentor"
	ArchetypeRebel     Archetype = "rebel"
)

// Character is an AI companion with relationship state toward its user
type Character struct {
	ID                uuid.UUID                   `gorm:"type:uuid;primaryKey" json:"id"`
	Name              string                      `gorm:"size:128;not null" json:"name"`
	Archetype         Archetype                   `gorm:"size:32" json:"archetype,omitempty"`
	Trust             int                         `gorm:"not null" json:"trust"`
	Affection         int                         `gorm:"not null" json:"affection"`
	Energy            int                         `gorm:"not null" json:"energy"`
	RelationshipStage RelationshipStage           `gorm:"size:32;not null" json:"relationship_stage"`
	PersonalityTraits datatypes.JSONSlice[string] `json:"personality_traits"`
	IsActive          bool                        `gorm:"index" json:"is_active"`
	CreatedAt         time.Time                   `json:"created_at"`
	UpdatedAt         time.Time                   `json:"updated_at"`
}

// BeforeCreate assigns an ID when the caller did not
func (c *Character) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	if c.RelationshipStage == "" {
		c.RelationshipStage = StageAcquaintance
	}
	return nil
}

// Clone returns a deep copy so effects can be applied speculatively
func (c *Character) Clone() *Character {
	if c == nil {
		return nil
	}
	cp := *c
	if c.PersonalityTraits != nil {
		cp.PersonalityTraits = append(datatypes.JSONSlice[string]{}, c.PersonalityTraits...)
	}
	return &cp
}

// HasTrait reports whether the trait is present (exact match)
func (c *Character) HasTrait(trait string) bool {
	for _, t := range c.PersonalityTraits {
		if t == trait {
			return true
		}
	}
	return false
}

// Clamp limits v to [lo, hi]
func Clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
