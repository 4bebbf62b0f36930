package character

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// NeedType is the closed set of needs a character can have
type NeedType string

const (
	NeedAttention  NeedType = "ATTENTION"
	NeedConnection NeedType = "CONNECTION"
	NeedValidation NeedType = "VALIDATION"
	NeedSecurity   NeedType = "SECURITY"
	NeedFreedom    NeedType = "FREEDOM"
	NeedFun        NeedType = "FUN"
	NeedGrowth     NeedType = "GROWTH"
	NeedRest       NeedType = "REST"
)

// NeedTypes lists every known need type
var NeedTypes = []NeedType{
	NeedAttention,
	NeedConnection,
	NeedValidation,
	NeedSecurity,
	NeedFreedom,
	NeedFun,
	NeedGrowth,
	NeedRest,
}

// Valid reports whether n is a known need type
func (n NeedType) Valid() bool {
	for _, t := range NeedTypes {
		if t == n {
			return true
		}
	}
	return false
}

// ParseNeedType parses a need name; matching ignores case
func ParseNeedType(s string) (NeedType, error) {
	n := NeedType(strings.ToUpper(strings.TrimSpace(s)))
	if !n.Valid() {
		return "", fmt.Errorf("unknown need type: %q", s)
	}
	return n, nil
}

// UnmarshalText normalises and validates a need name during JSON and TOML decoding.
// An empty value decodes to the zero NeedType.
func (n *NeedType) UnmarshalText(text []byte) error {
	if len(text) == 0 {
		*n = ""
		return nil
	}
	parsed, err := ParseNeedType(string(text))
	if err != nil {
		return err
	}
	*n = parsed
	return nil
}

// Need is one of a character's needs and its current level
type Need struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	CharacterID  uuid.UUID `gorm:"type:uuid;not null;index" json:"character_id"`
	Type         NeedType  `gorm:"size:32;not null" json:"type"`
	CurrentValue int       `gorm:"not null" json:"current_value"`
	MaxValue     int       `gorm:"not null" json:"max_value"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// BeforeCreate assigns an ID when the caller did not
func (n *Need) BeforeCreate(tx *gorm.DB) error {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	return nil
}

// Adjust adds delta to the current value, clamped to [0, MaxValue]
func (n *Need) Adjust(delta int) {
	n.CurrentValue = Clamp(n.CurrentValue+delta, 0, n.MaxValue)
}
