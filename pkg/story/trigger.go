package story

import (
	"errors"
	"fmt"
	"slices"

	"github.com/jwebster45206/companion-engine/pkg/character"
	"github.com/jwebster45206/companion-engine/pkg/textfilter"
)

// Range is an inclusive numeric bound; either side may be omitted
type Range struct {
	Min *int `json:"min,omitempty" toml:"min,omitempty"`
	Max *int `json:"max,omitempty" toml:"max,omitempty"`
}

// Contains reports whether v lies within the bound
func (r Range) Contains(v int) bool {
	if r.Min != nil && v < *r.Min {
		return false
	}
	if r.Max != nil && v > *r.Max {
		return false
	}
	return true
}

func (r Range) validate(lo, hi int) error {
	if r.Min != nil && (*r.Min < lo || *r.Min > hi) {
		return fmt.Errorf("min %d out of range [%d,%d]", *r.Min, lo, hi)
	}
	if r.Max != nil && (*r.Max < lo || *r.Max > hi) {
		return fmt.Errorf("max %d out of range [%d,%d]", *r.Max, lo, hi)
	}
	if r.Min != nil && r.Max != nil && *r.Min > *r.Max {
		return fmt.Errorf("min %d greater than max %d", *r.Min, *r.Max)
	}
	return nil
}

// NeedRange bounds the current value of one need
type NeedRange struct {
	Need character.NeedType `json:"need" toml:"need"`
	Range
}

// MoodCondition restricts the detected mood
type MoodCondition struct {
	Required []string `json:"required,omitempty" toml:"required,omitempty"`
	Excluded []string `json:"excluded,omitempty" toml:"excluded,omitempty"`
}

// TriggerSpec is the declarative trigger of a story event.
// Every present field is a clause; all clauses must hold.
type TriggerSpec struct {
	RelationshipStage        *Range         `json:"relationship_stage,omitempty" toml:"relationship_stage,omitempty"`
	NeedValue                *NeedRange     `json:"need_value,omitempty" toml:"need_value,omitempty"`
	SpecificKeyword          []string       `json:"specific_keyword,omitempty" toml:"specific_keyword,omitempty"`
	TimeSinceLastInteraction *int           `json:"time_since_last_interaction,omitempty" toml:"time_since_last_interaction,omitempty"`
	ConversationLength       *int           `json:"conversation_length,omitempty" toml:"conversation_length,omitempty"`
	EmotionalState           *MoodCondition `json:"emotional_state,omitempty" toml:"emotional_state,omitempty"`
	TrustLevel               *Range         `json:"trust_level,omitempty" toml:"trust_level,omitempty"`
}

// Clause is one compiled trigger condition
type Clause interface {
	Kind() string
	Matches(c *Context) bool
}

// StageClause bounds the stage score of the character's relationship stage
type StageClause struct{ Bounds Range }

// NeedClause bounds one need; a need the context lacks fails the clause
type NeedClause struct {
	Need   character.NeedType
	Bounds Range
}

// KeywordClause holds when any keyword occurs in the last user message
type KeywordClause struct{ Matcher *textfilter.KeywordMatcher }

// IdleClause holds when the user has been away for at least Minutes
type IdleClause struct{ Minutes int }

// ConversationClause holds when the conversation has at least Messages messages
type ConversationClause struct{ Messages int }

// MoodClause restricts the detected mood
type MoodClause struct{ Required, Excluded []string }

// TrustClause bounds the character's trust
type TrustClause struct{ Bounds Range }

func (StageClause) Kind() string        { return "relationship_stage" }
func (NeedClause) Kind() string         { return "need_value" }
func (KeywordClause) Kind() string      { return "specific_keyword" }
func (IdleClause) Kind() string         { return "time_since_last_interaction" }
func (ConversationClause) Kind() string { return "conversation_length" }
func (MoodClause) Kind() string         { return "emotional_state" }
func (TrustClause) Kind() string        { return "trust_level" }

func (s StageClause) Matches(c *Context) bool {
	if c.Character == nil {
		return false
	}
	return s.Bounds.Contains(c.Character.RelationshipStage.Score())
}

func (n NeedClause) Matches(c *Context) bool {
	need := c.Need(n.Need)
	if need == nil {
		return false
	}
	return n.Bounds.Contains(need.CurrentValue)
}

func (k KeywordClause) Matches(c *Context) bool {
	return k.Matcher.MatchAny(c.LastUserMessage)
}

func (i IdleClause) Matches(c *Context) bool {
	return c.TimeSinceLastInteraction >= i.Minutes
}

func (cl ConversationClause) Matches(c *Context) bool {
	return c.ConversationLength >= cl.Messages
}

func (m MoodClause) Matches(c *Context) bool {
	mood := c.Mood()
	inList := func(list []string) bool {
		return slices.ContainsFunc(list, func(s string) bool {
			return textfilter.EqualFold(s, mood)
		})
	}
	if len(m.Required) > 0 && (mood == "" || !inList(m.Required)) {
		return false
	}
	if len(m.Excluded) > 0 && mood != "" && inList(m.Excluded) {
		return false
	}
	return true
}

func (t TrustClause) Matches(c *Context) bool {
	if c.Character == nil {
		return false
	}
	return t.Bounds.Contains(c.Character.Trust)
}

// Clauses compiles the TriggerSpec into its clause list, in evaluation order
func (t TriggerSpec) Clauses() []Clause {
	var clauses []Clause
	if t.RelationshipStage != nil {
		clauses = append(clauses, StageClause{Bounds: *t.RelationshipStage})
	}
	if t.NeedValue != nil {
		clauses = append(clauses, NeedClause{Need: t.NeedValue.Need, Bounds: t.NeedValue.Range})
	}
	if len(t.SpecificKeyword) > 0 {
		clauses = append(clauses, KeywordClause{Matcher: textfilter.NewKeywordMatcher(t.SpecificKeyword)})
	}
	if t.TimeSinceLastInteraction != nil {
		clauses = append(clauses, IdleClause{Minutes: *t.TimeSinceLastInteraction})
	}
	if t.ConversationLength != nil {
		clauses = append(clauses, ConversationClause{Messages: *t.ConversationLength})
	}
	if t.EmotionalState != nil {
		clauses = append(clauses, MoodClause{Required: t.EmotionalState.Required, Excluded: t.EmotionalState.Excluded})
	}
	if t.TrustLevel != nil {
		clauses = append(clauses, TrustClause{Bounds: *t.TrustLevel})
	}
	return clauses
}

// IsEmpty reports whether the TriggerSpec has no clauses
func (t TriggerSpec) IsEmpty() bool {
	return len(t.Clauses()) == 0
}

// TriggersMet evaluates every clause of spec against the context and
// stops at the first failing one. An empty spec always holds.
func TriggersMet(spec TriggerSpec, c *Context) bool {
	for _, clause := range spec.Clauses() {
		if !clause.Matches(c) {
			return false
		}
	}
	return true
}

// FailingClause returns the kind of the first clause that does not hold, or ""
func FailingClause(spec TriggerSpec, c *Context) string {
	for _, clause := range spec.Clauses() {
		if !clause.Matches(c) {
			return clause.Kind()
		}
	}
	return ""
}

// Validate checks bounds and need names
func (t TriggerSpec) Validate() error {
	var errs []error
	if t.RelationshipStage != nil {
		if err := t.RelationshipStage.validate(0, 100); err != nil {
			errs = append(errs, fmt.Errorf("relationship_stage: %w", err))
		}
	}
	if t.NeedValue != nil {
		if !t.NeedValue.Need.Valid() {
			errs = append(errs, fmt.Errorf("need_value: unknown need %q", t.NeedValue.Need))
		}
		if err := t.NeedValue.validate(0, 1000); err != nil {
			errs = append(errs, fmt.Errorf("need_value: %w", err))
		}
	}
	if t.SpecificKeyword != nil && textfilter.NewKeywordMatcher(t.SpecificKeyword).Empty() {
		errs = append(errs, errors.New("specific_keyword: no usable keywords"))
	}
	if t.TimeSinceLastInteraction != nil && *t.TimeSinceLastInteraction < 0 {
		errs = append(errs, errors.New("time_since_last_interaction cannot be negative"))
	}
	if t.ConversationLength != nil && *t.ConversationLength < 0 {
		errs = append(errs, errors.New("conversation_length cannot be negative"))
	}
	if t.TrustLevel != nil {
		if err := t.TrustLevel.validate(0, 100); err != nil {
			errs = append(errs, fmt.Errorf("trust_level: %w", err))
		}
	}
	return errors.Join(errs...)
}
