package story

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/jwebster45206/companion-engine/pkg/character"
)

// PersonalityChange edits the character's trait list
type PersonalityChange struct {
	AddTrait    []string `json:"add_trait,omitempty" toml:"add_trait,omitempty"`
	RemoveTrait []string `json:"remove_trait,omitempty" toml:"remove_trait,omitempty"`
}

// NeedChange is an additive delta to one need
type NeedChange struct {
	Need  character.NeedType `json:"need" toml:"need"`
	Value int                `json:"value" toml:"value"`
}

// EffectSpec is the declarative effect of a story event.
// Every present field is applied; fields target disjoint state.
type EffectSpec struct {
	RelationshipChange      *int               `json:"relationship_change,omitempty" toml:"relationship_change,omitempty"`
	AffectionChange         *int               `json:"affection_change,omitempty" toml:"affection_change,omitempty"`
	EnergyChange            *int               `json:"energy_change,omitempty" toml:"energy_change,omitempty"`
	PersonalityChange       *PersonalityChange `json:"personality_change,omitempty" toml:"personality_change,omitempty"`
	NeedChange              []NeedChange       `json:"need_change,omitempty" toml:"need_change,omitempty"`
	RelationshipStageChange *int               `json:"relationship_stage_change,omitempty" toml:"relationship_stage_change,omitempty"`
	AddMemory               string             `json:"add_memory,omitempty" toml:"add_memory,omitempty"`
}

// State is what effects mutate
type State struct {
	Character *character.Character
	Needs     []*character.Need
	Outcome   Outcome
}

// Outcome summarises what applying effects changed
type Outcome struct {
	TouchedNeeds []*character.Need
	MissingNeeds []character.NeedType
	Memories     []string
	StageScore   int
	StageChanged bool
}

func (s *State) need(t character.NeedType) *character.Need {
	for _, n := range s.Needs {
		if n != nil && n.Type == t {
			return n
		}
	}
	return nil
}

func (s *State) touch(n *character.Need) {
	if !slices.Contains(s.Outcome.TouchedNeeds, n) {
		s.Outcome.TouchedNeeds = append(s.Outcome.TouchedNeeds, n)
	}
}

// Effect is one compiled mutation
type Effect interface {
	Kind() string
	Apply(s *State)
}

// TrustDelta shifts trust, clamped to [0,100]
type TrustDelta struct{ Delta int }

// AffectionDelta shifts affection, clamped to [0,100]
type AffectionDelta struct{ Delta int }

// EnergyDelta shifts energy, clamped to [0,100]
type EnergyDelta struct{ Delta int }

// TraitEdit adds and removes personality traits
type TraitEdit struct{ Add, Remove []string }

// NeedDelta shifts one need, clamped to [0, MaxValue]
type NeedDelta struct {
	Need  character.NeedType
	Delta int
}

// StageShift moves the stage score and recomputes the relationship stage
type StageShift struct{ Delta int }

// MemoryNote is handed to the memory subsystem; here it is only recorded
type MemoryNote struct{ Text string }

func (TrustDelta) Kind() string     { return "relationship_change" }
func (AffectionDelta) Kind() string { return "affection_change" }
func (EnergyDelta) Kind() string    { return "energy_change" }
func (TraitEdit) Kind() string      { return "personality_change" }
func (NeedDelta) Kind() string      { return "need_change" }
func (StageShift) Kind() string     { return "relationship_stage_change" }
func (MemoryNote) Kind() string     { return "add_memory" }

func (d TrustDelta) Apply(s *State) {
	s.Character.Trust = character.Clamp(s.Character.Trust+d.Delta, 0, 100)
}

func (d AffectionDelta) Apply(s *State) {
	s.Character.Affection = character.Clamp(s.Character.Affection+d.Delta, 0, 100)
}

func (d EnergyDelta) Apply(s *State) {
	s.Character.Energy = character.Clamp(s.Character.Energy+d.Delta, 0, 100)
}

func (e TraitEdit) Apply(s *State) {
	for _, trait := range e.Add {
		if trait == "" || s.Character.HasTrait(trait) {
			continue
		}
		s.Character.PersonalityTraits = append(s.Character.PersonalityTraits, trait)
	}
	if len(e.Remove) > 0 {
		s.Character.PersonalityTraits = slices.DeleteFunc(s.Character.PersonalityTraits, func(t string) bool {
			return slices.Contains(e.Remove, t)
		})
	}
}

func (d NeedDelta) Apply(s *State) {
	n := s.need(d.Need)
	if n == nil {
		s.Outcome.MissingNeeds = append(s.Outcome.MissingNeeds, d.Need)
		return
	}
	n.Adjust(d.Delta)
	s.touch(n)
}

func (d StageShift) Apply(s *State) {
	score := s.Character.RelationshipStage.Score() + d.Delta
	stage := character.StageForScore(score)
	s.Outcome.StageScore = score
	s.Outcome.StageChanged = stage != s.Character.RelationshipStage
	s.Character.RelationshipStage = stage
}

func (m MemoryNote) Apply(s *State) {
	s.Outcome.Memories = append(s.Outcome.Memories, m.Text)
}

// Effects compiles the EffectSpec into its effect list
func (e EffectSpec) Effects() []Effect {
	var effects []Effect
	if e.RelationshipChange != nil {
		effects = append(effects, TrustDelta{Delta: *e.RelationshipChange})
	}
	if e.AffectionChange != nil {
		effects = append(effects, AffectionDelta{Delta: *e.AffectionChange})
	}
	if e.EnergyChange != nil {
		effects = append(effects, EnergyDelta{Delta: *e.EnergyChange})
	}
	if e.PersonalityChange != nil {
		effects = append(effects, TraitEdit{Add: e.PersonalityChange.AddTrait, Remove: e.PersonalityChange.RemoveTrait})
	}
	for _, nc := range e.NeedChange {
		effects = append(effects, NeedDelta{Need: nc.Need, Delta: nc.Value})
	}
	if e.RelationshipStageChange != nil {
		effects = append(effects, StageShift{Delta: *e.RelationshipStageChange})
	}
	if strings.TrimSpace(e.AddMemory) != "" {
		effects = append(effects, MemoryNote{Text: e.AddMemory})
	}
	return effects
}

// ApplyEffects mutates ch and needs in place according to spec.
// Touched needs are reported in the outcome so the caller can persist them.
func ApplyEffects(ch *character.Character, needs []*character.Need, spec EffectSpec) Outcome {
	s := &State{Character: ch, Needs: needs}
	s.Outcome.StageScore = ch.RelationshipStage.Score()
	for _, effect := range spec.Effects() {
		effect.Apply(s)
	}
	return s.Outcome
}

// Validate checks need names and delta sizes
func (e EffectSpec) Validate() error {
	var errs []error
	checkDelta := func(name string, v *int) {
		if v != nil && (*v < -100 || *v > 100) {
			errs = append(errs, fmt.Errorf("%s %d out of range [-100,100]", name, *v))
		}
	}
	checkDelta("relationship_change", e.RelationshipChange)
	checkDelta("affection_change", e.AffectionChange)
	checkDelta("energy_change", e.EnergyChange)
	checkDelta("relationship_stage_change", e.RelationshipStageChange)
	for i, nc := range e.NeedChange {
		if !nc.Need.Valid() {
			errs = append(errs, fmt.Errorf("need_change[%d]: unknown need %q", i, nc.Need))
		}
	}
	if e.PersonalityChange != nil {
		for _, t := range e.PersonalityChange.AddTrait {
			if slices.Contains(e.PersonalityChange.RemoveTrait, t) {
				errs = append(errs, fmt.Errorf("personality_change: trait %q both added and removed", t))
			}
		}
	}
	return errors.Join(errs...)
}
