package story

import (
	"testing"

	"github.com/jwebster45206/companion-engine/pkg/character"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyEffects_Clamping(t *testing.T) {
	ch := &character.Character{Trust: 95, Affection: 5, Energy: 50, RelationshipStage: character.StageFriendship}

	ApplyEffects(ch, nil, EffectSpec{
		RelationshipChange: intPtr(10),
		AffectionChange:    intPtr(-10),
		EnergyChange:       intPtr(-60),
	})

	assert.Equal(t, 100, ch.Trust)
	assert.Equal(t, 0, ch.Affection)
	assert.Equal(t, 0, ch.Energy)
}

func TestApplyEffects_NeedChange(t *testing.T) {
	attention := &character.Need{Type: character.NeedAttention, CurrentValue: 30, MaxValue: 100}
	fun := &character.Need{Type: character.NeedFun, CurrentValue: 95, MaxValue: 100}
	ch := &character.Character{RelationshipStage: character.StageAcquaintance}

	outcome := ApplyEffects(ch, []*character.Need{attention, fun}, EffectSpec{
		NeedChange: []NeedChange{
			{Need: character.NeedAttention, Value: 20},
			{Need: character.NeedFun, Value: 20},
			{Need: character.NeedRest, Value: 5},
		},
	})

	assert.Equal(t, 50, attention.CurrentValue)
	assert.Equal(t, 100, fun.CurrentValue)
	require.Len(t, outcome.TouchedNeeds, 2)
	assert.Same(t, attention, outcome.TouchedNeeds[0])
	assert.Equal(t, []character.NeedType{character.NeedRest}, outcome.MissingNeeds)
}

func TestApplyEffects_NeedClampedAtZero(t *testing.T) {
	n := &character.Need{Type: character.NeedSecurity, CurrentValue: 10, MaxValue: 80}
	ApplyEffects(&character.Character{}, []*character.Need{n}, EffectSpec{
		NeedChange: []NeedChange{{Need: character.NeedSecurity, Value: -25}},
	})
	assert.Equal(t, 0, n.CurrentValue)
}

func TestApplyEffects_NeedTouchedOnce(t *testing.T) {
	n := &character.Need{Type: character.NeedFun, CurrentValue: 10, MaxValue: 100}
	outcome := ApplyEffects(&character.Character{}, []*character.Need{n}, EffectSpec{
		NeedChange: []NeedChange{
			{Need: character.NeedFun, Value: 5},
			{Need: character.NeedFun, Value: 5},
		},
	})
	assert.Equal(t, 20, n.CurrentValue)
	assert.Len(t, outcome.TouchedNeeds, 1)
}

func TestApplyEffects_StageShift(t *testing.T) {
	tests := []struct {
		name          string
		start         character.RelationshipStage
		delta         int
		expectedStage character.RelationshipStage
		expectedScore int
	}{
		{"friendship to romance", character.StageFriendship, 40, character.StageRomance, 70},
		{"friendship stays", character.StageFriendship, 5, character.StageFriendship, 35},
		{"acquaintance to commitment", character.StageAcquaintance, 80, character.StageCommitment, 90},
		{"romance down to friendship", character.StageRomance, -20, character.StageFriendship, 40},
		{"acquaintance floor", character.StageAcquaintance, -50, character.StageAcquaintance, -40},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ch := &character.Character{RelationshipStage: tt.start}
			outcome := ApplyEffects(ch, nil, EffectSpec{RelationshipStageChange: intPtr(tt.delta)})
			assert.Equal(t, tt.expectedStage, ch.RelationshipStage)
			assert.Equal(t, tt.expectedScore, outcome.StageScore)
			assert.Equal(t, tt.start != tt.expectedStage, outcome.StageChanged)
		})
	}
}

func TestApplyEffects_PersonalityChange(t *testing.T) {
	ch := &character.Character{PersonalityTraits: []string{"shy", "curious"}}

	ApplyEffects(ch, nil, EffectSpec{
		PersonalityChange: &PersonalityChange{
			AddTrait:    []string{"curious", "playful", "playful"},
			RemoveTrait: []string{"shy", "Curious"},
		},
	})

	assert.Equal(t, []string{"curious", "playful"}, []string(ch.PersonalityTraits))
}

func TestApplyEffects_MemoryIsRecordedOnly(t *testing.T) {
	ch := &character.Character{Trust: 40}
	outcome := ApplyEffects(ch, nil, EffectSpec{AddMemory: "First real conversation"})
	assert.Equal(t, []string{"First real conversation"}, outcome.Memories)
	assert.Equal(t, 40, ch.Trust)
}

func TestApplyEffects_EmptySpecChangesNothing(t *testing.T) {
	ch := &character.Character{Trust: 40, Affection: 41, Energy: 42, RelationshipStage: character.StageRomance}
	before := *ch
	outcome := ApplyEffects(ch, nil, EffectSpec{})
	assert.Equal(t, before, *ch)
	assert.Empty(t, outcome.TouchedNeeds)
	assert.Equal(t, 60, outcome.StageScore)
}

func TestEffectSpec_Validate(t *testing.T) {
	assert.NoError(t, EffectSpec{RelationshipChange: intPtr(5)}.Validate())
	assert.ErrorContains(t, EffectSpec{AffectionChange: intPtr(250)}.Validate(), "affection_change 250")
	assert.ErrorContains(t, EffectSpec{NeedChange: []NeedChange{{Need: "HUNGER", Value: 1}}}.Validate(), "unknown need")
	assert.ErrorContains(t, EffectSpec{PersonalityChange: &PersonalityChange{
		AddTrait:    []string{"bold"},
		RemoveTrait: []string{"bold"},
	}}.Validate(), "both added and removed")
}
