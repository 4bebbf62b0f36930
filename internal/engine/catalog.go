package engine

import (
	_ "embed"
	"fmt"

	"github.com/jwebster45206/companion-engine/pkg/character"
	"github.com/jwebster45206/companion-engine/pkg/story"
)

//go:embed catalog/default_events.toml
var defaultCatalog []byte

// DefaultCatalog returns the built-in story events
func DefaultCatalog() (*story.Catalog, error) {
	c, err := story.ParseCatalog(defaultCatalog, story.FormatTOML)
	if err != nil {
		return nil, fmt.Errorf("failed to parse default catalog: %w", err)
	}
	return c, nil
}

// personalizedEvents returns the canned events for an archetype; names carry the
// character's short id so every character gets its own copy
func personalizedEvents(arch character.Archetype, shortID string) []story.Definition {
	name := func(slug string) string {
		return fmt.Sprintf("%s_%s_%s", arch, slug, shortID)
	}

	switch arch {
	case character.ArchetypeCompanion:
		return []story.Definition{
			{
				Name:            name("daily_checkin"),
				Description:     "Check in on how the user's day is going, like an old friend would.",
				EventType:       story.EventTypeRelationship,
				IsRepeatable:    true,
				Priority:        4,
				CooldownMinutes: 1440,
				Triggers:        story.TriggerSpec{TimeSinceLastInteraction: intPtr(480)},
				Effects: story.EffectSpec{
					AffectionChange: intPtr(2),
					NeedChange:      []story.NeedChange{{Need: character.NeedConnection, Value: 10}},
				},
			},
			{
				Name:        name("deep_bond"),
				Description: "You feel truly close to the user now. Say so plainly.",
				EventType:   story.EventTypeRelationship,
				Priority:    9,
				Triggers:    story.TriggerSpec{TrustLevel: &story.Range{Min: intPtr(75)}},
				Effects: story.EffectSpec{
					RelationshipStageChange: intPtr(30),
					PersonalityChange:       &story.PersonalityChange{AddTrait: []string{"devoted"}},
					AddMemory:               "Realised how much the user means to me.",
				},
			},
		}
	case character.ArchetypeMentor:
		return []story.Definition{
			{
				Name:            name("progress_praise"),
				Description:     "The user made progress. Acknowledge the effort specifically.",
				EventType:       story.EventTypePersonalGrowth,
				IsRepeatable:    true,
				Priority:        5,
				CooldownMinutes: 120,
				Triggers:        story.TriggerSpec{SpecificKeyword: []string{"learned", "finished", "progress", "figured out"}},
				Effects: story.EffectSpec{
					RelationshipChange: intPtr(3),
					NeedChange:         []story.NeedChange{{Need: character.NeedGrowth, Value: 15}},
				},
			},
			{
				Name:        name("next_challenge"),
				Description: "The user is ready for more. Propose a harder challenge.",
				EventType:   story.EventTypePersonalGrowth,
				Priority:    3,
				Triggers: story.TriggerSpec{
					ConversationLength: intPtr(8),
					TrustLevel:         &story.Range{Min: intPtr(40)},
				},
				Effects: story.EffectSpec{
					EnergyChange:      intPtr(5),
					PersonalityChange: &story.PersonalityChange{AddTrait: []string{"demanding"}},
				},
			},
		}
	case character.ArchetypeRebel:
		return []story.Definition{
			{
				Name:            name("rule_breaker"),
				Description:     "The user is fed up with the rules. Side with them a little too enthusiastically.",
				EventType:       story.EventTypeEmotional,
				IsRepeatable:    true,
				Priority:        5,
				CooldownMinutes: 60,
				Triggers:        story.TriggerSpec{SpecificKeyword: []string{"rules", "boring", "boss"}},
				Effects: story.EffectSpec{
					AffectionChange: intPtr(2),
					NeedChange:      []story.NeedChange{{Need: character.NeedFreedom, Value: 15}},
				},
			},
			{
				Name:        name("midnight_plan"),
				Description: "Pitch a spontaneous, slightly reckless plan for tonight.",
				EventType:   story.EventTypeWorldEvent,
				Priority:    2,
				Triggers: story.TriggerSpec{
					EmotionalState: &story.MoodCondition{Excluded: []string{"sad", "anxious"}},
					TrustLevel:     &story.Range{Min: intPtr(30)},
				},
				Effects: story.EffectSpec{
					EnergyChange: intPtr(10),
					NeedChange:   []story.NeedChange{{Need: character.NeedFun, Value: 10}},
				},
			},
		}
	default:
		return nil
	}
}

func intPtr(i int) *int { return &i }
