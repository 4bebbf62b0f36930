package story

import (
	"testing"

	"github.com/jwebster45206/companion-engine/pkg/character"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleTOML = `
[[events]]
name = "first_hello"
description = "The character warms to a greeting."
event_type = "user_interaction"
priority = 2

[events.triggers]
specific_keyword = ["hello", "hi"]

[events.triggers.trust_level]
min = 50
max = 70

[events.triggers.need_value]
need = "ATTENTION"
max = 40

[events.effects]
relationship_change = 5
affection_change = 3

[[events.effects.need_change]]
need = "ATTENTION"
value = 20
`

func TestParseCatalog_TOML(t *testing.T) {
	c, err := ParseCatalog([]byte(sampleTOML), FormatTOML)
	require.NoError(t, err)
	require.Len(t, c.Events, 1)

	d := c.Events[0]
	assert.Equal(t, "first_hello", d.Name)
	assert.Equal(t, EventTypeUserInteraction, d.EventType)
	assert.Equal(t, 2, d.Priority)
	assert.Equal(t, []string{"hello", "hi"}, d.Triggers.SpecificKeyword)
	require.NotNil(t, d.Triggers.TrustLevel)
	assert.Equal(t, 50, *d.Triggers.TrustLevel.Min)
	assert.Equal(t, 70, *d.Triggers.TrustLevel.Max)
	require.NotNil(t, d.Triggers.NeedValue)
	assert.Equal(t, character.NeedAttention, d.Triggers.NeedValue.Need)
	assert.Nil(t, d.Triggers.NeedValue.Min)
	assert.Equal(t, 40, *d.Triggers.NeedValue.Max)
	assert.Equal(t, 5, *d.Effects.RelationshipChange)
	require.Len(t, d.Effects.NeedChange, 1)
	assert.Equal(t, 20, d.Effects.NeedChange[0].Value)

	assert.Empty(t, c.Validate())
}

func TestParseCatalog_JSON(t *testing.T) {
	data := `{"events":[{"name":"late_night","event_type":"emotional","triggers":{"time_since_last_interaction":120},"effects":{"energy_change":-5}}]}`
	c, err := ParseCatalog([]byte(data), FormatJSON)
	require.NoError(t, err)
	require.Len(t, c.Events, 1)
	assert.Equal(t, 120, *c.Events[0].Triggers.TimeSinceLastInteraction)
	assert.Equal(t, -5, *c.Events[0].Effects.EnergyChange)
}

func TestParseCatalog_UnknownKeys(t *testing.T) {
	_, err := ParseCatalog([]byte("[[events]]\nname = \"x\"\nbogus = 1\n"), FormatTOML)
	assert.Error(t, err)

	_, err = ParseCatalog([]byte(`{"events":[{"name":"x","bogus":1}]}`), FormatJSON)
	assert.Error(t, err)

	_, err = ParseCatalog([]byte(`{}`), "yaml")
	assert.Error(t, err)
}

func TestCatalog_Validate(t *testing.T) {
	c := &Catalog{Events: []Definition{
		{Name: "dup_name", EventType: EventTypeEmotional},
		{Name: "dup_name", EventType: EventTypeEmotional},
		{Name: "Bad Name", EventType: EventTypeEmotional},
		{Name: "no_type"},
	}}

	problems := c.Validate()
	assert.Len(t, problems, 3)
	assert.Contains(t, problems, "dup_name#2")
	assert.Contains(t, problems, "Bad Name")
	assert.Contains(t, problems, "no_type")
}

func TestFormatForPath(t *testing.T) {
	f, err := FormatForPath("catalog/default_events.toml")
	require.NoError(t, err)
	assert.Equal(t, FormatTOML, f)

	f, err = FormatForPath("events.JSON")
	require.NoError(t, err)
	assert.Equal(t, FormatJSON, f)

	_, err = FormatForPath("events.yaml")
	assert.Error(t, err)
}
