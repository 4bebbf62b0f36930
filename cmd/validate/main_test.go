package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jwebster45206/companion-engine/internal/engine"
	"github.com/jwebster45206/companion-engine/pkg/story"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReport_DefaultCatalog(t *testing.T) {
	c, err := engine.DefaultCatalog()
	require.NoError(t, err)

	var out bytes.Buffer
	assert.True(t, report(&out, "defaults", c))
	assert.Contains(t, out.String(), "Catalog is valid!")
	assert.Contains(t, out.String(), "first_meaningful_conversation")
}

func TestReport_Problems(t *testing.T) {
	c := &story.Catalog{Events: []story.Definition{
		{Name: "ok_event", EventType: story.EventTypeEmotional},
		{Name: "ok_event", EventType: story.EventTypeEmotional},
		{Name: "BadName", EventType: story.EventTypeEmotional},
	}}

	var out bytes.Buffer
	assert.False(t, report(&out, "broken", c))
	assert.Contains(t, out.String(), "BadName")
	assert.Contains(t, out.String(), "ok_event#2")
	assert.Contains(t, out.String(), "2 problem(s) found")
}

func TestReport_UntriggeredEvent(t *testing.T) {
	c := &story.Catalog{Events: []story.Definition{
		{Name: "always_on", EventType: story.EventTypeEmotional},
		{Name: "keyword_only", EventType: story.EventTypeEmotional, Triggers: story.TriggerSpec{SpecificKeyword: []string{"hi"}}},
	}}

	var out bytes.Buffer
	assert.True(t, report(&out, "mixed", c))
	assert.Equal(t, 1, strings.Count(out.String(), "no triggers, fires on every eligible scan"))
}

func TestLoadCatalog(t *testing.T) {
	dir := t.TempDir()

	good := filepath.Join(dir, "events.toml")
	require.NoError(t, os.WriteFile(good, []byte(`
[[events]]
name = "late_night_talk"
description = "A long conversation late at night."
event_type = "emotional"

[events.triggers]
conversation_length = 8
`), 0o644))

	c, err := loadCatalog(good)
	require.NoError(t, err)
	require.Len(t, c.Events, 1)
	assert.Equal(t, "late_night_talk", c.Events[0].Name)

	_, err = loadCatalog(filepath.Join(dir, "events.yaml"))
	assert.Error(t, err)

	_, err = loadCatalog(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)
}
