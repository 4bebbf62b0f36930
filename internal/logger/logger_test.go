package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_ProductionIsJSON(t *testing.T) {
	var buf bytes.Buffer
	id := uuid.New()

	log := WithCharacter(WithRequestID(New(&buf, "production", slog.LevelInfo), "req-1"), id)
	log.Info("Story event fired", "event", "warm_greeting")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "Story event fired", entry["msg"])
	assert.Equal(t, "req-1", entry["request_id"])
	assert.Equal(t, id.String(), entry["character_id"])
	assert.Equal(t, "warm_greeting", entry["event"])
}

func TestNew_TextAndLevel(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "development", slog.LevelWarn)

	log.Info("hidden")
	log.Warn("shown")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.True(t, strings.Contains(out, "msg=shown"), out)
}
