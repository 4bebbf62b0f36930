package handlers

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/jwebster45206/companion-engine/internal/services/events"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupEventsServer(t *testing.T, keepalive time.Duration) (*httptest.Server, *events.Broadcaster) {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	logger := testLogger()
	h := NewEventsHandler(rdb, logger)
	h.keepalive = keepalive
	rt := &Router{Events: h, Logger: logger}

	srv := httptest.NewServer(rt.SetupRouter())
	t.Cleanup(srv.Close)
	return srv, events.NewBroadcaster(rdb, logger)
}

// readEvent returns the next "event:" name and its data line, skipping comments.
func readEvent(t *testing.T, r *bufio.Reader) (string, string) {
	t.Helper()

	var name, data string
	for {
		line, err := r.ReadString('\n')
		require.NoError(t, err)
		line = strings.TrimRight(line, "\n")
		switch {
		case strings.HasPrefix(line, "event: "):
			name = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			data = strings.TrimPrefix(line, "data: ")
		case line == "" && name != "":
			return name, data
		}
	}
}

func openStream(t *testing.T, url string) (*http.Response, context.CancelFunc) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp, cancel
}

func TestEventsHandler_StreamCharacter(t *testing.T) {
	srv, broadcaster := setupEventsServer(t, time.Minute)
	id := uuid.New()

	resp, cancel := openStream(t, srv.URL+"/v1/events/characters/"+id.String())
	defer cancel()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	name, data := readEvent(t, reader)
	assert.Equal(t, "connected", name)
	assert.Contains(t, data, id.String())

	// Events for other characters are not forwarded.
	require.NoError(t, broadcaster.PublishEventFired(context.Background(), uuid.New(), "other_event", "emotional", ""))
	require.NoError(t, broadcaster.PublishEventFired(context.Background(), id, "warm_greeting", "relationship", "A warm hello."))

	name, data = readEvent(t, reader)
	assert.Equal(t, string(events.EventTypeStoryEventFired), name)
	assert.Contains(t, data, "warm_greeting")
	assert.Contains(t, data, "A warm hello.")
}

func TestEventsHandler_StreamCycles(t *testing.T) {
	srv, broadcaster := setupEventsServer(t, time.Minute)

	resp, cancel := openStream(t, srv.URL+"/v1/events/cycles")
	defer cancel()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	reader := bufio.NewReader(resp.Body)
	name, _ := readEvent(t, reader)
	assert.Equal(t, "connected", name)

	require.NoError(t, broadcaster.PublishCycleCompleted(context.Background(), 4, 2, 1, 1500*time.Millisecond))

	name, data := readEvent(t, reader)
	assert.Equal(t, string(events.EventTypeStoryCycleCompleted), name)
	assert.Contains(t, data, `"processed":4`)
}

func TestEventsHandler_Keepalive(t *testing.T) {
	srv, _ := setupEventsServer(t, 20*time.Millisecond)

	resp, cancel := openStream(t, srv.URL+"/v1/events/cycles")
	defer cancel()

	reader := bufio.NewReader(resp.Body)
	name, _ := readEvent(t, reader)
	require.Equal(t, "connected", name)

	line, err := reader.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, ": keepalive\n", line)
}

func TestEventsHandler_InvalidCharacterID(t *testing.T) {
	srv, _ := setupEventsServer(t, time.Minute)

	resp, err := http.Get(srv.URL + "/v1/events/characters/not-a-uuid")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
