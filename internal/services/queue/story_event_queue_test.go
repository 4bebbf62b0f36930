package queue

import (
	"context"
	"log/slog"
	"os"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
)

func setupTestRedis(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	client, err := NewClient("redis://"+mr.Addr(), logger)
	if err != nil {
		mr.Close()
		t.Fatalf("Failed to create queue client: %v", err)
	}

	return client, mr
}

func newTestQueue(t *testing.T) (*StoryEventQueue, *miniredis.Miniredis) {
	t.Helper()

	client, mr := setupTestRedis(t)
	t.Cleanup(func() {
		client.Close()
		mr.Close()
	})

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	return NewStoryEventQueue(client, logger), mr
}

func TestNewClient_InvalidURL(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	if _, err := NewClient("not-a-url", logger); err == nil {
		t.Error("Expected error for invalid redis URL")
	}
}

func TestStoryEventQueue_EnqueueAndDequeue(t *testing.T) {
	seq, _ := newTestQueue(t)
	ctx := context.Background()
	characterID := uuid.New()

	events := []string{
		"Mira feels a spark of trust after your conversation.",
		"Mira seems to need some attention.",
		"Mira made a good friend.",
	}

	for _, event := range events {
		if err := seq.Enqueue(ctx, characterID, event); err != nil {
			t.Fatalf("Failed to enqueue event: %v", err)
		}
	}

	depth, err := seq.Depth(ctx, characterID)
	if err != nil {
		t.Fatalf("Failed to get depth: %v", err)
	}
	if depth != len(events) {
		t.Errorf("Expected depth %d, got %d", len(events), depth)
	}

	dequeued, err := seq.Dequeue(ctx, characterID)
	if err != nil {
		t.Fatalf("Failed to dequeue events: %v", err)
	}
	if len(dequeued) != len(events) {
		t.Fatalf("Expected %d events, got %d", len(events), len(dequeued))
	}
	for i, event := range events {
		if dequeued[i] != event {
			t.Errorf("Event %d mismatch: expected %q, got %q", i, event, dequeued[i])
		}
	}

	depth, err = seq.Depth(ctx, characterID)
	if err != nil {
		t.Fatalf("Failed to get depth after dequeue: %v", err)
	}
	if depth != 0 {
		t.Errorf("Expected empty queue, got depth %d", depth)
	}
}

func TestStoryEventQueue_DequeueEmpty(t *testing.T) {
	seq, _ := newTestQueue(t)

	events, err := seq.Dequeue(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(events) != 0 {
		t.Errorf("Expected no events, got %d", len(events))
	}
}

func TestStoryEventQueue_Peek(t *testing.T) {
	seq, _ := newTestQueue(t)
	ctx := context.Background()
	characterID := uuid.New()

	events := []string{"Event 1", "Event 2", "Event 3"}
	for _, event := range events {
		seq.Enqueue(ctx, characterID, event)
	}

	peeked, err := seq.Peek(ctx, characterID, 0)
	if err != nil {
		t.Fatalf("Failed to peek: %v", err)
	}
	if len(peeked) != len(events) {
		t.Errorf("Expected %d events, got %d", len(events), len(peeked))
	}

	depth, _ := seq.Depth(ctx, characterID)
	if depth != len(events) {
		t.Errorf("Peek removed events: expected depth %d, got %d", len(events), depth)
	}

	peeked, err = seq.Peek(ctx, characterID, 2)
	if err != nil {
		t.Fatalf("Failed to peek with limit: %v", err)
	}
	if len(peeked) != 2 {
		t.Errorf("Expected 2 events, got %d", len(peeked))
	}
}

func TestStoryEventQueue_Clear(t *testing.T) {
	seq, _ := newTestQueue(t)
	ctx := context.Background()
	characterID := uuid.New()

	seq.Enqueue(ctx, characterID, "Event 1")
	seq.Enqueue(ctx, characterID, "Event 2")

	if err := seq.Clear(ctx, characterID); err != nil {
		t.Fatalf("Failed to clear: %v", err)
	}

	depth, _ := seq.Depth(ctx, characterID)
	if depth != 0 {
		t.Errorf("Expected empty queue after clear, got depth %d", depth)
	}
}

func TestFormatEvents(t *testing.T) {
	if got := FormatEvents(nil); got != "" {
		t.Errorf("Expected empty string for no events, got %q", got)
	}

	seq, _ := newTestQueue(t)
	ctx := context.Background()
	characterID := uuid.New()

	seq.Enqueue(ctx, characterID, "Mira opens up")
	seq.Enqueue(ctx, characterID, "Mira laughs")

	events, err := seq.Dequeue(ctx, characterID)
	if err != nil {
		t.Fatalf("Failed to dequeue events: %v", err)
	}

	expected := "STORY EVENT: Mira opens up\n\nSTORY EVENT: Mira laughs"
	if formatted := FormatEvents(events); formatted != expected {
		t.Errorf("Formatted events mismatch:\nExpected: %q\nGot: %q", expected, formatted)
	}
}

func TestStoryEventQueue_PerCharacterIsolation(t *testing.T) {
	seq, mr := newTestQueue(t)
	ctx := context.Background()
	first := uuid.New()
	second := uuid.New()

	seq.Enqueue(ctx, first, "First 1")
	seq.Enqueue(ctx, first, "First 2")
	seq.Enqueue(ctx, second, "Second 1")

	if !mr.Exists("story-events:" + first.String()) {
		t.Error("Expected queue key story-events:<character id>")
	}

	depth1, _ := seq.Depth(ctx, first)
	depth2, _ := seq.Depth(ctx, second)
	if depth1 != 2 {
		t.Errorf("First character expected depth 2, got %d", depth1)
	}
	if depth2 != 1 {
		t.Errorf("Second character expected depth 1, got %d", depth2)
	}

	seq.Dequeue(ctx, first)
	depth2After, _ := seq.Depth(ctx, second)
	if depth2After != 1 {
		t.Errorf("Second character depth changed after draining first: got %d", depth2After)
	}
}

func TestStoryEventQueue_EnqueueFailsWhenRedisDown(t *testing.T) {
	seq, mr := newTestQueue(t)
	mr.Close()

	if err := seq.Enqueue(context.Background(), uuid.New(), "lost"); err == nil {
		t.Error("Expected enqueue error with redis down")
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 10); got != "short" {
		t.Errorf("Expected unchanged string, got %q", got)
	}
	if got := truncate("abcdefghij", 4); got != "abcd..." {
		t.Errorf("Expected truncated string, got %q", got)
	}
}
