package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// storyEventPrefix marks each queued prompt when the queue is rendered for a chat turn
const storyEventPrefix = "STORY EVENT: "

// StoryEventQueue holds the story prompts waiting to be woven into a character's next reply
type StoryEventQueue struct {
	client *Client
	logger *slog.Logger
}

// NewStoryEventQueue creates a new story event queue service
func NewStoryEventQueue(client *Client, logger *slog.Logger) *StoryEventQueue {
	return &StoryEventQueue{
		client: client,
		logger: logger,
	}
}

// queueKey returns the Redis key for a character's story event queue
func (seq *StoryEventQueue) queueKey(characterID uuid.UUID) string {
	return fmt.Sprintf("story-events:%s", characterID.String())
}

// Enqueue adds a story event prompt to the end of the character's queue
func (seq *StoryEventQueue) Enqueue(ctx context.Context, characterID uuid.UUID, eventPrompt string) error {
	key := seq.queueKey(characterID)

	if err := seq.client.rdb.RPush(ctx, key, eventPrompt).Err(); err != nil {
		seq.logger.Error("Failed to enqueue story event",
			"error", err,
			"character_id", characterID.String(),
			"key", key)
		return fmt.Errorf("failed to enqueue story event: %w", err)
	}

	seq.logger.Debug("Enqueued story event",
		"character_id", characterID.String(),
		"prompt_preview", truncate(eventPrompt, 50))

	return nil
}

// Dequeue removes and returns all story events for a character
func (seq *StoryEventQueue) Dequeue(ctx context.Context, characterID uuid.UUID) ([]string, error) {
	key := seq.queueKey(characterID)

	var lrange *redis.StringSliceCmd
	_, err := seq.client.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		lrange = pipe.LRange(ctx, key, 0, -1)
		pipe.Del(ctx, key)
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		seq.logger.Error("Failed to dequeue story events",
			"error", err,
			"character_id", characterID.String(),
			"key", key)
		return nil, fmt.Errorf("failed to dequeue story events: %w", err)
	}

	events := lrange.Val()
	if len(events) > 0 {
		seq.logger.Debug("Dequeued story events",
			"character_id", characterID.String(),
			"count", len(events))
	}

	return events, nil
}

// Peek returns up to limit story events without removing them; limit <= 0 returns all
func (seq *StoryEventQueue) Peek(ctx context.Context, characterID uuid.UUID, limit int) ([]string, error) {
	key := seq.queueKey(characterID)

	end := int64(limit - 1)
	if limit <= 0 {
		end = -1
	}

	events, err := seq.client.rdb.LRange(ctx, key, 0, end).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		seq.logger.Error("Failed to peek story events",
			"error", err,
			"character_id", characterID.String(),
			"key", key)
		return nil, fmt.Errorf("failed to peek story events: %w", err)
	}

	return events, nil
}

// Clear removes all story events for a character
func (seq *StoryEventQueue) Clear(ctx context.Context, characterID uuid.UUID) error {
	key := seq.queueKey(characterID)

	if err := seq.client.rdb.Del(ctx, key).Err(); err != nil {
		seq.logger.Error("Failed to clear story event queue",
			"error", err,
			"character_id", characterID.String(),
			"key", key)
		return fmt.Errorf("failed to clear story event queue: %w", err)
	}

	seq.logger.Debug("Cleared story event queue", "character_id", characterID.String())
	return nil
}

// Depth returns the number of story events queued for a character
func (seq *StoryEventQueue) Depth(ctx context.Context, characterID uuid.UUID) (int, error) {
	key := seq.queueKey(characterID)

	count, err := seq.client.rdb.LLen(ctx, key).Result()
	if err != nil {
		seq.logger.Error("Failed to get story event queue depth",
			"error", err,
			"character_id", characterID.String(),
			"key", key)
		return 0, fmt.Errorf("failed to get queue depth: %w", err)
	}

	return int(count), nil
}

// FormatEvents renders prompts as one block for a chat turn, in queue order
func FormatEvents(events []string) string {
	if len(events) == 0 {
		return ""
	}

	parts := make([]string, len(events))
	for i, event := range events {
		parts[i] = storyEventPrefix + event
	}
	return strings.Join(parts, "\n\n")
}

// truncate truncates a string to maxLen bytes
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
