package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// EventType represents the type of event being broadcast
type EventType string

const (
	EventTypeStoryEventFired     EventType = "story.event_fired"
	EventTypeStoryCycleCompleted EventType = "story.cycle_completed"
)

// CycleChannel carries one message per finished automation cycle
const CycleChannel = "story-cycles"

// CharacterChannel returns the pub/sub channel for a character's events
func CharacterChannel(characterID uuid.UUID) string {
	return fmt.Sprintf("character-events:%s", characterID.String())
}

// Event represents a generic event structure
type Event struct {
	Type        EventType              `json:"type"`
	CharacterID string                 `json:"character_id,omitempty"`
	Data        map[string]interface{} `json:"data,omitempty"`
}

// Broadcaster publishes events to Redis Pub/Sub for SSE distribution
type Broadcaster struct {
	redisClient *redis.Client
	logger      *slog.Logger
}

// NewBroadcaster creates a new event broadcaster
func NewBroadcaster(redisClient *redis.Client, logger *slog.Logger) *Broadcaster {
	return &Broadcaster{
		redisClient: redisClient,
		logger:      logger,
	}
}

// PublishEventFired announces that a story event completed for a character
func (b *Broadcaster) PublishEventFired(ctx context.Context, characterID uuid.UUID, eventName, eventType, description string) error {
	event := Event{
		Type:        EventTypeStoryEventFired,
		CharacterID: characterID.String(),
		Data: map[string]interface{}{
			"event":       eventName,
			"event_type":  eventType,
			"description": description,
		},
	}
	return b.publish(ctx, CharacterChannel(characterID), event)
}

// PublishCycleCompleted publishes the summary of an automation cycle
func (b *Broadcaster) PublishCycleCompleted(ctx context.Context, processed, triggered, failed int, duration time.Duration) error {
	event := Event{
		Type: EventTypeStoryCycleCompleted,
		Data: map[string]interface{}{
			"processed":   processed,
			"triggered":   triggered,
			"failed":      failed,
			"duration_ms": duration.Milliseconds(),
		},
	}
	return b.publish(ctx, CycleChannel, event)
}

func (b *Broadcaster) publish(ctx context.Context, channel string, event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		b.logger.Error("Failed to marshal event", "error", err, "event_type", event.Type)
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if err := b.redisClient.Publish(ctx, channel, data).Err(); err != nil {
		b.logger.Error("Failed to publish event", "error", err, "channel", channel)
		return fmt.Errorf("failed to publish event: %w", err)
	}

	b.logger.Debug("Event published",
		"channel", channel,
		"event_type", event.Type,
	)

	return nil
}
