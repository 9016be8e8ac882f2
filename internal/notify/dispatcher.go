// internal/notify/dispatcher.go
// Fire-and-forget event emission toward the notification collaborator.
// Delivery is the dispatcher's problem; a failed dispatch never fails the
// mutation that produced the event.

package notify

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// Event types emitted by the engine
const (
	EventMatchCreated     = "match.created"
	EventSessionScheduled = "session.scheduled"
	EventSessionCompleted = "session.completed"
)

// Event is a single engine-emitted notification event
type Event struct {
	ID         string                 `json:"id"`
	Type       string                 `json:"type"`
	Payload    map[string]interface{} `json:"payload"`
	OccurredAt time.Time              `json:"occurred_at"`
}

// NewEvent stamps a payload with an id and timestamp
func NewEvent(eventType string, payload map[string]interface{}) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		Payload:    payload,
		OccurredAt: time.Now().UTC(),
	}
}

// Dispatcher hands events to the notification collaborator
type Dispatcher interface {
	Dispatch(ctx context.Context, event Event) error
}

// redisDispatcher publishes events as JSON on a Redis channel
type redisDispatcher struct {
	client  *redis.Client
	channel string
}

// NewRedisDispatcher creates a pub/sub backed dispatcher
func NewRedisDispatcher(client *redis.Client, channel string) Dispatcher {
	return &redisDispatcher{client: client, channel: channel}
}

func (d *redisDispatcher) Dispatch(ctx context.Context, event Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return d.client.Publish(ctx, d.channel, body).Err()
}

// logDispatcher logs events instead of delivering them. Used when Redis is
// not configured.
type logDispatcher struct{}

// NewLogDispatcher creates a log-only dispatcher
func NewLogDispatcher() Dispatcher {
	return logDispatcher{}
}

func (logDispatcher) Dispatch(_ context.Context, event Event) error {
	log.Printf("Event %s (%s): %v", event.Type, event.ID, event.Payload)
	return nil
}
