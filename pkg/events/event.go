package events

import (
	"strings"
	"time"
)

// Event is anything published on the event bus.
type Event interface {
	// EventType is the dotted subject suffix, e.g. "embedding.task.completed".
	EventType() string
	Payload() map[string]interface{}
	Timestamp() time.Time
}

const (
	TaskEventPrefix = "embedding.task."

	// OccurredAtKey carries the event time inside the payload so subscribers
	// can rebuild it.
	OccurredAtKey = "occurred_at"
)

// TaskEventType returns the event type for a task status, e.g. COMPLETED ->
// embedding.task.completed.
func TaskEventType(status string) string {
	return TaskEventPrefix + strings.ToLower(status)
}

type BaseEvent struct {
	Type       string
	Data       map[string]interface{}
	OccurredAt time.Time
}

func (e BaseEvent) EventType() string {
	return e.Type
}

func (e BaseEvent) Payload() map[string]interface{} {
	return e.Data
}

func (e BaseEvent) Timestamp() time.Time {
	return e.OccurredAt
}
