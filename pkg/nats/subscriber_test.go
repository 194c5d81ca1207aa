package nats

import (
	"testing"
	"time"

	"ai-knowledge-be/pkg/events"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeEvent(t *testing.T) {
	tests := []struct {
		name     string
		subject  string
		data     string
		wantType string
		wantTime time.Time
		wantErr  bool
	}{
		{
			name:     "with timestamp",
			subject:  "events.embedding.task.completed",
			data:     `{"task_id":"t1","occurred_at":"2024-05-01T10:00:00Z"}`,
			wantType: "embedding.task.completed",
			wantTime: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
		},
		{
			name:     "without timestamp",
			subject:  "events.embedding.task.failed",
			data:     `{"task_id":"t2"}`,
			wantType: "embedding.task.failed",
		},
		{
			name:    "malformed",
			subject: "events.embedding.task.failed",
			data:    `{"task_id"`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, err := DecodeEvent(tt.subject, []byte(tt.data))
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantType, ev.EventType())
			assert.NotContains(t, ev.Payload(), events.OccurredAtKey)
			assert.NotEmpty(t, ev.Payload()["task_id"])
			if !tt.wantTime.IsZero() {
				assert.True(t, tt.wantTime.Equal(ev.Timestamp()))
			}
		})
	}
}

func TestSubject(t *testing.T) {
	assert.Equal(t, "events.embedding.task.completed", Subject(events.TaskEventType("COMPLETED")))
}
