package ingestion

import (
	"context"
	"time"

	"ai-knowledge-be/internal/entity"
	"ai-knowledge-be/internal/pkg/logger"
	"ai-knowledge-be/pkg/events"
	pktNats "ai-knowledge-be/pkg/nats"
)

// TaskPublisher announces task status changes. Publishing is best-effort
// and never fails a task.
type TaskPublisher interface {
	TaskChanged(ctx context.Context, task *entity.EmbeddingTask)
}

type NopPublisher struct{}

func (NopPublisher) TaskChanged(ctx context.Context, task *entity.EmbeddingTask) {}

// NatsPublisher emits embedding.task.<status> events on JetStream.
type NatsPublisher struct {
	publisher *pktNats.Publisher
	logger    logger.ILogger
}

func NewNatsPublisher(publisher *pktNats.Publisher, logger logger.ILogger) *NatsPublisher {
	return &NatsPublisher{publisher: publisher, logger: logger}
}

func (p *NatsPublisher) TaskChanged(ctx context.Context, task *entity.EmbeddingTask) {
	if p.publisher == nil {
		return
	}

	evt := TaskEvent(task)
	// The caller's context may already be done when a task times out.
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	if err := p.publisher.Publish(pubCtx, evt); err != nil {
		p.logger.Warn("EVENTS", "Failed to publish task event", map[string]interface{}{
			"event":   evt.EventType(),
			"task_id": task.TaskID,
			"error":   err.Error(),
		})
	}
}

// TaskEvent builds the bus event for the task's current status.
func TaskEvent(task *entity.EmbeddingTask) events.BaseEvent {
	data := map[string]interface{}{
		"task_id":           task.TaskID,
		"file_id":           task.FileID,
		"knowledge_base_id": task.KnowledgeBaseID,
		"user_id":           task.UserID,
		"model":             task.Model,
		"status":            string(task.Status),
		"retry_count":       task.RetryCount,
		"segment_count":     len(task.Segments),
		"embedded_count":    task.EmbeddedCount(),
	}
	if task.Message != "" {
		data["message"] = task.Message
	}
	return events.BaseEvent{
		Type:       events.TaskEventType(string(task.Status)),
		Data:       data,
		OccurredAt: time.Now(),
	}
}
