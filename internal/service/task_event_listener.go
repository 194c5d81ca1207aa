package service

import (
	"context"
	"strings"

	"ai-knowledge-be/internal/entity"
	"ai-knowledge-be/internal/pkg/logger"
	"ai-knowledge-be/pkg/events"
	pktNats "ai-knowledge-be/pkg/nats"
	"ai-knowledge-be/pkg/rag/audit"
)

const taskListenerDurable = "task-event-listener"

// TaskEventListener follows embedding task events on the bus. Terminal
// transitions are written to the operation log, so tasks finished by any
// instance end up there.
type TaskEventListener struct {
	subscriber *pktNats.Subscriber
	recorder   audit.Recorder
	logger     logger.ILogger
}

func NewTaskEventListener(sub *pktNats.Subscriber, recorder audit.Recorder, log logger.ILogger) *TaskEventListener {
	if recorder == nil {
		recorder = audit.NopRecorder()
	}
	return &TaskEventListener{
		subscriber: sub,
		recorder:   recorder,
		logger:     log,
	}
}

// Start subscribes to embedding.task.> with a durable consumer.
func (l *TaskEventListener) Start() {
	err := l.subscriber.Subscribe(events.TaskEventPrefix+">", taskListenerDurable, l.HandleEvent)
	if err != nil {
		l.logger.Error("EVENTS", "Failed to start task event listener", map[string]interface{}{"error": err.Error()})
		return
	}
	l.logger.Info("EVENTS", "Task event listener started", map[string]interface{}{"pattern": events.TaskEventPrefix + ">"})
}

func (l *TaskEventListener) HandleEvent(ctx context.Context, event events.Event) error {
	payload := event.Payload()
	status := strings.ToUpper(strings.TrimPrefix(event.EventType(), events.TaskEventPrefix))
	taskID, _ := payload["task_id"].(string)
	userID, _ := payload["user_id"].(string)

	details := map[string]interface{}{
		"task_id":           taskID,
		"file_id":           payload["file_id"],
		"knowledge_base_id": payload["knowledge_base_id"],
		"status":            status,
		"occurred_at":       event.Timestamp(),
	}

	switch entity.TaskStatus(status) {
	case entity.TaskCompleted, entity.TaskFailed, entity.TaskCancelled:
		details["segment_count"] = payload["segment_count"]
		details["embedded_count"] = payload["embedded_count"]
		if msg, ok := payload["message"]; ok {
			details["message"] = msg
		}
		if status == string(entity.TaskFailed) {
			l.logger.Warn("EVENTS", "Embedding task failed", details)
		} else {
			l.logger.Info("EVENTS", "Embedding task finished", details)
		}
		l.recorder.Record(ctx, userID, "EMBEDDING_TASK_"+status, taskID, nil, payload)
	default:
		l.logger.Debug("EVENTS", "Embedding task changed", details)
	}
	return nil
}
