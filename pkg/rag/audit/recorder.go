package audit

import (
	"context"
	"encoding/json"
	"time"

	"ai-knowledge-be/internal/entity"
	"ai-knowledge-be/internal/pkg/logger"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
)

const (
	logModule = "AUDIT"

	DefaultTopic = "OPERATION_LOG"

	OpEmbeddingProcess = "EMBEDDING_PROCESS"
	OpEmbeddingBatch   = "EMBEDDING_BATCH"
	OpEmbeddingCancel  = "EMBEDDING_CANCEL"
	OpEmbeddingRetry   = "EMBEDDING_RETRY"
	OpEmbeddingDelete  = "EMBEDDING_DELETE"
	OpQuery            = "QUERY"
)

// Recorder logs an operation. Recording never fails the caller.
type Recorder interface {
	Record(ctx context.Context, userID, operationType, resourceID string, before, after interface{})
}

// Entry is the message body published for each recorded operation.
type Entry struct {
	UserID        string          `json:"userId"`
	OperationType string          `json:"operationType"`
	ResourceID    string          `json:"resourceId"`
	Before        json.RawMessage `json:"before,omitempty"`
	After         json.RawMessage `json:"after,omitempty"`
	OccurredAt    time.Time       `json:"occurredAt"`
}

// ToEntity decodes the before/after snapshots back into plain values.
func (e Entry) ToEntity() *entity.OperationLog {
	var before, after interface{}
	if len(e.Before) > 0 {
		_ = json.Unmarshal(e.Before, &before)
	}
	if len(e.After) > 0 {
		_ = json.Unmarshal(e.After, &after)
	}
	return &entity.OperationLog{
		UserID:        e.UserID,
		OperationType: e.OperationType,
		ResourceID:    e.ResourceID,
		BeforeData:    before,
		AfterData:     after,
		CreatedAt:     e.OccurredAt,
	}
}

// WatermillRecorder publishes entries on a watermill topic for the operation
// log consumer.
type WatermillRecorder struct {
	publisher message.Publisher
	topic     string
	logger    logger.ILogger
}

func NewWatermillRecorder(publisher message.Publisher, topic string, log logger.ILogger) *WatermillRecorder {
	if topic == "" {
		topic = DefaultTopic
	}
	return &WatermillRecorder{publisher: publisher, topic: topic, logger: log}
}

func (r *WatermillRecorder) Record(ctx context.Context, userID, operationType, resourceID string, before, after interface{}) {
	entry := Entry{
		UserID:        userID,
		OperationType: operationType,
		ResourceID:    resourceID,
		Before:        marshal(before),
		After:         marshal(after),
		OccurredAt:    time.Now().UTC(),
	}
	payload, err := json.Marshal(entry)
	if err != nil {
		r.logger.Warn(logModule, "Failed to encode operation log", map[string]interface{}{"error": err.Error(), "operation": operationType})
		return
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.SetContext(context.WithoutCancel(ctx))
	if err := r.publisher.Publish(r.topic, msg); err != nil {
		r.logger.Warn(logModule, "Failed to publish operation log", map[string]interface{}{"error": err.Error(), "operation": operationType})
	}
}

func marshal(v interface{}) json.RawMessage {
	if v == nil {
		return nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return raw
}

type nopRecorder struct{}

func NopRecorder() Recorder {
	return nopRecorder{}
}

func (nopRecorder) Record(context.Context, string, string, string, interface{}, interface{}) {}
