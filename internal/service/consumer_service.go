package service

import (
	"context"
	"encoding/json"

	"ai-knowledge-be/internal/pkg/logger"
	"ai-knowledge-be/internal/repository/unitofwork"
	"ai-knowledge-be/pkg/rag/audit"

	"github.com/ThreeDotsLabs/watermill/message"
)

// IConsumerService drains the operation log topic.
type IConsumerService interface {
	Consume(ctx context.Context) error
}

type consumerService struct {
	subscriber message.Subscriber
	topicName  string
	uowFactory unitofwork.RepositoryFactory
	opLogger   logger.ILogger
	logger     logger.ILogger
}

// NewConsumerService persists operation log entries through uowFactory when
// one is given and always writes them to opLogger.
func NewConsumerService(
	subscriber message.Subscriber,
	topicName string,
	uowFactory unitofwork.RepositoryFactory,
	opLogger logger.ILogger,
	log logger.ILogger,
) IConsumerService {
	if topicName == "" {
		topicName = audit.DefaultTopic
	}
	return &consumerService{
		subscriber: subscriber,
		topicName:  topicName,
		uowFactory: uowFactory,
		opLogger:   opLogger,
		logger:     log,
	}
}

func (cs *consumerService) Consume(ctx context.Context) error {
	messages, err := cs.subscriber.Subscribe(ctx, cs.topicName)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			cs.processMessage(ctx, msg)
		}
	}()

	return nil
}

func (cs *consumerService) processMessage(ctx context.Context, msg *message.Message) {
	var entry audit.Entry
	if err := json.Unmarshal(msg.Payload, &entry); err != nil {
		cs.logger.Error("AUDIT", "Failed to unmarshal operation log", map[string]interface{}{"error": err.Error()})
		// Malformed entries never succeed.
		msg.Ack()
		return
	}

	cs.opLogger.Info("OPERATION", entry.OperationType, map[string]interface{}{
		"user_id":     entry.UserID,
		"resource_id": entry.ResourceID,
		"before":      string(entry.Before),
		"after":       string(entry.After),
		"occurred_at": entry.OccurredAt,
	})

	if cs.uowFactory == nil {
		msg.Ack()
		return
	}

	uow := cs.uowFactory.NewUnitOfWork(ctx)
	if err := uow.OperationLogRepository().Create(ctx, entry.ToEntity()); err != nil {
		cs.logger.Error("AUDIT", "Failed to persist operation log", map[string]interface{}{
			"operation":   entry.OperationType,
			"resource_id": entry.ResourceID,
			"error":       err.Error(),
		})
	}
	// Already written to the operation log file; never redeliver.
	msg.Ack()
}
