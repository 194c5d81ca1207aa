package unitofwork

import (
	"context"

	"ai-knowledge-be/internal/repository/contract"
)

type UnitOfWork interface {
	Begin(ctx context.Context) error
	Commit() error
	Rollback() error

	KnowledgeBaseRepository() contract.KnowledgeBaseRepository
	DocumentSegmentRepository() contract.DocumentSegmentRepository
	EmbeddingTaskRepository() contract.EmbeddingTaskRepository
	OperationLogRepository() contract.OperationLogRepository
}
