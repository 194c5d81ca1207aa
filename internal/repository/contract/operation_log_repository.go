package contract

import (
	"context"

	"ai-knowledge-be/internal/entity"
	"ai-knowledge-be/internal/repository/specification"
)

type OperationLogRepository interface {
	Create(ctx context.Context, log *entity.OperationLog) error
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.OperationLog, error)
}
