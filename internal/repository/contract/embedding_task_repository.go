package contract

import (
	"context"

	"ai-knowledge-be/internal/entity"
	"ai-knowledge-be/internal/repository/specification"
)

type EmbeddingTaskRepository interface {
	Save(ctx context.Context, task *entity.EmbeddingTask) error
	FindOne(ctx context.Context, specs ...specification.Specification) (*entity.EmbeddingTask, error)
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.EmbeddingTask, error)
	Count(ctx context.Context, specs ...specification.Specification) (int64, error)
}
