package implementation

import (
	"context"

	"ai-knowledge-be/internal/entity"
	"ai-knowledge-be/internal/mapper"
	"ai-knowledge-be/internal/model"
	"ai-knowledge-be/internal/repository/contract"
	"ai-knowledge-be/internal/repository/specification"

	"gorm.io/gorm"
)

type OperationLogRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.OperationLogMapper
}

func NewOperationLogRepository(db *gorm.DB) contract.OperationLogRepository {
	return &OperationLogRepositoryImpl{
		db:     db,
		mapper: mapper.NewOperationLogMapper(),
	}
}

func (r *OperationLogRepositoryImpl) Create(ctx context.Context, log *entity.OperationLog) error {
	m := r.mapper.ToModel(log)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return err
	}
	log.ID = m.Id.String()
	log.CreatedAt = m.CreatedAt
	return nil
}

func (r *OperationLogRepositoryImpl) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.OperationLog, error) {
	var models []*model.OperationLog
	query := r.db.WithContext(ctx)
	for _, spec := range specs {
		query = spec.Apply(query)
	}
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	entities := make([]*entity.OperationLog, len(models))
	for i, m := range models {
		entities[i] = r.mapper.ToEntity(m)
	}
	return entities, nil
}
