package implementation

import (
	"context"
	"errors"

	"ai-knowledge-be/internal/entity"
	"ai-knowledge-be/internal/mapper"
	"ai-knowledge-be/internal/model"
	"ai-knowledge-be/internal/repository/contract"
	"ai-knowledge-be/internal/repository/specification"

	"gorm.io/gorm"
)

type EmbeddingTaskRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.EmbeddingTaskMapper
}

func NewEmbeddingTaskRepository(db *gorm.DB) contract.EmbeddingTaskRepository {
	return &EmbeddingTaskRepositoryImpl{
		db:     db,
		mapper: mapper.NewEmbeddingTaskMapper(),
	}
}

func (r *EmbeddingTaskRepositoryImpl) applySpecifications(db *gorm.DB, specs ...specification.Specification) *gorm.DB {
	for _, spec := range specs {
		db = spec.Apply(db)
	}
	return db
}

func (r *EmbeddingTaskRepositoryImpl) Save(ctx context.Context, task *entity.EmbeddingTask) error {
	m := r.mapper.ToModel(task)
	return r.db.WithContext(ctx).Save(m).Error
}

func (r *EmbeddingTaskRepositoryImpl) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.EmbeddingTask, error) {
	var m model.EmbeddingTask
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.mapper.ToEntity(&m), nil
}

func (r *EmbeddingTaskRepositoryImpl) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.EmbeddingTask, error) {
	var models []*model.EmbeddingTask
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	return r.mapper.ToEntities(models), nil
}

func (r *EmbeddingTaskRepositoryImpl) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	var count int64
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	err := query.Model(&model.EmbeddingTask{}).Count(&count).Error
	return count, err
}
