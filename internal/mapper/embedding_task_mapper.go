package mapper

import (
	"encoding/json"

	"ai-knowledge-be/internal/entity"
	"ai-knowledge-be/internal/model"

	"gorm.io/datatypes"
)

type EmbeddingTaskMapper struct{}

func NewEmbeddingTaskMapper() *EmbeddingTaskMapper {
	return &EmbeddingTaskMapper{}
}

func (m *EmbeddingTaskMapper) ToEntity(t *model.EmbeddingTask) *entity.EmbeddingTask {
	if t == nil {
		return nil
	}

	var errs []string
	if len(t.Errors) > 0 {
		_ = json.Unmarshal(t.Errors, &errs)
	}
	var segs []entity.SegmentResult
	if len(t.Segments) > 0 {
		_ = json.Unmarshal(t.Segments, &segs)
	}

	return &entity.EmbeddingTask{
		TaskID:            t.TaskId,
		FileID:            t.FileId,
		KnowledgeBaseID:   t.KnowledgeBaseId,
		KnowledgeBaseName: t.KnowledgeBaseName,
		UserID:            t.UserId,
		Model:             t.Model,
		Status:            entity.TaskStatus(t.Status),
		RetryCount:        t.RetryCount,
		MaxRetryCount:     t.MaxRetryCount,
		ChunkSize:         t.ChunkSize,
		ChunkOverlap:      t.ChunkOverlap,
		Message:           t.Message,
		Errors:            errs,
		Segments:          segs,
		CreatedAt:         t.CreatedAt,
		StartedAt:         t.StartedAt,
		EndedAt:           t.EndedAt,
	}
}

func (m *EmbeddingTaskMapper) ToModel(t *entity.EmbeddingTask) *model.EmbeddingTask {
	if t == nil {
		return nil
	}

	errs, _ := json.Marshal(t.Errors)
	segs, _ := json.Marshal(t.Segments)

	return &model.EmbeddingTask{
		TaskId:            t.TaskID,
		FileId:            t.FileID,
		KnowledgeBaseId:   t.KnowledgeBaseID,
		KnowledgeBaseName: t.KnowledgeBaseName,
		UserId:            t.UserID,
		Model:             t.Model,
		Status:            string(t.Status),
		RetryCount:        t.RetryCount,
		MaxRetryCount:     t.MaxRetryCount,
		ChunkSize:         t.ChunkSize,
		ChunkOverlap:      t.ChunkOverlap,
		Message:           t.Message,
		Errors:            datatypes.JSON(errs),
		Segments:          datatypes.JSON(segs),
		CreatedAt:         t.CreatedAt,
		StartedAt:         t.StartedAt,
		EndedAt:           t.EndedAt,
	}
}

func (m *EmbeddingTaskMapper) ToEntities(tasks []*model.EmbeddingTask) []*entity.EmbeddingTask {
	entities := make([]*entity.EmbeddingTask, len(tasks))
	for i, t := range tasks {
		entities[i] = m.ToEntity(t)
	}
	return entities
}
