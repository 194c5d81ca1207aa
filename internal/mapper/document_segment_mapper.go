package mapper

import (
	"encoding/json"

	"ai-knowledge-be/internal/entity"
	"ai-knowledge-be/internal/model"

	"github.com/pgvector/pgvector-go"
	"gorm.io/datatypes"
)

type DocumentSegmentMapper struct{}

func NewDocumentSegmentMapper() *DocumentSegmentMapper {
	return &DocumentSegmentMapper{}
}

func (m *DocumentSegmentMapper) ToEntity(s *model.DocumentSegment) *entity.Segment {
	if s == nil {
		return nil
	}

	var meta map[string]interface{}
	if len(s.Metadata) > 0 {
		_ = json.Unmarshal(s.Metadata, &meta)
	}

	return &entity.Segment{
		ID:              s.Id,
		Text:            s.Content,
		Ordinal:         s.Ordinal,
		SourceUnitID:    s.SourceUnitId,
		FileID:          s.FileId,
		KnowledgeBaseID: s.KnowledgeBaseId,
		Vector:          s.EmbeddingValue.Slice(),
		Metadata:        meta,
		CreatedAt:       s.CreatedAt,
	}
}

func (m *DocumentSegmentMapper) ToModel(s *entity.Segment) *model.DocumentSegment {
	if s == nil {
		return nil
	}

	var meta datatypes.JSON
	if s.Metadata != nil {
		if raw, err := json.Marshal(s.Metadata); err == nil {
			meta = datatypes.JSON(raw)
		}
	}

	return &model.DocumentSegment{
		Id:              s.ID,
		KnowledgeBaseId: s.KnowledgeBaseID,
		FileId:          s.FileID,
		SourceUnitId:    s.SourceUnitID,
		Ordinal:         s.Ordinal,
		Content:         s.Text,
		EmbeddingValue:  pgvector.NewVector(s.Vector),
		Metadata:        meta,
		CreatedAt:       s.CreatedAt,
	}
}

func (m *DocumentSegmentMapper) ToEntities(segments []*model.DocumentSegment) []*entity.Segment {
	entities := make([]*entity.Segment, len(segments))
	for i, s := range segments {
		entities[i] = m.ToEntity(s)
	}
	return entities
}

func (m *DocumentSegmentMapper) ToModels(segments []*entity.Segment) []*model.DocumentSegment {
	models := make([]*model.DocumentSegment, len(segments))
	for i, s := range segments {
		models[i] = m.ToModel(s)
	}
	return models
}
