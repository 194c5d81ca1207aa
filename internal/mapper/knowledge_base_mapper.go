package mapper

import (
	"ai-knowledge-be/internal/entity"
	"ai-knowledge-be/internal/model"
)

type KnowledgeBaseMapper struct{}

func NewKnowledgeBaseMapper() *KnowledgeBaseMapper {
	return &KnowledgeBaseMapper{}
}

func (m *KnowledgeBaseMapper) ToEntity(kb *model.KnowledgeBase) *entity.KnowledgeBase {
	if kb == nil {
		return nil
	}
	return &entity.KnowledgeBase{
		ID:        kb.Id,
		Name:      kb.Name,
		OwnerID:   kb.OwnerId,
		Public:    kb.Public,
		CreatedAt: kb.CreatedAt,
	}
}

func (m *KnowledgeBaseMapper) ToModel(kb *entity.KnowledgeBase) *model.KnowledgeBase {
	if kb == nil {
		return nil
	}
	return &model.KnowledgeBase{
		Id:        kb.ID,
		Name:      kb.Name,
		OwnerId:   kb.OwnerID,
		Public:    kb.Public,
		CreatedAt: kb.CreatedAt,
	}
}
