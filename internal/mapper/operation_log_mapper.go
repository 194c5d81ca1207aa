package mapper

import (
	"encoding/json"

	"ai-knowledge-be/internal/entity"
	"ai-knowledge-be/internal/model"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type OperationLogMapper struct{}

func NewOperationLogMapper() *OperationLogMapper {
	return &OperationLogMapper{}
}

func (m *OperationLogMapper) ToModel(l *entity.OperationLog) *model.OperationLog {
	if l == nil {
		return nil
	}
	return &model.OperationLog{
		Id:            uuid.New(),
		UserId:        l.UserID,
		OperationType: l.OperationType,
		ResourceId:    l.ResourceID,
		BeforeData:    toJSON(l.BeforeData),
		AfterData:     toJSON(l.AfterData),
		CreatedAt:     l.CreatedAt,
	}
}

func (m *OperationLogMapper) ToEntity(l *model.OperationLog) *entity.OperationLog {
	if l == nil {
		return nil
	}
	var before, after interface{}
	if len(l.BeforeData) > 0 {
		_ = json.Unmarshal(l.BeforeData, &before)
	}
	if len(l.AfterData) > 0 {
		_ = json.Unmarshal(l.AfterData, &after)
	}
	return &entity.OperationLog{
		ID:            l.Id.String(),
		UserID:        l.UserId,
		OperationType: l.OperationType,
		ResourceID:    l.ResourceId,
		BeforeData:    before,
		AfterData:     after,
		CreatedAt:     l.CreatedAt,
	}
}

func toJSON(v interface{}) datatypes.JSON {
	if v == nil {
		return nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return datatypes.JSON(raw)
}
