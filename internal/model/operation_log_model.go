package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type OperationLog struct {
	Id            uuid.UUID      `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	UserId        string         `gorm:"type:varchar(64);index"`
	OperationType string         `gorm:"type:varchar(50);not null;index"`
	ResourceId    string         `gorm:"type:varchar(255);index"`
	BeforeData    datatypes.JSON `gorm:"type:jsonb"`
	AfterData     datatypes.JSON `gorm:"type:jsonb"`
	CreatedAt     time.Time      `gorm:"default:now();not null;index"`
}

func (OperationLog) TableName() string {
	return "operation_logs"
}
