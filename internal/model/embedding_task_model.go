package model

import (
	"time"

	"gorm.io/datatypes"
)

type EmbeddingTask struct {
	TaskId            string `gorm:"type:varchar(64);primaryKey"`
	FileId            string `gorm:"type:varchar(255);not null;index"`
	KnowledgeBaseId   string `gorm:"type:varchar(64);not null;index"`
	KnowledgeBaseName string `gorm:"type:varchar(255)"`
	UserId            string `gorm:"type:varchar(64)"`
	Model             string `gorm:"type:varchar(100)"`
	Status            string `gorm:"type:varchar(20);not null;index"`
	RetryCount        int    `gorm:"default:0"`
	MaxRetryCount     int    `gorm:"default:3"`
	ChunkSize         int
	ChunkOverlap      int
	Message           string         `gorm:"type:text"`
	Errors            datatypes.JSON `gorm:"type:jsonb"`
	Segments          datatypes.JSON `gorm:"type:jsonb"`
	CreatedAt         time.Time      `gorm:"index"`
	StartedAt         *time.Time
	EndedAt           *time.Time
	UpdatedAt         time.Time `gorm:"autoUpdateTime"`
}

func (EmbeddingTask) TableName() string {
	return "embedding_tasks"
}
