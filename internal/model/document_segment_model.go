package model

import (
	"time"

	"github.com/pgvector/pgvector-go"
	"gorm.io/datatypes"
)

// DocumentSegment rows are hard-deleted so re-ingesting a file leaves no
// stale vectors behind.
type DocumentSegment struct {
	Id              string          `gorm:"type:varchar(64);primaryKey"`
	KnowledgeBaseId string          `gorm:"type:varchar(64);not null;index:idx_segment_kb_file"`
	FileId          string          `gorm:"type:varchar(255);not null;index:idx_segment_kb_file"`
	SourceUnitId    string          `gorm:"type:varchar(128)"`
	Ordinal         int             `gorm:"default:0"`
	Content         string          `gorm:"type:text"`
	EmbeddingValue  pgvector.Vector `gorm:"type:vector(768)"`
	Metadata        datatypes.JSON  `gorm:"type:jsonb"`
	CreatedAt       time.Time       `gorm:"autoCreateTime"`
}

func (DocumentSegment) TableName() string {
	return "document_segments"
}
