package model

import (
	"time"

	"gorm.io/gorm"
)

type KnowledgeBase struct {
	Id        string         `gorm:"type:varchar(64);primaryKey"`
	Name      string         `gorm:"type:varchar(255);not null"`
	OwnerId   string         `gorm:"type:varchar(64);index"`
	Public    bool           `gorm:"default:false"`
	CreatedAt time.Time      `gorm:"autoCreateTime"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime"`
	DeletedAt gorm.DeletedAt `gorm:"index"`
}

func (KnowledgeBase) TableName() string {
	return "knowledge_bases"
}
