package specification

import "gorm.io/gorm"

type ByKnowledgeBaseID struct {
	KnowledgeBaseID string
}

func (s ByKnowledgeBaseID) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("knowledge_base_id = ?", s.KnowledgeBaseID)
}

type ByFileID struct {
	FileID string
}

func (s ByFileID) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("file_id = ?", s.FileID)
}

type ByTaskID struct {
	TaskID string
}

func (s ByTaskID) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("task_id = ?", s.TaskID)
}

type ByTaskStatus struct {
	Statuses []string
}

func (s ByTaskStatus) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("status IN ?", s.Statuses)
}
