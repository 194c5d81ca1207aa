package dto

import "time"

const (
	ModeSync  = "SYNC"
	ModeAsync = "ASYNC"
)

type ProcessEmbeddingRequest struct {
	FileID            string `json:"fileId" validate:"required"`
	KnowledgeBaseID   string `json:"knowledgeBaseId" validate:"required"`
	KnowledgeBaseName string `json:"knowledgeBaseName"`
	Model             string `json:"model"`
	ChunkSize         int    `json:"chunkSize" validate:"omitempty,min=100,max=10000"`
	ChunkOverlap      int    `json:"chunkOverlap" validate:"omitempty,min=0,max=500"`
	Mode              string `json:"mode" validate:"omitempty,oneof=SYNC ASYNC sync async"`
}

type BatchEmbeddingRequest struct {
	Documents []ProcessEmbeddingRequest `json:"documents" validate:"required,min=1,max=100,dive"`
	Mode      string                    `json:"mode" validate:"omitempty,oneof=SYNC ASYNC sync async"`
}

type SegmentResultResponse struct {
	SegmentID       string `json:"segmentId"`
	Ordinal         int    `json:"ordinal"`
	Length          int    `json:"length"`
	VectorDimension int    `json:"vectorDimension"`
	Embedded        bool   `json:"embedded"`
	Error           string `json:"error,omitempty"`
}

type EmbeddingTaskResponse struct {
	TaskID          string                  `json:"taskId"`
	FileID          string                  `json:"fileId"`
	KnowledgeBaseID string                  `json:"knowledgeBaseId"`
	Model           string                  `json:"model"`
	Status          string                  `json:"status"`
	Progress        float64                 `json:"progress"`
	Message         string                  `json:"message,omitempty"`
	Errors          []string                `json:"errors,omitempty"`
	RetryCount      int                     `json:"retryCount"`
	MaxRetryCount   int                     `json:"maxRetryCount"`
	SegmentCount    int                     `json:"segmentCount"`
	EmbeddedCount   int                     `json:"embeddedCount"`
	Segments        []SegmentResultResponse `json:"segments,omitempty"`
	CreatedAt       time.Time               `json:"createdAt"`
	StartedAt       *time.Time              `json:"startedAt,omitempty"`
	EndedAt         *time.Time              `json:"endedAt,omitempty"`
}

type BatchEmbeddingItem struct {
	FileID          string                 `json:"fileId"`
	KnowledgeBaseID string                 `json:"knowledgeBaseId"`
	TaskID          string                 `json:"taskId,omitempty"`
	Task            *EmbeddingTaskResponse `json:"task,omitempty"`
	Error           string                 `json:"error,omitempty"`
}

type BatchEmbeddingResponse struct {
	Total     int                  `json:"total"`
	Submitted int                  `json:"submitted"`
	Rejected  int                  `json:"rejected"`
	Items     []BatchEmbeddingItem `json:"items"`
}

type CancelEmbeddingResponse struct {
	TaskID    string `json:"taskId"`
	Cancelled bool   `json:"cancelled"`
}

type DeleteEmbeddingResponse struct {
	FileID          string `json:"fileId"`
	KnowledgeBaseID string `json:"knowledgeBaseId"`
	Deleted         bool   `json:"deleted"`
}

type CheckEmbeddingResponse struct {
	FileID          string `json:"fileId"`
	KnowledgeBaseID string `json:"knowledgeBaseId"`
	Embedded        bool   `json:"embedded"`
}

type SupportedTypesResponse struct {
	Extensions []string `json:"extensions"`
}

type SupportedModelsResponse struct {
	DefaultModel string   `json:"defaultModel"`
	Models       []string `json:"models"`
}

type EmbeddingStatsResponse struct {
	Total       int     `json:"total"`
	Pending     int     `json:"pending"`
	Processing  int     `json:"processing"`
	Completed   int     `json:"completed"`
	Failed      int     `json:"failed"`
	Cancelled   int     `json:"cancelled"`
	SuccessRate float64 `json:"successRate"`
}
