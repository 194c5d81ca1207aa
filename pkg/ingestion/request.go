package ingestion

import (
	"strings"

	"ai-knowledge-be/pkg/apperror"
	"ai-knowledge-be/pkg/chunker"
)

// Request asks for one file to be embedded into one knowledge base.
type Request struct {
	FileID            string
	KnowledgeBaseID   string
	KnowledgeBaseName string
	UserID            string
	Model             string
	ChunkSize         int
	ChunkOverlap      int
}

// withDefaults fills zero chunking parameters and the model from the engine
// configuration.
func (r Request) withDefaults(cfg Config, defaultModel string) Request {
	if r.ChunkSize == 0 {
		r.ChunkSize = cfg.DefaultChunkSize
	}
	if r.ChunkOverlap == 0 && cfg.DefaultChunkOverlap < r.ChunkSize {
		r.ChunkOverlap = cfg.DefaultChunkOverlap
	}
	if r.Model == "" {
		r.Model = defaultModel
	}
	return r
}

func (r Request) validate() error {
	if strings.TrimSpace(r.FileID) == "" {
		return apperror.New(apperror.KindValidation, "ingestion.request", "fileId is required")
	}
	if strings.TrimSpace(r.KnowledgeBaseID) == "" {
		return apperror.New(apperror.KindValidation, "ingestion.request", "knowledgeBaseId is required")
	}
	return chunker.Validate(r.ChunkSize, r.ChunkOverlap)
}

func (r Request) key() string {
	return r.KnowledgeBaseID + ":" + r.FileID
}
