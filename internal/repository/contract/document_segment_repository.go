package contract

import (
	"context"

	"ai-knowledge-be/internal/entity"
	"ai-knowledge-be/internal/repository/specification"
)

// ScoredSegment wraps a segment with its cosine similarity to the query.
type ScoredSegment struct {
	Segment    *entity.Segment
	Similarity float64 // 0.0 to 1.0 (1.0 = identical)
}

type DocumentSegmentRepository interface {
	// Upsert inserts segments, overwriting rows with the same id.
	Upsert(ctx context.Context, segments []*entity.Segment) error
	DeleteByIDs(ctx context.Context, kbID string, ids []string) (int64, error)
	DeleteByFileID(ctx context.Context, kbID, fileID string) (int64, error)
	DeleteByKnowledgeBaseID(ctx context.Context, kbID string) error
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Segment, error)
	Count(ctx context.Context, specs ...specification.Specification) (int64, error)
	CountDistinctFiles(ctx context.Context, kbID string) (int64, error)
	SearchSimilarWithScore(ctx context.Context, kbID string, embedding []float32, limit int, threshold float64) ([]*ScoredSegment, error)
	FindByKeywords(ctx context.Context, kbID string, keywords []string, limit int) ([]*entity.Segment, error)
}
