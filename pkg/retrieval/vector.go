package retrieval

import (
	"context"
	"strings"

	"ai-knowledge-be/internal/entity"
	"ai-knowledge-be/pkg/apperror"
	"ai-knowledge-be/pkg/vectorstore"
)

type VectorRequest struct {
	KnowledgeBaseID string
	Query           string
	Model           string
	TopK            int
	// Threshold is the minimum cosine similarity. Nil uses DefaultThreshold.
	Threshold *float64
}

type VectorSearch struct {
	store SegmentStore
}

func NewVectorSearch(store SegmentStore) *VectorSearch {
	return &VectorSearch{store: store}
}

func (v *VectorSearch) Search(ctx context.Context, req VectorRequest) ([]*entity.SearchCandidate, error) {
	if strings.TrimSpace(req.Query) == "" {
		return nil, apperror.New(apperror.KindValidation, "retrieval.vector", "query is required")
	}
	threshold := DefaultThreshold
	if req.Threshold != nil {
		threshold = *req.Threshold
	}

	out, err := v.store.SimilaritySearch(ctx, vectorstore.SearchRequest{
		KnowledgeBaseID: req.KnowledgeBaseID,
		QueryText:       req.Query,
		Model:           req.Model,
		TopK:            topKOrDefault(req.TopK),
		Threshold:       threshold,
	})
	if err != nil {
		return nil, err
	}
	sortByScore(out)
	return tag(out, entity.StrategyVector), nil
}
