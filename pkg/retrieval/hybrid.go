package retrieval

import (
	"context"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"ai-knowledge-be/internal/entity"
	"ai-knowledge-be/pkg/apperror"
)

const (
	DefaultKeywordWeight  = 0.3
	DefaultSemanticWeight = 0.7
)

// NormalizeWeights scales the pair so it sums to 1. Two zero weights become
// an even split; negative weights are rejected.
func NormalizeWeights(keyword, semantic float64) (float64, float64, error) {
	if keyword < 0 || semantic < 0 {
		return 0, 0, apperror.Newf(apperror.KindValidation, "retrieval.hybrid", "weights must be non-negative, got keyword=%v semantic=%v", keyword, semantic)
	}
	sum := keyword + semantic
	if sum == 0 {
		return 0.5, 0.5, nil
	}
	return keyword / sum, semantic / sum, nil
}

type HybridRequest struct {
	KnowledgeBaseID string
	Query           string
	Model           string
	TopK            int
	Threshold       *float64
	KeywordWeight   float64
	SemanticWeight  float64
	Rerank          bool
	RerankTopN      int
}

type HybridSearch struct {
	vector   *VectorSearch
	keyword  *KeywordSearch
	reranker Reranker
}

func NewHybridSearch(store SegmentStore, reranker Reranker) *HybridSearch {
	if reranker == nil {
		reranker = NewLexicalReranker()
	}
	return &HybridSearch{
		vector:   NewVectorSearch(store),
		keyword:  NewKeywordSearch(store),
		reranker: reranker,
	}
}

func (h *HybridSearch) Search(ctx context.Context, req HybridRequest) ([]*entity.SearchCandidate, error) {
	if strings.TrimSpace(req.Query) == "" {
		return nil, apperror.New(apperror.KindValidation, "retrieval.hybrid", "query is required")
	}
	wk, ws, err := NormalizeWeights(req.KeywordWeight, req.SemanticWeight)
	if err != nil {
		return nil, err
	}
	topK := topKOrDefault(req.TopK)
	pool := topK * 2

	var semantic, keyword []*entity.SearchCandidate
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		semantic, err = h.vector.Search(gctx, VectorRequest{
			KnowledgeBaseID: req.KnowledgeBaseID,
			Query:           req.Query,
			Model:           req.Model,
			TopK:            pool,
			Threshold:       req.Threshold,
		})
		return err
	})
	g.Go(func() error {
		var err error
		keyword, err = h.keyword.Search(gctx, KeywordRequest{
			KnowledgeBaseID: req.KnowledgeBaseID,
			Query:           req.Query,
			TopK:            pool,
		})
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	merged := Merge(semantic, keyword, wk, ws)
	if req.Rerank {
		merged, err = h.reranker.Rerank(ctx, req.Query, merged, req.RerankTopN)
		if err != nil {
			return nil, err
		}
	}
	return truncate(merged, topK), nil
}

// Merge combines semantic and keyword hits by segment id with weights that
// already sum to 1. A side that missed a segment contributes 0. Ties on the
// hybrid score fall back to semantic rank, keyword rank, then segment id.
func Merge(semantic, keyword []*entity.SearchCandidate, wk, ws float64) []*entity.SearchCandidate {
	type entry struct {
		c       *entity.SearchCandidate
		semRank int
		kwRank  int
	}
	const absent = int(^uint(0) >> 1)

	byID := make(map[string]*entry)
	var order []*entry
	get := func(c *entity.SearchCandidate) *entry {
		if e, ok := byID[c.Segment.ID]; ok {
			return e
		}
		e := &entry{
			c:       &entity.SearchCandidate{Segment: c.Segment, SourceStrategy: entity.StrategyHybrid},
			semRank: absent,
			kwRank:  absent,
		}
		byID[c.Segment.ID] = e
		order = append(order, e)
		return e
	}

	for i, c := range semantic {
		e := get(c)
		e.c.SemanticScore = c.Score
		e.semRank = i
	}
	for i, c := range keyword {
		e := get(c)
		e.c.KeywordScore = c.Score
		e.kwRank = i
	}

	for _, e := range order {
		e.c.Score = wk*e.c.KeywordScore + ws*e.c.SemanticScore
	}
	sort.SliceStable(order, func(i, j int) bool {
		a, b := order[i], order[j]
		if a.c.Score != b.c.Score {
			return a.c.Score > b.c.Score
		}
		if a.semRank != b.semRank {
			return a.semRank < b.semRank
		}
		if a.kwRank != b.kwRank {
			return a.kwRank < b.kwRank
		}
		return a.c.Segment.ID < b.c.Segment.ID
	})

	out := make([]*entity.SearchCandidate, len(order))
	for i, e := range order {
		out[i] = e.c
	}
	return out
}
