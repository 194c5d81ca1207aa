package retrieval

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"ai-knowledge-be/internal/entity"
	"ai-knowledge-be/internal/pkg/logger"
	"ai-knowledge-be/pkg/apperror"
)

type IntelligentRequest struct {
	KnowledgeBaseIDs []string
	Query            string
	Model            string
	Limit            int
	Threshold        *float64
	KeywordWeight    float64
	SemanticWeight   float64
	// Intent skips classification when set.
	Intent Intent
}

type IntelligentResult struct {
	Intent     Intent
	Strategy   string
	Candidates []*entity.SearchCandidate
	// Failed maps knowledge base id to its error message.
	Failed map[string]string
}

// IntelligentSearch classifies the question, picks a strategy for it and
// runs that strategy over every knowledge base in parallel.
type IntelligentSearch struct {
	classifier IntentClassifier
	vector     *VectorSearch
	keyword    *KeywordSearch
	hybrid     *HybridSearch
	logger     logger.ILogger
}

func NewIntelligentSearch(store SegmentStore, classifier IntentClassifier, reranker Reranker, log logger.ILogger) *IntelligentSearch {
	if classifier == nil {
		classifier = NewRuleClassifier()
	}
	return &IntelligentSearch{
		classifier: classifier,
		vector:     NewVectorSearch(store),
		keyword:    NewKeywordSearch(store),
		hybrid:     NewHybridSearch(store, reranker),
		logger:     log,
	}
}

func (s *IntelligentSearch) Search(ctx context.Context, req IntelligentRequest) (*IntelligentResult, error) {
	if strings.TrimSpace(req.Query) == "" {
		return nil, apperror.New(apperror.KindValidation, "retrieval.intelligent", "query is required")
	}
	if len(req.KnowledgeBaseIDs) == 0 {
		return nil, apperror.New(apperror.KindValidation, "retrieval.intelligent", "at least one knowledge base is required")
	}

	intent := req.Intent
	if intent == "" {
		intent = s.classifier.Classify(ctx, req.Query)
	}
	strategy := StrategyFor(intent)
	limit := topKOrDefault(req.Limit)

	var (
		mu     sync.Mutex
		all    []*entity.SearchCandidate
		failed = make(map[string]string)
		errs   []error
	)
	g, gctx := errgroup.WithContext(ctx)
	for _, kbID := range req.KnowledgeBaseIDs {
		g.Go(func() error {
			hits, err := s.searchOne(gctx, strategy, kbID, req, limit)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failed[kbID] = err.Error()
				errs = append(errs, fmt.Errorf("knowledge base %s: %w", kbID, err))
				return nil
			}
			all = append(all, hits...)
			return nil
		})
	}
	_ = g.Wait()

	if len(failed) == len(req.KnowledgeBaseIDs) {
		return nil, errors.Join(errs...)
	}
	if len(failed) > 0 {
		s.logger.Warn(logModule, "Some knowledge bases failed during intelligent search", map[string]interface{}{
			"failed": failed,
		})
	}

	merged := Dedup(all)
	sortByScore(merged)
	return &IntelligentResult{
		Intent:     intent,
		Strategy:   strategy,
		Candidates: truncate(merged, limit),
		Failed:     failed,
	}, nil
}

func (s *IntelligentSearch) searchOne(ctx context.Context, strategy, kbID string, req IntelligentRequest, limit int) ([]*entity.SearchCandidate, error) {
	var (
		hits []*entity.SearchCandidate
		err  error
	)
	vectorReq := VectorRequest{KnowledgeBaseID: kbID, Query: req.Query, Model: req.Model, TopK: limit, Threshold: req.Threshold}

	switch strategy {
	case entity.StrategyKeyword:
		hits, err = s.keyword.Search(ctx, KeywordRequest{KnowledgeBaseID: kbID, Query: req.Query, TopK: limit})
		// No keyword hit at all usually means the wording differs from the
		// documents, so let semantic search have a go.
		if err == nil && len(hits) == 0 {
			hits, err = s.vector.Search(ctx, vectorReq)
		}
	case entity.StrategyHybrid:
		kw, sem := req.KeywordWeight, req.SemanticWeight
		if kw == 0 && sem == 0 {
			kw, sem = DefaultKeywordWeight, DefaultSemanticWeight
		}
		hits, err = s.hybrid.Search(ctx, HybridRequest{
			KnowledgeBaseID: kbID,
			Query:           req.Query,
			Model:           req.Model,
			TopK:            limit,
			Threshold:       req.Threshold,
			KeywordWeight:   kw,
			SemanticWeight:  sem,
		})
	default:
		hits, err = s.vector.Search(ctx, vectorReq)
	}
	if err != nil {
		return nil, err
	}
	return hits, nil
}

// Dedup keeps the highest scoring candidate for each document key. Output
// follows first-seen order.
func Dedup(candidates []*entity.SearchCandidate) []*entity.SearchCandidate {
	best := make(map[string]int, len(candidates))
	out := make([]*entity.SearchCandidate, 0, len(candidates))
	for _, c := range candidates {
		key := c.DocumentKey()
		if i, ok := best[key]; ok {
			if c.Score > out[i].Score {
				out[i] = c
			}
			continue
		}
		best[key] = len(out)
		out = append(out, c)
	}
	return out
}
