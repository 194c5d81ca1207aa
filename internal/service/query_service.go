package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"ai-knowledge-be/internal/config"
	"ai-knowledge-be/internal/dto"
	"ai-knowledge-be/internal/entity"
	"ai-knowledge-be/internal/pkg/logger"
	"ai-knowledge-be/internal/pkg/serverutils"
	"ai-knowledge-be/internal/repository/memory"
	"ai-knowledge-be/pkg/apperror"
	"ai-knowledge-be/pkg/llm"
	"ai-knowledge-be/pkg/rag/access"
	"ai-knowledge-be/pkg/rag/answer"
	"ai-knowledge-be/pkg/rag/audit"
	"ai-knowledge-be/pkg/rag/citation"
	"ai-knowledge-be/pkg/rag/prompt"
	"ai-knowledge-be/pkg/rag/session"
	"ai-knowledge-be/pkg/rag/summary"
	"ai-knowledge-be/pkg/retrieval"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"
)

const queryLogModule = "QUERY"

// IQueryService answers questions against knowledge bases. Failures after
// request validation come back as payloads with Success=false; only invalid
// requests are returned as errors.
type IQueryService interface {
	Simple(ctx context.Context, userID string, req *dto.QueryRequest) (*dto.QueryResponse, error)
	Semantic(ctx context.Context, userID string, req *dto.SemanticQueryRequest) (*dto.QueryResponse, error)
	Hybrid(ctx context.Context, userID string, req *dto.HybridQueryRequest) (*dto.QueryResponse, error)
	Structured(ctx context.Context, userID string, req *dto.StructuredQueryRequest) (*dto.QueryResponse, error)
	Conversational(ctx context.Context, userID string, req *dto.ConversationalQueryRequest) (*dto.QueryResponse, error)
	Summary(ctx context.Context, userID string, req *dto.SummaryQueryRequest) (*dto.QueryResponse, error)
	Citation(ctx context.Context, userID string, req *dto.CitationQueryRequest) (*dto.QueryResponse, error)
	Intelligent(ctx context.Context, userID string, req *dto.IntelligentQueryRequest) (*dto.QueryResponse, error)
	Batch(ctx context.Context, userID string, req *dto.BatchQueryRequest) (*dto.BatchQueryResponse, error)
	Suggestions(ctx context.Context, userID string, req *dto.QuerySuggestionRequest) (*dto.QuerySuggestionResponse, error)
	Related(ctx context.Context, userID string, req *dto.RelatedQueryRequest) (*dto.RelatedQueryResponse, error)
	History(ctx context.Context, userID string, req *dto.QueryHistoryRequest) (*dto.QueryHistoryResponse, error)
}

type queryService struct {
	cfg         config.RetrievalConfig
	vector      *retrieval.VectorSearch
	hybrid      *retrieval.HybridSearch
	structured  *retrieval.StructuredSearch
	intelligent *retrieval.IntelligentSearch
	rules       retrieval.IntentClassifier
	reranker    retrieval.Reranker
	generator   *answer.Generator
	summarizer  *summary.Service
	sessions    *session.Manager
	history     *memory.QueryHistoryRepository
	checker     access.Checker
	recorder    audit.Recorder
	logger      logger.ILogger
}

func NewQueryService(
	cfg config.RetrievalConfig,
	store retrieval.SegmentStore,
	classifier retrieval.IntentClassifier,
	reranker retrieval.Reranker,
	generator *answer.Generator,
	sessions *session.Manager,
	history *memory.QueryHistoryRepository,
	checker access.Checker,
	recorder audit.Recorder,
	log logger.ILogger,
) IQueryService {
	if cfg.DefaultLimit <= 0 {
		cfg.DefaultLimit = retrieval.DefaultTopK
	}
	if cfg.RerankTopN <= 0 {
		cfg.RerankTopN = retrieval.DefaultRerankTopN
	}
	if cfg.BatchParallelism <= 0 {
		cfg.BatchParallelism = 4
	}
	if reranker == nil {
		reranker = retrieval.NewLexicalReranker()
	}
	rules := retrieval.NewRuleClassifier()
	if classifier == nil {
		classifier = rules
	}
	if checker == nil {
		checker = access.AllowAll()
	}
	if recorder == nil {
		recorder = audit.NopRecorder()
	}
	if history == nil {
		history = memory.NewQueryHistoryRepository()
	}

	return &queryService{
		cfg:         cfg,
		vector:      retrieval.NewVectorSearch(store),
		hybrid:      retrieval.NewHybridSearch(store, reranker),
		structured:  retrieval.NewStructuredSearch(store),
		intelligent: retrieval.NewIntelligentSearch(store, classifier, reranker, log),
		rules:       rules,
		reranker:    reranker,
		generator:   generator,
		summarizer:  summary.NewService(generator),
		sessions:    sessions,
		history:     history,
		checker:     checker,
		recorder:    recorder,
		logger:      log,
	}
}

func (s *queryService) Simple(ctx context.Context, userID string, req *dto.QueryRequest) (*dto.QueryResponse, error) {
	resp := s.begin(dto.QueryTypeSimple, req)
	err := s.run(ctx, userID, req, func() error {
		docs, err := s.vectorAcross(ctx, req)
		if err != nil {
			return err
		}
		return s.answer(ctx, resp, req, docs, nil)
	})
	return s.finish(ctx, userID, resp, err)
}

func (s *queryService) Semantic(ctx context.Context, userID string, req *dto.SemanticQueryRequest) (*dto.QueryResponse, error) {
	resp := s.begin(dto.QueryTypeSemantic, &req.QueryRequest)
	err := s.run(ctx, userID, &req.QueryRequest, func() error {
		docs, err := s.vectorAcross(ctx, &req.QueryRequest)
		if err != nil {
			return err
		}
		if req.Rerank {
			if docs, err = s.reranker.Rerank(ctx, req.Question, docs, s.cfg.RerankTopN); err != nil {
				return err
			}
		}
		return s.answer(ctx, resp, &req.QueryRequest, docs, nil)
	})
	return s.finish(ctx, userID, resp, err)
}

func (s *queryService) Hybrid(ctx context.Context, userID string, req *dto.HybridQueryRequest) (*dto.QueryResponse, error) {
	resp := s.begin(dto.QueryTypeHybrid, &req.QueryRequest)
	resp.Strategy = entity.StrategyHybrid
	err := s.run(ctx, userID, &req.QueryRequest, func() error {
		wk, ws := s.weights(req.KeywordWeight, req.SemanticWeight)
		limit := s.limit(&req.QueryRequest)
		results := make([][]*entity.SearchCandidate, 0, len(req.KnowledgeBaseIDs))
		for _, kbID := range req.KnowledgeBaseIDs {
			hits, err := s.hybrid.Search(ctx, retrieval.HybridRequest{
				KnowledgeBaseID: kbID,
				Query:           req.Question,
				Model:           req.Model,
				TopK:            limit,
				Threshold:       s.threshold(&req.QueryRequest),
				KeywordWeight:   wk,
				SemanticWeight:  ws,
			})
			if err != nil {
				return kbError(kbID, err)
			}
			results = append(results, hits)
		}
		docs := retrieval.Combine(limit, results...)
		if req.Rerank {
			var err error
			if docs, err = s.reranker.Rerank(ctx, req.Question, docs, s.cfg.RerankTopN); err != nil {
				return err
			}
		}
		return s.answer(ctx, resp, &req.QueryRequest, docs, nil)
	})
	return s.finish(ctx, userID, resp, err)
}

func (s *queryService) Structured(ctx context.Context, userID string, req *dto.StructuredQueryRequest) (*dto.QueryResponse, error) {
	resp := s.begin(dto.QueryTypeStructured, &req.QueryRequest)
	resp.Strategy = entity.StrategyStructured
	err := s.run(ctx, userID, &req.QueryRequest, func() error {
		filters := make([]retrieval.Filter, 0, len(req.Filters))
		for _, f := range req.Filters {
			filters = append(filters, retrieval.Filter{Field: f.Field, Op: retrieval.FilterOp(f.Op), Value: f.Value})
		}
		desc := strings.EqualFold(req.SortOrder, "desc")
		limit := s.limit(&req.QueryRequest)

		results := make([][]*entity.SearchCandidate, 0, len(req.KnowledgeBaseIDs))
		for _, kbID := range req.KnowledgeBaseIDs {
			hits, err := s.structured.Search(ctx, retrieval.StructuredRequest{
				KnowledgeBaseID: kbID,
				Query:           req.Question,
				Model:           req.Model,
				TopK:            limit,
				Threshold:       s.threshold(&req.QueryRequest),
				Filters:         filters,
				RequiredFields:  req.RequiredFields,
				SortBy:          req.SortBy,
				SortDesc:        desc,
			})
			if err != nil {
				return kbError(kbID, err)
			}
			results = append(results, hits)
		}
		docs := retrieval.Combine(limit, results...)
		if req.SortBy != "" {
			retrieval.SortByField(docs, req.SortBy, desc)
		}
		return s.answer(ctx, resp, &req.QueryRequest, docs, nil)
	})
	return s.finish(ctx, userID, resp, err)
}

func (s *queryService) Conversational(ctx context.Context, userID string, req *dto.ConversationalQueryRequest) (*dto.QueryResponse, error) {
	resp := s.begin(dto.QueryTypeConversational, &req.QueryRequest)
	if req.ClearHistory && req.SessionID != "" {
		s.sessions.Clear(req.SessionID)
	}
	conv := s.sessions.LoadOrCreate(userID, req.SessionID, req.KnowledgeBaseIDs)
	resp.SessionID = conv.ID

	err := s.run(ctx, userID, &req.QueryRequest, func() error {
		docs, err := s.vectorAcross(ctx, &req.QueryRequest)
		if err != nil {
			return err
		}
		history := session.RecentHistory(conv, session.PromptMessages)
		if err := s.answer(ctx, resp, &req.QueryRequest, docs, history); err != nil {
			return err
		}
		s.sessions.Append(conv, entity.RoleUser, req.Question)
		s.sessions.Append(conv, entity.RoleAssistant, resp.Answer)
		s.sessions.Save(conv)
		return nil
	})
	return s.finish(ctx, userID, resp, err)
}

func (s *queryService) Summary(ctx context.Context, userID string, req *dto.SummaryQueryRequest) (*dto.QueryResponse, error) {
	resp := s.begin(dto.QueryTypeSummary, &req.QueryRequest)
	kind := summary.ParseType(req.SummaryType)
	resp.SummaryType = string(kind)
	err := s.run(ctx, userID, &req.QueryRequest, func() error {
		docs, err := s.vectorAcross(ctx, &req.QueryRequest)
		if err != nil {
			return err
		}
		s.documents(resp, docs)
		if len(docs) == 0 {
			resp.Answer = answer.NoDocumentsAnswer
			return nil
		}

		temp := s.temperature(ctx, &req.QueryRequest, "")
		text, err := s.summarizer.Summarize(ctx, summary.Request{
			Type:        kind,
			Question:    req.Question,
			Segments:    docs,
			Sentences:   req.Sentences,
			MaxLength:   req.MaxLength,
			Temperature: temp,
			MaxTokens:   s.maxTokens(&req.QueryRequest),
		})
		if err != nil {
			return err
		}
		resp.Summary = text
		resp.Answer = text
		resp.Temperature = temp
		resp.TokensUsed = answer.EstimateTokens(req.Question, text)
		return nil
	})
	return s.finish(ctx, userID, resp, err)
}

func (s *queryService) Citation(ctx context.Context, userID string, req *dto.CitationQueryRequest) (*dto.QueryResponse, error) {
	resp := s.begin(dto.QueryTypeCitation, &req.QueryRequest)
	style := citation.ParseStyle(req.CitationStyle)
	err := s.run(ctx, userID, &req.QueryRequest, func() error {
		docs, err := s.vectorAcross(ctx, &req.QueryRequest)
		if err != nil {
			return err
		}
		if err := s.answer(ctx, resp, &req.QueryRequest, docs, nil, "Mark every statement with the number of the reference it comes from, e.g. [1]"); err != nil {
			return err
		}
		if len(docs) == 0 {
			return nil
		}
		cites := citation.Build(docs, style, req.IncludePage)
		resp.Answer = citation.Append(resp.Answer, cites)
		resp.Citations = make([]dto.CitationResponse, 0, len(cites))
		for _, c := range cites {
			resp.Citations = append(resp.Citations, dto.CitationResponse{
				Index:     c.Index,
				SegmentID: c.SegmentID,
				FileID:    c.FileID,
				Title:     c.Title,
				Source:    c.Source,
				Page:      c.Page,
				Formatted: c.Formatted,
			})
		}
		return nil
	})
	return s.finish(ctx, userID, resp, err)
}

func (s *queryService) Intelligent(ctx context.Context, userID string, req *dto.IntelligentQueryRequest) (*dto.QueryResponse, error) {
	resp := s.begin(dto.QueryTypeIntelligent, &req.QueryRequest)
	err := s.run(ctx, userID, &req.QueryRequest, func() error {
		wk, ws := s.weights(req.KeywordWeight, req.SemanticWeight)
		res, err := s.intelligent.Search(ctx, retrieval.IntelligentRequest{
			KnowledgeBaseIDs: req.KnowledgeBaseIDs,
			Query:            req.Question,
			Model:            req.Model,
			Limit:            s.limit(&req.QueryRequest),
			Threshold:        s.threshold(&req.QueryRequest),
			KeywordWeight:    wk,
			SemanticWeight:   ws,
			Intent:           parseIntentLabel(req.Intent),
		})
		if err != nil {
			return err
		}
		resp.Intent = string(res.Intent)
		resp.Strategy = res.Strategy
		if len(res.Failed) > 0 {
			resp.FailedKnowledge = res.Failed
		}
		return s.answerWithIntent(ctx, resp, &req.QueryRequest, res.Candidates, nil, res.Intent)
	})
	return s.finish(ctx, userID, resp, err)
}

// Batch runs each query on a bounded pool. One query's failure is reported in
// its own payload and never affects the others.
func (s *queryService) Batch(ctx context.Context, userID string, req *dto.BatchQueryRequest) (*dto.BatchQueryResponse, error) {
	if len(req.Queries) == 0 {
		return nil, apperror.New(apperror.KindValidation, "query.batch", "batch is empty")
	}

	pool, err := ants.NewPool(s.cfg.BatchParallelism)
	if err != nil {
		return nil, fmt.Errorf("create batch pool: %w", err)
	}
	defer pool.Release()

	results := make([]*dto.QueryResponse, len(req.Queries))
	var wg sync.WaitGroup
	for i := range req.Queries {
		item := req.Queries[i]
		wg.Add(1)
		submitErr := pool.Submit(func() {
			defer wg.Done()
			results[i] = s.batchItem(ctx, userID, item)
		})
		if submitErr != nil {
			wg.Done()
			results[i] = s.failed(item.QueryType, &item.QueryRequest, submitErr)
		}
	}
	wg.Wait()

	out := &dto.BatchQueryResponse{Total: len(results), Results: results}
	for _, r := range results {
		if r.Success {
			out.Succeeded++
		} else {
			out.Failed++
		}
	}
	s.logger.Info(queryLogModule, "Batch query finished", map[string]interface{}{
		"total":     out.Total,
		"succeeded": out.Succeeded,
		"failed":    out.Failed,
	})
	return out, nil
}

func (s *queryService) batchItem(ctx context.Context, userID string, item dto.BatchQueryItem) *dto.QueryResponse {
	var (
		resp *dto.QueryResponse
		err  error
	)
	if err := serverutils.ValidateRequest(&item); err != nil {
		return s.failed(item.QueryType, &item.QueryRequest, err)
	}
	switch item.QueryType {
	case dto.QueryTypeSemantic:
		resp, err = s.Semantic(ctx, userID, &dto.SemanticQueryRequest{QueryRequest: item.QueryRequest})
	case dto.QueryTypeHybrid:
		resp, err = s.Hybrid(ctx, userID, &dto.HybridQueryRequest{QueryRequest: item.QueryRequest})
	case dto.QueryTypeIntelligent:
		resp, err = s.Intelligent(ctx, userID, &dto.IntelligentQueryRequest{QueryRequest: item.QueryRequest})
	case "", dto.QueryTypeSimple:
		resp, err = s.Simple(ctx, userID, &item.QueryRequest)
	default:
		err = apperror.Newf(apperror.KindValidation, "query.batch", "unsupported query type %q", item.QueryType)
	}
	if err != nil {
		return s.failed(item.QueryType, &item.QueryRequest, err)
	}
	return resp
}

func (s *queryService) failed(queryType string, req *dto.QueryRequest, err error) *dto.QueryResponse {
	if queryType == "" {
		queryType = dto.QueryTypeSimple
	}
	resp := s.begin(queryType, req)
	resp.Error = err.Error()
	resp.ErrorCode = string(apperror.KindOf(err))
	return resp
}

func (s *queryService) begin(queryType string, req *dto.QueryRequest) *dto.QueryResponse {
	return &dto.QueryResponse{
		QueryID:          uuid.NewString(),
		QueryType:        queryType,
		Question:         req.Question,
		KnowledgeBaseIDs: req.KnowledgeBaseIDs,
		Documents:        []dto.DocumentResponse{},
		Model:            req.Model,
		QueryTime:        time.Now(),
	}
}

// run checks read access on every knowledge base before calling fn.
func (s *queryService) run(ctx context.Context, userID string, req *dto.QueryRequest, fn func() error) error {
	if strings.TrimSpace(req.Question) == "" {
		return apperror.New(apperror.KindValidation, "query", "question is required")
	}
	if len(req.KnowledgeBaseIDs) == 0 {
		return apperror.New(apperror.KindValidation, "query", "at least one knowledge base is required")
	}
	if err := checkRanges(req); err != nil {
		return err
	}
	for _, kbID := range req.KnowledgeBaseIDs {
		if err := s.checkRead(ctx, userID, kbID); err != nil {
			return err
		}
	}
	return fn()
}

func (s *queryService) checkRead(ctx context.Context, userID, kbID string) error {
	ok, err := s.checker.CheckAccess(ctx, kbID, userID, access.ActionRead)
	if err != nil {
		return apperror.Wrap(apperror.KindAccessDenied, "query.access", err)
	}
	if !ok {
		return apperror.Newf(apperror.KindAccessDenied, "query.access", "no read access to knowledge base %s", kbID)
	}
	return nil
}

func checkRanges(req *dto.QueryRequest) error {
	switch {
	case req.Limit < 0 || req.Limit > 100:
		return apperror.Newf(apperror.KindValidation, "query", "limit must be between 1 and 100, got %d", req.Limit)
	case req.Threshold != nil && (*req.Threshold < 0 || *req.Threshold > 1):
		return apperror.Newf(apperror.KindValidation, "query", "similarityThreshold must be between 0 and 1, got %v", *req.Threshold)
	case req.Temperature != nil && (*req.Temperature < 0 || *req.Temperature > 2):
		return apperror.Newf(apperror.KindValidation, "query", "temperature must be between 0 and 2, got %v", *req.Temperature)
	}
	return nil
}

// finish stamps timing and outcome, records the operation and turns domain
// failures into the payload. Validation failures are returned as errors.
func (s *queryService) finish(ctx context.Context, userID string, resp *dto.QueryResponse, err error) (*dto.QueryResponse, error) {
	resp.ProcessingTimeMs = time.Since(resp.QueryTime).Milliseconds()
	if err != nil && apperror.KindOf(err) == apperror.KindValidation {
		return nil, err
	}

	details := map[string]interface{}{
		"query_id":   resp.QueryID,
		"query_type": resp.QueryType,
		"documents":  len(resp.Documents),
		"elapsed_ms": resp.ProcessingTimeMs,
	}
	if err != nil {
		resp.Success = false
		resp.Error = err.Error()
		resp.ErrorCode = string(apperror.KindOf(err))
		details["error"] = err.Error()
		s.logger.Warn(queryLogModule, "Query failed", details)
	} else {
		resp.Success = true
		s.logger.Info(queryLogModule, "Query answered", details)
	}

	s.recorder.Record(ctx, userID, audit.OpQuery, resp.QueryID, nil, map[string]interface{}{
		"queryType":        resp.QueryType,
		"question":         resp.Question,
		"knowledgeBaseIds": resp.KnowledgeBaseIDs,
		"success":          resp.Success,
		"documents":        len(resp.Documents),
	})
	if userID != "" {
		s.history.Append(entity.QueryRecord{
			QueryID:          resp.QueryID,
			UserID:           userID,
			SessionID:        resp.SessionID,
			QueryType:        resp.QueryType,
			Question:         resp.Question,
			Answer:           resp.Answer,
			KnowledgeBaseIDs: resp.KnowledgeBaseIDs,
			Success:          resp.Success,
			QueryTime:        resp.QueryTime,
		})
	}
	return resp, nil
}

func (s *queryService) vectorAcross(ctx context.Context, req *dto.QueryRequest) ([]*entity.SearchCandidate, error) {
	limit := s.limit(req)
	results := make([][]*entity.SearchCandidate, 0, len(req.KnowledgeBaseIDs))
	for _, kbID := range req.KnowledgeBaseIDs {
		hits, err := s.vector.Search(ctx, retrieval.VectorRequest{
			KnowledgeBaseID: kbID,
			Query:           req.Question,
			Model:           req.Model,
			TopK:            limit,
			Threshold:       s.threshold(req),
		})
		if err != nil {
			return nil, kbError(kbID, err)
		}
		results = append(results, hits)
	}
	return retrieval.Combine(limit, results...), nil
}

func (s *queryService) answer(ctx context.Context, resp *dto.QueryResponse, req *dto.QueryRequest, docs []*entity.SearchCandidate, history []llm.Message, guidelines ...string) error {
	return s.answerWithIntent(ctx, resp, req, docs, history, "", guidelines...)
}

// answerWithIntent fills documents and the generated answer. An empty
// retrieval answers with NoDocumentsAnswer without calling the model.
func (s *queryService) answerWithIntent(
	ctx context.Context,
	resp *dto.QueryResponse,
	req *dto.QueryRequest,
	docs []*entity.SearchCandidate,
	history []llm.Message,
	intent retrieval.Intent,
	guidelines ...string,
) error {
	s.documents(resp, docs)
	if len(docs) == 0 {
		resp.Answer = answer.NoDocumentsAnswer
		return nil
	}

	b := prompt.NewContextualBuilder(req.Question, docs, history)
	for _, g := range guidelines {
		b.WithGuideline(g)
	}
	temp := s.temperature(ctx, req, intent)
	text, err := s.generator.Generate(ctx, b.Build(), answer.Options{Temperature: temp, MaxTokens: s.maxTokens(req)})
	if err != nil {
		return err
	}
	resp.Answer = text
	resp.Temperature = temp
	resp.TokensUsed = answer.EstimateTokens(req.Question, text)
	return nil
}

func (s *queryService) documents(resp *dto.QueryResponse, docs []*entity.SearchCandidate) {
	resp.Documents = make([]dto.DocumentResponse, 0, len(docs))
	total := 0.0
	for _, c := range docs {
		resp.Documents = append(resp.Documents, dto.DocumentResponse{
			SegmentID:       c.Segment.ID,
			FileID:          c.Segment.FileID,
			KnowledgeBaseID: c.Segment.KnowledgeBaseID,
			Content:         c.Segment.Text,
			Ordinal:         c.Segment.Ordinal,
			Score:           c.Score,
			KeywordScore:    c.KeywordScore,
			SemanticScore:   c.SemanticScore,
			RerankScore:     c.RerankScore,
			Strategy:        c.SourceStrategy,
			Metadata:        c.Segment.Metadata,
		})
		total += c.Score
	}
	if len(docs) > 0 {
		resp.AverageScore = total / float64(len(docs))
	}
}

// temperature starts from the request or configured value and adjusts it to
// the question's intent.
func (s *queryService) temperature(ctx context.Context, req *dto.QueryRequest, intent retrieval.Intent) float64 {
	base := s.cfg.Temperature
	if req.Temperature != nil {
		base = *req.Temperature
	}
	if intent == "" {
		intent = s.rules.Classify(ctx, req.Question)
	}
	return retrieval.AdjustTemperature(intent, base)
}

func (s *queryService) limit(req *dto.QueryRequest) int {
	if req.Limit > 0 {
		return req.Limit
	}
	return s.cfg.DefaultLimit
}

func (s *queryService) threshold(req *dto.QueryRequest) *float64 {
	if req.Threshold != nil {
		return req.Threshold
	}
	t := s.cfg.SimilarityThreshold
	return &t
}

func (s *queryService) maxTokens(req *dto.QueryRequest) int {
	if req.MaxTokens > 0 {
		return req.MaxTokens
	}
	return s.cfg.MaxTokens
}

func (s *queryService) weights(keyword, semantic *float64) (float64, float64) {
	wk, ws := s.cfg.KeywordWeight, s.cfg.SemanticWeight
	if keyword != nil {
		wk = *keyword
	}
	if semantic != nil {
		ws = *semantic
	}
	return wk, ws
}

func parseIntentLabel(label string) retrieval.Intent {
	if strings.TrimSpace(label) == "" {
		return ""
	}
	return retrieval.ParseIntent(label)
}

func kbError(kbID string, err error) error {
	var appErr *apperror.Error
	if errors.As(err, &appErr) {
		return fmt.Errorf("knowledge base %s: %w", kbID, err)
	}
	return apperror.Wrap(apperror.KindVectorStore, "query.search", fmt.Errorf("knowledge base %s: %w", kbID, err))
}
