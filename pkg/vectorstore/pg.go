package vectorstore

import (
	"context"

	"ai-knowledge-be/internal/entity"
	"ai-knowledge-be/internal/repository/specification"
	"ai-knowledge-be/internal/repository/unitofwork"
	"ai-knowledge-be/pkg/apperror"
)

// PgStore keeps segments in postgres with pgvector cosine search.
type PgStore struct {
	uowFactory unitofwork.RepositoryFactory
	embedder   QueryEmbedder
}

var _ Store = &PgStore{}

func NewPgStore(uowFactory unitofwork.RepositoryFactory, embedder QueryEmbedder) *PgStore {
	return &PgStore{uowFactory: uowFactory, embedder: embedder}
}

func (p *PgStore) CreateKnowledgeBase(ctx context.Context, kb *entity.KnowledgeBase) error {
	if kb.ID == "" {
		return apperror.New(apperror.KindValidation, "vectorstore.create", "knowledge base id is required")
	}
	exists, err := p.KnowledgeBaseExists(ctx, kb.ID)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	uow := p.uowFactory.NewUnitOfWork(ctx)
	if err := uow.KnowledgeBaseRepository().Create(ctx, kb); err != nil {
		return storeError("vectorstore.create", err)
	}
	return nil
}

func (p *PgStore) GetKnowledgeBase(ctx context.Context, kbID string) (*entity.KnowledgeBase, error) {
	uow := p.uowFactory.NewUnitOfWork(ctx)
	kb, err := uow.KnowledgeBaseRepository().FindOne(ctx, specification.ByID{ID: kbID})
	if err != nil {
		return nil, storeError("vectorstore.get", err)
	}
	if kb == nil {
		return nil, notFound("vectorstore.get", kbID)
	}
	return kb, nil
}

func (p *PgStore) KnowledgeBaseExists(ctx context.Context, kbID string) (bool, error) {
	uow := p.uowFactory.NewUnitOfWork(ctx)
	n, err := uow.KnowledgeBaseRepository().Count(ctx, specification.ByID{ID: kbID})
	if err != nil {
		return false, storeError("vectorstore.exists", err)
	}
	return n > 0, nil
}

// DeleteKnowledgeBase removes the knowledge base and all of its segments in
// one transaction.
func (p *PgStore) DeleteKnowledgeBase(ctx context.Context, kbID string) error {
	uow := p.uowFactory.NewUnitOfWork(ctx)
	if err := uow.Begin(ctx); err != nil {
		return storeError("vectorstore.delete_kb", err)
	}
	if err := uow.DocumentSegmentRepository().DeleteByKnowledgeBaseID(ctx, kbID); err != nil {
		_ = uow.Rollback()
		return storeError("vectorstore.delete_kb", err)
	}
	if err := uow.KnowledgeBaseRepository().Delete(ctx, kbID); err != nil {
		_ = uow.Rollback()
		return storeError("vectorstore.delete_kb", err)
	}
	if err := uow.Commit(); err != nil {
		return storeError("vectorstore.delete_kb", err)
	}
	return nil
}

func (p *PgStore) requireKnowledgeBase(ctx context.Context, op, kbID string) error {
	exists, err := p.KnowledgeBaseExists(ctx, kbID)
	if err != nil {
		return err
	}
	if !exists {
		return notFound(op, kbID)
	}
	return nil
}

func (p *PgStore) AddSegments(ctx context.Context, kbID string, segments []*entity.Segment) error {
	if err := validateSegments(kbID, segments); err != nil {
		return err
	}
	if err := p.requireKnowledgeBase(ctx, "vectorstore.add", kbID); err != nil {
		return err
	}
	for _, s := range segments {
		s.KnowledgeBaseID = kbID
	}
	uow := p.uowFactory.NewUnitOfWork(ctx)
	if err := uow.DocumentSegmentRepository().Upsert(ctx, segments); err != nil {
		return apperror.Transient(apperror.KindVectorStore, "vectorstore.add", err)
	}
	return nil
}

func (p *PgStore) DeleteSegments(ctx context.Context, kbID string, ids []string) error {
	uow := p.uowFactory.NewUnitOfWork(ctx)
	if _, err := uow.DocumentSegmentRepository().DeleteByIDs(ctx, kbID, ids); err != nil {
		return storeError("vectorstore.delete", err)
	}
	return nil
}

func (p *PgStore) DeleteByFileID(ctx context.Context, kbID, fileID string) (int64, error) {
	uow := p.uowFactory.NewUnitOfWork(ctx)
	n, err := uow.DocumentSegmentRepository().DeleteByFileID(ctx, kbID, fileID)
	if err != nil {
		return 0, storeError("vectorstore.delete_file", err)
	}
	return n, nil
}

func (p *PgStore) CountByFileID(ctx context.Context, kbID, fileID string) (int64, error) {
	uow := p.uowFactory.NewUnitOfWork(ctx)
	n, err := uow.DocumentSegmentRepository().Count(ctx,
		specification.ByKnowledgeBaseID{KnowledgeBaseID: kbID},
		specification.ByFileID{FileID: fileID},
	)
	if err != nil {
		return 0, storeError("vectorstore.count_file", err)
	}
	return n, nil
}

func (p *PgStore) SimilaritySearch(ctx context.Context, req SearchRequest) ([]*entity.SearchCandidate, error) {
	if err := p.requireKnowledgeBase(ctx, "vectorstore.search", req.KnowledgeBaseID); err != nil {
		return nil, err
	}
	query, err := resolveQueryVector(ctx, p.embedder, req)
	if err != nil {
		return nil, err
	}
	topK := req.TopK
	if topK <= 0 {
		topK = DefaultTopK
	}

	uow := p.uowFactory.NewUnitOfWork(ctx)
	scored, err := uow.DocumentSegmentRepository().SearchSimilarWithScore(ctx, req.KnowledgeBaseID, query, topK, req.Threshold)
	if err != nil {
		return nil, apperror.Transient(apperror.KindVectorStore, "vectorstore.search", err)
	}

	out := make([]*entity.SearchCandidate, len(scored))
	for i, s := range scored {
		out[i] = &entity.SearchCandidate{
			Segment:        s.Segment,
			Score:          clampScore(s.Similarity),
			SourceStrategy: entity.StrategyVector,
		}
	}
	sortCandidates(out)
	return out, nil
}

func (p *PgStore) KeywordCandidates(ctx context.Context, kbID string, keywords []string, limit int) ([]*entity.Segment, error) {
	if err := p.requireKnowledgeBase(ctx, "vectorstore.keyword", kbID); err != nil {
		return nil, err
	}
	uow := p.uowFactory.NewUnitOfWork(ctx)
	segs, err := uow.DocumentSegmentRepository().FindByKeywords(ctx, kbID, keywords, limit)
	if err != nil {
		return nil, storeError("vectorstore.keyword", err)
	}
	return segs, nil
}

func (p *PgStore) Stats(ctx context.Context, kbID string) (*entity.KnowledgeBaseStats, error) {
	if err := p.requireKnowledgeBase(ctx, "vectorstore.stats", kbID); err != nil {
		return nil, err
	}
	repo := p.uowFactory.NewUnitOfWork(ctx).DocumentSegmentRepository()

	segments, err := repo.Count(ctx, specification.ByKnowledgeBaseID{KnowledgeBaseID: kbID})
	if err != nil {
		return nil, storeError("vectorstore.stats", err)
	}
	files, err := repo.CountDistinctFiles(ctx, kbID)
	if err != nil {
		return nil, storeError("vectorstore.stats", err)
	}

	stats := &entity.KnowledgeBaseStats{SegmentCount: segments, FileCount: files}
	if segments > 0 {
		sample, err := repo.FindAll(ctx,
			specification.ByKnowledgeBaseID{KnowledgeBaseID: kbID},
			specification.Pagination{Limit: 1},
		)
		if err == nil && len(sample) > 0 {
			stats.Dimension = len(sample[0].Vector)
		}
	}
	return stats, nil
}
