package implementation

import (
	"context"
	"strings"

	"ai-knowledge-be/internal/entity"
	"ai-knowledge-be/internal/mapper"
	"ai-knowledge-be/internal/model"
	"ai-knowledge-be/internal/repository/contract"
	"ai-knowledge-be/internal/repository/specification"

	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type DocumentSegmentRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.DocumentSegmentMapper
}

func NewDocumentSegmentRepository(db *gorm.DB) contract.DocumentSegmentRepository {
	return &DocumentSegmentRepositoryImpl{
		db:     db,
		mapper: mapper.NewDocumentSegmentMapper(),
	}
}

func (r *DocumentSegmentRepositoryImpl) applySpecifications(db *gorm.DB, specs ...specification.Specification) *gorm.DB {
	for _, spec := range specs {
		db = spec.Apply(db)
	}
	return db
}

func (r *DocumentSegmentRepositoryImpl) Upsert(ctx context.Context, segments []*entity.Segment) error {
	if len(segments) == 0 {
		return nil
	}
	models := r.mapper.ToModels(segments)
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		CreateInBatches(models, 100).Error
}

func (r *DocumentSegmentRepositoryImpl) DeleteByIDs(ctx context.Context, kbID string, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res := r.db.WithContext(ctx).
		Where("knowledge_base_id = ? AND id IN ?", kbID, ids).
		Delete(&model.DocumentSegment{})
	return res.RowsAffected, res.Error
}

func (r *DocumentSegmentRepositoryImpl) DeleteByFileID(ctx context.Context, kbID, fileID string) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("knowledge_base_id = ? AND file_id = ?", kbID, fileID).
		Delete(&model.DocumentSegment{})
	return res.RowsAffected, res.Error
}

func (r *DocumentSegmentRepositoryImpl) DeleteByKnowledgeBaseID(ctx context.Context, kbID string) error {
	return r.db.WithContext(ctx).
		Where("knowledge_base_id = ?", kbID).
		Delete(&model.DocumentSegment{}).Error
}

func (r *DocumentSegmentRepositoryImpl) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Segment, error) {
	var models []*model.DocumentSegment
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	return r.mapper.ToEntities(models), nil
}

func (r *DocumentSegmentRepositoryImpl) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	var count int64
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	err := query.Model(&model.DocumentSegment{}).Count(&count).Error
	return count, err
}

func (r *DocumentSegmentRepositoryImpl) CountDistinctFiles(ctx context.Context, kbID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.DocumentSegment{}).
		Where("knowledge_base_id = ?", kbID).
		Distinct("file_id").
		Count(&count).Error
	return count, err
}

// SearchSimilarWithScore ranks segments of one knowledge base by cosine
// similarity, computed as 1 - (embedding_value <=> query).
func (r *DocumentSegmentRepositoryImpl) SearchSimilarWithScore(ctx context.Context, kbID string, embedding []float32, limit int, threshold float64) ([]*contract.ScoredSegment, error) {
	if limit <= 0 {
		limit = 10
	}

	type result struct {
		model.DocumentSegment
		Similarity float64
	}
	var results []result

	queryVector := pgvector.NewVector(embedding)

	err := r.db.WithContext(ctx).
		Table("document_segments").
		Select("document_segments.*, 1 - (embedding_value <=> ?) as similarity", queryVector).
		Where("knowledge_base_id = ?", kbID).
		Where("1 - (embedding_value <=> ?) >= ?", queryVector, threshold).
		Order("similarity DESC").
		Order("id ASC").
		Limit(limit).
		Scan(&results).Error
	if err != nil {
		return nil, err
	}

	scored := make([]*contract.ScoredSegment, len(results))
	for i, res := range results {
		scored[i] = &contract.ScoredSegment{
			Segment:    r.mapper.ToEntity(&res.DocumentSegment),
			Similarity: res.Similarity,
		}
	}
	return scored, nil
}

func (r *DocumentSegmentRepositoryImpl) FindByKeywords(ctx context.Context, kbID string, keywords []string, limit int) ([]*entity.Segment, error) {
	if len(keywords) == 0 {
		return nil, nil
	}

	conds := make([]string, 0, len(keywords))
	hits := make([]string, 0, len(keywords))
	args := make([]interface{}, 0, len(keywords))
	for _, kw := range keywords {
		conds = append(conds, "content ILIKE ?")
		hits = append(hits, "CASE WHEN content ILIKE ? THEN 1 ELSE 0 END")
		args = append(args, "%"+escapeLike(kw)+"%")
	}

	// Segments matching more keywords come first so the limit keeps the
	// strongest lexical candidates.
	query := r.db.WithContext(ctx).
		Where("knowledge_base_id = ?", kbID).
		Where("("+strings.Join(conds, " OR ")+")", args...).
		Order(clause.OrderBy{Expression: clause.Expr{
			SQL:                "(" + strings.Join(hits, " + ") + ") DESC",
			Vars:               args,
			WithoutParentheses: true,
		}}).
		Order("file_id ASC").
		Order("ordinal ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var models []*model.DocumentSegment
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	return r.mapper.ToEntities(models), nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
