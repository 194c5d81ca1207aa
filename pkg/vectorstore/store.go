package vectorstore

import (
	"context"
	"errors"
	"math"
	"sort"

	"ai-knowledge-be/internal/entity"
	"ai-knowledge-be/pkg/apperror"
)

// ErrKnowledgeBaseNotFound is wrapped in a vector store error when an
// operation names a knowledge base that was never created.
var ErrKnowledgeBaseNotFound = errors.New("knowledge base not found")

const DefaultTopK = 10

type SearchRequest struct {
	KnowledgeBaseID string
	QueryText       string
	QueryVector     []float32
	Model           string
	TopK            int
	Threshold       float64
}

// QueryEmbedder turns query text into a vector.
type QueryEmbedder interface {
	EmbedQuery(ctx context.Context, model, text string) ([]float32, error)
}

// Store persists segment vectors per knowledge base. Every operation is
// scoped to one knowledge base.
type Store interface {
	CreateKnowledgeBase(ctx context.Context, kb *entity.KnowledgeBase) error
	GetKnowledgeBase(ctx context.Context, kbID string) (*entity.KnowledgeBase, error)
	KnowledgeBaseExists(ctx context.Context, kbID string) (bool, error)
	DeleteKnowledgeBase(ctx context.Context, kbID string) error

	AddSegments(ctx context.Context, kbID string, segments []*entity.Segment) error
	DeleteSegments(ctx context.Context, kbID string, ids []string) error
	DeleteByFileID(ctx context.Context, kbID, fileID string) (int64, error)
	CountByFileID(ctx context.Context, kbID, fileID string) (int64, error)

	SimilaritySearch(ctx context.Context, req SearchRequest) ([]*entity.SearchCandidate, error)
	// KeywordCandidates returns segments containing any keyword, those
	// matching the most keywords first, capped at limit.
	KeywordCandidates(ctx context.Context, kbID string, keywords []string, limit int) ([]*entity.Segment, error)
	Stats(ctx context.Context, kbID string) (*entity.KnowledgeBaseStats, error)
}

func notFound(op, kbID string) error {
	return apperror.Wrap(apperror.KindVectorStore, op, &kbError{kbID: kbID})
}

type kbError struct{ kbID string }

func (e *kbError) Error() string { return "knowledge base " + e.kbID + " not found" }

func (e *kbError) Is(target error) bool { return target == ErrKnowledgeBaseNotFound }

func storeError(op string, err error) error {
	return apperror.Wrap(apperror.KindVectorStore, op, err)
}

// resolveQueryVector returns the request vector, embedding the text when no
// vector was supplied.
func resolveQueryVector(ctx context.Context, embedder QueryEmbedder, req SearchRequest) ([]float32, error) {
	if len(req.QueryVector) > 0 {
		return req.QueryVector, nil
	}
	if req.QueryText == "" {
		return nil, apperror.New(apperror.KindValidation, "vectorstore.search", "query text or vector is required")
	}
	if embedder == nil {
		return nil, apperror.New(apperror.KindVectorStore, "vectorstore.search", "no embedder configured for text queries")
	}
	return embedder.EmbedQuery(ctx, req.Model, req.QueryText)
}

func validateSegments(kbID string, segments []*entity.Segment) error {
	for _, s := range segments {
		if len(s.Vector) == 0 {
			return apperror.Newf(apperror.KindVectorStore, "vectorstore.add", "segment %s has no vector", s.ID)
		}
		if s.KnowledgeBaseID != "" && s.KnowledgeBaseID != kbID {
			return apperror.Newf(apperror.KindVectorStore, "vectorstore.add", "segment %s belongs to knowledge base %s", s.ID, s.KnowledgeBaseID)
		}
	}
	return nil
}

func cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func clampScore(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}

// sortCandidates orders by score descending with the segment id as tie-break.
func sortCandidates(c []*entity.SearchCandidate) {
	sort.SliceStable(c, func(i, j int) bool {
		if c[i].Score != c[j].Score {
			return c[i].Score > c[j].Score
		}
		return c[i].Segment.ID < c[j].Segment.ID
	})
}
