package vectorstore

import (
	"context"
	"errors"
	"testing"

	"ai-knowledge-be/internal/entity"
	"ai-knowledge-be/pkg/apperror"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedEmbedder struct {
	vec []float32
}

func (f fixedEmbedder) EmbedQuery(ctx context.Context, model, text string) ([]float32, error) {
	return f.vec, nil
}

func seg(id, kb, file string, ordinal int, text string, vec ...float32) *entity.Segment {
	return &entity.Segment{ID: id, KnowledgeBaseID: kb, FileID: file, Ordinal: ordinal, Text: text, Vector: vec}
}

func newStore(t *testing.T) *MemoryStore {
	t.Helper()
	ctx := context.Background()
	s := NewMemoryStore(fixedEmbedder{vec: []float32{1, 0}})
	require.NoError(t, s.CreateKnowledgeBase(ctx, &entity.KnowledgeBase{ID: "kb1", Name: "first"}))
	require.NoError(t, s.CreateKnowledgeBase(ctx, &entity.KnowledgeBase{ID: "kb2", Name: "second"}))
	require.NoError(t, s.AddSegments(ctx, "kb1", []*entity.Segment{
		seg("a", "kb1", "f1", 0, "Go channels and goroutines", 1, 0),
		seg("b", "kb1", "f1", 1, "database indexes", 0.6, 0.8),
		seg("c", "kb1", "f2", 0, "unrelated cooking notes", 0, 1),
	}))
	require.NoError(t, s.AddSegments(ctx, "kb2", []*entity.Segment{
		seg("z", "kb2", "f9", 0, "Go channels elsewhere", 1, 0),
	}))
	return s
}

func TestSimilaritySearch(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	tests := []struct {
		name      string
		req       SearchRequest
		wantIDs   []string
		wantError bool
	}{
		{
			name:    "orders by score and applies threshold",
			req:     SearchRequest{KnowledgeBaseID: "kb1", QueryVector: []float32{1, 0}, TopK: 10, Threshold: 0.5},
			wantIDs: []string{"a", "b"},
		},
		{
			name:    "top k truncates",
			req:     SearchRequest{KnowledgeBaseID: "kb1", QueryVector: []float32{1, 0}, TopK: 1},
			wantIDs: []string{"a"},
		},
		{
			name:    "text query uses embedder",
			req:     SearchRequest{KnowledgeBaseID: "kb1", QueryText: "channels", TopK: 1},
			wantIDs: []string{"a"},
		},
		{
			name:    "scoped to knowledge base",
			req:     SearchRequest{KnowledgeBaseID: "kb2", QueryVector: []float32{1, 0}},
			wantIDs: []string{"z"},
		},
		{
			name:      "unknown knowledge base",
			req:       SearchRequest{KnowledgeBaseID: "missing", QueryVector: []float32{1, 0}},
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.SimilaritySearch(ctx, tt.req)
			if tt.wantError {
				require.Error(t, err)
				assert.True(t, errors.Is(err, apperror.ErrVectorStore))
				assert.True(t, errors.Is(err, ErrKnowledgeBaseNotFound))
				return
			}
			require.NoError(t, err)
			ids := make([]string, len(got))
			for i, c := range got {
				ids[i] = c.Segment.ID
				assert.GreaterOrEqual(t, c.Score, 0.0)
				assert.LessOrEqual(t, c.Score, 1.0)
				assert.Equal(t, entity.StrategyVector, c.SourceStrategy)
			}
			assert.Equal(t, tt.wantIDs, ids)
		})
	}
}

func TestSimilaritySearchTieBreaksByID(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(nil)
	require.NoError(t, s.CreateKnowledgeBase(ctx, &entity.KnowledgeBase{ID: "kb"}))
	require.NoError(t, s.AddSegments(ctx, "kb", []*entity.Segment{
		seg("y", "kb", "f", 1, "y", 1, 1),
		seg("x", "kb", "f", 0, "x", 1, 1),
	}))

	got, err := s.SimilaritySearch(ctx, SearchRequest{KnowledgeBaseID: "kb", QueryVector: []float32{1, 1}})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "x", got[0].Segment.ID)
	assert.Equal(t, "y", got[1].Segment.ID)
}

func TestAddSegments(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	err := s.AddSegments(ctx, "missing", []*entity.Segment{seg("q", "", "f", 0, "q", 1)})
	assert.True(t, errors.Is(err, apperror.ErrVectorStore))

	err = s.AddSegments(ctx, "kb1", []*entity.Segment{seg("q", "kb1", "f", 0, "q")})
	assert.True(t, errors.Is(err, apperror.ErrVectorStore), "segment without vector")

	err = s.AddSegments(ctx, "kb1", []*entity.Segment{seg("q", "kb2", "f", 0, "q", 1, 0)})
	assert.True(t, errors.Is(err, apperror.ErrVectorStore), "segment from another knowledge base")

	// Same id overwrites.
	require.NoError(t, s.AddSegments(ctx, "kb1", []*entity.Segment{seg("a", "kb1", "f1", 0, "rewritten", 1, 0)}))
	stats, err := s.Stats(ctx, "kb1")
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.SegmentCount)
}

func TestDeletes(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	n, err := s.DeleteByFileID(ctx, "kb1", "f1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	n, err = s.DeleteByFileID(ctx, "kb1", "f1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)

	count, err := s.CountByFileID(ctx, "kb1", "f2")
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	require.NoError(t, s.DeleteSegments(ctx, "kb1", []string{"c", "does-not-exist"}))
	require.NoError(t, s.DeleteSegments(ctx, "missing", []string{"c"}))

	stats, err := s.Stats(ctx, "kb1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), stats.SegmentCount)

	// Other knowledge bases are untouched.
	stats, err = s.Stats(ctx, "kb2")
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.SegmentCount)

	require.NoError(t, s.DeleteKnowledgeBase(ctx, "kb2"))
	ok, err := s.KnowledgeBaseExists(ctx, "kb2")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestKeywordCandidates(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	got, err := s.KeywordCandidates(ctx, "kb1", []string{"CHANNELS", "indexes"}, 0)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].ID)
	assert.Equal(t, "b", got[1].ID)

	got, err = s.KeywordCandidates(ctx, "kb1", nil, 0)
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = s.KeywordCandidates(ctx, "missing", []string{"go"}, 0)
	assert.True(t, errors.Is(err, apperror.ErrVectorStore))
}

func TestKeywordCandidatesKeepStrongestUnderLimit(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	require.NoError(t, s.AddSegments(ctx, "kb1", []*entity.Segment{
		seg("d", "kb1", "f3", 0, "channels over database indexes", 0, 1),
	}))

	got, err := s.KeywordCandidates(ctx, "kb1", []string{"channels", "indexes"}, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "d", got[0].ID)
	assert.Equal(t, "a", got[1].ID)
}

func TestStats(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	stats, err := s.Stats(ctx, "kb1")
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.SegmentCount)
	assert.Equal(t, int64(2), stats.FileCount)
	assert.Equal(t, 2, stats.Dimension)
}

func TestReturnedSegmentsAreCopies(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	got, err := s.SimilaritySearch(ctx, SearchRequest{KnowledgeBaseID: "kb1", QueryVector: []float32{1, 0}, TopK: 1})
	require.NoError(t, err)
	got[0].Segment.Vector[0] = 42

	again, err := s.SimilaritySearch(ctx, SearchRequest{KnowledgeBaseID: "kb1", QueryVector: []float32{1, 0}, TopK: 1})
	require.NoError(t, err)
	assert.Equal(t, float32(1), again[0].Segment.Vector[0])
}
