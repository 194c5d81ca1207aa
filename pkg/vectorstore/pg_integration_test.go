package vectorstore

import (
	"context"
	"log"
	"os"
	"testing"

	"ai-knowledge-be/internal/entity"
	"ai-knowledge-be/internal/model"
	"ai-knowledge-be/internal/repository/unitofwork"
	"ai-knowledge-be/pkg/database"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const pgDimension = 768

func basis(weights map[int]float32) []float32 {
	v := make([]float32, pgDimension)
	for i, w := range weights {
		v[i] = w
	}
	return v
}

func newPgStore(t *testing.T) *PgStore {
	t.Helper()
	if err := godotenv.Load("../../.env"); err != nil {
		log.Println("No .env file found, using system env")
	}
	dsn := os.Getenv("DB_CONNECTION_STRING")
	if dsn == "" {
		t.Skip("Skipping integration test: DB_CONNECTION_STRING not set")
	}

	db, err := database.NewGormDBFromDSN(dsn)
	require.NoError(t, err)
	require.NoError(t, db.Exec("CREATE EXTENSION IF NOT EXISTS vector").Error)
	require.NoError(t, db.AutoMigrate(&model.KnowledgeBase{}, &model.DocumentSegment{}))

	return NewPgStore(unitofwork.NewRepositoryFactory(db), fixedEmbedder{vec: basis(map[int]float32{0: 1})})
}

func TestPgStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newPgStore(t)

	kb1 := "it-" + uuid.NewString()[:8]
	kb2 := "it-" + uuid.NewString()[:8]
	for _, id := range []string{kb1, kb2} {
		require.NoError(t, s.CreateKnowledgeBase(ctx, &entity.KnowledgeBase{ID: id, Name: id, OwnerID: "owner"}))
	}
	t.Cleanup(func() {
		_ = s.DeleteKnowledgeBase(ctx, kb1)
		_ = s.DeleteKnowledgeBase(ctx, kb2)
	})

	require.NoError(t, s.AddSegments(ctx, kb1, []*entity.Segment{
		{ID: kb1 + "-a", FileID: "f1", Ordinal: 0, Text: "Go channels and goroutines", Vector: basis(map[int]float32{0: 1})},
		{ID: kb1 + "-b", FileID: "f1", Ordinal: 1, Text: "database indexes", Vector: basis(map[int]float32{0: 0.6, 1: 0.8})},
		{ID: kb1 + "-c", FileID: "f2", Ordinal: 0, Text: "cooking notes", Vector: basis(map[int]float32{1: 1})},
	}))
	require.NoError(t, s.AddSegments(ctx, kb2, []*entity.Segment{
		{ID: kb2 + "-z", FileID: "f1", Ordinal: 0, Text: "Go channels elsewhere", Vector: basis(map[int]float32{0: 1})},
	}))

	t.Run("similarity search stays inside one knowledge base", func(t *testing.T) {
		got, err := s.SimilaritySearch(ctx, SearchRequest{KnowledgeBaseID: kb1, QueryText: "channels", TopK: 10, Threshold: 0.5})
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, kb1+"-a", got[0].Segment.ID)
		assert.Equal(t, kb1+"-b", got[1].Segment.ID)
		assert.InDelta(t, 1.0, got[0].Score, 1e-4)
		assert.InDelta(t, 0.6, got[1].Score, 1e-4)
	})

	t.Run("keyword candidates", func(t *testing.T) {
		got, err := s.KeywordCandidates(ctx, kb1, []string{"indexes"}, 10)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, kb1+"-b", got[0].ID)
	})

	t.Run("keyword candidates with more hits survive the limit", func(t *testing.T) {
		got, err := s.KeywordCandidates(ctx, kb1, []string{"channels", "cooking", "notes"}, 1)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, kb1+"-c", got[0].ID)
	})

	t.Run("stats", func(t *testing.T) {
		st, err := s.Stats(ctx, kb1)
		require.NoError(t, err)
		assert.Equal(t, int64(3), st.SegmentCount)
		assert.Equal(t, int64(2), st.FileCount)
		assert.Equal(t, pgDimension, st.Dimension)
	})

	t.Run("delete by file leaves other knowledge bases alone", func(t *testing.T) {
		n, err := s.DeleteByFileID(ctx, kb1, "f1")
		require.NoError(t, err)
		assert.Equal(t, int64(2), n)

		left, err := s.CountByFileID(ctx, kb1, "f1")
		require.NoError(t, err)
		assert.Zero(t, left)

		other, err := s.CountByFileID(ctx, kb2, "f1")
		require.NoError(t, err)
		assert.Equal(t, int64(1), other)
	})
}
