package memory

import (
	"fmt"
	"testing"
	"time"

	"ai-knowledge-be/internal/entity"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueryHistoryRepository(t *testing.T) {
	repo := NewQueryHistoryRepository()
	repo.Append(entity.QueryRecord{QueryID: "q1", UserID: "u1"})
	repo.Append(entity.QueryRecord{QueryID: "q2", UserID: "u1"})
	repo.Append(entity.QueryRecord{QueryID: "x1", UserID: "u2"})

	got := repo.List("u1")
	require.Len(t, got, 2)
	assert.Equal(t, "q2", got[0].QueryID)
	assert.Equal(t, "q1", got[1].QueryID)
	assert.Len(t, repo.List("u2"), 1)
	assert.Empty(t, repo.List("nobody"))
}

func TestQueryHistoryRepositoryKeepsNewest(t *testing.T) {
	repo := NewQueryHistoryRepository()
	for i := 0; i < MaxQueryHistory+5; i++ {
		repo.Append(entity.QueryRecord{QueryID: fmt.Sprintf("q%d", i), UserID: "u1"})
	}

	got := repo.List("u1")
	require.Len(t, got, MaxQueryHistory)
	assert.Equal(t, fmt.Sprintf("q%d", MaxQueryHistory+4), got[0].QueryID)
	assert.Equal(t, "q5", got[len(got)-1].QueryID)
}

func TestQueryHistoryRepositoryExpires(t *testing.T) {
	repo := NewQueryHistoryRepositoryWithTTL(20 * time.Millisecond)
	repo.Append(entity.QueryRecord{QueryID: "q1", UserID: "u1"})

	assert.Eventually(t, func() bool {
		return len(repo.List("u1")) == 0
	}, time.Second, 5*time.Millisecond)
}
