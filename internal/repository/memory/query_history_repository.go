package memory

import (
	"sync"
	"time"

	"ai-knowledge-be/internal/entity"

	"github.com/patrickmn/go-cache"
)

const (
	QueryHistoryTTL = 24 * time.Hour
	// MaxQueryHistory caps the records kept per user; the oldest go first.
	MaxQueryHistory = 200
)

// QueryHistoryRepository keeps each user's recent queries, newest last. A
// user's list expires QueryHistoryTTL after their last query.
type QueryHistoryRepository struct {
	cache *cache.Cache
	mu    sync.Mutex
}

func NewQueryHistoryRepository() *QueryHistoryRepository {
	return NewQueryHistoryRepositoryWithTTL(QueryHistoryTTL)
}

func NewQueryHistoryRepositoryWithTTL(ttl time.Duration) *QueryHistoryRepository {
	purge := sessionPurgeInterval
	if ttl < purge {
		purge = ttl
	}
	return &QueryHistoryRepository{cache: cache.New(ttl, purge)}
}

func (r *QueryHistoryRepository) Append(record entity.QueryRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var records []entity.QueryRecord
	if x, found := r.cache.Get(record.UserID); found {
		records = x.([]entity.QueryRecord)
	}
	next := make([]entity.QueryRecord, 0, len(records)+1)
	next = append(next, records...)
	next = append(next, record)
	if len(next) > MaxQueryHistory {
		next = next[len(next)-MaxQueryHistory:]
	}
	r.cache.Set(record.UserID, next, cache.DefaultExpiration)
}

// List returns a copy of userID's records, newest first.
func (r *QueryHistoryRepository) List(userID string) []entity.QueryRecord {
	x, found := r.cache.Get(userID)
	if !found {
		return nil
	}
	records := x.([]entity.QueryRecord)
	out := make([]entity.QueryRecord, len(records))
	for i, rec := range records {
		out[len(records)-1-i] = rec
	}
	return out
}
