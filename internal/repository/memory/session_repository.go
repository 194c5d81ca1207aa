package memory

import (
	"time"

	"ai-knowledge-be/internal/entity"

	"github.com/patrickmn/go-cache"
)

const (
	SessionTTL           = time.Hour
	sessionPurgeInterval = 10 * time.Minute
)

type SessionRepository struct {
	cache *cache.Cache
}

func NewSessionRepository() *SessionRepository {
	return NewSessionRepositoryWithTTL(SessionTTL)
}

// NewSessionRepositoryWithTTL expires idle sessions after ttl. Every Save
// restarts the clock.
func NewSessionRepositoryWithTTL(ttl time.Duration) *SessionRepository {
	purge := sessionPurgeInterval
	if ttl < purge {
		purge = ttl
	}
	return &SessionRepository{
		cache: cache.New(ttl, purge),
	}
}

func (r *SessionRepository) Save(session *entity.ConversationSession) {
	r.cache.Set(session.ID, session, cache.DefaultExpiration)
}

func (r *SessionRepository) Get(sessionID string) (*entity.ConversationSession, bool) {
	if x, found := r.cache.Get(sessionID); found {
		return x.(*entity.ConversationSession), true
	}
	return nil, false
}

func (r *SessionRepository) Delete(sessionID string) {
	r.cache.Delete(sessionID)
}

func (r *SessionRepository) Count() int {
	return r.cache.ItemCount()
}
