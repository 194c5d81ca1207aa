package session

import (
	"sync"
	"time"

	"ai-knowledge-be/internal/entity"
	"ai-knowledge-be/internal/repository/memory"
	"ai-knowledge-be/pkg/llm"

	"github.com/google/uuid"
)

const (
	// MaxMessages caps what a session keeps; older turns are dropped first.
	MaxMessages = 20
	// PromptMessages is how much history goes into a prompt.
	PromptMessages = 6
)

// Manager handles conversation sessions kept in the in-memory repository.
type Manager struct {
	sessionRepo *memory.SessionRepository
	mu          sync.Mutex
}

func NewManager(sessionRepo *memory.SessionRepository) *Manager {
	return &Manager{sessionRepo: sessionRepo}
}

// LoadOrCreate returns the session with sessionID, or a fresh one when the id
// is empty, unknown or expired. A session owned by someone else is never
// returned; the caller gets a fresh one under a new id. The returned copy is
// safe to modify; call Save to keep changes.
func (m *Manager) LoadOrCreate(userID, sessionID string, kbIDs []string) *entity.ConversationSession {
	m.mu.Lock()
	defer m.mu.Unlock()

	if sessionID != "" {
		if s, ok := m.sessionRepo.Get(sessionID); ok {
			if s.UserID != userID {
				// Never reuse another user's id, or saving would overwrite
				// their session.
				sessionID = ""
			} else {
				c := *s
				c.Messages = append([]entity.ConversationMessage(nil), s.Messages...)
				if len(kbIDs) > 0 {
					c.KnowledgeBaseIDs = append([]string(nil), kbIDs...)
				}
				return &c
			}
		}
	}
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	now := time.Now()
	return &entity.ConversationSession{
		ID:               sessionID,
		UserID:           userID,
		KnowledgeBaseIDs: append([]string(nil), kbIDs...),
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

// Append adds a turn and trims the session to MaxMessages.
func (m *Manager) Append(s *entity.ConversationSession, role, content string) {
	now := time.Now()
	s.Messages = append(s.Messages, entity.ConversationMessage{Role: role, Content: content, CreatedAt: now})
	if len(s.Messages) > MaxMessages {
		s.Messages = append([]entity.ConversationMessage(nil), s.Messages[len(s.Messages)-MaxMessages:]...)
	}
	s.UpdatedAt = now
}

func (m *Manager) Save(s *entity.ConversationSession) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessionRepo.Save(s)
}

func (m *Manager) Clear(sessionID string) {
	m.sessionRepo.Delete(sessionID)
}

// RecentHistory converts the last n messages to chat messages.
func RecentHistory(s *entity.ConversationSession, n int) []llm.Message {
	msgs := s.Messages
	if n > 0 && len(msgs) > n {
		msgs = msgs[len(msgs)-n:]
	}
	out := make([]llm.Message, 0, len(msgs))
	for _, msg := range msgs {
		out = append(out, llm.Message{Role: msg.Role, Content: msg.Content})
	}
	return out
}
