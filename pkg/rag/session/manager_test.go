package session

import (
	"fmt"
	"testing"

	"ai-knowledge-be/internal/entity"
	"ai-knowledge-be/internal/repository/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadOrCreate(t *testing.T) {
	m := NewManager(memory.NewSessionRepository())

	fresh := m.LoadOrCreate("u1", "", []string{"kb1"})
	require.NotEmpty(t, fresh.ID)
	assert.Equal(t, []string{"kb1"}, fresh.KnowledgeBaseIDs)

	m.Append(fresh, entity.RoleUser, "hello")
	m.Save(fresh)

	loaded := m.LoadOrCreate("u1", fresh.ID, nil)
	assert.Equal(t, fresh.ID, loaded.ID)
	assert.Len(t, loaded.Messages, 1)
	assert.Equal(t, []string{"kb1"}, loaded.KnowledgeBaseIDs)

	other := m.LoadOrCreate("u2", fresh.ID, nil)
	assert.Empty(t, other.Messages, "another user never sees the session")
	assert.NotEqual(t, fresh.ID, other.ID)

	named := m.LoadOrCreate("u1", "client-chosen", nil)
	assert.Equal(t, "client-chosen", named.ID)
}

func TestHistoryIsCapped(t *testing.T) {
	m := NewManager(memory.NewSessionRepository())
	s := m.LoadOrCreate("u1", "", nil)
	for i := 0; i < 25; i++ {
		m.Append(s, entity.RoleUser, fmt.Sprintf("q%d", i))
	}

	require.Len(t, s.Messages, MaxMessages)
	assert.Equal(t, "q5", s.Messages[0].Content)

	recent := RecentHistory(s, PromptMessages)
	require.Len(t, recent, PromptMessages)
	assert.Equal(t, "q19", recent[0].Content)
	assert.Equal(t, "q24", recent[5].Content)
	assert.Equal(t, entity.RoleUser, recent[5].Role)
}

func TestLoadedSessionIsACopy(t *testing.T) {
	m := NewManager(memory.NewSessionRepository())
	s := m.LoadOrCreate("u1", "s1", nil)
	m.Save(s)

	loaded := m.LoadOrCreate("u1", "s1", nil)
	m.Append(loaded, entity.RoleUser, "unsaved")

	again := m.LoadOrCreate("u1", "s1", nil)
	assert.Empty(t, again.Messages)

	m.Clear("s1")
	assert.Empty(t, m.LoadOrCreate("u1", "s1", nil).Messages)
}
