package entity

import "time"

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

type ConversationMessage struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

// ConversationSession is the short-lived state of a multi-turn query.
type ConversationSession struct {
	ID               string
	UserID           string
	KnowledgeBaseIDs []string
	Messages         []ConversationMessage
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// QueryRecord is one answered (or failed) query kept for the user's history.
type QueryRecord struct {
	QueryID          string
	UserID           string
	SessionID        string
	QueryType        string
	Question         string
	Answer           string
	KnowledgeBaseIDs []string
	Success          bool
	QueryTime        time.Time
}
