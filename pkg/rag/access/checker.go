package access

import (
	"context"
	"errors"

	"ai-knowledge-be/internal/entity"
	"ai-knowledge-be/pkg/vectorstore"
)

const (
	ActionRead   = "read"
	ActionWrite  = "write"
	ActionDelete = "delete"
)

// Checker decides whether userID may perform action on resourceID.
type Checker interface {
	CheckAccess(ctx context.Context, resourceID, userID, action string) (bool, error)
}

type allowAll struct{}

// AllowAll grants everything. Used when no access policy is configured.
func AllowAll() Checker {
	return allowAll{}
}

func (allowAll) CheckAccess(context.Context, string, string, string) (bool, error) {
	return true, nil
}

type KnowledgeBaseSource interface {
	GetKnowledgeBase(ctx context.Context, kbID string) (*entity.KnowledgeBase, error)
}

// OwnershipChecker grants access to a knowledge base's owner. Public
// knowledge bases are readable by anyone. A knowledge base that does not
// exist yet is open, since the first ingestion creates it for the caller.
type OwnershipChecker struct {
	source KnowledgeBaseSource
}

func NewOwnershipChecker(source KnowledgeBaseSource) *OwnershipChecker {
	return &OwnershipChecker{source: source}
}

func (c *OwnershipChecker) CheckAccess(ctx context.Context, resourceID, userID, action string) (bool, error) {
	kb, err := c.source.GetKnowledgeBase(ctx, resourceID)
	if errors.Is(err, vectorstore.ErrKnowledgeBaseNotFound) {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	if kb == nil || kb.OwnerID == "" || kb.OwnerID == userID {
		return true, nil
	}
	return kb.Public && action == ActionRead, nil
}
