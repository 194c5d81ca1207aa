package service

import (
	"context"
	"slices"
	"strings"

	"ai-knowledge-be/internal/dto"
	"ai-knowledge-be/internal/entity"
	"ai-knowledge-be/pkg/apperror"
)

const (
	DefaultSuggestionLimit = 5
	DefaultHistoryLimit    = 20
)

var suggestionTemplates = []string{
	"What is %s?",
	"What are the main features of %s?",
	"Where is %s used?",
	"How do I use %s?",
	"What are the advantages and disadvantages of %s?",
	"How has %s developed over time?",
	"How does %s compare with similar approaches?",
	"What are the best practices for %s?",
}

var relatedTemplates = []string{
	"What concepts are related to %s?",
	"What is the history of %s?",
	"What are the future trends for %s?",
	"Are there case studies about %s?",
	"What are the best practices for %s?",
	"What are common questions about %s?",
	"What challenges does %s face?",
	"How is %s applied in industry?",
}

// starterQuestions are offered when nothing has been typed and the user has
// no matching history.
var starterQuestions = []string{
	"What topics does this knowledge base cover?",
	"Summarize the key points of the documents",
	"What are the most important concepts explained here?",
	"What best practices do the documents recommend?",
	"What problems do the documents address?",
}

var questionLead = map[string]struct{}{
	"what": {}, "which": {}, "who": {}, "how": {}, "why": {}, "when": {}, "where": {},
	"is": {}, "are": {}, "was": {}, "were": {}, "do": {}, "does": {}, "did": {},
	"can": {}, "could": {}, "should": {}, "would": {}, "i": {}, "we": {}, "you": {},
	"tell": {}, "me": {}, "about": {}, "explain": {}, "describe": {}, "please": {},
	"the": {}, "a": {}, "an": {},
}

// querySubject strips trailing punctuation and leading question words, so
// "What is pgvector?" becomes "pgvector". The last word is always kept.
func querySubject(q string) string {
	q = strings.TrimRight(strings.TrimSpace(q), "?？.!。！ ")
	words := strings.Fields(q)
	i := 0
	for i < len(words)-1 {
		if _, ok := questionLead[strings.ToLower(words[i])]; !ok {
			break
		}
		i++
	}
	return strings.Join(words[i:], " ")
}

// Suggestions completes a partial question. The user's earlier questions
// that contain the typed text come first, then template questions about it.
func (s *queryService) Suggestions(ctx context.Context, userID string, req *dto.QuerySuggestionRequest) (*dto.QuerySuggestionResponse, error) {
	if req.KnowledgeBaseID != "" {
		if err := s.checkRead(ctx, userID, req.KnowledgeBaseID); err != nil {
			return nil, err
		}
	}
	limit := req.Limit
	if limit <= 0 {
		limit = DefaultSuggestionLimit
	}

	partial := strings.TrimSpace(req.PartialQuery)
	list := newSuggestionList(limit)
	if userID != "" {
		needle := strings.ToLower(partial)
		for _, rec := range s.history.List(userID) {
			if req.KnowledgeBaseID != "" && !slices.Contains(rec.KnowledgeBaseIDs, req.KnowledgeBaseID) {
				continue
			}
			q := strings.TrimSpace(rec.Question)
			if strings.EqualFold(q, partial) || !strings.Contains(strings.ToLower(q), needle) {
				continue
			}
			list.add(q)
		}
	}
	if partial == "" {
		for _, q := range starterQuestions {
			list.add(q)
		}
	} else {
		list.addTemplates(suggestionTemplates, querySubject(partial))
	}

	return &dto.QuerySuggestionResponse{
		PartialQuery:    req.PartialQuery,
		KnowledgeBaseID: req.KnowledgeBaseID,
		Suggestions:     list.items,
	}, nil
}

// Related proposes follow-up questions about the subject of currentQuery.
func (s *queryService) Related(ctx context.Context, userID string, req *dto.RelatedQueryRequest) (*dto.RelatedQueryResponse, error) {
	if strings.TrimSpace(req.CurrentQuery) == "" {
		return nil, apperror.New(apperror.KindValidation, "query.related", "currentQuery is required")
	}
	if req.KnowledgeBaseID != "" {
		if err := s.checkRead(ctx, userID, req.KnowledgeBaseID); err != nil {
			return nil, err
		}
	}
	limit := req.Limit
	if limit <= 0 {
		limit = DefaultSuggestionLimit
	}

	list := newSuggestionList(limit)
	list.addTemplates(relatedTemplates, querySubject(req.CurrentQuery))
	return &dto.RelatedQueryResponse{
		CurrentQuery:    req.CurrentQuery,
		KnowledgeBaseID: req.KnowledgeBaseID,
		RelatedQueries:  list.items,
	}, nil
}

// History lists the caller's recent queries, newest first. TotalCount counts
// every match before the limit is applied.
func (s *queryService) History(ctx context.Context, userID string, req *dto.QueryHistoryRequest) (*dto.QueryHistoryResponse, error) {
	if userID == "" {
		return nil, apperror.New(apperror.KindAccessDenied, "query.history", "sign in to read query history")
	}
	if req.StartDate != nil && req.EndDate != nil && req.EndDate.Before(*req.StartDate) {
		return nil, apperror.New(apperror.KindValidation, "query.history", "endDate is before startDate")
	}
	limit := req.Limit
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}

	out := &dto.QueryHistoryResponse{UserID: userID, History: []dto.QueryHistoryItem{}}
	for _, rec := range s.history.List(userID) {
		if req.SessionID != "" && rec.SessionID != req.SessionID {
			continue
		}
		if req.StartDate != nil && rec.QueryTime.Before(*req.StartDate) {
			continue
		}
		if req.EndDate != nil && rec.QueryTime.After(*req.EndDate) {
			continue
		}
		out.TotalCount++
		if len(out.History) < limit {
			out.History = append(out.History, historyItem(rec))
		}
	}
	return out, nil
}

func historyItem(rec entity.QueryRecord) dto.QueryHistoryItem {
	return dto.QueryHistoryItem{
		QueryID:          rec.QueryID,
		SessionID:        rec.SessionID,
		QueryType:        rec.QueryType,
		Question:         rec.Question,
		Answer:           rec.Answer,
		KnowledgeBaseIDs: rec.KnowledgeBaseIDs,
		Success:          rec.Success,
		QueryTime:        rec.QueryTime,
	}
}

// suggestionList collects distinct questions, compared case-insensitively,
// up to a limit.
type suggestionList struct {
	limit int
	seen  map[string]struct{}
	items []string
}

func newSuggestionList(limit int) *suggestionList {
	return &suggestionList{limit: limit, seen: make(map[string]struct{}), items: []string{}}
}

func (l *suggestionList) add(q string) {
	if len(l.items) >= l.limit || q == "" {
		return
	}
	key := strings.ToLower(q)
	if _, dup := l.seen[key]; dup {
		return
	}
	l.seen[key] = struct{}{}
	l.items = append(l.items, q)
}

func (l *suggestionList) addTemplates(templates []string, subject string) {
	for _, tpl := range templates {
		l.add(strings.Replace(tpl, "%s", subject, 1))
	}
}
