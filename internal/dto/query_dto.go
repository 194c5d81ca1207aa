package dto

import "time"

const (
	QueryTypeSimple         = "simple"
	QueryTypeSemantic       = "semantic"
	QueryTypeHybrid         = "hybrid"
	QueryTypeStructured     = "structured"
	QueryTypeConversational = "conversational"
	QueryTypeSummary        = "summary"
	QueryTypeCitation       = "citation"
	QueryTypeIntelligent    = "intelligent"
	QueryTypeBatch          = "batch"
)

// QueryRequest holds the fields every query type shares.
type QueryRequest struct {
	Question         string   `json:"question" validate:"required,max=2000"`
	KnowledgeBaseIDs []string `json:"knowledgeBaseIds" validate:"required,min=1,max=20,dive,required"`
	Model            string   `json:"model"`
	Limit            int      `json:"limit" validate:"omitempty,min=1,max=100"`
	Threshold        *float64 `json:"similarityThreshold" validate:"omitempty,min=0,max=1"`
	Temperature      *float64 `json:"temperature" validate:"omitempty,min=0,max=2"`
	MaxTokens        int      `json:"maxTokens" validate:"omitempty,min=1,max=32000"`
}

type SemanticQueryRequest struct {
	QueryRequest
	Rerank bool `json:"rerank"`
}

type HybridQueryRequest struct {
	QueryRequest
	KeywordWeight  *float64 `json:"keywordWeight" validate:"omitempty,min=0"`
	SemanticWeight *float64 `json:"semanticWeight" validate:"omitempty,min=0"`
	Rerank         bool     `json:"rerank"`
}

type FilterRequest struct {
	Field string      `json:"field" validate:"required"`
	Op    string      `json:"op" validate:"required,oneof=eq ne gt gte lt lte in contains"`
	Value interface{} `json:"value"`
}

type StructuredQueryRequest struct {
	QueryRequest
	Filters        []FilterRequest `json:"filters" validate:"omitempty,dive"`
	RequiredFields []string        `json:"requiredFields"`
	SortBy         string          `json:"sortBy"`
	SortOrder      string          `json:"sortOrder" validate:"omitempty,oneof=asc desc"`
}

type ConversationalQueryRequest struct {
	QueryRequest
	SessionID    string `json:"sessionId"`
	ClearHistory bool   `json:"clearHistory"`
}

type SummaryQueryRequest struct {
	QueryRequest
	SummaryType string `json:"summaryType" validate:"omitempty,oneof=extractive abstractive hybrid"`
	Sentences   int    `json:"sentences" validate:"omitempty,min=1,max=50"`
	MaxLength   int    `json:"maxLength" validate:"omitempty,min=50,max=10000"`
}

type CitationQueryRequest struct {
	QueryRequest
	CitationStyle string `json:"citationStyle" validate:"omitempty,oneof=apa mla chicago ieee default"`
	IncludePage   bool   `json:"includePage"`
}

type IntelligentQueryRequest struct {
	QueryRequest
	Intent         string   `json:"intent"`
	KeywordWeight  *float64 `json:"keywordWeight" validate:"omitempty,min=0"`
	SemanticWeight *float64 `json:"semanticWeight" validate:"omitempty,min=0"`
}

type BatchQueryItem struct {
	QueryRequest
	QueryType string `json:"queryType" validate:"omitempty,oneof=simple semantic hybrid intelligent"`
}

// BatchQueryRequest items are validated one by one so a bad item fails alone.
type BatchQueryRequest struct {
	Queries []BatchQueryItem `json:"queries" validate:"required,min=1,max=50"`
}

type DocumentResponse struct {
	SegmentID       string                 `json:"segmentId"`
	FileID          string                 `json:"fileId"`
	KnowledgeBaseID string                 `json:"knowledgeBaseId"`
	Content         string                 `json:"content"`
	Ordinal         int                    `json:"ordinal"`
	Score           float64                `json:"score"`
	KeywordScore    float64                `json:"keywordScore,omitempty"`
	SemanticScore   float64                `json:"semanticScore,omitempty"`
	RerankScore     float64                `json:"rerankScore,omitempty"`
	Strategy        string                 `json:"strategy"`
	Metadata        map[string]interface{} `json:"metadata,omitempty"`
}

type CitationResponse struct {
	Index     int    `json:"index"`
	SegmentID string `json:"segmentId"`
	FileID    string `json:"fileId"`
	Title     string `json:"title"`
	Source    string `json:"source"`
	Page      int    `json:"page,omitempty"`
	Formatted string `json:"formatted"`
}

// QueryResponse is returned by every query type. Success is false when the
// query failed; Error then carries the reason and Answer may still hold a
// user-facing message.
type QueryResponse struct {
	Success          bool               `json:"success"`
	QueryID          string             `json:"queryId"`
	QueryType        string             `json:"queryType"`
	Question         string             `json:"question"`
	KnowledgeBaseIDs []string           `json:"knowledgeBaseIds"`
	Answer           string             `json:"answer"`
	Documents        []DocumentResponse `json:"documents"`
	AverageScore     float64            `json:"averageScore"`
	Citations        []CitationResponse `json:"citations,omitempty"`
	Summary          string             `json:"summary,omitempty"`
	SummaryType      string             `json:"summaryType,omitempty"`
	SessionID        string             `json:"sessionId,omitempty"`
	Intent           string             `json:"intent,omitempty"`
	Strategy         string             `json:"strategy,omitempty"`
	FailedKnowledge  map[string]string  `json:"failedKnowledgeBases,omitempty"`
	Model            string             `json:"model,omitempty"`
	Temperature      float64            `json:"temperature"`
	TokensUsed       int                `json:"tokensUsed"`
	ProcessingTimeMs int64              `json:"processingTimeMs"`
	QueryTime        time.Time          `json:"queryTime"`
	ErrorCode        string             `json:"errorCode,omitempty"`
	Error            string             `json:"error,omitempty"`
}

type BatchQueryResponse struct {
	Total     int              `json:"total"`
	Succeeded int              `json:"succeeded"`
	Failed    int              `json:"failed"`
	Results   []*QueryResponse `json:"results"`
}

type QuerySuggestionRequest struct {
	PartialQuery    string `json:"partialQuery" validate:"max=500"`
	KnowledgeBaseID string `json:"knowledgeBaseId"`
	Limit           int    `json:"limit" validate:"omitempty,min=1,max=20"`
}

type QuerySuggestionResponse struct {
	PartialQuery    string   `json:"partialQuery"`
	KnowledgeBaseID string   `json:"knowledgeBaseId,omitempty"`
	Suggestions     []string `json:"suggestions"`
}

type RelatedQueryRequest struct {
	CurrentQuery    string `json:"currentQuery" validate:"required,max=2000"`
	KnowledgeBaseID string `json:"knowledgeBaseId"`
	Limit           int    `json:"limit" validate:"omitempty,min=1,max=20"`
}

type RelatedQueryResponse struct {
	CurrentQuery    string   `json:"currentQuery"`
	KnowledgeBaseID string   `json:"knowledgeBaseId,omitempty"`
	RelatedQueries  []string `json:"relatedQueries"`
}

// QueryHistoryRequest filters the caller's history. Dates are RFC 3339 and
// both bounds are inclusive.
type QueryHistoryRequest struct {
	SessionID string     `json:"sessionId"`
	Limit     int        `json:"limit" validate:"omitempty,min=1,max=100"`
	StartDate *time.Time `json:"startDate"`
	EndDate   *time.Time `json:"endDate"`
}

type QueryHistoryItem struct {
	QueryID          string    `json:"queryId"`
	SessionID        string    `json:"sessionId,omitempty"`
	QueryType        string    `json:"queryType"`
	Question         string    `json:"question"`
	Answer           string    `json:"answer"`
	KnowledgeBaseIDs []string  `json:"knowledgeBaseIds"`
	Success          bool      `json:"success"`
	QueryTime        time.Time `json:"queryTime"`
}

type QueryHistoryResponse struct {
	UserID     string             `json:"userId"`
	History    []QueryHistoryItem `json:"history"`
	TotalCount int                `json:"totalCount"`
}
