package entity

import "strconv"

const (
	StrategyVector      = "vector"
	StrategyKeyword     = "keyword"
	StrategyHybrid      = "hybrid"
	StrategyStructured  = "structured"
	StrategyIntelligent = "intelligent"
)

// SearchCandidate is a segment with its retrieval score. KeywordScore and
// SemanticScore are set by hybrid retrieval.
type SearchCandidate struct {
	Segment        *Segment
	Score          float64
	SourceStrategy string
	KeywordScore   float64
	SemanticScore  float64
	RerankScore    float64
}

// DocumentKey identifies a segment across knowledge bases for de-duplication.
func (c *SearchCandidate) DocumentKey() string {
	return c.Segment.FileID + "#" + strconv.Itoa(c.Segment.Ordinal)
}

type Citation struct {
	Index     int    `json:"index"`
	SegmentID string `json:"segmentId"`
	FileID    string `json:"fileId"`
	Title     string `json:"title"`
	Source    string `json:"source"`
	Page      int    `json:"page"`
	Text      string `json:"text"`
	Formatted string `json:"formatted"`
}

type QueryResult struct {
	Candidates []*SearchCandidate
	Answer     string
	Citations  []Citation
}
