package retrieval

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"ai-knowledge-be/internal/entity"
	"ai-knowledge-be/internal/pkg/logger"
	"ai-knowledge-be/pkg/llm"
)

const DefaultRerankTopN = 20

// Reranker reorders the first topN candidates by a secondary signal. It
// never adds or drops candidates and the tail beyond topN keeps its order.
type Reranker interface {
	Rerank(ctx context.Context, query string, candidates []*entity.SearchCandidate, topN int) ([]*entity.SearchCandidate, error)
}

// LexicalReranker blends the retrieval score with keyword overlap between
// the query and the segment text.
type LexicalReranker struct{}

func NewLexicalReranker() *LexicalReranker {
	return &LexicalReranker{}
}

func (LexicalReranker) Rerank(_ context.Context, query string, candidates []*entity.SearchCandidate, topN int) ([]*entity.SearchCandidate, error) {
	head, tail := split(candidates, topN)
	keywords := ExtractKeywords(query)
	for _, c := range head {
		c.RerankScore = 0.5*c.Score + 0.5*overlap(c.Segment.Text, keywords)
	}
	sortByRerank(head)
	return append(head, tail...), nil
}

func split(candidates []*entity.SearchCandidate, topN int) (head, tail []*entity.SearchCandidate) {
	if topN <= 0 {
		topN = DefaultRerankTopN
	}
	out := make([]*entity.SearchCandidate, len(candidates))
	copy(out, candidates)
	if topN > len(out) {
		topN = len(out)
	}
	return out[:topN:topN], out[topN:]
}

// overlap is the share of keywords present in text.
func overlap(text string, keywords []string) float64 {
	if len(keywords) == 0 {
		return 0
	}
	lower := strings.ToLower(text)
	hit := 0
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			hit++
		}
	}
	return float64(hit) / float64(len(keywords))
}

// sortByRerank depends only on RerankScore and segment id, so running it
// twice yields the same order.
func sortByRerank(c []*entity.SearchCandidate) {
	sort.SliceStable(c, func(i, j int) bool {
		if c[i].RerankScore != c[j].RerankScore {
			return c[i].RerankScore > c[j].RerankScore
		}
		return c[i].Segment.ID < c[j].Segment.ID
	})
}

// LLMReranker asks the chat model to grade each candidate from 0 to 10 and
// falls back to lexical reranking when the call or its output fails.
type LLMReranker struct {
	provider llm.LLMProvider
	fallback Reranker
	logger   logger.ILogger
}

func NewLLMReranker(provider llm.LLMProvider, log logger.ILogger) *LLMReranker {
	return &LLMReranker{provider: provider, fallback: NewLexicalReranker(), logger: log}
}

type relevanceScore struct {
	Index int     `json:"index"`
	Score float64 `json:"score"`
}

func (r *LLMReranker) Rerank(ctx context.Context, query string, candidates []*entity.SearchCandidate, topN int) ([]*entity.SearchCandidate, error) {
	head, tail := split(candidates, topN)
	if len(head) == 0 {
		return candidates, nil
	}

	response, err := r.provider.Generate(ctx, buildRerankPrompt(query, head), llm.WithTemperature(0), llm.WithJSONMode())
	if err != nil {
		r.logger.Warn(logModule, "LLM rerank failed, using lexical", map[string]interface{}{"error": err.Error()})
		return r.fallback.Rerank(ctx, query, candidates, topN)
	}

	scores, err := parseRelevance(response, len(head))
	if err != nil {
		r.logger.Warn(logModule, "LLM rerank output unusable, using lexical", map[string]interface{}{"error": err.Error()})
		return r.fallback.Rerank(ctx, query, candidates, topN)
	}

	for i, c := range head {
		c.RerankScore = scores[i] / 10
	}
	sortByRerank(head)
	return append(head, tail...), nil
}

func buildRerankPrompt(query string, head []*entity.SearchCandidate) string {
	var prompt strings.Builder
	prompt.WriteString("<system>\n")
	prompt.WriteString("You grade how well each passage answers the question. You do NOT answer the question.\n")
	prompt.WriteString("</system>\n\n")
	prompt.WriteString("<question>\n")
	prompt.WriteString(query)
	prompt.WriteString("\n</question>\n\n<passages>\n")
	for i, c := range head {
		text := c.Segment.Text
		if runes := []rune(text); len(runes) > 500 {
			text = string(runes[:500])
		}
		prompt.WriteString(fmt.Sprintf("[%d] %s\n", i, text))
	}
	prompt.WriteString("</passages>\n\n")
	prompt.WriteString("Respond with ONLY valid JSON: {\"scores\": [{\"index\": 0, \"score\": 7.5}, ...]} with a score from 0 to 10 for every passage.")
	return prompt.String()
}

func parseRelevance(response string, n int) ([]float64, error) {
	raw := extractJSON(response)
	if raw == "" {
		return nil, fmt.Errorf("no JSON found in response")
	}
	var payload struct {
		Scores []relevanceScore `json:"scores"`
	}
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return nil, fmt.Errorf("JSON unmarshal failed: %w", err)
	}

	out := make([]float64, n)
	seen := 0
	for _, s := range payload.Scores {
		if s.Index < 0 || s.Index >= n {
			continue
		}
		score := s.Score
		if score < 0 {
			score = 0
		} else if score > 10 {
			score = 10
		}
		out[s.Index] = score
		seen++
	}
	if seen == 0 {
		return nil, fmt.Errorf("no usable scores")
	}
	return out, nil
}

// extractJSON returns the outermost {...} block of s, or "".
func extractJSON(s string) string {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return ""
	}
	return s[start : end+1]
}
