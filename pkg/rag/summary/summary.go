package summary

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"

	"ai-knowledge-be/internal/entity"
	"ai-knowledge-be/pkg/rag/answer"
	"ai-knowledge-be/pkg/rag/prompt"
)

type Type string

const (
	TypeExtractive  Type = "extractive"
	TypeAbstractive Type = "abstractive"
	TypeHybrid      Type = "hybrid"

	DefaultSentences = 5
)

func ParseType(s string) Type {
	switch t := Type(strings.ToLower(strings.TrimSpace(s))); t {
	case TypeAbstractive, TypeHybrid:
		return t
	}
	return TypeExtractive
}

var (
	sentencePattern = regexp.MustCompile(`[^.!?。！？]+[.!?。！？]*`)
	tokenPattern    = regexp.MustCompile(`\p{Han}|\p{L}+(?:['’]\p{L}+)*|\p{N}+`)
)

// FrequencySummarizer ranks sentences by word frequency with stop words
// filtered out.
type FrequencySummarizer struct {
	stopwords map[string]struct{}
}

func NewFrequencySummarizer() *FrequencySummarizer {
	return &FrequencySummarizer{stopwords: defaultStopwords()}
}

// Summarize keeps the maxSentences best scoring sentences in their original
// order.
func (s *FrequencySummarizer) Summarize(text string, maxSentences int) string {
	if maxSentences <= 0 {
		maxSentences = DefaultSentences
	}
	sentences := splitSentences(text)
	if len(sentences) == 0 {
		return strings.TrimSpace(text)
	}

	freq := map[string]float64{}
	for _, sent := range sentences {
		for _, tok := range s.tokens(sent) {
			if _, ok := s.stopwords[tok]; ok {
				continue
			}
			freq[tok]++
		}
	}
	maxF := 0.0
	for _, v := range freq {
		if v > maxF {
			maxF = v
		}
	}
	if maxF > 0 {
		for k, v := range freq {
			freq[k] = v / maxF
		}
	}

	type pair struct {
		idx   int
		score float64
	}
	scores := make([]pair, len(sentences))
	for i, sent := range sentences {
		toks := s.tokens(sent)
		score := 0.0
		for _, tok := range toks {
			score += freq[tok]
		}
		// Dampen long sentences.
		if l := float64(len(toks)); l > 0 {
			score /= math.Sqrt(l)
		}
		scores[i] = pair{i, score}
	}
	sort.SliceStable(scores, func(i, j int) bool { return scores[i].score > scores[j].score })
	if maxSentences > len(scores) {
		maxSentences = len(scores)
	}

	selected := make([]int, maxSentences)
	for i := 0; i < maxSentences; i++ {
		selected[i] = scores[i].idx
	}
	sort.Ints(selected)
	out := make([]string, 0, len(selected))
	for _, idx := range selected {
		out = append(out, sentences[idx])
	}
	return strings.Join(out, " ")
}

func (s *FrequencySummarizer) tokens(text string) []string {
	return tokenPattern.FindAllString(strings.ToLower(text), -1)
}

func splitSentences(text string) []string {
	var out []string
	for _, raw := range sentencePattern.FindAllString(text, -1) {
		if sent := strings.TrimSpace(raw); sent != "" {
			out = append(out, sent)
		}
	}
	return out
}

func defaultStopwords() map[string]struct{} {
	words := []string{
		"a", "an", "the", "and", "or", "but", "if", "then", "else", "for", "to", "of", "in", "on", "at", "by", "with", "as", "is", "are", "was", "were", "be", "been", "being", "it", "this", "that", "these", "those", "from", "up", "down", "over", "under", "again", "further", "than", "so", "such", "into", "about", "between", "through", "during", "before", "after", "above", "below", "out", "off", "own", "same", "too", "very", "can", "will", "just", "don", "should", "now",
		"的", "了", "在", "是", "我", "有", "和", "就", "不", "人", "都", "一", "也", "很", "到", "说", "要", "去", "你", "会", "着", "没", "看", "好", "这", "那",
	}
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}

// Service produces extractive, abstractive or hybrid summaries of retrieved
// segments.
type Service struct {
	extractor *FrequencySummarizer
	generator *answer.Generator
}

func NewService(generator *answer.Generator) *Service {
	return &Service{extractor: NewFrequencySummarizer(), generator: generator}
}

type Request struct {
	Type        Type
	Question    string
	Segments    []*entity.SearchCandidate
	Sentences   int
	MaxLength   int
	Temperature float64
	MaxTokens   int
}

func (s *Service) Summarize(ctx context.Context, req Request) (string, error) {
	text := joinSegments(req.Segments)
	sentences := req.Sentences
	if sentences <= 0 {
		sentences = DefaultSentences
	}

	switch req.Type {
	case TypeAbstractive:
		return s.abstractive(ctx, req, req.Segments)
	case TypeHybrid:
		// Half the budget goes to extraction; the model rewrites that.
		half := (sentences + 1) / 2
		extract := s.extractor.Summarize(text, half)
		material := []*entity.SearchCandidate{{Segment: &entity.Segment{FileID: "extract", Text: extract}}}
		return s.abstractive(ctx, req, material)
	default:
		return clip(s.extractor.Summarize(text, sentences), req.MaxLength), nil
	}
}

func (s *Service) abstractive(ctx context.Context, req Request, material []*entity.SearchCandidate) (string, error) {
	question := req.Question
	if strings.TrimSpace(question) == "" {
		question = "Summarize the reference material."
	}
	b := prompt.NewContextualBuilder(question, material, nil).
		WithGuideline("Write a concise summary of the reference material")
	if req.MaxLength > 0 {
		b.WithGuideline(fmt.Sprintf("Keep the summary under %d characters", req.MaxLength))
	}
	out, err := s.generator.Generate(ctx, b.Build(), answer.Options{Temperature: req.Temperature, MaxTokens: req.MaxTokens})
	if err != nil {
		return "", err
	}
	return clip(out, req.MaxLength), nil
}

func joinSegments(segments []*entity.SearchCandidate) string {
	parts := make([]string, 0, len(segments))
	for _, c := range segments {
		parts = append(parts, strings.TrimSpace(c.Segment.Text))
	}
	return strings.Join(parts, "\n")
}

func clip(s string, maxLength int) string {
	if maxLength <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= maxLength {
		return s
	}
	return string(runes[:maxLength])
}
