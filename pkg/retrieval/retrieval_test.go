package retrieval

import (
	"context"
	"errors"
	"testing"

	"ai-knowledge-be/internal/entity"
	"ai-knowledge-be/internal/pkg/logger"
	"ai-knowledge-be/pkg/llm"
	"ai-knowledge-be/pkg/vectorstore"

	"github.com/stretchr/testify/require"
)

type fixedEmbedder struct {
	vec []float32
}

func (f fixedEmbedder) EmbedQuery(ctx context.Context, model, text string) ([]float32, error) {
	return f.vec, nil
}

type fakeLLM struct {
	response string
	err      error
	prompts  []string
}

func (f *fakeLLM) Chat(ctx context.Context, history []llm.Message, options ...llm.Option) (string, error) {
	return f.response, f.err
}

func (f *fakeLLM) Generate(ctx context.Context, prompt string, options ...llm.Option) (string, error) {
	f.prompts = append(f.prompts, prompt)
	return f.response, f.err
}

func seg(id, kb, file string, ordinal int, text string, meta map[string]interface{}, vec ...float32) *entity.Segment {
	return &entity.Segment{ID: id, KnowledgeBaseID: kb, FileID: file, Ordinal: ordinal, Text: text, Metadata: meta, Vector: vec}
}

// newStore builds kb1 so that, for the query "alpha beta" embedded as (1,0):
//
//	s1 "alpha beta"  semantic 1.0  keyword 1.0
//	s2 "alpha only"  semantic 0.6  keyword 0.5
//	s3 "beta gamma"  semantic 0.0  keyword 0.5
//	s4 "unrelated"   semantic 0.8  keyword -
func newStore(t *testing.T) *vectorstore.MemoryStore {
	t.Helper()
	ctx := context.Background()
	s := vectorstore.NewMemoryStore(fixedEmbedder{vec: []float32{1, 0}})
	require.NoError(t, s.CreateKnowledgeBase(ctx, &entity.KnowledgeBase{ID: "kb1", Name: "first"}))
	require.NoError(t, s.CreateKnowledgeBase(ctx, &entity.KnowledgeBase{ID: "kb2", Name: "second"}))
	require.NoError(t, s.AddSegments(ctx, "kb1", []*entity.Segment{
		seg("s1", "kb1", "f1", 0, "alpha beta", map[string]interface{}{"page": 1, "category": "intro"}, 1, 0),
		seg("s2", "kb1", "f1", 1, "alpha only", map[string]interface{}{"page": 3, "category": "detail"}, 0.6, 0.8),
		seg("s3", "kb1", "f2", 0, "beta gamma", map[string]interface{}{"category": "detail"}, 0, 1),
		seg("s4", "kb1", "f2", 1, "unrelated", nil, 0.8, 0.6),
	}))
	require.NoError(t, s.AddSegments(ctx, "kb2", []*entity.Segment{
		seg("k2-dup", "kb2", "f1", 0, "alpha beta copy", nil, 0.9, 0.435889894),
		seg("k2-new", "kb2", "f7", 0, "alpha elsewhere", nil, 0.95, 0.312249900),
	}))
	return s
}

func ids(c []*entity.SearchCandidate) []string {
	out := make([]string, len(c))
	for i, x := range c {
		out[i] = x.Segment.ID
	}
	return out
}

func threshold(f float64) *float64 {
	return &f
}

func nopLogger() logger.ILogger {
	return logger.NewNopLogger()
}

var errBoom = errors.New("boom")
