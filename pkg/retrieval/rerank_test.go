package retrieval

import (
	"context"
	"testing"

	"ai-knowledge-be/internal/entity"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rerankFixture() []*entity.SearchCandidate {
	mk := func(id, text string, score float64) *entity.SearchCandidate {
		return &entity.SearchCandidate{Segment: &entity.Segment{ID: id, Text: text}, Score: score}
	}
	return []*entity.SearchCandidate{
		mk("a", "nothing relevant", 0.9),
		mk("b", "alpha beta", 0.5),
		mk("c", "alpha beta tail", 0.4),
	}
}

func TestLexicalRerank(t *testing.T) {
	ctx := context.Background()
	r := NewLexicalReranker()
	in := rerankFixture()

	once, err := r.Rerank(ctx, "alpha beta", in, 2)
	require.NoError(t, err)
	// b: .5*.5 + .5*1 = .75 beats a: .5*.9 = .45; c is outside topN.
	assert.Equal(t, []string{"b", "a", "c"}, ids(once))
	assert.InDelta(t, 0.75, once[0].RerankScore, 1e-9)
	assert.Equal(t, []string{"a", "b", "c"}, ids(in), "input slice order is untouched")

	twice, err := r.Rerank(ctx, "alpha beta", once, 2)
	require.NoError(t, err)
	assert.Equal(t, ids(once), ids(twice))
}

func TestLexicalRerankKeepsEveryCandidate(t *testing.T) {
	got, err := NewLexicalReranker().Rerank(context.Background(), "alpha", rerankFixture(), 0)
	require.NoError(t, err)
	assert.Len(t, got, 3)
	assert.ElementsMatch(t, []string{"a", "b", "c"}, ids(got))
}

func TestLLMRerank(t *testing.T) {
	tests := []struct {
		name     string
		response string
		err      error
		want     []string
	}{
		{"model scores", `{"scores": [{"index": 0, "score": 2}, {"index": 1, "score": 9}]}`, nil, []string{"b", "a", "c"}},
		{"out of range scores are clamped", `{"scores": [{"index": 0, "score": 42}, {"index": 1, "score": -3}]}`, nil, []string{"a", "b", "c"}},
		{"provider error falls back", "", errBoom, []string{"b", "a", "c"}},
		{"unusable output falls back", `{"scores": []}`, nil, []string{"b", "a", "c"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider := &fakeLLM{response: tt.response, err: tt.err}
			r := NewLLMReranker(provider, nopLogger())
			got, err := r.Rerank(context.Background(), "alpha beta", rerankFixture(), 2)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ids(got))
			require.Len(t, provider.prompts, 1)
			assert.Contains(t, provider.prompts[0], "[1] alpha beta")
		})
	}
}
