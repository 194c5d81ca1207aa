package prompt

import (
	"testing"

	"ai-knowledge-be/internal/entity"
	"ai-knowledge-be/pkg/llm"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContextualBuilder(t *testing.T) {
	segments := []*entity.SearchCandidate{
		{Segment: &entity.Segment{FileID: "f1", Text: "Go has goroutines.", Metadata: map[string]interface{}{"title": "Go Guide"}}},
		{Segment: &entity.Segment{FileID: "f2", Text: "Channels connect them.", Metadata: map[string]interface{}{"source": "notes.md"}}},
	}
	history := []llm.Message{
		{Role: entity.RoleUser, Content: "earlier question"},
		{Role: entity.RoleAssistant, Content: "earlier answer"},
	}

	msgs := NewContextualBuilder("How do goroutines talk?", segments, history).
		WithGuideline("Cite sources in APA style").
		Build()

	require.Len(t, msgs, 4)
	assert.Equal(t, entity.RoleSystem, msgs[0].Role)
	assert.Equal(t, history, msgs[1:3])

	last := msgs[3]
	assert.Equal(t, entity.RoleUser, last.Role)
	assert.Contains(t, last.Content, "[1] Go Guide\nGo has goroutines.")
	assert.Contains(t, last.Content, "[2] notes.md\nChannels connect them.")
	assert.Contains(t, last.Content, "- Cite sources in APA style")
	assert.Contains(t, last.Content, "<user_question>\nHow do goroutines talk?\n</user_question>")
}

func TestBuildTextWithoutSegments(t *testing.T) {
	text := NewContextualBuilder("anything?", nil, nil).BuildText()
	assert.NotContains(t, text, "<reference_material>")
	assert.Contains(t, text, "anything?")
}

func TestTitle(t *testing.T) {
	assert.Equal(t, "T", Title(&entity.Segment{FileID: "f", Metadata: map[string]interface{}{"title": "T", "source": "s"}}))
	assert.Equal(t, "s", Title(&entity.Segment{FileID: "f", Metadata: map[string]interface{}{"source": "s"}}))
	assert.Equal(t, "f", Title(&entity.Segment{FileID: "f"}))
}
