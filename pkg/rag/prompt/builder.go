package prompt

import (
	"fmt"
	"strings"

	"ai-knowledge-be/internal/entity"
	"ai-knowledge-be/pkg/llm"
)

const systemPrompt = "You are a knowledgeable assistant answering questions from the user's knowledge base. " +
	"Answer only from the reference material and say so when it does not contain the answer."

// ContextualBuilder builds the chat messages for one answer: reference
// segments, recent history and the question.
type ContextualBuilder struct {
	query      string
	segments   []*entity.SearchCandidate
	history    []llm.Message
	guidelines []string
}

func NewContextualBuilder(query string, segments []*entity.SearchCandidate, history []llm.Message) *ContextualBuilder {
	return &ContextualBuilder{
		query:    query,
		segments: segments,
		history:  history,
	}
}

// WithGuideline adds an extra instruction, e.g. a citation or summary style.
func (b *ContextualBuilder) WithGuideline(line string) *ContextualBuilder {
	if line != "" {
		b.guidelines = append(b.guidelines, line)
	}
	return b
}

// Build returns the system message, the history and the grounded question.
func (b *ContextualBuilder) Build() []llm.Message {
	msgs := make([]llm.Message, 0, len(b.history)+2)
	msgs = append(msgs, llm.Message{Role: entity.RoleSystem, Content: systemPrompt})
	msgs = append(msgs, b.history...)
	msgs = append(msgs, llm.Message{Role: entity.RoleUser, Content: b.BuildText()})
	return msgs
}

// BuildText renders the grounded question as a single prompt.
func (b *ContextualBuilder) BuildText() string {
	var prompt strings.Builder
	b.writeReferenceMaterial(&prompt)
	b.writeGuidelines(&prompt)
	b.writeUserQuery(&prompt)
	return prompt.String()
}

func (b *ContextualBuilder) writeReferenceMaterial(prompt *strings.Builder) {
	if len(b.segments) == 0 {
		return
	}

	prompt.WriteString("<reference_material>\n")
	for i, c := range b.segments {
		prompt.WriteString(fmt.Sprintf("[%d] %s\n", i+1, Title(c.Segment)))
		prompt.WriteString(c.Segment.Text)
		prompt.WriteString("\n\n")
	}
	prompt.WriteString("</reference_material>\n\n")
}

func (b *ContextualBuilder) writeGuidelines(prompt *strings.Builder) {
	prompt.WriteString("<guidelines>\n")
	prompt.WriteString("1. Base your answer strictly on the reference material provided\n")
	prompt.WriteString("2. Refer to material by its [number] when you use it\n")
	prompt.WriteString("3. If the material doesn't contain what's being asked, say so honestly\n")
	for _, g := range b.guidelines {
		prompt.WriteString("- ")
		prompt.WriteString(g)
		prompt.WriteString("\n")
	}
	prompt.WriteString("</guidelines>\n\n")
}

func (b *ContextualBuilder) writeUserQuery(prompt *strings.Builder) {
	prompt.WriteString("<user_question>\n")
	prompt.WriteString(b.query)
	prompt.WriteString("\n</user_question>\n\n")
	prompt.WriteString("Now provide your complete response based on the reference material:")
}

// Title names a segment for display: its title metadata, then its source
// file name, then the file id.
func Title(s *entity.Segment) string {
	for _, key := range []string{"title", "source"} {
		if v, ok := s.Metadata[key].(string); ok && v != "" {
			return v
		}
	}
	return s.FileID
}
