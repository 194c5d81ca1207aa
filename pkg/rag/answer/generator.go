package answer

import (
	"context"
	"fmt"
	"strings"

	"ai-knowledge-be/internal/pkg/logger"
	"ai-knowledge-be/pkg/llm"
)

const (
	logModule = "QUERY"

	NoDocumentsAnswer = "no relevant documents found"
)

// Generator turns built prompts into answers with the chat model.
type Generator struct {
	llmProvider llm.LLMProvider
	logger      logger.ILogger
}

func NewGenerator(llmProvider llm.LLMProvider, log logger.ILogger) *Generator {
	return &Generator{
		llmProvider: llmProvider,
		logger:      log,
	}
}

type Options struct {
	Temperature float64
	MaxTokens   int
}

func (g *Generator) Generate(ctx context.Context, messages []llm.Message, opts Options) (string, error) {
	callOpts := []llm.Option{llm.WithTemperature(opts.Temperature)}
	if opts.MaxTokens > 0 {
		callOpts = append(callOpts, llm.WithMaxTokens(opts.MaxTokens))
	}

	response, err := g.llmProvider.Chat(ctx, messages, callOpts...)
	if err != nil {
		g.logger.Error(logModule, "LLM generation failed", map[string]interface{}{"error": err.Error()})
		return "", fmt.Errorf("generate answer: %w", err)
	}
	return strings.TrimSpace(response), nil
}

// EstimateTokens is a rough count for prompt and answer together.
func EstimateTokens(texts ...string) int {
	n := 0
	for _, t := range texts {
		n += len(t)
	}
	return n / 3
}
