package embedding

import (
	"context"
	"errors"
	"fmt"

	"ai-knowledge-be/pkg/apperror"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"
)

// OpenAIProvider serves any OpenAI-compatible embeddings endpoint
// (OpenAI itself, vLLM, LocalAI, text-embeddings-inference).
type OpenAIProvider struct {
	embedder embeddings.Embedder
	model    string
}

func NewOpenAIProvider(baseURL, token, model string) (*OpenAIProvider, error) {
	if token == "" {
		token = "none"
	}
	client, err := openai.New(
		openai.WithBaseURL(baseURL),
		openai.WithToken(token),
		openai.WithEmbeddingModel(model),
	)
	if err != nil {
		return nil, fmt.Errorf("create openai client: %w", err)
	}

	embedder, err := embeddings.NewEmbedder(client, embeddings.WithStripNewLines(true))
	if err != nil {
		return nil, fmt.Errorf("create embedder: %w", err)
	}

	return &OpenAIProvider{embedder: embedder, model: model}, nil
}

func (p *OpenAIProvider) Generate(ctx context.Context, text string, taskType string) (*EmbeddingResponse, error) {
	vectors, err := p.embedder.EmbedDocuments(ctx, []string{text})
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, apperror.Wrap(apperror.KindEmbeddingModel, "openai", err)
		}
		return nil, transportError("openai", err)
	}
	if len(vectors) == 0 {
		return nil, apperror.New(apperror.KindEmbeddingModel, "openai", "empty embedding result")
	}
	return newResponse(normalizeVector(vectors[0])), nil
}
