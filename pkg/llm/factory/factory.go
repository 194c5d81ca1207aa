package factory

import (
	"ai-knowledge-be/pkg/llm"
	"ai-knowledge-be/pkg/llm/huggingface"
	"ai-knowledge-be/pkg/llm/ollama"
	"ai-knowledge-be/pkg/llm/openai"
	"fmt"
)

func NewLLMProvider(providerType, modelName, baseURL, token string) (llm.LLMProvider, error) {
	switch providerType {
	case "ollama":
		if baseURL == "" {
			baseURL = "http://localhost:11434"
		}
		return ollama.NewOllamaProvider(baseURL, modelName), nil
	case "openai":
		if baseURL == "" {
			baseURL = "https://api.openai.com/v1"
		}
		return openai.NewProvider(baseURL, token, modelName)
	case "huggingface":
		return huggingface.NewProvider(token, baseURL, modelName), nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", providerType)
	}
}
