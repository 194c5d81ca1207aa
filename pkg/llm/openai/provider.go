package openai

import (
	"context"
	"fmt"

	"ai-knowledge-be/pkg/llm"

	"github.com/tmc/langchaingo/llms"
	lcopenai "github.com/tmc/langchaingo/llms/openai"
)

// Provider talks to any OpenAI-compatible chat endpoint through langchaingo.
type Provider struct {
	client *lcopenai.LLM
	model  string
}

var _ llm.LLMProvider = &Provider{}

func NewProvider(baseURL, token, model string) (*Provider, error) {
	if token == "" {
		// local OpenAI-compatible servers accept any token
		token = "none"
	}
	client, err := lcopenai.New(
		lcopenai.WithBaseURL(baseURL),
		lcopenai.WithToken(token),
		lcopenai.WithModel(model),
	)
	if err != nil {
		return nil, fmt.Errorf("create openai client: %w", err)
	}
	return &Provider{client: client, model: model}, nil
}

func (p *Provider) Chat(ctx context.Context, history []llm.Message, opts ...llm.Option) (string, error) {
	options := llm.ApplyOptions(opts...)

	content := make([]llms.MessageContent, 0, len(history))
	for _, msg := range history {
		parts := []llms.ContentPart{llms.TextPart(msg.Content)}
		for _, img := range msg.Images {
			parts = append(parts, llms.ImageURLPart("data:image/png;base64,"+img))
		}
		content = append(content, llms.MessageContent{
			Role:  roleOf(msg.Role),
			Parts: parts,
		})
	}

	callOpts := []llms.CallOption{llms.WithTemperature(options.Temperature)}
	if options.MaxTokens > 0 {
		callOpts = append(callOpts, llms.WithMaxTokens(options.MaxTokens))
	}
	if options.Model != "" {
		callOpts = append(callOpts, llms.WithModel(options.Model))
	}
	if options.JSONMode {
		callOpts = append(callOpts, llms.WithJSONMode())
	}

	resp, err := p.client.GenerateContent(ctx, content, callOpts...)
	if err != nil {
		return "", fmt.Errorf("openai request failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", nil
	}
	return resp.Choices[0].Content, nil
}

func (p *Provider) Generate(ctx context.Context, prompt string, opts ...llm.Option) (string, error) {
	return p.Chat(ctx, []llm.Message{{Role: "user", Content: prompt}}, opts...)
}

func roleOf(role string) llms.ChatMessageType {
	switch role {
	case "system":
		return llms.ChatMessageTypeSystem
	case "assistant", "model":
		return llms.ChatMessageTypeAI
	default:
		return llms.ChatMessageTypeHuman
	}
}
