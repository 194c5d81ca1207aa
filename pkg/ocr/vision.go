package ocr

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"strings"

	"ai-knowledge-be/internal/pkg/logger"
	"ai-knowledge-be/pkg/apperror"
	"ai-knowledge-be/pkg/llm"
)

const visionPrompt = `Extract all text from the image.
Respond with a single JSON object and nothing else:
{"text": "<full text>", "language": "<language code>", "confidence": <0..1>,
 "textBlocks": [{"text": "", "confidence": 0, "boundingBox": {"x": 0, "y": 0, "width": 0, "height": 0}, "orientation": "horizontal"}],
 "tables": [{"type": "", "confidence": 0, "rows": [{"cells": [{"text": "", "isHeader": false, "rowSpan": 1, "colSpan": 1}]}]}]}`

// VisionEngine asks a multimodal chat model to transcribe the image.
// It makes exactly one call; parse failures are permanent.
type VisionEngine struct {
	provider llm.LLMProvider
	model    string
	logger   logger.ILogger
}

var _ Engine = &VisionEngine{}

func NewVisionEngine(provider llm.LLMProvider, model string, log logger.ILogger) *VisionEngine {
	return &VisionEngine{provider: provider, model: model, logger: log}
}

func (v *VisionEngine) Name() string { return EngineVision }

func (v *VisionEngine) Recognize(ctx context.Context, image []byte, cfg Config) (*Result, error) {
	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	opts := []llm.Option{llm.WithTemperature(0), llm.WithJSONMode()}
	if v.model != "" {
		opts = append(opts, llm.WithModel(v.model))
	}

	raw, err := v.provider.Chat(ctx, []llm.Message{{
		Role:    "user",
		Content: visionPrompt,
		Images:  []string{base64.StdEncoding.EncodeToString(image)},
	}}, opts...)
	if err != nil {
		return nil, apperror.Transient(apperror.KindOcrEngineUnavailable, "vision", err)
	}

	var res Result
	if err := json.Unmarshal([]byte(stripCodeFence(raw)), &res); err != nil {
		v.logger.Warn("OCR", "Vision model returned malformed JSON", map[string]interface{}{
			"length": len(raw),
		})
		return nil, apperror.Wrap(apperror.KindOcrParse, "vision", err)
	}

	if res.Language == "" {
		res.Language = cfg.Language
	}
	res.Confidence = clamp01(res.Confidence)
	res.Metadata = map[string]interface{}{"model": v.model}
	return &res, nil
}

func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

func clamp01(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}
