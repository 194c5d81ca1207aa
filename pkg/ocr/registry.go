package ocr

import (
	"context"
	"sort"

	"ai-knowledge-be/internal/pkg/logger"
	"ai-knowledge-be/pkg/apperror"
)

const (
	EnginePaddle = "paddle"
	EngineVision = "vision"
)

// Registry selects an engine by name and falls back to the default one.
type Registry struct {
	engines       map[string]Engine
	defaultEngine string
	logger        logger.ILogger
}

func NewRegistry(defaultEngine string, log logger.ILogger, engines ...Engine) *Registry {
	r := &Registry{
		engines:       make(map[string]Engine, len(engines)),
		defaultEngine: defaultEngine,
		logger:        log,
	}
	for _, e := range engines {
		r.engines[e.Name()] = e
	}
	return r
}

// Engine returns the named engine, the default engine when the name is
// unknown or empty, and ErrNoEngine when neither is registered.
func (r *Registry) Engine(name string) (Engine, error) {
	if e, ok := r.engines[name]; ok {
		return e, nil
	}
	if e, ok := r.engines[r.defaultEngine]; ok {
		if name != "" {
			r.logger.Warn("OCR", "Requested engine not found, using default", map[string]interface{}{
				"requested": name,
				"default":   r.defaultEngine,
			})
		}
		return e, nil
	}
	return nil, apperror.Newf(apperror.KindNoOcrEngine, "ocr.engine", "no engine for %q", name)
}

func (r *Registry) AvailableEngines() []string {
	names := make([]string, 0, len(r.engines))
	for name := range r.engines {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *Registry) Recognize(ctx context.Context, image []byte, cfg Config) (*Result, error) {
	engine, err := r.Engine(cfg.Engine)
	if err != nil {
		return nil, err
	}

	res, err := engine.Recognize(ctx, image, cfg)
	if err != nil {
		r.logger.Error("OCR", "Recognition failed", map[string]interface{}{
			"engine": engine.Name(),
			"error":  err.Error(),
		})
		return nil, err
	}
	if res.Metadata == nil {
		res.Metadata = make(map[string]interface{})
	}
	res.Metadata["engine"] = engine.Name()
	return res, nil
}
