package embedding

import (
	"context"
	"sort"
	"sync"
	"time"

	"ai-knowledge-be/internal/pkg/logger"
	"ai-knowledge-be/pkg/apperror"

	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"
)

type ClientConfig struct {
	DefaultModel      string
	RequestsPerSecond float64 // <= 0 disables limiting
	Burst             int
	RetryAttempts     int // total attempts per call
	RetryInterval     time.Duration
	QueryCacheTTL     time.Duration
}

func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		DefaultModel:      "text-embedding-ada-002",
		RequestsPerSecond: 20,
		Burst:             5,
		RetryAttempts:     3,
		RetryInterval:     500 * time.Millisecond,
		QueryCacheTTL:     5 * time.Minute,
	}
}

// Client routes embedding requests to the provider registered for a model.
// Calls are rate limited, transient failures are retried at a fixed
// interval, and query embeddings are cached.
type Client struct {
	mu        sync.RWMutex
	providers map[string]EmbeddingProvider
	cfg       ClientConfig
	limiter   *rate.Limiter
	cache     *cache.Cache
	logger    logger.ILogger
}

func NewClient(cfg ClientConfig, log logger.ILogger) *Client {
	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}
	if cfg.RetryAttempts < 1 {
		cfg.RetryAttempts = 1
	}
	ttl := cfg.QueryCacheTTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}

	return &Client{
		providers: make(map[string]EmbeddingProvider),
		cfg:       cfg,
		limiter:   limiter,
		cache:     cache.New(ttl, 2*ttl),
		logger:    log,
	}
}

func (c *Client) Register(model string, provider EmbeddingProvider) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.providers[model] = provider
}

func (c *Client) SupportedModels() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	models := make([]string, 0, len(c.providers))
	for m := range c.providers {
		models = append(models, m)
	}
	sort.Strings(models)
	return models
}

func (c *Client) DefaultModel() string {
	return c.cfg.DefaultModel
}

func (c *Client) HasModel(model string) bool {
	_, _, err := c.resolve(model)
	return err == nil
}

// Embed returns the normalised embedding of a document segment.
func (c *Client) Embed(ctx context.Context, model, text string) ([]float32, error) {
	name, provider, err := c.resolve(model)
	if err != nil {
		return nil, err
	}
	return c.generate(ctx, name, provider, text, TaskTypeDocument)
}

// EmbedQuery embeds search text, serving repeated queries from the cache.
func (c *Client) EmbedQuery(ctx context.Context, model, text string) ([]float32, error) {
	name, provider, err := c.resolve(model)
	if err != nil {
		return nil, err
	}

	key := name + "\x00" + text
	if cached, ok := c.cache.Get(key); ok {
		return cached.([]float32), nil
	}

	vec, err := c.generate(ctx, name, provider, text, TaskTypeQuery)
	if err != nil {
		return nil, err
	}
	c.cache.SetDefault(key, vec)
	return vec, nil
}

func (c *Client) resolve(model string) (string, EmbeddingProvider, error) {
	if model == "" {
		model = c.cfg.DefaultModel
	}
	c.mu.RLock()
	provider, ok := c.providers[model]
	c.mu.RUnlock()
	if !ok {
		return "", nil, apperror.Newf(apperror.KindEmbeddingModel, "embedding.resolve", "unsupported model %q", model)
	}
	return model, provider, nil
}

func (c *Client) generate(ctx context.Context, model string, provider EmbeddingProvider, text, taskType string) ([]float32, error) {
	var lastErr error
	for attempt := 1; attempt <= c.cfg.RetryAttempts; attempt++ {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, apperror.Wrap(apperror.KindEmbeddingModel, "embedding.wait", err)
			}
		}

		resp, err := provider.Generate(ctx, text, taskType)
		if err == nil {
			if len(resp.Embedding.Values) == 0 {
				return nil, apperror.Newf(apperror.KindEmbeddingModel, "embedding.generate", "model %q returned an empty vector", model)
			}
			return normalizeVector(resp.Embedding.Values), nil
		}

		lastErr = err
		if !apperror.IsRetryable(err) || attempt == c.cfg.RetryAttempts {
			break
		}

		c.logger.Warn("EMBEDDING", "Embedding attempt failed, retrying", map[string]interface{}{
			"model":   model,
			"attempt": attempt,
			"error":   err.Error(),
		})

		select {
		case <-ctx.Done():
			return nil, apperror.Wrap(apperror.KindEmbeddingModel, "embedding.generate", ctx.Err())
		case <-time.After(c.cfg.RetryInterval):
		}
	}

	if apperror.KindOf(lastErr) == apperror.KindEmbeddingModel {
		return nil, lastErr
	}
	return nil, apperror.Wrap(apperror.KindEmbeddingModel, "embedding.generate", lastErr)
}
