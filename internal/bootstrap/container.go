package bootstrap

import (
	"context"
	"fmt"
	"log"

	"ai-knowledge-be/internal/config"
	"ai-knowledge-be/internal/controller"
	"ai-knowledge-be/internal/pkg/logger"
	"ai-knowledge-be/internal/repository/memory"
	"ai-knowledge-be/internal/repository/unitofwork"
	"ai-knowledge-be/internal/service"
	"ai-knowledge-be/pkg/embedding"
	"ai-knowledge-be/pkg/ingestion"
	"ai-knowledge-be/pkg/llm"
	"ai-knowledge-be/pkg/llm/factory"
	pktNats "ai-knowledge-be/pkg/nats"
	"ai-knowledge-be/pkg/ocr"
	"ai-knowledge-be/pkg/rag/access"
	"ai-knowledge-be/pkg/rag/answer"
	"ai-knowledge-be/pkg/rag/audit"
	"ai-knowledge-be/pkg/rag/session"
	"ai-knowledge-be/pkg/reader"
	"ai-knowledge-be/pkg/retrieval"
	"ai-knowledge-be/pkg/storage"
	"ai-knowledge-be/pkg/vectorstore"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

const hashModel = "hash"

type Container struct {
	// Controllers
	EmbeddingController controller.IEmbeddingController
	QueryController     controller.IQueryController

	// Background services, started by main
	ConsumerService   service.IConsumerService
	TaskEventListener *service.TaskEventListener

	Logger logger.ILogger

	closers []func()
}

// NewContainer wires the ingestion and query pipelines. db may be nil, in
// which case vectors, tasks and operation logs stay in memory.
func NewContainer(db *gorm.DB, cfg *config.Config) (*Container, error) {
	c := &Container{}

	// 1. Core facades
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.Environment == "production")
	opLogger := logger.NewIsolatedLogger(cfg.App.OperationLogPath)
	c.Logger = sysLogger
	c.closers = append(c.closers, func() { _ = sysLogger.Sync(); _ = opLogger.Sync() })

	var uowFactory unitofwork.RepositoryFactory
	if db != nil {
		uowFactory = unitofwork.NewRepositoryFactory(db)
	}

	// 2. Operation log bus
	pubSub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NewStdLogger(false, false))
	c.closers = append(c.closers, func() { _ = pubSub.Close() })
	recorder := audit.NewWatermillRecorder(pubSub, cfg.App.OperationTopic, sysLogger)
	c.ConsumerService = service.NewConsumerService(pubSub, cfg.App.OperationTopic, uowFactory, opLogger, sysLogger)

	// 3. AI providers
	llmProvider, err := newLLM(cfg, cfg.Ai.LLMModel)
	if err != nil {
		return nil, fmt.Errorf("init llm provider: %w", err)
	}
	log.Printf("[INFO] Using LLM Provider: %s (%s)", cfg.Ai.LLMProvider, cfg.Ai.LLMModel)

	embedClient, err := newEmbeddingClient(cfg, sysLogger)
	if err != nil {
		return nil, fmt.Errorf("init embedding client: %w", err)
	}

	// 4. Document readers with OCR
	ocrEngines := []ocr.Engine{ocr.NewPaddleEngine(cfg.Ocr.PaddleURL, sysLogger)}
	if visionLLM, err := newLLM(cfg, cfg.Ai.VisionModel); err == nil {
		ocrEngines = append(ocrEngines, ocr.NewVisionEngine(visionLLM, cfg.Ai.VisionModel, sysLogger))
	} else {
		log.Printf("[WARN] Vision OCR engine disabled: %v", err)
	}
	ocrRegistry := ocr.NewRegistry(cfg.Ocr.DefaultEngine, sysLogger, ocrEngines...)

	readers := reader.NewRegistry(sysLogger,
		reader.NewTextReader(),
		reader.NewJSONReader(),
		reader.NewPDFReader(sysLogger),
		reader.NewHTMLReader(),
		reader.NewXMLReader(),
		reader.NewCSVReader(),
		reader.NewSpreadsheetReader(),
		reader.NewOfficeReader(),
		reader.NewImageReader(ocrRegistry, ocrConfig(cfg.Ocr)),
	)

	resolver, err := storage.NewLocalResolver(cfg.App.UploadDir)
	if err != nil {
		return nil, fmt.Errorf("init upload resolver: %w", err)
	}

	// 5. Vector store
	var store vectorstore.Store
	if cfg.Embedding.VectorStore == "pgvector" && uowFactory != nil {
		store = vectorstore.NewPgStore(uowFactory, embedClient)
		log.Println("[INFO] Using Vector Store: PGVECTOR")
	} else {
		store = vectorstore.NewMemoryStore(embedClient)
		log.Println("[INFO] Using Vector Store: MEMORY")
	}

	// 6. Ingestion engine
	opts := []ingestion.Option{}
	if cfg.Embedding.TaskStore == "database" && uowFactory != nil {
		opts = append(opts, ingestion.WithTaskStore(ingestion.NewRepositoryTaskStore(uowFactory)))
	}
	if cfg.Embedding.LockBackend == "redis" && cfg.App.RedisURL != "" {
		rdb := newRedis(cfg.App.RedisURL)
		c.closers = append(c.closers, func() { _ = rdb.Close() })
		opts = append(opts, ingestion.WithLocker(ingestion.NewRedisLocker(rdb)))
	}

	var natsSub *pktNats.Subscriber
	if cfg.App.NatsURL != "" {
		natsPub, err := pktNats.NewPublisher(cfg.App.NatsURL)
		if err != nil {
			log.Printf("[WARN] Failed to connect to NATS Publisher: %v", err)
		} else {
			c.closers = append(c.closers, natsPub.Close)
			opts = append(opts, ingestion.WithPublisher(ingestion.NewNatsPublisher(natsPub, sysLogger)))
		}
		natsSub, err = pktNats.NewSubscriber(cfg.App.NatsURL)
		if err != nil {
			log.Printf("[WARN] Failed to connect to NATS Subscriber: %v", err)
			natsSub = nil
		} else {
			c.closers = append(c.closers, natsSub.Close)
		}
	}

	engine, err := ingestion.NewEngine(ingestionConfig(cfg), resolver, readers, embedClient, store, sysLogger, opts...)
	if err != nil {
		return nil, fmt.Errorf("init ingestion engine: %w", err)
	}
	c.closers = append(c.closers, engine.Release)

	if natsSub != nil {
		c.TaskEventListener = service.NewTaskEventListener(natsSub, recorder, sysLogger)
	}

	// 7. Query pipeline
	var classifier retrieval.IntentClassifier
	if cfg.Retrieval.UseLLMIntent {
		classifier = retrieval.NewLLMClassifier(llmProvider, sysLogger)
	}
	var reranker retrieval.Reranker
	if cfg.Retrieval.Reranker == "llm" {
		reranker = retrieval.NewLLMReranker(llmProvider, sysLogger)
	}

	checker := access.NewOwnershipChecker(store)
	sessions := session.NewManager(memory.NewSessionRepository())
	generator := answer.NewGenerator(llmProvider, sysLogger)

	embeddingService := service.NewEmbeddingService(engine, readers, embedClient, checker, recorder, sysLogger)
	queryService := service.NewQueryService(cfg.Retrieval, store, classifier, reranker, generator, sessions, memory.NewQueryHistoryRepository(), checker, recorder, sysLogger)

	// 8. Controllers
	c.EmbeddingController = controller.NewEmbeddingController(embeddingService, cfg.Keys.JwtSecret)
	c.QueryController = controller.NewQueryController(queryService, cfg.Keys.JwtSecret)

	return c, nil
}

// Close releases background resources in reverse order of creation.
func (c *Container) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
}

func newLLM(cfg *config.Config, model string) (llm.LLMProvider, error) {
	baseURL, token := cfg.Ai.OllamaBaseURL, ""
	switch cfg.Ai.LLMProvider {
	case "openai":
		baseURL, token = cfg.Ai.OpenAIBaseURL, cfg.Keys.OpenAI
	case "huggingface":
		baseURL, token = "", cfg.Keys.HuggingFace
	}
	return factory.NewLLMProvider(cfg.Ai.LLMProvider, model, baseURL, token)
}

// newEmbeddingClient registers every provider that is configured. The hash
// provider is always available so ingestion works offline.
func newEmbeddingClient(cfg *config.Config, log logger.ILogger) (*embedding.Client, error) {
	clientCfg := embedding.DefaultClientConfig()
	clientCfg.DefaultModel = cfg.Embedding.DefaultModel
	clientCfg.RequestsPerSecond = cfg.Embedding.RequestsPerSecond
	clientCfg.RetryAttempts = cfg.Embedding.RetryAttempts
	clientCfg.RetryInterval = cfg.Embedding.RetryInterval

	client := embedding.NewClient(clientCfg, log)
	client.Register(hashModel, embedding.NewHashProvider(cfg.Ai.EmbeddingDimension))

	switch cfg.Ai.EmbeddingProvider {
	case "ollama":
		client.Register(cfg.Ai.OllamaModel, embedding.NewOllamaProvider(cfg.Ai.OllamaBaseURL, cfg.Ai.OllamaModel))
	case "gemini":
		gemini := embedding.NewGeminiProvider(cfg.Keys.GoogleGemini)
		client.Register(gemini.Model, gemini)
	case "openai":
		provider, err := embedding.NewOpenAIProvider(cfg.Ai.OpenAIBaseURL, cfg.Keys.OpenAI, cfg.Ai.OpenAIEmbeddingModel)
		if err != nil {
			return nil, err
		}
		client.Register(cfg.Ai.OpenAIEmbeddingModel, provider)
	case hashModel:
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", cfg.Ai.EmbeddingProvider)
	}

	if !client.HasModel(clientCfg.DefaultModel) {
		log.Warn("INGESTION", "Default embedding model has no provider, falling back to hash", map[string]interface{}{
			"model": clientCfg.DefaultModel,
		})
		fallback := clientCfg
		fallback.DefaultModel = hashModel
		client = embedding.NewClient(fallback, log)
		client.Register(hashModel, embedding.NewHashProvider(cfg.Ai.EmbeddingDimension))
	}
	return client, nil
}

func newRedis(url string) *redis.Client {
	opt, err := redis.ParseURL(url)
	if err != nil {
		log.Printf("[WARN] Failed to parse Redis URL: %v. Using direct Addr", err)
		opt = &redis.Options{Addr: url}
	}
	rdb := redis.NewClient(opt)
	if _, err := rdb.Ping(context.Background()).Result(); err != nil {
		log.Printf("[WARN] Failed to connect to Redis: %v", err)
	}
	return rdb
}

func ocrConfig(c config.OcrConfig) ocr.Config {
	out := ocr.DefaultConfig()
	if c.DefaultEngine != "" {
		out.Engine = c.DefaultEngine
	}
	if c.Language != "" {
		out.Language = c.Language
	}
	if c.RetryCount > 0 {
		out.RetryCount = c.RetryCount
	}
	if c.RetryInterval > 0 {
		out.RetryInterval = c.RetryInterval
	}
	if c.Timeout > 0 {
		out.Timeout = c.Timeout
	}
	return out
}

func ingestionConfig(cfg *config.Config) ingestion.Config {
	return ingestion.Config{
		MaxConcurrentTasks:  cfg.Embedding.MaxConcurrentTasks,
		TaskTimeout:         cfg.Embedding.TaskTimeout,
		MaxRetryCount:       cfg.Embedding.MaxRetryCount,
		DefaultChunkSize:    cfg.Embedding.ChunkSize,
		DefaultChunkOverlap: cfg.Embedding.ChunkOverlap,
		StoreRetryAttempts:  cfg.Embedding.RetryAttempts,
		StoreRetryInterval:  cfg.Embedding.RetryInterval,
		Reader: reader.Config{
			MaxContentLength:      cfg.Reader.MaxContentLength,
			Language:              cfg.Reader.Language,
			RemoveExtraWhitespace: cfg.Reader.RemoveExtraWhitespace,
			RemoveEmptyLines:      cfg.Reader.RemoveEmptyLines,
			NormalizeUnicode:      cfg.Reader.NormalizeUnicode,
			ReadByParagraph:       cfg.Reader.ReadByParagraph,
			FlattenJSON:           cfg.Reader.FlattenJSON,
			JSONDepthLimit:        cfg.Reader.JSONDepthLimit,
			PDFPageLimit:          cfg.Reader.PDFPageLimit,
		},
	}
}
