package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App       AppConfig       `yaml:"app"`
	Database  DatabaseConfig  `yaml:"database"`
	Keys      APIKeys         `yaml:"-"`
	Ai        AIConfig        `yaml:"ai"`
	Reader    ReaderConfig    `yaml:"reader"`
	Ocr       OcrConfig       `yaml:"ocr"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
}

type AppConfig struct {
	Port               string `yaml:"port"`
	Environment        string `yaml:"environment"`
	LogFilePath        string `yaml:"log_file_path"`
	OperationLogPath   string `yaml:"operation_log_path"`
	CorsAllowedOrigins string `yaml:"cors_allowed_origins"`
	NatsURL            string `yaml:"nats_url"`
	RedisURL           string `yaml:"redis_url"`
	UploadDir          string `yaml:"upload_dir"`
	OperationTopic     string `yaml:"operation_topic"`
}

type DatabaseConfig struct {
	Connection string `yaml:"connection"`
}

// APIKeys never come from the YAML overlay.
type APIKeys struct {
	GoogleGemini string
	OpenAI       string
	HuggingFace  string
	JwtSecret    string
}

type AIConfig struct {
	EmbeddingProvider    string `yaml:"embedding_provider"` // "ollama", "gemini", "openai" or "hash"
	OllamaBaseURL        string `yaml:"ollama_base_url"`
	OllamaModel          string `yaml:"ollama_model"`
	OpenAIBaseURL        string `yaml:"openai_base_url"`
	OpenAIEmbeddingModel string `yaml:"openai_embedding_model"`
	EmbeddingDimension   int    `yaml:"embedding_dimension"`
	LLMProvider          string `yaml:"llm_provider"` // "ollama", "openai" or "huggingface"
	LLMModel             string `yaml:"llm_model"`
	VisionModel          string `yaml:"vision_model"`
}

type ReaderConfig struct {
	MaxContentLength      int    `yaml:"max_content_length"`
	Language              string `yaml:"language"`
	RemoveExtraWhitespace bool   `yaml:"remove_extra_whitespace"`
	RemoveEmptyLines      bool   `yaml:"remove_empty_lines"`
	NormalizeUnicode      bool   `yaml:"normalize_unicode"`
	ReadByParagraph       bool   `yaml:"read_by_paragraph"`
	FlattenJSON           bool   `yaml:"flatten_json"`
	JSONDepthLimit        int    `yaml:"json_depth_limit"`
	PDFPageLimit          int    `yaml:"pdf_page_limit"`
}

type OcrConfig struct {
	DefaultEngine string        `yaml:"default_engine"`
	PaddleURL     string        `yaml:"paddle_url"`
	Language      string        `yaml:"language"`
	RetryCount    int           `yaml:"retry_count"`
	RetryInterval time.Duration `yaml:"retry_interval"`
	Timeout       time.Duration `yaml:"timeout"`
}

type EmbeddingConfig struct {
	DefaultModel       string        `yaml:"default_model"`
	ChunkSize          int           `yaml:"chunk_size"`
	ChunkOverlap       int           `yaml:"chunk_overlap"`
	MaxConcurrentTasks int           `yaml:"max_concurrent_tasks"`
	TaskTimeout        time.Duration `yaml:"task_timeout"`
	MaxRetryCount      int           `yaml:"max_retry_count"`
	RequestsPerSecond  float64       `yaml:"requests_per_second"`
	RetryAttempts      int           `yaml:"retry_attempts"`
	RetryInterval      time.Duration `yaml:"retry_interval"`
	TaskStore          string        `yaml:"task_store"`   // "memory" or "database"
	VectorStore        string        `yaml:"vector_store"` // "memory" or "pgvector"
	LockBackend        string        `yaml:"lock_backend"` // "memory" or "redis"
}

type RetrievalConfig struct {
	DefaultLimit        int     `yaml:"default_limit"`
	SimilarityThreshold float64 `yaml:"similarity_threshold"`
	KeywordWeight       float64 `yaml:"keyword_weight"`
	SemanticWeight      float64 `yaml:"semantic_weight"`
	RerankTopN          int     `yaml:"rerank_top_n"`
	BatchParallelism    int     `yaml:"batch_parallelism"`
	UseLLMIntent        bool    `yaml:"use_llm_intent"`
	Reranker            string  `yaml:"reranker"` // "lexical" or "llm"
	Temperature         float64 `yaml:"temperature"`
	MaxTokens           int     `yaml:"max_tokens"`
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, usage system environment")
	}

	cfg := &Config{
		App: AppConfig{
			Port:               getEnv("APP_PORT", "3000"),
			Environment:        getEnv("GO_ENV", "development"),
			LogFilePath:        getEnv("LOG_FILE_PATH", "logs/app.log"),
			OperationLogPath:   getEnv("OPERATION_LOG_PATH", "logs/operation.log"),
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),
			NatsURL:            getEnv("NATS_URL", ""),
			RedisURL:           getEnv("REDIS_URL", ""),
			UploadDir:          getEnv("UPLOAD_DIR", "./uploads"),
			OperationTopic:     getEnv("OPERATION_LOG_TOPIC", "OPERATION_LOG"),
		},
		Database: DatabaseConfig{
			Connection: getEnv("DB_CONNECTION_STRING", ""),
		},
		Keys: APIKeys{
			GoogleGemini: getEnv("GOOGLE_GEMINI_API_KEY", ""),
			OpenAI:       getEnv("OPENAI_API_KEY", ""),
			HuggingFace:  getEnv("HUGGINGFACE_API_KEY", ""),
			JwtSecret:    getEnv("JWT_SECRET", ""),
		},
		Ai: AIConfig{
			EmbeddingProvider:    getEnv("EMBEDDING_PROVIDER", "ollama"),
			OllamaBaseURL:        getEnv("OLLAMA_BASE_URL", "http://localhost:11434"),
			OllamaModel:          getEnv("OLLAMA_EMBEDDING_MODEL", "nomic-embed-text"),
			OpenAIBaseURL:        getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
			OpenAIEmbeddingModel: getEnv("OPENAI_EMBEDDING_MODEL", "text-embedding-ada-002"),
			EmbeddingDimension:   getEnvAsInt("EMBEDDING_DIMENSION", 768),
			LLMProvider:          getEnv("LLM_PROVIDER", "ollama"),
			LLMModel:             getEnv("LLM_MODEL", "llama3"),
			VisionModel:          getEnv("VISION_MODEL", "llava"),
		},
		Reader: ReaderConfig{
			MaxContentLength:      getEnvAsInt("READER_MAX_CONTENT_LENGTH", 1024*1024),
			Language:              getEnv("READER_LANGUAGE", "zh"),
			RemoveExtraWhitespace: getEnvAsBool("READER_REMOVE_WHITESPACE", true),
			RemoveEmptyLines:      getEnvAsBool("READER_REMOVE_EMPTY_LINES", true),
			NormalizeUnicode:      getEnvAsBool("READER_NORMALIZE_UNICODE", true),
			ReadByParagraph:       getEnvAsBool("READER_BY_PARAGRAPH", false),
			FlattenJSON:           getEnvAsBool("READER_FLATTEN_JSON", true),
			JSONDepthLimit:        getEnvAsInt("READER_JSON_DEPTH_LIMIT", 10),
			PDFPageLimit:          getEnvAsInt("READER_PDF_PAGE_LIMIT", 1000),
		},
		Ocr: OcrConfig{
			DefaultEngine: getEnv("OCR_DEFAULT_ENGINE", "paddle"),
			PaddleURL:     getEnv("OCR_PADDLE_URL", "http://localhost:9292/ocr/prediction"),
			Language:      getEnv("OCR_LANGUAGE", "ch"),
			RetryCount:    getEnvAsInt("OCR_RETRY_COUNT", 3),
			RetryInterval: getEnvAsDuration("OCR_RETRY_INTERVAL", time.Second),
			Timeout:       getEnvAsDuration("OCR_TIMEOUT", 30*time.Second),
		},
		Embedding: EmbeddingConfig{
			DefaultModel:       getEnv("EMBEDDING_DEFAULT_MODEL", "nomic-embed-text"),
			ChunkSize:          getEnvAsInt("EMBEDDING_CHUNK_SIZE", 1000),
			ChunkOverlap:       getEnvAsInt("EMBEDDING_CHUNK_OVERLAP", 200),
			MaxConcurrentTasks: getEnvAsInt("EMBEDDING_MAX_CONCURRENT_TASKS", 5),
			TaskTimeout:        getEnvAsDuration("EMBEDDING_TASK_TIMEOUT", 30*time.Minute),
			MaxRetryCount:      getEnvAsInt("EMBEDDING_MAX_RETRY_COUNT", 3),
			RequestsPerSecond:  getEnvAsFloat("EMBEDDING_REQUESTS_PER_SECOND", 20),
			RetryAttempts:      getEnvAsInt("EMBEDDING_RETRY_ATTEMPTS", 3),
			RetryInterval:      getEnvAsDuration("EMBEDDING_RETRY_INTERVAL", 500*time.Millisecond),
			TaskStore:          getEnv("EMBEDDING_TASK_STORE", "database"),
			VectorStore:        getEnv("VECTOR_STORE", "pgvector"),
			LockBackend:        getEnv("TASK_LOCK_BACKEND", "memory"),
		},
		Retrieval: RetrievalConfig{
			DefaultLimit:        getEnvAsInt("RETRIEVAL_DEFAULT_LIMIT", 10),
			SimilarityThreshold: getEnvAsFloat("RETRIEVAL_SIMILARITY_THRESHOLD", 0.7),
			KeywordWeight:       getEnvAsFloat("RETRIEVAL_KEYWORD_WEIGHT", 0.3),
			SemanticWeight:      getEnvAsFloat("RETRIEVAL_SEMANTIC_WEIGHT", 0.7),
			RerankTopN:          getEnvAsInt("RETRIEVAL_RERANK_TOP_N", 20),
			BatchParallelism:    getEnvAsInt("QUERY_BATCH_PARALLELISM", 4),
			UseLLMIntent:        getEnvAsBool("RETRIEVAL_LLM_INTENT", false),
			Reranker:            getEnv("RETRIEVAL_RERANKER", "lexical"),
			Temperature:         getEnvAsFloat("LLM_TEMPERATURE", 0.7),
			MaxTokens:           getEnvAsInt("LLM_MAX_TOKENS", 2000),
		},
	}

	if path := getEnv("RAG_CONFIG_FILE", ""); path != "" {
		if err := ApplyYAML(cfg, path); err != nil {
			log.Printf("Warn: failed to apply config file %s: %v", path, err)
		}
	}

	return cfg
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return fallback
}

func getEnvAsFloat(key string, fallback float64) float64 {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseFloat(strValue, 64); err == nil {
		return value
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseBool(strValue); err == nil {
		return value
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	strValue := getEnv(key, "")
	if value, err := time.ParseDuration(strValue); err == nil {
		return value
	}
	return fallback
}
