package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("EMBEDDING_CHUNK_SIZE", "")
	t.Setenv("RAG_CONFIG_FILE", "")

	cfg := Load()

	assert.Equal(t, 1000, cfg.Embedding.ChunkSize)
	assert.Equal(t, 200, cfg.Embedding.ChunkOverlap)
	assert.Equal(t, 5, cfg.Embedding.MaxConcurrentTasks)
	assert.Equal(t, 30*time.Minute, cfg.Embedding.TaskTimeout)
	assert.Equal(t, 3, cfg.Ocr.RetryCount)
	assert.Equal(t, time.Second, cfg.Ocr.RetryInterval)
	assert.InDelta(t, 0.7, cfg.Retrieval.SemanticWeight, 1e-9)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("EMBEDDING_CHUNK_SIZE", "512")
	t.Setenv("OCR_RETRY_INTERVAL", "250ms")
	t.Setenv("READER_FLATTEN_JSON", "false")
	t.Setenv("RAG_CONFIG_FILE", "")

	cfg := Load()

	assert.Equal(t, 512, cfg.Embedding.ChunkSize)
	assert.Equal(t, 250*time.Millisecond, cfg.Ocr.RetryInterval)
	assert.False(t, cfg.Reader.FlattenJSON)
}

func TestApplyYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rag.yaml")
	content := `
embedding:
  chunk_size: 800
  task_timeout: 5m
retrieval:
  keyword_weight: 0.5
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg := &Config{
		Embedding: EmbeddingConfig{ChunkSize: 1000, ChunkOverlap: 200},
		Retrieval: RetrievalConfig{SemanticWeight: 0.7},
	}
	require.NoError(t, ApplyYAML(cfg, path))

	assert.Equal(t, 800, cfg.Embedding.ChunkSize)
	assert.Equal(t, 200, cfg.Embedding.ChunkOverlap)
	assert.Equal(t, 5*time.Minute, cfg.Embedding.TaskTimeout)
	assert.InDelta(t, 0.5, cfg.Retrieval.KeywordWeight, 1e-9)
	assert.InDelta(t, 0.7, cfg.Retrieval.SemanticWeight, 1e-9)
}

func TestApplyYAMLMissingFile(t *testing.T) {
	err := ApplyYAML(&Config{}, filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
