package embedding

import (
	"context"
	"fmt"
	"math"
	"net/http"

	"ai-knowledge-be/pkg/apperror"
)

const (
	TaskTypeDocument = "RETRIEVAL_DOCUMENT"
	TaskTypeQuery    = "RETRIEVAL_QUERY"
)

// EmbeddingProvider defines the interface for generating text embeddings
type EmbeddingProvider interface {
	Generate(ctx context.Context, text string, taskType string) (*EmbeddingResponse, error)
}

type EmbeddingRequestContentPart struct {
	Text string `json:"text"`
}

type EmbeddingRequestContent struct {
	Parts []EmbeddingRequestContentPart `json:"parts"`
}

type EmbeddingRequest struct {
	Model    string                  `json:"model"`
	Content  EmbeddingRequestContent `json:"content"`
	TaskType string                  `json:"task_type,omitempty"`
}

type EmbeddingResponseEmbedding struct {
	Values []float32 `json:"values"`
}

type EmbeddingResponse struct {
	Embedding EmbeddingResponseEmbedding `json:"embedding"`
}

func newResponse(values []float32) *EmbeddingResponse {
	return &EmbeddingResponse{Embedding: EmbeddingResponseEmbedding{Values: values}}
}

// normalizeVector scales vec to unit length. pgvector cosine distance and the
// in-memory store both assume normalised vectors.
func normalizeVector(vec []float32) []float32 {
	var magnitude float64
	for _, v := range vec {
		magnitude += float64(v) * float64(v)
	}
	magnitude = math.Sqrt(magnitude)

	if magnitude == 0 {
		return vec
	}

	normalized := make([]float32, len(vec))
	for i, v := range vec {
		normalized[i] = float32(float64(v) / magnitude)
	}
	return normalized
}

// transportError marks network-level failures as retryable.
func transportError(op string, err error) error {
	return apperror.Transient(apperror.KindEmbeddingModel, op, err)
}

// statusError classifies a non-200 answer: 429 and 5xx are retryable.
func statusError(op string, status int, body []byte) error {
	err := fmt.Errorf("status %d: %s", status, string(body))
	if status == http.StatusTooManyRequests || status >= http.StatusInternalServerError {
		return apperror.Transient(apperror.KindEmbeddingModel, op, err)
	}
	return apperror.Wrap(apperror.KindEmbeddingModel, op, err)
}
