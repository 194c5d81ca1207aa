package embedding

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"ai-knowledge-be/pkg/apperror"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOllamaProviderGenerate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/embeddings", r.URL.Path)
		_, _ = w.Write([]byte(`{"embedding":[0,2,0]}`))
	}))
	defer srv.Close()

	res, err := NewOllamaProvider(srv.URL, "nomic-embed-text").Generate(context.Background(), "hi", TaskTypeDocument)
	require.NoError(t, err)
	assert.Equal(t, []float32{0, 1, 0}, res.Embedding.Values)
}

func TestOllamaProviderStatusClassification(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		retryable bool
	}{
		{"server error", http.StatusBadGateway, true},
		{"rate limited", http.StatusTooManyRequests, true},
		{"bad request", http.StatusBadRequest, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			_, err := NewOllamaProvider(srv.URL, "m").Generate(context.Background(), "hi", "")
			require.Error(t, err)
			assert.Equal(t, tt.retryable, apperror.IsRetryable(err))
		})
	}
}
