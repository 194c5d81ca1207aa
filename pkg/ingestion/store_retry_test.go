package ingestion

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"ai-knowledge-be/internal/entity"
	"ai-knowledge-be/internal/pkg/logger"
	"ai-knowledge-be/pkg/apperror"
	"ai-knowledge-be/pkg/reader"
	"ai-knowledge-be/pkg/storage"
	"ai-knowledge-be/pkg/vectorstore"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// flakyStore fails the first failAdds AddSegments calls and the first
// failDeletes DeleteByFileID calls with err.
type flakyStore struct {
	vectorstore.Store
	mu          sync.Mutex
	err         error
	failAdds    int
	failDeletes int
	adds        int
	deletes     int
}

func (f *flakyStore) AddSegments(ctx context.Context, kbID string, segments []*entity.Segment) error {
	f.mu.Lock()
	f.adds++
	fail := f.adds <= f.failAdds
	f.mu.Unlock()
	if fail {
		return f.err
	}
	return f.Store.AddSegments(ctx, kbID, segments)
}

func (f *flakyStore) DeleteByFileID(ctx context.Context, kbID, fileID string) (int64, error) {
	f.mu.Lock()
	f.deletes++
	fail := f.deletes <= f.failDeletes
	f.mu.Unlock()
	if fail {
		return 0, f.err
	}
	return f.Store.DeleteByFileID(ctx, kbID, fileID)
}

func TestVectorStoreRetry(t *testing.T) {
	transient := apperror.Transient(apperror.KindVectorStore, "vectorstore.add", errors.New("connection reset"))
	permanent := apperror.New(apperror.KindVectorStore, "vectorstore.add", "dimension mismatch")

	tests := []struct {
		name        string
		err         error
		failAdds    int
		failDeletes int
		wantStatus  entity.TaskStatus
		wantAdds    int
		wantDeletes int
		wantStored  int64
	}{
		{name: "transient add recovers", err: transient, failAdds: 1, wantStatus: entity.TaskCompleted, wantAdds: 2, wantDeletes: 1, wantStored: 1},
		{name: "transient delete recovers", err: transient, failDeletes: 2, wantStatus: entity.TaskCompleted, wantAdds: 1, wantDeletes: 3, wantStored: 1},
		{name: "attempts are bounded", err: transient, failAdds: 10, wantStatus: entity.TaskFailed, wantAdds: 3, wantDeletes: 1},
		{name: "permanent error is not retried", err: permanent, failAdds: 10, wantStatus: entity.TaskFailed, wantAdds: 1, wantDeletes: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			log := logger.NewNopLogger()
			store := &flakyStore{
				Store:       vectorstore.NewMemoryStore(nil),
				err:         tt.err,
				failAdds:    tt.failAdds,
				failDeletes: tt.failDeletes,
			}
			resolver := &fakeResolver{files: map[string]*storage.Resource{
				"short": {Data: []byte("a single short paragraph"), Filename: "short.txt"},
			}}

			cfg := DefaultConfig()
			cfg.DefaultChunkSize = 100
			cfg.DefaultChunkOverlap = 10
			cfg.StoreRetryAttempts = 3
			cfg.StoreRetryInterval = time.Millisecond
			engine, err := NewEngine(cfg, resolver, reader.NewRegistry(log, reader.NewTextReader()), &fakeEmbedder{}, store, log)
			require.NoError(t, err)
			t.Cleanup(engine.Release)

			task, err := engine.ProcessDocument(ctx, Request{FileID: "short", KnowledgeBaseID: "kb"})
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, task.Status, task.Message)
			assert.Equal(t, tt.wantAdds, store.adds)
			assert.Equal(t, tt.wantDeletes, store.deletes)

			if tt.wantStored > 0 {
				count, err := store.CountByFileID(ctx, "kb", "short")
				require.NoError(t, err)
				assert.Equal(t, tt.wantStored, count)
			}
		})
	}
}
