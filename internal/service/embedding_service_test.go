package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"ai-knowledge-be/internal/dto"
	"ai-knowledge-be/internal/entity"
	"ai-knowledge-be/internal/pkg/logger"
	"ai-knowledge-be/pkg/apperror"
	"ai-knowledge-be/pkg/ingestion"
	"ai-knowledge-be/pkg/rag/access"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEngine struct {
	mu       sync.Mutex
	tasks    map[string]*entity.EmbeddingTask
	requests []ingestion.Request
	async    []ingestion.Request
	deleted  []string
	embedded bool
	failWith error
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{tasks: make(map[string]*entity.EmbeddingTask)}
}

func (f *fakeEngine) add(task *entity.EmbeddingTask) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tasks[task.TaskID] = task
}

func (f *fakeEngine) ProcessDocument(ctx context.Context, req ingestion.Request) (*entity.EmbeddingTask, error) {
	if f.failWith != nil {
		return nil, f.failWith
	}
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()
	task := &entity.EmbeddingTask{
		TaskID:          "task-" + req.FileID,
		FileID:          req.FileID,
		KnowledgeBaseID: req.KnowledgeBaseID,
		UserID:          req.UserID,
		Model:           "hash-768",
		Status:          entity.TaskCompleted,
		Segments: []entity.SegmentResult{
			{SegmentID: "s0", Ordinal: 0, Embedded: true},
			{SegmentID: "s1", Ordinal: 1, Embedded: true},
		},
		CreatedAt: time.Now(),
	}
	f.add(task)
	return task.Clone(), nil
}

func (f *fakeEngine) ProcessDocumentAsync(ctx context.Context, req ingestion.Request) (string, error) {
	if f.failWith != nil {
		return "", f.failWith
	}
	f.mu.Lock()
	f.async = append(f.async, req)
	f.mu.Unlock()
	task := &entity.EmbeddingTask{
		TaskID:          "async-" + req.FileID,
		FileID:          req.FileID,
		KnowledgeBaseID: req.KnowledgeBaseID,
		Status:          entity.TaskPending,
		CreatedAt:       time.Now(),
	}
	f.add(task)
	return task.TaskID, nil
}

func (f *fakeEngine) ProcessBatch(ctx context.Context, reqs []ingestion.Request) ([]ingestion.BatchItemResult, error) {
	out := make([]ingestion.BatchItemResult, len(reqs))
	for i, r := range reqs {
		out[i] = ingestion.BatchItemResult{FileID: r.FileID, KnowledgeBaseID: r.KnowledgeBaseID}
		if r.FileID == "bad" {
			out[i].Error = "UNSUPPORTED_FORMAT"
			continue
		}
		task, _ := f.ProcessDocument(ctx, r)
		out[i].TaskID = task.TaskID
		out[i].Task = task
	}
	return out, nil
}

func (f *fakeEngine) ProcessBatchAsync(ctx context.Context, reqs []ingestion.Request) ([]ingestion.BatchItemResult, error) {
	out := make([]ingestion.BatchItemResult, len(reqs))
	for i, r := range reqs {
		id, _ := f.ProcessDocumentAsync(ctx, r)
		out[i] = ingestion.BatchItemResult{FileID: r.FileID, KnowledgeBaseID: r.KnowledgeBaseID, TaskID: id}
	}
	return out, nil
}

func (f *fakeEngine) Status(ctx context.Context, taskID string) (*entity.EmbeddingTask, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	task, ok := f.tasks[taskID]
	if !ok {
		return nil, apperror.Newf(apperror.KindTaskNotFound, "fake.status", "task %s not found", taskID)
	}
	return task.Clone(), nil
}

func (f *fakeEngine) Cancel(ctx context.Context, taskID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	task := f.tasks[taskID]
	if !task.Status.IsActive() {
		return false, nil
	}
	task.Status = entity.TaskCancelled
	return true, nil
}

func (f *fakeEngine) Retry(ctx context.Context, taskID string) (*entity.EmbeddingTask, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	task := f.tasks[taskID]
	if task.Status != entity.TaskFailed || task.RetryCount >= task.MaxRetryCount {
		return nil, apperror.New(apperror.KindRetryExhausted, "fake.retry", "no retries left")
	}
	task.RetryCount++
	task.Status = entity.TaskPending
	return task.Clone(), nil
}

func (f *fakeEngine) DeleteDocumentEmbeddings(ctx context.Context, fileID, kbID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, kbID+":"+fileID)
	return true, nil
}

func (f *fakeEngine) IsDocumentEmbedded(ctx context.Context, fileID, kbID string) (bool, error) {
	return f.embedded, nil
}

func (f *fakeEngine) Stats(ctx context.Context) (*ingestion.Stats, error) {
	return &ingestion.Stats{Total: 4, Completed: 3, Failed: 1, SuccessRate: 75}, nil
}

type staticCatalog struct{}

func (staticCatalog) SupportedExtensions() []string { return []string{"json", "pdf", "txt"} }
func (staticCatalog) SupportedModels() []string     { return []string{"hash-768", "nomic-embed-text"} }
func (staticCatalog) DefaultModel() string          { return "hash-768" }

// ownerOnly lets u1 do anything and everyone else only read.
type ownerOnly struct{}

func (ownerOnly) CheckAccess(ctx context.Context, resourceID, userID, action string) (bool, error) {
	return userID == "u1" || action == access.ActionRead, nil
}

type memoryRecorder struct {
	mu      sync.Mutex
	entries []string
}

func (m *memoryRecorder) Record(ctx context.Context, userID, operationType, resourceID string, before, after interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	raw, _ := json.Marshal(after)
	m.entries = append(m.entries, operationType+"|"+resourceID+"|"+string(raw))
}

func newEmbeddingFixture() (IEmbeddingService, *fakeEngine, *memoryRecorder) {
	engine := newFakeEngine()
	rec := &memoryRecorder{}
	svc := NewEmbeddingService(engine, staticCatalog{}, staticCatalog{}, ownerOnly{}, rec, logger.NewNopLogger())
	return svc, engine, rec
}

func TestEmbeddingProcess(t *testing.T) {
	tests := []struct {
		name       string
		userID     string
		mode       string
		wantStatus string
		wantTaskID string
		wantErr    error
	}{
		{name: "sync by default", userID: "u1", wantStatus: "COMPLETED", wantTaskID: "task-f1"},
		{name: "async", userID: "u1", mode: "async", wantStatus: "PENDING", wantTaskID: "async-f1"},
		{name: "no write access", userID: "u2", wantErr: apperror.ErrAccessDenied},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, engine, rec := newEmbeddingFixture()

			res, err := svc.Process(context.Background(), tt.userID, &dto.ProcessEmbeddingRequest{
				FileID:          "f1",
				KnowledgeBaseID: "kb1",
				ChunkSize:       500,
				ChunkOverlap:    50,
				Mode:            tt.mode,
			})
			if tt.wantErr != nil {
				assert.True(t, errors.Is(err, tt.wantErr))
				assert.Empty(t, engine.requests)
				assert.Empty(t, rec.entries)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantTaskID, res.TaskID)
			assert.Equal(t, tt.wantStatus, res.Status)
			require.Len(t, rec.entries, 1)
			assert.Contains(t, rec.entries[0], "EMBEDDING_PROCESS|"+tt.wantTaskID)
		})
	}
}

func TestEmbeddingProcessPassesRequestThrough(t *testing.T) {
	svc, engine, _ := newEmbeddingFixture()

	res, err := svc.Process(context.Background(), "u1", &dto.ProcessEmbeddingRequest{
		FileID:            "f1",
		KnowledgeBaseID:   "kb1",
		KnowledgeBaseName: "Manuals",
		Model:             "nomic-embed-text",
		ChunkSize:         800,
		ChunkOverlap:      80,
	})
	require.NoError(t, err)
	require.Len(t, engine.requests, 1)
	assert.Equal(t, ingestion.Request{
		FileID:            "f1",
		KnowledgeBaseID:   "kb1",
		KnowledgeBaseName: "Manuals",
		UserID:            "u1",
		Model:             "nomic-embed-text",
		ChunkSize:         800,
		ChunkOverlap:      80,
	}, engine.requests[0])

	assert.Equal(t, 2, res.SegmentCount)
	assert.Equal(t, 2, res.EmbeddedCount)
	assert.Equal(t, float64(100), res.Progress)
	assert.Len(t, res.Segments, 2)
}

func TestEmbeddingProcessEngineError(t *testing.T) {
	svc, engine, rec := newEmbeddingFixture()
	engine.failWith = apperror.New(apperror.KindTaskConflict, "fake", "busy")

	_, err := svc.Process(context.Background(), "u1", &dto.ProcessEmbeddingRequest{FileID: "f1", KnowledgeBaseID: "kb1"})
	assert.True(t, errors.Is(err, apperror.ErrTaskConflict))
	assert.Empty(t, rec.entries)
}

func TestEmbeddingBatch(t *testing.T) {
	svc, _, rec := newEmbeddingFixture()

	res, err := svc.Batch(context.Background(), "u1", &dto.BatchEmbeddingRequest{Documents: []dto.ProcessEmbeddingRequest{
		{FileID: "f1", KnowledgeBaseID: "kb1"},
		{FileID: "bad", KnowledgeBaseID: "kb1"},
		{FileID: "f3", KnowledgeBaseID: "kb1"},
	}})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Total)
	assert.Equal(t, 2, res.Submitted)
	assert.Equal(t, 1, res.Rejected)

	require.Len(t, res.Items, 3)
	assert.Equal(t, "task-f1", res.Items[0].TaskID)
	require.NotNil(t, res.Items[0].Task)
	assert.Equal(t, "COMPLETED", res.Items[0].Task.Status)
	assert.Equal(t, "UNSUPPORTED_FORMAT", res.Items[1].Error)
	assert.Equal(t, "task-f3", res.Items[2].TaskID)
	require.Len(t, rec.entries, 1)
	assert.Contains(t, rec.entries[0], "EMBEDDING_BATCH")
}

func TestEmbeddingBatchAccessIsPerItem(t *testing.T) {
	engine := newFakeEngine()
	checker := kbAllowList{"kb1": true}
	svc := NewEmbeddingService(engine, staticCatalog{}, staticCatalog{}, checker, nil, logger.NewNopLogger())

	res, err := svc.Batch(context.Background(), "u1", &dto.BatchEmbeddingRequest{
		Mode: "ASYNC",
		Documents: []dto.ProcessEmbeddingRequest{
			{FileID: "f1", KnowledgeBaseID: "kb-locked"},
			{FileID: "f2", KnowledgeBaseID: "kb1"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Submitted)
	assert.Contains(t, res.Items[0].Error, string(apperror.KindAccessDenied))
	assert.Equal(t, "async-f2", res.Items[1].TaskID)
	require.Len(t, engine.async, 1)
	assert.Equal(t, "kb1", engine.async[0].KnowledgeBaseID)
}

type kbAllowList map[string]bool

func (k kbAllowList) CheckAccess(ctx context.Context, resourceID, userID, action string) (bool, error) {
	return k[resourceID], nil
}

func TestEmbeddingCancelAndRetry(t *testing.T) {
	svc, engine, rec := newEmbeddingFixture()
	ctx := context.Background()
	engine.add(&entity.EmbeddingTask{TaskID: "running", KnowledgeBaseID: "kb1", Status: entity.TaskProcessing})
	engine.add(&entity.EmbeddingTask{TaskID: "done", KnowledgeBaseID: "kb1", Status: entity.TaskCompleted})
	engine.add(&entity.EmbeddingTask{TaskID: "failed", KnowledgeBaseID: "kb1", Status: entity.TaskFailed, MaxRetryCount: 1})

	res, err := svc.Cancel(ctx, "u1", "running")
	require.NoError(t, err)
	assert.True(t, res.Cancelled)

	res, err = svc.Cancel(ctx, "u1", "done")
	require.NoError(t, err)
	assert.False(t, res.Cancelled)

	_, err = svc.Cancel(ctx, "u1", "missing")
	assert.True(t, errors.Is(err, apperror.ErrTaskNotFound))

	_, err = svc.Cancel(ctx, "u2", "running")
	assert.True(t, errors.Is(err, apperror.ErrAccessDenied))

	retried, err := svc.Retry(ctx, "u1", "failed")
	require.NoError(t, err)
	assert.Equal(t, "PENDING", retried.Status)
	assert.Equal(t, 1, retried.RetryCount)

	engine.tasks["failed"].Status = entity.TaskFailed
	_, err = svc.Retry(ctx, "u1", "failed")
	assert.True(t, errors.Is(err, apperror.ErrRetryExhausted))

	// One cancel and one retry were recorded.
	require.Len(t, rec.entries, 2)
	assert.Contains(t, rec.entries[0], "EMBEDDING_CANCEL|running")
	assert.Contains(t, rec.entries[1], "EMBEDDING_RETRY|failed")
}

func TestEmbeddingStatusRequiresRead(t *testing.T) {
	engine := newFakeEngine()
	engine.add(&entity.EmbeddingTask{TaskID: "t1", KnowledgeBaseID: "kb1", Status: entity.TaskProcessing,
		Segments: []entity.SegmentResult{{Embedded: true}, {Embedded: false}}})
	svc := NewEmbeddingService(engine, staticCatalog{}, staticCatalog{}, kbAllowList{"kb1": true}, nil, logger.NewNopLogger())

	res, err := svc.Status(context.Background(), "anyone", "t1")
	require.NoError(t, err)
	assert.Equal(t, float64(50), res.Progress)

	engine.add(&entity.EmbeddingTask{TaskID: "t2", KnowledgeBaseID: "kb-locked", Status: entity.TaskPending})
	_, err = svc.Status(context.Background(), "anyone", "t2")
	assert.True(t, errors.Is(err, apperror.ErrAccessDenied))
}

func TestEmbeddingDeleteAndCheck(t *testing.T) {
	svc, engine, rec := newEmbeddingFixture()
	ctx := context.Background()

	del, err := svc.DeleteDocument(ctx, "u1", "f1", "kb1")
	require.NoError(t, err)
	assert.True(t, del.Deleted)
	assert.Equal(t, []string{"kb1:f1"}, engine.deleted)
	require.Len(t, rec.entries, 1)
	assert.Contains(t, rec.entries[0], "EMBEDDING_DELETE|f1")

	_, err = svc.DeleteDocument(ctx, "u1", "f1", "")
	assert.True(t, errors.Is(err, apperror.ErrValidation))

	_, err = svc.DeleteDocument(ctx, "u2", "f1", "kb1")
	assert.True(t, errors.Is(err, apperror.ErrAccessDenied))

	engine.embedded = true
	chk, err := svc.Check(ctx, "u2", "f1", "kb1")
	require.NoError(t, err)
	assert.True(t, chk.Embedded)
}

func TestEmbeddingCatalogAndStats(t *testing.T) {
	svc, _, _ := newEmbeddingFixture()

	assert.Equal(t, []string{"json", "pdf", "txt"}, svc.SupportedTypes().Extensions)
	models := svc.SupportedModels()
	assert.Equal(t, "hash-768", models.DefaultModel)
	assert.Len(t, models.Models, 2)

	stats, err := svc.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, stats.Total)
	assert.Equal(t, float64(75), stats.SuccessRate)
}
