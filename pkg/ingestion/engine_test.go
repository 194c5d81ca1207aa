package ingestion

import (
	"context"
	"errors"
	"strings"
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

const testModel = "test-model"

var (
	longText  = strings.Repeat("alpha beta gamma ", 20)
	mixedText = strings.Repeat("alpha beta gamma ", 10) + strings.Repeat("delta epsilon zeta ", 10)
)

type fakeResolver struct {
	files map[string]*storage.Resource
}

func (f *fakeResolver) Resolve(ctx context.Context, fileID string) (*storage.Resource, error) {
	res, ok := f.files[fileID]
	if !ok {
		return nil, storage.ErrFileNotFound
	}
	return res, nil
}

type fakeEmbedder struct {
	mu     sync.Mutex
	failOn string
	// tokens, when set, makes every call wait for one value (or a close).
	tokens chan struct{}
	calls  int
}

func (f *fakeEmbedder) Embed(ctx context.Context, model, text string) ([]float32, error) {
	f.mu.Lock()
	f.calls++
	failOn, tokens := f.failOn, f.tokens
	f.mu.Unlock()

	if tokens != nil {
		<-tokens
	}
	if failOn != "" && strings.Contains(text, failOn) {
		return nil, apperror.New(apperror.KindEmbeddingModel, "fake", "rejected")
	}
	return []float32{1, float32(len(text))}, nil
}

func (f *fakeEmbedder) setFailOn(s string) {
	f.mu.Lock()
	f.failOn = s
	f.mu.Unlock()
}

func (f *fakeEmbedder) HasModel(model string) bool { return model == testModel }

func (f *fakeEmbedder) DefaultModel() string { return testModel }

type recordingPublisher struct {
	mu       sync.Mutex
	statuses map[string][]entity.TaskStatus
}

func (p *recordingPublisher) TaskChanged(ctx context.Context, task *entity.EmbeddingTask) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.statuses == nil {
		p.statuses = make(map[string][]entity.TaskStatus)
	}
	p.statuses[task.TaskID] = append(p.statuses[task.TaskID], task.Status)
}

func (p *recordingPublisher) of(taskID string) []entity.TaskStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]entity.TaskStatus(nil), p.statuses[taskID]...)
}

type fixture struct {
	engine    *Engine
	embedder  *fakeEmbedder
	store     *vectorstore.MemoryStore
	publisher *recordingPublisher
}

func newFixture(t *testing.T, cfg Config) *fixture {
	t.Helper()
	resolver := &fakeResolver{files: map[string]*storage.Resource{
		"doc":   {Data: []byte(longText), Filename: "doc.txt", ContentType: "text/plain"},
		"doc2":  {Data: []byte(longText), Filename: "doc2.md", ContentType: "text/markdown"},
		"mixed": {Data: []byte(mixedText), Filename: "mixed.txt"},
		"short": {Data: []byte("a single short paragraph"), Filename: "short.txt"},
		"blob":  {Data: []byte{0x00, 0x01}, Filename: "blob.bin"},
		"empty": {Data: []byte("   \n "), Filename: "empty.txt"},
	}}
	log := logger.NewNopLogger()
	registry := reader.NewRegistry(log, reader.NewTextReader())
	embedder := &fakeEmbedder{}
	store := vectorstore.NewMemoryStore(nil)
	publisher := &recordingPublisher{}

	if cfg.DefaultChunkSize == 0 {
		cfg.DefaultChunkSize = 100
		cfg.DefaultChunkOverlap = 10
	}
	engine, err := NewEngine(cfg, resolver, registry, embedder, store, log, WithPublisher(publisher))
	require.NoError(t, err)
	t.Cleanup(engine.Release)

	return &fixture{engine: engine, embedder: embedder, store: store, publisher: publisher}
}

func waitForStatus(t *testing.T, e *Engine, taskID string, want entity.TaskStatus) *entity.EmbeddingTask {
	t.Helper()
	var task *entity.EmbeddingTask
	require.Eventually(t, func() bool {
		var err error
		task, err = e.Status(context.Background(), taskID)
		return err == nil && task.Status == want
	}, 3*time.Second, 5*time.Millisecond, "task %s never reached %s", taskID, want)
	return task
}

func waitSettled(t *testing.T, e *Engine, taskID string) {
	t.Helper()
	require.Eventually(t, func() bool { return e.lookup(taskID) == nil }, 3*time.Second, 5*time.Millisecond)
}

func TestProcessDocument(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Config{})

	task, err := f.engine.ProcessDocument(ctx, Request{FileID: "doc", KnowledgeBaseID: "kb", UserID: "u1"})
	require.NoError(t, err)

	assert.Equal(t, entity.TaskCompleted, task.Status)
	assert.Greater(t, len(task.Segments), 1)
	assert.Equal(t, len(task.Segments), task.EmbeddedCount())
	assert.NotNil(t, task.StartedAt)
	assert.NotNil(t, task.EndedAt)
	assert.Equal(t, testModel, task.Model)
	assert.Equal(t, 100.0, Progress(task))

	stats, err := f.store.Stats(ctx, "kb")
	require.NoError(t, err)
	assert.Equal(t, int64(len(task.Segments)), stats.SegmentCount)

	embedded, err := f.engine.IsDocumentEmbedded(ctx, "doc", "kb")
	require.NoError(t, err)
	assert.True(t, embedded)

	assert.Equal(t,
		[]entity.TaskStatus{entity.TaskPending, entity.TaskProcessing, entity.TaskCompleted},
		f.publisher.of(task.TaskID))
}

func TestReingestionReplacesSegments(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Config{})

	first, err := f.engine.ProcessDocument(ctx, Request{FileID: "doc", KnowledgeBaseID: "kb"})
	require.NoError(t, err)
	second, err := f.engine.ProcessDocument(ctx, Request{FileID: "doc", KnowledgeBaseID: "kb", ChunkSize: 200, ChunkOverlap: 0})
	require.NoError(t, err)
	require.Equal(t, entity.TaskCompleted, second.Status)
	require.NotEqual(t, len(first.Segments), len(second.Segments))

	n, err := f.store.CountByFileID(ctx, "kb", "doc")
	require.NoError(t, err)
	assert.Equal(t, int64(len(second.Segments)), n)
}

func TestProcessDocumentFailures(t *testing.T) {
	tests := []struct {
		name        string
		fileID      string
		failOn      string
		wantStatus  entity.TaskStatus
		wantMessage string
	}{
		{"partial segment failure", "mixed", "zeta", entity.TaskFailed, "segments;"},
		{"unsupported format", "blob", "", entity.TaskFailed, "UNSUPPORTED_FORMAT"},
		{"missing file", "nope", "", entity.TaskFailed, "file not found"},
		{"empty document", "empty", "", entity.TaskCompleted, "no content"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, Config{})
			f.embedder.setFailOn(tt.failOn)

			task, err := f.engine.ProcessDocument(context.Background(), Request{FileID: tt.fileID, KnowledgeBaseID: "kb"})
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, task.Status)
			assert.Contains(t, task.Message, tt.wantMessage)
		})
	}
}

func TestPartialFailureKeepsSuccessfulSegments(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Config{})
	f.embedder.setFailOn("zeta")

	task, err := f.engine.ProcessDocument(ctx, Request{FileID: "mixed", KnowledgeBaseID: "kb"})
	require.NoError(t, err)
	require.Equal(t, entity.TaskFailed, task.Status)

	embedded := task.EmbeddedCount()
	assert.GreaterOrEqual(t, embedded, 1)
	assert.Less(t, embedded, len(task.Segments))
	for _, s := range task.Segments {
		if !s.Embedded {
			assert.NotEmpty(t, s.Error)
		}
	}
	n, err := f.store.CountByFileID(ctx, "kb", "mixed")
	require.NoError(t, err)
	assert.Equal(t, int64(embedded), n)
}

func TestRequestValidation(t *testing.T) {
	f := newFixture(t, Config{})

	tests := []struct {
		name string
		req  Request
		want error
	}{
		{"missing file", Request{KnowledgeBaseID: "kb"}, apperror.ErrValidation},
		{"missing kb", Request{FileID: "doc"}, apperror.ErrValidation},
		{"bad overlap", Request{FileID: "doc", KnowledgeBaseID: "kb", ChunkSize: 100, ChunkOverlap: 100}, apperror.ErrValidation},
		{"unknown model", Request{FileID: "doc", KnowledgeBaseID: "kb", Model: "other"}, apperror.ErrEmbeddingModel},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.engine.ProcessDocumentAsync(context.Background(), tt.req)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}
}

func TestPerKeyConflict(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Config{})
	f.embedder.tokens = make(chan struct{})
	t.Cleanup(func() { close(f.embedder.tokens) })

	id, err := f.engine.ProcessDocumentAsync(ctx, Request{FileID: "doc", KnowledgeBaseID: "kb"})
	require.NoError(t, err)
	waitForStatus(t, f.engine, id, entity.TaskProcessing)

	_, err = f.engine.ProcessDocumentAsync(ctx, Request{FileID: "doc", KnowledgeBaseID: "kb"})
	assert.True(t, errors.Is(err, apperror.ErrTaskConflict))

	_, err = f.engine.DeleteDocumentEmbeddings(ctx, "doc", "kb")
	assert.True(t, errors.Is(err, apperror.ErrTaskConflict))

	// Other keys are independent.
	_, err = f.engine.ProcessDocumentAsync(ctx, Request{FileID: "doc", KnowledgeBaseID: "kb-other"})
	assert.NoError(t, err)
}

func TestCancelRunningTask(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Config{})
	tokens := make(chan struct{})
	f.embedder.tokens = tokens

	id, err := f.engine.ProcessDocumentAsync(ctx, Request{FileID: "doc", KnowledgeBaseID: "kb"})
	require.NoError(t, err)

	tokens <- struct{}{}
	require.Eventually(t, func() bool {
		task, _ := f.engine.Status(ctx, id)
		return task.EmbeddedCount() == 1
	}, 3*time.Second, 5*time.Millisecond)

	ok, err := f.engine.Cancel(ctx, id)
	require.NoError(t, err)
	assert.True(t, ok)

	task, err := f.engine.Status(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, entity.TaskCancelled, task.Status)

	// The in-flight embedding call completes; the task then stops at the
	// segment boundary.
	tokens <- struct{}{}
	waitSettled(t, f.engine, id)
	close(tokens)

	task, err = f.engine.Status(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, entity.TaskCancelled, task.Status)
	assert.Less(t, task.EmbeddedCount(), len(task.Segments))

	// No rollback.
	n, err := f.store.CountByFileID(ctx, "kb", "doc")
	require.NoError(t, err)
	assert.Equal(t, int64(task.EmbeddedCount()), n)

	ok, err = f.engine.Cancel(ctx, id)
	require.NoError(t, err)
	assert.False(t, ok)

	// The key is free again.
	_, err = f.engine.ProcessDocumentAsync(ctx, Request{FileID: "doc", KnowledgeBaseID: "kb"})
	assert.NoError(t, err)
}

func TestCancelPendingTask(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Config{MaxConcurrentTasks: 1})
	tokens := make(chan struct{})
	f.embedder.tokens = tokens

	first, err := f.engine.ProcessDocumentAsync(ctx, Request{FileID: "doc", KnowledgeBaseID: "kb"})
	require.NoError(t, err)
	waitForStatus(t, f.engine, first, entity.TaskProcessing)

	second, err := f.engine.ProcessDocumentAsync(ctx, Request{FileID: "doc2", KnowledgeBaseID: "kb"})
	require.NoError(t, err)
	task, err := f.engine.Status(ctx, second)
	require.NoError(t, err)
	assert.Equal(t, entity.TaskPending, task.Status)
	assert.Equal(t, 0.0, Progress(task))

	ok, err := f.engine.Cancel(ctx, second)
	require.NoError(t, err)
	assert.True(t, ok)
	waitSettled(t, f.engine, second)

	close(tokens)
	waitForStatus(t, f.engine, first, entity.TaskCompleted)

	task, err = f.engine.Status(ctx, second)
	require.NoError(t, err)
	assert.Equal(t, entity.TaskCancelled, task.Status)
	assert.Nil(t, task.StartedAt)
}

func TestTaskTimeout(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Config{TaskTimeout: 100 * time.Millisecond})
	tokens := make(chan struct{})
	f.embedder.tokens = tokens
	t.Cleanup(func() { close(tokens) })

	task, err := f.engine.ProcessDocument(ctx, Request{FileID: "doc", KnowledgeBaseID: "kb"})
	require.NoError(t, err)
	assert.Equal(t, entity.TaskFailed, task.Status)
	assert.Contains(t, task.Message, "timeout")
	require.NotEmpty(t, task.Errors)
	assert.Contains(t, task.Errors[len(task.Errors)-1], string(apperror.KindTimeout))
	assert.Nil(t, f.engine.lookup(task.TaskID))
}

func TestRetry(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Config{MaxRetryCount: 1})
	f.embedder.setFailOn("alpha")

	task, err := f.engine.ProcessDocument(ctx, Request{FileID: "doc", KnowledgeBaseID: "kb"})
	require.NoError(t, err)
	require.Equal(t, entity.TaskFailed, task.Status)

	f.embedder.setFailOn("")
	retried, err := f.engine.Retry(ctx, task.TaskID)
	require.NoError(t, err)
	assert.Equal(t, 1, retried.RetryCount)
	assert.Equal(t, entity.TaskPending, retried.Status)

	done := waitForStatus(t, f.engine, task.TaskID, entity.TaskCompleted)
	waitSettled(t, f.engine, task.TaskID)
	assert.Equal(t, 1, done.RetryCount)
	assert.NotEmpty(t, done.Errors, "errors of earlier attempts are kept")

	_, err = f.engine.Retry(ctx, task.TaskID)
	assert.True(t, errors.Is(err, apperror.ErrRetryExhausted), "completed task")

	_, err = f.engine.Retry(ctx, "missing")
	assert.True(t, errors.Is(err, apperror.ErrTaskNotFound))
}

func TestRetryBudgetExhausted(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Config{MaxRetryCount: 1})
	f.embedder.setFailOn("alpha")

	task, err := f.engine.ProcessDocument(ctx, Request{FileID: "doc", KnowledgeBaseID: "kb"})
	require.NoError(t, err)

	_, err = f.engine.Retry(ctx, task.TaskID)
	require.NoError(t, err)
	waitForStatus(t, f.engine, task.TaskID, entity.TaskFailed)
	waitSettled(t, f.engine, task.TaskID)

	_, err = f.engine.Retry(ctx, task.TaskID)
	assert.True(t, errors.Is(err, apperror.ErrRetryExhausted))
}

func TestStatusUnknownTask(t *testing.T) {
	f := newFixture(t, Config{})
	_, err := f.engine.Status(context.Background(), "missing")
	assert.True(t, errors.Is(err, apperror.ErrTaskNotFound))

	_, err = f.engine.Cancel(context.Background(), "missing")
	assert.True(t, errors.Is(err, apperror.ErrTaskNotFound))
}

func TestDeleteDocumentEmbeddings(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Config{})

	_, err := f.engine.ProcessDocument(ctx, Request{FileID: "doc", KnowledgeBaseID: "kb"})
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		ok, err := f.engine.DeleteDocumentEmbeddings(ctx, "doc", "kb")
		require.NoError(t, err)
		assert.True(t, ok)
	}

	embedded, err := f.engine.IsDocumentEmbedded(ctx, "doc", "kb")
	require.NoError(t, err)
	assert.False(t, embedded)

	embedded, err = f.engine.IsDocumentEmbedded(ctx, "doc", "unknown-kb")
	require.NoError(t, err)
	assert.False(t, embedded)
}

func TestProcessBatch(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Config{})

	results, err := f.engine.ProcessBatch(ctx, []Request{
		{FileID: "doc", KnowledgeBaseID: "kb"},
		{FileID: "blob", KnowledgeBaseID: "kb"},
		{FileID: "short", KnowledgeBaseID: "kb", Model: "other"},
	})
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, entity.TaskCompleted, results[0].Task.Status)
	assert.Equal(t, entity.TaskFailed, results[1].Task.Status)
	assert.Empty(t, results[2].TaskID)
	assert.Contains(t, results[2].Error, string(apperror.KindEmbeddingModel))

	_, err = f.engine.ProcessBatch(ctx, nil)
	assert.True(t, errors.Is(err, apperror.ErrValidation))
}

func TestProcessBatchAsyncAndStats(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Config{})

	results, err := f.engine.ProcessBatchAsync(ctx, []Request{
		{FileID: "doc", KnowledgeBaseID: "kb"},
		{FileID: "blob", KnowledgeBaseID: "kb"},
	})
	require.NoError(t, err)
	require.Len(t, results, 2)

	waitForStatus(t, f.engine, results[0].TaskID, entity.TaskCompleted)
	waitForStatus(t, f.engine, results[1].TaskID, entity.TaskFailed)
	waitSettled(t, f.engine, results[0].TaskID)
	waitSettled(t, f.engine, results[1].TaskID)

	stats, err := f.engine.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Total)
	assert.Equal(t, 1, stats.Completed)
	assert.Equal(t, 1, stats.Failed)
	assert.InDelta(t, 50.0, stats.SuccessRate, 0.001)

	failed, err := f.engine.ListTasks(ctx, TaskFilter{Statuses: []entity.TaskStatus{entity.TaskFailed}})
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, "blob", failed[0].FileID)
}

func TestReleasedEngineRejectsWork(t *testing.T) {
	f := newFixture(t, Config{})
	f.engine.Release()

	_, err := f.engine.ProcessDocumentAsync(context.Background(), Request{FileID: "doc", KnowledgeBaseID: "kb"})
	assert.ErrorIs(t, err, ErrEngineClosed)

	_, err = f.engine.ProcessBatchAsync(context.Background(), []Request{{FileID: "doc", KnowledgeBaseID: "kb"}})
	assert.ErrorIs(t, err, ErrEngineClosed)
}
