package ingestion

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"ai-knowledge-be/internal/entity"
	"ai-knowledge-be/internal/pkg/logger"
	"ai-knowledge-be/pkg/apperror"
	"ai-knowledge-be/pkg/chunker"
	"ai-knowledge-be/pkg/reader"
	"ai-knowledge-be/pkg/storage"
	"ai-knowledge-be/pkg/vectorstore"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const logModule = "INGESTION"

var ErrEngineClosed = errors.New("ingestion engine is closed")

// DocumentReader turns a source document into normalised units.
type DocumentReader interface {
	Read(ctx context.Context, doc *entity.SourceDocument, cfg reader.Config) ([]*entity.NormalizedUnit, error)
}

// Embedder produces segment vectors.
type Embedder interface {
	Embed(ctx context.Context, model, text string) ([]float32, error)
	HasModel(model string) bool
	DefaultModel() string
}

type Config struct {
	MaxConcurrentTasks  int
	TaskTimeout         time.Duration
	MaxRetryCount       int
	DefaultChunkSize    int
	DefaultChunkOverlap int
	// StoreRetryAttempts bounds vector store calls that fail transiently.
	StoreRetryAttempts int
	StoreRetryInterval time.Duration
	Reader             reader.Config
}

func DefaultConfig() Config {
	return Config{
		MaxConcurrentTasks:  5,
		TaskTimeout:         30 * time.Minute,
		MaxRetryCount:       3,
		DefaultChunkSize:    chunker.DefaultChunkSize,
		DefaultChunkOverlap: chunker.DefaultOverlap,
		StoreRetryAttempts:  3,
		StoreRetryInterval:  time.Second,
		Reader:              reader.DefaultConfig(),
	}
}

type Option func(*Engine)

func WithTaskStore(store TaskStore) Option {
	return func(e *Engine) { e.tasks = store }
}

func WithLocker(locker KeyLocker) Option {
	return func(e *Engine) { e.locker = locker }
}

func WithPublisher(publisher TaskPublisher) Option {
	return func(e *Engine) { e.publisher = publisher }
}

// Engine runs embedding tasks on a bounded worker pool.
type Engine struct {
	cfg       Config
	resolver  storage.Resolver
	reader    DocumentReader
	embedder  Embedder
	store     vectorstore.Store
	tasks     TaskStore
	locker    KeyLocker
	publisher TaskPublisher
	pool      *ants.Pool
	tracer    trace.Tracer
	logger    logger.ILogger

	mu   sync.Mutex
	runs map[string]*run // live (non-settled) tasks by id
}

// run is the in-process state of one task. attempt changes on every retry
// so late updates from an abandoned attempt are ignored.
type run struct {
	mu       sync.Mutex
	saveMu   sync.Mutex
	task     *entity.EmbeddingTask
	attempt  int
	settled  bool
	lockHeld bool
	done     chan struct{}
}

func NewEngine(
	cfg Config,
	resolver storage.Resolver,
	docReader DocumentReader,
	embedder Embedder,
	store vectorstore.Store,
	log logger.ILogger,
	opts ...Option,
) (*Engine, error) {
	defaults := DefaultConfig()
	if cfg.MaxConcurrentTasks <= 0 {
		cfg.MaxConcurrentTasks = defaults.MaxConcurrentTasks
	}
	if cfg.TaskTimeout <= 0 {
		cfg.TaskTimeout = defaults.TaskTimeout
	}
	if cfg.MaxRetryCount < 0 {
		cfg.MaxRetryCount = defaults.MaxRetryCount
	}
	if cfg.StoreRetryAttempts <= 0 {
		cfg.StoreRetryAttempts = defaults.StoreRetryAttempts
	}
	if cfg.StoreRetryInterval < 0 {
		cfg.StoreRetryInterval = defaults.StoreRetryInterval
	}
	if cfg.DefaultChunkSize == 0 {
		cfg.DefaultChunkSize = defaults.DefaultChunkSize
		cfg.DefaultChunkOverlap = defaults.DefaultChunkOverlap
	}

	pool, err := ants.NewPool(cfg.MaxConcurrentTasks)
	if err != nil {
		return nil, fmt.Errorf("create ingestion pool: %w", err)
	}

	e := &Engine{
		cfg:       cfg,
		resolver:  resolver,
		reader:    docReader,
		embedder:  embedder,
		store:     store,
		tasks:     NewMemoryTaskStore(),
		locker:    NewMemoryLocker(),
		publisher: NopPublisher{},
		pool:      pool,
		tracer:    otel.Tracer("ai-knowledge-be/ingestion"),
		logger:    log,
		runs:      make(map[string]*run),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Release stops accepting work. Running tasks finish on their own.
func (e *Engine) Release() {
	e.pool.Release()
}

func (e *Engine) lockTTL() time.Duration {
	return 2 * e.cfg.TaskTimeout
}

// ProcessDocument runs one task to a terminal state and returns it. The
// error is non-nil only when the request was rejected or ctx ended first.
func (e *Engine) ProcessDocument(ctx context.Context, req Request) (*entity.EmbeddingTask, error) {
	r, attempt, done, err := e.enqueue(ctx, req)
	if err != nil {
		return nil, err
	}

	base := context.WithoutCancel(ctx)
	if err := e.pool.Submit(func() { e.execute(base, r, attempt) }); err != nil {
		e.abort(base, r, attempt, err)
		return nil, ErrEngineClosed
	}

	select {
	case <-done:
		return r.snapshot(), nil
	case <-ctx.Done():
		return r.snapshot(), ctx.Err()
	}
}

// ProcessDocumentAsync queues a task and returns its id immediately.
func (e *Engine) ProcessDocumentAsync(ctx context.Context, req Request) (string, error) {
	if e.pool.IsClosed() {
		return "", ErrEngineClosed
	}
	r, attempt, _, err := e.enqueue(ctx, req)
	if err != nil {
		return "", err
	}
	e.dispatch(context.WithoutCancel(ctx), r, attempt)
	return r.task.TaskID, nil
}

// dispatch hands the attempt to the pool without blocking the caller; the
// task stays PENDING until a worker is free.
func (e *Engine) dispatch(ctx context.Context, r *run, attempt int) {
	go func() {
		if err := e.pool.Submit(func() { e.execute(ctx, r, attempt) }); err != nil {
			e.abort(ctx, r, attempt, err)
		}
	}()
}

// enqueue validates req, takes the key lock and registers a PENDING task.
func (e *Engine) enqueue(ctx context.Context, req Request) (*run, int, chan struct{}, error) {
	req = req.withDefaults(e.cfg, e.embedder.DefaultModel())
	if err := req.validate(); err != nil {
		return nil, 0, nil, err
	}
	if !e.embedder.HasModel(req.Model) {
		return nil, 0, nil, apperror.Newf(apperror.KindEmbeddingModel, "ingestion.enqueue", "unsupported model %q", req.Model)
	}
	if e.pool.IsClosed() {
		return nil, 0, nil, ErrEngineClosed
	}

	ok, err := e.locker.TryLock(ctx, req.key(), e.lockTTL())
	if err != nil {
		return nil, 0, nil, fmt.Errorf("acquire task lock: %w", err)
	}
	if !ok {
		return nil, 0, nil, apperror.Newf(apperror.KindTaskConflict, "ingestion.enqueue",
			"file %s is already being processed in knowledge base %s", req.FileID, req.KnowledgeBaseID)
	}

	task := &entity.EmbeddingTask{
		TaskID:            uuid.NewString(),
		FileID:            req.FileID,
		KnowledgeBaseID:   req.KnowledgeBaseID,
		KnowledgeBaseName: req.KnowledgeBaseName,
		UserID:            req.UserID,
		Model:             req.Model,
		Status:            entity.TaskPending,
		MaxRetryCount:     e.cfg.MaxRetryCount,
		ChunkSize:         req.ChunkSize,
		ChunkOverlap:      req.ChunkOverlap,
		Message:           "queued",
		CreatedAt:         time.Now(),
	}
	r := &run{task: task, lockHeld: true, done: make(chan struct{})}

	e.mu.Lock()
	e.runs[task.TaskID] = r
	e.mu.Unlock()

	e.save(ctx, r)
	e.publisher.TaskChanged(ctx, task.Clone())

	e.logger.Info(logModule, "Task queued", map[string]interface{}{
		"task_id":           task.TaskID,
		"file_id":           task.FileID,
		"knowledge_base_id": task.KnowledgeBaseID,
		"model":             task.Model,
	})
	return r, r.attempt, r.done, nil
}

// Status returns a snapshot of the task.
func (e *Engine) Status(ctx context.Context, taskID string) (*entity.EmbeddingTask, error) {
	if r := e.lookup(taskID); r != nil {
		return r.snapshot(), nil
	}
	task, err := e.tasks.Get(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("load task %s: %w", taskID, err)
	}
	if task == nil {
		return nil, apperror.Newf(apperror.KindTaskNotFound, "ingestion.status", "task %s not found", taskID)
	}
	return task, nil
}

// Cancel stops a non-terminal task. A running task stops at the next
// segment boundary; segments already stored are kept. It reports false when
// the task had already finished.
func (e *Engine) Cancel(ctx context.Context, taskID string) (bool, error) {
	r := e.lookup(taskID)
	if r == nil {
		return e.cancelOrphan(ctx, taskID)
	}

	r.mu.Lock()
	if r.settled || !r.task.Status.IsActive() {
		r.mu.Unlock()
		return false, nil
	}
	wasPending := r.task.Status == entity.TaskPending
	now := time.Now()
	r.task.Status = entity.TaskCancelled
	r.task.Message = "cancelled by request"
	r.task.EndedAt = &now
	attempt := r.attempt
	snap := r.task.Clone()
	r.mu.Unlock()

	e.publisher.TaskChanged(ctx, snap)
	e.logger.Info(logModule, "Task cancelled", map[string]interface{}{"task_id": taskID, "was_pending": wasPending})

	if wasPending {
		e.settle(ctx, r, attempt)
	} else {
		e.save(ctx, r)
	}
	return true, nil
}

// cancelOrphan handles a task that is not live in this process, e.g. one
// left PENDING by a previous instance.
func (e *Engine) cancelOrphan(ctx context.Context, taskID string) (bool, error) {
	task, err := e.tasks.Get(ctx, taskID)
	if err != nil {
		return false, fmt.Errorf("load task %s: %w", taskID, err)
	}
	if task == nil {
		return false, apperror.Newf(apperror.KindTaskNotFound, "ingestion.cancel", "task %s not found", taskID)
	}
	if !task.Status.IsActive() {
		return false, nil
	}

	now := time.Now()
	task.Status = entity.TaskCancelled
	task.Message = "cancelled by request"
	task.EndedAt = &now
	if err := e.tasks.Save(ctx, task); err != nil {
		return false, fmt.Errorf("save task %s: %w", taskID, err)
	}
	e.publisher.TaskChanged(ctx, task)
	return true, nil
}

// Retry re-queues a FAILED task that still has retry budget.
func (e *Engine) Retry(ctx context.Context, taskID string) (*entity.EmbeddingTask, error) {
	if r := e.lookup(taskID); r != nil {
		return nil, apperror.Newf(apperror.KindTaskConflict, "ingestion.retry", "task %s is still running", taskID)
	}

	task, err := e.tasks.Get(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("load task %s: %w", taskID, err)
	}
	if task == nil {
		return nil, apperror.Newf(apperror.KindTaskNotFound, "ingestion.retry", "task %s not found", taskID)
	}
	if task.Status != entity.TaskFailed {
		return nil, apperror.Newf(apperror.KindRetryExhausted, "ingestion.retry", "task %s is %s, only FAILED tasks can be retried", taskID, task.Status)
	}
	if task.RetryCount >= task.MaxRetryCount {
		return nil, apperror.Newf(apperror.KindRetryExhausted, "ingestion.retry", "task %s used %d of %d retries", taskID, task.RetryCount, task.MaxRetryCount)
	}

	ok, err := e.locker.TryLock(ctx, task.Key(), e.lockTTL())
	if err != nil {
		return nil, fmt.Errorf("acquire task lock: %w", err)
	}
	if !ok {
		return nil, apperror.Newf(apperror.KindTaskConflict, "ingestion.retry",
			"file %s is already being processed in knowledge base %s", task.FileID, task.KnowledgeBaseID)
	}

	task.RetryCount++
	task.Status = entity.TaskPending
	task.Message = fmt.Sprintf("retry %d of %d queued", task.RetryCount, task.MaxRetryCount)
	task.Segments = nil
	task.StartedAt = nil
	task.EndedAt = nil

	r := &run{task: task, attempt: task.RetryCount, lockHeld: true, done: make(chan struct{})}
	e.mu.Lock()
	e.runs[taskID] = r
	e.mu.Unlock()

	e.save(ctx, r)
	e.publisher.TaskChanged(ctx, task.Clone())
	e.logger.Info(logModule, "Task retry queued", map[string]interface{}{"task_id": taskID, "retry_count": task.RetryCount})

	e.dispatch(context.WithoutCancel(ctx), r, r.attempt)
	return task.Clone(), nil
}

// DeleteDocumentEmbeddings removes every segment of the file from the
// knowledge base. Deleting an absent file succeeds.
func (e *Engine) DeleteDocumentEmbeddings(ctx context.Context, fileID, kbID string) (bool, error) {
	req := Request{FileID: fileID, KnowledgeBaseID: kbID}
	ok, err := e.locker.TryLock(ctx, req.key(), e.lockTTL())
	if err != nil {
		return false, fmt.Errorf("acquire task lock: %w", err)
	}
	if !ok {
		return false, apperror.Newf(apperror.KindTaskConflict, "ingestion.delete",
			"file %s is being processed in knowledge base %s", fileID, kbID)
	}
	defer func() { _ = e.locker.Unlock(context.WithoutCancel(ctx), req.key()) }()

	removed, err := e.store.DeleteByFileID(ctx, kbID, fileID)
	if err != nil {
		return false, err
	}
	e.logger.Info(logModule, "Document embeddings deleted", map[string]interface{}{
		"file_id":           fileID,
		"knowledge_base_id": kbID,
		"removed":           removed,
	})
	return true, nil
}

// IsDocumentEmbedded reports whether the knowledge base holds any segment
// of the file.
func (e *Engine) IsDocumentEmbedded(ctx context.Context, fileID, kbID string) (bool, error) {
	exists, err := e.store.KnowledgeBaseExists(ctx, kbID)
	if err != nil || !exists {
		return false, err
	}
	n, err := e.store.CountByFileID(ctx, kbID, fileID)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (e *Engine) ListTasks(ctx context.Context, filter TaskFilter) ([]*entity.EmbeddingTask, error) {
	return e.tasks.List(ctx, filter)
}

type Stats struct {
	Total       int     `json:"total"`
	Pending     int     `json:"pending"`
	Processing  int     `json:"processing"`
	Completed   int     `json:"completed"`
	Failed      int     `json:"failed"`
	Cancelled   int     `json:"cancelled"`
	SuccessRate float64 `json:"successRate"`
}

// Stats counts tasks by status. SuccessRate is completed over total, in
// percent.
func (e *Engine) Stats(ctx context.Context) (*Stats, error) {
	tasks, err := e.tasks.List(ctx, TaskFilter{})
	if err != nil {
		return nil, err
	}
	s := &Stats{Total: len(tasks)}
	for _, t := range tasks {
		switch t.Status {
		case entity.TaskPending:
			s.Pending++
		case entity.TaskProcessing:
			s.Processing++
		case entity.TaskCompleted:
			s.Completed++
		case entity.TaskFailed:
			s.Failed++
		case entity.TaskCancelled:
			s.Cancelled++
		}
	}
	if s.Total > 0 {
		s.SuccessRate = float64(s.Completed) / float64(s.Total) * 100
	}
	return s, nil
}

// Progress is 0 while pending, the embedded share of segments while
// processing, and 100 once terminal.
func Progress(task *entity.EmbeddingTask) float64 {
	switch task.Status {
	case entity.TaskPending:
		return 0
	case entity.TaskProcessing:
		if len(task.Segments) == 0 {
			return 0
		}
		return float64(task.EmbeddedCount()) / float64(len(task.Segments)) * 100
	default:
		return 100
	}
}

func (e *Engine) lookup(taskID string) *run {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.runs[taskID]
}

func (e *Engine) forget(taskID string, r *run) {
	e.mu.Lock()
	if e.runs[taskID] == r {
		delete(e.runs, taskID)
	}
	e.mu.Unlock()
}

func (r *run) snapshot() *entity.EmbeddingTask {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.task.Clone()
}

// save writes the latest state of the run. saveMu keeps writes of one task
// in order.
func (e *Engine) save(ctx context.Context, r *run) {
	r.saveMu.Lock()
	defer r.saveMu.Unlock()
	snap := r.snapshot()
	if err := e.tasks.Save(context.WithoutCancel(ctx), snap); err != nil {
		e.logger.Error(logModule, "Failed to save task", map[string]interface{}{
			"task_id": snap.TaskID,
			"error":   err.Error(),
		})
	}
}

// settle ends an attempt: it persists the final state, drops the run from
// the live set, frees the key and wakes synchronous waiters. Only the first
// call per attempt has any effect.
func (e *Engine) settle(ctx context.Context, r *run, attempt int) {
	r.mu.Lock()
	if r.attempt != attempt || r.settled {
		r.mu.Unlock()
		return
	}
	r.settled = true
	unlock := r.lockHeld
	r.lockHeld = false
	taskID, key := r.task.TaskID, r.task.Key()
	r.mu.Unlock()

	ctx = context.WithoutCancel(ctx)
	e.save(ctx, r)
	e.forget(taskID, r)
	if unlock {
		if err := e.locker.Unlock(ctx, key); err != nil {
			e.logger.Warn(logModule, "Failed to release task lock", map[string]interface{}{"key": key, "error": err.Error()})
		}
	}
	close(r.done)
}

// abort fails an attempt that never reached a worker.
func (e *Engine) abort(ctx context.Context, r *run, attempt int, cause error) {
	if snap, ok := r.terminate(attempt, entity.TaskFailed, "could not schedule task", cause); ok {
		e.publisher.TaskChanged(ctx, snap)
	}
	e.settle(ctx, r, attempt)
}

// terminate moves a live PENDING or PROCESSING attempt to a terminal status.
func (r *run) terminate(attempt int, status entity.TaskStatus, message string, cause error) (*entity.EmbeddingTask, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.attempt != attempt || r.settled || !r.task.Status.IsActive() {
		return nil, false
	}
	now := time.Now()
	r.task.Status = status
	r.task.Message = message
	r.task.EndedAt = &now
	if cause != nil {
		r.task.Errors = append(r.task.Errors, cause.Error())
	}
	return r.task.Clone(), true
}
