package ingestion

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"ai-knowledge-be/internal/entity"
	"ai-knowledge-be/pkg/apperror"
	"ai-knowledge-be/pkg/chunker"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var errCancelled = errors.New("task cancelled")

// segmentFailure reports segments that could not be embedded or stored.
type segmentFailure struct {
	failed, total int
}

func (s *segmentFailure) Error() string {
	return fmt.Sprintf("embedded %d of %d segments; %d failed", s.total-s.failed, s.total, s.failed)
}

// execute runs one attempt on a pool worker under the task deadline.
func (e *Engine) execute(base context.Context, r *run, attempt int) {
	ctx, cancel := context.WithTimeout(base, e.cfg.TaskTimeout)
	defer cancel()

	task, ok := e.begin(r, attempt)
	if !ok {
		return
	}

	ctx, span := e.tracer.Start(ctx, "ingestion.process_document", trace.WithAttributes(
		attribute.String("task.id", task.TaskID),
		attribute.String("file.id", task.FileID),
		attribute.String("knowledge_base.id", task.KnowledgeBaseID),
		attribute.String("embedding.model", task.Model),
		attribute.Int("task.attempt", attempt),
	))
	defer span.End()

	e.save(ctx, r)
	e.publisher.TaskChanged(ctx, task)

	result := make(chan error, 1)
	go func() { result <- e.pipeline(ctx, r, attempt, task) }()

	var err error
	select {
	case err = <-result:
	case <-ctx.Done():
		err = ctx.Err()
	}
	if err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		err = apperror.Newf(apperror.KindTimeout, "ingestion.execute", "task exceeded timeout of %s", e.cfg.TaskTimeout)
	}

	final := e.finish(ctx, r, attempt, err)
	if final == nil {
		return
	}
	span.SetAttributes(attribute.String("task.status", string(final.Status)))
	if final.Status == entity.TaskFailed {
		span.RecordError(err)
		span.SetStatus(codes.Error, final.Message)
	}
}

// begin moves a PENDING attempt to PROCESSING. It fails when the attempt was
// cancelled or superseded while queued.
func (e *Engine) begin(r *run, attempt int) (*entity.EmbeddingTask, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.attempt != attempt || r.settled || r.task.Status != entity.TaskPending {
		return nil, false
	}
	now := time.Now()
	r.task.Status = entity.TaskProcessing
	r.task.Message = "processing"
	r.task.StartedAt = &now
	return r.task.Clone(), true
}

// finish records the attempt outcome and settles it. A task cancelled while
// running keeps its CANCELLED status.
func (e *Engine) finish(ctx context.Context, r *run, attempt int, err error) *entity.EmbeddingTask {
	var (
		snap *entity.EmbeddingTask
		ok   bool
	)
	switch {
	case err == nil:
		snap, ok = r.terminate(attempt, entity.TaskCompleted, completedMessage(r), nil)
	case errors.Is(err, errCancelled):
	default:
		snap, ok = r.terminate(attempt, entity.TaskFailed, err.Error(), err)
	}
	if ok {
		e.publisher.TaskChanged(ctx, snap)
		e.logger.Info(logModule, "Task finished", map[string]interface{}{
			"task_id":  snap.TaskID,
			"status":   string(snap.Status),
			"embedded": snap.EmbeddedCount(),
			"segments": len(snap.Segments),
			"message":  snap.Message,
		})
	}
	e.settle(ctx, r, attempt)
	if snap == nil {
		return r.snapshot()
	}
	return snap
}

func completedMessage(r *run) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.task.Segments) == 0 {
		return "no content to embed"
	}
	return fmt.Sprintf("embedded %d segments", len(r.task.Segments))
}

// pipeline resolves, reads and chunks the file, clears previous segments for
// the key, then embeds and stores segment by segment.
func (e *Engine) pipeline(ctx context.Context, r *run, attempt int, task *entity.EmbeddingTask) error {
	res, err := e.resolver.Resolve(ctx, task.FileID)
	if err != nil {
		return fmt.Errorf("resolve file %s: %w", task.FileID, err)
	}

	doc := &entity.SourceDocument{
		FileID:    task.FileID,
		Filename:  res.Filename,
		Extension: strings.TrimPrefix(filepath.Ext(res.Filename), "."),
		MIMEType:  res.ContentType,
		Data:      res.Data,
	}
	units, err := e.reader.Read(ctx, doc, e.cfg.Reader)
	if err != nil {
		return fmt.Errorf("read %s: %w", res.Filename, err)
	}

	ch, err := chunker.New(chunker.WithChunkSize(task.ChunkSize), chunker.WithOverlap(task.ChunkOverlap))
	if err != nil {
		return err
	}
	segments := ch.SplitAll(units, task.FileID, task.KnowledgeBaseID)

	if err := e.ensureKnowledgeBase(ctx, task); err != nil {
		return err
	}
	if err := e.checkpoint(ctx, r, attempt); err != nil {
		return err
	}
	var removed int64
	err = e.withStoreRetry(ctx, "delete_by_file", func() error {
		var derr error
		removed, derr = e.store.DeleteByFileID(ctx, task.KnowledgeBaseID, task.FileID)
		return derr
	})
	if err != nil {
		return err
	}

	e.logger.Info(logModule, "Document prepared", map[string]interface{}{
		"task_id":  task.TaskID,
		"units":    len(units),
		"segments": len(segments),
		"replaced": removed,
	})

	results := make([]entity.SegmentResult, len(segments))
	for i, s := range segments {
		results[i] = entity.SegmentResult{SegmentID: s.ID, Ordinal: s.Ordinal, Length: len([]rune(s.Text))}
	}
	if !r.update(attempt, func(t *entity.EmbeddingTask) { t.Segments = results }) {
		return errCancelled
	}

	failed := 0
	for i, s := range segments {
		if err := e.checkpoint(ctx, r, attempt); err != nil {
			return err
		}

		res := results[i]
		if err := e.embedSegment(ctx, task, s); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			failed++
			res.Error = err.Error()
			e.logger.Warn(logModule, "Segment failed", map[string]interface{}{
				"task_id":    task.TaskID,
				"segment_id": s.ID,
				"ordinal":    s.Ordinal,
				"error":      err.Error(),
			})
		} else {
			res.Embedded = true
			res.VectorDimension = len(s.Vector)
		}

		r.update(attempt, func(t *entity.EmbeddingTask) {
			if i < len(t.Segments) {
				t.Segments[i] = res
			}
		})
	}

	if failed > 0 {
		return &segmentFailure{failed: failed, total: len(segments)}
	}
	return nil
}

func (e *Engine) embedSegment(ctx context.Context, task *entity.EmbeddingTask, s *entity.Segment) error {
	vec, err := e.embedder.Embed(ctx, task.Model, s.Text)
	if err != nil {
		return err
	}
	s.Vector = vec
	if s.Metadata == nil {
		s.Metadata = make(map[string]interface{})
	}
	s.Metadata["embedding_model"] = task.Model
	s.Metadata["task_id"] = task.TaskID
	if task.KnowledgeBaseName != "" {
		s.Metadata["knowledge_base_name"] = task.KnowledgeBaseName
	}

	if ctx.Err() != nil {
		return ctx.Err()
	}
	return e.withStoreRetry(ctx, "add_segments", func() error {
		return e.store.AddSegments(ctx, task.KnowledgeBaseID, []*entity.Segment{s})
	})
}

// withStoreRetry repeats a vector store call at a fixed interval while it
// fails with a retryable error.
func (e *Engine) withStoreRetry(ctx context.Context, op string, call func() error) error {
	var err error
	for attempt := 1; attempt <= e.cfg.StoreRetryAttempts; attempt++ {
		if err = call(); err == nil {
			return nil
		}
		if !apperror.IsRetryable(err) || attempt == e.cfg.StoreRetryAttempts {
			return err
		}

		e.logger.Warn(logModule, "Vector store call failed, retrying", map[string]interface{}{
			"op":      op,
			"attempt": attempt,
			"error":   err.Error(),
		})

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(e.cfg.StoreRetryInterval):
		}
	}
	return err
}

func (e *Engine) ensureKnowledgeBase(ctx context.Context, task *entity.EmbeddingTask) error {
	exists, err := e.store.KnowledgeBaseExists(ctx, task.KnowledgeBaseID)
	if err != nil || exists {
		return err
	}
	name := task.KnowledgeBaseName
	if name == "" {
		name = task.KnowledgeBaseID
	}
	return e.store.CreateKnowledgeBase(ctx, &entity.KnowledgeBase{
		ID:        task.KnowledgeBaseID,
		Name:      name,
		OwnerID:   task.UserID,
		CreatedAt: time.Now(),
	})
}

// checkpoint is the cancellation point between pipeline stages.
func (e *Engine) checkpoint(ctx context.Context, r *run, attempt int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.attempt != attempt || r.settled || r.task.Status != entity.TaskProcessing {
		return errCancelled
	}
	return nil
}

// update applies fn while the attempt is still the live one. Updates after
// cancellation are kept so the record shows what was stored.
func (r *run) update(attempt int, fn func(t *entity.EmbeddingTask)) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.attempt != attempt || r.settled {
		return false
	}
	fn(r.task)
	return true
}
