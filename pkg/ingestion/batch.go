package ingestion

import (
	"context"
	"sync"

	"ai-knowledge-be/internal/entity"
	"ai-knowledge-be/pkg/apperror"
)

// BatchItemResult is the outcome of one request in a batch. Error is set
// when the request was rejected before a task existed.
type BatchItemResult struct {
	FileID          string                `json:"fileId"`
	KnowledgeBaseID string                `json:"knowledgeBaseId"`
	TaskID          string                `json:"taskId,omitempty"`
	Task            *entity.EmbeddingTask `json:"-"`
	Error           string                `json:"error,omitempty"`
}

func (e *Engine) checkBatch(reqs []Request) error {
	if len(reqs) == 0 {
		return apperror.New(apperror.KindValidation, "ingestion.batch", "batch is empty")
	}
	if e.pool.IsClosed() {
		return ErrEngineClosed
	}
	return nil
}

// ProcessBatch runs every request and waits for all of them. One item's
// failure never affects the others.
func (e *Engine) ProcessBatch(ctx context.Context, reqs []Request) ([]BatchItemResult, error) {
	if err := e.checkBatch(reqs); err != nil {
		return nil, err
	}

	results := make([]BatchItemResult, len(reqs))
	var wg sync.WaitGroup
	for i, req := range reqs {
		wg.Add(1)
		go func(i int, req Request) {
			defer wg.Done()
			item := BatchItemResult{FileID: req.FileID, KnowledgeBaseID: req.KnowledgeBaseID}
			task, err := e.ProcessDocument(ctx, req)
			if task != nil {
				item.TaskID = task.TaskID
				item.Task = task
			}
			if err != nil {
				item.Error = err.Error()
			}
			results[i] = item
		}(i, req)
	}
	wg.Wait()

	e.logger.Info(logModule, "Batch processed", map[string]interface{}{"items": len(reqs)})
	return results, nil
}

// ProcessBatchAsync queues every request and returns their task ids.
func (e *Engine) ProcessBatchAsync(ctx context.Context, reqs []Request) ([]BatchItemResult, error) {
	if err := e.checkBatch(reqs); err != nil {
		return nil, err
	}

	results := make([]BatchItemResult, len(reqs))
	for i, req := range reqs {
		item := BatchItemResult{FileID: req.FileID, KnowledgeBaseID: req.KnowledgeBaseID}
		taskID, err := e.ProcessDocumentAsync(ctx, req)
		if err != nil {
			item.Error = err.Error()
		}
		item.TaskID = taskID
		results[i] = item
	}
	return results, nil
}
