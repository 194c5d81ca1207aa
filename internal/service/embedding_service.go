package service

import (
	"context"
	"fmt"
	"strings"

	"ai-knowledge-be/internal/dto"
	"ai-knowledge-be/internal/entity"
	"ai-knowledge-be/internal/pkg/logger"
	"ai-knowledge-be/pkg/apperror"
	"ai-knowledge-be/pkg/ingestion"
	"ai-knowledge-be/pkg/rag/access"
	"ai-knowledge-be/pkg/rag/audit"
)

// TaskEngine is the part of the ingestion engine the service drives.
type TaskEngine interface {
	ProcessDocument(ctx context.Context, req ingestion.Request) (*entity.EmbeddingTask, error)
	ProcessDocumentAsync(ctx context.Context, req ingestion.Request) (string, error)
	ProcessBatch(ctx context.Context, reqs []ingestion.Request) ([]ingestion.BatchItemResult, error)
	ProcessBatchAsync(ctx context.Context, reqs []ingestion.Request) ([]ingestion.BatchItemResult, error)
	Status(ctx context.Context, taskID string) (*entity.EmbeddingTask, error)
	Cancel(ctx context.Context, taskID string) (bool, error)
	Retry(ctx context.Context, taskID string) (*entity.EmbeddingTask, error)
	DeleteDocumentEmbeddings(ctx context.Context, fileID, kbID string) (bool, error)
	IsDocumentEmbedded(ctx context.Context, fileID, kbID string) (bool, error)
	Stats(ctx context.Context) (*ingestion.Stats, error)
}

type FormatCatalog interface {
	SupportedExtensions() []string
}

type ModelCatalog interface {
	SupportedModels() []string
	DefaultModel() string
}

type IEmbeddingService interface {
	Process(ctx context.Context, userID string, req *dto.ProcessEmbeddingRequest) (*dto.EmbeddingTaskResponse, error)
	Batch(ctx context.Context, userID string, req *dto.BatchEmbeddingRequest) (*dto.BatchEmbeddingResponse, error)
	Status(ctx context.Context, userID, taskID string) (*dto.EmbeddingTaskResponse, error)
	Cancel(ctx context.Context, userID, taskID string) (*dto.CancelEmbeddingResponse, error)
	Retry(ctx context.Context, userID, taskID string) (*dto.EmbeddingTaskResponse, error)
	DeleteDocument(ctx context.Context, userID, fileID, kbID string) (*dto.DeleteEmbeddingResponse, error)
	Check(ctx context.Context, userID, fileID, kbID string) (*dto.CheckEmbeddingResponse, error)
	SupportedTypes() *dto.SupportedTypesResponse
	SupportedModels() *dto.SupportedModelsResponse
	Stats(ctx context.Context) (*dto.EmbeddingStatsResponse, error)
}

type embeddingService struct {
	engine   TaskEngine
	formats  FormatCatalog
	models   ModelCatalog
	checker  access.Checker
	recorder audit.Recorder
	logger   logger.ILogger
}

func NewEmbeddingService(
	engine TaskEngine,
	formats FormatCatalog,
	models ModelCatalog,
	checker access.Checker,
	recorder audit.Recorder,
	log logger.ILogger,
) IEmbeddingService {
	if checker == nil {
		checker = access.AllowAll()
	}
	if recorder == nil {
		recorder = audit.NopRecorder()
	}
	return &embeddingService{
		engine:   engine,
		formats:  formats,
		models:   models,
		checker:  checker,
		recorder: recorder,
		logger:   log,
	}
}

func (s *embeddingService) Process(ctx context.Context, userID string, req *dto.ProcessEmbeddingRequest) (*dto.EmbeddingTaskResponse, error) {
	if err := s.authorize(ctx, req.KnowledgeBaseID, userID, access.ActionWrite); err != nil {
		return nil, err
	}
	ingestReq := toIngestionRequest(userID, req)

	var (
		task *entity.EmbeddingTask
		err  error
	)
	if isAsync(req.Mode) {
		var taskID string
		taskID, err = s.engine.ProcessDocumentAsync(ctx, ingestReq)
		if err == nil {
			task, err = s.engine.Status(ctx, taskID)
		}
	} else {
		task, err = s.engine.ProcessDocument(ctx, ingestReq)
	}
	if err != nil {
		return nil, err
	}

	s.recorder.Record(ctx, userID, audit.OpEmbeddingProcess, task.TaskID, nil, map[string]interface{}{
		"fileId":          task.FileID,
		"knowledgeBaseId": task.KnowledgeBaseID,
		"model":           task.Model,
		"status":          string(task.Status),
		"mode":            modeLabel(req.Mode),
	})
	return toTaskResponse(task), nil
}

// Batch submits every document the caller may write to. Items without access
// or rejected by the engine are reported individually.
func (s *embeddingService) Batch(ctx context.Context, userID string, req *dto.BatchEmbeddingRequest) (*dto.BatchEmbeddingResponse, error) {
	if len(req.Documents) == 0 {
		return nil, apperror.New(apperror.KindValidation, "embedding.batch", "documents are required")
	}

	items := make([]dto.BatchEmbeddingItem, len(req.Documents))
	var (
		allowed []ingestion.Request
		slots   []int
	)
	for i := range req.Documents {
		doc := &req.Documents[i]
		items[i] = dto.BatchEmbeddingItem{FileID: doc.FileID, KnowledgeBaseID: doc.KnowledgeBaseID}
		if err := s.authorize(ctx, doc.KnowledgeBaseID, userID, access.ActionWrite); err != nil {
			items[i].Error = err.Error()
			continue
		}
		allowed = append(allowed, toIngestionRequest(userID, doc))
		slots = append(slots, i)
	}

	if len(allowed) > 0 {
		var (
			results []ingestion.BatchItemResult
			err     error
		)
		if isAsync(req.Mode) {
			results, err = s.engine.ProcessBatchAsync(ctx, allowed)
		} else {
			results, err = s.engine.ProcessBatch(ctx, allowed)
		}
		if err != nil {
			return nil, err
		}
		for j, r := range results {
			item := &items[slots[j]]
			item.TaskID = r.TaskID
			item.Error = r.Error
			if r.Task != nil {
				item.Task = toTaskResponse(r.Task)
			}
		}
	}

	out := &dto.BatchEmbeddingResponse{Total: len(items), Items: items}
	for _, item := range items {
		if item.TaskID != "" {
			out.Submitted++
		} else {
			out.Rejected++
		}
	}

	s.recorder.Record(ctx, userID, audit.OpEmbeddingBatch, "", nil, map[string]interface{}{
		"total":     out.Total,
		"submitted": out.Submitted,
		"rejected":  out.Rejected,
		"mode":      modeLabel(req.Mode),
	})
	s.logger.Info("INGESTION", "Batch embedding submitted", map[string]interface{}{
		"total":     out.Total,
		"submitted": out.Submitted,
		"rejected":  out.Rejected,
	})
	return out, nil
}

func (s *embeddingService) Status(ctx context.Context, userID, taskID string) (*dto.EmbeddingTaskResponse, error) {
	task, err := s.engine.Status(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, task.KnowledgeBaseID, userID, access.ActionRead); err != nil {
		return nil, err
	}
	return toTaskResponse(task), nil
}

func (s *embeddingService) Cancel(ctx context.Context, userID, taskID string) (*dto.CancelEmbeddingResponse, error) {
	before, err := s.engine.Status(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, before.KnowledgeBaseID, userID, access.ActionWrite); err != nil {
		return nil, err
	}

	cancelled, err := s.engine.Cancel(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if cancelled {
		s.recorder.Record(ctx, userID, audit.OpEmbeddingCancel, taskID,
			map[string]interface{}{"status": string(before.Status)},
			map[string]interface{}{"status": string(entity.TaskCancelled)})
	}
	return &dto.CancelEmbeddingResponse{TaskID: taskID, Cancelled: cancelled}, nil
}

func (s *embeddingService) Retry(ctx context.Context, userID, taskID string) (*dto.EmbeddingTaskResponse, error) {
	before, err := s.engine.Status(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, before.KnowledgeBaseID, userID, access.ActionWrite); err != nil {
		return nil, err
	}

	task, err := s.engine.Retry(ctx, taskID)
	if err != nil {
		return nil, err
	}
	s.recorder.Record(ctx, userID, audit.OpEmbeddingRetry, taskID,
		map[string]interface{}{"status": string(before.Status), "retryCount": before.RetryCount},
		map[string]interface{}{"status": string(task.Status), "retryCount": task.RetryCount})
	return toTaskResponse(task), nil
}

func (s *embeddingService) DeleteDocument(ctx context.Context, userID, fileID, kbID string) (*dto.DeleteEmbeddingResponse, error) {
	if strings.TrimSpace(kbID) == "" {
		return nil, apperror.New(apperror.KindValidation, "embedding.delete", "knowledgeBaseId is required")
	}
	if err := s.authorize(ctx, kbID, userID, access.ActionDelete); err != nil {
		return nil, err
	}

	deleted, err := s.engine.DeleteDocumentEmbeddings(ctx, fileID, kbID)
	if err != nil {
		return nil, err
	}
	s.recorder.Record(ctx, userID, audit.OpEmbeddingDelete, fileID,
		map[string]interface{}{"knowledgeBaseId": kbID},
		map[string]interface{}{"deleted": deleted})
	return &dto.DeleteEmbeddingResponse{FileID: fileID, KnowledgeBaseID: kbID, Deleted: deleted}, nil
}

func (s *embeddingService) Check(ctx context.Context, userID, fileID, kbID string) (*dto.CheckEmbeddingResponse, error) {
	if strings.TrimSpace(kbID) == "" {
		return nil, apperror.New(apperror.KindValidation, "embedding.check", "knowledgeBaseId is required")
	}
	if err := s.authorize(ctx, kbID, userID, access.ActionRead); err != nil {
		return nil, err
	}

	embedded, err := s.engine.IsDocumentEmbedded(ctx, fileID, kbID)
	if err != nil {
		return nil, err
	}
	return &dto.CheckEmbeddingResponse{FileID: fileID, KnowledgeBaseID: kbID, Embedded: embedded}, nil
}

func (s *embeddingService) SupportedTypes() *dto.SupportedTypesResponse {
	return &dto.SupportedTypesResponse{Extensions: s.formats.SupportedExtensions()}
}

func (s *embeddingService) SupportedModels() *dto.SupportedModelsResponse {
	return &dto.SupportedModelsResponse{
		DefaultModel: s.models.DefaultModel(),
		Models:       s.models.SupportedModels(),
	}
}

func (s *embeddingService) Stats(ctx context.Context) (*dto.EmbeddingStatsResponse, error) {
	st, err := s.engine.Stats(ctx)
	if err != nil {
		return nil, err
	}
	return &dto.EmbeddingStatsResponse{
		Total:       st.Total,
		Pending:     st.Pending,
		Processing:  st.Processing,
		Completed:   st.Completed,
		Failed:      st.Failed,
		Cancelled:   st.Cancelled,
		SuccessRate: st.SuccessRate,
	}, nil
}

func (s *embeddingService) authorize(ctx context.Context, kbID, userID, action string) error {
	ok, err := s.checker.CheckAccess(ctx, kbID, userID, action)
	if err != nil {
		return apperror.Wrap(apperror.KindAccessDenied, "embedding.access", fmt.Errorf("check access to %s: %w", kbID, err))
	}
	if !ok {
		return apperror.Newf(apperror.KindAccessDenied, "embedding.access", "no %s access to knowledge base %s", action, kbID)
	}
	return nil
}

func toIngestionRequest(userID string, req *dto.ProcessEmbeddingRequest) ingestion.Request {
	return ingestion.Request{
		FileID:            req.FileID,
		KnowledgeBaseID:   req.KnowledgeBaseID,
		KnowledgeBaseName: req.KnowledgeBaseName,
		UserID:            userID,
		Model:             req.Model,
		ChunkSize:         req.ChunkSize,
		ChunkOverlap:      req.ChunkOverlap,
	}
}

func isAsync(mode string) bool {
	return strings.EqualFold(mode, dto.ModeAsync)
}

func modeLabel(mode string) string {
	if isAsync(mode) {
		return dto.ModeAsync
	}
	return dto.ModeSync
}

func toTaskResponse(task *entity.EmbeddingTask) *dto.EmbeddingTaskResponse {
	segments := make([]dto.SegmentResultResponse, 0, len(task.Segments))
	for _, sr := range task.Segments {
		segments = append(segments, dto.SegmentResultResponse{
			SegmentID:       sr.SegmentID,
			Ordinal:         sr.Ordinal,
			Length:          sr.Length,
			VectorDimension: sr.VectorDimension,
			Embedded:        sr.Embedded,
			Error:           sr.Error,
		})
	}
	return &dto.EmbeddingTaskResponse{
		TaskID:          task.TaskID,
		FileID:          task.FileID,
		KnowledgeBaseID: task.KnowledgeBaseID,
		Model:           task.Model,
		Status:          string(task.Status),
		Progress:        ingestion.Progress(task),
		Message:         task.Message,
		Errors:          task.Errors,
		RetryCount:      task.RetryCount,
		MaxRetryCount:   task.MaxRetryCount,
		SegmentCount:    len(task.Segments),
		EmbeddedCount:   task.EmbeddedCount(),
		Segments:        segments,
		CreatedAt:       task.CreatedAt,
		StartedAt:       task.StartedAt,
		EndedAt:         task.EndedAt,
	}
}
