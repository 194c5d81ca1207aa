package ingestion

import (
	"context"
	"sort"
	"sync"

	"ai-knowledge-be/internal/entity"
	"ai-knowledge-be/internal/repository/specification"
	"ai-knowledge-be/internal/repository/unitofwork"
)

// TaskFilter narrows ListTasks. Zero values match everything.
type TaskFilter struct {
	KnowledgeBaseID string
	FileID          string
	Statuses        []entity.TaskStatus
	Limit           int
}

func (f TaskFilter) matches(t *entity.EmbeddingTask) bool {
	if f.KnowledgeBaseID != "" && t.KnowledgeBaseID != f.KnowledgeBaseID {
		return false
	}
	if f.FileID != "" && t.FileID != f.FileID {
		return false
	}
	if len(f.Statuses) == 0 {
		return true
	}
	for _, s := range f.Statuses {
		if t.Status == s {
			return true
		}
	}
	return false
}

// TaskStore persists task records. Get returns nil, nil for an unknown id.
type TaskStore interface {
	Save(ctx context.Context, task *entity.EmbeddingTask) error
	Get(ctx context.Context, taskID string) (*entity.EmbeddingTask, error)
	List(ctx context.Context, filter TaskFilter) ([]*entity.EmbeddingTask, error)
}

type MemoryTaskStore struct {
	mu    sync.RWMutex
	tasks map[string]*entity.EmbeddingTask
}

func NewMemoryTaskStore() *MemoryTaskStore {
	return &MemoryTaskStore{tasks: make(map[string]*entity.EmbeddingTask)}
}

func (m *MemoryTaskStore) Save(ctx context.Context, task *entity.EmbeddingTask) error {
	m.mu.Lock()
	m.tasks[task.TaskID] = task.Clone()
	m.mu.Unlock()
	return nil
}

func (m *MemoryTaskStore) Get(ctx context.Context, taskID string) (*entity.EmbeddingTask, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.tasks[taskID].Clone(), nil
}

// List returns matching tasks, newest first.
func (m *MemoryTaskStore) List(ctx context.Context, filter TaskFilter) ([]*entity.EmbeddingTask, error) {
	m.mu.RLock()
	var out []*entity.EmbeddingTask
	for _, t := range m.tasks {
		if filter.matches(t) {
			out = append(out, t.Clone())
		}
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].TaskID < out[j].TaskID
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

// RepositoryTaskStore keeps tasks in the embedding_tasks table.
type RepositoryTaskStore struct {
	uowFactory unitofwork.RepositoryFactory
}

func NewRepositoryTaskStore(uowFactory unitofwork.RepositoryFactory) *RepositoryTaskStore {
	return &RepositoryTaskStore{uowFactory: uowFactory}
}

func (r *RepositoryTaskStore) Save(ctx context.Context, task *entity.EmbeddingTask) error {
	return r.uowFactory.NewUnitOfWork(ctx).EmbeddingTaskRepository().Save(ctx, task)
}

func (r *RepositoryTaskStore) Get(ctx context.Context, taskID string) (*entity.EmbeddingTask, error) {
	return r.uowFactory.NewUnitOfWork(ctx).EmbeddingTaskRepository().FindOne(ctx, specification.ByTaskID{TaskID: taskID})
}

func (r *RepositoryTaskStore) List(ctx context.Context, filter TaskFilter) ([]*entity.EmbeddingTask, error) {
	specs := []specification.Specification{
		specification.OrderBy{Field: "created_at", Desc: true},
	}
	if filter.KnowledgeBaseID != "" {
		specs = append(specs, specification.ByKnowledgeBaseID{KnowledgeBaseID: filter.KnowledgeBaseID})
	}
	if filter.FileID != "" {
		specs = append(specs, specification.ByFileID{FileID: filter.FileID})
	}
	if len(filter.Statuses) > 0 {
		statuses := make([]string, len(filter.Statuses))
		for i, st := range filter.Statuses {
			statuses[i] = string(st)
		}
		specs = append(specs, specification.ByTaskStatus{Statuses: statuses})
	}
	if filter.Limit > 0 {
		specs = append(specs, specification.Pagination{Limit: filter.Limit})
	}
	return r.uowFactory.NewUnitOfWork(ctx).EmbeddingTaskRepository().FindAll(ctx, specs...)
}
