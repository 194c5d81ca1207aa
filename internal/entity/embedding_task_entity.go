package entity

import "time"

type TaskStatus string

const (
	TaskPending    TaskStatus = "PENDING"
	TaskProcessing TaskStatus = "PROCESSING"
	TaskCompleted  TaskStatus = "COMPLETED"
	TaskFailed     TaskStatus = "FAILED"
	TaskCancelled  TaskStatus = "CANCELLED"
)

// IsActive reports whether a task still holds its (file, knowledge base) key.
func (s TaskStatus) IsActive() bool {
	return s == TaskPending || s == TaskProcessing
}

type SegmentResult struct {
	SegmentID       string `json:"segmentId"`
	Ordinal         int    `json:"ordinal"`
	Length          int    `json:"length"`
	VectorDimension int    `json:"vectorDimension"`
	Embedded        bool   `json:"embedded"`
	Error           string `json:"error,omitempty"`
}

type EmbeddingTask struct {
	TaskID            string
	FileID            string
	KnowledgeBaseID   string
	KnowledgeBaseName string
	UserID            string
	Model             string
	Status            TaskStatus
	RetryCount        int
	MaxRetryCount     int
	ChunkSize         int
	ChunkOverlap      int
	Message           string
	Errors            []string
	Segments          []SegmentResult
	CreatedAt         time.Time
	StartedAt         *time.Time
	EndedAt           *time.Time
}

// Key identifies the (file, knowledge base) pair a task serialises on.
func (t *EmbeddingTask) Key() string {
	return t.KnowledgeBaseID + ":" + t.FileID
}

// Clone returns a deep copy so snapshots never alias engine state.
func (t *EmbeddingTask) Clone() *EmbeddingTask {
	if t == nil {
		return nil
	}
	c := *t
	c.Errors = append([]string(nil), t.Errors...)
	c.Segments = append([]SegmentResult(nil), t.Segments...)
	if t.StartedAt != nil {
		s := *t.StartedAt
		c.StartedAt = &s
	}
	if t.EndedAt != nil {
		e := *t.EndedAt
		c.EndedAt = &e
	}
	return &c
}

// EmbeddedCount is the number of segments that were stored with a vector.
func (t *EmbeddingTask) EmbeddedCount() int {
	n := 0
	for _, s := range t.Segments {
		if s.Embedded {
			n++
		}
	}
	return n
}

type OperationLog struct {
	ID            string
	UserID        string
	OperationType string
	ResourceID    string
	BeforeData    interface{}
	AfterData     interface{}
	CreatedAt     time.Time
}
