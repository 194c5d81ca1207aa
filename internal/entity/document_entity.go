package entity

import "time"

// SourceDocument is an uploaded file as handed to the reader layer.
// Raw bytes are never persisted.
type SourceDocument struct {
	FileID    string
	Filename  string
	Extension string
	MIMEType  string
	Data      []byte
}

// NormalizedUnit is one piece of cleaned text produced by a reader
// (a page, paragraph, record or the whole document).
type NormalizedUnit struct {
	ID       string
	Text     string
	Source   string
	Metadata map[string]interface{}
}

// Segment is a chunk of a unit, the unit of embedding and retrieval.
type Segment struct {
	ID              string
	Text            string
	Ordinal         int
	SourceUnitID    string
	FileID          string
	KnowledgeBaseID string
	Vector          []float32
	Metadata        map[string]interface{}
	CreatedAt       time.Time
}

type KnowledgeBase struct {
	ID        string
	Name      string
	OwnerID   string
	Public    bool
	CreatedAt time.Time
}

// KnowledgeBaseStats summarises what a knowledge base currently stores.
type KnowledgeBaseStats struct {
	SegmentCount int64
	FileCount    int64
	Dimension    int
}
