package ocr

import (
	"context"
	"time"

	"ai-knowledge-be/pkg/apperror"
)

var (
	ErrEngineUnavailable = apperror.ErrOcrEngineUnavailable
	ErrParse             = apperror.ErrOcrParse
	ErrNoEngine          = apperror.ErrNoOcrEngine
)

type BoundingBox struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

type TextBlock struct {
	Text        string      `json:"text"`
	Confidence  float64     `json:"confidence"`
	BoundingBox BoundingBox `json:"boundingBox"`
	Orientation string      `json:"orientation"`
}

type TableCell struct {
	Text        string      `json:"text"`
	Confidence  float64     `json:"confidence"`
	RowSpan     int         `json:"rowSpan"`
	ColSpan     int         `json:"colSpan"`
	IsHeader    bool        `json:"isHeader"`
	BoundingBox BoundingBox `json:"boundingBox"`
}

type TableRow struct {
	Cells []TableCell `json:"cells"`
}

type Table struct {
	Type        string      `json:"type"`
	Confidence  float64     `json:"confidence"`
	BoundingBox BoundingBox `json:"boundingBox"`
	Rows        []TableRow  `json:"rows"`
}

type Result struct {
	Text       string                 `json:"text"`
	Language   string                 `json:"language"`
	Confidence float64                `json:"confidence"`
	TextBlocks []TextBlock            `json:"textBlocks"`
	Tables     []Table                `json:"tables"`
	Metadata   map[string]interface{} `json:"-"`
}

// Config is the per-call recognition configuration.
type Config struct {
	Engine        string
	Language      string
	UseAngleCls   bool
	DetThreshold  float64
	RecThreshold  float64
	ClsThreshold  float64
	DetModel      string
	RecModel      string
	ClsModel      string
	RetryCount    int // total attempts, not extra retries
	RetryInterval time.Duration
	Timeout       time.Duration
}

func DefaultConfig() Config {
	return Config{
		Engine:        EnginePaddle,
		Language:      "ch",
		UseAngleCls:   true,
		DetThreshold:  0.3,
		RecThreshold:  0.5,
		ClsThreshold:  0.9,
		DetModel:      "ch_PP-OCRv4_det_infer",
		RecModel:      "ch_PP-OCRv4_rec_infer",
		ClsModel:      "ch_ppocr_mobile_v2.0_cls_infer",
		RetryCount:    3,
		RetryInterval: time.Second,
		Timeout:       30 * time.Second,
	}
}

// Engine recognises text in a single image.
type Engine interface {
	Name() string
	Recognize(ctx context.Context, image []byte, cfg Config) (*Result, error)
}

// Recognizer is what document readers depend on.
type Recognizer interface {
	Recognize(ctx context.Context, image []byte, cfg Config) (*Result, error)
}
