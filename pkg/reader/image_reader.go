package reader

import (
	"context"

	"ai-knowledge-be/internal/entity"
	"ai-knowledge-be/pkg/ocr"
)

// ImageReader runs images through the OCR subsystem.
type ImageReader struct {
	recognizer ocr.Recognizer
	ocrConfig  ocr.Config
}

func NewImageReader(recognizer ocr.Recognizer, ocrConfig ocr.Config) *ImageReader {
	return &ImageReader{recognizer: recognizer, ocrConfig: ocrConfig}
}

func (i *ImageReader) Type() string { return "image" }

func (i *ImageReader) SupportedExtensions() []string {
	return []string{"png", "jpg", "jpeg", "bmp", "tiff", "tif", "gif", "webp"}
}

func (i *ImageReader) Read(ctx context.Context, doc *entity.SourceDocument, cfg Config) ([]*entity.NormalizedUnit, error) {
	res, err := i.recognizer.Recognize(ctx, doc.Data, i.ocrConfig)
	if err != nil {
		return nil, err
	}
	return []*entity.NormalizedUnit{FromOcrResult(doc, res, cfg)}, nil
}

// FromOcrResult converts a recognition result into a single unit.
func FromOcrResult(doc *entity.SourceDocument, res *ocr.Result, cfg Config) *entity.NormalizedUnit {
	meta := map[string]interface{}{
		"document_type": "ocr",
		"confidence":    res.Confidence,
		"text_blocks":   len(res.TextBlocks),
		"tables":        len(res.Tables),
	}
	if engine, ok := res.Metadata["engine"]; ok {
		meta["ocr_engine"] = engine
	}

	unitCfg := cfg
	if res.Language != "" {
		unitCfg.Language = res.Language
	}
	return newUnit(doc, "image-0", "image", res.Text, unitCfg, meta)
}
