package reader

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"ai-knowledge-be/internal/entity"
	"ai-knowledge-be/pkg/apperror"
)

type TextReader struct{}

func NewTextReader() *TextReader { return &TextReader{} }

func (t *TextReader) Type() string { return "text" }

func (t *TextReader) SupportedExtensions() []string {
	return []string{"txt", "text", "md", "markdown"}
}

func (t *TextReader) Read(ctx context.Context, doc *entity.SourceDocument, cfg Config) ([]*entity.NormalizedUnit, error) {
	if !utf8.Valid(doc.Data) {
		return nil, apperror.New(apperror.KindParse, "reader.text", "content is not valid UTF-8")
	}
	content := strings.TrimPrefix(string(doc.Data), "\ufeff")

	format := "plain_text"
	switch NormalizeExtension(documentExtension(doc)) {
	case "md", "markdown":
		format = "markdown"
	}

	if !cfg.ReadByParagraph {
		return []*entity.NormalizedUnit{
			newUnit(doc, "doc-0", t.Type(), content, cfg, map[string]interface{}{"format": format}),
		}, nil
	}

	paragraphs := splitParagraphs(content)
	units := make([]*entity.NormalizedUnit, 0, len(paragraphs))
	for i, p := range paragraphs {
		units = append(units, newUnit(doc, fmt.Sprintf("para-%d", i), t.Type(), p, cfg, map[string]interface{}{
			"format":    format,
			"paragraph": i,
		}))
	}
	return units, nil
}
