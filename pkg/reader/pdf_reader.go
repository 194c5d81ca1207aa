package reader

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"ai-knowledge-be/internal/entity"
	"ai-knowledge-be/internal/pkg/logger"
	"ai-knowledge-be/pkg/apperror"

	"github.com/ledongthuc/pdf"
)

// PDFReader emits one unit per page, or per paragraph when ReadByParagraph
// is set. Pages without a text layer produce an empty unit flagged
// ocr_required, which the chunker skips.
type PDFReader struct {
	logger logger.ILogger
}

func NewPDFReader(log logger.ILogger) *PDFReader {
	return &PDFReader{logger: log}
}

func (p *PDFReader) Type() string { return "pdf" }

func (p *PDFReader) SupportedExtensions() []string { return []string{"pdf"} }

func (p *PDFReader) Read(ctx context.Context, doc *entity.SourceDocument, cfg Config) (units []*entity.NormalizedUnit, err error) {
	// the pdf library panics on some malformed inputs
	defer func() {
		if r := recover(); r != nil {
			units = nil
			err = apperror.Wrap(apperror.KindParse, "reader.pdf", fmt.Errorf("corrupt pdf: %v", r))
		}
	}()

	rd, err := pdf.NewReader(bytes.NewReader(doc.Data), int64(len(doc.Data)))
	if err != nil {
		return nil, apperror.Wrap(apperror.KindParse, "reader.pdf", err)
	}

	numPages := rd.NumPage()
	limit := numPages
	if cfg.PDFPageLimit > 0 && limit > cfg.PDFPageLimit {
		p.logger.Warn("READER", "PDF page limit reached", map[string]interface{}{
			"file":  doc.Filename,
			"pages": numPages,
			"limit": cfg.PDFPageLimit,
		})
		limit = cfg.PDFPageLimit
	}

	for i := 1; i <= limit; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		page := rd.Page(i)
		if page.V.IsNull() {
			continue
		}

		text, err := page.GetPlainText(nil)
		if err != nil {
			p.logger.Warn("READER", "Failed to extract PDF page", map[string]interface{}{
				"file":  doc.Filename,
				"page":  i,
				"error": err.Error(),
			})
			continue
		}

		units = append(units, p.pageUnits(doc, i, numPages, text, cfg)...)
	}
	return units, nil
}

func (p *PDFReader) pageUnits(doc *entity.SourceDocument, page, total int, text string, cfg Config) []*entity.NormalizedUnit {
	base := map[string]interface{}{
		"page":        page,
		"total_pages": total,
		"is_table":    looksLikeTable(text),
	}

	if strings.TrimSpace(text) == "" {
		meta := copyMeta(base)
		meta["ocr_required"] = true
		return []*entity.NormalizedUnit{newUnit(doc, fmt.Sprintf("page-%d", page), p.Type(), "", cfg, meta)}
	}

	if !cfg.ReadByParagraph {
		return []*entity.NormalizedUnit{newUnit(doc, fmt.Sprintf("page-%d", page), p.Type(), text, cfg, base)}
	}

	paragraphs := splitParagraphs(text)
	units := make([]*entity.NormalizedUnit, 0, len(paragraphs))
	for j, para := range paragraphs {
		meta := copyMeta(base)
		meta["paragraph"] = j
		meta["is_table"] = looksLikeTable(para)
		units = append(units, newUnit(doc, fmt.Sprintf("page-%d-para-%d", page, j), p.Type(), para, cfg, meta))
	}
	return units
}

// looksLikeTable is a cheap heuristic: pipe separators or tab-separated columns.
func looksLikeTable(text string) bool {
	if strings.Contains(text, "|") {
		return true
	}
	for _, line := range strings.Split(text, "\n") {
		if strings.Count(line, "\t") >= 2 {
			return true
		}
	}
	return false
}

func copyMeta(m map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(m)+2)
	for k, v := range m {
		out[k] = v
	}
	return out
}
