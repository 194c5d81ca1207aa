package reader

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"ai-knowledge-be/internal/entity"
	"ai-knowledge-be/pkg/apperror"

	"golang.org/x/text/unicode/norm"
)

var (
	ErrUnsupportedFormat = apperror.ErrUnsupportedFormat
	ErrParse             = apperror.ErrParse
)

// Reader turns one kind of source document into normalized text units.
type Reader interface {
	Type() string
	SupportedExtensions() []string
	Read(ctx context.Context, doc *entity.SourceDocument, cfg Config) ([]*entity.NormalizedUnit, error)
}

type Config struct {
	MaxContentLength      int // in runes
	Language              string
	RemoveExtraWhitespace bool
	RemoveEmptyLines      bool
	NormalizeUnicode      bool
	ReadByParagraph       bool
	FlattenJSON           bool
	JSONDepthLimit        int
	PDFPageLimit          int
}

func DefaultConfig() Config {
	return Config{
		MaxContentLength:      1024 * 1024,
		Language:              "zh",
		RemoveExtraWhitespace: true,
		RemoveEmptyLines:      true,
		NormalizeUnicode:      true,
		ReadByParagraph:       false,
		FlattenJSON:           true,
		JSONDepthLimit:        10,
		PDFPageLimit:          1000,
	}
}

// Clean applies the configured normalisation to raw text.
func Clean(text string, cfg Config) string {
	if cfg.NormalizeUnicode {
		text = norm.NFC.String(text)
	}
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	lines := strings.Split(text, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if cfg.RemoveExtraWhitespace {
			line = strings.Join(strings.Fields(line), " ")
		}
		if cfg.RemoveEmptyLines && strings.TrimSpace(line) == "" {
			continue
		}
		kept = append(kept, line)
	}
	return strings.TrimSpace(strings.Join(kept, "\n"))
}

// newUnit cleans and truncates text and stamps the common metadata.
func newUnit(doc *entity.SourceDocument, id, readerType, text string, cfg Config, extra map[string]interface{}) *entity.NormalizedUnit {
	text = Clean(text, cfg)

	meta := map[string]interface{}{
		"reader_type":  readerType,
		"language":     cfg.Language,
		"source":       doc.Filename,
		"processed_at": time.Now().UTC().Format(time.RFC3339),
		"truncated":    false,
	}
	for k, v := range extra {
		meta[k] = v
	}

	if cfg.MaxContentLength > 0 && utf8.RuneCountInString(text) > cfg.MaxContentLength {
		runes := []rune(text)
		meta["truncated"] = true
		meta["original_length"] = len(runes)
		text = string(runes[:cfg.MaxContentLength])
	}

	return &entity.NormalizedUnit{
		ID:       id,
		Text:     text,
		Source:   doc.Filename,
		Metadata: meta,
	}
}

// splitParagraphs splits on blank lines and drops empty paragraphs.
func splitParagraphs(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	raw := paragraphBreak.Split(text, -1)
	out := make([]string, 0, len(raw))
	for _, p := range raw {
		if strings.TrimSpace(p) != "" {
			out = append(out, p)
		}
	}
	return out
}
