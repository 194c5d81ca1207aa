package reader

import (
	"context"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"ai-knowledge-be/internal/entity"
	"ai-knowledge-be/internal/pkg/logger"
	"ai-knowledge-be/pkg/apperror"
)

const DefaultExtension = "txt"

var paragraphBreak = regexp.MustCompile(`\n[ \t]*\n`)

// Registry maps file extensions to readers. It is built once and read-only
// afterwards, so lookups need no locking.
type Registry struct {
	readers map[string]Reader
	logger  logger.ILogger
}

// NewRegistry registers readers in order. When two readers claim the same
// extension the later one wins and the conflict is logged.
func NewRegistry(log logger.ILogger, readers ...Reader) *Registry {
	r := &Registry{
		readers: make(map[string]Reader),
		logger:  log,
	}
	for _, rd := range readers {
		for _, ext := range rd.SupportedExtensions() {
			ext = NormalizeExtension(ext)
			if prev, ok := r.readers[ext]; ok {
				log.Warn("READER", "reader extension conflict", map[string]interface{}{
					"extension": ext,
					"previous":  prev.Type(),
					"current":   rd.Type(),
				})
			}
			r.readers[ext] = rd
		}
	}
	return r
}

// NormalizeExtension lowercases ext and strips a leading dot.
func NormalizeExtension(ext string) string {
	return strings.TrimPrefix(strings.ToLower(strings.TrimSpace(ext)), ".")
}

func (r *Registry) Reader(ext string) (Reader, bool) {
	rd, ok := r.readers[NormalizeExtension(ext)]
	return rd, ok
}

func (r *Registry) ReaderForFilename(name string) (Reader, bool) {
	return r.Reader(filepath.Ext(name))
}

func (r *Registry) Supports(ext string) bool {
	_, ok := r.Reader(ext)
	return ok
}

func (r *Registry) SupportedExtensions() []string {
	exts := make([]string, 0, len(r.readers))
	for ext := range r.readers {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// Read dispatches doc to the reader for its extension.
func (r *Registry) Read(ctx context.Context, doc *entity.SourceDocument, cfg Config) ([]*entity.NormalizedUnit, error) {
	ext := documentExtension(doc)
	rd, ok := r.Reader(ext)
	if !ok {
		return nil, apperror.Newf(apperror.KindUnsupportedFormat, "reader.read", "no reader for extension %q", ext)
	}
	return r.read(ctx, rd, doc, cfg)
}

// ReadWithFallback behaves like Read but uses the plain text reader for
// unknown extensions.
func (r *Registry) ReadWithFallback(ctx context.Context, doc *entity.SourceDocument, cfg Config) ([]*entity.NormalizedUnit, error) {
	rd, ok := r.Reader(documentExtension(doc))
	if !ok {
		rd, ok = r.Reader(DefaultExtension)
		if !ok {
			return nil, apperror.New(apperror.KindUnsupportedFormat, "reader.read", "no fallback reader registered")
		}
	}
	return r.read(ctx, rd, doc, cfg)
}

func (r *Registry) read(ctx context.Context, rd Reader, doc *entity.SourceDocument, cfg Config) ([]*entity.NormalizedUnit, error) {
	units, err := rd.Read(ctx, doc, cfg)
	if err != nil {
		r.logger.Error("READER", "Failed to read document", map[string]interface{}{
			"file":   doc.Filename,
			"reader": rd.Type(),
			"error":  err.Error(),
		})
		return nil, err
	}
	r.logger.Info("READER", "Document read", map[string]interface{}{
		"file":   doc.Filename,
		"reader": rd.Type(),
		"units":  len(units),
	})
	return units, nil
}

func documentExtension(doc *entity.SourceDocument) string {
	if doc.Extension != "" {
		return doc.Extension
	}
	return filepath.Ext(doc.Filename)
}
