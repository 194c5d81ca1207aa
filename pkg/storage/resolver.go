package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"ai-knowledge-be/pkg/apperror"
)

var ErrFileNotFound = errors.New("file not found")

// Resource is a resolved file, ready for the reader layer.
type Resource struct {
	Data        []byte
	ContentType string
	Filename    string
}

// Resolver maps a file id onto its bytes.
type Resolver interface {
	Resolve(ctx context.Context, fileID string) (*Resource, error)
}

// LocalResolver serves files from an upload directory. A file is stored as
// <fileID><ext>, so the extension survives for reader selection.
type LocalResolver struct {
	dir string
}

func NewLocalResolver(dir string) (*LocalResolver, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir %s: %w", dir, err)
	}
	return &LocalResolver{dir: dir}, nil
}

func validFileID(fileID string) bool {
	if fileID == "" || fileID == "." || fileID == ".." {
		return false
	}
	return !strings.ContainsAny(fileID, `/\*?[`)
}

func (l *LocalResolver) Resolve(ctx context.Context, fileID string) (*Resource, error) {
	if !validFileID(fileID) {
		return nil, apperror.Newf(apperror.KindValidation, "storage.resolve", "invalid file id %q", fileID)
	}

	path, err := l.locate(fileID)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", fileID, err)
	}

	name := filepath.Base(path)
	contentType := mime.TypeByExtension(filepath.Ext(name))
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}

	return &Resource{Data: data, ContentType: contentType, Filename: name}, nil
}

func (l *LocalResolver) locate(fileID string) (string, error) {
	exact := filepath.Join(l.dir, fileID)
	if info, err := os.Stat(exact); err == nil && !info.IsDir() {
		return exact, nil
	}

	matches, err := filepath.Glob(filepath.Join(l.dir, fileID+".*"))
	if err != nil {
		return "", err
	}
	if len(matches) == 0 {
		return "", fmt.Errorf("%w: %s", ErrFileNotFound, fileID)
	}
	sort.Strings(matches)
	return matches[0], nil
}

// Save writes an upload under fileID keeping the original extension and
// returns the stored name.
func (l *LocalResolver) Save(ctx context.Context, fileID, filename string, src io.Reader) (string, error) {
	if !validFileID(fileID) {
		return "", apperror.Newf(apperror.KindValidation, "storage.save", "invalid file id %q", fileID)
	}

	name := fileID + strings.ToLower(filepath.Ext(filename))
	dst, err := os.Create(filepath.Join(l.dir, name))
	if err != nil {
		return "", err
	}
	defer dst.Close()

	if _, err = io.Copy(dst, src); err != nil {
		return "", err
	}
	return name, nil
}
