package reader

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"ai-knowledge-be/internal/entity"
	"ai-knowledge-be/pkg/apperror"
)

type JSONReader struct{}

func NewJSONReader() *JSONReader { return &JSONReader{} }

func (j *JSONReader) Type() string { return "json" }

func (j *JSONReader) SupportedExtensions() []string {
	return []string{"json", "jsonl", "ndjson"}
}

func (j *JSONReader) Read(ctx context.Context, doc *entity.SourceDocument, cfg Config) ([]*entity.NormalizedUnit, error) {
	switch NormalizeExtension(documentExtension(doc)) {
	case "jsonl", "ndjson":
		return j.readLines(doc, cfg)
	}

	value, err := decodeJSON(doc.Data)
	if err != nil {
		return nil, apperror.Wrap(apperror.KindParse, "reader.json", err)
	}
	text, err := renderJSON(value, cfg)
	if err != nil {
		return nil, apperror.Wrap(apperror.KindParse, "reader.json", err)
	}
	return []*entity.NormalizedUnit{
		newUnit(doc, "doc-0", j.Type(), text, cfg, map[string]interface{}{"format": "json"}),
	}, nil
}

func (j *JSONReader) readLines(doc *entity.SourceDocument, cfg Config) ([]*entity.NormalizedUnit, error) {
	var units []*entity.NormalizedUnit

	scanner := bufio.NewScanner(bytes.NewReader(doc.Data))
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	line, record := 0, 0
	for scanner.Scan() {
		line++
		raw := bytes.TrimSpace(scanner.Bytes())
		if len(raw) == 0 {
			continue
		}
		value, err := decodeJSON(raw)
		if err != nil {
			return nil, apperror.Wrap(apperror.KindParse, "reader.jsonl", fmt.Errorf("line %d: %w", line, err))
		}
		text, err := renderJSON(value, cfg)
		if err != nil {
			return nil, apperror.Wrap(apperror.KindParse, "reader.jsonl", fmt.Errorf("line %d: %w", line, err))
		}
		units = append(units, newUnit(doc, fmt.Sprintf("record-%d", record), j.Type(), text, cfg, map[string]interface{}{
			"format": "jsonl",
			"record": record,
		}))
		record++
	}
	if err := scanner.Err(); err != nil {
		return nil, apperror.Wrap(apperror.KindParse, "reader.jsonl", err)
	}
	return units, nil
}

func decodeJSON(data []byte) (interface{}, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if dec.More() {
		return nil, fmt.Errorf("trailing data after JSON value")
	}
	return v, nil
}

func renderJSON(v interface{}, cfg Config) (string, error) {
	if !cfg.FlattenJSON {
		out, err := json.MarshalIndent(v, "", "  ")
		return string(out), err
	}
	var lines []string
	if err := flatten("", v, 0, cfg.JSONDepthLimit, &lines); err != nil {
		return "", err
	}
	return strings.Join(lines, "\n"), nil
}

// flatten writes "path: value" lines. Containers nested deeper than limit
// are emitted as compact JSON at their path.
func flatten(path string, v interface{}, depth, limit int, lines *[]string) error {
	switch node := v.(type) {
	case map[string]interface{}:
		if limit > 0 && depth >= limit {
			return emitCompact(path, node, lines)
		}
		keys := make([]string, 0, len(node))
		for k := range node {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if err := flatten(joinPath(path, k), node[k], depth+1, limit, lines); err != nil {
				return err
			}
		}
	case []interface{}:
		if limit > 0 && depth >= limit {
			return emitCompact(path, node, lines)
		}
		for i, item := range node {
			if err := flatten(fmt.Sprintf("%s[%d]", path, i), item, depth+1, limit, lines); err != nil {
				return err
			}
		}
	case nil:
		*lines = append(*lines, fmt.Sprintf("%s: null", labelOf(path)))
	default:
		*lines = append(*lines, fmt.Sprintf("%s: %v", labelOf(path), node))
	}
	return nil
}

func emitCompact(path string, v interface{}, lines *[]string) error {
	out, err := json.Marshal(v)
	if err != nil {
		return err
	}
	*lines = append(*lines, fmt.Sprintf("%s: %s", labelOf(path), out))
	return nil
}

func joinPath(parent, key string) string {
	if parent == "" {
		return key
	}
	return parent + "." + key
}

func labelOf(path string) string {
	if path == "" {
		return "value"
	}
	return path
}
