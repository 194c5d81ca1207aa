package reader

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"ai-knowledge-be/internal/entity"
	"ai-knowledge-be/pkg/apperror"
)

// CSVReader treats the first row as a header and renders every data row as
// "column: value" pairs so each row stays readable on its own.
type CSVReader struct{}

func NewCSVReader() *CSVReader { return &CSVReader{} }

func (c *CSVReader) Type() string { return "csv" }

func (c *CSVReader) SupportedExtensions() []string { return []string{"csv", "tsv"} }

func (c *CSVReader) Read(ctx context.Context, doc *entity.SourceDocument, cfg Config) ([]*entity.NormalizedUnit, error) {
	if !utf8.Valid(doc.Data) {
		return nil, apperror.New(apperror.KindParse, "reader.csv", "content is not valid UTF-8")
	}

	r := csv.NewReader(bytes.NewReader(bytes.TrimPrefix(doc.Data, []byte("\ufeff"))))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	if NormalizeExtension(documentExtension(doc)) == "tsv" {
		r.Comma = '\t'
	}

	var rows [][]string
	for {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, apperror.Wrap(apperror.KindParse, "reader.csv", err)
		}
		rows = append(rows, row)
	}

	return tableUnits(ctx, doc, c.Type(), "csv", "", rows, cfg)
}

// tableUnits renders rows under their header: one unit for the table, or
// one unit per row with ReadByParagraph. sheet is empty outside workbooks.
func tableUnits(ctx context.Context, doc *entity.SourceDocument, readerType, format, sheet string, rows [][]string, cfg Config) ([]*entity.NormalizedUnit, error) {
	if len(rows) == 0 {
		return nil, nil
	}
	header := rows[0]
	data := rows[1:]

	base := map[string]interface{}{
		"format":  format,
		"columns": strings.Join(header, ","),
		"rows":    len(data),
	}
	prefix := "doc"
	if sheet != "" {
		base["sheet"] = sheet
		prefix = "sheet-" + sheet
	}

	if !cfg.ReadByParagraph {
		lines := make([]string, 0, len(data))
		for _, row := range data {
			if line := renderRow(header, row); line != "" {
				lines = append(lines, line)
			}
		}
		return []*entity.NormalizedUnit{newUnit(doc, prefix+"-0", readerType, strings.Join(lines, "\n"), cfg, base)}, nil
	}

	units := make([]*entity.NormalizedUnit, 0, len(data))
	for i, row := range data {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		line := renderRow(header, row)
		if line == "" {
			continue
		}
		meta := map[string]interface{}{"record": i}
		for k, v := range base {
			meta[k] = v
		}
		units = append(units, newUnit(doc, fmt.Sprintf("%s-row-%d", prefix, i), readerType, line, cfg, meta))
	}
	return units, nil
}

func renderRow(header, row []string) string {
	parts := make([]string, 0, len(row))
	for i, v := range row {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		name := fmt.Sprintf("column%d", i+1)
		if i < len(header) && strings.TrimSpace(header[i]) != "" {
			name = strings.TrimSpace(header[i])
		}
		parts = append(parts, name+": "+v)
	}
	return strings.Join(parts, "; ")
}
