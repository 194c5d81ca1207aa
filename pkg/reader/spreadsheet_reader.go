package reader

import (
	"bytes"
	"context"

	"ai-knowledge-be/internal/entity"
	"ai-knowledge-be/pkg/apperror"

	"github.com/xuri/excelize/v2"
)

// SpreadsheetReader reads every sheet of an OOXML workbook as a table whose
// first row is the header.
type SpreadsheetReader struct{}

func NewSpreadsheetReader() *SpreadsheetReader { return &SpreadsheetReader{} }

func (s *SpreadsheetReader) Type() string { return "spreadsheet" }

func (s *SpreadsheetReader) SupportedExtensions() []string { return []string{"xlsx", "xlsm"} }

func (s *SpreadsheetReader) Read(ctx context.Context, doc *entity.SourceDocument, cfg Config) ([]*entity.NormalizedUnit, error) {
	f, err := excelize.OpenReader(bytes.NewReader(doc.Data))
	if err != nil {
		return nil, apperror.Wrap(apperror.KindParse, "reader.spreadsheet", err)
	}
	defer f.Close()

	var units []*entity.NormalizedUnit
	for _, sheet := range f.GetSheetList() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rows, err := f.GetRows(sheet)
		if err != nil {
			return nil, apperror.Wrap(apperror.KindParse, "reader.spreadsheet", err)
		}
		sheetUnits, err := tableUnits(ctx, doc, s.Type(), "xlsx", sheet, rows, cfg)
		if err != nil {
			return nil, err
		}
		units = append(units, sheetUnits...)
	}
	return units, nil
}
