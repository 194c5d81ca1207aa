package reader

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"ai-knowledge-be/internal/entity"
	"ai-knowledge-be/pkg/apperror"
)

// XMLReader keeps the character data of an XML document. With
// ReadByParagraph each child of the root element becomes one record unit.
type XMLReader struct{}

func NewXMLReader() *XMLReader { return &XMLReader{} }

func (x *XMLReader) Type() string { return "xml" }

func (x *XMLReader) SupportedExtensions() []string { return []string{"xml"} }

func (x *XMLReader) Read(ctx context.Context, doc *entity.SourceDocument, cfg Config) ([]*entity.NormalizedUnit, error) {
	root, records, err := extractXML(doc.Data)
	if err != nil {
		return nil, apperror.Wrap(apperror.KindParse, "reader.xml", err)
	}
	if root == "" {
		return nil, apperror.New(apperror.KindParse, "reader.xml", "document has no root element")
	}

	if !cfg.ReadByParagraph {
		return []*entity.NormalizedUnit{
			newUnit(doc, "doc-0", x.Type(), strings.Join(records, "\n"), cfg, map[string]interface{}{
				"format":       "xml",
				"root_element": root,
				"records":      len(records),
			}),
		}, nil
	}

	units := make([]*entity.NormalizedUnit, 0, len(records))
	for i, r := range records {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		units = append(units, newUnit(doc, fmt.Sprintf("record-%d", i), x.Type(), r, cfg, map[string]interface{}{
			"format":       "xml",
			"root_element": root,
			"record":       i,
		}))
	}
	return units, nil
}

// extractXML returns the root element name and the text of each root child.
// Text directly under the root is its own record.
func extractXML(data []byte) (string, []string, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.Strict = false

	var (
		root    string
		depth   int
		current []string
		records []string
	)
	flush := func() {
		if text := strings.Join(current, " "); strings.TrimSpace(text) != "" {
			records = append(records, text)
		}
		current = current[:0]
	}

	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			flush()
			return root, records, nil
		}
		if err != nil {
			return "", nil, err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			depth++
			if depth == 1 {
				root = t.Name.Local
			}
			if depth == 2 {
				flush()
			}
		case xml.EndElement:
			if depth == 2 {
				flush()
			}
			depth--
		case xml.CharData:
			if text := strings.Join(strings.Fields(string(t)), " "); text != "" && depth > 0 {
				current = append(current, text)
			}
		}
	}
}
