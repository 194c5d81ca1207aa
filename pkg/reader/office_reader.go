package reader

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"ai-knowledge-be/internal/entity"
	"ai-knowledge-be/pkg/apperror"
)

// OfficeReader extracts paragraph text from zipped office documents: Word
// and PowerPoint (OOXML) and OpenDocument text and presentations.
type OfficeReader struct{}

func NewOfficeReader() *OfficeReader { return &OfficeReader{} }

func (o *OfficeReader) Type() string { return "office" }

func (o *OfficeReader) SupportedExtensions() []string {
	return []string{"docx", "pptx", "odt", "odp"}
}

// officePart is one XML member of the archive and the unit it becomes.
type officePart struct {
	name  string
	label string
	index int
}

func (o *OfficeReader) Read(ctx context.Context, doc *entity.SourceDocument, cfg Config) ([]*entity.NormalizedUnit, error) {
	ext := NormalizeExtension(documentExtension(doc))

	zr, err := zip.NewReader(bytes.NewReader(doc.Data), int64(len(doc.Data)))
	if err != nil {
		return nil, apperror.Wrap(apperror.KindParse, "reader.office", err)
	}
	files := make(map[string]*zip.File, len(zr.File))
	for _, f := range zr.File {
		files[f.Name] = f
	}

	var (
		parts    []officePart
		textOnly bool
	)
	switch ext {
	case "docx":
		parts = []officePart{{name: "word/document.xml", label: "doc"}}
		textOnly = true
	case "pptx":
		parts = slideParts(zr)
		textOnly = true
	case "odt", "odp":
		parts = []officePart{{name: "content.xml", label: "doc"}}
	default:
		return nil, apperror.Newf(apperror.KindUnsupportedFormat, "reader.office", "unsupported office format %q", ext)
	}
	if len(parts) == 0 {
		return nil, apperror.Newf(apperror.KindParse, "reader.office", "%s archive has no content parts", ext)
	}

	var units []*entity.NormalizedUnit
	for _, part := range parts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		f, ok := files[part.name]
		if !ok {
			return nil, apperror.Newf(apperror.KindParse, "reader.office", "missing %s", part.name)
		}
		paragraphs, err := readOfficePart(f, textOnly)
		if err != nil {
			return nil, apperror.Wrap(apperror.KindParse, "reader.office", err)
		}

		base := map[string]interface{}{"format": ext}
		if part.label == "slide" {
			base["slide"] = part.index
		}
		units = append(units, o.partUnits(doc, part, paragraphs, cfg, base)...)
	}
	return units, nil
}

func (o *OfficeReader) partUnits(doc *entity.SourceDocument, part officePart, paragraphs []string, cfg Config, base map[string]interface{}) []*entity.NormalizedUnit {
	prefix := fmt.Sprintf("%s-%d", part.label, part.index)
	if !cfg.ReadByParagraph {
		if len(paragraphs) == 0 {
			return nil
		}
		return []*entity.NormalizedUnit{newUnit(doc, prefix, o.Type(), strings.Join(paragraphs, "\n"), cfg, base)}
	}

	units := make([]*entity.NormalizedUnit, 0, len(paragraphs))
	for i, p := range paragraphs {
		meta := map[string]interface{}{"paragraph": i}
		for k, v := range base {
			meta[k] = v
		}
		units = append(units, newUnit(doc, fmt.Sprintf("%s-para-%d", prefix, i), o.Type(), p, cfg, meta))
	}
	return units
}

// slideParts lists ppt/slides/slideN.xml in slide order.
func slideParts(zr *zip.Reader) []officePart {
	var parts []officePart
	for _, f := range zr.File {
		name := f.Name
		if !strings.HasPrefix(name, "ppt/slides/slide") || !strings.HasSuffix(name, ".xml") {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(name, "ppt/slides/slide"), ".xml"))
		if err != nil {
			continue
		}
		parts = append(parts, officePart{name: name, label: "slide", index: n})
	}
	sort.Slice(parts, func(i, j int) bool { return parts[i].index < parts[j].index })
	return parts
}

func readOfficePart(f *zip.File, textOnly bool) ([]string, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return officeParagraphs(rc, textOnly)
}

// officeParagraphs collects text per paragraph element (p, or h for
// OpenDocument headings). With textOnly only runs inside t elements count,
// which is how OOXML stores visible text.
func officeParagraphs(r io.Reader, textOnly bool) ([]string, error) {
	dec := xml.NewDecoder(r)

	var (
		out     []string
		current strings.Builder
		inPara  int
		inText  int
	)
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "p", "h":
				inPara++
			case "t":
				inText++
			case "tab", "s":
				current.WriteByte(' ')
			case "br", "line-break":
				current.WriteByte('\n')
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "p", "h":
				inPara--
				if inPara == 0 {
					if text := strings.TrimSpace(current.String()); text != "" {
						out = append(out, text)
					}
					current.Reset()
				}
			case "t":
				inText--
			}
		case xml.CharData:
			if inPara > 0 && (!textOnly || inText > 0) {
				current.Write(t)
			}
		}
	}
}
