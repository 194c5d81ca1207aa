package reader

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"ai-knowledge-be/internal/entity"
	"ai-knowledge-be/pkg/apperror"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// HTMLReader strips markup and keeps the visible text. Block elements end a
// paragraph; script, style and similar subtrees are skipped.
type HTMLReader struct{}

func NewHTMLReader() *HTMLReader { return &HTMLReader{} }

func (h *HTMLReader) Type() string { return "html" }

func (h *HTMLReader) SupportedExtensions() []string {
	return []string{"html", "htm", "xhtml"}
}

var skippedHTML = map[atom.Atom]bool{
	atom.Script:   true,
	atom.Style:    true,
	atom.Noscript: true,
	atom.Svg:      true,
	atom.Template: true,
	atom.Iframe:   true,
}

var blockHTML = map[atom.Atom]bool{
	atom.P: true, atom.Div: true, atom.Br: true, atom.Hr: true,
	atom.H1: true, atom.H2: true, atom.H3: true, atom.H4: true, atom.H5: true, atom.H6: true,
	atom.Li: true, atom.Tr: true, atom.Blockquote: true, atom.Pre: true, atom.Table: true,
	atom.Section: true, atom.Article: true, atom.Header: true, atom.Footer: true, atom.Title: true,
}

func (h *HTMLReader) Read(ctx context.Context, doc *entity.SourceDocument, cfg Config) ([]*entity.NormalizedUnit, error) {
	title, paragraphs, err := extractHTML(doc.Data)
	if err != nil {
		return nil, apperror.Wrap(apperror.KindParse, "reader.html", err)
	}

	base := map[string]interface{}{"format": "html"}
	if title != "" {
		base["title"] = title
	}

	if !cfg.ReadByParagraph {
		return []*entity.NormalizedUnit{
			newUnit(doc, "doc-0", h.Type(), strings.Join(paragraphs, "\n\n"), cfg, base),
		}, nil
	}

	units := make([]*entity.NormalizedUnit, 0, len(paragraphs))
	for i, p := range paragraphs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		meta := map[string]interface{}{"paragraph": i}
		for k, v := range base {
			meta[k] = v
		}
		units = append(units, newUnit(doc, fmt.Sprintf("para-%d", i), h.Type(), p, cfg, meta))
	}
	return units, nil
}

func extractHTML(data []byte) (string, []string, error) {
	z := html.NewTokenizer(bytes.NewReader(data))

	var (
		title      strings.Builder
		current    strings.Builder
		paragraphs []string
		skipDepth  int
		inTitle    bool
	)
	flush := func() {
		if text := strings.Join(strings.Fields(current.String()), " "); text != "" {
			paragraphs = append(paragraphs, text)
		}
		current.Reset()
	}

	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			if z.Err() == io.EOF {
				flush()
				return strings.TrimSpace(title.String()), paragraphs, nil
			}
			return "", nil, z.Err()

		case html.StartTagToken, html.SelfClosingTagToken:
			name, _ := z.TagName()
			a := atom.Lookup(name)
			if skippedHTML[a] {
				if tt == html.StartTagToken {
					skipDepth++
				}
				continue
			}
			if a == atom.Title {
				inTitle = true
			}
			if blockHTML[a] {
				flush()
			}

		case html.EndTagToken:
			name, _ := z.TagName()
			a := atom.Lookup(name)
			if skippedHTML[a] {
				if skipDepth > 0 {
					skipDepth--
				}
				continue
			}
			if a == atom.Title {
				inTitle = false
				continue
			}
			if blockHTML[a] {
				flush()
			}

		case html.TextToken:
			if skipDepth > 0 {
				continue
			}
			text := string(z.Text())
			if inTitle {
				title.WriteString(text)
				continue
			}
			current.WriteString(text)
			current.WriteByte(' ')
		}
	}
}
