package citation

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"ai-knowledge-be/internal/entity"
	"ai-knowledge-be/pkg/rag/prompt"
)

type Style string

const (
	StyleAPA     Style = "apa"
	StyleMLA     Style = "mla"
	StyleChicago Style = "chicago"
	StyleIEEE    Style = "ieee"
	StyleDefault Style = "default"
)

// ParseStyle maps a label to a style; unknown labels use the default.
func ParseStyle(s string) Style {
	switch st := Style(strings.ToLower(strings.TrimSpace(s))); st {
	case StyleAPA, StyleMLA, StyleChicago, StyleIEEE:
		return st
	}
	return StyleDefault
}

// Build produces one citation per candidate, numbered from 1 in order.
func Build(candidates []*entity.SearchCandidate, style Style, includePage bool) []entity.Citation {
	out := make([]entity.Citation, 0, len(candidates))
	for i, c := range candidates {
		seg := c.Segment
		cite := entity.Citation{
			Index:     i + 1,
			SegmentID: seg.ID,
			FileID:    seg.FileID,
			Title:     prompt.Title(seg),
			Source:    source(seg),
			Page:      Page(seg),
			Text:      seg.Text,
		}
		cite.Formatted = Format(cite, style, includePage)
		out = append(out, cite)
	}
	return out
}

// Format renders a citation in the given style.
func Format(c entity.Citation, style Style, includePage bool) string {
	var s string
	switch style {
	case StyleAPA:
		s = fmt.Sprintf("[%d] %s. %s", c.Index, c.Title, c.Source)
	case StyleMLA:
		s = fmt.Sprintf("[%d] \"%s.\" %s", c.Index, c.Title, c.Source)
	case StyleChicago:
		s = fmt.Sprintf("[%d] %s, %s", c.Index, c.Title, c.Source)
	case StyleIEEE:
		s = fmt.Sprintf("[%d] %s, \"%s\"", c.Index, c.Source, c.Title)
	default:
		s = fmt.Sprintf("[%d] %s - %s", c.Index, c.Title, c.Source)
	}
	if includePage && c.Page > 0 {
		s += ", p. " + strconv.Itoa(c.Page)
	}
	return s
}

// Append adds a reference list below the answer.
func Append(answer string, citations []entity.Citation) string {
	if len(citations) == 0 {
		return answer
	}
	var b strings.Builder
	b.WriteString(answer)
	b.WriteString("\n\nReferences:\n")
	for _, c := range citations {
		b.WriteString(c.Formatted)
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// Page is the segment's page metadata, or its 1-based position in the file
// when the reader recorded no page.
func Page(s *entity.Segment) int {
	switch v := s.Metadata["page"].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return int(n)
		}
	case string:
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return s.Ordinal + 1
}

func source(s *entity.Segment) string {
	if v, ok := s.Metadata["source"].(string); ok && v != "" {
		return v
	}
	return s.FileID
}
