package reader

import (
	"context"
	"errors"
	"strings"
	"testing"

	"ai-knowledge-be/internal/entity"
	"ai-knowledge-be/internal/pkg/logger"
	"ai-knowledge-be/pkg/ocr"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClean(t *testing.T) {
	cfg := DefaultConfig()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"collapses spaces", "a   b\t\tc", "a b c"},
		{"drops empty lines", "one\n\n   \ntwo", "one\ntwo"},
		{"crlf", "x\r\ny", "x\ny"},
		{"nfc", "e\u0301", "\u00e9"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Clean(tt.in, cfg))
		})
	}
}

func TestTextReaderTruncation(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxContentLength = 5

	doc := &entity.SourceDocument{Filename: "a.txt", Data: []byte("你好世界你好世界")}
	units, err := NewTextReader().Read(context.Background(), doc, cfg)
	require.NoError(t, err)
	require.Len(t, units, 1)

	u := units[0]
	assert.Equal(t, "你好世界你", u.Text)
	assert.Equal(t, true, u.Metadata["truncated"])
	assert.Equal(t, 8, u.Metadata["original_length"])
	assert.Equal(t, "text", u.Metadata["reader_type"])
	assert.Equal(t, "zh", u.Metadata["language"])
}

func TestTextReaderParagraphs(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ReadByParagraph = true

	doc := &entity.SourceDocument{Filename: "guide.md", Data: []byte("# Title\n\nFirst para.\n\n\nSecond para.")}
	units, err := NewTextReader().Read(context.Background(), doc, cfg)
	require.NoError(t, err)
	require.Len(t, units, 3)
	assert.Equal(t, "markdown", units[0].Metadata["format"])
	assert.Equal(t, 2, units[2].Metadata["paragraph"])
	assert.Equal(t, "Second para.", units[2].Text)
	assert.Equal(t, false, units[0].Metadata["truncated"])
}

func TestTextReaderInvalidUTF8(t *testing.T) {
	doc := &entity.SourceDocument{Filename: "bin.txt", Data: []byte{0xff, 0xfe, 0xfd}}
	_, err := NewTextReader().Read(context.Background(), doc, DefaultConfig())
	assert.True(t, errors.Is(err, ErrParse))
}

func TestJSONReaderFlatten(t *testing.T) {
	doc := &entity.SourceDocument{Filename: "a.json", Data: []byte(`{"name":"kb","tags":["x","y"],"meta":{"size":3}}`)}
	units, err := NewJSONReader().Read(context.Background(), doc, DefaultConfig())
	require.NoError(t, err)
	require.Len(t, units, 1)
	assert.Equal(t, "meta.size: 3\nname: kb\ntags[0]: x\ntags[1]: y", units[0].Text)
}

func TestJSONReaderDepthLimit(t *testing.T) {
	cfg := DefaultConfig()
	cfg.JSONDepthLimit = 1

	doc := &entity.SourceDocument{Filename: "a.json", Data: []byte(`{"a":{"b":{"c":1}},"d":2}`)}
	units, err := NewJSONReader().Read(context.Background(), doc, cfg)
	require.NoError(t, err)
	assert.Equal(t, "a: {\"b\":{\"c\":1}}\nd: 2", units[0].Text)
}

func TestJSONReaderLines(t *testing.T) {
	doc := &entity.SourceDocument{Filename: "events.jsonl", Data: []byte("{\"id\":1}\n\n{\"id\":2}\n")}
	units, err := NewJSONReader().Read(context.Background(), doc, DefaultConfig())
	require.NoError(t, err)
	require.Len(t, units, 2)
	assert.Equal(t, "id: 2", units[1].Text)
	assert.Equal(t, 1, units[1].Metadata["record"])
}

func TestJSONReaderMalformed(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		data     string
	}{
		{"json", "bad.json", `{"a":`},
		{"jsonl line", "bad.jsonl", "{\"a\":1}\nnope"},
		{"trailing", "two.json", `{} {}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := &entity.SourceDocument{Filename: tt.filename, Data: []byte(tt.data)}
			_, err := NewJSONReader().Read(context.Background(), doc, DefaultConfig())
			assert.True(t, errors.Is(err, ErrParse))
		})
	}
}

func TestPDFReaderCorrupt(t *testing.T) {
	doc := &entity.SourceDocument{Filename: "broken.pdf", Data: []byte("%PDF-1.4 this is not a pdf")}
	_, err := NewPDFReader(logger.NewNopLogger()).Read(context.Background(), doc, DefaultConfig())
	assert.True(t, errors.Is(err, ErrParse))
}

func TestLooksLikeTable(t *testing.T) {
	assert.True(t, looksLikeTable("| a | b |"))
	assert.True(t, looksLikeTable("name\tage\tcity"))
	assert.False(t, looksLikeTable("just prose\twith one tab"))
}

type stubRecognizer struct {
	res *ocr.Result
	err error
}

func (s *stubRecognizer) Recognize(ctx context.Context, image []byte, cfg ocr.Config) (*ocr.Result, error) {
	return s.res, s.err
}

func TestImageReader(t *testing.T) {
	rec := &stubRecognizer{res: &ocr.Result{
		Text:       "scanned   line\n\nsecond",
		Language:   "en",
		Confidence: 0.88,
		TextBlocks: []ocr.TextBlock{{Text: "scanned line"}, {Text: "second"}},
		Metadata:   map[string]interface{}{"engine": "paddle"},
	}}
	doc := &entity.SourceDocument{Filename: "scan.PNG", Data: []byte("img")}

	units, err := NewImageReader(rec, ocr.DefaultConfig()).Read(context.Background(), doc, DefaultConfig())
	require.NoError(t, err)
	require.Len(t, units, 1)
	assert.Equal(t, "scanned line\nsecond", units[0].Text)
	assert.Equal(t, "ocr", units[0].Metadata["document_type"])
	assert.Equal(t, "en", units[0].Metadata["language"])
	assert.Equal(t, 2, units[0].Metadata["text_blocks"])
	assert.Equal(t, "paddle", units[0].Metadata["ocr_engine"])
}

func TestImageReaderPropagatesOcrErrors(t *testing.T) {
	rec := &stubRecognizer{err: ocr.ErrNoEngine}
	doc := &entity.SourceDocument{Filename: "scan.png", Data: []byte("img")}

	_, err := NewImageReader(rec, ocr.DefaultConfig()).Read(context.Background(), doc, DefaultConfig())
	assert.True(t, errors.Is(err, ocr.ErrNoEngine))
	assert.False(t, strings.Contains(err.Error(), "panic"))
}
