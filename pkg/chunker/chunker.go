package chunker

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"ai-knowledge-be/internal/entity"
	"ai-knowledge-be/pkg/apperror"

	"github.com/google/uuid"
)

const (
	DefaultChunkSize = 1000
	DefaultOverlap   = 200

	MinChunkSize = 100
	MaxChunkSize = 10000
	MaxOverlap   = 500
)

// segmentNamespace seeds deterministic segment ids.
var segmentNamespace = uuid.MustParse("6f1c2f43-8f0e-4d55-9a55-2f7b9a1d0c11")

type Chunker struct {
	chunkSize int
	overlap   int
}

type Option func(*Chunker)

func WithChunkSize(n int) Option {
	return func(c *Chunker) { c.chunkSize = n }
}

func WithOverlap(n int) Option {
	return func(c *Chunker) { c.overlap = n }
}

func New(opts ...Option) (*Chunker, error) {
	c := &Chunker{chunkSize: DefaultChunkSize, overlap: DefaultOverlap}
	for _, opt := range opts {
		opt(c)
	}
	if err := Validate(c.chunkSize, c.overlap); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate checks a chunk size / overlap pair against the accepted ranges.
func Validate(chunkSize, overlap int) error {
	if chunkSize < MinChunkSize || chunkSize > MaxChunkSize {
		return apperror.Newf(apperror.KindValidation, "chunker", "chunk size %d outside [%d, %d]", chunkSize, MinChunkSize, MaxChunkSize)
	}
	if overlap < 0 || overlap > MaxOverlap {
		return apperror.Newf(apperror.KindValidation, "chunker", "overlap %d outside [0, %d]", overlap, MaxOverlap)
	}
	if overlap >= chunkSize {
		return apperror.Newf(apperror.KindValidation, "chunker", "overlap %d must be smaller than chunk size %d", overlap, chunkSize)
	}
	return nil
}

func (c *Chunker) ChunkSize() int { return c.chunkSize }

func (c *Chunker) Overlap() int { return c.overlap }

// SplitAll chunks every unit of one document. Ordinals run across units so
// (fileID, ordinal) identifies a segment within a knowledge base.
func (c *Chunker) SplitAll(units []*entity.NormalizedUnit, fileID, kbID string) []*entity.Segment {
	var segments []*entity.Segment
	ordinal := 0
	for _, u := range units {
		for i, text := range SplitText(u.Text, c.chunkSize, c.overlap) {
			segments = append(segments, &entity.Segment{
				ID:              SegmentID(fileID, kbID, u.ID, ordinal),
				Text:            text,
				Ordinal:         ordinal,
				SourceUnitID:    u.ID,
				FileID:          fileID,
				KnowledgeBaseID: kbID,
				Metadata:        segmentMetadata(u, i),
			})
			ordinal++
		}
	}
	return segments
}

// Split chunks a single unit, numbering ordinals from zero.
func (c *Chunker) Split(unit *entity.NormalizedUnit, fileID, kbID string) []*entity.Segment {
	return c.SplitAll([]*entity.NormalizedUnit{unit}, fileID, kbID)
}

// SplitText cuts text into rune windows of chunkSize, each starting
// chunkSize-overlap runes after the previous one. The last window may be
// shorter and never extends past the end of the text.
func SplitText(text string, chunkSize int, overlap int) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	if utf8.RuneCountInString(text) <= chunkSize {
		return []string{text}
	}

	var chunks []string
	runes := []rune(text)
	totalLen := len(runes)

	step := chunkSize - overlap
	if step <= 0 {
		step = chunkSize
	}

	for i := 0; i < totalLen; i += step {
		end := i + chunkSize
		if end > totalLen {
			end = totalLen
		}

		chunks = append(chunks, string(runes[i:end]))

		if end == totalLen {
			break
		}
	}

	return chunks
}

func SegmentID(fileID, kbID, unitID string, ordinal int) string {
	name := fmt.Sprintf("%s/%s/%s/%d", kbID, fileID, unitID, ordinal)
	return uuid.NewSHA1(segmentNamespace, []byte(name)).String()
}

func segmentMetadata(u *entity.NormalizedUnit, chunkIndex int) map[string]interface{} {
	meta := make(map[string]interface{}, len(u.Metadata)+2)
	for k, v := range u.Metadata {
		meta[k] = v
	}
	meta["unit_id"] = u.ID
	meta["chunk_index"] = chunkIndex
	return meta
}
