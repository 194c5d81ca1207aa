package retrieval

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"ai-knowledge-be/internal/entity"
	"ai-knowledge-be/pkg/apperror"
)

type FilterOp string

const (
	OpEq       FilterOp = "eq"
	OpNe       FilterOp = "ne"
	OpGt       FilterOp = "gt"
	OpGte      FilterOp = "gte"
	OpLt       FilterOp = "lt"
	OpLte      FilterOp = "lte"
	OpIn       FilterOp = "in"
	OpContains FilterOp = "contains"
)

// Filter compares a candidate field with Value. Field is one of score,
// length, ordinal, file_id, source or any metadata key.
type Filter struct {
	Field string      `json:"field"`
	Op    FilterOp    `json:"op"`
	Value interface{} `json:"value"`
}

type StructuredRequest struct {
	KnowledgeBaseID string
	Query           string
	Model           string
	TopK            int
	Threshold       *float64
	Filters         []Filter
	RequiredFields  []string
	SortBy          string
	SortDesc        bool
}

type StructuredSearch struct {
	vector *VectorSearch
}

func NewStructuredSearch(store SegmentStore) *StructuredSearch {
	return &StructuredSearch{vector: NewVectorSearch(store)}
}

func (s *StructuredSearch) Search(ctx context.Context, req StructuredRequest) ([]*entity.SearchCandidate, error) {
	for _, f := range req.Filters {
		if err := validateFilter(f); err != nil {
			return nil, err
		}
	}
	topK := topKOrDefault(req.TopK)

	base, err := s.vector.Search(ctx, VectorRequest{
		KnowledgeBaseID: req.KnowledgeBaseID,
		Query:           req.Query,
		Model:           req.Model,
		TopK:            topK * candidateFactor,
		Threshold:       req.Threshold,
	})
	if err != nil {
		return nil, err
	}

	out := make([]*entity.SearchCandidate, 0, len(base))
	for _, c := range base {
		if Matches(c, req.Filters, req.RequiredFields) {
			c.SourceStrategy = entity.StrategyStructured
			out = append(out, c)
		}
	}
	if req.SortBy != "" {
		SortByField(out, req.SortBy, req.SortDesc)
	}
	return truncate(out, topK), nil
}

func validateFilter(f Filter) error {
	if strings.TrimSpace(f.Field) == "" {
		return apperror.New(apperror.KindValidation, "retrieval.structured", "filter field is required")
	}
	switch f.Op {
	case OpEq, OpNe, OpGt, OpGte, OpLt, OpLte, OpIn, OpContains:
		return nil
	default:
		return apperror.Newf(apperror.KindValidation, "retrieval.structured", "unknown filter operator %q", f.Op)
	}
}

// Matches reports whether c carries every required field and satisfies every
// filter. A candidate without a filtered field never matches.
func Matches(c *entity.SearchCandidate, filters []Filter, required []string) bool {
	for _, field := range required {
		if _, ok := fieldValue(c, field); !ok {
			return false
		}
	}
	for _, f := range filters {
		v, ok := fieldValue(c, f.Field)
		if !ok || !compare(v, f.Op, f.Value) {
			return false
		}
	}
	return true
}

func fieldValue(c *entity.SearchCandidate, field string) (interface{}, bool) {
	switch field {
	case "score":
		return c.Score, true
	case "length":
		return len([]rune(c.Segment.Text)), true
	case "ordinal":
		return c.Segment.Ordinal, true
	case "file_id":
		return c.Segment.FileID, true
	case "source":
		// Readers stamp the filename; segments stored without one fall back
		// to their file id.
		if v, ok := c.Segment.Metadata["source"].(string); ok && v != "" {
			return v, true
		}
		return c.Segment.FileID, c.Segment.FileID != ""
	}
	v, ok := c.Segment.Metadata[field]
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}

func compare(actual interface{}, op FilterOp, expected interface{}) bool {
	switch op {
	case OpEq:
		return equal(actual, expected)
	case OpNe:
		return !equal(actual, expected)
	case OpGt, OpGte, OpLt, OpLte:
		a, aok := toFloat(actual)
		b, bok := toFloat(expected)
		if !aok || !bok {
			return false
		}
		switch op {
		case OpGt:
			return a > b
		case OpGte:
			return a >= b
		case OpLt:
			return a < b
		default:
			return a <= b
		}
	case OpIn:
		values, ok := expected.([]interface{})
		if !ok {
			if strs, isStrs := expected.([]string); isStrs {
				for _, s := range strs {
					values = append(values, s)
				}
			} else {
				return false
			}
		}
		for _, v := range values {
			if equal(actual, v) {
				return true
			}
		}
		return false
	case OpContains:
		return strings.Contains(strings.ToLower(fmt.Sprint(actual)), strings.ToLower(fmt.Sprint(expected)))
	}
	return false
}

// equal compares numerically when both sides are numbers, else as strings.
// JSON decoding turns every number into float64, so 3 and 3.0 must agree.
func equal(a, b interface{}) bool {
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if aok && bok {
		return af == bf
	}
	return fmt.Sprint(a) == fmt.Sprint(b)
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	}
	return 0, false
}

// SortByField orders by field, placing candidates missing it last. Equal
// values keep segment id order.
func SortByField(c []*entity.SearchCandidate, field string, desc bool) {
	sort.SliceStable(c, func(i, j int) bool {
		vi, iok := fieldValue(c[i], field)
		vj, jok := fieldValue(c[j], field)
		if iok != jok {
			return iok
		}
		if !iok {
			return c[i].Segment.ID < c[j].Segment.ID
		}
		cmp := compareValues(vi, vj)
		if cmp == 0 {
			return c[i].Segment.ID < c[j].Segment.ID
		}
		if desc {
			return cmp > 0
		}
		return cmp < 0
	})
}

func compareValues(a, b interface{}) int {
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if aok && bok {
		switch {
		case af < bf:
			return -1
		case af > bf:
			return 1
		}
		return 0
	}
	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}
