package retrieval

import (
	"context"
	"errors"
	"testing"

	"ai-knowledge-be/internal/entity"
	"ai-knowledge-be/pkg/apperror"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStructuredSearch(t *testing.T) {
	ctx := context.Background()
	s := NewStructuredSearch(newStore(t))

	tests := []struct {
		name     string
		filters  []Filter
		required []string
		sortBy   string
		desc     bool
		wantIDs  []string
	}{
		{
			name:    "no filters keeps vector order",
			wantIDs: []string{"s1", "s4", "s2", "s3"},
		},
		{
			name:    "numeric filter excludes missing field",
			filters: []Filter{{Field: "page", Op: OpGte, Value: 2.0}},
			wantIDs: []string{"s2"},
		},
		{
			name:    "eq on metadata",
			filters: []Filter{{Field: "category", Op: OpEq, Value: "detail"}},
			wantIDs: []string{"s2", "s3"},
		},
		{
			name:    "ne still needs the field",
			filters: []Filter{{Field: "category", Op: OpNe, Value: "detail"}},
			wantIDs: []string{"s1"},
		},
		{
			name:    "in list",
			filters: []Filter{{Field: "category", Op: OpIn, Value: []interface{}{"intro", "other"}}},
			wantIDs: []string{"s1"},
		},
		{
			name:    "built in file id",
			filters: []Filter{{Field: "file_id", Op: OpEq, Value: "f2"}},
			wantIDs: []string{"s4", "s3"},
		},
		{
			name:    "built in length",
			filters: []Filter{{Field: "length", Op: OpLt, Value: 10}},
			wantIDs: []string{"s4"},
		},
		{
			name:    "contains is case insensitive",
			filters: []Filter{{Field: "category", Op: OpContains, Value: "INT"}},
			wantIDs: []string{"s1"},
		},
		{
			name:     "required field",
			required: []string{"page"},
			wantIDs:  []string{"s1", "s2"},
		},
		{
			name:    "sort desc puts missing last",
			sortBy:  "page",
			desc:    true,
			wantIDs: []string{"s2", "s1", "s3", "s4"},
		},
		{
			name:    "sort by ordinal asc",
			sortBy:  "ordinal",
			wantIDs: []string{"s1", "s3", "s2", "s4"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.Search(ctx, StructuredRequest{
				KnowledgeBaseID: "kb1",
				Query:           "alpha beta",
				Threshold:       threshold(0),
				Filters:         tt.filters,
				RequiredFields:  tt.required,
				SortBy:          tt.sortBy,
				SortDesc:        tt.desc,
			})
			require.NoError(t, err)
			assert.Equal(t, tt.wantIDs, ids(got))
			for _, c := range got {
				assert.Equal(t, entity.StrategyStructured, c.SourceStrategy)
			}
		})
	}
}

func TestStructuredSearchRejectsBadFilters(t *testing.T) {
	ctx := context.Background()
	s := NewStructuredSearch(newStore(t))

	for _, f := range []Filter{{Field: "page", Op: "between", Value: 1}, {Field: "", Op: OpEq, Value: 1}} {
		_, err := s.Search(ctx, StructuredRequest{KnowledgeBaseID: "kb1", Query: "alpha", Filters: []Filter{f}})
		assert.True(t, errors.Is(err, apperror.ErrValidation), "filter %+v", f)
	}
}

func TestStructuredSourceField(t *testing.T) {
	named := &entity.SearchCandidate{Segment: &entity.Segment{ID: "a", FileID: "f1", Metadata: map[string]interface{}{"source": "guide.pdf"}}}
	unnamed := &entity.SearchCandidate{Segment: &entity.Segment{ID: "b", FileID: "f2"}}
	anonymous := &entity.SearchCandidate{Segment: &entity.Segment{ID: "c"}}
	all := []*entity.SearchCandidate{named, unnamed, anonymous}

	tests := []struct {
		name     string
		filters  []Filter
		required []string
		want     []string
	}{
		{name: "eq on stamped filename", filters: []Filter{{Field: "source", Op: OpEq, Value: "guide.pdf"}}, want: []string{"a"}},
		{name: "falls back to file id", filters: []Filter{{Field: "source", Op: OpContains, Value: "F2"}}, want: []string{"b"}},
		{name: "required source", required: []string{"source"}, want: []string{"a", "b"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []string
			for _, c := range all {
				if Matches(c, tt.filters, tt.required) {
					got = append(got, c.Segment.ID)
				}
			}
			assert.Equal(t, tt.want, got)
		})
	}

	sorted := []*entity.SearchCandidate{unnamed, named}
	SortByField(sorted, "source", false)
	assert.Equal(t, []string{"b", "a"}, ids(sorted))
}
