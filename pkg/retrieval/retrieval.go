package retrieval

import (
	"context"
	"sort"

	"ai-knowledge-be/internal/entity"
	"ai-knowledge-be/pkg/vectorstore"
)

const (
	logModule = "RETRIEVAL"

	DefaultTopK      = 10
	DefaultThreshold = 0.7
	// candidateFactor widens the pool fetched before merging or filtering.
	candidateFactor = 3
)

// SegmentStore is the part of the vector store retrieval reads from.
type SegmentStore interface {
	SimilaritySearch(ctx context.Context, req vectorstore.SearchRequest) ([]*entity.SearchCandidate, error)
	KeywordCandidates(ctx context.Context, kbID string, keywords []string, limit int) ([]*entity.Segment, error)
}

func topKOrDefault(k int) int {
	if k <= 0 {
		return DefaultTopK
	}
	return k
}

// sortByScore orders by score descending, then segment id.
func sortByScore(c []*entity.SearchCandidate) {
	sort.SliceStable(c, func(i, j int) bool {
		if c[i].Score != c[j].Score {
			return c[i].Score > c[j].Score
		}
		return c[i].Segment.ID < c[j].Segment.ID
	})
}

func truncate(c []*entity.SearchCandidate, n int) []*entity.SearchCandidate {
	if n > 0 && len(c) > n {
		return c[:n]
	}
	return c
}

func tag(c []*entity.SearchCandidate, strategy string) []*entity.SearchCandidate {
	for _, x := range c {
		x.SourceStrategy = strategy
	}
	return c
}

// Combine merges results from several knowledge bases, keeps the best copy
// of each document and returns the top limit by score.
func Combine(limit int, results ...[]*entity.SearchCandidate) []*entity.SearchCandidate {
	var all []*entity.SearchCandidate
	for _, r := range results {
		all = append(all, r...)
	}
	merged := Dedup(all)
	sortByScore(merged)
	return truncate(merged, topKOrDefault(limit))
}
