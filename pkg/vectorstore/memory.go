package vectorstore

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"ai-knowledge-be/internal/entity"
	"ai-knowledge-be/pkg/apperror"
)

// MemoryStore keeps everything in process. It backs development setups and
// tests.
type MemoryStore struct {
	mu       sync.RWMutex
	kbs      map[string]*entity.KnowledgeBase
	segments map[string]map[string]*entity.Segment // kbID -> segmentID -> segment
	embedder QueryEmbedder
}

var _ Store = &MemoryStore{}

func NewMemoryStore(embedder QueryEmbedder) *MemoryStore {
	return &MemoryStore{
		kbs:      make(map[string]*entity.KnowledgeBase),
		segments: make(map[string]map[string]*entity.Segment),
		embedder: embedder,
	}
}

func (m *MemoryStore) CreateKnowledgeBase(ctx context.Context, kb *entity.KnowledgeBase) error {
	if kb.ID == "" {
		return apperror.New(apperror.KindValidation, "vectorstore.create", "knowledge base id is required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.kbs[kb.ID]; ok {
		return nil
	}
	c := *kb
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}
	m.kbs[kb.ID] = &c
	m.segments[kb.ID] = make(map[string]*entity.Segment)
	return nil
}

func (m *MemoryStore) GetKnowledgeBase(ctx context.Context, kbID string) (*entity.KnowledgeBase, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	kb, ok := m.kbs[kbID]
	if !ok {
		return nil, notFound("vectorstore.get", kbID)
	}
	c := *kb
	return &c, nil
}

func (m *MemoryStore) KnowledgeBaseExists(ctx context.Context, kbID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.kbs[kbID]
	return ok, nil
}

func (m *MemoryStore) DeleteKnowledgeBase(ctx context.Context, kbID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.kbs, kbID)
	delete(m.segments, kbID)
	return nil
}

func (m *MemoryStore) AddSegments(ctx context.Context, kbID string, segments []*entity.Segment) error {
	if err := validateSegments(kbID, segments); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	bucket, ok := m.segments[kbID]
	if !ok {
		return notFound("vectorstore.add", kbID)
	}
	now := time.Now()
	for _, s := range segments {
		c := cloneSegment(s)
		c.KnowledgeBaseID = kbID
		if c.CreatedAt.IsZero() {
			c.CreatedAt = now
		}
		bucket[c.ID] = c
	}
	return nil
}

func (m *MemoryStore) DeleteSegments(ctx context.Context, kbID string, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	bucket, ok := m.segments[kbID]
	if !ok {
		return nil
	}
	for _, id := range ids {
		delete(bucket, id)
	}
	return nil
}

func (m *MemoryStore) DeleteByFileID(ctx context.Context, kbID, fileID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, s := range m.segments[kbID] {
		if s.FileID == fileID {
			delete(m.segments[kbID], id)
			n++
		}
	}
	return n, nil
}

func (m *MemoryStore) CountByFileID(ctx context.Context, kbID, fileID string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var n int64
	for _, s := range m.segments[kbID] {
		if s.FileID == fileID {
			n++
		}
	}
	return n, nil
}

func (m *MemoryStore) SimilaritySearch(ctx context.Context, req SearchRequest) ([]*entity.SearchCandidate, error) {
	if ok, _ := m.KnowledgeBaseExists(ctx, req.KnowledgeBaseID); !ok {
		return nil, notFound("vectorstore.search", req.KnowledgeBaseID)
	}

	query, err := resolveQueryVector(ctx, m.embedder, req)
	if err != nil {
		return nil, err
	}
	topK := req.TopK
	if topK <= 0 {
		topK = DefaultTopK
	}

	m.mu.RLock()
	var out []*entity.SearchCandidate
	for _, s := range m.segments[req.KnowledgeBaseID] {
		sim := cosine(query, s.Vector)
		if sim < req.Threshold {
			continue
		}
		out = append(out, &entity.SearchCandidate{
			Segment:        cloneSegment(s),
			Score:          clampScore(sim),
			SourceStrategy: entity.StrategyVector,
		})
	}
	m.mu.RUnlock()

	sortCandidates(out)
	if len(out) > topK {
		out = out[:topK]
	}
	return out, nil
}

func (m *MemoryStore) KeywordCandidates(ctx context.Context, kbID string, keywords []string, limit int) ([]*entity.Segment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	bucket, ok := m.segments[kbID]
	if !ok {
		return nil, notFound("vectorstore.keyword", kbID)
	}
	if len(keywords) == 0 {
		return nil, nil
	}

	var out []*entity.Segment
	hits := make(map[*entity.Segment]int)
	for _, s := range bucket {
		text := strings.ToLower(s.Text)
		n := 0
		for _, kw := range keywords {
			if kw != "" && strings.Contains(text, strings.ToLower(kw)) {
				n++
			}
		}
		if n > 0 {
			c := cloneSegment(s)
			hits[c] = n
			out = append(out, c)
		}
	}
	// Most keyword hits first so the limit keeps the strongest candidates.
	sort.Slice(out, func(i, j int) bool {
		if hits[out[i]] != hits[out[j]] {
			return hits[out[i]] > hits[out[j]]
		}
		if out[i].FileID != out[j].FileID {
			return out[i].FileID < out[j].FileID
		}
		return out[i].Ordinal < out[j].Ordinal
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryStore) Stats(ctx context.Context, kbID string) (*entity.KnowledgeBaseStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	bucket, ok := m.segments[kbID]
	if !ok {
		return nil, notFound("vectorstore.stats", kbID)
	}
	stats := &entity.KnowledgeBaseStats{SegmentCount: int64(len(bucket))}
	files := make(map[string]struct{})
	for _, s := range bucket {
		files[s.FileID] = struct{}{}
		if stats.Dimension == 0 {
			stats.Dimension = len(s.Vector)
		}
	}
	stats.FileCount = int64(len(files))
	return stats, nil
}

func cloneSegment(s *entity.Segment) *entity.Segment {
	c := *s
	c.Vector = append([]float32(nil), s.Vector...)
	if s.Metadata != nil {
		c.Metadata = make(map[string]interface{}, len(s.Metadata))
		for k, v := range s.Metadata {
			c.Metadata[k] = v
		}
	}
	return &c
}
