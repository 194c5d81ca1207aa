package retrieval

import (
	"context"
	"strings"
	"unicode"

	"ai-knowledge-be/internal/entity"
)

const (
	MaxKeywords = 10

	phraseBoost      = 0.2
	nearMatchCredit  = 0.5
	keywordPoolLimit = 200
)

var stopWords = map[string]struct{}{
	"a": {}, "an": {}, "the": {}, "and": {}, "or": {}, "but": {}, "is": {}, "are": {}, "was": {}, "were": {},
	"be": {}, "been": {}, "to": {}, "of": {}, "in": {}, "on": {}, "at": {}, "by": {}, "for": {}, "with": {},
	"from": {}, "about": {}, "as": {}, "it": {}, "its": {}, "this": {}, "that": {}, "these": {}, "those": {},
	"what": {}, "which": {}, "who": {}, "how": {}, "why": {}, "when": {}, "where": {}, "do": {}, "does": {},
	"did": {}, "can": {}, "could": {}, "should": {}, "would": {}, "i": {}, "me": {}, "my": {}, "you": {},
	"your": {}, "we": {}, "our": {}, "please": {}, "tell": {},
	"的": {}, "了": {}, "在": {}, "是": {}, "我": {}, "有": {}, "和": {}, "吗": {}, "呢": {}, "吧": {},
	"啊": {}, "也": {}, "都": {}, "就": {}, "与": {}, "及": {}, "或": {}, "这": {}, "那": {}, "什么": {},
	"怎么": {}, "如何": {}, "为什么": {},
}

func isHan(r rune) bool {
	return unicode.Is(unicode.Han, r)
}

type token struct {
	text string
	han  bool
}

// tokenize lowercases text and splits it, in order, into Latin/digit words
// and runs of Han characters.
func tokenize(text string) []token {
	var (
		out    []token
		cur    []rune
		curHan bool
	)
	flush := func() {
		if len(cur) > 0 {
			out = append(out, token{text: string(cur), han: curHan})
			cur = cur[:0]
		}
	}

	for _, r := range strings.ToLower(text) {
		switch {
		case isHan(r):
			if !curHan {
				flush()
				curHan = true
			}
			cur = append(cur, r)
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			if curHan {
				flush()
				curHan = false
			}
			cur = append(cur, r)
		default:
			flush()
		}
	}
	flush()
	return out
}

// bigrams cuts a Han run into overlapping two-character terms. A single
// character run is returned as is.
func bigrams(run string) []string {
	runes := []rune(run)
	if len(runes) < 2 {
		return []string{run}
	}
	out := make([]string, 0, len(runes)-1)
	for i := 0; i+1 < len(runes); i++ {
		out = append(out, string(runes[i:i+2]))
	}
	return out
}

// ExtractKeywords returns up to MaxKeywords distinct lowercase terms in query
// order: Latin words longer than one character and Han bigrams, minus stop
// words.
func ExtractKeywords(query string) []string {
	seen := make(map[string]struct{})
	var out []string
	add := func(term string) {
		if len(out) >= MaxKeywords {
			return
		}
		if _, stop := stopWords[term]; stop {
			return
		}
		if _, dup := seen[term]; dup {
			return
		}
		seen[term] = struct{}{}
		out = append(out, term)
	}

	for _, tok := range tokenize(query) {
		if !tok.han {
			if len([]rune(tok.text)) > 1 {
				add(tok.text)
			}
			continue
		}
		if _, stop := stopWords[tok.text]; stop {
			continue
		}
		for _, b := range bigrams(tok.text) {
			add(b)
		}
	}
	return out
}

// KeywordScore scores text against keywords. Each keyword found as a whole
// word (or, for Han terms, as a substring) counts 1; a keyword that only
// prefixes a word counts half. The sum is divided by the number of
// keywords, phraseBoost is added when the whole query appears verbatim, and
// the result is capped at 1.
func KeywordScore(text, query string, keywords []string) float64 {
	if len(keywords) == 0 {
		return 0
	}
	lower := strings.ToLower(text)
	var words []string
	wordSet := make(map[string]struct{})
	for _, tok := range tokenize(text) {
		if !tok.han {
			words = append(words, tok.text)
			wordSet[tok.text] = struct{}{}
		}
	}

	var credit float64
	for _, kw := range keywords {
		kw = strings.ToLower(kw)
		if kw == "" {
			continue
		}
		if hasHan(kw) {
			if strings.Contains(lower, kw) {
				credit++
			}
			continue
		}
		if _, ok := wordSet[kw]; ok {
			credit++
			continue
		}
		for _, w := range words {
			if strings.HasPrefix(w, kw) {
				credit += nearMatchCredit
				break
			}
		}
	}

	score := credit / float64(len(keywords))
	if phrase := normalizePhrase(query); phrase != "" && strings.Contains(normalizePhrase(text), phrase) {
		score += phraseBoost
	}
	if score > 1 {
		score = 1
	}
	return score
}

func hasHan(s string) bool {
	for _, r := range s {
		if isHan(r) {
			return true
		}
	}
	return false
}

func normalizePhrase(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

type KeywordRequest struct {
	KnowledgeBaseID string
	Query           string
	// Keywords overrides extraction from Query when set.
	Keywords []string
	TopK     int
	MinScore float64
}

type KeywordSearch struct {
	store SegmentStore
}

func NewKeywordSearch(store SegmentStore) *KeywordSearch {
	return &KeywordSearch{store: store}
}

func (k *KeywordSearch) Search(ctx context.Context, req KeywordRequest) ([]*entity.SearchCandidate, error) {
	keywords := req.Keywords
	if len(keywords) == 0 {
		keywords = ExtractKeywords(req.Query)
	}
	if len(keywords) > MaxKeywords {
		keywords = keywords[:MaxKeywords]
	}
	if len(keywords) == 0 {
		return nil, nil
	}

	segments, err := k.store.KeywordCandidates(ctx, req.KnowledgeBaseID, keywords, keywordPoolLimit)
	if err != nil {
		return nil, err
	}

	out := make([]*entity.SearchCandidate, 0, len(segments))
	for _, s := range segments {
		score := KeywordScore(s.Text, req.Query, keywords)
		if score <= 0 || score < req.MinScore {
			continue
		}
		out = append(out, &entity.SearchCandidate{
			Segment:        s,
			Score:          score,
			KeywordScore:   score,
			SourceStrategy: entity.StrategyKeyword,
		})
	}
	sortByScore(out)
	return truncate(out, topKOrDefault(req.TopK)), nil
}
