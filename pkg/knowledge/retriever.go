// Package knowledge defines the retriever contract consumed by
// retrieval-augmented graphs and the knowledge-search tool, plus a small
// in-memory keyword retriever useful for tests and local setups.
package knowledge

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// Document is one retrieval hit.
type Document struct {
	Content  string                 `json:"content"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
	Score    float64                `json:"score"`
}

// Retriever is the search contract. Backends range from the in-memory
// keyword index below to external vector stores.
type Retriever interface {
	Search(ctx context.Context, query string, k int) ([]Document, error)
}

// KeywordRetriever is an in-memory retriever scoring documents by word
// overlap with the query. It is not semantic search.
type KeywordRetriever struct {
	mu   sync.RWMutex
	docs []Document
}

// NewKeywordRetriever creates an empty retriever.
func NewKeywordRetriever() *KeywordRetriever {
	return &KeywordRetriever{}
}

// Add indexes a document.
func (r *KeywordRetriever) Add(content string, metadata map[string]interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.docs = append(r.docs, Document{Content: content, Metadata: metadata})
}

// Len returns the number of indexed documents.
func (r *KeywordRetriever) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.docs)
}

// Search returns up to k documents sharing at least one query word, highest
// overlap first. Ties keep insertion order.
func (r *KeywordRetriever) Search(_ context.Context, query string, k int) ([]Document, error) {
	if k <= 0 {
		k = 5
	}

	words := queryWords(query)
	if len(words) == 0 {
		return nil, nil
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	type scored struct {
		doc   Document
		score float64
		order int
	}

	var hits []scored
	for i, doc := range r.docs {
		score := OverlapScore(doc.Content, words)
		if score <= 0 {
			continue
		}
		d := doc
		d.Score = score
		hits = append(hits, scored{doc: d, score: score, order: i})
	}

	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].score > hits[j].score
	})

	if len(hits) > k {
		hits = hits[:k]
	}
	out := make([]Document, len(hits))
	for i, h := range hits {
		out[i] = h.doc
	}
	return out, nil
}

func queryWords(query string) map[string]struct{} {
	fields := strings.Fields(strings.ToLower(query))
	words := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		f = strings.Trim(f, ".,;:!?\"'()")
		if f != "" {
			words[f] = struct{}{}
		}
	}
	return words
}

// OverlapScore returns the fraction of query words present in the text.
func OverlapScore(text string, words map[string]struct{}) float64 {
	if len(words) == 0 {
		return 0
	}
	lower := strings.ToLower(text)
	matched := 0
	for w := range words {
		if strings.Contains(lower, w) {
			matched++
		}
	}
	return float64(matched) / float64(len(words))
}
