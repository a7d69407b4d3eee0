package graphstore

import (
	"context"
	"fmt"
	"sync"

	"github.com/blevesearch/bleve/v2"
)

// keywordDoc is the bleve-indexed projection of an episode: just enough
// to score BM25 matches over content + summary (spec.md §4.2
// keyword_search), grounded on other_examples' bleve + vector dual-arm
// retrievers.
type keywordDoc struct {
	UserID  string `json:"user_id"`
	Content string `json:"content"`
	Summary string `json:"summary"`
}

// KeywordIndex is a per-process bleve full-text index over episode
// content/summary, one bleve.Index per user to keep BM25 document
// frequencies scoped correctly.
type KeywordIndex struct {
	mu      sync.RWMutex
	indices map[string]bleve.Index
}

// NewKeywordIndex returns an empty, in-memory keyword index.
func NewKeywordIndex() *KeywordIndex {
	return &KeywordIndex{indices: make(map[string]bleve.Index)}
}

func (k *KeywordIndex) indexFor(userID string) (bleve.Index, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if idx, ok := k.indices[userID]; ok {
		return idx, nil
	}
	idx, err := bleve.NewMemOnly(bleve.NewIndexMapping())
	if err != nil {
		return nil, fmt.Errorf("create bleve index for %s: %w", userID, err)
	}
	k.indices[userID] = idx
	return idx, nil
}

// Index upserts episodeID's content/summary into userID's keyword index.
func (k *KeywordIndex) Index(userID, episodeID, content, summary string) error {
	idx, err := k.indexFor(userID)
	if err != nil {
		return err
	}
	return idx.Index(episodeID, keywordDoc{UserID: userID, Content: content, Summary: summary})
}

// Delete removes episodeID from userID's keyword index, if present.
func (k *KeywordIndex) Delete(userID, episodeID string) error {
	k.mu.RLock()
	idx, ok := k.indices[userID]
	k.mu.RUnlock()
	if !ok {
		return nil
	}
	return idx.Delete(episodeID)
}

// Search ranks episodes by BM25 score for queryText, returning up to k
// hits.
func (k *KeywordIndex) Search(_ context.Context, userID, queryText string, kLimit int) ([]SearchHit, error) {
	k.mu.RLock()
	idx, ok := k.indices[userID]
	k.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	query := bleve.NewMatchQuery(queryText)
	req := bleve.NewSearchRequestOptions(query, kLimit, 0, false)
	res, err := idx.Search(req)
	if err != nil {
		return nil, fmt.Errorf("bleve search: %w", err)
	}
	hits := make([]SearchHit, 0, len(res.Hits))
	for _, hit := range res.Hits {
		hits = append(hits, SearchHit{EpisodeID: hit.ID, Score: hit.Score})
	}
	return hits, nil
}
