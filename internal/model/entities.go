package model

import (
	"strings"
	"unicode"
)

// ExtractEntityNames is the lightweight entity matcher spec.md §4.4
// explicitly allows ("exact-match or trivial NER; the algorithm is
// allowed to be simple — the fusion step masks its weakness"): every
// capitalized token of length > 2 (after trimming punctuation other than
// '-'), including sentence-initial words, deduplicated case-insensitively
// and order-preserved. Shared by L1→L2 entity
// extraction (internal/fractalmemory) and the Hybrid Retriever's
// graph-search seeding (internal/retrieval) so both derive entities the
// same way.
func ExtractEntityNames(text string) []string {
	fields := strings.Fields(text)
	seen := make(map[string]struct{})
	var names []string
	for _, word := range fields {
		trimmed := strings.TrimFunc(word, func(r rune) bool {
			return unicode.IsPunct(r) && r != '-'
		})
		if len(trimmed) <= 2 {
			continue
		}
		first := firstRune(trimmed)
		if !unicode.IsUpper(first) {
			continue
		}
		key := strings.ToLower(trimmed)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		names = append(names, trimmed)
	}
	return names
}

func firstRune(s string) rune {
	for _, r := range s {
		return r
	}
	return 0
}

// EntityID derives a stable, deterministic entity identifier from a
// display name so the same name always resolves to the same node across
// one user's episodes (namespaced by user to satisfy invariant 3.3.4).
func EntityID(userID, name string) string {
	return userID + ":entity:" + strings.ToLower(strings.TrimSpace(name))
}
