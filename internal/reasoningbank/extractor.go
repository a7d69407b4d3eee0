package reasoningbank

import (
	"sort"
	"strings"
	"unicode"
)

// minSignatureTokenLen and signaturePresenceThreshold implement spec.md
// §4.5's "common-keyword signature (tokens with length > 3 present in
// > 50% of action texts, ranked by frequency)".
const (
	minSignatureTokenLen      = 3
	signaturePresenceFraction = 0.5
	maxSignatureTokens        = 5
)

// keywordSignature returns up to maxSignatureTokens tokens, longer than
// minSignatureTokenLen characters, that appear in more than
// signaturePresenceFraction of the given texts, ranked by total frequency.
// Grounded on the teacher's regex/token extraction style in spirit
// (case-insensitive, punctuation-stripped word splitting) but simplified
// to a frequency signature since the fusion-masked accuracy spec.md §4.4
// licenses for entity extraction applies equally here: the algorithm is
// allowed to be simple.
func keywordSignature(texts []string) []string {
	if len(texts) == 0 {
		return nil
	}

	counts := make(map[string]int)
	presence := make(map[string]int)
	for _, text := range texts {
		seen := make(map[string]struct{})
		for _, tok := range tokenize(text) {
			if len(tok) <= minSignatureTokenLen {
				continue
			}
			counts[tok]++
			if _, ok := seen[tok]; !ok {
				presence[tok]++
				seen[tok] = struct{}{}
			}
		}
	}

	threshold := float64(len(texts)) * signaturePresenceFraction
	var candidates []string
	for tok, p := range presence {
		if float64(p) > threshold {
			candidates = append(candidates, tok)
		}
	}

	sort.Slice(candidates, func(i, j int) bool {
		if counts[candidates[i]] != counts[candidates[j]] {
			return counts[candidates[i]] > counts[candidates[j]]
		}
		return candidates[i] < candidates[j]
	})

	if len(candidates) > maxSignatureTokens {
		candidates = candidates[:maxSignatureTokens]
	}
	return candidates
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
