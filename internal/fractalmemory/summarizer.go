package fractalmemory

import (
	"encoding/json"
	"regexp"
	"strings"
)

// batchSummary is the external summariser's expected response shape per
// spec.md §4.3 step 1: a JSON object with summary, importance, and
// source_count.
type batchSummary struct {
	Summary      string  `json:"summary"`
	Importance   float64 `json:"importance"`
	SourceCount  int     `json:"source_count"`
}

var codeFenceRE = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)\\s*```")

// coerceSummary strips leading code fences and non-JSON prefixes from raw,
// then parses it as a batchSummary. If parsing still fails, it falls back
// to a deterministic summary built from the source contents themselves:
// their concatenated first sentences, with importance the mean of their
// own importance scores.
func coerceSummary(raw string, sources []string, sourceImportance []float64) batchSummary {
	candidate := raw
	if m := codeFenceRE.FindStringSubmatch(candidate); m != nil {
		candidate = m[1]
	}
	if i := strings.IndexByte(candidate, '{'); i > 0 {
		candidate = candidate[i:]
	}
	if j := strings.LastIndexByte(candidate, '}'); j >= 0 && j < len(candidate)-1 {
		candidate = candidate[:j+1]
	}

	var parsed batchSummary
	if err := json.Unmarshal([]byte(candidate), &parsed); err == nil && parsed.Summary != "" {
		if parsed.SourceCount == 0 {
			parsed.SourceCount = len(sources)
		}
		return parsed
	}

	return deterministicSummary(sources, sourceImportance)
}

// deterministicSummary builds the fallback summary per spec.md §4.3 step 1:
// concatenated first sentences, importance = mean of inputs.
func deterministicSummary(sources []string, sourceImportance []float64) batchSummary {
	var sentences []string
	for _, s := range sources {
		sentences = append(sentences, firstSentence(s))
	}

	var sum float64
	for _, imp := range sourceImportance {
		sum += imp
	}
	mean := 0.0
	if len(sourceImportance) > 0 {
		mean = sum / float64(len(sourceImportance))
	}

	return batchSummary{
		Summary:     strings.Join(sentences, " "),
		Importance:  mean,
		SourceCount: len(sources),
	}
}

func firstSentence(text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}
	if i := strings.IndexAny(text, ".!?"); i >= 0 {
		return strings.TrimSpace(text[:i+1])
	}
	return text
}
