package fathom

import (
	"regexp"
	"strings"
)

// Query routing: pure lexical classification of a query into intent flags and
// per-modality retrieval weights. No external calls, no side effects — tested
// as a table of (query → expected intent) pairs.

var (
	// Comparison operator words signal a structured query.
	comparisonRe = regexp.MustCompile(`\b(greater than|less than|more than|fewer than|above|below|over|under|at least|at most|exceeds?|exceeding)\b`)

	// Explicit numeric range: "between X and Y".
	rangeRe = regexp.MustCompile(`\bbetween\s+\$?\d+(?:\.\d+)?\s+and\s+\$?\d+(?:\.\d+)?\b`)

	// Aggregation verbs.
	aggregationRe = regexp.MustCompile(`\b(average|avg|total|sum|count|how many|maximum|max|minimum|min|median|mean)\b`)

	// Time references: explicit positions ("at 12 minutes", "5 minutes in",
	// "12:30") and relative markers ("beginning", "end of", "later in").
	temporalRe = regexp.MustCompile(`\b(at\s+\d+(?:\.\d+)?\s*(?:minutes?|mins?|seconds?|secs?)|\d+(?:\.\d+)?\s*(?:minutes?|mins?|seconds?|secs?)\s+in(?:to)?\b|\d{1,2}:\d{2}|beginning|start of|end of|the end|early in|later in|earlier in|halfway)`)
)

// Boost added to a modality's base weight when its intent signal fires.
const intentBoost = 2.0

// RouteQuery classifies query text and derives per-modality retrieval
// weights. Detection categories are independent: a query may be structured,
// aggregating, and temporal at once, and every query keeps a semantic
// component. Boosts are additive, so conflicting signals resolve
// deterministically instead of excluding each other.
func RouteQuery(query string) Route {
	q := strings.ToLower(strings.TrimSpace(query))

	intent := QueryIntent{
		Comparison:  comparisonRe.MatchString(q),
		Range:       rangeRe.MatchString(q),
		Aggregation: aggregationRe.MatchString(q),
		Temporal:    temporalRe.MatchString(q),
	}
	intent.Structured = intent.Comparison || intent.Range
	// Semantic is the default and remains a secondary signal even when
	// structured or temporal intent is detected.
	intent.Semantic = true

	weights := Weights{
		ModalityText:  1,
		ModalityImage: 1,
		ModalityTable: 1,
		ModalityAudio: 1,
	}
	if intent.Structured || intent.Aggregation {
		weights[ModalityTable] += intentBoost
	}
	if intent.Temporal {
		weights[ModalityAudio] += intentBoost
	}
	normalize(weights)

	tableKind := KindCaption
	if intent.Structured || intent.Aggregation {
		tableKind = KindSerialization
	}

	return Route{Weights: weights, Intent: intent, TableKind: tableKind}
}

// normalize scales weights in place so they sum to 1.
func normalize(w Weights) {
	var sum float64
	for _, v := range w {
		sum += v
	}
	if sum == 0 {
		return
	}
	for m, v := range w {
		w[m] = v / sum
	}
}
