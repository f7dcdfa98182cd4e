package relation

// Normalized is a relation reduced to its undirected, type-agnostic identity
// for set-membership comparisons against ground truth.
type Normalized struct {
	Low  string
	High string
}

// Normalize reduces a (from, to) pair to min(from,to) | max(from,to) — ID
// pair only, undirected, type-agnostic. This decouples "these two are
// related" (the testable property) from the specific type the inferrer
// labels the edge with, and is symmetric by construction.
func Normalize(from, to string) Normalized {
	low, high := from, to
	if high < low {
		low, high = high, low
	}
	return Normalized{Low: low, High: high}
}

// excludedGroundTruthSources are filtered out before ground truth is
// compared against inferred relations.
var excludedGroundTruthSources = map[string]bool{
	"human_verified_unrelated": true,
	"human_uncertain":          true,
}

// IsComparableGroundTruthSource reports whether a ground-truth record's
// source participates in validation matching.
func IsComparableGroundTruthSource(source string) bool {
	return !excludedGroundTruthSources[source]
}
