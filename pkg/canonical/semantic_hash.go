package canonical

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"sort"
	"strings"
)

// maxBodyChars bounds how much of the body participates in the semantic
// hash.
const maxBodyChars = 500

var nonWord = regexp.MustCompile(`[^\w]+`)

// normalizeText 's normalization: lowercase, replace
// non-word characters with spaces, collapse whitespace, split, drop tokens
// of length <= 2, sort tokens, join with a single space.
func normalizeText(s string) string {
	lower := strings.ToLower(s)
	spaced := nonWord.ReplaceAllString(lower, " ")
	fields := strings.Fields(spaced)
	tokens := fields[:0:0]
	for _, f := range fields {
		if len(f) > 2 {
			tokens = append(tokens, f)
		}
	}
	sort.Strings(tokens)
	return strings.Join(tokens, " ")
}

// ComputeSemanticHash derives the 64-hex-char fingerprint from a title, body,
// and keyword list, Keyword order never affects the
// result: keywords are lowercased and sorted before joining.
func ComputeSemanticHash(title, body string, keywords []string) string {
	normalizedTitle := normalizeText(title)

	truncatedBody := body
	if len(truncatedBody) > maxBodyChars {
		truncatedBody = truncatedBody[:maxBodyChars]
	}
	normalizedBody := normalizeText(truncatedBody)

	sortedKeywords := make([]string, len(keywords))
	for i, k := range keywords {
		sortedKeywords[i] = strings.ToLower(strings.TrimSpace(k))
	}
	sort.Strings(sortedKeywords)

	combined := strings.Join([]string{
		normalizedTitle,
		normalizedBody,
		strings.Join(sortedKeywords, " "),
	}, " | ")

	sum := sha256.Sum256([]byte(combined))
	return hex.EncodeToString(sum[:])
}
