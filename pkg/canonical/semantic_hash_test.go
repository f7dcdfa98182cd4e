package canonical

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComputeSemanticHash_StableUnderKeywordShuffle(t *testing.T) {
	keywords := []string{"api", "rate", "limit", "outage"}
	h1 := ComputeSemanticHash("Title here", "Some body text", keywords)

	shuffled := append([]string(nil), keywords...)
	rand.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
	h2 := ComputeSemanticHash("Title here", "Some body text", shuffled)

	assert.Equal(t, h1, h2)
	assert.Len(t, h1, 64)
}

func TestComputeSemanticHash_DifferentContentDiffers(t *testing.T) {
	h1 := ComputeSemanticHash("Alpha", "body one", nil)
	h2 := ComputeSemanticHash("Beta", "body two", nil)
	assert.NotEqual(t, h1, h2)
}

func TestComputeSemanticHash_TruncatesBody(t *testing.T) {
	shortBody := "word "
	longBody := ""
	for i := 0; i < 200; i++ {
		longBody += shortBody
	}
	// Both bodies share an identical first 500 characters and differ only
	// in their tails, so once the body is truncated their hashes must match.
	paddedA := longBody + "UNIQUE_TAIL_A"
	paddedB := longBody + "UNIQUE_TAIL_B"
	assert.Equal(t,
		ComputeSemanticHash("t", paddedA, nil),
		ComputeSemanticHash("t", paddedB, nil),
	)
}
