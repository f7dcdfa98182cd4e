// Package chunker splits canonical objects into ordered, retrievable text
// chunks.
package chunker

import (
	"errors"
	"fmt"
	"strings"

	"github.com/codeready-toolchain/kgraph-pipeline/pkg/canonical"
)

// Method identifies which chunking strategy produced a chunk.
type Method string

const (
	MethodFixedSize  Method = "fixed-size"
	MethodSemantic   Method = "semantic"
	MethodRelational Method = "relational"
	MethodFullText   Method = "full_text"
)

// Strategy selects the chunking algorithm.
type Strategy string

const (
	StrategyFixedSize  Strategy = "fixed-size"
	StrategySemantic   Strategy = "semantic"
	StrategyRelational Strategy = "relational"
)

// ErrInvalidOverlap is a ConfigError: Chunk refuses to run with
// overlap >= maxChunkSize (or a negative overlap).
var ErrInvalidOverlap = errors.New("chunker: overlap must be less than maxChunkSize")

// ErrInvalidMaxChunkSize is a ConfigError for a non-positive maxChunkSize.
var ErrInvalidMaxChunkSize = errors.New("chunker: maxChunkSize must be positive")

// Config controls one Chunk() invocation.
type Config struct {
	Strategy         Strategy
	MaxChunkSize     int
	Overlap          int
	PreserveMetadata bool
}

// Validate checks the configuration-error conditions: an
// invalid overlap (>= maxChunkSize) or non-positive maxChunkSize is a
// configuration error, not a per-object failure.
func (c Config) Validate() error {
	if c.MaxChunkSize <= 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidMaxChunkSize, c.MaxChunkSize)
	}
	if c.Overlap >= c.MaxChunkSize {
		return fmt.Errorf("%w: overlap=%d maxChunkSize=%d", ErrInvalidOverlap, c.Overlap, c.MaxChunkSize)
	}
	if c.Overlap < 0 {
		return fmt.Errorf("%w: overlap must be non-negative, got %d", ErrInvalidOverlap, c.Overlap)
	}
	return nil
}

// Chunk is one retrievable text fragment of a canonical object.
type Chunk struct {
	ID                string
	CanonicalObjectID string
	ChunkIndex        int
	Content           string
	Method            Method
	Metadata          map[string]interface{}
	Embedding         []float32
}

// Stats are the aggregate statistics says a chunker "returns on
// demand".
type Stats struct {
	TotalChunks    int
	AvgChunkSize   float64
	MinChunkSize   int
	MaxChunkSize   int
	TotalChunkSize int
}

// Chunker splits one canonical object into an ordered chunk sequence.
type Chunker struct{}

// New returns a ready-to-use Chunker. It carries no state because
// chunking is a pure function of (object, config).
func New() *Chunker {
	return &Chunker{}
}

// Chunk An object whose combined text is empty
// produces zero chunks without error.
func (c *Chunker) Chunk(obj canonical.Object, cfg Config) ([]Chunk, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var pieces []string
	var method Method
	switch cfg.Strategy {
	case StrategyFixedSize, "":
		pieces = fixedSizeSplit(obj.CombinedText(), cfg.MaxChunkSize, cfg.Overlap)
		method = MethodFixedSize
	case StrategySemantic:
		pieces = semanticSplit(obj.CombinedText(), cfg.MaxChunkSize)
		method = MethodSemantic
	case StrategyRelational:
		pieces = relationalSplit(obj)
		method = MethodRelational
	default:
		return nil, fmt.Errorf("chunker: unknown strategy %q", cfg.Strategy)
	}

	chunks := make([]Chunk, 0, len(pieces))
	total := len(pieces)
	for i, content := range pieces {
		if strings.TrimSpace(content) == "" {
			continue
		}
		chunk := Chunk{
			ID:                fmt.Sprintf("%s#%d", obj.ID, i),
			CanonicalObjectID: obj.ID,
			ChunkIndex:        len(chunks),
			Content:           content,
			Method:            method,
		}
		if cfg.PreserveMetadata {
			chunk.Metadata = map[string]interface{}{
				"object_id":      obj.ID,
				"object_type":    obj.ObjectType,
				"platform":       obj.Platform,
				"title":          obj.Title,
				"chunk_of_total": total,
			}
		}
		chunks = append(chunks, chunk)
	}
	// Re-derive contiguous indices and chunk_of_total after dropping blanks,
	// since the loop above may have skipped some pieces.
	for i := range chunks {
		chunks[i].ChunkIndex = i
		if chunks[i].Metadata != nil {
			chunks[i].Metadata["chunk_of_total"] = len(chunks)
		}
	}
	return chunks, nil
}

// Stats computes aggregate statistics over a chunk slice.
func (c *Chunker) Stats(chunks []Chunk) Stats {
	if len(chunks) == 0 {
		return Stats{}
	}
	stats := Stats{
		TotalChunks:  len(chunks),
		MinChunkSize: len(chunks[0].Content),
		MaxChunkSize: len(chunks[0].Content),
	}
	for _, ch := range chunks {
		size := len(ch.Content)
		stats.TotalChunkSize += size
		if size < stats.MinChunkSize {
			stats.MinChunkSize = size
		}
		if size > stats.MaxChunkSize {
			stats.MaxChunkSize = size
		}
	}
	stats.AvgChunkSize = float64(stats.TotalChunkSize) / float64(stats.TotalChunks)
	return stats
}

// fixedSizeSplit splits by character count with `overlap` characters shared
// between adjacent chunks.
func fixedSizeSplit(text string, maxSize, overlap int) []string {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}
	step := maxSize - overlap
	if step <= 0 {
		step = maxSize
	}
	var pieces []string
	for start := 0; start < len(runes); start += step {
		end := start + maxSize
		if end > len(runes) {
			end = len(runes)
		}
		pieces = append(pieces, string(runes[start:end]))
		if end == len(runes) {
			break
		}
	}
	return pieces
}

// semanticSplit prefers paragraph, then sentence, boundaries while
// respecting maxSize. Paragraphs are split on blank lines; any paragraph
// still too large is split on sentence-ending punctuation; anything still
// too large falls back to a hard fixed-size cut so the maxSize contract is
// never violated.
func semanticSplit(text string, maxSize int) []string {
	paragraphs := strings.Split(text, "\n\n")
	var pieces []string
	var current strings.Builder

	flush := func() {
		if current.Len() > 0 {
			pieces = append(pieces, current.String())
			current.Reset()
		}
	}

	appendUnit := func(unit string) {
		if current.Len() > 0 && current.Len()+len(unit)+1 > maxSize {
			flush()
		}
		if len(unit) > maxSize {
			flush()
			pieces = append(pieces, fixedSizeSplit(unit, maxSize, 0)...)
			return
		}
		if current.Len() > 0 {
			current.WriteString(" ")
		}
		current.WriteString(unit)
	}

	for _, para := range paragraphs {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		if len(para) <= maxSize {
			appendUnit(para)
			continue
		}
		for _, sentence := range splitSentences(para) {
			appendUnit(sentence)
		}
	}
	flush()
	return pieces
}

func splitSentences(text string) []string {
	var sentences []string
	var current strings.Builder
	for _, r := range text {
		current.WriteRune(r)
		if r == '.' || r == '!' || r == '?' {
			sentences = append(sentences, strings.TrimSpace(current.String()))
			current.Reset()
		}
	}
	if current.Len() > 0 {
		sentences = append(sentences, strings.TrimSpace(current.String()))
	}
	return sentences
}

// relationalSplit emits one chunk per logically meaningful sub-unit: per
// message for thread-shaped objects, per comment for issue-shaped objects,
// falling back to a single full-text chunk when neither is present.
func relationalSplit(obj canonical.Object) []string {
	if units := subUnits(obj.Properties["messages"]); len(units) > 0 {
		return units
	}
	if units := subUnits(obj.Properties["comments"]); len(units) > 0 {
		return units
	}
	text := obj.CombinedText()
	if text == "" {
		return nil
	}
	return []string{text}
}

// subUnits renders an array-of-maps properties field (e.g. "messages" or
// "comments", each shaped {author, text, at}) into one string per entry.
// Malformed entries are skipped rather than erroring.
func subUnits(v interface{}) []string {
	list, ok := v.([]interface{})
	if !ok {
		return nil
	}
	var out []string
	for _, item := range list {
		m, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		text, _ := m["text"].(string)
		if strings.TrimSpace(text) == "" {
			continue
		}
		if author, ok := m["author"].(string); ok && author != "" {
			out = append(out, author+": "+text)
		} else {
			out = append(out, text)
		}
	}
	return out
}
