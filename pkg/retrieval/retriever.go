// Package retrieval implements the Retriever Adapter:
// embed a query once, fetch the nearest chunks above a similarity
// threshold, and optionally widen the result set by walking the relation
// graph a fixed number of hops.
package retrieval

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/codeready-toolchain/kgraph-pipeline/pkg/embedding"
	"github.com/codeready-toolchain/kgraph-pipeline/pkg/relation"
	"github.com/codeready-toolchain/kgraph-pipeline/pkg/store"
)

// Options controls one Retrieve call.
type Options struct {
	SimilarityThreshold float64
	ChunkLimit          int
	IncludeRelations    bool
	RelationDepth       int
}

// ResultChunk is one retrieved chunk.
type ResultChunk struct {
	CanonicalObjectID string
	Content           string
	Similarity        float64
}

// Stats accompanies a Result with timing information.
type Stats struct {
	RetrievalTimeMs float64
}

// Result is the full Retrieve outcome.
type Result struct {
	Chunks []ResultChunk
	Stats  Stats
}

// Retriever embeds a query and fetches nearest chunks by vector
// distance, optionally widened by a relation-graph walk.
type Retriever struct {
	vectors  store.VectorSearcher
	embedder *embedding.Adapter
	cache    *QueryCache
	now      func() time.Time
}

// New constructs a Retriever with no result cache. now defaults to
// time.Now and is only overridden in tests that need deterministic
// timing.
func New(vectors store.VectorSearcher, embedder *embedding.Adapter) *Retriever {
	return &Retriever{vectors: vectors, embedder: embedder, now: time.Now}
}

// WithCache attaches a QueryCache; a nil cache is accepted and simply
// disables caching.
func (r *Retriever) WithCache(cache *QueryCache) *Retriever {
	r.cache = cache
	return r
}

// Retrieve: embed the query once, fetch top-N
// chunks above opts.SimilarityThreshold, order by descending similarity
// with stable insertion-order tiebreaking. When opts.IncludeRelations is
// set, it also appends one entry for every object reachable within
// opts.RelationDepth hops of a directly-retrieved object in relations;
// such an entry carries only the object id, with empty Content and
// similarity 0, and that object's stored chunks are not fetched.
func (r *Retriever) Retrieve(ctx context.Context, queryText string, opts Options, relations []relation.Relation) (Result, error) {
	start := r.now()

	if cached, ok := r.cache.Get(ctx, queryText, opts); ok {
		return cached, nil
	}

	embedded, err := r.embedder.Embed(ctx, queryText)
	if err != nil {
		return Result{}, fmt.Errorf("retrieval: embedding query failed: %w", err)
	}

	limit := opts.ChunkLimit
	if limit <= 0 {
		limit = 10
	}
	hits, err := r.vectors.NearestChunks(ctx, embedded.Embedding, opts.SimilarityThreshold, limit)
	if err != nil {
		return Result{}, fmt.Errorf("retrieval: vector search failed: %w", err)
	}

	chunks := make([]ResultChunk, 0, len(hits))
	seenObjects := make(map[string]struct{}, len(hits))
	for _, h := range hits {
		chunks = append(chunks, ResultChunk{
			CanonicalObjectID: h.CanonicalObjectID,
			Content:           h.Content,
			Similarity:        h.Similarity,
		})
		seenObjects[h.CanonicalObjectID] = struct{}{}
	}

	if opts.IncludeRelations && opts.RelationDepth > 0 && len(chunks) > 0 {
		reachable := reachableWithinHops(relations, seenObjects, opts.RelationDepth)
		for objID := range reachable {
			if _, already := seenObjects[objID]; already {
				continue
			}
			chunks = append(chunks, ResultChunk{CanonicalObjectID: objID, Similarity: 0})
			seenObjects[objID] = struct{}{}
		}
	}

	// Primary sort by similarity descending; stable so ties preserve
	// insertion (vector-search) order,
	sort.SliceStable(chunks, func(i, j int) bool { return chunks[i].Similarity > chunks[j].Similarity })

	result := Result{
		Chunks: chunks,
		Stats:  Stats{RetrievalTimeMs: float64(r.now().Sub(start).Microseconds()) / 1000.0},
	}
	r.cache.Set(ctx, queryText, opts, result)
	return result, nil
}

// reachableWithinHops performs a bounded BFS over the undirected relation
// graph, starting from every seed object id, and returns every object
// reachable within depth hops (excluding the seeds themselves).
func reachableWithinHops(relations []relation.Relation, seeds map[string]struct{}, depth int) map[string]struct{} {
	adj := make(map[string][]string)
	for _, r := range relations {
		adj[r.FromID] = append(adj[r.FromID], r.ToID)
		adj[r.ToID] = append(adj[r.ToID], r.FromID)
	}

	visited := make(map[string]struct{}, len(seeds))
	for s := range seeds {
		visited[s] = struct{}{}
	}
	frontier := make([]string, 0, len(seeds))
	for s := range seeds {
		frontier = append(frontier, s)
	}

	reachable := make(map[string]struct{})
	for hop := 0; hop < depth && len(frontier) > 0; hop++ {
		var next []string
		for _, node := range frontier {
			for _, neighbor := range adj[node] {
				if _, ok := visited[neighbor]; ok {
					continue
				}
				visited[neighbor] = struct{}{}
				reachable[neighbor] = struct{}{}
				next = append(next, neighbor)
			}
		}
		frontier = next
	}
	return reachable
}
