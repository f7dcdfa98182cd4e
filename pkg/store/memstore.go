package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/codeready-toolchain/kgraph-pipeline/pkg/canonical"
	"github.com/codeready-toolchain/kgraph-pipeline/pkg/chunker"
	"github.com/codeready-toolchain/kgraph-pipeline/pkg/evaluation"
	"github.com/codeready-toolchain/kgraph-pipeline/pkg/relation"
	"github.com/google/uuid"
)

// MemStore is an in-process Store implementation: the default backing
// store for pipeline tests and dry runs (no live Postgres required).
type MemStore struct {
	mu sync.Mutex

	objects     map[string]canonical.Object
	chunks      map[string]chunker.Chunk // keyed by chunk id
	experiments map[string]*experimentRow
	results     map[resultKey]ExperimentResult
	layers      map[layerKey]LayerMetrics
	activity    []ActivityLog
	groundRels  []evaluation.GroundTruthRelation
	groundQs    []evaluation.GroundTruthQuery
}

type experimentRow struct {
	id             string
	upsert         ExperimentUpsert
	status         string
	runCompletedAt *time.Time
}

type resultKey struct {
	experimentID string
	scenario     string
}

type layerKey struct {
	experimentID string
	layer        string
	method       string
}

// NewMemStore constructs an empty MemStore, optionally seeded with
// canonical objects and ground-truth fixtures for tests.
func NewMemStore(objects []canonical.Object, groundRels []evaluation.GroundTruthRelation, groundQs []evaluation.GroundTruthQuery) *MemStore {
	m := &MemStore{
		objects:     make(map[string]canonical.Object, len(objects)),
		chunks:      make(map[string]chunker.Chunk),
		experiments: make(map[string]*experimentRow),
		results:     make(map[resultKey]ExperimentResult),
		layers:      make(map[layerKey]LayerMetrics),
		groundRels:  groundRels,
		groundQs:    groundQs,
	}
	for _, o := range objects {
		m.objects[o.ID] = o
	}
	return m
}

func (m *MemStore) SearchCanonicalObjects(_ context.Context, filter ObjectFilter, limit int) ([]canonical.Object, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	idSet := make(map[string]struct{}, len(filter.IDs))
	for _, id := range filter.IDs {
		idSet[id] = struct{}{}
	}

	var ids []string
	for id := range m.objects {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var out []canonical.Object
	for _, id := range ids {
		o := m.objects[id]
		if len(idSet) > 0 {
			if _, ok := idSet[id]; !ok {
				continue
			}
		}
		if filter.Platform != "" && o.Platform != filter.Platform {
			continue
		}
		if filter.ObjectType != "" && o.ObjectType != filter.ObjectType {
			continue
		}
		out = append(out, o)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (m *MemStore) UpsertExperiment(_ context.Context, e ExperimentUpsert) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, row := range m.experiments {
		if row.upsert.Name == e.Name {
			row.upsert = e
			row.status = e.Status
			return row.id, nil
		}
	}
	id := uuid.NewString()
	m.experiments[id] = &experimentRow{id: id, upsert: e, status: e.Status}
	return id, nil
}

func (m *MemStore) UpdateExperimentStatus(_ context.Context, id, status string, runCompletedAt *time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	row, ok := m.experiments[id]
	if !ok {
		return ErrNotFound
	}
	row.status = status
	if runCompletedAt != nil {
		row.runCompletedAt = runCompletedAt
	}
	return nil
}

func (m *MemStore) UpsertExperimentResult(_ context.Context, r ExperimentResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results[resultKey{r.ExperimentID, r.Scenario}] = r
	return nil
}

func (m *MemStore) UpsertLayerMetrics(_ context.Context, lm LayerMetrics) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.layers[layerKey{lm.ExperimentID, lm.Layer, lm.EvaluationMethod}] = lm
	return nil
}

func (m *MemStore) InsertActivityLog(_ context.Context, a ActivityLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.activity = append(m.activity, a)
	return nil
}

func (m *MemStore) DeleteChunksByObjectIDs(_ context.Context, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	toDelete := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		toDelete[id] = struct{}{}
	}
	for chunkID, c := range m.chunks {
		if _, ok := toDelete[c.CanonicalObjectID]; ok {
			delete(m.chunks, chunkID)
		}
	}
	return nil
}

func (m *MemStore) InsertChunk(_ context.Context, c chunker.Chunk) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.chunks[c.ID] = c
	return nil
}

func (m *MemStore) NearestChunks(_ context.Context, queryEmbedding []float32, similarityMin float64, limit int) ([]NearestChunk, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var hits []NearestChunk
	for _, c := range m.chunks {
		if len(c.Embedding) == 0 {
			continue
		}
		sim := relation.CosineSimilarity(queryEmbedding, c.Embedding)
		if sim < similarityMin {
			continue
		}
		hits = append(hits, NearestChunk{
			ChunkID:           c.ID,
			CanonicalObjectID: c.CanonicalObjectID,
			Content:           c.Content,
			Similarity:        sim,
		})
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Similarity > hits[j].Similarity })
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

func (m *MemStore) ListGroundTruthRelations(_ context.Context, filter GroundTruthFilter) ([]evaluation.GroundTruthRelation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if filter.Scenario == "" {
		return append([]evaluation.GroundTruthRelation(nil), m.groundRels...), nil
	}
	var out []evaluation.GroundTruthRelation
	for _, r := range m.groundRels {
		if r.Scenario == filter.Scenario {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *MemStore) ListGroundTruthQueries(_ context.Context, scenario string) ([]evaluation.GroundTruthQuery, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if scenario == "" {
		return append([]evaluation.GroundTruthQuery(nil), m.groundQs...), nil
	}
	var out []evaluation.GroundTruthQuery
	for _, q := range m.groundQs {
		if q.Scenario == scenario {
			out = append(out, q)
		}
	}
	return out, nil
}

// Activity returns a snapshot of every logged activity entry, for test
// assertions.
func (m *MemStore) Activity() []ActivityLog {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]ActivityLog(nil), m.activity...)
}

var _ Store = (*MemStore)(nil)
