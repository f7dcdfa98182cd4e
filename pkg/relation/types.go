// Package relation infers typed, weighted relations between canonical
// objects: explicit structural edges, Jaccard keyword similarity, cosine
// embedding similarity, semantic-hash duplicate detection, and optional
// contrastive few-shot LLM judgments.
package relation

import "time"

// Type is one of the closed set of relation types defines.
type Type string

const (
	TypeTriggeredBy    Type = "triggered_by"
	TypeResultedIn     Type = "resulted_in"
	TypeBelongsTo      Type = "belongs_to"
	TypeAssignedTo     Type = "assigned_to"
	TypeCreatedBy      Type = "created_by"
	TypeDecidedBy      Type = "decided_by"
	TypeParticipatedIn Type = "participated_in"
	TypeSimilarTo      Type = "similar_to"
	TypeDuplicateOf    Type = "duplicate_of"
	TypeRelatedTo      Type = "related_to"
)

// Source records the provenance of a relation.
type Source string

const (
	SourceExplicit Source = "explicit"
	SourceInferred Source = "inferred"
	SourceComputed Source = "computed"
)

// Relation is a typed, weighted directed edge between two canonical objects.
type Relation struct {
	FromID     string
	ToID       string
	Type       Type
	Source     Source
	Confidence float64
	Metadata   map[string]interface{}
	CreatedAt  time.Time
}

// Direction selects which side of a relation to filter on for
// GetRelationsFor.
type Direction string

const (
	DirectionFrom Direction = "from"
	DirectionTo   Direction = "to"
	DirectionBoth Direction = "both"
)

// Stats summarizes a relation set.
type Stats struct {
	Total         int
	ByType        map[Type]int
	BySource      map[Source]int
	AvgConfidence float64
}
