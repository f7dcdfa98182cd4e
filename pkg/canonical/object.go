// Package canonical defines the uniform record shape every ingested artifact
// is converted into before it enters the pipeline (chunking, embedding,
// relation inference, evaluation). Source-specific transformers that produce
// canonical objects from Slack, Zendesk, Linear, Notion, etc. are external
// collaborators and live outside this module.
package canonical

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Visibility controls who may see an object. Default is VisibilityTeam.
type Visibility string

const (
	VisibilityPrivate Visibility = "private"
	VisibilityTeam    Visibility = "team"
	VisibilityPublic  Visibility = "public"
)

// Sentinel errors for object validation (ConfigError/InputError family, see
// pkg/pipeline for how these surface in a PipelineResult).
var (
	ErrMissingID        = errors.New("canonical: object id is required")
	ErrMalformedID      = errors.New("canonical: object id is not well-formed")
	ErrMissingCreatedAt = errors.New("canonical: timestamps.created_at is required")
)

// idSeparator is the pipe used by the canonical ID grammar:
// platform|workspace|object_type|platform_id.
const idSeparator = "|"

// Object is the canonical record for one ingested artifact.
type Object struct {
	ID         string                 `json:"id"`
	Platform   string                 `json:"platform"`
	ObjectType string                 `json:"object_type"`
	Title      string                 `json:"title,omitempty"`
	Body       string                 `json:"body,omitempty"`
	Actors     map[string]ActorRef    `json:"actors,omitempty"`
	Timestamps map[string]*time.Time  `json:"timestamps,omitempty"`
	Relations  map[string]interface{} `json:"relations,omitempty"`
	Properties map[string]interface{} `json:"properties,omitempty"`
	Summary    *Summary               `json:"summary,omitempty"`

	// SemanticHash is a 64-hex-char fingerprint used for exact-duplicate
	// detection. Stable under title+truncated-body+sorted-keyword
	// normalization; see ComputeSemanticHash.
	SemanticHash *string    `json:"semantic_hash,omitempty"`
	Visibility   Visibility `json:"visibility,omitempty"`
}

// Summary is the optional condensed view of an object's content.
type Summary struct {
	Short    string   `json:"short,omitempty"`
	Medium   string   `json:"medium,omitempty"`
	Long     string   `json:"long,omitempty"`
	Keywords []string `json:"keywords,omitempty"`
}

// ActorRef is either a single canonical ID or an ordered list of them. It
// models the "single user reference OR ordered sequence of them" union from
// with a custom JSON codec rather than an interface{}, so callers
// get a typed accessor instead of having to type-switch at every use site.
type ActorRef struct {
	Single *string
	List   []string
}

// IDs returns the actor reference as a flat, ordered list regardless of
// whether it was declared as a single ID or a list.
func (a ActorRef) IDs() []string {
	if a.Single != nil {
		return []string{*a.Single}
	}
	return a.List
}

// IsEmpty reports whether the actor reference carries no IDs at all.
func (a ActorRef) IsEmpty() bool {
	return a.Single == nil && len(a.List) == 0
}

func (a ActorRef) MarshalJSON() ([]byte, error) {
	if a.Single != nil {
		return json.Marshal(*a.Single)
	}
	return json.Marshal(a.List)
}

func (a *ActorRef) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		a.Single = &single
		a.List = nil
		return nil
	}
	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return fmt.Errorf("canonical: actor ref must be a string or a list of strings: %w", err)
	}
	a.List = list
	a.Single = nil
	return nil
}

// ParsedID is the decomposed form of a canonical object ID.
type ParsedID struct {
	Platform   string
	Workspace  string
	ObjectType string
	PlatformID string
}

// GenerateCanonicalID builds an ID string from its components:
// platform|workspace|object_type|platform_id.
func GenerateCanonicalID(platform, workspace, objectType, platformID string) string {
	return strings.Join([]string{platform, workspace, objectType, platformID}, idSeparator)
}

// ParseCanonicalID reverses GenerateCanonicalID, validating the grammar:
// platform and object_type match [a-z_][a-z0-9_]*; workspace and
// platform_id are non-empty and contain no "|".
func ParseCanonicalID(id string) (ParsedID, error) {
	parts := strings.Split(id, idSeparator)
	if len(parts) != 4 {
		return ParsedID{}, fmt.Errorf("%w: %q has %d segments, want 4", ErrMalformedID, id, len(parts))
	}
	platform, workspace, objectType, platformID := parts[0], parts[1], parts[2], parts[3]
	if !isIdentifier(platform) {
		return ParsedID{}, fmt.Errorf("%w: platform segment %q", ErrMalformedID, platform)
	}
	if !isIdentifier(objectType) {
		return ParsedID{}, fmt.Errorf("%w: object_type segment %q", ErrMalformedID, objectType)
	}
	if workspace == "" {
		return ParsedID{}, fmt.Errorf("%w: empty workspace segment", ErrMalformedID)
	}
	if platformID == "" {
		return ParsedID{}, fmt.Errorf("%w: empty platform_id segment", ErrMalformedID)
	}
	return ParsedID{Platform: platform, Workspace: workspace, ObjectType: objectType, PlatformID: platformID}, nil
}

// isIdentifier matches [a-z_][a-z0-9_]*.
func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	first := s[0]
	if !(first == '_' || (first >= 'a' && first <= 'z')) {
		return false
	}
	for i := 1; i < len(s); i++ {
		c := s[i]
		if !(c == '_' || (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9')) {
			return false
		}
	}
	return true
}

// Validate enforces the invariants: a non-empty, well-formed
// ID and a mandatory timestamps.created_at. Dangling actor/relation
// references are intentionally not checked here — they are tolerated by
// design.
func (o Object) Validate() error {
	if o.ID == "" {
		return ErrMissingID
	}
	if _, err := ParseCanonicalID(o.ID); err != nil {
		return err
	}
	created, ok := o.Timestamps["created_at"]
	if !ok || created == nil {
		return ErrMissingCreatedAt
	}
	return nil
}

// CreatedAt is a convenience accessor for the mandatory timestamp.
func (o Object) CreatedAt() (time.Time, bool) {
	t, ok := o.Timestamps["created_at"]
	if !ok || t == nil {
		return time.Time{}, false
	}
	return *t, true
}

// Timestamp returns a named timestamp if present and non-nil.
func (o Object) Timestamp(name string) (time.Time, bool) {
	t, ok := o.Timestamps[name]
	if !ok || t == nil {
		return time.Time{}, false
	}
	return *t, true
}

// CombinedText is the text the chunker and semantic-hash normalizer operate
// over: title and body concatenated with a blank line.
func (o Object) CombinedText() string {
	if o.Title == "" {
		return o.Body
	}
	if o.Body == "" {
		return o.Title
	}
	return o.Title + "\n\n" + o.Body
}

// Keywords collects properties.keywords, properties.labels, and title tokens
// longer than 3 characters, all lowercased — the keyword set the relation
// inferrer builds per object for Jaccard similarity.
func (o Object) Keywords() map[string]struct{} {
	set := make(map[string]struct{})
	addAll := func(values []string) {
		for _, v := range values {
			v = strings.ToLower(strings.TrimSpace(v))
			if v != "" {
				set[v] = struct{}{}
			}
		}
	}
	addAll(stringList(o.Properties["keywords"]))
	addAll(stringList(o.Properties["labels"]))
	for _, tok := range strings.Fields(o.Title) {
		tok = strings.ToLower(strings.Trim(tok, ".,!?;:'\"()[]{}"))
		if len(tok) > 3 {
			set[tok] = struct{}{}
		}
	}
	return set
}

// stringList best-effort-converts an open Properties value into a []string.
// Malformed fields are skipped rather than erroring — relation inference is
// total over its inputs.
func stringList(v interface{}) []string {
	switch vv := v.(type) {
	case []string:
		return vv
	case []interface{}:
		out := make([]string, 0, len(vv))
		for _, item := range vv {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
