package canonical

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndParseCanonicalID_RoundTrip(t *testing.T) {
	cases := []ParsedID{
		{Platform: "slack", Workspace: "w1", ObjectType: "thread", PlatformID: "T1"},
		{Platform: "zendesk", Workspace: "acme", ObjectType: "ticket", PlatformID: "Z-42"},
		{Platform: "user", Workspace: "w1", ObjectType: "user", PlatformID: "u_7"},
	}
	for _, tc := range cases {
		id := GenerateCanonicalID(tc.Platform, tc.Workspace, tc.ObjectType, tc.PlatformID)
		got, err := ParseCanonicalID(id)
		require.NoError(t, err)
		assert.Equal(t, tc, got)
	}
}

func TestParseCanonicalID_Malformed(t *testing.T) {
	cases := []string{
		"slack|w1|thread",          // too few segments
		"slack|w1|thread|T1|extra", // too many segments
		"Slack|w1|thread|T1",       // uppercase platform
		"slack||thread|T1",         // empty workspace
		"slack|w1|thread|",         // empty platform_id
		"slack|w1|Thread-Type|T1",  // invalid object_type chars
	}
	for _, id := range cases {
		_, err := ParseCanonicalID(id)
		assert.Error(t, err, "expected error for %q", id)
	}
}

func TestObjectValidate(t *testing.T) {
	now := time.Now()
	valid := Object{
		ID:         "slack|w1|thread|T1",
		Timestamps: map[string]*time.Time{"created_at": &now},
	}
	assert.NoError(t, valid.Validate())

	missingID := valid
	missingID.ID = ""
	assert.ErrorIs(t, missingID.Validate(), ErrMissingID)

	missingCreated := Object{ID: "slack|w1|thread|T1"}
	assert.ErrorIs(t, missingCreated.Validate(), ErrMissingCreatedAt)

	badID := valid
	badID.ID = "not-an-id"
	assert.ErrorIs(t, badID.Validate(), ErrMalformedID)
}

func TestActorRef_SingleAndList(t *testing.T) {
	single := ActorRef{Single: strPtr("user|w1|user|alice")}
	assert.Equal(t, []string{"user|w1|user|alice"}, single.IDs())
	assert.False(t, single.IsEmpty())

	list := ActorRef{List: []string{"a", "b"}}
	assert.Equal(t, []string{"a", "b"}, list.IDs())

	var empty ActorRef
	assert.True(t, empty.IsEmpty())
	assert.Empty(t, empty.IDs())
}

func TestActorRef_JSONRoundTrip(t *testing.T) {
	single := ActorRef{Single: strPtr("u1")}
	data, err := single.MarshalJSON()
	require.NoError(t, err)
	var roundTripped ActorRef
	require.NoError(t, roundTripped.UnmarshalJSON(data))
	assert.Equal(t, single, roundTripped)

	list := ActorRef{List: []string{"u1", "u2"}}
	data, err = list.MarshalJSON()
	require.NoError(t, err)
	var roundTrippedList ActorRef
	require.NoError(t, roundTrippedList.UnmarshalJSON(data))
	assert.Equal(t, list, roundTrippedList)
}

func TestObject_Keywords(t *testing.T) {
	o := Object{
		Title: "Investigate the API rate limit issue now",
		Properties: map[string]interface{}{
			"keywords": []interface{}{"API", "Rate"},
			"labels":   []interface{}{"P1"},
		},
	}
	kw := o.Keywords()
	for _, want := range []string{"api", "rate", "p1", "investigate", "limit", "issue"} {
		_, ok := kw[want]
		assert.True(t, ok, "expected keyword %q in %v", want, kw)
	}
	_, hasNow := kw["now"]
	assert.False(t, hasNow, "short tokens (len<=3) must be dropped")
}

func strPtr(s string) *string { return &s }
