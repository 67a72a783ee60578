package chat

import (
	"encoding/json"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRole_UnmarshalJSON(t *testing.T) {
	var m Message
	require.NoError(t, json.Unmarshal([]byte(`{"id":"1","role":"ai","text":"hi"}`), &m))
	require.Equal(t, RoleAI, m.Role)

	require.NoError(t, json.Unmarshal([]byte(`{"id":"2","role":"USER","text":"yo"}`), &m))
	require.Equal(t, RoleUser, m.Role)

	err := json.Unmarshal([]byte(`{"id":"3","role":"system","text":"x"}`), &m)
	require.Error(t, err)
}

func TestUpstreamRole(t *testing.T) {
	require.Equal(t, "user", UpstreamRole(RoleUser))
	require.Equal(t, "model", UpstreamRole(RoleAI))
}

func TestNewID_UniqueAndOrdered(t *testing.T) {
	ids := make([]string, 0, 200)
	seen := map[string]struct{}{}
	for i := 0; i < 200; i++ {
		id := NewID()
		_, dup := seen[id]
		require.False(t, dup)
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	require.True(t, sort.StringsAreSorted(ids))
}

func TestWithoutGreetingAndLastIndex(t *testing.T) {
	msgs := []Message{
		{ID: GreetingID, Role: RoleAI, Text: "hello"},
		{ID: "u1", Role: RoleUser, Text: "q"},
		{ID: "a1", Role: RoleAI, Text: "a"},
	}
	require.Equal(t, msgs[1:], WithoutGreeting(msgs))
	require.Equal(t, 1, LastIndexOfRole(msgs, RoleUser))
	require.Equal(t, 2, LastIndexOfRole(msgs, RoleAI))
	require.Equal(t, -1, LastIndexOfRole(nil, RoleUser))

	cl := Clone(msgs)
	cl[0].Text = "changed"
	require.Equal(t, "hello", msgs[0].Text)
}
