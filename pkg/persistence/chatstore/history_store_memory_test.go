package chatstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInMemoryHistoryStore_Cap(t *testing.T) {
	requireHistoryCapContract(t, NewInMemoryHistoryStore(10))
}

func TestInMemoryHistoryStore_ConcurrentAppends(t *testing.T) {
	requireConcurrentAppendsStayPaired(t, NewInMemoryHistoryStore(10), 8)
}

func TestInMemoryHistoryStore_ListReturnsCopy(t *testing.T) {
	s := NewInMemoryHistoryStore(0)
	ctx := context.Background()
	u, a := turnMessages(1)
	require.NoError(t, s.Append(ctx, "alice", u, a))

	got, err := s.List(ctx, "alice")
	require.NoError(t, err)
	got[0].Text = "mutated"

	again, err := s.List(ctx, "alice")
	require.NoError(t, err)
	require.Equal(t, "question 1", again[0].Text)
}
