package chatstore

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/go-go-golems/coachchat/pkg/chat"
)

func turnMessages(i int) (chat.Message, chat.Message) {
	return chat.Message{ID: fmt.Sprintf("u%d", i), Role: chat.RoleUser, Text: fmt.Sprintf("question %d", i)},
		chat.Message{ID: fmt.Sprintf("a%d", i), Role: chat.RoleAI, Text: fmt.Sprintf("answer %d", i)}
}

// requireHistoryCapContract checks the trimming behavior every backend shares.
// The store must be configured with a cap of 10 messages.
func requireHistoryCapContract(t *testing.T, s HistoryStore) {
	t.Helper()
	ctx := context.Background()

	empty, err := s.List(ctx, "nobody")
	require.NoError(t, err)
	require.Empty(t, empty)

	for i := 1; i <= 6; i++ {
		u, a := turnMessages(i)
		require.NoError(t, s.Append(ctx, "alice", u, a))

		got, err := s.List(ctx, "alice")
		require.NoError(t, err)
		want := min(2*i, 10)
		require.Len(t, got, want)
		require.Equal(t, a.ID, got[len(got)-1].ID)
	}

	got, err := s.List(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, got, 10)
	require.Equal(t, "u2", got[0].ID)
	require.Equal(t, chat.RoleUser, got[0].Role)
	require.Equal(t, "question 2", got[0].Text)
	require.Equal(t, "a6", got[9].ID)
	require.Equal(t, chat.RoleAI, got[9].Role)
	for _, m := range got {
		require.NotEqual(t, "u1", m.ID)
		require.NotEqual(t, "a1", m.ID)
	}

	other, err := s.List(ctx, "bob")
	require.NoError(t, err)
	require.Empty(t, other)

	require.Error(t, s.Append(ctx, " ", chat.Message{}, chat.Message{}))
}

// requireConcurrentAppendsStayPaired races appends for one user and checks
// that no reader sees more than the cap or a split turn.
func requireConcurrentAppendsStayPaired(t *testing.T, s HistoryStore, writers int) {
	t.Helper()
	ctx := context.Background()

	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 5; i++ {
				n := w*100 + i
				u, a := turnMessages(n)
				require.NoError(t, s.Append(ctx, "racer", u, a))
				got, err := s.List(ctx, "racer")
				require.NoError(t, err)
				require.LessOrEqual(t, len(got), 10)
			}
		}(w)
	}
	wg.Wait()

	got, err := s.List(ctx, "racer")
	require.NoError(t, err)
	require.Len(t, got, 10)
	for i := 0; i < len(got); i += 2 {
		require.Equal(t, chat.RoleUser, got[i].Role)
		require.Equal(t, chat.RoleAI, got[i+1].Role)
		require.Equal(t, got[i].ID[1:], got[i+1].ID[1:])
	}
}
