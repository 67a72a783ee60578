package inference

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/go-go-golems/coachchat/pkg/chat"
)

func collect(t *testing.T, m Model) ([]string, error) {
	t.Helper()
	var chunks []string
	for c, err := range m.StreamReply(context.Background(), Request{Text: "hi"}) {
		if err != nil {
			return chunks, err
		}
		chunks = append(chunks, c)
	}
	return chunks, nil
}

func TestScripted(t *testing.T) {
	chunks, err := collect(t, Scripted{Chunks: []string{"Hel", "lo ", "world"}})
	require.NoError(t, err)
	require.Equal(t, []string{"Hel", "lo ", "world"}, chunks)

	boom := errors.New("boom")
	chunks, err = collect(t, Scripted{Chunks: []string{"partial"}, Err: boom})
	require.ErrorIs(t, err, boom)
	require.Equal(t, []string{"partial"}, chunks)
}

func TestScripted_StopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var gotErr error
	for _, err := range (Scripted{Chunks: []string{"a", "b"}}).StreamReply(ctx, Request{}) {
		gotErr = err
	}
	require.ErrorIs(t, gotErr, context.Canceled)
}

func TestUnavailable(t *testing.T) {
	chunks, err := collect(t, Unavailable{Err: ErrMissingAPIKey})
	require.ErrorIs(t, err, ErrMissingAPIKey)
	require.Empty(t, chunks)

	_, err = collect(t, Unavailable{})
	require.Error(t, err)
}

func TestGenerationSettings_WithDefaults(t *testing.T) {
	s := GenerationSettings{}.WithDefaults()
	require.Equal(t, DefaultModel, s.Model)
	require.Equal(t, int32(DefaultMaxOutputTokens), s.MaxOutputTokens)
	require.Equal(t, int32(0), s.ThinkingBudget)

	s = GenerationSettings{ThinkingBudget: -1}.WithDefaults()
	require.Equal(t, int32(DefaultThinkingBudget), s.ThinkingBudget)
}

func TestCountTokens(t *testing.T) {
	require.Equal(t, 0, CountTokens(""))
	require.Greater(t, CountTokens("How can I improve my flexibility?"), 0)
	require.Greater(t, PromptTokens(Request{
		Text:    "and squats?",
		History: []chat.Message{{Role: chat.RoleUser, Text: "push ups?"}},
	}, nil), CountTokens("and squats?"))
	require.Equal(t, 3, PromptTokens(Request{
		Text:    "ab",
		History: []chat.Message{{Role: chat.RoleAI, Text: "c"}},
	}, func(s string) int { return len(s) }))
}
