package ui

import (
	"context"
	"io"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/go-go-golems/coachchat/pkg/chat"
	"github.com/go-go-golems/coachchat/pkg/chatclient"
	"github.com/go-go-golems/coachchat/pkg/persona"
)

type echoAPI struct {
	history []chat.Message
	sent    []chatclient.TurnRequest
}

func (a *echoAPI) FetchHistory(context.Context, string) ([]chat.Message, error) {
	return a.history, nil
}

func (a *echoAPI) StreamTurn(_ context.Context, req chatclient.TurnRequest) (io.ReadCloser, error) {
	a.sent = append(a.sent, req)
	return io.NopCloser(strings.NewReader("echo: " + req.UserMessage.Text)), nil
}

func newTestModel(t *testing.T, api *echoAPI) (Model, *chatclient.Session) {
	t.Helper()
	p := persona.Default()
	s, err := chatclient.NewSession(api, chatclient.Config{
		UserID:   "u1",
		Greeting: p.GreetingMessage(),
		Apology:  p.Apology,
		Logger:   zerolog.Nop(),
	})
	require.NoError(t, err)
	m := New(context.Background(), s, p, zerolog.Nop())
	return m, s
}

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	return next.(Model), cmd
}

func bootstrapped(t *testing.T, api *echoAPI) (Model, *chatclient.Session) {
	t.Helper()
	m, s := newTestModel(t, api)
	m, _ = update(t, m, tea.WindowSizeMsg{Width: 80, Height: 30})
	s.Bootstrap(context.Background())
	m, _ = update(t, m, stateMsg(s.State()))
	return m, s
}

func TestView_ShowsLoadingTextUntilHistoryLoaded(t *testing.T) {
	m, _ := newTestModel(t, &echoAPI{})
	require.Contains(t, m.View(), "Connecting to your AI Coach...")
}

func TestView_ShowsGreetingAndSuggestions(t *testing.T) {
	m, _ := bootstrapped(t, &echoAPI{})
	v := m.View()
	require.Contains(t, v, "personal AI coach")
	require.Contains(t, v, "1. What are 3 effective bodyweight exercises?")
}

func TestSuggestionKeySendsPrompt(t *testing.T) {
	api := &echoAPI{}
	m, s := bootstrapped(t, api)

	_, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'3'}})
	require.NotNil(t, cmd)
	done, ok := cmd().(sendDoneMsg)
	require.True(t, ok)
	require.NoError(t, done.err)

	require.Len(t, api.sent, 1)
	require.Equal(t, "How can I improve my flexibility?", api.sent[0].UserMessage.Text)
	st := s.State()
	require.False(t, st.ShowSuggestions)
	require.Equal(t, "echo: How can I improve my flexibility?", st.Messages[len(st.Messages)-1].Text)
}

func TestEnterSendsInputAndClearsIt(t *testing.T) {
	api := &echoAPI{}
	m, _ := bootstrapped(t, api)
	m.input.SetValue("squats?")

	m, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	require.Equal(t, "", m.input.Value())
	require.NotNil(t, cmd)
	_ = cmd()
	require.Equal(t, "squats?", api.sent[0].UserMessage.Text)
}

func TestEnterIgnoresBlankInput(t *testing.T) {
	m, _ := bootstrapped(t, &echoAPI{})
	m.input.SetValue("   ")
	_, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	require.Nil(t, cmd)
}

func TestCopyLastReply(t *testing.T) {
	api := &echoAPI{history: []chat.Message{
		{ID: "u1", Role: chat.RoleUser, Text: "hi"},
		{ID: "a1", Role: chat.RoleAI, Text: "Drink water."},
	}}
	m, _ := bootstrapped(t, api)
	var copied string
	m.copy = func(s string) error {
		copied = s
		return nil
	}

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyCtrlY})
	require.Equal(t, "Drink water.", copied)
	require.Equal(t, "Copied last reply.", m.status)
}

func TestRegenerateWithoutUserMessage(t *testing.T) {
	m, _ := bootstrapped(t, &echoAPI{})
	m, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyCtrlR})
	require.NotNil(t, cmd)
	m, _ = update(t, m, cmd())
	require.Equal(t, "Nothing to regenerate yet.", m.status)
}
