package chatclient_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/go-go-golems/coachchat/pkg/chat"
	"github.com/go-go-golems/coachchat/pkg/chatclient"
	"github.com/go-go-golems/coachchat/pkg/inference"
	"github.com/go-go-golems/coachchat/pkg/persistence/chatstore"
	"github.com/go-go-golems/coachchat/pkg/webchat"
)

var greeting = chat.Message{ID: chat.GreetingID, Role: chat.RoleAI, Text: "Hi!"}

func startGateway(t *testing.T, model inference.Model) (*webchat.ChatService, string) {
	t.Helper()
	svc, err := webchat.NewChatService(webchat.ChatServiceConfig{
		Model:       model,
		History:     chatstore.NewHistory(chatstore.NewInMemoryHistoryStore(chatstore.DefaultMaxMessages), zerolog.Nop()),
		CountTokens: func(text string) int { return len(text) },
		Logger:      zerolog.Nop(),
	})
	require.NoError(t, err)
	r, err := webchat.NewRouter(svc)
	require.NoError(t, err)
	srv := httptest.NewServer(r.Handler())
	t.Cleanup(srv.Close)
	return svc, srv.URL
}

func newSession(t *testing.T, baseURL string) *chatclient.Session {
	t.Helper()
	s, err := chatclient.NewSession(chatclient.NewHTTPAPI(baseURL, nil), chatclient.Config{
		UserID:   "user_123_demo",
		Greeting: greeting,
		Apology:  "sorry",
		Logger:   zerolog.Nop(),
	})
	require.NoError(t, err)
	return s
}

func TestSession_EndToEndAgainstGateway(t *testing.T) {
	svc, url := startGateway(t, inference.Scripted{Chunks: []string{"Hel", "lo ", "world"}})
	ctx := context.Background()

	s := newSession(t, url)
	s.Bootstrap(ctx)
	require.Equal(t, []chat.Message{greeting}, s.State().Messages)

	require.NoError(t, s.SendMessage(ctx, "hi coach"))
	st := s.State()
	require.Len(t, st.Messages, 2)
	require.Equal(t, "Hello world", st.Messages[1].Text)
	svc.Wait()

	// A fresh session sees the persisted turn instead of the greeting.
	again := newSession(t, url)
	again.Bootstrap(ctx)
	got := again.State()
	require.False(t, got.ShowSuggestions)
	require.Len(t, got.Messages, 2)
	require.Equal(t, st.Messages[0], got.Messages[0])
	require.Equal(t, "Hello world", got.Messages[1].Text)
}

func TestSession_GatewayFailureShowsApology(t *testing.T) {
	_, url := startGateway(t, inference.Unavailable{})
	s := newSession(t, url)
	s.Bootstrap(context.Background())

	require.NoError(t, s.SendMessage(context.Background(), "hi"))
	require.Equal(t, "sorry", s.State().Messages[1].Text)
}

func TestHTTPAPI_NonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error":"Internal Server Error"}`, http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)
	api := chatclient.NewHTTPAPI(srv.URL+"/", nil)

	_, err := api.FetchHistory(context.Background(), "u1")
	var se *chatclient.StatusError
	require.ErrorAs(t, err, &se)
	require.Equal(t, http.StatusInternalServerError, se.Status)

	body, err := api.StreamTurn(context.Background(), chatclient.TurnRequest{UserID: "u1", UserMessage: chat.NewMessage(chat.RoleUser, "hi")})
	require.Nil(t, body)
	require.ErrorAs(t, err, &se)
}

func TestHTTPAPI_SendsEmptyHistoryArray(t *testing.T) {
	var raw string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		raw = string(b)
		_, _ = w.Write([]byte("ok"))
	}))
	t.Cleanup(srv.Close)
	api := chatclient.NewHTTPAPI(srv.URL, nil)

	body, err := api.StreamTurn(context.Background(), chatclient.TurnRequest{UserID: "u1", UserMessage: chat.Message{ID: "m1", Role: chat.RoleUser, Text: "hi"}})
	require.NoError(t, err)
	defer func() { _ = body.Close() }()
	b, err := io.ReadAll(body)
	require.NoError(t, err)
	require.Equal(t, "ok", string(b))
	require.JSONEq(t, `{"userId":"u1","userMessage":{"id":"m1","role":"user","text":"hi"},"history":[]}`, raw)
}
