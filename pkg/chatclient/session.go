// Package chatclient holds the client side of a chat: the visible message
// list, the single in-flight turn and the streaming of replies into it.
package chatclient

import (
	"context"
	"io"
	"slices"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/go-go-golems/coachchat/pkg/chat"
)

var (
	ErrEmptyMessage        = errors.New("message is empty")
	ErrTurnInFlight        = errors.New("a reply is still streaming")
	ErrNothingToRegenerate = errors.New("no user message to regenerate")
)

const readBufferSize = 4096

// State is an immutable snapshot of what the user sees.
type State struct {
	Messages        []chat.Message
	Loading         bool
	ShowSuggestions bool
	HistoryLoaded   bool
}

func (s State) clone() State {
	s.Messages = chat.Clone(s.Messages)
	return s
}

// LastMessage returns the newest visible message.
func (s State) LastMessage() (chat.Message, bool) {
	if len(s.Messages) == 0 {
		return chat.Message{}, false
	}
	return s.Messages[len(s.Messages)-1], true
}

type Config struct {
	UserID   string
	Greeting chat.Message
	// Apology replaces a reply whose transport failed.
	Apology string
	Logger  zerolog.Logger
}

type Session struct {
	api      API
	userID   string
	greeting chat.Message
	apology  string
	logger   zerolog.Logger

	mu        sync.Mutex
	state     State
	observers []func(State)

	// notifyMu keeps observer calls in the order the states were produced.
	notifyMu sync.Mutex
}

func NewSession(api API, cfg Config) (*Session, error) {
	if api == nil {
		return nil, errors.New("chat client: api is nil")
	}
	if strings.TrimSpace(cfg.UserID) == "" {
		return nil, errors.New("chat client: user id is required")
	}
	return &Session{
		api:      api,
		userID:   cfg.UserID,
		greeting: cfg.Greeting,
		apology:  cfg.Apology,
		logger:   cfg.Logger.With().Str("component", "chat-client").Str("user_id", cfg.UserID).Logger(),
	}, nil
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.clone()
}

// OnChange registers fn to receive every new state. fn runs on the goroutine
// that produced the change.
func (s *Session) OnChange(fn func(State)) {
	if fn == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers = append(s.observers, fn)
}

// update applies fn under the lock and notifies observers when fn reports a change.
func (s *Session) update(fn func(st *State) bool) {
	s.mu.Lock()
	if !fn(&s.state) {
		s.mu.Unlock()
		return
	}
	snap := s.state.clone()
	observers := slices.Clone(s.observers)
	s.notifyMu.Lock()
	s.mu.Unlock()
	defer s.notifyMu.Unlock()
	for _, o := range observers {
		o(snap)
	}
}

// Bootstrap loads the persisted history. Without history, or when it cannot
// be loaded, the session starts with the greeting and suggestions shown.
func (s *Session) Bootstrap(ctx context.Context) {
	msgs, err := s.api.FetchHistory(ctx, s.userID)
	if err != nil {
		s.logger.Warn().Err(err).Msg("could not fetch history, starting new conversation")
	}
	s.update(func(st *State) bool {
		if err == nil && len(msgs) > 0 {
			st.Messages = chat.Clone(msgs)
			st.ShowSuggestions = false
		} else {
			st.Messages = []chat.Message{s.greeting}
			st.ShowSuggestions = true
		}
		st.HistoryLoaded = true
		return true
	})
}

// SendMessage sends text on top of the visible conversation.
func (s *Session) SendMessage(ctx context.Context, text string) error {
	return s.send(ctx, text, nil, false)
}

// SendMessageWithHistory sends text as if base were the visible conversation.
func (s *Session) SendMessageWithHistory(ctx context.Context, text string, base []chat.Message) error {
	return s.send(ctx, text, base, true)
}

// Regenerate resends the last user message with everything before it as history.
func (s *Session) Regenerate(ctx context.Context) error {
	current := s.State()
	idx := chat.LastIndexOfRole(current.Messages, chat.RoleUser)
	if idx < 0 {
		return ErrNothingToRegenerate
	}
	return s.SendMessageWithHistory(ctx, current.Messages[idx].Text, current.Messages[:idx])
}

func (s *Session) send(ctx context.Context, text string, base []chat.Message, useBase bool) error {
	if strings.TrimSpace(text) == "" {
		return ErrEmptyMessage
	}
	userMsg := chat.NewMessage(chat.RoleUser, text)
	placeholder := chat.NewMessage(chat.RoleAI, "")
	var history []chat.Message
	busy := false
	s.update(func(st *State) bool {
		if st.Loading {
			busy = true
			return false
		}
		if !useBase {
			base = st.Messages
		}
		if len(base) > 0 && base[0].IsGreeting() {
			history = []chat.Message{}
		} else {
			history = chat.Clone(base)
		}
		visible := make([]chat.Message, 0, len(history)+2)
		visible = append(visible, history...)
		visible = append(visible, userMsg, placeholder)
		st.Messages = visible
		st.ShowSuggestions = false
		st.Loading = true
		return true
	})
	if busy {
		return ErrTurnInFlight
	}
	defer s.update(func(st *State) bool {
		st.Loading = false
		return true
	})

	if err := s.stream(ctx, TurnRequest{UserID: s.userID, UserMessage: userMsg, History: chat.WithoutGreeting(history)}); err != nil {
		s.logger.Error().Err(err).Str("user_message_id", userMsg.ID).Msg("error sending message")
		s.setReply(s.apology)
	}
	return nil
}

func (s *Session) stream(ctx context.Context, req TurnRequest) error {
	body, err := s.api.StreamTurn(ctx, req)
	if err != nil {
		return err
	}
	if body == nil {
		return errors.New("chat response has no body")
	}
	defer func() { _ = body.Close() }()

	acc := Accumulator{}
	buf := make([]byte, readBufferSize)
	for {
		n, rerr := body.Read(buf)
		if n > 0 {
			acc = acc.Reduce(buf[:n])
			s.setReply(acc.Text())
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return errors.Wrap(rerr, "read reply")
		}
	}
	acc = acc.Flush()
	s.setReply(acc.Text())
	return nil
}

// setReply replaces the last message with a copy carrying text, if it is an AI message.
func (s *Session) setReply(text string) {
	s.update(func(st *State) bool {
		n := len(st.Messages)
		if n == 0 || st.Messages[n-1].Role != chat.RoleAI || st.Messages[n-1].Text == text {
			return false
		}
		msgs := chat.Clone(st.Messages)
		msgs[n-1].Text = text
		st.Messages = msgs
		return true
	})
}
