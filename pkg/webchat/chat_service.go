package webchat

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/go-go-golems/coachchat/pkg/chat"
	"github.com/go-go-golems/coachchat/pkg/inference"
	"github.com/go-go-golems/coachchat/pkg/persistence/chatstore"
	"github.com/go-go-golems/coachchat/pkg/turnevents"
)

const (
	DefaultIdleTimeout    = 60 * time.Second
	DefaultPersistTimeout = 5 * time.Second
)

// ErrIdleTimeout is reported when the model stops producing chunks for longer
// than the configured idle timeout.
var ErrIdleTimeout = errors.New("model stream idle timeout")

type ChatServiceConfig struct {
	Model   inference.Model
	History *chatstore.History
	Events  turnevents.Sink

	// IdleTimeout bounds the gap between two upstream chunks. Zero disables it.
	IdleTimeout time.Duration
	// PersistTimeout bounds the background commit of a finished turn.
	PersistTimeout time.Duration

	CountTokens func(text string) int
	Logger      zerolog.Logger
}

// ChatService relays one user turn to the model, streams the reply to the
// caller and commits the finished turn in the background.
type ChatService struct {
	model          inference.Model
	history        *chatstore.History
	events         turnevents.Sink
	idleTimeout    time.Duration
	persistTimeout time.Duration
	countTokens    func(string) int
	logger         zerolog.Logger

	mu     sync.Mutex
	closed bool
	// one per running turn, released when its commit finishes
	turns sync.WaitGroup
}

func NewChatService(cfg ChatServiceConfig) (*ChatService, error) {
	if cfg.Model == nil {
		return nil, errors.New("chat service: model is nil")
	}
	if cfg.History == nil {
		return nil, errors.New("chat service: history is nil")
	}
	if cfg.IdleTimeout < 0 {
		cfg.IdleTimeout = 0
	}
	if cfg.PersistTimeout <= 0 {
		cfg.PersistTimeout = DefaultPersistTimeout
	}
	if cfg.CountTokens == nil {
		cfg.CountTokens = inference.CountTokens
	}
	return &ChatService{
		model:          cfg.Model,
		history:        cfg.History,
		events:         cfg.Events,
		idleTimeout:    cfg.IdleTimeout,
		persistTimeout: cfg.PersistTimeout,
		countTokens:    cfg.CountTokens,
		logger:         cfg.Logger.With().Str("component", "chat-service").Logger(),
	}, nil
}

func (s *ChatService) History() *chatstore.History {
	if s == nil {
		return nil
	}
	return s.history
}

// Wait blocks until every turn started so far has streamed and committed.
func (s *ChatService) Wait() {
	if s == nil {
		return
	}
	s.turns.Wait()
}

// Close rejects new turns and waits for the running ones, including turns on
// hijacked websocket connections that http.Server.Shutdown does not track.
func (s *ChatService) Close() {
	if s == nil {
		return
	}
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.turns.Wait()
}

func (s *ChatService) begin() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.turns.Add(1)
	return true
}

type turnRun struct {
	state  TurnState
	logger zerolog.Logger
}

func (t *turnRun) to(next TurnState) {
	t.logger.Debug().Str("from", t.state.String()).Str("to", next.String()).Msg("turn state")
	t.state = next
}

// StreamTurn runs a single turn. Chunks are written to w as they arrive.
// A *RequestError means nothing was sent upstream; an *UpstreamError reports
// whether any chunk reached w before the failure.
func (s *ChatService) StreamTurn(ctx context.Context, req TurnRequest, w ChunkWriter) error {
	if s == nil {
		return errors.New("chat service not initialized")
	}
	if w == nil {
		return errors.New("chat service: chunk writer is nil")
	}
	if !s.begin() {
		return &RequestError{Status: http.StatusServiceUnavailable, ClientMsg: msgShuttingDown}
	}
	committing := false
	defer func() {
		if !committing {
			s.turns.Done()
		}
	}()
	run := &turnRun{state: TurnReceived, logger: s.logger.With().Str("user_id", req.UserID).Logger()}

	if err := req.Validate(); err != nil {
		run.to(TurnFailed)
		return err
	}
	run.logger = run.logger.With().Str("user_message_id", req.UserMessage.ID).Logger()
	run.to(TurnValidated)

	upReq := inference.Request{
		History: chat.WithoutGreeting(req.History),
		Text:    req.UserMessage.Text,
	}
	started := time.Now()

	upCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	var idled atomic.Bool
	var idle *time.Timer
	if s.idleTimeout > 0 {
		idle = time.AfterFunc(s.idleTimeout, func() {
			idled.Store(true)
			cancel()
		})
		defer idle.Stop()
	}

	run.to(TurnStreaming)
	var full strings.Builder
	sent := false
	for chunk, err := range s.model.StreamReply(upCtx, upReq) {
		if err != nil {
			if idled.Load() {
				err = errors.Wrapf(ErrIdleTimeout, "no chunk for %s", s.idleTimeout)
			}
			run.to(TurnFailed)
			run.logger.Error().Err(err).Bool("started", sent).Msg("model stream failed")
			return &UpstreamError{Started: sent, Err: err}
		}
		if chunk == "" {
			if idle != nil {
				idle.Reset(s.idleTimeout)
			}
			continue
		}
		// a slow client does not count against the upstream idle budget
		if idle != nil {
			idle.Stop()
		}
		if err := w.WriteChunk(chunk); err != nil {
			run.to(TurnFailed)
			run.logger.Warn().Err(err).Msg("client write failed, dropping turn")
			return &UpstreamError{Started: sent, Err: errors.Wrap(err, "write chunk")}
		}
		if idle != nil {
			idle.Reset(s.idleTimeout)
		}
		sent = true
		full.WriteString(chunk)
	}
	// A cancelled context may end a stream without an error from the model.
	if idled.Load() || ctx.Err() != nil {
		err := ctx.Err()
		if idled.Load() {
			err = errors.Wrapf(ErrIdleTimeout, "no chunk for %s", s.idleTimeout)
		}
		run.to(TurnFailed)
		return &UpstreamError{Started: sent, Err: err}
	}

	run.to(TurnCompleted)
	turn := chat.Turn{
		User: *req.UserMessage,
		AI:   chat.NewMessage(chat.RoleAI, full.String()),
	}
	committing = true
	s.commitAsync(ctx, run, req.UserID, upReq, turn, started)
	return nil
}

func (s *ChatService) commitAsync(parent context.Context, run *turnRun, userID string, upReq inference.Request, turn chat.Turn, started time.Time) {
	run.to(TurnPersisting)
	logger := run.logger
	go func() {
		defer s.turns.Done()
		ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), s.persistTimeout)
		defer cancel()

		result := s.history.CommitTurn(ctx, userID, turn)
		logger.Debug().Str("result", string(result)).Str("ai_message_id", turn.AI.ID).Msg("turn commit finished")
		run.to(TurnCompleted)

		if s.events == nil {
			return
		}
		ev := turnevents.TurnEvent{
			UserID:        userID,
			UserMessageID: turn.User.ID,
			AIMessageID:   turn.AI.ID,
			Status:        string(result),
			ReplyChars:    len([]rune(turn.AI.Text)),
			PromptTokens:  inference.PromptTokens(upReq, s.countTokens),
			ReplyTokens:   s.countTokens(turn.AI.Text),
			DurationMs:    time.Since(started).Milliseconds(),
			At:            time.Now().UTC(),
		}
		if err := s.events.PublishTurn(ctx, ev); err != nil {
			logger.Warn().Err(err).Msg("publish turn event failed")
		}
	}()
}
