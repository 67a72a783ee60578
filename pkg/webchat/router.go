package webchat

import (
	"context"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// Router wires the chat service onto the HTTP routes of the gateway and owns
// the optional turn-event router.
type Router struct {
	mux         *http.ServeMux
	chatService *ChatService
	upgrader    websocket.Upgrader
	logger      zerolog.Logger

	eventRouter *message.Router
	// watermill's Close waits out its timeout on a router that never ran
	eventRouterStarted atomic.Bool
	closers            []io.Closer
}

func NewRouter(svc *ChatService, opts ...RouterOption) (*Router, error) {
	if svc == nil {
		return nil, errors.New("chat service is nil")
	}
	r := &Router{
		mux:         http.NewServeMux(),
		chatService: svc,
		logger:      zerolog.Nop(),
	}
	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, err
		}
	}
	r.logger = r.logger.With().Str("component", "webchat").Logger()
	r.registerHTTPHandlers()
	return r, nil
}

func (r *Router) registerHTTPHandlers() {
	r.mux.Handle("/api/history", NewHistoryHTTPHandler(r.chatService.History(), r.logger))
	r.mux.Handle("/api/chat", NewChatHTTPHandler(r.chatService, r.logger))
	r.mux.Handle("/api/chat/ws", NewChatWSHandler(r.chatService, r.upgrader, r.logger))
	r.mux.Handle("/healthz", NewHealthHTTPHandler())
}

func (r *Router) Handle(pattern string, h http.Handler) { r.mux.Handle(pattern, h) }

func (r *Router) Handler() http.Handler { return r.mux }

func (r *Router) ChatService() *ChatService { return r.chatService }

// BuildHTTPServer returns an http.Server for the mounted routes. There is no
// write timeout: a streamed reply stays open as long as the model produces
// chunks, and the chat service bounds idle gaps.
func (r *Router) BuildHTTPServer(addr string) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           r.mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}

// RunEventRouter runs the turn-event router until ctx is done. It returns
// immediately when no event router is configured.
func (r *Router) RunEventRouter(ctx context.Context) error {
	if r.eventRouter == nil {
		return nil
	}
	r.logger.Info().Msg("starting turn event router")
	r.eventRouterStarted.Store(true)
	if err := r.eventRouter.Run(ctx); err != nil {
		r.logger.Error().Err(err).Msg("turn event router exited with error")
		return err
	}
	r.logger.Info().Msg("turn event router exited")
	return nil
}

// Close stops accepting turns, drains running turns and their commits, then
// releases the event transport and history store.
func (r *Router) Close() error {
	r.chatService.Close()
	var first error
	if r.eventRouter != nil && r.eventRouterStarted.Load() {
		if err := r.eventRouter.Close(); err != nil {
			r.logger.Error().Err(err).Msg("turn event router close error")
			first = err
		}
	}
	for _, c := range r.closers {
		if err := c.Close(); err != nil {
			r.logger.Error().Err(err).Msg("close error")
			if first == nil {
				first = err
			}
		}
	}
	if err := r.chatService.History().Close(); err != nil {
		r.logger.Error().Err(err).Msg("history store close error")
		if first == nil {
			first = err
		}
	}
	return first
}
