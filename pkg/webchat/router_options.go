package webchat

import (
	"io"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// RouterOption configures optional dependencies for a Router.
type RouterOption func(*Router) error

func WithWebSocketUpgrader(u websocket.Upgrader) RouterOption {
	return func(r *Router) error {
		r.upgrader = u
		return nil
	}
}

func WithLogger(logger zerolog.Logger) RouterOption {
	return func(r *Router) error {
		r.logger = logger
		return nil
	}
}

// WithEventRouter hands the turn-event router to the Router, which runs it
// alongside the HTTP server and closes it on shutdown.
func WithEventRouter(er *message.Router) RouterOption {
	return func(r *Router) error {
		if er == nil {
			return errors.New("event router is nil")
		}
		r.eventRouter = er
		return nil
	}
}

// WithCloser registers a resource released after the event router, such as
// the event transport.
func WithCloser(c io.Closer) RouterOption {
	return func(r *Router) error {
		if c == nil {
			return errors.New("closer is nil")
		}
		r.closers = append(r.closers, c)
		return nil
	}
}
