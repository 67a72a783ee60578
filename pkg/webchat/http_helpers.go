package webchat

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/go-go-golems/coachchat/pkg/chat"
)

// maxTurnRequestBytes caps the JSON body of a chat request, history included.
const maxTurnRequestBytes = 1 << 20

// ChatHTTPService describes the streaming turn surface used by HTTP handlers.
type ChatHTTPService interface {
	StreamTurn(ctx context.Context, req TurnRequest, w ChunkWriter) error
}

// HistoryHTTPService describes history reads used by HTTP handlers.
type HistoryHTTPService interface {
	Get(ctx context.Context, userID string) []chat.Message
}

type errorBody struct {
	Error string `json:"error"`
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorBody{Error: msg})
}

func NewHistoryHTTPHandler(svc HistoryHTTPService, logger zerolog.Logger) http.HandlerFunc {
	logger = logger.With().Str("component", "history-http").Logger()
	return func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodGet {
			w.Header().Set("Allow", http.MethodGet)
			writeJSONError(w, http.StatusMethodNotAllowed, http.StatusText(http.StatusMethodNotAllowed))
			return
		}
		if svc == nil {
			writeJSONError(w, http.StatusServiceUnavailable, "history not initialized")
			return
		}
		userID := strings.TrimSpace(req.URL.Query().Get("userId"))
		if userID == "" {
			writeJSONError(w, http.StatusBadRequest, msgMissingUserID)
			return
		}
		msgs := svc.Get(req.Context(), userID)
		if msgs == nil {
			msgs = []chat.Message{}
		}
		out, err := json.Marshal(msgs)
		if err != nil {
			logger.Error().Err(err).Str("user_id", userID).Msg("history encode failed")
			writeJSONError(w, http.StatusInternalServerError, msgInternalError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-store")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		if _, err := w.Write(out); err != nil {
			logger.Warn().Err(err).Str("user_id", userID).Msg("history write failed")
		}
	}
}

// chunkResponseWriter commits the 200 status on the first chunk, so errors
// that happen before any output can still be reported as JSON.
type chunkResponseWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
	started bool
}

func (c *chunkResponseWriter) commit() {
	if c.started {
		return
	}
	h := c.w.Header()
	h.Set("Content-Type", "text/plain; charset=utf-8")
	h.Set("Cache-Control", "no-cache")
	h.Set("X-Content-Type-Options", "nosniff")
	c.w.WriteHeader(http.StatusOK)
	c.started = true
}

func (c *chunkResponseWriter) WriteChunk(text string) error {
	c.commit()
	if _, err := c.w.Write([]byte(text)); err != nil {
		return err
	}
	if c.flusher != nil {
		c.flusher.Flush()
	}
	return nil
}

func NewChatHTTPHandler(svc ChatHTTPService, logger zerolog.Logger) http.HandlerFunc {
	logger = logger.With().Str("component", "chat-http").Logger()
	return func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodPost {
			w.Header().Set("Allow", http.MethodPost)
			writeJSONError(w, http.StatusMethodNotAllowed, http.StatusText(http.StatusMethodNotAllowed))
			return
		}
		if svc == nil {
			writeJSONError(w, http.StatusServiceUnavailable, "chat service not initialized")
			return
		}
		var body TurnRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, req.Body, maxTurnRequestBytes)).Decode(&body); err != nil {
			logger.Debug().Err(err).Msg("malformed chat request")
			writeJSONError(w, http.StatusBadRequest, msgMalformedJSONBody)
			return
		}

		flusher, _ := w.(http.Flusher)
		cw := &chunkResponseWriter{w: w, flusher: flusher}
		err := svc.StreamTurn(req.Context(), body, cw)
		if err == nil {
			cw.commit()
			return
		}

		var reqErr *RequestError
		if stderrors.As(err, &reqErr) && reqErr != nil {
			status := reqErr.Status
			if status <= 0 {
				status = http.StatusBadRequest
			}
			writeJSONError(w, status, reqErr.ClientMsg)
			return
		}
		if !cw.started {
			writeJSONError(w, http.StatusInternalServerError, msgInternalError)
			return
		}
		// Part of the reply is already on the wire. Dropping the connection
		// lets the client tell a cut-off reply from a finished one.
		logger.Warn().Err(err).Str("user_id", body.UserID).Msg("aborting partial reply")
		panic(http.ErrAbortHandler)
	}
}

const (
	wsFirstFrameTimeout = 30 * time.Second
	wsWriteTimeout      = 10 * time.Second
)

// NewChatWSHandler serves the same turn as POST /api/chat over a websocket:
// the first text frame carries the TurnRequest, every chunk goes out as a
// text frame and a close frame ends the turn.
func NewChatWSHandler(svc ChatHTTPService, upgrader websocket.Upgrader, logger zerolog.Logger) http.HandlerFunc {
	logger = logger.With().Str("component", "chat-ws").Logger()
	return func(w http.ResponseWriter, req *http.Request) {
		if svc == nil {
			http.Error(w, "chat service not initialized", http.StatusServiceUnavailable)
			return
		}
		conn, err := upgrader.Upgrade(w, req, nil)
		if err != nil {
			logger.Debug().Err(err).Msg("websocket upgrade failed")
			return
		}
		defer func() { _ = conn.Close() }()

		closeWith := func(code int, reason string) {
			msg := websocket.FormatCloseMessage(code, reason)
			if err := conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(wsWriteTimeout)); err != nil {
				logger.Debug().Err(err).Msg("websocket close frame failed")
			}
		}

		conn.SetReadLimit(maxTurnRequestBytes)
		_ = conn.SetReadDeadline(time.Now().Add(wsFirstFrameTimeout))
		mt, data, err := conn.ReadMessage()
		if err != nil {
			logger.Debug().Err(err).Msg("websocket closed before request")
			return
		}
		var body TurnRequest
		if mt != websocket.TextMessage || json.Unmarshal(data, &body) != nil {
			closeWith(websocket.CloseUnsupportedData, msgMalformedJSONBody)
			return
		}
		_ = conn.SetReadDeadline(time.Time{})

		ctx, cancel := context.WithCancel(req.Context())
		defer cancel()
		// The only inbound traffic after the request is control frames or a
		// close from the peer, which cancels the turn.
		go func() {
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					cancel()
					return
				}
			}
		}()

		err = svc.StreamTurn(ctx, body, ChunkWriterFunc(func(text string) error {
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			return conn.WriteMessage(websocket.TextMessage, []byte(text))
		}))
		if err == nil {
			closeWith(websocket.CloseNormalClosure, "")
			return
		}
		var reqErr *RequestError
		if stderrors.As(err, &reqErr) && reqErr != nil {
			code := websocket.ClosePolicyViolation
			if reqErr.Status == http.StatusServiceUnavailable {
				code = websocket.CloseTryAgainLater
			}
			closeWith(code, reqErr.ClientMsg)
			return
		}
		logger.Warn().Err(err).Str("user_id", body.UserID).Msg("websocket turn failed")
		closeWith(websocket.CloseInternalServerErr, msgInternalError)
	}
}

func NewHealthHTTPHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	}
}
