package webchat

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/go-go-golems/coachchat/pkg/chat"
)

const (
	msgMissingFields     = "Missing required fields: userId, userMessage"
	msgMissingUserID     = "userId query parameter is required"
	msgInternalError     = "Internal Server Error"
	msgMalformedJSONBody = "Malformed request body"
	msgUserRoleRequired  = "userMessage.role must be \"user\""
	msgShuttingDown      = "Server is shutting down"
)

// TurnRequest is the body of POST /api/chat and the first frame on /api/chat/ws.
type TurnRequest struct {
	UserID      string         `json:"userId"`
	UserMessage *chat.Message  `json:"userMessage"`
	History     []chat.Message `json:"history"`
}

// Validate checks the required fields and fills in a missing message id or
// role. The new message must be a user message.
func (r *TurnRequest) Validate() error {
	if r == nil || strings.TrimSpace(r.UserID) == "" || r.UserMessage == nil {
		return &RequestError{Status: http.StatusBadRequest, ClientMsg: msgMissingFields}
	}
	if strings.TrimSpace(r.UserMessage.ID) == "" {
		r.UserMessage.ID = chat.NewID()
	}
	switch r.UserMessage.Role {
	case "":
		r.UserMessage.Role = chat.RoleUser
	case chat.RoleUser:
	default:
		return &RequestError{Status: http.StatusBadRequest, ClientMsg: msgUserRoleRequired}
	}
	return nil
}

// ChunkWriter receives reply text as it arrives. WriteChunk must deliver the
// chunk to the client before returning.
type ChunkWriter interface {
	WriteChunk(text string) error
}

type ChunkWriterFunc func(text string) error

func (f ChunkWriterFunc) WriteChunk(text string) error { return f(text) }

// RequestError is returned for requests that are rejected before any upstream call.
type RequestError struct {
	Status    int
	ClientMsg string
	Err       error
}

func (e *RequestError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return fmt.Sprintf("request error (%d): %s: %v", e.Status, e.ClientMsg, e.Err)
	}
	return fmt.Sprintf("request error (%d): %s", e.Status, e.ClientMsg)
}

func (e *RequestError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// UpstreamError reports a failed model stream. Started is true when at least
// one chunk had already been written to the client.
type UpstreamError struct {
	Started bool
	Err     error
}

func (e *UpstreamError) Error() string {
	if e == nil {
		return ""
	}
	if e.Started {
		return fmt.Sprintf("upstream stream failed mid-reply: %v", e.Err)
	}
	return fmt.Sprintf("upstream stream failed: %v", e.Err)
}

func (e *UpstreamError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// TurnState tracks a single chat request through the proxy.
type TurnState int

const (
	TurnReceived TurnState = iota
	TurnValidated
	TurnStreaming
	TurnCompleted
	TurnPersisting
	TurnFailed
)

func (s TurnState) String() string {
	switch s {
	case TurnReceived:
		return "received"
	case TurnValidated:
		return "validated"
	case TurnStreaming:
		return "streaming"
	case TurnCompleted:
		return "completed"
	case TurnPersisting:
		return "persisting"
	case TurnFailed:
		return "failed"
	default:
		return fmt.Sprintf("turn-state(%d)", int(s))
	}
}
