package chat

import (
	"encoding/json"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Role identifies who authored a message.
type Role string

const (
	RoleUser Role = "user"
	RoleAI   Role = "ai"
)

// GreetingID is the id of the canned greeting shown to users without history.
// The greeting is never persisted and never forwarded upstream.
const GreetingID = "initial"

func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAI
}

func (r *Role) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return errors.Wrap(err, "decode role")
	}
	role := Role(strings.ToLower(strings.TrimSpace(s)))
	if !role.Valid() {
		return errors.Errorf("unknown role %q", s)
	}
	*r = role
	return nil
}

// UpstreamRole maps a role onto the vocabulary of the model service.
func UpstreamRole(r Role) string {
	if r == RoleUser {
		return "user"
	}
	return "model"
}

// Message is a single entry of a conversation.
type Message struct {
	ID   string `json:"id"`
	Role Role   `json:"role"`
	Text string `json:"text"`
}

// NewMessage creates a message with a fresh time-ordered id.
func NewMessage(role Role, text string) Message {
	return Message{ID: NewID(), Role: role, Text: text}
}

// NewID returns a unique id. UUIDv7 ids sort by creation time.
func NewID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

func (m Message) IsGreeting() bool {
	return m.ID == GreetingID
}

// Turn is one user message and the reply generated for it. Turns are
// persisted as a whole or not at all.
type Turn struct {
	User Message
	AI   Message
}

// WithoutGreeting returns msgs minus any canned greeting entries.
func WithoutGreeting(msgs []Message) []Message {
	out := make([]Message, 0, len(msgs))
	for _, m := range msgs {
		if m.IsGreeting() {
			continue
		}
		out = append(out, m)
	}
	return out
}

// Clone copies msgs so callers can hand out snapshots without aliasing.
func Clone(msgs []Message) []Message {
	if msgs == nil {
		return nil
	}
	out := make([]Message, len(msgs))
	copy(out, msgs)
	return out
}

// LastIndexOfRole returns the index of the most recent message with role r, or -1.
func LastIndexOfRole(msgs []Message, r Role) int {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == r {
			return i
		}
	}
	return -1
}
