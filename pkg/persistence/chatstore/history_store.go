package chatstore

import (
	"context"

	"github.com/go-go-golems/coachchat/pkg/chat"
)

// DefaultMaxMessages keeps the five most recent turns.
const DefaultMaxMessages = 10

// HistoryStore persists a bounded, per-user log of messages.
//
// Append must add both messages and trim the log to the configured cap as a single
// atomic step: a concurrent List never observes more than the cap, and never
// observes one half of a turn without the other.
type HistoryStore interface {
	List(ctx context.Context, userID string) ([]chat.Message, error)
	Append(ctx context.Context, userID string, user, ai chat.Message) error
	Close() error
}

func normalizeMaxMessages(n int) int {
	if n <= 0 {
		return DefaultMaxMessages
	}
	return n
}

// trimToLast returns the last max entries of msgs, discarding the oldest first.
func trimToLast(msgs []chat.Message, max int) []chat.Message {
	if max <= 0 || len(msgs) <= max {
		return msgs
	}
	return msgs[len(msgs)-max:]
}
