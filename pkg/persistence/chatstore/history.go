package chatstore

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"github.com/go-go-golems/coachchat/pkg/chat"
)

type CommitResult string

const (
	CommitCommitted CommitResult = "committed"
	CommitSkipped   CommitResult = "skipped"
	CommitFailed    CommitResult = "failed"
)

// History applies the persistence policy on top of a HistoryStore: storage
// failures are logged and never reach the caller, and only turns with a
// non-empty reply are committed.
type History struct {
	store  HistoryStore
	logger zerolog.Logger
}

func NewHistory(store HistoryStore, logger zerolog.Logger) *History {
	return &History{
		store:  store,
		logger: logger.With().Str("component", "history").Logger(),
	}
}

func (h *History) Store() HistoryStore {
	if h == nil {
		return nil
	}
	return h.store
}

// Get returns the user's history oldest first, or an empty slice when the
// history is missing or unreadable.
func (h *History) Get(ctx context.Context, userID string) []chat.Message {
	if h == nil || h.store == nil {
		return []chat.Message{}
	}
	msgs, err := h.store.List(ctx, userID)
	if err != nil {
		h.logger.Error().Err(err).Str("user_id", userID).Msg("history read failed, treating as empty")
		return []chat.Message{}
	}
	if msgs == nil {
		return []chat.Message{}
	}
	return msgs
}

func (h *History) CommitTurn(ctx context.Context, userID string, turn chat.Turn) CommitResult {
	if h == nil || h.store == nil {
		return CommitFailed
	}
	if strings.TrimSpace(turn.AI.Text) == "" {
		h.logger.Debug().Str("user_id", userID).Str("user_message_id", turn.User.ID).Msg("empty reply, turn not saved")
		return CommitSkipped
	}
	if err := h.store.Append(ctx, userID, turn.User, turn.AI); err != nil {
		h.logger.Error().Err(err).Str("user_id", userID).Str("user_message_id", turn.User.ID).Msg("history write failed, turn not saved")
		return CommitFailed
	}
	h.logger.Debug().Str("user_id", userID).Str("ai_message_id", turn.AI.ID).Msg("turn saved")
	return CommitCommitted
}

func (h *History) Close() error {
	if h == nil || h.store == nil {
		return nil
	}
	return h.store.Close()
}
