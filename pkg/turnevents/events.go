package turnevents

import (
	"context"
	"encoding/json"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// Topic carries one TurnEvent per finished turn.
const Topic = "chat.turns"

type TurnEvent struct {
	UserID        string    `json:"user_id"`
	UserMessageID string    `json:"user_message_id"`
	AIMessageID   string    `json:"ai_message_id"`
	Status        string    `json:"status"`
	ReplyChars    int       `json:"reply_chars"`
	PromptTokens  int       `json:"prompt_tokens"`
	ReplyTokens   int       `json:"reply_tokens"`
	DurationMs    int64     `json:"duration_ms"`
	At            time.Time `json:"at"`
}

// Sink receives turn events. Implementations must not block the caller for long.
type Sink interface {
	PublishTurn(ctx context.Context, ev TurnEvent) error
}

type Publisher struct {
	pub   message.Publisher
	topic string
}

var _ Sink = &Publisher{}

func NewPublisher(pub message.Publisher) *Publisher {
	return &Publisher{pub: pub, topic: Topic}
}

func (p *Publisher) PublishTurn(ctx context.Context, ev TurnEvent) error {
	if p == nil || p.pub == nil {
		return nil
	}
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return errors.Wrap(err, "encode turn event")
	}
	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.SetContext(ctx)
	msg.Metadata.Set("user_id", ev.UserID)
	msg.Metadata.Set("status", ev.Status)
	if err := p.pub.Publish(p.topic, msg); err != nil {
		return errors.Wrap(err, "publish turn event")
	}
	return nil
}

func Decode(msg *message.Message) (TurnEvent, error) {
	var ev TurnEvent
	if msg == nil {
		return ev, errors.New("nil message")
	}
	if err := json.Unmarshal(msg.Payload, &ev); err != nil {
		return ev, errors.Wrap(err, "decode turn event")
	}
	return ev, nil
}

// NewLogHandler logs every turn event. Malformed payloads are logged and dropped.
func NewLogHandler(logger zerolog.Logger) message.NoPublishHandlerFunc {
	logger = logger.With().Str("component", "turn-events").Logger()
	return func(msg *message.Message) error {
		ev, err := Decode(msg)
		if err != nil {
			logger.Warn().Err(err).Str("message_uuid", msg.UUID).Msg("dropping malformed turn event")
			return nil
		}
		logger.Info().
			Str("user_id", ev.UserID).
			Str("status", ev.Status).
			Str("ai_message_id", ev.AIMessageID).
			Int("reply_chars", ev.ReplyChars).
			Int("prompt_tokens", ev.PromptTokens).
			Int("reply_tokens", ev.ReplyTokens).
			Int64("duration_ms", ev.DurationMs).
			Msg("turn finished")
		return nil
	}
}

// NewRouter builds a watermill router with the turn logger attached to sub.
func NewRouter(sub message.Subscriber, logger zerolog.Logger, wmLogger watermill.LoggerAdapter) (*message.Router, error) {
	if sub == nil {
		return nil, errors.New("turn events: subscriber is nil")
	}
	if wmLogger == nil {
		wmLogger = watermill.NopLogger{}
	}
	router, err := message.NewRouter(message.RouterConfig{}, wmLogger)
	if err != nil {
		return nil, errors.Wrap(err, "create router")
	}
	router.AddNoPublisherHandler("turn-logger", Topic, sub, NewLogHandler(logger))
	return router, nil
}
