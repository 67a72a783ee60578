package turnevents

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestPublisher_RoundTrip(t *testing.T) {
	ch := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
	t.Cleanup(func() { _ = ch.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	msgs, err := ch.Subscribe(ctx, Topic)
	require.NoError(t, err)

	p := NewPublisher(ch)
	require.NoError(t, p.PublishTurn(ctx, TurnEvent{UserID: "alice", Status: "committed", ReplyChars: 11}))

	select {
	case msg := <-msgs:
		ev, err := Decode(msg)
		require.NoError(t, err)
		require.Equal(t, "alice", ev.UserID)
		require.Equal(t, "committed", ev.Status)
		require.Equal(t, 11, ev.ReplyChars)
		require.False(t, ev.At.IsZero())
		require.Equal(t, "committed", msg.Metadata.Get("status"))
		msg.Ack()
	case <-ctx.Done():
		t.Fatal("timed out")
	}
}

func TestNilPublisherIsNoop(t *testing.T) {
	var p *Publisher
	require.NoError(t, p.PublishTurn(context.Background(), TurnEvent{}))
}

func TestLogHandler(t *testing.T) {
	var buf bytes.Buffer
	h := NewLogHandler(zerolog.New(&buf))

	require.NoError(t, h(message.NewMessage("1", []byte(`{"user_id":"bob","status":"skipped"}`))))
	require.Contains(t, buf.String(), `"user_id":"bob"`)
	require.Contains(t, buf.String(), `"status":"skipped"`)

	buf.Reset()
	require.NoError(t, h(message.NewMessage("2", []byte(`not json`))))
	require.Contains(t, buf.String(), "malformed")
}

func TestRouter_LogsPublishedEvents(t *testing.T) {
	ch := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
	out := &syncBuffer{}

	router, err := NewRouter(ch, zerolog.New(out), nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- router.Run(ctx) }()
	<-router.Running()

	require.NoError(t, NewPublisher(ch).PublishTurn(ctx, TurnEvent{UserID: "carol", Status: "committed"}))
	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), `"user_id":"carol"`)
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
	require.NoError(t, ch.Close())

	_, err = NewRouter(nil, zerolog.Nop(), nil)
	require.Error(t, err)
}
