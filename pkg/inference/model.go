package inference

import (
	"context"
	"iter"

	"github.com/pkg/errors"

	"github.com/go-go-golems/coachchat/pkg/chat"
)

// Request is one streaming completion: prior turns plus the new user utterance.
type Request struct {
	History []chat.Message
	Text    string
}

// Model produces a streaming reply. Each yielded string is a text chunk in
// arrival order; a non-nil error ends the stream.
type Model interface {
	StreamReply(ctx context.Context, req Request) iter.Seq2[string, error]
}

// GenerationSettings are fixed by the server operator, never by clients.
type GenerationSettings struct {
	Model             string
	SystemInstruction string
	MaxOutputTokens   int32
	ThinkingBudget    int32
}

const (
	DefaultModel           = "gemini-2.5-flash"
	DefaultMaxOutputTokens = 300
	DefaultThinkingBudget  = 50
)

func (s GenerationSettings) WithDefaults() GenerationSettings {
	if s.Model == "" {
		s.Model = DefaultModel
	}
	if s.MaxOutputTokens <= 0 {
		s.MaxOutputTokens = DefaultMaxOutputTokens
	}
	if s.ThinkingBudget < 0 {
		s.ThinkingBudget = DefaultThinkingBudget
	}
	return s
}

var ErrMissingAPIKey = errors.New("model API key is not configured")

// Unavailable fails every request without contacting anything. It stands in
// for a model whose configuration is incomplete.
type Unavailable struct {
	Err error
}

var _ Model = Unavailable{}

func (u Unavailable) StreamReply(context.Context, Request) iter.Seq2[string, error] {
	err := u.Err
	if err == nil {
		err = errors.New("model unavailable")
	}
	return func(yield func(string, error) bool) {
		yield("", err)
	}
}

// Scripted replays fixed chunks, then Err if set.
type Scripted struct {
	Chunks []string
	Err    error
}

var _ Model = Scripted{}

func (s Scripted) StreamReply(ctx context.Context, _ Request) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		for _, c := range s.Chunks {
			if err := ctx.Err(); err != nil {
				yield("", err)
				return
			}
			if !yield(c, nil) {
				return
			}
		}
		if s.Err != nil {
			yield("", s.Err)
		}
	}
}
