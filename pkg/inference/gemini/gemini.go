package gemini

import (
	"context"
	"iter"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"google.golang.org/genai"

	"github.com/go-go-golems/coachchat/pkg/chat"
	"github.com/go-go-golems/coachchat/pkg/inference"
)

type Settings struct {
	APIKey     string
	Generation inference.GenerationSettings
}

// Model streams replies from the Gemini API through a chat session seeded
// with the caller's history.
type Model struct {
	client     *genai.Client
	generation inference.GenerationSettings
	logger     zerolog.Logger
}

var _ inference.Model = &Model{}

func New(ctx context.Context, s Settings, logger zerolog.Logger) (*Model, error) {
	if strings.TrimSpace(s.APIKey) == "" {
		return nil, inference.ErrMissingAPIKey
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  s.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, errors.Wrap(err, "create genai client")
	}
	return &Model{
		client:     client,
		generation: s.Generation.WithDefaults(),
		logger:     logger.With().Str("component", "gemini").Logger(),
	}, nil
}

// BuildConfig turns operator settings into a request config.
func BuildConfig(g inference.GenerationSettings) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{
		MaxOutputTokens: g.MaxOutputTokens,
		ThinkingConfig: &genai.ThinkingConfig{
			ThinkingBudget: genai.Ptr(g.ThinkingBudget),
		},
	}
	if strings.TrimSpace(g.SystemInstruction) != "" {
		cfg.SystemInstruction = genai.NewContentFromText(g.SystemInstruction, genai.RoleUser)
	}
	return cfg
}

// BuildHistory translates messages to the upstream role vocabulary, skipping
// the canned greeting.
func BuildHistory(msgs []chat.Message) []*genai.Content {
	out := make([]*genai.Content, 0, len(msgs))
	for _, m := range msgs {
		if m.IsGreeting() {
			continue
		}
		out = append(out, genai.NewContentFromText(m.Text, genai.Role(chat.UpstreamRole(m.Role))))
	}
	return out
}

func (m *Model) StreamReply(ctx context.Context, req inference.Request) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		session, err := m.client.Chats.Create(ctx, m.generation.Model, BuildConfig(m.generation), BuildHistory(req.History))
		if err != nil {
			yield("", errors.Wrap(err, "create chat session"))
			return
		}
		m.logger.Debug().
			Str("model", m.generation.Model).
			Int("history", len(req.History)).
			Msg("sending message stream")

		for resp, err := range session.SendMessageStream(ctx, genai.Part{Text: req.Text}) {
			if err != nil {
				yield("", errors.Wrap(err, "gemini stream"))
				return
			}
			if resp == nil {
				continue
			}
			if !yield(resp.Text(), nil) {
				return
			}
		}
	}
}
