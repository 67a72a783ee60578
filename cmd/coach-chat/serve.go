package main

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/go-go-golems/coachchat/pkg/inference"
	"github.com/go-go-golems/coachchat/pkg/inference/gemini"
	"github.com/go-go-golems/coachchat/pkg/persistence/chatstore"
	"github.com/go-go-golems/coachchat/pkg/persona"
	"github.com/go-go-golems/coachchat/pkg/redisstream"
	"github.com/go-go-golems/coachchat/pkg/turnevents"
	"github.com/go-go-golems/coachchat/pkg/webchat"
)

type ServeSettings struct {
	Addr string

	History chatstore.Settings
	Events  redisstream.Settings

	APIKey      string
	Generation  inference.GenerationSettings
	IdleTimeout time.Duration
	PersonaFile string
}

func newServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the chat gateway (history and streaming chat endpoints)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), serveSettingsFromViper(viper.GetViper()))
		},
	}
	defaults := redisstream.DefaultSettings()
	fs := cmd.Flags()
	fs.String("addr", ":8080", "HTTP listen address")
	fs.String("history-backend", chatstore.BackendMemory, "History backend (memory, sqlite, redis)")
	fs.Int("history-max", chatstore.DefaultMaxMessages, "Messages kept per user")
	fs.String("sqlite-path", "data/history.db", "SQLite file for the sqlite backend")
	fs.String("redis-addr", defaults.Addr, "Redis address for the redis backend and turn events")
	fs.Int("redis-db", 0, "Redis database")
	fs.Bool("events-redis", false, "Publish turn events to Redis Streams instead of in memory")
	fs.String("model", inference.DefaultModel, "Gemini model name")
	fs.Int32("max-output-tokens", inference.DefaultMaxOutputTokens, "Maximum tokens per reply")
	fs.Int32("thinking-budget", inference.DefaultThinkingBudget, "Thinking token budget")
	fs.Duration("idle-timeout", webchat.DefaultIdleTimeout, "Fail a reply when the model is silent this long (0 disables)")
	fs.String("persona-file", "", "Persona YAML overriding the built-in coach")
	fs.String("api-key", "", "Gemini API key (also COACHCHAT_API_KEY, GEMINI_API_KEY, API_KEY)")
	return cmd
}

func serveSettingsFromViper(v *viper.Viper) ServeSettings {
	events := redisstream.DefaultSettings()
	events.Enabled = v.GetBool("events-redis")
	events.Addr = v.GetString("redis-addr")
	events.DB = v.GetInt("redis-db")
	return ServeSettings{
		Addr: v.GetString("addr"),
		History: chatstore.Settings{
			Backend:     v.GetString("history-backend"),
			MaxMessages: v.GetInt("history-max"),
			SQLitePath:  v.GetString("sqlite-path"),
			RedisAddr:   v.GetString("redis-addr"),
			RedisDB:     v.GetInt("redis-db"),
		},
		Events: events,
		APIKey: v.GetString("api-key"),
		Generation: inference.GenerationSettings{
			Model:           v.GetString("model"),
			MaxOutputTokens: v.GetInt32("max-output-tokens"),
			ThinkingBudget:  v.GetInt32("thinking-budget"),
		},
		IdleTimeout: v.GetDuration("idle-timeout"),
		PersonaFile: v.GetString("persona-file"),
	}
}

func buildModel(ctx context.Context, s ServeSettings, logger zerolog.Logger) (inference.Model, error) {
	m, err := gemini.New(ctx, gemini.Settings{APIKey: s.APIKey, Generation: s.Generation}, logger)
	if errors.Is(err, inference.ErrMissingAPIKey) {
		logger.Warn().Msg("no API key configured, chat requests will fail until one is set")
		return inference.Unavailable{Err: err}, nil
	}
	if err != nil {
		return nil, err
	}
	return m, nil
}

// buildRouter assembles history, model, turn events and HTTP routes. The
// returned router owns every resource it was handed.
func buildRouter(ctx context.Context, s ServeSettings, logger zerolog.Logger) (*webchat.Router, error) {
	p, err := persona.Load(s.PersonaFile)
	if err != nil {
		return nil, err
	}
	s.Generation.SystemInstruction = p.SystemInstruction

	model, err := buildModel(ctx, s, logger)
	if err != nil {
		return nil, err
	}

	store, err := chatstore.OpenHistoryStore(s.History)
	if err != nil {
		return nil, errors.Wrap(err, "open history store")
	}
	history := chatstore.NewHistory(store, logger)

	wmLogger := redisstream.NewWatermillLogger(logger)
	if s.Events.Enabled {
		if err := redisstream.EnsureGroupAtTail(ctx, s.Events, turnevents.Topic); err != nil {
			_ = history.Close()
			return nil, errors.Wrap(err, "create turn event consumer group")
		}
	}
	bus, err := redisstream.BuildPubSub(s.Events, wmLogger)
	if err != nil {
		_ = history.Close()
		return nil, errors.Wrap(err, "build turn event transport")
	}
	eventRouter, err := turnevents.NewRouter(bus.Subscriber, logger, wmLogger)
	if err != nil {
		_ = bus.Close()
		_ = history.Close()
		return nil, err
	}

	svc, err := webchat.NewChatService(webchat.ChatServiceConfig{
		Model:       model,
		History:     history,
		Events:      turnevents.NewPublisher(bus.Publisher),
		IdleTimeout: s.IdleTimeout,
		Logger:      logger,
	})
	if err != nil {
		_ = bus.Close()
		_ = history.Close()
		return nil, err
	}
	return webchat.NewRouter(svc,
		webchat.WithLogger(logger),
		webchat.WithEventRouter(eventRouter),
		webchat.WithCloser(bus),
		webchat.WithWebSocketUpgrader(websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		}),
	)
}

func runServe(ctx context.Context, s ServeSettings) error {
	logger := log.Logger
	r, err := buildRouter(ctx, s, logger)
	if err != nil {
		return err
	}
	logger.Info().
		Str("history_backend", s.History.Backend).
		Int("history_max", s.History.MaxMessages).
		Bool("events_redis", s.Events.Enabled).
		Str("model", s.Generation.Model).
		Msg("gateway configured")
	srv, err := webchat.NewServer(s.Addr, r)
	if err != nil {
		_ = r.Close()
		return err
	}
	return srv.Run(ctx)
}
