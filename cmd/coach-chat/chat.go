package main

import (
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/go-go-golems/coachchat/pkg/chatclient"
	"github.com/go-go-golems/coachchat/pkg/persona"
	"github.com/go-go-golems/coachchat/pkg/ui"
)

const defaultUserID = "user_123_demo"

func addClientFlags(cmd *cobra.Command) {
	cmd.Flags().String("server", "http://localhost:8080", "Gateway base URL")
	cmd.Flags().String("user-id", defaultUserID, "User id whose conversation is shown")
}

func newChatCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat with the coach in the terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			v := viper.GetViper()
			p, err := persona.Load(v.GetString("persona-file"))
			if err != nil {
				return err
			}
			// the terminal belongs to the UI; only log when a file was asked for
			logger := log.Logger
			if v.GetString("log-file") == "" {
				logger = zerolog.Nop()
			}
			session, err := chatclient.NewSession(chatclient.NewHTTPAPI(v.GetString("server"), nil), chatclient.Config{
				UserID:   v.GetString("user-id"),
				Greeting: p.GreetingMessage(),
				Apology:  p.Apology,
				Logger:   logger,
			})
			if err != nil {
				return err
			}
			return ui.Run(cmd.Context(), session, p, logger)
		},
	}
	addClientFlags(cmd)
	cmd.Flags().String("persona-file", "", "Persona YAML overriding the built-in coach")
	return cmd
}
