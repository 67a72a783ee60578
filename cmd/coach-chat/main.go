package main

import (
	"context"
	"io"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/go-go-golems/coachchat/pkg/logging"
)

var logCloser io.Closer

var rootCmd = &cobra.Command{
	Use:           "coach-chat",
	Short:         "coach-chat is a streaming AI fitness coach with per-user history",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := initViper(cmd); err != nil {
			return err
		}
		// reinitialize the logger now that --log-level and co are parsed
		closer, err := logging.Init(logging.SettingsFromViper(viper.GetViper()))
		if err != nil {
			return err
		}
		logCloser = closer
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logCloser != nil {
			_ = logCloser.Close()
		}
	},
}

// initViper binds the command's flags, COACHCHAT_* variables and the optional
// config file into the global viper instance.
func initViper(cmd *cobra.Command) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return errors.Wrap(err, "load .env")
	}
	viper.SetEnvPrefix("COACHCHAT")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return errors.Wrap(err, "bind flags")
	}
	if err := viper.BindEnv("api-key", "COACHCHAT_API_KEY", "GEMINI_API_KEY", "API_KEY"); err != nil {
		return errors.Wrap(err, "bind api key env")
	}
	if path := viper.GetString("config"); path != "" {
		viper.SetConfigFile(path)
		if err := viper.ReadInConfig(); err != nil {
			return errors.Wrapf(err, "read config %s", path)
		}
	}
	return nil
}

func main() {
	rootCmd.PersistentFlags().String("config", "", "Optional YAML config file")
	logging.AddFlags(rootCmd.PersistentFlags())

	rootCmd.AddCommand(newServeCommand(), newChatCommand(), newHistoryCommand())

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		log.Error().Err(err).Msg("coach-chat failed")
		os.Exit(1)
	}
}
