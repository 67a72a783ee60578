package logging

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"
)

func restoreGlobalLogger(t *testing.T) {
	prev, prevLevel := log.Logger, zerolog.GlobalLevel()
	t.Cleanup(func() {
		log.Logger = prev
		zerolog.SetGlobalLevel(prevLevel)
	})
}

func TestInit_JSONToFile(t *testing.T) {
	restoreGlobalLogger(t)
	path := filepath.Join(t.TempDir(), "coach.log")

	closer, err := Init(Settings{Level: "debug", Format: FormatJSON, File: path})
	require.NoError(t, err)
	log.Debug().Str("component", "test").Msg("hello")
	log.Trace().Msg("filtered")
	require.NoError(t, closer.Close())

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(b)), "\n")
	require.Len(t, lines, 1)
	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	require.Equal(t, "hello", entry["message"])
	require.Equal(t, "test", entry["component"])
	require.Equal(t, "debug", entry["level"])
}

func TestInit_RejectsBadSettings(t *testing.T) {
	restoreGlobalLogger(t)
	_, err := Init(Settings{Level: "loud"})
	require.Error(t, err)
	_, err = Init(Settings{Format: "xml"})
	require.Error(t, err)
}

func TestSettingsFromViper(t *testing.T) {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	AddFlags(fs)
	require.NoError(t, fs.Parse([]string{"--log-level", "warn", "--log-format", "json"}))
	v := viper.New()
	require.NoError(t, v.BindPFlags(fs))

	s := SettingsFromViper(v)
	require.Equal(t, "warn", s.Level)
	require.Equal(t, FormatJSON, s.Format)
	require.Empty(t, s.File)
	require.False(t, s.WithCaller)
}
