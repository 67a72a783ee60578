// Package logging configures the global zerolog logger from command-line flags.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	FormatText = "text"
	FormatJSON = "json"
)

type Settings struct {
	Level      string
	Format     string
	File       string
	WithCaller bool
}

// AddFlags registers the logging flags on a command's persistent flag set.
func AddFlags(fs *pflag.FlagSet) {
	fs.String("log-level", "info", "Log level (trace, debug, info, warn, error)")
	fs.String("log-format", FormatText, "Log format (text, json)")
	fs.String("log-file", "", "Write logs to this file instead of stderr")
	fs.Bool("with-caller", false, "Log caller file and line")
}

func SettingsFromViper(v *viper.Viper) Settings {
	return Settings{
		Level:      v.GetString("log-level"),
		Format:     v.GetString("log-format"),
		File:       v.GetString("log-file"),
		WithCaller: v.GetBool("with-caller"),
	}
}

// Init replaces log.Logger according to s. The returned closer releases the
// log file, if any.
func Init(s Settings) (io.Closer, error) {
	level := zerolog.InfoLevel
	if strings.TrimSpace(s.Level) != "" {
		l, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(s.Level)))
		if err != nil {
			return nil, errors.Wrapf(err, "invalid log level %q", s.Level)
		}
		level = l
	}

	var out io.Writer = os.Stderr
	var closer io.Closer = nopCloser{}
	tty := isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd())
	if s.File != "" {
		f, err := os.OpenFile(s.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, errors.Wrap(err, "open log file")
		}
		out, closer, tty = f, f, false
	}

	w, err := writerFor(out, s.Format, tty)
	if err != nil {
		_ = closer.Close()
		return nil, err
	}
	ctx := zerolog.New(w).Level(level).With().Timestamp()
	if s.WithCaller {
		ctx = ctx.Caller()
	}
	log.Logger = ctx.Logger()
	zerolog.SetGlobalLevel(level)
	return closer, nil
}

func writerFor(out io.Writer, format string, tty bool) (io.Writer, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", FormatText:
		return zerolog.ConsoleWriter{Out: out, NoColor: !tty, TimeFormat: time.RFC3339}, nil
	case FormatJSON:
		return out, nil
	default:
		return nil, errors.Errorf("unknown log format %q", format)
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
