package logger

import (
	"io"
	"log"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/lmittmann/tint"
)

type Options struct {
	Level string // debug, info, warn, error
	Type  string // json or text
	Env   string // colour output only for "local"
}

// New builds the service logger and installs it as the slog default.
func New(w io.Writer, opts Options) *slog.Logger {
	level := ParseLevel(opts.Level)
	slog.SetLogLoggerLevel(level)

	replaceAttrs := func(groups []string, a slog.Attr) slog.Attr {
		if a.Key == slog.SourceKey {
			if source, ok := a.Value.Any().(*slog.Source); ok {
				source.File = filepath.Base(source.File)
			}
		}
		return a
	}

	var l *slog.Logger
	if strings.ToLower(opts.Type) == "json" {
		l = slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
			AddSource:   true,
			Level:       level,
			ReplaceAttr: replaceAttrs}))
	} else {
		l = slog.New(tint.NewHandler(w, &tint.Options{
			AddSource:   true,
			Level:       level,
			ReplaceAttr: replaceAttrs,
			NoColor:     opts.Env != "local"}))
	}

	slog.SetDefault(l)
	l.Debug("debug messages are enabled.")

	return l
}

// ParseLevel falls back to debug for names slog does not know.
func ParseLevel(name string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToLower(name))); err != nil {
		log.Printf("encountered log level: '%s'. The package does not support custom log levels", name)
		return slog.LevelDebug
	}
	return level
}
