package logger

import (
	"io"
	"log/slog"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"
)

type Logger struct {
	*slog.Logger
	closer io.Closer
}

// Options configures the optional rotated log file written alongside stdout.
type Options struct {
	FilePath   string
	MaxSizeMB  int
	MaxBackups int
}

func New(env string, opts ...Options) *Logger {
	var handler slog.Handler

	handlerOpts := &slog.HandlerOptions{
		Level: getLogLevel(env),
	}

	var out io.Writer = os.Stdout
	var closer io.Closer
	if len(opts) > 0 && opts[0].FilePath != "" {
		rotator := &lumberjack.Logger{
			Filename:   opts[0].FilePath,
			MaxSize:    opts[0].MaxSizeMB,
			MaxBackups: opts[0].MaxBackups,
			MaxAge:     30,
			Compress:   true,
		}
		out = io.MultiWriter(os.Stdout, rotator)
		closer = rotator
	}

	if env == "production" {
		handler = slog.NewJSONHandler(out, handlerOpts)
	} else {
		handler = slog.NewTextHandler(out, handlerOpts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)

	return &Logger{Logger: logger, closer: closer}
}

func getLogLevel(env string) slog.Level {
	if env == "production" {
		return slog.LevelInfo
	}
	return slog.LevelDebug
}

// WithFields returns a logger that adds args to every record. The file, if
// any, stays owned by the receiver.
func (l *Logger) WithFields(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...)}
}

// Close flushes and closes the rotated file, if one is open.
func (l *Logger) Close() error {
	if l.closer == nil {
		return nil
	}
	return l.closer.Close()
}
