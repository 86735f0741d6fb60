package app

import (
	"fmt"
	"io"
	"log/slog"
	"os"
)

// Logger wraps the process slog.Logger together with the log file it may own.
type Logger struct {
	*slog.Logger
	file io.Closer
}

// NewLogger builds the process logger. Verbosity 0 logs warnings and errors,
// 1 adds info, 2 adds debug. Output goes to stderr unless logFile names a
// destination, keeping stdout clean for rendered results.
func NewLogger(verbose int, logFile string) (*Logger, error) {
	level := slog.LevelWarn
	switch {
	case verbose >= 2:
		level = slog.LevelDebug
	case verbose == 1:
		level = slog.LevelInfo
	}

	var w io.Writer = os.Stderr
	var file io.Closer
	if logFile != "" {
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		w, file = f, f
	}

	handler := slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
	return &Logger{Logger: slog.New(handler), file: file}, nil
}

// Close releases the log file, if any.
func (l *Logger) Close() error {
	if l.file == nil {
		return nil
	}
	return l.file.Close()
}

// Err wraps an error as a slog attribute.
func Err(err error) slog.Attr {
	return slog.String("error", err.Error())
}
