package config

import (
	"io"
	"log/slog"
	"os"

	slogmulti "github.com/samber/slog-multi"
)

// serviceAttr tags every file-logged record so aggregated logs from the CLI
// and the server stay attributable to this process.
var serviceAttr = slog.String("service", "dbcoach")

// SetupLogger builds the process logger: human-readable text on stderr plus
// JSON appended to logFile. An empty or unopenable logFile degrades to a
// stderr-only logger. The returned cleanup closes the log file.
func SetupLogger(logFile string, level slog.Level) (*slog.Logger, func() error) {
	stderrHandler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})

	if logFile == "" {
		return slog.New(stderrHandler), func() error { return nil }
	}

	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		slog.Error("failed to open log file, using stderr only", "error", err, "file", logFile)
		return slog.New(stderrHandler), func() error { return nil }
	}

	fileHandler := slog.NewJSONHandler(file, &slog.HandlerOptions{
		Level: level,
	}).WithAttrs([]slog.Attr{serviceAttr})

	logger := slog.New(slogmulti.Fanout(stderrHandler, fileHandler))
	return logger, func() error { return file.Close() }
}

// SetupLoggerWithWriters wires explicit writers instead of stderr and a file,
// used by tests.
func SetupLoggerWithWriters(stderr, file io.Writer, level slog.Level) *slog.Logger {
	stderrHandler := slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level})
	fileHandler := slog.NewJSONHandler(file, &slog.HandlerOptions{
		Level: level,
	}).WithAttrs([]slog.Attr{serviceAttr})
	return slog.New(slogmulti.Fanout(stderrHandler, fileHandler))
}
