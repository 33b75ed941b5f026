package logging

import (
	"io"
	"log/slog"
	"os"
)

const serviceName = "rewardrecon"

// New returns a JSON logger writing to w that tags every record with the
// service name.
func New(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(
		slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}),
	).With("service", serviceName)
}

// SetupJSON installs a stdout JSON logger as slog's default and returns it.
func SetupJSON(level slog.Level) *slog.Logger {
	logger := New(os.Stdout, level)
	slog.SetDefault(logger)

	return logger
}
