package app

import (
	"io"
	"log/slog"
	"strings"
)

// serviceName tags every record so hotswap logs can be told apart when
// several processes share a sink.
const serviceName = "hotswap"

// newLogger builds an isolated logger for one App. The level uses slog's own
// spelling, so offsets such as "debug+2" are accepted; anything unparsable
// logs at info.
func newLogger(cfg *Config, w io.Writer) *slog.Logger {
	level := slog.LevelInfo
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler = slog.NewTextHandler(w, opts)
	if strings.EqualFold(cfg.LogFormat, "json") {
		handler = slog.NewJSONHandler(w, opts)
	}
	return slog.New(handler).With("service", serviceName)
}
