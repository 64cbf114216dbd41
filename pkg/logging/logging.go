package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Level is a slog level.
type Level = slog.Level

// Log levels.
const (
	LevelDebug = slog.LevelDebug
	LevelInfo  = slog.LevelInfo
	LevelWarn  = slog.LevelWarn
	LevelError = slog.LevelError
)

// Format selects the slog handler.
type Format string

// Output formats.
const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

// Config selects the handler New builds.
type Config struct {
	Level  Level
	Format Format

	// Output defaults to os.Stderr.
	Output io.Writer
}

// Parse builds a Config from configuration-file strings. Unknown values
// fall back to info and text.
func Parse(level, format string) Config {
	return Config{Level: ParseLevel(level), Format: ParseFormat(format)}
}

// New creates a logger for cfg.
func New(cfg Config) *slog.Logger {
	w := cfg.Output
	if w == nil {
		w = os.Stderr
	}
	return slog.New(newHandler(w, cfg.Format, cfg.Level))
}

func newHandler(w io.Writer, format Format, level slog.Leveler) slog.Handler {
	opts := &slog.HandlerOptions{Level: level}
	if format == FormatJSON {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

// Nop returns a logger that discards everything.
func Nop() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// ParseLevel accepts the slog level names in any case, plus "warning".
// Empty or unknown input is LevelInfo.
func ParseLevel(s string) Level {
	s = strings.TrimSpace(s)
	if strings.EqualFold(s, "warning") {
		return LevelWarn
	}
	var l slog.Level
	if s == "" || l.UnmarshalText([]byte(s)) != nil {
		return LevelInfo
	}
	return l
}

// ParseFormat returns FormatJSON for "json" in any case, FormatText
// otherwise.
func ParseFormat(s string) Format {
	if strings.EqualFold(strings.TrimSpace(s), string(FormatJSON)) {
		return FormatJSON
	}
	return FormatText
}

// WithServer returns a child logger tagged with a server's ID and address.
func WithServer(log *slog.Logger, id, addr string) *slog.Logger {
	if log == nil {
		log = Nop()
	}
	return log.With("server", id, "addr", addr)
}
