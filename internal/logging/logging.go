// Package logging configures the process-wide slog logger the same way for
// every binary.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
)

// New returns a tint logger writing to f with colors when f is a terminal.
//
// Empty strings, unset times and zero IDs are dropped. Numbers and booleans
// are always kept, zero included. The time is omitted when running under
// systemd, which adds its own.
func New(f *os.File, level slog.Leveler) *slog.Logger {
	return newLogger(colorable.NewColorable(f), level, !isatty.IsTerminal(f.Fd()), os.Getenv("JOURNAL_STREAM") != "")
}

func newLogger(w io.Writer, level slog.Leveler, noColor, noTime bool) *slog.Logger {
	return slog.New(tint.NewHandler(w, &tint.Options{
		Level:      level,
		TimeFormat: "15:04:05.000", // Like time.TimeOnly plus milliseconds.
		NoColor:    noColor,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if noTime && a.Key == slog.TimeKey && len(groups) == 0 {
				return slog.Attr{}
			}
			// Drop localhost IPs (not useful in logs).
			if a.Key == "ip" {
				if v := a.Value.String(); v == "127.0.0.1" || v == "::1" {
					return slog.Attr{}
				}
			}
			if isZero(a.Value) {
				return slog.Attr{}
			}
			return a
		},
	}))
}

func isZero(v slog.Value) bool {
	switch t := v.Any().(type) {
	case string:
		return t == ""
	case time.Time:
		return t.IsZero()
	case time.Duration, bool, int64, uint64, float64:
		return false
	case fmt.Stringer:
		// ksid.ID and friends.
		return t.String() == "0"
	case nil:
		return true
	}
	return false
}

// SetLevel parses name into ll.
func SetLevel(ll *slog.LevelVar, name string) error {
	switch name {
	case "debug":
		ll.Set(slog.LevelDebug)
	case "info":
		ll.Set(slog.LevelInfo)
	case "warn":
		ll.Set(slog.LevelWarn)
	case "error":
		ll.Set(slog.LevelError)
	default:
		return fmt.Errorf("unknown log level: %q", name)
	}
	return nil
}
