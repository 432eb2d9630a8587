// Package slog adapts the standard library's log/slog to userd.Logger.
package slog

import (
	"context"
	stdslog "log/slog"
	"os"

	"github.com/unkn0wn-root/userd"
)

var _ userd.Logger = Logger{}

type Logger struct{ L *stdslog.Logger }

// New writes JSON lines to stderr. An unparsable level means info.
func New(level string) Logger {
	var lvl stdslog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = stdslog.LevelInfo
	}
	h := stdslog.NewJSONHandler(os.Stderr, &stdslog.HandlerOptions{Level: lvl})
	return Logger{L: stdslog.New(h)}
}

func (s Logger) log(lvl stdslog.Level, msg string, f userd.Fields) {
	ctx := context.Background()
	if !s.L.Enabled(ctx, lvl) {
		return
	}
	as := make([]stdslog.Attr, 0, len(f))
	for k, v := range f {
		as = append(as, stdslog.Any(k, v))
	}
	s.L.LogAttrs(ctx, lvl, msg, as...)
}

func (s Logger) Debug(msg string, f userd.Fields) { s.log(stdslog.LevelDebug, msg, f) }

func (s Logger) Info(msg string, f userd.Fields) { s.log(stdslog.LevelInfo, msg, f) }

func (s Logger) Warn(msg string, f userd.Fields) { s.log(stdslog.LevelWarn, msg, f) }

func (s Logger) Error(msg string, f userd.Fields) { s.log(stdslog.LevelError, msg, f) }
