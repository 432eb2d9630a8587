package zap

import (
	"errors"
	"testing"

	"github.com/unkn0wn-root/userd"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestFieldsAndLevels(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := ZapLogger{L: zap.New(core)}

	l.Warn("cache get failed", userd.Fields{"key": "single:user:1", "err": errors.New("boom")})
	l.Debug("skip", nil)

	entries := logs.All()
	if len(entries) != 2 {
		t.Fatalf("got %d entries", len(entries))
	}
	if entries[0].Level != zapcore.WarnLevel || entries[0].Message != "cache get failed" {
		t.Fatalf("unexpected entry: %+v", entries[0])
	}
	ctx := entries[0].ContextMap()
	if ctx["key"] != "single:user:1" || ctx["err"] != "boom" {
		t.Fatalf("unexpected fields: %v", ctx)
	}
}

func TestNewFallsBackToInfo(t *testing.T) {
	l, err := New("nonsense")
	if err != nil {
		t.Fatal(err)
	}
	if l.L.Core().Enabled(zapcore.DebugLevel) {
		t.Fatalf("debug should be disabled at fallback level")
	}
}
