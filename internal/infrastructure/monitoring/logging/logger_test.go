package logging

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func newObserved(level zapcore.Level) (Logger, *observer.ObservedLogs) {
	core, logs := observer.New(level)
	return NewLoggerFromCore(core), logs
}

func TestNewLogger_Formats(t *testing.T) {
	for _, format := range []string{"json", "console", ""} {
		l, err := NewLogger(LogConfig{Level: "debug", Format: format, Service: "neurorisk"})
		require.NoError(t, err, format)
		assert.NotNil(t, l)
	}
}

func TestNewLogger_BadOutputPath(t *testing.T) {
	_, err := NewLogger(LogConfig{OutputPaths: []string{"/nonexistent-dir/x/y.log"}})
	assert.Error(t, err)
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, ParseLevel("debug"))
	assert.Equal(t, zapcore.WarnLevel, ParseLevel(" WARN "))
	assert.Equal(t, zapcore.ErrorLevel, ParseLevel("error"))
	assert.Equal(t, zapcore.InfoLevel, ParseLevel("verbose"))
	assert.Equal(t, zapcore.InfoLevel, ParseLevel("fatal"))
}

func TestZapLogger_LevelsAndFields(t *testing.T) {
	l, logs := newObserved(zapcore.DebugLevel)

	l.Debug("computed", String("behavior", "reaction_time"), Float64("aggregate", 0.7))
	l.Info("loaded", Int("profiles", 3), Strings("regions", []string{"a", "b"}))
	l.Warn("slow", Duration("elapsed", time.Second))
	l.Error("failed", Err(errors.New("boom")))

	entries := logs.All()
	require.Len(t, entries, 4)
	assert.Equal(t, zapcore.DebugLevel, entries[0].Level)
	assert.Equal(t, "reaction_time", entries[0].ContextMap()["behavior"])
	assert.Equal(t, 0.7, entries[0].ContextMap()["aggregate"])
	assert.Equal(t, int64(3), entries[1].ContextMap()["profiles"])
	assert.Equal(t, "boom", entries[3].ContextMap()["error"])
}

func TestZapLogger_WithAndNamed(t *testing.T) {
	l, logs := newObserved(zapcore.InfoLevel)

	child := l.Named("assessment").With(String("snapshot", "v2"))
	child.Info("ready")
	l.Debug("filtered out")

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "assessment", entries[0].LoggerName)
	assert.Equal(t, "v2", entries[0].ContextMap()["snapshot"])
}

func TestNewWriterLogger_WritesJSON(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriterLogger(&buf, "info", "json")
	l.Info("hello", Bool("ok", true))
	l.Debug("hidden")

	out := buf.String()
	assert.Contains(t, out, `"msg":"hello"`)
	assert.Contains(t, out, `"ok":true`)
	assert.NotContains(t, out, "hidden")
}

func TestErr_Nil(t *testing.T) {
	f := Err(nil)
	assert.Equal(t, "error", f.Key)
	assert.Equal(t, "<nil>", f.Value)
}

func TestNopLogger(t *testing.T) {
	l := NewNopLogger()
	assert.NotPanics(t, func() {
		l.Debug("x")
		l.Info("x")
		l.Warn("x")
		l.Error("x")
	})
	assert.Equal(t, l, l.With(String("k", "v")))
	assert.Equal(t, l, l.Named("n"))
	assert.NoError(t, l.Sync())
}

func TestDefault(t *testing.T) {
	prev := Default()
	t.Cleanup(func() { SetDefault(prev) })

	l, _ := newObserved(zapcore.InfoLevel)
	SetDefault(l)
	assert.Same(t, l, Default())

	SetDefault(nil)
	assert.Same(t, l, Default())
}
