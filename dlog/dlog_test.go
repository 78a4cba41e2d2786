package dlog_test

import (
	"io"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/deltaflow/deltaflow/dlog"
)

func newTempLogger(t *testing.T, level string) (*dlog.Logger, func() string) {
	t.Helper()
	f, err := os.CreateTemp(t.TempDir(), "dlog-*.jsonl")
	require.NoError(t, err)
	t.Cleanup(func() { f.Close() })

	logger := dlog.New(f, level)
	return logger, func() string {
		_, err := f.Seek(0, io.SeekStart)
		require.NoError(t, err)
		data, err := io.ReadAll(f)
		require.NoError(t, err)
		return string(data)
	}
}

func TestInfoWritesAMessageAndFields(t *testing.T) {
	logger, read := newTempLogger(t, "info")
	logger.Info("hello", map[string]any{"k": "v"})

	out := read()
	require.Contains(t, out, "hello")
	require.Contains(t, out, "\"k\":\"v\"")
}

func TestDebugIsSuppressedBelowInfoLevel(t *testing.T) {
	logger, read := newTempLogger(t, "info")
	logger.Debug("should not appear", nil)

	require.Empty(t, strings.TrimSpace(read()))
}

func TestDebugIsEmittedAtDebugLevel(t *testing.T) {
	logger, read := newTempLogger(t, "debug")
	logger.Debug("visible", nil)

	require.Contains(t, read(), "visible")
}

func TestErrIncludesErrorMessage(t *testing.T) {
	logger, read := newTempLogger(t, "info")
	logger.Err("failed", os.ErrNotExist, nil)

	out := read()
	require.Contains(t, out, "failed")
	require.Contains(t, out, "file does not exist")
}

func TestForNodeAttachesStableNodeField(t *testing.T) {
	logger, read := newTempLogger(t, "info")
	child := logger.ForNode("adder")
	child.Info("tick", nil)

	out := read()
	require.Contains(t, out, "\"node\":\"adder\"")
	require.Contains(t, out, "tick")
}

func TestDefaultLevelFallsBackToInfoForUnknownString(t *testing.T) {
	logger, read := newTempLogger(t, "not-a-level")
	logger.Info("still works", nil)
	logger.Debug("still suppressed", nil)

	out := read()
	require.Contains(t, out, "still works")
	require.NotContains(t, out, "still suppressed")
}
