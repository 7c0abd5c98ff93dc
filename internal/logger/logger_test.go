package logger

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNew_IsNop(t *testing.T) {
	l := New()
	require.NotNil(t, l.Log)
	l.Log.Info("discarded")
}

func TestInit(t *testing.T) {
	l := New()
	require.NoError(t, l.Init("debug"))
	assert.True(t, l.Log.Core().Enabled(zap.DebugLevel))

	assert.Error(t, l.Init("loud"))
}

func TestInitConsole(t *testing.T) {
	var buf bytes.Buffer
	l := New()
	require.NoError(t, l.InitConsole("warn", &buf))

	l.Log.Info("hidden")
	l.Log.Warn("shown", zap.Int("id", 7))

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "shown")
	assert.Contains(t, out, `"id": 7`)
}
