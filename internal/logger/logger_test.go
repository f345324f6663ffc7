package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, LevelDebug, ParseLogLevel("debug"))
	assert.Equal(t, LevelWarn, ParseLogLevel("WARNING"))
	assert.Equal(t, LevelError, ParseLogLevel("error"))
	assert.Equal(t, LevelInfo, ParseLogLevel("bogus"))
	assert.Equal(t, "WARN", LevelWarn.String())
}

func TestLoggerWritesFileAtLevel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "app.log")
	l, err := NewLogger(LogConfig{Level: LevelInfo, File: path})
	require.NoError(t, err)

	l.Debugf("隐藏 %d", 1)
	l.Infof("可见 %s", "info")
	l.Named("gateway").Warnf("警告")
	l.SetLevel(LevelDebug)
	assert.Equal(t, LevelDebug, l.GetLevel())
	l.Debugf("现在可见")
	require.NoError(t, l.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	out := string(data)
	assert.NotContains(t, out, "隐藏")
	assert.Contains(t, out, "可见 info")
	assert.Contains(t, out, "gateway")
	assert.Contains(t, out, "现在可见")
}

func TestNopLogger(t *testing.T) {
	l := NewNop()
	l.Infof("nothing")
	l.Printf("nothing")
	assert.NoError(t, l.Close())
}
