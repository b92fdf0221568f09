package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, logrus.DebugLevel, ParseLogLevel(" DEBUG "))
	assert.Equal(t, logrus.WarnLevel, ParseLogLevel("warning"))
	assert.Equal(t, logrus.ErrorLevel, ParseLogLevel("error"))
	assert.Equal(t, logrus.InfoLevel, ParseLogLevel("chatty"))
}

func TestFormatter(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf, "debug")
	defer SetOutput(os.Stderr, "warn")

	Debugf("opened %s", "x.pst")
	line := buf.String()
	assert.True(t, strings.HasPrefix(line, "["), line)
	assert.Contains(t, line, "[DEBU]")
	assert.Contains(t, line, "logger_test.go")
	assert.Contains(t, line, "opened x.pst")
	assert.True(t, IsDebugEnabled())

	buf.Reset()
	SetOutput(&buf, "warn")
	Infof("hidden")
	assert.Empty(t, buf.String())
	assert.False(t, IsDebugEnabled())
}

func TestInitLoggerWritesFiles(t *testing.T) {
	dir := t.TempDir()
	info := filepath.Join(dir, "logs", "info.log")
	errLog := filepath.Join(dir, "logs", "error.log")
	require.NoError(t, InitLogger(LogConfig{InfoLogPath: info, ErrorLogPath: errLog, LogLevel: "info"}))
	defer SetOutput(os.Stderr, "warn")

	Infof("store opened")
	Errorf("bad block %d", 7)

	b, err := os.ReadFile(info)
	require.NoError(t, err)
	assert.Contains(t, string(b), "store opened")
	b, err = os.ReadFile(errLog)
	require.NoError(t, err)
	assert.Contains(t, string(b), "bad block 7")
}
