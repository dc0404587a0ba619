package logging

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]LogLevel{
		"error":   LevelError,
		"WARN":    LevelWarn,
		"warning": LevelWarn,
		"Info":    LevelInfo,
		" debug ": LevelDebug,
		"bogus":   LevelInfo,
		"":        LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLevel(in), "input %q", in)
	}
}

func TestLevelFromVerbosity(t *testing.T) {
	assert.Equal(t, LevelWarn, LevelFromVerbosity(LevelWarn, 0))
	assert.Equal(t, LevelInfo, LevelFromVerbosity(LevelWarn, 1))
	assert.Equal(t, LevelDebug, LevelFromVerbosity(LevelWarn, 2))
	assert.Equal(t, LevelDebug, LevelFromVerbosity(LevelWarn, 7))
	assert.Equal(t, LevelError, LevelFromVerbosity(LevelError, -1))
}

func TestLoggerConsoleFiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(Config{Level: LevelInfo, Console: &buf})
	require.NoError(t, err)
	defer l.Close()

	l.Log(LevelDebug, "hidden")
	l.Log(LevelInfo, "shown", "path", `C:\pkg\test.msi`)

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "INFO  shown")
	assert.Contains(t, out, `path=C:\pkg\test.msi`)
}

func TestLoggerMultilineForManyKeys(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(Config{Level: LevelDebug, Console: &buf})
	require.NoError(t, err)
	defer l.Close()

	l.Log(LevelInfo, "many", "a", 1, "b", 2, "c", 3, "d", 4, "e", 5)
	assert.Contains(t, buf.String(), "\n        e: 5")
}

func TestLoggerWritesStructuredFiles(t *testing.T) {
	dir := t.TempDir()
	l, err := New(Config{Level: LevelDebug, LogDir: dir, EnableJSON: true, EnableYAML: true})
	require.NoError(t, err)

	l.Log(LevelWarn, "release slow", "path", "x.msi", "error", errors.New("boom"))
	l.Close()

	plain, err := os.ReadFile(filepath.Join(dir, "msikit.log"))
	require.NoError(t, err)
	assert.Contains(t, string(plain), "WARN  release slow path=x.msi error=boom")

	f, err := os.Open(filepath.Join(dir, "events.jsonl"))
	require.NoError(t, err)
	defer f.Close()
	scanner := bufio.NewScanner(f)
	require.True(t, scanner.Scan())
	var entry LogEntry
	require.NoError(t, json.Unmarshal(scanner.Bytes(), &entry))
	assert.Equal(t, "WARN", entry.Level)
	assert.Equal(t, "release slow", entry.Message)
	assert.Equal(t, "boom", entry.Properties["error"])
	assert.Equal(t, "msikit", entry.Component)

	y, err := os.ReadFile(filepath.Join(dir, "msikit.yaml"))
	require.NoError(t, err)
	var yentry LogEntry
	require.NoError(t, yaml.Unmarshal(bytes.TrimPrefix(y, []byte("---\n")), &yentry))
	assert.Equal(t, "release slow", yentry.Message)
}

func TestPackageLevelInit(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Init(Config{Level: LevelDebug, Console: &buf}))
	defer CloseLogger()

	Debug("debug line")
	Info("info line")
	Warn("warn line")
	Error("error line")

	out := buf.String()
	for _, want := range []string{"debug line", "info line", "warn line", "error line"} {
		assert.Contains(t, out, want)
	}
}
