package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/windowsadmins/msikit/pkg/logging"
	"github.com/windowsadmins/msikit/pkg/utils"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		proceed  bool
		code     int
		stdout   string
		hasError bool
	}{
		{name: "plain", args: []string{"--format", "json"}, proceed: true},
		{name: "version", args: []string{"--version"}, code: ExitOK, stdout: "msiinfo "},
		{name: "help", args: []string{"--help"}, code: ExitOK},
		{name: "unknown flag", args: []string{"--bogus"}, code: ExitUsage, hasError: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var c Common
			var stdout, stderr bytes.Buffer
			fs := NewFlagSet("msiinfo", &stderr, &c)
			proceed, code := Parse(fs, tt.args, &c, &stdout)
			assert.Equal(t, tt.proceed, proceed)
			assert.Equal(t, tt.code, code)
			if tt.stdout != "" {
				assert.Contains(t, stdout.String(), tt.stdout)
			}
			if tt.hasError {
				assert.Contains(t, stderr.String(), "bogus")
			}
		})
	}
}

func TestParseCountsVerbosity(t *testing.T) {
	var c Common
	fs := NewFlagSet("msiinfo", &bytes.Buffer{}, &c)
	proceed, _ := Parse(fs, []string{"-vv"}, &c, &bytes.Buffer{})
	require.True(t, proceed)
	assert.Equal(t, 2, c.Verbosity)
	assert.Equal(t, "yaml", c.Format)
}

func TestStart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "Config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("LogLevel: ERROR\nDownloadDir: C:\\dl\nReleaseTimeoutMs: 50\nForceGC: false\n"), 0644))

	var stderr bytes.Buffer
	cfg, format, err := Start("msiinfo", Common{ConfigPath: path, Format: "JSON", Verbosity: 1}, &stderr)
	require.NoError(t, err)
	defer logging.CloseLogger()
	assert.Equal(t, utils.FormatJSON, format)
	assert.Equal(t, "ERROR", cfg.LogLevel)

	// -v raises ERROR to WARN
	logging.Warn("visible")
	logging.Info("hidden")
	assert.Contains(t, stderr.String(), "visible")
	assert.NotContains(t, stderr.String(), "hidden")

	assert.Equal(t, `C:\dl`, NewDownloader(cfg).Dir)
	r := NewReader(cfg)
	assert.Equal(t, 50*time.Millisecond, r.Release.Timeout)
	assert.False(t, r.Release.ForceGC)
}

func TestStartRejectsBadInput(t *testing.T) {
	_, _, err := Start("msiinfo", Common{Format: "xml"}, &bytes.Buffer{})
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "Config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("DisplayMode: Loud\n"), 0644))
	_, _, err = Start("msiinfo", Common{ConfigPath: path}, &bytes.Buffer{})
	assert.Error(t, err)
}
