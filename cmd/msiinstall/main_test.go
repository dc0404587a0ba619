package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/windowsadmins/msikit/pkg/cli"
	"github.com/windowsadmins/msikit/pkg/config"
	"github.com/windowsadmins/msikit/pkg/installer"
	"github.com/windowsadmins/msikit/pkg/logging"
	"github.com/windowsadmins/msikit/pkg/msiexec"
)

const testCode = "{E1724ABC-A8D6-4D88-BBED-2E077C9AE6D2}"

type mockOrchestrator struct{ mock.Mock }

func (m *mockOrchestrator) InstallPaths(_ context.Context, patterns []string, opts installer.Options) ([]installer.Outcome, error) {
	args := m.Called(patterns, opts)
	outcomes, _ := args.Get(0).([]installer.Outcome)
	return outcomes, args.Error(1)
}

func (m *mockOrchestrator) InstallURL(_ context.Context, src installer.URLSource, opts installer.Options) (installer.Outcome, error) {
	args := m.Called(src, opts)
	return args.Get(0).(installer.Outcome), args.Error(1)
}

func setup(t *testing.T, configYAML string) (*mockOrchestrator, string) {
	t.Helper()
	m := &mockOrchestrator{}
	prev := newOrchestrator
	newOrchestrator = func(*config.Configuration) orchestrator { return m }
	t.Cleanup(func() { newOrchestrator = prev })

	cfgPath := filepath.Join(t.TempDir(), "Config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("LogLevel: ERROR\n"+configYAML), 0644))
	return m, cfgPath
}

func TestRunPathsWithExtraArgs(t *testing.T) {
	m, cfgPath := setup(t, "DisplayMode: Passive\nLogOptions: v\n")
	want := installer.Options{
		DisplayMode: msiexec.Passive,
		LogOptions:  "v",
		ExtraArgs:   []string{"REBOOT=ReallySuppress", "ALLUSERS=1"},
	}
	m.On("InstallPaths", []string{`C:\pkgs\*.msi`, `D:\one.msi`}, want).
		Return([]installer.Outcome{{Source: `D:\one.msi`, Action: installer.ActionSkip}}, nil)

	var stdout, stderr bytes.Buffer
	exit := run([]string{"--config", cfgPath, "--path", `C:\pkgs\*.msi`, `D:\one.msi`, "--", "REBOOT=ReallySuppress", "ALLUSERS=1"}, &stdout, &stderr)
	require.Equal(t, cli.ExitOK, exit, stderr.String())
	m.AssertExpectations(t)
	assert.Contains(t, stdout.String(), "Action: skip")
}

func TestRunFlagsOverrideConfig(t *testing.T) {
	m, cfgPath := setup(t, "DisplayMode: Passive\n")
	want := installer.Options{
		Force:       true,
		DisplayMode: msiexec.Full,
		LogOptions:  "*v",
		LogPath:     `C:\logs`,
		DryRun:      true,
	}
	m.On("InstallPaths", []string{"a.msi"}, want).Return([]installer.Outcome{{Source: "a.msi", DryRun: true}}, nil)

	var stdout, stderr bytes.Buffer
	exit := run([]string{"--config", cfgPath, "a.msi", "--force", "--display", "FULL", "--log-options", "*v", "--log-path", `C:\logs`, "--dry-run"}, &stdout, &stderr)
	require.Equal(t, cli.ExitOK, exit, stderr.String())
	m.AssertExpectations(t)
}

func TestRunURL(t *testing.T) {
	m, cfgPath := setup(t, "")
	src := installer.URLSource{
		URL:               "https://example.com/test.msi",
		Checksum:          "abc123",
		ChecksumAlgorithm: "sha256",
		ProductName:       "Test Product",
		ProductCode:       testCode,
	}
	m.On("InstallURL", src, mock.MatchedBy(func(o installer.Options) bool { return o.OutputPath == `C:\keep` })).
		Return(installer.Outcome{Source: src.URL, Action: installer.ActionInstall, Ran: true}, nil)

	var stdout, stderr bytes.Buffer
	exit := run([]string{"--config", cfgPath, "--url", src.URL, "--checksum", "abc123", "--product-name", "Test Product",
		"--product-code", testCode, "--output", `C:\keep`, "--format", "json"}, &stdout, &stderr)
	require.Equal(t, cli.ExitOK, exit, stderr.String())
	assert.Contains(t, stdout.String(), `"Ran": true`)
	m.AssertExpectations(t)
}

func TestRunFailureExitCodeAndHistory(t *testing.T) {
	logDir := t.TempDir()
	m, cfgPath := setup(t, "LogDir: "+logDir+"\n")
	failure := &installer.ExecutionError{Path: "b.msi", ExitCode: 1603}
	m.On("InstallPaths", []string{"*.msi"}, mock.Anything).Return([]installer.Outcome{
		{Source: "*.msi", Path: "a.msi", ProductName: "Product A", Action: installer.ActionInstall, Ran: true},
		{Source: "*.msi", Path: "b.msi", ProductName: "Product B", Action: installer.ActionInstall, Ran: true, ExitCode: 1603, Error: failure.Error(),
			ProcessedLog: "Error 1722. A program run as part of the setup did not finish.\nReturn value 3."},
	}, errors.Join(failure))

	var stdout, stderr bytes.Buffer
	exit := run([]string{"--config", cfgPath, "--path", "*.msi"}, &stdout, &stderr)
	assert.Equal(t, cli.ExitError, exit)
	assert.Contains(t, stdout.String(), "ExitCode: 1603")
	assert.Contains(t, stdout.String(), "ProcessedLog: |-")
	assert.Contains(t, stdout.String(), "Return value 3.")

	sl, err := logging.NewSessionLog(filepath.Join(logDir, "sessions"), logging.Retention{})
	require.NoError(t, err)
	ids, err := sl.Sessions()
	require.NoError(t, err)
	require.Len(t, ids, 1)
	failed, err := sl.Events(ids[0], "failed")
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, "Product B", failed[0].Package)
	assert.Equal(t, 1603, failed[0].ExitCode)
}

func TestRunUsage(t *testing.T) {
	_, cfgPath := setup(t, "")
	tests := map[string][]string{
		"nothing":            {"--config", cfgPath},
		"paths and url":      {"--config", cfgPath, "a.msi", "--url", "https://example.com/a.msi", "--checksum", "00", "--product-code", testCode},
		"url no checksum":    {"--config", cfgPath, "--url", "https://example.com/a.msi", "--product-code", testCode},
		"url no code":        {"--config", cfgPath, "--url", "https://example.com/a.msi", "--checksum", "00"},
		"output without url": {"--config", cfgPath, "a.msi", "--output", "x"},
		"bad display":        {"--config", cfgPath, "a.msi", "--display", "loud"},
	}
	for name, args := range tests {
		t.Run(name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			assert.Equal(t, cli.ExitUsage, run(args, &stdout, &stderr))
		})
	}
}

func TestEventStatus(t *testing.T) {
	assert.Equal(t, "failed", eventStatus(installer.Outcome{Error: "boom", Action: installer.ActionSkip}))
	assert.Equal(t, "skipped", eventStatus(installer.Outcome{Action: installer.ActionSkip}))
	assert.Equal(t, "planned", eventStatus(installer.Outcome{Action: installer.ActionInstall, DryRun: true}))
	assert.Equal(t, "completed", eventStatus(installer.Outcome{Action: installer.ActionRepair, Ran: true}))
}
