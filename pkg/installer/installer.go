// Package installer decides whether an MSI needs installing or repairing and drives msiexec.
package installer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/windowsadmins/msikit/pkg/blocking"
	"github.com/windowsadmins/msikit/pkg/download"
	"github.com/windowsadmins/msikit/pkg/logging"
	"github.com/windowsadmins/msikit/pkg/msi"
	"github.com/windowsadmins/msikit/pkg/msiexec"
	"github.com/windowsadmins/msikit/pkg/programs"
	"github.com/windowsadmins/msikit/pkg/utils"
	"github.com/windowsadmins/msikit/pkg/wildcard"
)

// Action is what the orchestrator decided for one target.
type Action string

const (
	ActionSkip    Action = "skip"
	ActionInstall Action = "install"
	ActionRepair  Action = "repair"
)

// MsiReader reads package metadata.
type MsiReader interface {
	ReadFile(ctx context.Context, path string, include []string) (*msi.Info, error)
}

// ProgramFinder lists installed programs by display name.
type ProgramFinder interface {
	List(ctx context.Context, nameFilter string) ([]programs.InstalledProgram, error)
}

// Fetcher downloads a URL to a local path.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL, outputPath string) (download.Result, error)
}

// BusyChecker reports other running installers.
type BusyChecker interface {
	InstallerBusy() []blocking.Process
}

// Options control one install request.
type Options struct {
	// Force repairs a product that is already installed instead of skipping it.
	Force       bool
	DisplayMode msiexec.DisplayMode
	// LogOptions are the letters after /l. Empty means msiexec.DefaultLogOptions.
	LogOptions string
	// LogPath pins the msiexec log. A directory receives one log per package.
	// Pinned logs are always kept; default logs are removed after success.
	LogPath string
	// OutputPath pins where URL sources are downloaded.
	OutputPath string
	// ExtraArgs are appended to the msiexec command line verbatim.
	ExtraArgs []string
	// DryRun resolves, decides and downloads but never starts msiexec.
	DryRun bool
}

// URLSource is a package to download. The caller supplies its identity
// since the package cannot be inspected before the download.
type URLSource struct {
	URL               string
	Checksum          string
	ChecksumAlgorithm string
	ProductName       string
	ProductCode       string
}

// Outcome reports what happened to one target.
type Outcome struct {
	Source      string `json:"Source" yaml:"Source"`
	Path        string `json:"Path,omitempty" yaml:"Path,omitempty"`
	ProductName string `json:"ProductName,omitempty" yaml:"ProductName,omitempty"`
	ProductCode string `json:"ProductCode,omitempty" yaml:"ProductCode,omitempty"`
	Action      Action `json:"Action,omitempty" yaml:"Action,omitempty"`
	Ran         bool   `json:"Ran" yaml:"Ran"`
	DryRun      bool   `json:"DryRun,omitempty" yaml:"DryRun,omitempty"`
	CommandLine string `json:"CommandLine,omitempty" yaml:"CommandLine,omitempty"`
	ExitCode    int    `json:"ExitCode" yaml:"ExitCode"`
	LogPath     string `json:"LogPath,omitempty" yaml:"LogPath,omitempty"`
	Error       string `json:"Error,omitempty" yaml:"Error,omitempty"`

	// ProcessedLog holds the failure lines of the msiexec log.
	ProcessedLog utils.LiteralString `json:"ProcessedLog,omitempty" yaml:"ProcessedLog,omitempty"`

	Err error `json:"-" yaml:"-"`
}

// ExecutionError is a failed msiexec run. The log at LogPath is kept.
type ExecutionError struct {
	Path         string
	ExitCode     int
	LogPath      string
	ProcessedLog string
	Err          error
}

func (e *ExecutionError) Error() string {
	msg := fmt.Sprintf("installing %s failed with exit code %d", e.Path, e.ExitCode)
	if desc := msiexec.DescribeExitCode(e.ExitCode); desc != "" {
		msg += " (" + desc + ")"
	}
	if e.LogPath != "" {
		msg += "; see " + e.LogPath
	}
	return msg
}

func (e *ExecutionError) Unwrap() error { return e.Err }

// Orchestrator installs packages that are missing and repairs them on request.
type Orchestrator struct {
	Reader   MsiReader
	Programs ProgramFinder
	Fetcher  Fetcher
	Busy     BusyChecker

	MsiexecPath string
	// Runner replaces the process runner, mostly for tests.
	Runner msiexec.CmdRunner
}

type target struct {
	source string
	path   string
	name   string
	code   *uuid.UUID
}

// InstallPaths installs every package matched by patterns. Each match is
// handled on its own; failures are joined and do not stop the others.
func (o *Orchestrator) InstallPaths(ctx context.Context, patterns []string, opts Options) ([]Outcome, error) {
	var outcomes []Outcome
	var errs []error
	for _, pattern := range patterns {
		paths, err := resolvePattern(pattern)
		if err != nil {
			outcomes = append(outcomes, finish(Outcome{Source: pattern}, err))
			errs = append(errs, err)
			continue
		}
		for _, path := range paths {
			if err := ctx.Err(); err != nil {
				return outcomes, errors.Join(append(errs, err)...)
			}
			out, err := o.installFile(ctx, pattern, path, opts)
			outcomes = append(outcomes, out)
			if err != nil {
				errs = append(errs, err)
			}
		}
	}
	return outcomes, errors.Join(errs...)
}

func resolvePattern(pattern string) ([]string, error) {
	if !strings.ContainsAny(pattern, "*?[") {
		if _, err := os.Stat(pattern); err != nil {
			return nil, &msi.InvalidMsiError{Path: pattern, Err: err}
		}
		return []string{pattern}, nil
	}
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid path pattern %q: %w", pattern, err)
	}
	if len(matches) == 0 {
		logging.Warn("No packages match pattern", "pattern", pattern)
	}
	return matches, nil
}

func (o *Orchestrator) installFile(ctx context.Context, source, path string, opts Options) (Outcome, error) {
	out := Outcome{Source: source, Path: path}
	info, err := o.Reader.ReadFile(ctx, path, nil)
	if err != nil {
		return finish(out, err), err
	}
	t := target{source: source, path: path, name: info.ProductName, code: info.ProductCode}
	out.ProductName = t.name
	out.ProductCode = formatCode(t.code)

	action, err := o.decide(ctx, t, opts.Force)
	out.Action = action
	if err != nil || action == ActionSkip {
		return finish(out, err), err
	}
	err = o.execute(ctx, t, action, opts, &out)
	return finish(out, err), err
}

// InstallURL installs a package from a URL when it is not already present.
// The download must match the checksum before msiexec is started.
func (o *Orchestrator) InstallURL(ctx context.Context, src URLSource, opts Options) (Outcome, error) {
	out := Outcome{Source: src.URL, ProductName: src.ProductName}

	code, err := uuid.Parse(strings.TrimSpace(src.ProductCode))
	if err != nil {
		err = fmt.Errorf("invalid product code %q: %w", src.ProductCode, err)
		return finish(out, err), err
	}
	out.ProductCode = formatCode(&code)
	if strings.TrimSpace(src.Checksum) == "" {
		err := errors.New("a checksum is required for URL sources")
		return finish(out, err), err
	}
	algo, err := utils.ParseHashAlgorithm(src.ChecksumAlgorithm)
	if err != nil {
		return finish(out, err), err
	}
	if o.Fetcher == nil {
		err := errors.New("no fetcher configured for URL sources")
		return finish(out, err), err
	}

	t := target{source: src.URL, name: src.ProductName, code: &code}
	action, err := o.decide(ctx, t, opts.Force)
	out.Action = action
	if err != nil || action == ActionSkip {
		return finish(out, err), err
	}

	res, err := o.Fetcher.Fetch(ctx, src.URL, opts.OutputPath)
	if err != nil {
		err = fmt.Errorf("failed to download %s: %w", src.URL, err)
		return finish(out, err), err
	}
	out.Path = res.Path

	// A package that fails verification stays on disk for inspection.
	if err := download.Verify(res.Path, algo, src.Checksum); err != nil {
		logging.Error("Downloaded package failed checksum verification", "url", src.URL, "path", res.Path, "error", err)
		return finish(out, err), err
	}
	// Cleanup only touches downloads the client placed itself.
	defer func() {
		if cerr := res.Cleanup(); cerr != nil {
			logging.Warn("Failed to remove downloaded package", "path", res.Path, "error", cerr)
		}
	}()

	t.path = res.Path
	err = o.execute(ctx, t, action, opts, &out)
	return finish(out, err), err
}

// decide looks the product up by name and compares product codes.
func (o *Orchestrator) decide(ctx context.Context, t target, force bool) (Action, error) {
	if t.code == nil {
		logging.Warn("Package has no product code, treating it as not installed", "path", t.path)
		return ActionInstall, nil
	}
	filter := "*"
	if t.name != "" {
		filter = wildcard.Escape(t.name)
	}
	installed, err := o.Programs.List(ctx, filter)
	if err != nil && !programs.IsNotFound(err) {
		return "", fmt.Errorf("failed to query installed programs: %w", err)
	}

	present := false
	for _, p := range installed {
		if p.ProductCode != nil && *p.ProductCode == *t.code {
			present = true
			break
		}
	}
	switch {
	case present && !force:
		logging.LogInstallSkipped(t.name, formatCode(t.code))
		return ActionSkip, nil
	case present:
		return ActionRepair, nil
	default:
		return ActionInstall, nil
	}
}

func (o *Orchestrator) execute(ctx context.Context, t target, action Action, opts Options, out *Outcome) error {
	logPath, pinned, err := resolveLogPath(opts.LogPath, t.path)
	if err != nil {
		return err
	}
	// Default logs only survive a failed msiexec run.
	keepLog := pinned
	defer func() {
		if keepLog {
			return
		}
		if err := os.Remove(logPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			logging.Debug("Failed to remove installer log", "path", logPath, "error", err)
		}
	}()

	cmdOpts := []msiexec.Option{
		msiexec.Install(),
		msiexec.WithMsi(t.path),
		msiexec.WithDisplayMode(opts.DisplayMode),
		msiexec.WithLogFile(logPath),
		msiexec.WithLogOptions(opts.LogOptions),
		msiexec.WithAdditionalArgs(opts.ExtraArgs),
		msiexec.WithMsiexecPath(o.MsiexecPath),
	}
	if o.Runner != nil {
		cmdOpts = append(cmdOpts, msiexec.WithCmdRunner(o.Runner))
	}
	cmd, err := msiexec.Cmd(cmdOpts...)
	if err != nil {
		return err
	}
	out.CommandLine = cmd.CommandLine()

	if opts.DryRun {
		out.DryRun = true
		logging.Info("Dry run, msiexec not started", "product", t.name, "action", string(action), "cmdline", out.CommandLine)
		return nil
	}

	if o.Busy != nil {
		if busy := o.Busy.InstallerBusy(); len(busy) > 0 {
			logging.Warn("Another Windows Installer process is running", "count", len(busy), "pid", busy[0].PID)
		}
	}

	logging.LogInstallStart(t.name, formatCode(t.code), string(action))
	start := time.Now()
	err = cmd.Run(ctx)
	out.Ran = true
	if pinned {
		out.LogPath = cmd.LogFile()
	}
	if err != nil {
		var exitErr *msiexec.ExitError
		if !errors.As(err, &exitErr) {
			logging.LogInstallFailed(t.name, string(action), err)
			return err
		}
		keepLog = true
		out.ExitCode = exitErr.Code
		out.LogPath = cmd.LogFile()
		out.ProcessedLog = utils.LiteralString(exitErr.ProcessedLog)
		execErr := &ExecutionError{
			Path:         t.path,
			ExitCode:     exitErr.Code,
			LogPath:      cmd.LogFile(),
			ProcessedLog: exitErr.ProcessedLog,
			Err:          exitErr,
		}
		logging.LogInstallFailed(t.name, string(action), execErr)
		return execErr
	}
	logging.LogInstallComplete(t.name, string(action), time.Since(start))
	return nil
}

// resolveLogPath returns the log file for path and whether the caller chose it.
func resolveLogPath(logPath, path string) (string, bool, error) {
	switch {
	case logPath == "":
		p, err := utils.TempLogPath(path)
		return p, false, err
	case utils.IsDir(logPath):
		base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		return filepath.Join(logPath, utils.SanitizeFileName(base)+".log"), true, nil
	default:
		return logPath, true, nil
	}
}

func formatCode(code *uuid.UUID) string {
	if code == nil {
		return ""
	}
	return "{" + strings.ToUpper(code.String()) + "}"
}

func finish(out Outcome, err error) Outcome {
	if err != nil {
		out.Err = err
		out.Error = err.Error()
	}
	return out
}
