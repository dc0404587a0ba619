// Package msiexec builds and runs Windows Installer command lines.
package msiexec

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/windowsadmins/msikit/pkg/logging"
)

// DefaultLogOptions asks for verbose, extra debug output flushed per line.
const DefaultLogOptions = "*vx!"

// DisplayMode selects the installer user interface.
type DisplayMode int

const (
	Quiet DisplayMode = iota
	Passive
	Full
)

// ParseDisplayMode accepts Quiet, Passive or Full in any case. Empty means Quiet.
func ParseDisplayMode(s string) (DisplayMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "quiet":
		return Quiet, nil
	case "passive":
		return Passive, nil
	case "full":
		return Full, nil
	default:
		return Quiet, fmt.Errorf("invalid display mode %q: want quiet, passive or full", s)
	}
}

func (m DisplayMode) String() string {
	switch m {
	case Passive:
		return "Passive"
	case Full:
		return "Full"
	default:
		return "Quiet"
	}
}

// Flag returns the msiexec switch for the mode; Full has none.
func (m DisplayMode) Flag() string {
	switch m {
	case Quiet:
		return "/quiet"
	case Passive:
		return "/passive"
	default:
		return ""
	}
}

// DefaultPath returns %WINDIR%\System32\msiexec.exe.
func DefaultPath() string {
	windir := os.Getenv("WINDIR")
	if windir == "" {
		windir = `C:\Windows`
	}
	return filepath.Join(windir, "System32", "msiexec.exe")
}

// CmdRunner runs path with a raw command line and waits for it to exit.
type CmdRunner interface {
	Run(ctx context.Context, path, cmdLine string) error
}

type exitCodeError interface {
	error
	ExitCode() int
}

// Msiexec is a prepared installer invocation.
type Msiexec struct {
	path       string
	action     string
	target     string
	display    DisplayMode
	logFile    string
	logOptions string
	args       []string
	runner     CmdRunner
}

// Option configures an Msiexec.
type Option func(*Msiexec) error

// Install runs /i, which also repairs a product that is already present.
func Install() Option {
	return func(m *Msiexec) error {
		m.action = "/i"
		return nil
	}
}

// WithMsi sets the package path.
func WithMsi(path string) Option {
	return func(m *Msiexec) error {
		m.target = path
		return nil
	}
}

// WithDisplayMode sets the user interface level.
func WithDisplayMode(mode DisplayMode) Option {
	return func(m *Msiexec) error {
		m.display = mode
		return nil
	}
}

// WithLogFile asks msiexec to log to path.
func WithLogFile(path string) Option {
	return func(m *Msiexec) error {
		m.logFile = path
		return nil
	}
}

// WithLogOptions sets the letters following /l. Empty keeps the default.
func WithLogOptions(opts string) Option {
	return func(m *Msiexec) error {
		if opts != "" {
			m.logOptions = strings.TrimPrefix(opts, "/l")
		}
		return nil
	}
}

// WithAdditionalArgs appends arguments verbatim.
func WithAdditionalArgs(args []string) Option {
	return func(m *Msiexec) error {
		m.args = append(m.args, args...)
		return nil
	}
}

// WithMsiexecPath overrides the installer executable.
func WithMsiexecPath(path string) Option {
	return func(m *Msiexec) error {
		if path != "" {
			m.path = path
		}
		return nil
	}
}

// WithCmdRunner replaces the process runner.
func WithCmdRunner(r CmdRunner) Option {
	return func(m *Msiexec) error {
		m.runner = r
		return nil
	}
}

// Cmd builds an invocation. An action and a package are required.
func Cmd(options ...Option) (*Msiexec, error) {
	m := &Msiexec{
		path:       DefaultPath(),
		logOptions: DefaultLogOptions,
		runner:     newRealCmdRunner(),
	}
	for _, opt := range options {
		if err := opt(m); err != nil {
			return nil, err
		}
	}
	if m.action == "" {
		return nil, errors.New("msiexec: no action specified")
	}
	if m.target == "" {
		return nil, errors.New("msiexec: no package specified")
	}
	return m, nil
}

// LogFile returns the log path, if any.
func (m *Msiexec) LogFile() string { return m.logFile }

// CommandLine returns the raw command line passed to the process, starting with the quoted executable.
func (m *Msiexec) CommandLine() string {
	parts := []string{quote(m.path), m.action, quote(m.target)}
	if flag := m.display.Flag(); flag != "" {
		parts = append(parts, flag)
	}
	if m.logFile != "" {
		parts = append(parts, "/l"+m.logOptions, quote(m.logFile))
	}
	parts = append(parts, m.args...)
	return strings.Join(parts, " ")
}

// Run starts msiexec and waits. A non-zero exit becomes an *ExitError
// carrying the interesting lines of the log.
func (m *Msiexec) Run(ctx context.Context) error {
	cmdLine := m.CommandLine()
	logging.Debug("Running msiexec", "cmdline", cmdLine)

	err := m.runner.Run(ctx, m.path, cmdLine)
	if err == nil {
		return nil
	}

	var ec exitCodeError
	if !errors.As(err, &ec) {
		return fmt.Errorf("failed to run %s: %w", m.path, err)
	}
	exitErr := &ExitError{Code: ec.ExitCode(), LogFile: m.logFile, Err: err}
	if m.logFile != "" {
		text, lerr := ReadLog(m.logFile)
		if lerr != nil {
			logging.Debug("Unable to read msiexec log", "path", m.logFile, "error", lerr)
		} else {
			exitErr.ProcessedLog = ProcessLog(text)
		}
	}
	return exitErr
}

func quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
