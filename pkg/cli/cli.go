// Package cli holds the flag handling and startup shared by the msikit commands.
package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/pflag"

	"github.com/windowsadmins/msikit/pkg/config"
	"github.com/windowsadmins/msikit/pkg/download"
	"github.com/windowsadmins/msikit/pkg/logging"
	"github.com/windowsadmins/msikit/pkg/msi"
	"github.com/windowsadmins/msikit/pkg/utils"
	"github.com/windowsadmins/msikit/pkg/version"
)

// Process exit codes.
const (
	ExitOK    = 0
	ExitError = 1
	ExitUsage = 2
)

// Common are the flags every command accepts.
type Common struct {
	ConfigPath string
	Verbosity  int
	Version    bool
	Format     string
}

// NewFlagSet returns a flag set for tool with the common flags registered.
func NewFlagSet(tool string, stderr io.Writer, c *Common) *pflag.FlagSet {
	fs := pflag.NewFlagSet(tool, pflag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&c.ConfigPath, "config", "", `Path to the configuration file (default %ProgramData%\msikit\Config.yaml).`)
	fs.CountVarP(&c.Verbosity, "verbose", "v", "Increase verbosity (e.g. -v, -vv)")
	fs.BoolVar(&c.Version, "version", false, "Print the version and exit.")
	fs.StringVar(&c.Format, "format", string(utils.FormatYAML), "Output format: yaml or json.")
	return fs
}

// Parse parses args. When it returns false the command should exit with code.
func Parse(fs *pflag.FlagSet, args []string, c *Common, stdout io.Writer) (bool, int) {
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return false, ExitOK
		}
		return false, ExitUsage
	}
	if c.Version {
		version.Fprint(stdout, fs.Name(), c.Verbosity > 0)
		return false, ExitOK
	}
	return true, ExitOK
}

// Usagef reports a usage error on stderr and returns ExitUsage.
func Usagef(fs *pflag.FlagSet, stderr io.Writer, format string, args ...interface{}) int {
	fmt.Fprintf(stderr, "%s: %s\n", fs.Name(), fmt.Sprintf(format, args...))
	fs.Usage()
	return ExitUsage
}

// Start loads the configuration and initialises logging to stderr.
// Callers must call logging.CloseLogger when done.
func Start(tool string, c Common, stderr io.Writer) (*config.Configuration, utils.Format, error) {
	format, err := utils.ParseFormat(c.Format)
	if err != nil {
		return nil, "", err
	}
	cfg, err := config.LoadConfig(c.ConfigPath)
	if err != nil {
		return nil, "", err
	}
	level := logging.LevelFromVerbosity(logging.ParseLevel(cfg.LogLevel), c.Verbosity)
	err = logging.Init(logging.Config{
		Level:      level,
		Component:  tool,
		LogDir:     cfg.LogDir,
		EnableJSON: cfg.LogDir != "",
		Console:    stderr,
	})
	if err != nil {
		return nil, "", fmt.Errorf("failed to initialise logging: %w", err)
	}
	logging.Debug("Configuration loaded", "path", c.ConfigPath, "level", level.String())
	return cfg, format, nil
}

// NewDownloader builds the HTTP client described by cfg.
func NewDownloader(cfg *config.Configuration) *download.Client {
	client := download.New(cfg.DownloadTimeout(), cfg.UserAgent)
	client.Dir = cfg.DownloadDir
	return client
}

// NewReader builds an MSI reader backed by the system installer service.
func NewReader(cfg *config.Configuration) *msi.Reader {
	r := msi.NewReader(msi.NewOpener(), NewDownloader(cfg))
	r.Release = msi.ReleasePolicy{
		Timeout:  cfg.ReleaseTimeout(),
		Interval: cfg.ReleaseInterval(),
		ForceGC:  cfg.ForceGC,
	}
	return r
}
