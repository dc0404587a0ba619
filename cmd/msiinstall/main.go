// cmd/msiinstall/main.go - installs MSI packages that are not already present.

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"

	"github.com/spf13/pflag"

	"github.com/windowsadmins/msikit/pkg/blocking"
	"github.com/windowsadmins/msikit/pkg/cli"
	"github.com/windowsadmins/msikit/pkg/config"
	"github.com/windowsadmins/msikit/pkg/installer"
	"github.com/windowsadmins/msikit/pkg/logging"
	"github.com/windowsadmins/msikit/pkg/msiexec"
	"github.com/windowsadmins/msikit/pkg/programs"
	"github.com/windowsadmins/msikit/pkg/registry"
	"github.com/windowsadmins/msikit/pkg/utils"
)

type orchestrator interface {
	InstallPaths(ctx context.Context, patterns []string, opts installer.Options) ([]installer.Outcome, error)
	InstallURL(ctx context.Context, src installer.URLSource, opts installer.Options) (installer.Outcome, error)
}

var newOrchestrator = func(cfg *config.Configuration) orchestrator {
	return &installer.Orchestrator{
		Reader:      cli.NewReader(cfg),
		Programs:    programs.NewLookup(registry.NewLive()),
		Fetcher:     cli.NewDownloader(cfg),
		Busy:        blocking.New(),
		MsiexecPath: cfg.MsiexecPath,
	}
}

type flags struct {
	paths      []string
	source     installer.URLSource
	force      bool
	display    string
	logOptions string
	logPath    string
	output     string
	dryRun     bool
}

func main() {
	os.Exit(run(utils.WindowsArgs(os.Args)[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	var common cli.Common
	var f flags

	fs := cli.NewFlagSet("msiinstall", stderr, &common)
	fs.StringArrayVar(&f.paths, "path", nil, "MSI path or wildcard; repeatable. Bare arguments before -- are paths too.")
	fs.StringVar(&f.source.URL, "url", "", "URL of an MSI package to download and install.")
	fs.StringVar(&f.source.Checksum, "checksum", "", "Expected hex checksum of the download (required with --url).")
	fs.StringVar(&f.source.ChecksumAlgorithm, "checksum-algorithm", "sha256", "Checksum algorithm: sha256, sha1, sha384, sha512 or md5.")
	fs.StringVar(&f.source.ProductName, "product-name", "", "Display name the package registers (used with --url).")
	fs.StringVar(&f.source.ProductCode, "product-code", "", "Product code the package registers (required with --url).")
	fs.BoolVar(&f.force, "force", false, "Repair products that are already installed instead of skipping them.")
	fs.StringVar(&f.display, "display", "", "Installer UI: quiet, passive or full (default from configuration).")
	fs.StringVar(&f.logOptions, "log-options", "", "msiexec /l options (default from configuration).")
	fs.StringVar(&f.logPath, "log-path", "", "Keep the msiexec log at this file, or one log per package in this directory.")
	fs.StringVar(&f.output, "output", "", "Keep the downloaded package at this file or directory.")
	fs.BoolVar(&f.dryRun, "dry-run", false, "Decide and print the msiexec command line without running it.")

	if ok, code := cli.Parse(fs, args, &common, stdout); !ok {
		return code
	}
	positional, extra := splitArgs(fs)
	f.paths = append(f.paths, positional...)

	if (len(f.paths) == 0) == (f.source.URL == "") {
		return cli.Usagef(fs, stderr, "give package paths or --url, not both")
	}
	if f.source.URL != "" && (f.source.Checksum == "" || f.source.ProductCode == "") {
		return cli.Usagef(fs, stderr, "--url requires --checksum and --product-code")
	}
	if f.output != "" && f.source.URL == "" {
		return cli.Usagef(fs, stderr, "--output only applies to --url")
	}

	cfg, format, err := cli.Start("msiinstall", common, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "msiinstall: %v\n", err)
		return cli.ExitError
	}
	defer logging.CloseLogger()

	opts, err := f.options(cfg, extra)
	if err != nil {
		return cli.Usagef(fs, stderr, "%v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	history := openHistory(cfg, f)

	o := newOrchestrator(cfg)
	var outcomes []installer.Outcome
	var runErr error
	if f.source.URL != "" {
		var out installer.Outcome
		out, runErr = o.InstallURL(ctx, f.source, opts)
		outcomes = []installer.Outcome{out}
	} else {
		outcomes, runErr = o.InstallPaths(ctx, f.paths, opts)
	}
	history.record(outcomes)

	if err := utils.WriteOutput(stdout, format, outcomes); err != nil {
		logging.Error("Failed to write output", "error", err)
		return cli.ExitError
	}
	if runErr != nil {
		logging.Error("Install finished with errors", "error", runErr)
		return cli.ExitError
	}
	return cli.ExitOK
}

// splitArgs separates bare paths from the msiexec arguments after "--".
func splitArgs(fs *pflag.FlagSet) (paths, extra []string) {
	args := fs.Args()
	dash := fs.ArgsLenAtDash()
	if dash < 0 {
		return args, nil
	}
	return args[:dash], args[dash:]
}

func (f flags) options(cfg *config.Configuration, extra []string) (installer.Options, error) {
	display := f.display
	if display == "" {
		display = cfg.DisplayMode
	}
	mode, err := msiexec.ParseDisplayMode(display)
	if err != nil {
		return installer.Options{}, err
	}
	logOptions := f.logOptions
	if logOptions == "" {
		logOptions = cfg.LogOptions
	}
	return installer.Options{
		Force:       f.force,
		DisplayMode: mode,
		LogOptions:  logOptions,
		LogPath:     f.logPath,
		OutputPath:  f.output,
		ExtraArgs:   extra,
		DryRun:      f.dryRun,
	}, nil
}

// history records a run's outcomes as a session. A nil history records nothing.
type history struct {
	log *logging.SessionLog
}

func openHistory(cfg *config.Configuration, f flags) *history {
	dir := cfg.SessionDir()
	if dir == "" {
		return nil
	}
	sl, err := logging.NewSessionLog(dir, logging.Retention{Days: cfg.SessionRetentionDays, Hours: cfg.SessionRetentionHours})
	if err != nil {
		logging.Warn("Session history disabled", "error", err)
		return nil
	}
	runType := "paths"
	if f.source.URL != "" {
		runType = "url"
	}
	if f.dryRun {
		runType += "-dry-run"
	}
	meta := map[string]string{"force": strconv.FormatBool(f.force)}
	if len(f.paths) > 0 {
		meta["paths"] = strings.Join(f.paths, ";")
	}
	if _, err := sl.Start(runType, meta); err != nil {
		logging.Warn("Session history disabled", "error", err)
		return nil
	}
	return &history{log: sl}
}

func (h *history) record(outcomes []installer.Outcome) {
	if h == nil {
		return
	}
	for _, o := range outcomes {
		ev := logging.Event{
			Source:      o.Source,
			Package:     o.ProductName,
			ProductCode: o.ProductCode,
			Action:      string(o.Action),
			Status:      eventStatus(o),
			ExitCode:    o.ExitCode,
			LogPath:     o.LogPath,
			Error:       o.Error,
		}
		if err := h.log.Record(ev); err != nil {
			logging.Warn("Failed to record session event", "error", err)
		}
	}
	if s, err := h.log.End(); err != nil {
		logging.Warn("Failed to close session", "error", err)
	} else {
		logging.Debug("Session recorded", "session", s.SessionID, "status", s.Status)
	}
}

func eventStatus(o installer.Outcome) string {
	switch {
	case o.Error != "":
		return "failed"
	case o.Action == installer.ActionSkip:
		return "skipped"
	case o.DryRun:
		return "planned"
	default:
		return "completed"
	}
}
