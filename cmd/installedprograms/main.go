// cmd/installedprograms/main.go - lists installed programs from the uninstall keys.

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/google/uuid"

	"github.com/windowsadmins/msikit/pkg/cli"
	"github.com/windowsadmins/msikit/pkg/config"
	"github.com/windowsadmins/msikit/pkg/logging"
	"github.com/windowsadmins/msikit/pkg/programs"
	"github.com/windowsadmins/msikit/pkg/registry"
	"github.com/windowsadmins/msikit/pkg/utils"
)

var newLookup = func(*config.Configuration) *programs.Lookup {
	return programs.NewLookup(registry.NewLive())
}

func main() {
	os.Exit(run(utils.WindowsArgs(os.Args)[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	var common cli.Common
	var name, productCode string
	var ignoreNotFound bool

	fs := cli.NewFlagSet("installedprograms", stderr, &common)
	fs.StringVar(&name, "name", "*", "Display name or wildcard to match (case-insensitive).")
	fs.StringVar(&productCode, "product-code", "", "Return only the program registered under this product code.")
	fs.BoolVar(&ignoreNotFound, "ignore-not-found", false, "Print an empty list instead of failing when a literal name matches nothing.")

	if ok, code := cli.Parse(fs, args, &common, stdout); !ok {
		return code
	}
	if productCode != "" && fs.Changed("name") {
		return cli.Usagef(fs, stderr, "--name and --product-code are mutually exclusive")
	}
	var code uuid.UUID
	if productCode != "" {
		var err error
		if code, err = uuid.Parse(strings.TrimSpace(productCode)); err != nil {
			return cli.Usagef(fs, stderr, "invalid product code %q", productCode)
		}
	}

	cfg, format, err := cli.Start("installedprograms", common, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "installedprograms: %v\n", err)
		return cli.ExitError
	}
	defer logging.CloseLogger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	lookup := newLookup(cfg)
	lookup.IgnoreNotFound = ignoreNotFound

	var result interface{}
	if productCode != "" {
		p, err := lookup.FindByProductCode(ctx, code)
		switch {
		case err == nil:
			result = []programs.InstalledProgram{*p}
		case programs.IsNotFound(err) && ignoreNotFound:
			result = []programs.InstalledProgram{}
		default:
			logging.Error("Lookup failed", "error", err)
			return cli.ExitError
		}
	} else {
		found, err := lookup.List(ctx, name)
		if err != nil {
			logging.Error("Lookup failed", "error", err)
			return cli.ExitError
		}
		result = found
	}

	if err := utils.WriteOutput(stdout, format, result); err != nil {
		logging.Error("Failed to write output", "error", err)
		return cli.ExitError
	}
	return cli.ExitOK
}
