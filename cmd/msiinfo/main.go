// cmd/msiinfo/main.go - prints the metadata and selected tables of an MSI package.

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/windowsadmins/msikit/pkg/cli"
	"github.com/windowsadmins/msikit/pkg/config"
	"github.com/windowsadmins/msikit/pkg/logging"
	"github.com/windowsadmins/msikit/pkg/msi"
	"github.com/windowsadmins/msikit/pkg/utils"
)

type infoReader interface {
	ReadFile(ctx context.Context, path string, include []string) (*msi.Info, error)
	ReadURL(ctx context.Context, rawURL, outputPath string, include []string) (*msi.Info, error)
}

var newReader = func(cfg *config.Configuration) infoReader { return cli.NewReader(cfg) }

func main() {
	os.Exit(run(utils.WindowsArgs(os.Args)[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	var common cli.Common
	var path, url, output string
	var tables []string

	fs := cli.NewFlagSet("msiinfo", stderr, &common)
	fs.StringVar(&path, "path", "", "Path to the MSI package.")
	fs.StringVar(&url, "url", "", "URL of an MSI package to download and read.")
	fs.StringVar(&output, "output", "", "Where to keep the downloaded package (file or directory). Default is a temporary file that is removed.")
	fs.StringArrayVar(&tables, "table", nil, "Table name or wildcard to include; repeatable. Property and Feature are always read.")

	if ok, code := cli.Parse(fs, args, &common, stdout); !ok {
		return code
	}
	if (path == "") == (url == "") {
		return cli.Usagef(fs, stderr, "exactly one of --path or --url is required")
	}
	if output != "" && url == "" {
		return cli.Usagef(fs, stderr, "--output only applies to --url")
	}

	cfg, format, err := cli.Start("msiinfo", common, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "msiinfo: %v\n", err)
		return cli.ExitError
	}
	defer logging.CloseLogger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	reader := newReader(cfg)
	var info *msi.Info
	if url != "" {
		info, err = reader.ReadURL(ctx, url, output, tables)
	} else {
		info, err = reader.ReadFile(ctx, path, tables)
	}
	if err != nil {
		logging.Error("Failed to read package", "error", err)
		return cli.ExitError
	}

	if err := utils.WriteOutput(stdout, format, info); err != nil {
		logging.Error("Failed to write output", "error", err)
		return cli.ExitError
	}
	return cli.ExitOK
}
