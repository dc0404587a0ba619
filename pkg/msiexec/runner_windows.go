//go:build windows

package msiexec

import (
	"context"
	"os/exec"
	"syscall"
)

type realCmdRunner struct{}

func newRealCmdRunner() CmdRunner {
	return realCmdRunner{}
}

// Run hands the command line to CreateProcess untouched, since msiexec
// parses its own arguments and os/exec quoting would break property values.
func (realCmdRunner) Run(ctx context.Context, path, cmdLine string) error {
	cmd := exec.CommandContext(ctx, path)
	cmd.SysProcAttr = &syscall.SysProcAttr{
		HideWindow: true,
		CmdLine:    cmdLine,
	}
	return cmd.Run()
}
