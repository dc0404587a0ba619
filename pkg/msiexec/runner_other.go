//go:build !windows

package msiexec

import "context"

type realCmdRunner struct{}

func newRealCmdRunner() CmdRunner {
	return realCmdRunner{}
}

func (realCmdRunner) Run(context.Context, string, string) error {
	return ErrUnsupported
}
