//go:build windows

package utils

import (
	"unsafe"

	"golang.org/x/sys/windows"
)

// WindowsArgs re-parses the raw Windows command line so quoted arguments
// such as "C:\Program Files\app.msi" survive exactly as typed. The first
// element is the program name. It returns fallback when the command line
// cannot be read.
func WindowsArgs(fallback []string) []string {
	cmdLinePtr := windows.GetCommandLine()
	if cmdLinePtr == nil {
		return fallback
	}
	var argc int32
	argvPtr, err := windows.CommandLineToArgv(cmdLinePtr, &argc)
	if err != nil || argvPtr == nil || argc < 1 {
		return fallback
	}
	defer windows.LocalFree(windows.Handle(uintptr(unsafe.Pointer(argvPtr))))

	argv := unsafe.Slice((**uint16)(unsafe.Pointer(argvPtr)), argc)
	args := make([]string, 0, argc)
	for _, p := range argv {
		if p != nil {
			args = append(args, windows.UTF16PtrToString(p))
		}
	}
	return args
}
