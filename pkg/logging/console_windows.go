//go:build windows

package logging

import (
	"os"

	"golang.org/x/sys/windows"
)

var colorsEnabled bool

// enableColors turns on virtual terminal processing so ANSI colors render in cmd.exe.
func enableColors() {
	handle := windows.Handle(os.Stdout.Fd())
	var mode uint32
	if err := windows.GetConsoleMode(handle, &mode); err != nil {
		// Redirected to a file or pipe.
		return
	}
	if err := windows.SetConsoleMode(handle, mode|windows.ENABLE_VIRTUAL_TERMINAL_PROCESSING); err == nil {
		colorsEnabled = true
	}
}
