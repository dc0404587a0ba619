//go:build !windows

package logging

import "os"

var colorsEnabled bool

func enableColors() {
	if fi, err := os.Stdout.Stat(); err == nil && fi.Mode()&os.ModeCharDevice != 0 {
		colorsEnabled = os.Getenv("NO_COLOR") == ""
	}
}
