//go:build !windows

package utils

// WindowsArgs returns fallback unchanged off Windows.
func WindowsArgs(fallback []string) []string {
	return fallback
}
