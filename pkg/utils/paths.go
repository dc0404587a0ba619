// pkg/utils/paths.go - utility functions for working with file paths.

package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// SanitizeFileName replaces characters Windows forbids in file names
// (`<>:"/\|?*` and control characters) with underscores.
func SanitizeFileName(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		if r < 0x20 || r == 0x7f || strings.ContainsRune(`<>:"/\|?*`, r) {
			b.WriteByte('_')
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// IsDir reports whether path exists and is a directory.
func IsDir(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && fi.IsDir()
}

// TempLogPath creates an empty, uniquely named msiexec log for target in the
// temp directory and returns its path.
func TempLogPath(target string) (string, error) {
	base := strings.TrimSuffix(filepath.Base(target), filepath.Ext(target))
	f, err := os.CreateTemp(os.TempDir(), SanitizeFileName(base)+"_*.log")
	if err != nil {
		return "", fmt.Errorf("failed to create log file: %w", err)
	}
	name := f.Name()
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("failed to create log file: %w", err)
	}
	return name, nil
}
