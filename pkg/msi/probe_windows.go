//go:build windows

package msi

import (
	"golang.org/x/sys/windows"
)

// probeSharedRead opens path denying writers, which fails while the
// installer service still holds the database open for update.
func probeSharedRead(path string) error {
	p, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return err
	}
	h, err := windows.CreateFile(p, windows.GENERIC_READ, windows.FILE_SHARE_READ, nil,
		windows.OPEN_EXISTING, windows.FILE_ATTRIBUTE_NORMAL, 0)
	if err != nil {
		return err
	}
	return windows.CloseHandle(h)
}
