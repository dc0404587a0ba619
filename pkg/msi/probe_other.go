//go:build !windows

package msi

import "os"

func probeSharedRead(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	return f.Close()
}
