// Package registry is a small read-only view of the Windows registry.
//
// The live implementation wraps golang.org/x/sys/windows/registry; Memory is
// an in-process tree used wherever a real hive is not available.
package registry

import "errors"

// Hive names a registry root.
type Hive string

// Supported hives.
const (
	LocalMachine Hive = "HKLM"
	CurrentUser  Hive = "HKCU"
	Users        Hive = "HKU"
)

var (
	// ErrNotExist is returned for missing keys and values.
	ErrNotExist = errors.New("registry: key or value does not exist")
	// ErrUnexpectedType is returned when a value exists with a different type.
	ErrUnexpectedType = errors.New("registry: unexpected value type")
	// ErrUnsupported is returned by the live registry outside Windows.
	ErrUnsupported = errors.New("registry: not supported on this platform")
)

// Registry opens keys below a hive.
type Registry interface {
	// OpenKey returns the key at path below hive. An empty path opens the hive root.
	OpenKey(hive Hive, path string) (Key, error)
}

// Key is an opened registry key.
type Key interface {
	// Path returns the path the key was opened with, relative to its hive.
	Path() string
	SubKeyNames() ([]string, error)
	ValueNames() ([]string, error)
	// StringValue reads an SZ or EXPAND_SZ value.
	StringValue(name string) (string, error)
	// IntegerValue reads a DWORD or QWORD value.
	IntegerValue(name string) (uint64, error)
	Close() error
}

// HasValue reports whether the key carries a value called name, of any type.
func HasValue(k Key, name string) bool {
	names, err := k.ValueNames()
	if err != nil {
		return false
	}
	for _, n := range names {
		if equalFold(n, name) {
			return true
		}
	}
	return false
}
