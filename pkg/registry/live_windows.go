//go:build windows

package registry

import (
	"errors"
	"fmt"

	winregistry "golang.org/x/sys/windows/registry"
)

// Live reads the registry of the running machine.
type Live struct{}

// NewLive returns the registry of the running machine.
func NewLive() Registry {
	return Live{}
}

// OpenKey opens path read-only. HKLM is always read through the 64-bit view
// so a 32-bit build sees the same keys as a 64-bit one.
func (Live) OpenKey(hive Hive, path string) (Key, error) {
	var root winregistry.Key
	access := uint32(winregistry.QUERY_VALUE | winregistry.ENUMERATE_SUB_KEYS)

	switch hive {
	case LocalMachine:
		root = winregistry.LOCAL_MACHINE
		access |= winregistry.WOW64_64KEY
	case CurrentUser:
		root = winregistry.CURRENT_USER
	case Users:
		root = winregistry.USERS
	default:
		return nil, fmt.Errorf("unsupported hive: %s", hive)
	}

	k, err := winregistry.OpenKey(root, path, access)
	if err != nil {
		return nil, translate(err)
	}
	return &liveKey{key: k, path: path}, nil
}

type liveKey struct {
	key  winregistry.Key
	path string
}

func (k *liveKey) Path() string { return k.path }

func (k *liveKey) SubKeyNames() ([]string, error) {
	names, err := k.key.ReadSubKeyNames(-1)
	return names, translate(err)
}

func (k *liveKey) ValueNames() ([]string, error) {
	names, err := k.key.ReadValueNames(-1)
	return names, translate(err)
}

func (k *liveKey) StringValue(name string) (string, error) {
	val, _, err := k.key.GetStringValue(name)
	return val, translate(err)
}

func (k *liveKey) IntegerValue(name string) (uint64, error) {
	val, _, err := k.key.GetIntegerValue(name)
	return val, translate(err)
}

func (k *liveKey) Close() error {
	return k.key.Close()
}

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, winregistry.ErrNotExist):
		return fmt.Errorf("%w: %w", ErrNotExist, err)
	case errors.Is(err, winregistry.ErrUnexpectedType):
		return fmt.Errorf("%w: %w", ErrUnexpectedType, err)
	default:
		return err
	}
}
